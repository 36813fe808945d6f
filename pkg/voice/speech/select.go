// Package speech provides the playback capability: an external synthesis
// command, ranked voice selection, and the listening earcon.
package speech

import "strings"

// Voice describes one available synthesis voice.
type Voice struct {
	Name     string
	Language string
}

// SelectVoice picks a voice by ranked preference: first a name from preferred
// (substring match, case-insensitive, in preference order), then the first
// voice whose language starts with langPrefix, then the first available.
// Returns false only when no voices are available.
func SelectVoice(available []Voice, preferred []string, langPrefix string) (Voice, bool) {
	if len(available) == 0 {
		return Voice{}, false
	}

	for _, want := range preferred {
		want = strings.ToLower(want)
		for _, v := range available {
			if strings.Contains(strings.ToLower(v.Name), want) {
				return v, true
			}
		}
	}

	if langPrefix != "" {
		for _, v := range available {
			if strings.HasPrefix(strings.ToLower(v.Language), strings.ToLower(langPrefix)) {
				return v, true
			}
		}
	}

	return available[0], true
}

// DefaultVoicePreferences is the stock ranked preference list.
var DefaultVoicePreferences = []string{"female", "samantha", "victoria", "zira"}
