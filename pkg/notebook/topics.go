package notebook

import (
	"sort"
	"strings"
	"unicode"
)

// TopicOptions tune the topic digest heuristic. The thresholds are data, not
// constants: persona variants ship different values.
type TopicOptions struct {
	// MinWordLen is the minimum rune length for a word to count as content.
	MinWordLen int
	// TopK bounds how many topics the digest contains.
	TopK int
	// StopWords are excluded from counting, lower-case.
	StopWords map[string]struct{}
}

// DefaultStopWords mirrors the exclusion list the assistant has always used.
var DefaultStopWords = []string{
	"that", "this", "with", "have", "they", "were", "said", "from",
	"will", "about", "your", "just", "like", "know", "think", "time",
	"good", "make", "work", "also", "well", "need", "want",
}

// DefaultTopicOptions returns the stock digest tuning.
func DefaultTopicOptions() TopicOptions {
	stop := make(map[string]struct{}, len(DefaultStopWords))
	for _, w := range DefaultStopWords {
		stop[w] = struct{}{}
	}
	return TopicOptions{MinWordLen: 4, TopK: 6, StopWords: stop}
}

// KeyTopics extracts the most frequent content words across texts, ranked by
// frequency descending with ties broken by first-seen order. The result is a
// pure function of its inputs: identical texts and options always produce the
// same slice.
func KeyTopics(texts []string, opts TopicOptions) []string {
	if opts.MinWordLen <= 0 {
		opts.MinWordLen = 4
	}
	if opts.TopK <= 0 {
		opts.TopK = 6
	}

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0

	for _, text := range texts {
		for _, word := range splitWords(text) {
			if len([]rune(word)) < opts.MinWordLen {
				continue
			}
			if _, stop := opts.StopWords[word]; stop {
				continue
			}
			if _, seen := counts[word]; !seen {
				firstSeen[word] = order
				order++
			}
			counts[word]++
		}
	}

	topics := make([]string, 0, len(counts))
	for word := range counts {
		topics = append(topics, word)
	}
	sort.Slice(topics, func(i, j int) bool {
		a, b := topics[i], topics[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return firstSeen[a] < firstSeen[b]
	})

	if len(topics) > opts.TopK {
		topics = topics[:opts.TopK]
	}
	return topics
}

// splitWords lower-cases text and splits it into alphanumeric word runs.
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
