package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
)

// SpeakerConfig describes the external synthesis command. The default works
// with espeak-ng; `say` on macOS takes the same shape with VoiceFlag "-v".
type SpeakerConfig struct {
	// Command is the synthesis binary, e.g. "espeak-ng" or "say".
	Command string
	// Args are passed before the voice flag and text.
	Args []string
	// VoiceFlag names the flag selecting a voice; empty disables selection.
	VoiceFlag string
	// Preferred is the ranked voice preference list.
	Preferred []string
	// Language is the prefix fallback for voice selection, e.g. "en".
	Language string
	// ListVoices enumerates available voices; nil disables selection.
	ListVoices func(ctx context.Context) ([]Voice, error)
}

// DefaultSpeakerConfig returns an espeak-ng speaker.
func DefaultSpeakerConfig() SpeakerConfig {
	return SpeakerConfig{
		Command:   "espeak-ng",
		VoiceFlag: "-v",
		Preferred: DefaultVoicePreferences,
		Language:  "en",
	}
}

// CommandSpeaker renders utterances through an external synthesis process.
// Speak returns when the process exits; CancelAll kills any running playback.
// The voice is resolved at most once per speaker lifetime and cached.
type CommandSpeaker struct {
	cfg    SpeakerConfig
	logger *slog.Logger

	voiceOnce sync.Once
	voice     Voice
	hasVoice  bool

	mu      sync.Mutex
	current context.CancelFunc
}

// NewCommandSpeaker creates a speaker. Zero-value config falls back to the
// default espeak-ng setup.
func NewCommandSpeaker(cfg SpeakerConfig, logger *slog.Logger) *CommandSpeaker {
	if cfg.Command == "" {
		cfg = DefaultSpeakerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSpeaker{cfg: cfg, logger: logger}
}

// Speak synthesizes text, blocking until playback ends or fails.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.current = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.current != nil {
			s.current = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	args := append([]string{}, s.cfg.Args...)
	if voice, ok := s.resolveVoice(ctx); ok && s.cfg.VoiceFlag != "" {
		args = append(args, s.cfg.VoiceFlag, voice.Name)
	}
	args = append(args, text)

	cmd := exec.CommandContext(ctx, s.cfg.Command, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

// CancelAll interrupts any pending playback.
func (s *CommandSpeaker) CancelAll() {
	s.mu.Lock()
	cancel := s.current
	s.current = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *CommandSpeaker) resolveVoice(ctx context.Context) (Voice, bool) {
	s.voiceOnce.Do(func() {
		if s.cfg.ListVoices == nil {
			return
		}
		voices, err := s.cfg.ListVoices(ctx)
		if err != nil {
			s.logger.Warn("voice listing failed", "err", err)
			return
		}
		s.voice, s.hasVoice = SelectVoice(voices, s.cfg.Preferred, s.cfg.Language)
		if s.hasVoice {
			s.logger.Debug("voice selected", "voice", s.voice.Name, "language", s.voice.Language)
		}
	})
	return s.voice, s.hasVoice
}
