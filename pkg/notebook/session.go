package notebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aunorthrop/nora/pkg/core/types"
)

// State is the session's position in the listen/process/speak cycle.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateListening
	StateProcessing
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrExchangeInFlight is returned when an utterance arrives while another
// exchange is still being processed or spoken. Conversation order depends on
// strictly sequential exchanges, so the caller must drop or requeue.
var ErrExchangeInFlight = errors.New("notebook: exchange already in flight")

// ErrSessionInactive is returned when an exchange is attempted outside an
// active session.
var ErrSessionInactive = errors.New("notebook: session not active")

// CaptureError reports a capture failure. Transient errors are retried with a
// fixed backoff; fatal ones halt the session.
type CaptureError struct {
	Err       error
	Transient bool
}

func (e CaptureError) Error() string {
	if e.Err == nil {
		return "capture error"
	}
	return e.Err.Error()
}

func (e CaptureError) Unwrap() error { return e.Err }

// Capture produces recognized utterances. Start arms one listen cycle; a cycle
// ends after delivering one final utterance on Utterances or one failure on
// Errors. The session re-arms capture once it is ready to listen again, which
// is what keeps the assistant from transcribing its own spoken reply.
type Capture interface {
	Start() error
	Stop()
	Utterances() <-chan string
	Errors() <-chan CaptureError
}

// Speaker renders an utterance to audio. Speak returns when playback ends or
// fails; CancelAll interrupts any pending playback.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	CancelAll()
}

// Transport submits a conversation and returns the reply text, or a typed
// core.Error.
type Transport interface {
	Complete(ctx context.Context, messages []types.Message, params types.SamplingParams) (string, error)
}

// DefaultFallback is spoken when an exchange fails. The session always returns
// to a listening-ready state afterwards; no failure requires a manual restart.
const DefaultFallback = "I'm having trouble connecting right now. Please check your settings and try again."

// SessionConfig carries the per-persona tuning of a session.
type SessionConfig struct {
	Sampling       types.SamplingParams
	Assembler      AssemblerOptions
	RestartBackoff time.Duration
	Fallback       string
}

// DefaultSessionConfig returns the stock session tuning.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Sampling: types.SamplingParams{
			MaxTokens:        200,
			Temperature:      types.Float64(0.7),
			PresencePenalty:  types.Float64(0.3),
			FrequencyPenalty: types.Float64(0.3),
		},
		Assembler:      DefaultAssemblerOptions(),
		RestartBackoff: 750 * time.Millisecond,
		Fallback:       DefaultFallback,
	}
}

// Session owns the listen/process/speak state machine for one continuous
// active period. It is the sole arbiter of re-entrancy: exchanges run strictly
// one at a time, playback completes before capture re-arms, and results that
// resolve after Stop are discarded.
type Session struct {
	cfg       SessionConfig
	capture   Capture
	speaker   Speaker
	transport Transport
	store     *Store
	assembler *Assembler
	logger    *slog.Logger

	mu         sync.Mutex
	state      State
	epoch      uint64 // bumped on every Start; stale exchanges see a mismatch
	processing bool
	speaking   bool
	turns      []types.Message
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewSession wires a session. store may be shared with other readers; the
// session is its only writer.
func NewSession(cfg SessionConfig, capture Capture, speaker Speaker, transport Transport, store *Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultSessionConfig()
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = def.RestartBackoff
	}
	if cfg.Fallback == "" {
		cfg.Fallback = def.Fallback
	}
	if cfg.Sampling.MaxTokens <= 0 {
		cfg.Sampling = def.Sampling
	}
	return &Session{
		cfg:       cfg,
		capture:   capture,
		speaker:   speaker,
		transport: transport,
		store:     store,
		assembler: NewAssembler(cfg.Assembler),
		logger:    logger,
		state:     StateIdle,
	}
}

// State reports the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins a session. Valid only from Idle; session-local turns are
// cleared. If the capture capability is unavailable the session logs the
// failure and stays Idle.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("notebook: start from %s", s.state)
	}
	s.state = StateStarting
	s.epoch++
	s.turns = nil
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	if err := s.capture.Start(); err != nil {
		s.logger.Error("capture unavailable", "err", err)
		cancel()
		s.mu.Lock()
		s.state = StateIdle
		s.cancel = nil
		s.mu.Unlock()
		close(done)
		return err
	}

	s.setState(StateListening)
	go s.run(ctx, done)
	return nil
}

// Stop ends the session from any state: pending playback is cancelled, capture
// is stopped, and in-flight transport results are discarded when they resolve.
// Idempotent and safe to call during teardown.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.state = StateIdle
	s.processing = false
	s.speaking = false
	s.turns = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.speaker.CancelAll()
	s.capture.Stop()
}

// Done reports a channel closed when the session's run loop has exited. Nil
// before the first Start.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case utterance := <-s.capture.Utterances():
			utterance = strings.TrimSpace(utterance)
			if utterance == "" {
				s.rearm(ctx, 0)
				continue
			}
			if _, err := s.Exchange(ctx, utterance); err != nil {
				if errors.Is(err, ErrExchangeInFlight) {
					s.logger.Warn("utterance dropped, exchange in flight", "utterance", utterance)
					continue
				}
				return
			}
			s.rearm(ctx, 0)
		case cerr := <-s.capture.Errors():
			if !cerr.Transient {
				s.logger.Error("capture failed, halting session", "err", cerr)
				go s.Stop()
				return
			}
			s.logger.Warn("capture error, restarting", "err", cerr, "backoff", s.cfg.RestartBackoff)
			s.rearm(ctx, s.cfg.RestartBackoff)
		}
	}
}

// rearm restarts capture after delay, retrying failed starts with the restart
// backoff until the session goes Idle. A session that stays active must always
// end up listening again; giving up after one failed start would leave it
// running but deaf. Restart is suppressed while an exchange is processing or
// speaking.
func (s *Session) rearm(ctx context.Context, delay time.Duration) {
	for {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		s.mu.Lock()
		ready := s.state != StateIdle && !s.processing && !s.speaking
		s.mu.Unlock()
		if !ready || ctx.Err() != nil {
			return
		}

		if err := s.capture.Start(); err != nil {
			s.logger.Warn("capture restart failed", "err", err, "backoff", s.cfg.RestartBackoff)
			delay = s.cfg.RestartBackoff
			continue
		}
		s.setState(StateListening)
		return
	}
}

// Exchange takes one recognized utterance through model call, note append and
// spoken playback. Single-flight: a second call while one is outstanding is
// rejected with ErrExchangeInFlight. Transport and playback failures never
// escape; every failure path resolves into the fallback utterance and the
// session stays active. The returned string is what was spoken.
func (s *Session) Exchange(ctx context.Context, utterance string) (string, error) {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return "", ErrSessionInactive
	}
	if s.processing || s.speaking {
		s.mu.Unlock()
		return "", ErrExchangeInFlight
	}
	s.processing = true
	s.state = StateProcessing
	epoch := s.epoch
	turns := make([]types.Message, len(s.turns))
	copy(turns, s.turns)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.epoch == epoch {
			s.processing = false
		}
		s.mu.Unlock()
	}()

	messages := s.assembler.Build(s.store, turns, utterance)

	reply, err := s.transport.Complete(ctx, messages, s.cfg.Sampling)
	if ctx.Err() != nil {
		// Session stopped while the call was in flight: discard silently.
		return "", ctx.Err()
	}
	if s.stale(epoch) {
		// A caller-supplied context can outlive the session; nothing from
		// this exchange may be spoken or persisted after Stop.
		return "", ErrSessionInactive
	}
	if err != nil {
		s.logger.Error("exchange failed", "err", err)
		s.speak(ctx, s.cfg.Fallback)
		return s.cfg.Fallback, nil
	}
	reply = strings.TrimSpace(reply)

	s.mu.Lock()
	if s.state == StateIdle || s.epoch != epoch {
		s.mu.Unlock()
		return "", ErrSessionInactive
	}
	s.turns = append(s.turns, types.UserMessage(utterance), types.AssistantMessage(reply))
	s.mu.Unlock()

	note := types.Note{Timestamp: time.Now().UTC(), Input: utterance, Response: reply}
	s.store.Append(ctx, note)

	s.speak(ctx, reply)
	return reply, nil
}

// stale reports whether the session was stopped, or stopped and restarted,
// since the exchange that captured epoch began.
func (s *Session) stale(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateIdle || s.epoch != epoch
}

// Turns returns a copy of the session-local conversation turns. Turns are
// short-term context only; they never outlive the session.
func (s *Session) Turns() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Message, len(s.turns))
	copy(out, s.turns)
	return out
}

// speak plays text and waits for completion. Playback errors are logged and
// treated as completion so the session can proceed.
func (s *Session) speak(ctx context.Context, text string) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.speaking = true
	s.state = StateSpeaking
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.speaking = false
		s.mu.Unlock()
	}()

	if err := s.speaker.Speak(ctx, text); err != nil {
		s.logger.Warn("playback failed", "err", err)
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.state = state
	}
	s.mu.Unlock()
}
