package notebook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aunorthrop/nora/pkg/core"
	"github.com/aunorthrop/nora/pkg/core/types"
)

type fakeCapture struct {
	mu         sync.Mutex
	starts     int
	stops      int
	startErr   error
	failNext   int // fail this many upcoming Start calls
	utterances chan string
	errs       chan CaptureError
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{
		utterances: make(chan string, 8),
		errs:       make(chan CaptureError, 8),
	}
}

func (c *fakeCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	if c.startErr != nil {
		return c.startErr
	}
	if c.failNext > 0 {
		c.failNext--
		return errors.New("device busy")
	}
	return nil
}

func (c *fakeCapture) setFailNext(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = n
}

func (c *fakeCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
}

func (c *fakeCapture) startCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

func (c *fakeCapture) Utterances() <-chan string   { return c.utterances }
func (c *fakeCapture) Errors() <-chan CaptureError { return c.errs }

type fakeSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	cancels int
	err     error
}

func (s *fakeSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return s.err
}

func (s *fakeSpeaker) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
}

func (s *fakeSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spoken))
	copy(out, s.spoken)
	return out
}

type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	last    []types.Message
	reply   string
	err     error
	release chan struct{} // when non-nil, Complete blocks until closed
}

func (tr *fakeTransport) Complete(ctx context.Context, messages []types.Message, params types.SamplingParams) (string, error) {
	tr.mu.Lock()
	tr.calls++
	tr.last = messages
	release := tr.release
	tr.mu.Unlock()
	if release != nil {
		<-release
	}
	if tr.err != nil {
		return "", tr.err
	}
	return tr.reply, nil
}

func newTestSession(capture Capture, speaker Speaker, transport Transport) (*Session, *Store) {
	store := NewStore(nil, nil)
	cfg := DefaultSessionConfig()
	cfg.RestartBackoff = 10 * time.Millisecond
	return NewSession(cfg, capture, speaker, transport, store, nil), store
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition never met")
}

func TestSession_UtterancesProduceNotesInSubmissionOrder(t *testing.T) {
	capture := newFakeCapture()
	speaker := &fakeSpeaker{}
	transport := &fakeTransport{reply: "noted"}
	s, store := newTestSession(capture, speaker, transport)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	capture.utterances <- "first thing"
	capture.utterances <- "second thing"
	capture.utterances <- "third thing"

	waitFor(t, func() bool { return store.Len() == 3 })

	notes := store.All()
	if notes[0].Input != "first thing" || notes[1].Input != "second thing" || notes[2].Input != "third thing" {
		t.Fatalf("notes out of order: %+v", notes)
	}
	for _, n := range notes {
		if n.Response != "noted" {
			t.Fatalf("response=%q, want noted", n.Response)
		}
	}
}

func TestSession_StartOnlyFromIdle(t *testing.T) {
	s, _ := newTestSession(newFakeCapture(), &fakeSpeaker{}, &fakeTransport{reply: "ok"})

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	if err := s.Start(); err == nil {
		t.Fatalf("expected second start to fail")
	}
}

func TestSession_StartStaysIdleWhenCaptureUnavailable(t *testing.T) {
	capture := newFakeCapture()
	capture.startErr = errors.New("no microphone")
	s, _ := newTestSession(capture, &fakeSpeaker{}, &fakeTransport{})

	if err := s.Start(); err == nil {
		t.Fatalf("expected start error")
	}
	if got := s.State(); got != StateIdle {
		t.Fatalf("state=%s, want idle", got)
	}
}

func TestSession_StopIsIdempotent(t *testing.T) {
	s, _ := newTestSession(newFakeCapture(), &fakeSpeaker{}, &fakeTransport{reply: "ok"})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
	s.Stop()
	s.Stop()
	if got := s.State(); got != StateIdle {
		t.Fatalf("state=%s, want idle", got)
	}
}

func TestSession_ExchangeSingleFlight(t *testing.T) {
	capture := newFakeCapture()
	speaker := &fakeSpeaker{}
	transport := &fakeTransport{reply: "ok", release: make(chan struct{})}
	s, _ := newTestSession(capture, speaker, transport)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Exchange(context.Background(), "long running")
	}()

	waitFor(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		return transport.calls == 1
	})

	if _, err := s.Exchange(context.Background(), "interloper"); !errors.Is(err, ErrExchangeInFlight) {
		t.Fatalf("err=%v, want ErrExchangeInFlight", err)
	}

	close(transport.release)
	<-done
}

func TestSession_TransportFailureSpeaksFallbackWithoutNote(t *testing.T) {
	capture := newFakeCapture()
	speaker := &fakeSpeaker{}
	transport := &fakeTransport{err: core.NewQuotaError("quota exceeded")}
	s, store := newTestSession(capture, speaker, transport)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	reply, err := s.Exchange(context.Background(), "anything")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if reply != DefaultFallback {
		t.Fatalf("reply=%q, want fallback", reply)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no note, got %d", store.Len())
	}
	if said := speaker.said(); len(said) != 1 || said[0] != DefaultFallback {
		t.Fatalf("spoken=%v", said)
	}
	if got := s.State(); got == StateIdle {
		t.Fatalf("session must stay active after a failed exchange")
	}
}

func TestSession_LateTransportResultDiscardedAfterStop(t *testing.T) {
	capture := newFakeCapture()
	speaker := &fakeSpeaker{}
	transport := &fakeTransport{reply: "too late", release: make(chan struct{})}
	s, store := newTestSession(capture, speaker, transport)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The caller's context stays alive past Stop; the session alone must
	// decide to discard the late result.
	var exchErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, exchErr = s.Exchange(context.Background(), "question before stop")
	}()

	waitFor(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		return transport.calls == 1
	})

	s.Stop()
	close(transport.release)
	<-done

	if !errors.Is(exchErr, ErrSessionInactive) {
		t.Fatalf("err=%v, want ErrSessionInactive", exchErr)
	}
	if store.Len() != 0 {
		t.Fatalf("late result must not be persisted, got %d notes", store.Len())
	}
	if said := speaker.said(); len(said) != 0 {
		t.Fatalf("late result must not be spoken, got %v", said)
	}
}

func TestSession_LateTransportResultDiscardedAcrossRestart(t *testing.T) {
	capture := newFakeCapture()
	speaker := &fakeSpeaker{}
	transport := &fakeTransport{reply: "from the old session", release: make(chan struct{})}
	s, store := newTestSession(capture, speaker, transport)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Exchange(context.Background(), "question before restart")
	}()

	waitFor(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		return transport.calls == 1
	})

	s.Stop()
	if err := s.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer s.Stop()

	close(transport.release)
	<-done

	if store.Len() != 0 {
		t.Fatalf("stale result must not be persisted, got %d notes", store.Len())
	}
	if got := len(s.Turns()); got != 0 {
		t.Fatalf("stale result must not leak into the new session's turns, got %d", got)
	}
	if said := speaker.said(); len(said) != 0 {
		t.Fatalf("stale result must not be spoken, got %v", said)
	}
}

func TestSession_TransientCaptureErrorRestartsAfterBackoff(t *testing.T) {
	capture := newFakeCapture()
	speaker := &fakeSpeaker{}
	transport := &fakeTransport{reply: "ok"}
	s, _ := newTestSession(capture, speaker, transport)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	before := capture.startCount()
	capture.errs <- CaptureError{Err: errors.New("audio glitch"), Transient: true}

	waitFor(t, func() bool { return capture.startCount() == before+1 })
	if got := s.State(); got != StateListening {
		t.Fatalf("state=%s, want listening", got)
	}
}

func TestSession_RearmRetriesAfterFailedCaptureStart(t *testing.T) {
	capture := newFakeCapture()
	speaker := &fakeSpeaker{}
	transport := &fakeTransport{reply: "noted"}
	s, store := newTestSession(capture, speaker, transport)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	capture.setFailNext(2)
	capture.utterances <- "remember this"

	waitFor(t, func() bool { return store.Len() == 1 })
	// One attempt from Start, then two failed re-arms and the one that
	// succeeds after backoff. The session must end up listening again.
	waitFor(t, func() bool { return capture.startCount() == 4 })
	waitFor(t, func() bool { return s.State() == StateListening })
}

func TestSession_FatalCaptureErrorHaltsSession(t *testing.T) {
	capture := newFakeCapture()
	s, _ := newTestSession(capture, &fakeSpeaker{}, &fakeTransport{reply: "ok"})

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	capture.errs <- CaptureError{Err: errors.New("unsupported"), Transient: false}

	waitFor(t, func() bool { return s.State() == StateIdle })
}

func TestSession_ExchangeRejectedWhenIdle(t *testing.T) {
	s, _ := newTestSession(newFakeCapture(), &fakeSpeaker{}, &fakeTransport{reply: "ok"})
	if _, err := s.Exchange(context.Background(), "hello"); !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("err=%v, want ErrSessionInactive", err)
	}
}

func TestSession_TurnsClearedOnStartAndPromotedOnSuccess(t *testing.T) {
	capture := newFakeCapture()
	transport := &fakeTransport{reply: "the answer"}
	s, _ := newTestSession(capture, &fakeSpeaker{}, transport)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := s.Exchange(context.Background(), "the question"); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	turns := s.Turns()
	if len(turns) != 2 || turns[0].Content != "the question" || turns[1].Content != "the answer" {
		t.Fatalf("turns=%+v", turns)
	}

	s.Stop()
	if err := s.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer s.Stop()

	if got := len(s.Turns()); got != 0 {
		t.Fatalf("turns must not survive a session restart, got %d", got)
	}
}
