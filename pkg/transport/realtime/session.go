package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aunorthrop/nora/pkg/core"
	"github.com/aunorthrop/nora/pkg/core/types"
)

// EventKind classifies session events surfaced to the caller.
type EventKind int

const (
	// EventSpeechStarted signals the remote side detected speech onset.
	EventSpeechStarted EventKind = iota
	// EventSpeechStopped signals an utterance boundary.
	EventSpeechStopped
	// EventTranscriptDelta carries an incremental reply transcript chunk.
	EventTranscriptDelta
	// EventResponseDone carries the completed reply text.
	EventResponseDone
)

// Event is one remote-side signal.
type Event struct {
	Kind EventKind
	Text string
}

// ErrCompleteInFlight is returned when Complete is called while a previous
// exchange is still awaiting its terminal event.
var ErrCompleteInFlight = errors.New("realtime: completion already in flight")

// ErrSessionClosed is returned when the session has been closed.
var ErrSessionClosed = errors.New("realtime: session closed")

// Config tunes one realtime session. All fields have working defaults.
type Config struct {
	Instructions   string
	Voice          string
	AudioFormat    string
	VADThreshold   float64
	SilencePadding time.Duration
	Sampling       types.SamplingParams
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
}

func (c *Config) applyDefaults() {
	if c.AudioFormat == "" {
		c.AudioFormat = "pcm16"
	}
	if c.VADThreshold == 0 {
		c.VADThreshold = 0.5
	}
	if c.SilencePadding == 0 {
		c.SilencePadding = 500 * time.Millisecond
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 15 * time.Second
	}
}

// Session is one bidirectional connection. It satisfies the same Complete
// contract as the request/response transport; utterance boundaries and reply
// progress additionally surface on Events.
type Session struct {
	info   types.ConnectionInfo
	cfg    Config
	logger *slog.Logger

	events chan Event

	mu      sync.Mutex
	conn    *websocket.Conn
	active  bool
	pending chan completeResult
}

type completeResult struct {
	text string
	err  error
}

// NewSession creates a session from gateway connection info. Call Connect
// before use.
func NewSession(info types.ConnectionInfo, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Session{
		info:   info,
		cfg:    cfg,
		logger: logger,
		events: make(chan Event, 16),
	}
}

// Events surfaces remote-side signals: speech boundaries, transcript deltas
// and completed replies.
func (s *Session) Events() <-chan Event { return s.events }

// Connect dials the remote socket, sends the session-configuration frame once
// and starts the read loop. Reconnection on unexpected close is attempted with
// a fixed delay for as long as the session stays active.
func (s *Session) Connect(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.active = true
	s.mu.Unlock()

	if err := s.configure(conn); err != nil {
		s.Close()
		return err
	}

	go s.readLoop()
	return nil
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.DialTimeout}
	header := http.Header{}
	if s.info.APIKey != "" {
		header.Set("Authorization", "Bearer "+s.info.APIKey)
	}
	header.Set("OpenAI-Beta", "realtime=v1")

	url := s.info.WebsocketURL
	if s.info.Model != "" {
		url += "?model=" + s.info.Model
	}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, core.NewNetworkError(fmt.Sprintf("dial realtime: %v", err))
	}
	return conn, nil
}

// configure sends the one-time session configuration frame.
func (s *Session) configure(conn *websocket.Conn) error {
	frame := sessionUpdateFrame{
		Type: frameSessionUpdate,
		Session: sessionPayload{
			Modalities:        []string{"text", "audio"},
			Instructions:      s.cfg.Instructions,
			Voice:             s.cfg.Voice,
			InputAudioFormat:  s.cfg.AudioFormat,
			OutputAudioFormat: s.cfg.AudioFormat,
			TurnDetection: &turnDetection{
				Type:              "server_vad",
				Threshold:         s.cfg.VADThreshold,
				SilenceDurationMS: int(s.cfg.SilencePadding / time.Millisecond),
			},
			Temperature:             s.cfg.Sampling.Temperature,
			MaxResponseOutputTokens: s.cfg.Sampling.MaxTokens,
		},
	}
	return s.writeJSON(conn, frame)
}

// Complete submits a conversation and waits for the terminal response event.
// The system message refreshes the session instructions; the remaining
// messages are appended as conversation items. Single-flight: a concurrent
// call fails with ErrCompleteInFlight.
func (s *Session) Complete(ctx context.Context, messages []types.Message, params types.SamplingParams) (string, error) {
	s.mu.Lock()
	if !s.active || s.conn == nil {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	if s.pending != nil {
		s.mu.Unlock()
		return "", ErrCompleteInFlight
	}
	pending := make(chan completeResult, 1)
	s.pending = pending
	conn := s.conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
	}()

	for _, msg := range messages {
		if msg.Role == types.RoleSystem {
			update := sessionUpdateFrame{Type: frameSessionUpdate, Session: sessionPayload{
				Instructions:            msg.Content,
				Temperature:             params.Temperature,
				MaxResponseOutputTokens: params.MaxTokens,
			}}
			if err := s.writeJSON(conn, update); err != nil {
				return "", err
			}
			continue
		}
		item := itemCreateFrame{Type: frameItemCreate, Item: conversationItem{
			Type:    "message",
			Role:    msg.Role,
			Content: []itemContent{{Type: "input_text", Text: msg.Content}},
		}}
		if err := s.writeJSON(conn, item); err != nil {
			return "", err
		}
	}

	if err := s.writeJSON(conn, responseCreateFrame{Type: frameResponseCreate}); err != nil {
		return "", err
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-pending:
		return res.text, res.err
	}
}

// AppendAudio streams one raw PCM frame to the remote input buffer.
func (s *Session) AppendAudio(pcm []byte) error {
	s.mu.Lock()
	conn := s.conn
	active := s.active
	s.mu.Unlock()
	if !active || conn == nil {
		return ErrSessionClosed
	}
	return s.writeJSON(conn, audioAppendFrame{
		Type:  frameAudioAppend,
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
}

// CommitAudio forces an utterance boundary in the remote input buffer.
func (s *Session) CommitAudio() error {
	s.mu.Lock()
	conn := s.conn
	active := s.active
	s.mu.Unlock()
	if !active || conn == nil {
		return ErrSessionClosed
	}
	return s.writeJSON(conn, audioCommitFrame{Type: frameAudioCommit})
}

// Close ends the session. In-flight completions fail with ErrSessionClosed;
// no reconnection is attempted afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	pending := s.pending
	s.conn = nil
	s.active = false
	s.pending = nil
	s.mu.Unlock()

	if pending != nil {
		pending <- completeResult{err: ErrSessionClosed}
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Session) writeJSON(conn *websocket.Conn, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return core.NewNetworkError(fmt.Sprintf("write frame: %v", err))
	}
	return nil
}

func (s *Session) readLoop() {
	for {
		s.mu.Lock()
		conn := s.conn
		active := s.active
		s.mu.Unlock()
		if !active || conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if !s.reconnect() {
				return
			}
			continue
		}

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Warn("undecodable realtime frame", "err", err)
			continue
		}
		s.handleEvent(ev)
	}
}

func (s *Session) handleEvent(ev serverEvent) {
	switch ev.Type {
	case eventSessionCreated:
		s.logger.Debug("realtime session created")
	case eventSpeechStarted:
		s.emit(Event{Kind: EventSpeechStarted})
	case eventSpeechStopped:
		s.emit(Event{Kind: EventSpeechStopped})
	case eventTranscriptDelta:
		s.emit(Event{Kind: EventTranscriptDelta, Text: ev.Delta})
	case eventResponseDone:
		text := ev.Response.replyText()
		s.deliver(completeResult{text: text})
		s.emit(Event{Kind: EventResponseDone, Text: text})
	case eventError:
		message := "realtime error"
		if ev.Error != nil && ev.Error.Message != "" {
			message = ev.Error.Message
		}
		s.deliver(completeResult{err: core.NewAPIError(message)})
	}
}

func (s *Session) deliver(res completeResult) {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if pending != nil {
		pending <- res
	}
}

// emit drops events when the consumer lags; signals are advisory.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// reconnect redials after the fixed delay. Reports whether the read loop
// should keep going.
func (s *Session) reconnect() bool {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if !active {
		return false
	}

	s.logger.Warn("realtime connection lost, reconnecting", "delay", s.cfg.ReconnectDelay)
	time.Sleep(s.cfg.ReconnectDelay)

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
	conn, err := s.dial(ctx)
	cancel()
	if err != nil {
		s.logger.Error("realtime reconnect failed", "err", err)
		// Keep trying while the session is active.
		return true
	}

	if err := s.configure(conn); err != nil {
		s.logger.Error("realtime reconfigure failed", "err", err)
		conn.Close()
		return true
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		conn.Close()
		return false
	}
	s.conn = conn
	s.mu.Unlock()
	return true
}
