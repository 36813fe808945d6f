// Package realtime implements the bidirectional transport variant: a
// persistent WebSocket session configured once, exchanging incremental
// audio/text frames with the remote side.
package realtime

// Client frame types.
const (
	frameSessionUpdate   = "session.update"
	frameItemCreate      = "conversation.item.create"
	frameResponseCreate  = "response.create"
	frameAudioAppend     = "input_audio_buffer.append"
	frameAudioCommit     = "input_audio_buffer.commit"
)

// Server event types.
const (
	eventSessionCreated  = "session.created"
	eventSpeechStarted   = "input_audio_buffer.speech_started"
	eventSpeechStopped   = "input_audio_buffer.speech_stopped"
	eventTranscriptDelta = "response.audio_transcript.delta"
	eventResponseDone    = "response.done"
	eventError           = "error"
)

// turnDetection configures server-side voice activity detection.
type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

// sessionPayload is the one-time session configuration.
type sessionPayload struct {
	Modalities              []string       `json:"modalities,omitempty"`
	Instructions            string         `json:"instructions,omitempty"`
	Voice                   string         `json:"voice,omitempty"`
	InputAudioFormat        string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string         `json:"output_audio_format,omitempty"`
	TurnDetection           *turnDetection `json:"turn_detection,omitempty"`
	Temperature             *float64       `json:"temperature,omitempty"`
	MaxResponseOutputTokens int            `json:"max_response_output_tokens,omitempty"`
}

type sessionUpdateFrame struct {
	Type    string         `json:"type"`
	Session sessionPayload `json:"session"`
}

type itemContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type conversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []itemContent `json:"content"`
}

type itemCreateFrame struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type responseCreateFrame struct {
	Type string `json:"type"`
}

type audioAppendFrame struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type audioCommitFrame struct {
	Type string `json:"type"`
}

// serverEvent is the decoded union of all inbound frames.
type serverEvent struct {
	Type     string           `json:"type"`
	Delta    string           `json:"delta,omitempty"`
	Response *responsePayload `json:"response,omitempty"`
	Error    *eventErrorBody  `json:"error,omitempty"`
}

type responsePayload struct {
	Output []outputItem `json:"output,omitempty"`
}

type outputItem struct {
	Content []outputContent `json:"content,omitempty"`
}

type outputContent struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

type eventErrorBody struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// replyText extracts the completed reply from a response.done payload: the
// first output item's text, falling back to the audio transcript.
func (p *responsePayload) replyText() string {
	if p == nil {
		return ""
	}
	for _, item := range p.Output {
		for _, content := range item.Content {
			if content.Text != "" {
				return content.Text
			}
			if content.Transcript != "" {
				return content.Transcript
			}
		}
	}
	return ""
}
