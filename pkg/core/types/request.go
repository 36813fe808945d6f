package types

// SamplingParams are the fixed generation parameters for one exchange.
// They are configuration data: persona variants differ only in these values
// and in the instruction text, never in code.
type SamplingParams struct {
	MaxTokens        int      `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
}

// CompleteRequest is the wire body of POST /v1/chat.
type CompleteRequest struct {
	Messages []Message `json:"messages"`
	SamplingParams
}

// CompleteResponse is the wire body of a successful POST /v1/chat.
type CompleteResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the wire body of a failed gateway call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConnectionInfo is the wire body of GET /v1/chat: everything a realtime
// client needs to open its own bidirectional session.
type ConnectionInfo struct {
	WebsocketURL string `json:"websocketUrl"`
	APIKey       string `json:"apiKey"`
	Model        string `json:"model"`
}

// Float64 returns a pointer to v, for optional sampling fields.
func Float64(v float64) *float64 { return &v }
