package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aunorthrop/nora/pkg/core"
	"github.com/aunorthrop/nora/pkg/core/types"
	"github.com/aunorthrop/nora/pkg/gateway/config"
	"github.com/aunorthrop/nora/pkg/gateway/mw"
	"github.com/aunorthrop/nora/pkg/gateway/upstream"
)

// Proxy defaults when the client omits sampling fields.
const (
	DefaultMaxTokens        = 150
	DefaultTemperature      = 0.7
	DefaultPresencePenalty  = 0.3
	DefaultFrequencyPenalty = 0.3
)

type ChatHandler struct {
	Config   config.Config
	Provider upstream.Provider
	Logger   *slog.Logger
}

func (h ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.connectionInfo(w, r)
	case http.MethodPost:
		h.complete(w, r)
	default:
		writeErrorJSON(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// connectionInfo hands realtime clients everything they need to open their
// own bidirectional session.
func (h ChatHandler) connectionInfo(w http.ResponseWriter, r *http.Request) {
	if h.Config.OpenAIKey == "" {
		writeErrorJSON(w, http.StatusInternalServerError, "OpenAI API key not configured")
		return
	}
	writeJSON(w, http.StatusOK, types.ConnectionInfo{
		WebsocketURL: h.Config.RealtimeURL,
		APIKey:       h.Config.OpenAIKey,
		Model:        h.Config.RealtimeModel,
	})
}

func (h ChatHandler) complete(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req types.CompleteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeErrorJSON(w, http.StatusBadRequest, "Messages array is required")
		return
	}
	if len(req.Messages) > h.Config.MaxMessages {
		writeErrorJSON(w, http.StatusBadRequest, "too many messages")
		return
	}

	params := req.SamplingParams
	if params.MaxTokens <= 0 {
		params.MaxTokens = DefaultMaxTokens
	}
	if params.Temperature == nil {
		params.Temperature = types.Float64(DefaultTemperature)
	}
	if params.PresencePenalty == nil {
		params.PresencePenalty = types.Float64(DefaultPresencePenalty)
	}
	if params.FrequencyPenalty == nil {
		params.FrequencyPenalty = types.Float64(DefaultFrequencyPenalty)
	}

	reply, err := h.Provider.Complete(r.Context(), req.Messages, params)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("upstream completion failed", "request_id", reqID, "err", err)
		}
		writeErrorJSON(w, statusForError(err), messageForError(err))
		return
	}

	writeJSON(w, http.StatusOK, types.CompleteResponse{Response: reply})
}

// statusForError maps the error taxonomy to the wire contract: quota failures
// are billing problems (402), auth failures are 401, everything else is the
// gateway's fault (500).
func statusForError(err error) int {
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		return http.StatusInternalServerError
	}
	switch coreErr.Type {
	case core.ErrQuota:
		return http.StatusPaymentRequired
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func messageForError(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr.Message != "" {
		return coreErr.Message
	}
	return "Internal server error. Please try again."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: message})
}
