// Package httpchat implements the request/response transport variant: one
// POST per exchange against the gateway's /v1/chat endpoint.
package httpchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aunorthrop/nora/pkg/core"
	"github.com/aunorthrop/nora/pkg/core/types"
)

const defaultTimeout = 90 * time.Second

// Client talks the gateway chat wire format.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient creates a transport against baseURL (e.g. "http://localhost:8080").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete submits the conversation and returns the reply text. Failures are
// typed *core.Error values so callers can branch on the failure class.
func (c *Client) Complete(ctx context.Context, messages []types.Message, params types.SamplingParams) (string, error) {
	body, err := json.Marshal(types.CompleteRequest{Messages: messages, SamplingParams: params})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", core.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", c.parseError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", core.NewNetworkError(fmt.Sprintf("read response: %v", err))
	}

	var out types.CompleteResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", core.NewMalformedError(fmt.Sprintf("decode response: %v", err))
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", core.NewMalformedError("empty completion")
	}
	return out.Response, nil
}

// parseError maps a non-success gateway response to a typed error.
func (c *Client) parseError(resp *http.Response) *core.Error {
	message := "request failed"
	var body types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		message = body.Error
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.NewAuthenticationError(message)
	case http.StatusPaymentRequired:
		return core.NewQuotaError(message)
	case http.StatusTooManyRequests:
		return core.NewRateLimitError(message)
	case http.StatusBadRequest:
		return core.NewInvalidRequestError(message)
	default:
		return core.NewAPIError(message)
	}
}

// FetchConnectionInfo retrieves the realtime connection details served by
// GET /v1/chat.
func (c *Client) FetchConnectionInfo(ctx context.Context) (types.ConnectionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/chat", nil)
	if err != nil {
		return types.ConnectionInfo{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.ConnectionInfo{}, core.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return types.ConnectionInfo{}, c.parseError(resp)
	}

	var info types.ConnectionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return types.ConnectionInfo{}, core.NewMalformedError(fmt.Sprintf("decode connection info: %v", err))
	}
	if info.WebsocketURL == "" {
		return types.ConnectionInfo{}, core.NewMalformedError("missing websocket url")
	}
	return info, nil
}
