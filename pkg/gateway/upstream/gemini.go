package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/aunorthrop/nora/pkg/core"
	"github.com/aunorthrop/nora/pkg/core/types"
)

// DefaultGeminiModel is the generation model used when none is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

type geminiProvider struct {
	client *genai.Client
	model  string
}

func newGemini(ctx context.Context, apiKey string, httpClient *http.Client) (*geminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &geminiProvider{client: client, model: DefaultGeminiModel}, nil
}

// WithModel overrides the generation model.
func (p *geminiProvider) WithModel(model string) *geminiProvider {
	if model != "" {
		p.model = model
	}
	return p
}

func (p *geminiProvider) Complete(ctx context.Context, messages []types.Message, params types.SamplingParams) (string, error) {
	config := &genai.GenerateContentConfig{}
	if params.MaxTokens > 0 {
		config.MaxOutputTokens = int32(params.MaxTokens)
	}
	if params.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*params.Temperature))
	}
	if params.PresencePenalty != nil {
		config.PresencePenalty = genai.Ptr(float32(*params.PresencePenalty))
	}
	if params.FrequencyPenalty != nil {
		config.FrequencyPenalty = genai.Ptr(float32(*params.FrequencyPenalty))
	}

	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			config.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", core.NewMalformedError("empty completion from upstream")
	}
	return text, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return core.NewNetworkError(err.Error())
	}
	switch apiErr.Code {
	case http.StatusTooManyRequests:
		// The Gemini API reports exhausted quota as 429 RESOURCE_EXHAUSTED.
		if strings.Contains(apiErr.Status, "RESOURCE_EXHAUSTED") {
			return core.NewQuotaError("API quota exceeded. Please try again later.")
		}
		return core.NewRateLimitError(apiErr.Message)
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.NewAuthenticationError("API configuration error. Please contact support.")
	default:
		message := apiErr.Message
		if message == "" {
			message = "Failed to get response from AI"
		}
		return core.NewAPIError(message)
	}
}
