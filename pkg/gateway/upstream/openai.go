package upstream

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/aunorthrop/nora/pkg/core"
	"github.com/aunorthrop/nora/pkg/core/types"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

type openAIProvider struct {
	client openai.Client
	model  string
}

func newOpenAI(apiKey string, httpClient *http.Client) *openAIProvider {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
	)
	return &openAIProvider{client: client, model: DefaultOpenAIModel}
}

// WithModel overrides the chat model.
func (p *openAIProvider) WithModel(model string) *openAIProvider {
	if model != "" {
		p.model = model
	}
	return p
}

func (p *openAIProvider) Complete(ctx context.Context, messages []types.Message, params types.SamplingParams) (string, error) {
	body := openai.ChatCompletionNewParams{
		Messages: toOpenAIMessages(messages),
		Model:    openai.ChatModel(p.model),
	}
	if params.MaxTokens > 0 {
		body.MaxTokens = openai.Int(int64(params.MaxTokens))
	}
	if params.Temperature != nil {
		body.Temperature = openai.Float(*params.Temperature)
	}
	if params.PresencePenalty != nil {
		body.PresencePenalty = openai.Float(*params.PresencePenalty)
	}
	if params.FrequencyPenalty != nil {
		body.FrequencyPenalty = openai.Float(*params.FrequencyPenalty)
	}

	resp, err := p.client.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", core.NewMalformedError("empty completion from upstream")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func toOpenAIMessages(messages []types.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case types.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// classifyOpenAIError folds SDK errors into the gateway taxonomy.
func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return core.NewNetworkError(err.Error())
	}

	switch {
	case apiErr.Code == "insufficient_quota":
		return core.NewQuotaError("API quota exceeded. Please try again later.")
	case apiErr.Code == "invalid_api_key",
		apiErr.StatusCode == http.StatusUnauthorized,
		apiErr.StatusCode == http.StatusForbidden:
		return core.NewAuthenticationError("API configuration error. Please contact support.")
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return core.NewRateLimitError(apiErr.Message)
	default:
		message := apiErr.Message
		if message == "" {
			message = "Failed to get response from AI"
		}
		return core.NewAPIError(message)
	}
}
