package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI calls the Chat Completions API, or any compatible endpoint.
type OpenAI struct {
	client *openai.Client
	Model  string
	hasKey bool
}

// NewOpenAI creates an OpenAI client. baseURL may point at a compatible server.
func NewOpenAI(model, apiKey, baseURL string) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		Model:  model,
		hasKey: apiKey != "",
	}
}

// usesCompletionTokens reports whether model is a reasoning model that
// rejects max_tokens in favor of max_completion_tokens.
func usesCompletionTokens(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (o *OpenAI) buildRequest(req Request) openai.ChatCompletionRequest {
	r := openai.ChatCompletionRequest{
		Model: o.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: float32(req.Params.Temperature),
		TopP:        float32(req.Params.TopP),
	}
	// Chat Completions has no top-k or safety settings; they are dropped.
	if n := req.Params.MaxOutputTokens; n > 0 {
		if usesCompletionTokens(o.Model) {
			r.MaxCompletionTokens = n
		} else {
			r.MaxTokens = n
		}
	}
	return r
}

// Generate sends the prompt as a single user message in JSON mode.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	if !o.hasKey {
		return "", fmt.Errorf("openai: %w (set OPENAI_API_KEY)", ErrNoAPIKey)
	}

	resp, err := o.client.CreateChatCompletion(ctx, o.buildRequest(req))
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w: no choices", ErrInvalidResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", fmt.Errorf("openai: %w", ErrBlocked)
	}
	if choice.Message.Content == "" {
		return "", fmt.Errorf("openai: %w: empty message", ErrInvalidResponse)
	}
	return choice.Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("openai: %w: %s", ErrRateLimited, apiErr.Message)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("openai: %w: %s", ErrUnauthorized, apiErr.Message)
		}
		if apiErr.Code == "content_filter" {
			return fmt.Errorf("openai: %w: %s", ErrBlocked, apiErr.Message)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("openai: %w: %v", ErrRateLimited, reqErr.Err)
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}
