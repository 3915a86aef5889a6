package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
// Any OpenAI-compatible endpoint (Groq, OpenRouter) works by overriding the
// base URL.
type OpenAIProvider struct {
	client      *openai.Client
	name        string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// OpenAIOptions configures an OpenAIProvider.
type OpenAIOptions struct {
	Name        string // reported by Name(); defaults to "openai"
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	name := opts.Name
	if name == "" {
		name = "openai"
	}
	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(cfg),
		name:        name,
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

// CheckCredential fails when no API key was supplied.
func (p *OpenAIProvider) CheckCredential() error {
	if p.apiKey == "" {
		return fmt.Errorf("%w for %s", ErrMissingCredential, p.name)
	}
	return nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := p.CheckCredential(); err != nil {
		return nil, &ProviderError{Provider: p.name, Err: err}
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.temperature
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	}

	if req.JSONMode {
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 401 {
			err = fmt.Errorf("%w: credential rejected: %s", ErrMissingCredential, apiErr.Message)
		}
		return nil, &ProviderError{Provider: p.name, Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: p.name, Err: errors.New("response contained no choices")}
	}

	return &CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}
