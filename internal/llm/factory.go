package llm

import (
	"fmt"
)

// Options selects and configures a provider.
type Options struct {
	Provider          string // groq, openai, openrouter, ollama
	Model             string
	APIKey            string
	BaseURL           string
	Temperature       float64
	MaxTokens         int
	RequestsPerMinute int
}

// NewProvider creates a new LLM provider from opts. Hosted providers with no
// APIKey return an *Unavailable provider together with an error wrapping
// ErrMissingCredential, so callers can still wire it and report the problem
// per request.
func NewProvider(opts Options) (Provider, error) {
	var p Provider

	switch opts.Provider {
	case "groq", "openai", "openrouter":
		if opts.APIKey == "" {
			err := fmt.Errorf("%w: %s API key is not set", ErrMissingCredential, opts.Provider)
			return &Unavailable{ProviderName: opts.Provider, Err: err}, err
		}
		p = NewOpenAIProvider(OpenAIOptions{
			Name:        opts.Provider,
			APIKey:      opts.APIKey,
			BaseURL:     opts.BaseURL,
			Model:       opts.Model,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
		})

	case "ollama":
		host := opts.BaseURL
		if host == "" {
			host = "http://localhost:11434"
		}
		p = NewOllamaProvider(host, opts.Model, opts.Temperature)

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", opts.Provider)
	}

	return NewRateLimitedProvider(p, opts.RequestsPerMinute), nil
}
