package config

// ProviderPreset describes the default model and endpoint for a provider.
type ProviderPreset struct {
	Model   string
	BaseURL string
}

var providerPresets = map[ProviderType]ProviderPreset{
	ProviderGroq:       {Model: "llama-3.1-8b-instant", BaseURL: "https://api.groq.com/openai/v1"},
	ProviderOpenAI:     {Model: "gpt-4o-mini"},
	ProviderOpenRouter: {Model: "meta-llama/llama-3.1-8b-instruct", BaseURL: "https://openrouter.ai/api/v1"},
	ProviderOllama:     {Model: "llama3.1", BaseURL: "http://localhost:11434"},
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderGroq,
		Model:             "llama-3.1-8b-instant",
		Temperature:       0.7,
		MaxTokens:         1024,
		RequestsPerMinute: 30,
		DataDir:           "data",
		Port:              8000,
		DefaultRepID:      "default_rep",
		CORSAllowAll:      true,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// GetPreset returns the preset for the given provider.
// Returns the Groq preset if the provider is unknown.
func GetPreset(provider ProviderType) ProviderPreset {
	if preset, ok := providerPresets[provider]; ok {
		return preset
	}
	return providerPresets[ProviderGroq]
}

// ResolvedBaseURL returns the configured base URL, falling back to the
// provider preset.
func (c *Config) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return GetPreset(c.Provider).BaseURL
}
