package config

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderGroq       ProviderType = "groq"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOllama     ProviderType = "ollama"
)

// Config is the top-level crm-agent configuration, corresponding to .crmagent.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	Temperature       float64      `yaml:"temperature" koanf:"temperature"`
	MaxTokens         int          `yaml:"max_tokens" koanf:"max_tokens"`
	BaseURL           string       `yaml:"base_url,omitempty" koanf:"base_url"`
	RequestsPerMinute int          `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	DataDir           string       `yaml:"data_dir" koanf:"data_dir"`
	Port              int          `yaml:"port" koanf:"port"`
	DefaultRepID      string       `yaml:"default_rep_id" koanf:"default_rep_id"`
	CORSAllowAll      bool         `yaml:"cors_allow_all" koanf:"cors_allow_all"`
	Log               LogConfig    `yaml:"log" koanf:"log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
	File   string `yaml:"file,omitempty" koanf:"file"`
}
