package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ziadkadry99/crm-agent/internal/agent"
	"github.com/ziadkadry99/crm-agent/internal/audit"
	"github.com/ziadkadry99/crm-agent/internal/config"
	"github.com/ziadkadry99/crm-agent/internal/db"
	"github.com/ziadkadry99/crm-agent/internal/llm"
	"github.com/ziadkadry99/crm-agent/internal/logging"
	"github.com/ziadkadry99/crm-agent/internal/records"
)

// loadConfig loads the .env file and the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `crmagent init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:  level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
}

// createLLMProviderFromConfig creates an LLM provider based on config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	return llm.NewProvider(llm.Options{
		Provider:          string(cfg.Provider),
		Model:             cfg.Model,
		APIKey:            cfg.APIKey(),
		BaseURL:           cfg.ResolvedBaseURL(),
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})
}

// app bundles the components every command works with.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *db.DB
	records  *records.Store
	audit    *audit.Store
	pipeline *agent.Pipeline
}

// newApp loads config and opens the database. A missing API key is not
// fatal: the pipeline reports it on every request instead.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(cfg.DataDir, "crm.db")
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		if !errors.Is(err, llm.ErrMissingCredential) {
			database.Close()
			return nil, fmt.Errorf("creating LLM provider: %w", err)
		}
		logger.Warn("LLM credential missing; agent requests will fail until it is set",
			zap.String("env", config.APIKeyEnvVar(cfg.Provider)))
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      database,
		records: records.NewStore(database),
		audit:   audit.NewStore(database),
	}
	a.pipeline = agent.New(agent.Options{
		Provider: provider,
		FallbackProvider: func() (llm.Provider, error) {
			return createLLMProviderFromConfig(cfg)
		},
		Store:            a.records,
		Audit:            a.audit,
		Logger:           logger.Named("agent"),
		DefaultRepID:     cfg.DefaultRepID,
		CredentialEnvVar: config.APIKeyEnvVar(cfg.Provider),
	})

	logger.Debug("app ready",
		zap.String("provider", string(cfg.Provider)),
		zap.String("model", cfg.Model),
		zap.String("db", dbPath))
	return a, nil
}

func (a *app) Close() {
	a.logger.Sync()
	a.db.Close()
}
