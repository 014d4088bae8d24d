// Package app wires configuration, catalog, credentials and the chat backend
// into a ready-to-serve handler. Both entrypoints build through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"boraha-concierge/handler"
	"boraha-concierge/internal/catalog"
	"boraha-concierge/internal/concierge"
	"boraha-concierge/internal/config"
	"boraha-concierge/internal/credential"
	"boraha-concierge/internal/integrations/gemini"
	"boraha-concierge/internal/integrations/openai"
	"boraha-concierge/internal/integrations/paramstore"
)

type App struct {
	Config   *config.Config
	Catalog  *catalog.Catalog
	Registry *concierge.Registry
	Handler  *handler.Handler
}

// New builds the application from cfg. The SSM client is only created when
// cfg.ParamPrefix is set.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("app: load catalog: %w", err)
	}

	var ssmSource credential.Source
	if cfg.ParamPrefix != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load AWS config: %w", err)
		}
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, err
		}
		ts, err := paramstore.NewTokenSource(ssmClient, cfg.ParamPrefix)
		if err != nil {
			return nil, err
		}
		logger.Info("SSM credential lookup enabled", "parameter", ts.Name())
		ssmSource = ts
	}

	keys, err := Credentials(cfg, ssmSource)
	if err != nil {
		return nil, err
	}
	if _, err := credential.NewEnv(cfg.LLM.APIKeyEnv).APIKey(ctx); err != nil && ssmSource == nil {
		logger.Warn("no API key configured; the concierge will answer with the fallback message", "env", cfg.LLM.APIKeyEnv)
	}

	backend, err := NewBackend(cfg.LLM, keys, logger)
	if err != nil {
		return nil, err
	}
	return assemble(cfg, cat, backend, logger)
}

// Credentials returns the cached key source: the environment first, then the
// optional SSM source.
func Credentials(cfg *config.Config, ssmSource credential.Source) (*credential.Cached, error) {
	chain := credential.Chain{credential.NewEnv(cfg.LLM.APIKeyEnv)}
	if ssmSource != nil {
		chain = append(chain, ssmSource)
	}
	return credential.NewCached(chain)
}

// NewBackend returns the remote chat backend selected by cfg.Provider.
func NewBackend(cfg config.LLMConfig, keys credential.Source, logger *slog.Logger) (concierge.Backend, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case config.ProviderGemini:
		opts := []gemini.Option{gemini.WithHTTPClient(httpClient), gemini.WithLogger(logger)}
		if cfg.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
		}
		c, err := gemini.NewClient(keys, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithHTTPClient(httpClient)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		c, err := openai.NewClient(keys, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("app: unsupported provider %q", cfg.Provider)
	}
}

func assemble(cfg *config.Config, cat *catalog.Catalog, backend concierge.Backend, logger *slog.Logger) (*App, error) {
	factory := func(id string) (*concierge.Session, error) {
		return concierge.NewSession(backend, cat,
			concierge.WithLogger(logger.With("session_id", id)),
			concierge.WithModel(cfg.LLM.Model),
			concierge.WithTemperature(cfg.LLM.Temperature),
		)
	}
	registry, err := concierge.NewRegistry(factory, cfg.Session.IdleTTL, logger)
	if err != nil {
		return nil, err
	}

	h, err := handler.NewHandler(registry, cat, cfg.Session.MaxMessageLength, logger)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Catalog: cat, Registry: registry, Handler: h}, nil
}
