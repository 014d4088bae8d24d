// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Session SessionConfig

	// CatalogFile overrides the embedded catalog when set.
	CatalogFile string
	// ParamPrefix enables SSM credential lookup under <prefix>/api-key.
	ParamPrefix string
}

type ServerConfig struct {
	Addr string
}

type LLMConfig struct {
	Provider    string
	APIKeyEnv   string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

type SessionConfig struct {
	IdleTTL          time.Duration
	MaxMessageLength int
}

// Load builds a Config from the process environment.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	addr, err := serverAddr(env("PORT", "8080"))
	if err != nil {
		return nil, err
	}

	provider := strings.ToLower(env("LLM_PROVIDER", ProviderGemini))
	var model string
	switch provider {
	case ProviderGemini:
		model = env("LLM_MODEL", "gemini-2.5-flash")
	case ProviderOpenAI:
		model = env("LLM_MODEL", "gpt-4o-mini")
	default:
		return nil, fmt.Errorf("config: unsupported LLM_PROVIDER %q", provider)
	}

	temperature, err := envFloat(env, "LLM_TEMPERATURE", 0.7)
	if err != nil {
		return nil, err
	}
	if temperature < 0 || temperature > 2 {
		return nil, fmt.Errorf("config: LLM_TEMPERATURE must be within [0, 2], got %v", temperature)
	}
	timeout, err := envDuration(env, "LLM_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	idleTTL, err := envDuration(env, "SESSION_IDLE_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{Addr: addr},
		LLM: LLMConfig{
			Provider:    provider,
			APIKeyEnv:   "API_KEY",
			Model:       model,
			BaseURL:     env("LLM_BASE_URL", ""),
			Temperature: temperature,
			Timeout:     timeout,
		},
		Session: SessionConfig{
			IdleTTL:          idleTTL,
			MaxMessageLength: envInt(env, "MAX_MESSAGE_LENGTH", 1000),
		},
		CatalogFile: env("CATALOG_FILE", ""),
		ParamPrefix: strings.TrimRight(env("PARAM_PREFIX", ""), "/"),
	}, nil
}

func serverAddr(port string) (string, error) {
	if strings.Contains(port, ":") {
		// ":8080" or "127.0.0.1:8080"
		return port, nil
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("config: invalid PORT value: %q", port)
	}
	return ":" + port, nil
}

func envInt(env func(string, string) string, key string, def int) int {
	n, err := strconv.Atoi(env(key, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envFloat(env func(string, string) string, key string, def float64) (float64, error) {
	v := env(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
	}
	return f, nil
}

func envDuration(env func(string, string) string, key string, def time.Duration) (time.Duration, error) {
	v := env(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}
