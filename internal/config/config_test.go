package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envMap(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envMap(nil))
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, ProviderGemini, cfg.LLM.Provider)
	require.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	require.Equal(t, "API_KEY", cfg.LLM.APIKeyEnv)
	require.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	require.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	require.Equal(t, 30*time.Minute, cfg.Session.IdleTTL)
	require.Equal(t, 1000, cfg.Session.MaxMessageLength)
	require.Empty(t, cfg.CatalogFile)
	require.Empty(t, cfg.ParamPrefix)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"PORT":               "127.0.0.1:9000",
		"LLM_PROVIDER":       "OpenAI",
		"LLM_BASE_URL":       "http://localhost:11434/v1",
		"LLM_TEMPERATURE":    "0.2",
		"LLM_TIMEOUT":        "5s",
		"SESSION_IDLE_TTL":   "10m",
		"MAX_MESSAGE_LENGTH": "300",
		"CATALOG_FILE":       "/etc/boraha/catalog.yaml",
		"PARAM_PREFIX":       "/boraha-concierge/",
	}))
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	require.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	require.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	require.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	require.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	require.Equal(t, 10*time.Minute, cfg.Session.IdleTTL)
	require.Equal(t, 300, cfg.Session.MaxMessageLength)
	require.Equal(t, "/etc/boraha/catalog.yaml", cfg.CatalogFile)
	require.Equal(t, "/boraha-concierge", cfg.ParamPrefix)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"provider":         {"LLM_PROVIDER": "claude"},
		"port":             {"PORT": "80 80"},
		"temperature":      {"LLM_TEMPERATURE": "warm"},
		"temperature high": {"LLM_TEMPERATURE": "3"},
		"timeout":          {"LLM_TIMEOUT": "soon"},
		"idle ttl":         {"SESSION_IDLE_TTL": "-1m"},
	}
	for name, vals := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(envMap(vals))
			require.Error(t, err)
		})
	}
}

func TestLoad_BadMaxMessageLengthFallsBack(t *testing.T) {
	cfg, err := load(envMap(map[string]string{"MAX_MESSAGE_LENGTH": "lots"}))
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.Session.MaxMessageLength)
}
