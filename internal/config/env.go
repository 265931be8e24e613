package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides are environment variables that take precedence over the file.
type envOverrides struct {
	LogLevel     string `env:"AURA_LOG_LEVEL"`
	ListenAddr   string `env:"AURA_LISTEN_ADDR"`
	GeminiAPIKey string `env:"AURA_GEMINI_API_KEY"`
	LiveModel    string `env:"AURA_LIVE_MODEL"`
	SearchModel  string `env:"AURA_SEARCH_MODEL"`
	Language     string `env:"AURA_LANGUAGE"`
}

// ApplyEnv overlays environment overrides onto cfg. environ replaces the
// process environment when non-nil. The Gemini API key only fills provider
// entries that have no key of their own.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("config: parse environment: %w", err)
	}

	if o.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(o.LogLevel)
	}
	if o.ListenAddr != "" {
		cfg.Server.ListenAddr = o.ListenAddr
	}
	if o.LiveModel != "" {
		cfg.Providers.Live.Model = o.LiveModel
	}
	if o.SearchModel != "" {
		cfg.Providers.Search.Model = o.SearchModel
	}
	if o.Language != "" {
		cfg.Locale.Language = o.Language
	}
	if o.GeminiAPIKey != "" {
		for _, e := range providerEntries(cfg) {
			if e.APIKey == "" {
				e.APIKey = o.GeminiAPIKey
			}
		}
	}
	return nil
}

// providerEntries returns pointers to every provider entry in cfg.
func providerEntries(cfg *Config) []*ProviderEntry {
	out := []*ProviderEntry{&cfg.Providers.Live, &cfg.Providers.Search}
	for i := range cfg.Providers.LiveFallbacks {
		out = append(out, &cfg.Providers.LiveFallbacks[i])
	}
	for i := range cfg.Providers.SearchFallbacks {
		out = append(out, &cfg.Providers.SearchFallbacks[i])
	}
	return out
}
