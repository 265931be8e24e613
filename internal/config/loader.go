package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/MrWong99/aura/internal/locale"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"live":   {"gemini-live"},
	"search": {"gemini-search"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides
// and validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := ApplyEnv(cfg, nil); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("live", cfg.Providers.Live.Name)
	validateProviderName("search", cfg.Providers.Search.Name)
	for i, fb := range cfg.Providers.LiveFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.live_fallbacks[%d].name is required", i))
		}
		validateProviderName("live", fb.Name)
	}
	for i, fb := range cfg.Providers.SearchFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.search_fallbacks[%d].name is required", i))
		}
		validateProviderName("search", fb.Name)
	}
	if cfg.Providers.Live.Name == "" {
		slog.Warn("providers.live is not configured; sessions cannot be started")
	}
	if cfg.Providers.Search.Name == "" {
		slog.Warn("providers.search is not configured; web_search calls will fail")
	}

	// Timings
	if cfg.Reminders.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("reminders.tick_interval %s must not be negative", cfg.Reminders.TickInterval))
	}
	if cfg.Tools.SearchTimeout < 0 {
		errs = append(errs, fmt.Errorf("tools.search_timeout %s must not be negative", cfg.Tools.SearchTimeout))
	}

	// Locale
	if _, err := locale.ParseLanguage(cfg.Locale.Language); err != nil {
		errs = append(errs, fmt.Errorf("locale.language: %w", err))
	}
	if err := locale.Validate(cfg.Locale.Strings); err != nil {
		errs = append(errs, fmt.Errorf("locale.strings: %w", err))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
