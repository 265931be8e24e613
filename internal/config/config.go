// Package config provides the configuration schema, loader, environment
// overrides and provider registry for the Aura voice assistant.
package config

import "time"

// LogLevel controls log verbosity for the Aura server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Aura.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Assistant AssistantConfig `yaml:"assistant"`
	Reminders RemindersConfig `yaml:"reminders"`
	Tools     ToolsConfig     `yaml:"tools"`
	Audio     AudioConfig     `yaml:"audio"`
	Locale    LocaleConfig    `yaml:"locale"`
}

// ServerConfig holds network and logging settings for the Aura server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig selects the live conversation and web search providers.
// Each entry names a provider registered in the [Registry]. Fallbacks are
// tried in order when the primary fails.
type ProvidersConfig struct {
	Live            ProviderEntry   `yaml:"live"`
	LiveFallbacks   []ProviderEntry `yaml:"live_fallbacks"`
	Search          ProviderEntry   `yaml:"search"`
	SearchFallbacks []ProviderEntry `yaml:"search_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini-live").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// AssistantConfig shapes the assistant's persona. Changes apply to the next
// session.
type AssistantConfig struct {
	// Instructions is the system prompt sent on connect.
	Instructions string `yaml:"instructions"`

	// Voice is the provider's prebuilt voice name (e.g., "Puck").
	Voice string `yaml:"voice"`
}

// RemindersConfig tunes the reminder scheduler.
type RemindersConfig struct {
	// TickInterval is the polling cadence. Default: 1s.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// ToolsConfig tunes tool execution.
type ToolsConfig struct {
	// SearchTimeout bounds a single web search. Default: 30s.
	SearchTimeout time.Duration `yaml:"search_timeout"`
}

// AudioConfig configures the host audio bridge.
type AudioConfig struct {
	// AllowedOrigins lists host patterns allowed to open the audio socket
	// from a browser. Empty allows same-origin connections only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LocaleConfig selects and overrides user-facing strings.
type LocaleConfig struct {
	// Language picks the built-in catalog: "en" or "es". Default: "en".
	Language string `yaml:"language"`

	// Strings maps message keys to replacement templates.
	Strings map[string]string `yaml:"strings"`
}
