package config

import (
	"maps"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AssistantChanged is true when instructions or voice differ. The new
	// persona applies from the next session.
	AssistantChanged bool

	// LocaleChanged is true when the language was switched or a string
	// override was added, removed or edited.
	LocaleChanged bool

	// RestartRequired lists top-level settings that changed but only take
	// effect after a restart.
	RestartRequired []string
}

// Changed reports whether d contains any hot-reloadable change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.AssistantChanged || d.LocaleChanged
}

// Empty reports whether the two configs are equivalent for Aura.
func (d ConfigDiff) Empty() bool {
	return !d.Changed() && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Assistant != new.Assistant {
		d.AssistantChanged = true
	}

	if old.Locale.Language != new.Locale.Language || !maps.Equal(old.Locale.Strings, new.Locale.Strings) {
		d.LocaleChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !sameEntry(old.Providers.Live, new.Providers.Live) || len(old.Providers.LiveFallbacks) != len(new.Providers.LiveFallbacks) {
		d.RestartRequired = append(d.RestartRequired, "providers.live")
	}
	if !sameEntry(old.Providers.Search, new.Providers.Search) || len(old.Providers.SearchFallbacks) != len(new.Providers.SearchFallbacks) {
		d.RestartRequired = append(d.RestartRequired, "providers.search")
	}
	if !sameTLS(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server.tls")
	}
	if old.Reminders != new.Reminders {
		d.RestartRequired = append(d.RestartRequired, "reminders")
	}
	if old.Tools != new.Tools {
		d.RestartRequired = append(d.RestartRequired, "tools")
	}
	if !slices.Equal(old.Audio.AllowedOrigins, new.Audio.AllowedOrigins) {
		d.RestartRequired = append(d.RestartRequired, "audio.allowed_origins")
	}

	return d
}

// sameEntry compares the scalar fields of two provider entries.
func sameEntry(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}

func sameTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
