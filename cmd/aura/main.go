// Command aura is the main entry point for the Aura voice assistant server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/aura/internal/config"
	"github.com/MrWong99/aura/internal/health"
	"github.com/MrWong99/aura/internal/locale"
	"github.com/MrWong99/aura/internal/observe"
	"github.com/MrWong99/aura/internal/resilience"
	"github.com/MrWong99/aura/internal/server"
	"github.com/MrWong99/aura/internal/session"
	"github.com/MrWong99/aura/pkg/audio/bridge"
	"github.com/MrWong99/aura/pkg/provider/live"
	geminilive "github.com/MrWong99/aura/pkg/provider/live/gemini"
	"github.com/MrWong99/aura/pkg/provider/search"
	geminisearch "github.com/MrWong99/aura/pkg/provider/search/gemini"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "aura.yaml", "path to the YAML configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	// A missing .env file is normal outside local development.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "aura: load %s: %v\n", *envFile, err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "aura: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "aura: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, level := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("aura starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "aura"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg)

	liveProvider, searchProvider, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	lang, err := locale.ParseLanguage(cfg.Locale.Language)
	if err != nil {
		slog.Error("invalid locale language", "err", err)
		return 1
	}
	catalog, err := locale.New(lang, cfg.Locale.Strings)
	if err != nil {
		slog.Error("invalid locale overrides", "err", err)
		return 1
	}

	// ── Session ───────────────────────────────────────────────────────────────
	host := bridge.New(bridge.WithOriginPatterns(cfg.Audio.AllowedOrigins...))

	opts := []session.Option{
		session.WithCatalog(catalog),
		session.WithAssistant(cfg.Assistant.Instructions, cfg.Assistant.Voice),
		session.WithTickInterval(cfg.Reminders.TickInterval),
		session.WithSearchTimeout(cfg.Tools.SearchTimeout),
	}
	if searchProvider != nil {
		opts = append(opts, session.WithSearch(searchProvider))
	}
	ctrl := session.New(host.Microphone(), host.Speaker(), liveProvider, opts...)

	// ── Hot reload ────────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(next *config.Config, d config.ConfigDiff) {
		applyReload(d, next, level, ctrl, catalog)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	}

	// ── HTTP ──────────────────────────────────────────────────────────────────
	probes := health.New(
		health.Configured("live", func() string { return cfg.Providers.Live.Name }),
		health.Available("live-breakers", liveProvider.Available),
		health.State("audio", func() string {
			if host.Connected() {
				return "connected"
			}
			return "disconnected"
		}, "disconnected"),
		health.State("session", func() string { return string(ctrl.Status()) }, string(session.StatusError)),
	)
	if searchProvider != nil {
		probes.Add(health.Available("search-breakers", searchProvider.Available))
	}
	handler := server.New(ctrl,
		server.WithAudio(host),
		server.WithHealth(probes),
		server.WithMetricsHandler(telemetry.MetricsHandler()),
	)
	httpServer := &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return ctrl.Run(gctx)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		ctrl.Stop()
		return httpServer.Shutdown(shutdownCtx)
	})

	slog.Info("server ready, press Ctrl+C to shut down", "addr", httpServer.Addr)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// applyReload applies the hot-reloadable parts of a config change.
func applyReload(d config.ConfigDiff, cfg *config.Config, level *slog.LevelVar, ctrl *session.Controller, catalog *locale.Catalog) {
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AssistantChanged {
		ctrl.SetAssistant(cfg.Assistant.Instructions, cfg.Assistant.Voice)
		slog.Info("assistant updated, applies to the next session")
	}
	if d.LocaleChanged {
		lang, err := locale.ParseLanguage(cfg.Locale.Language)
		if err == nil {
			err = catalog.Replace(lang, cfg.Locale.Strings)
		}
		if err != nil {
			slog.Warn("locale reload rejected", "err", err)
		} else {
			slog.Info("locale reloaded", "language", lang)
		}
	}
	for _, field := range d.RestartRequired {
		slog.Warn("config change requires a restart", "field", field)
	}
}

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return ":8080"
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider category names to the implementations that
// ship with Aura. Used for startup logging.
var builtinProviders = map[string][]string{
	"live":   {"gemini-live"},
	"search": {"gemini-search"},
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	reg.RegisterLive("gemini-live", func(entry config.ProviderEntry) (live.Provider, error) {
		var opts []geminilive.Option
		if entry.Model != "" {
			opts = append(opts, geminilive.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(entry.BaseURL))
		}
		return geminilive.New(entry.APIKey, opts...), nil
	})

	reg.RegisterSearch("gemini-search", func(entry config.ProviderEntry) (search.Provider, error) {
		var opts []geminisearch.Option
		if entry.Model != "" {
			opts = append(opts, geminisearch.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminisearch.WithBaseURL(entry.BaseURL))
		}
		return geminisearch.New(ctx, entry.APIKey, opts...)
	})

	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates the configured providers. Fallback entries are
// chained behind the primary with a circuit breaker per entry. The search
// provider is nil when none is configured.
func buildProviders(cfg *config.Config, reg *config.Registry) (*resilience.LiveFallback, *resilience.SearchFallback, error) {
	if cfg.Providers.Live.Name == "" {
		return nil, nil, errors.New("providers.live is required")
	}
	primary, err := reg.CreateLive(cfg.Providers.Live)
	if err != nil {
		return nil, nil, fmt.Errorf("create live provider %q: %w", cfg.Providers.Live.Name, err)
	}
	breakers := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, _, to resilience.State) {
				observe.DefaultMetrics().RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	}
	liveProvider := resilience.NewLiveFallback(primary, cfg.Providers.Live.Name, breakers)
	for i, entry := range cfg.Providers.LiveFallbacks {
		p, err := reg.CreateLive(entry)
		if err != nil {
			return nil, nil, fmt.Errorf("create live fallback %d %q: %w", i, entry.Name, err)
		}
		liveProvider.AddFallback(fmt.Sprintf("%s#%d", entry.Name, i+1), p)
	}
	slog.Info("provider created", "kind", "live", "name", cfg.Providers.Live.Name, "fallbacks", len(cfg.Providers.LiveFallbacks))

	if cfg.Providers.Search.Name == "" {
		return liveProvider, nil, nil
	}
	primarySearch, err := reg.CreateSearch(cfg.Providers.Search)
	if err != nil {
		return nil, nil, fmt.Errorf("create search provider %q: %w", cfg.Providers.Search.Name, err)
	}
	searchProvider := resilience.NewSearchFallback(primarySearch, cfg.Providers.Search.Name, breakers)
	for i, entry := range cfg.Providers.SearchFallbacks {
		p, err := reg.CreateSearch(entry)
		if err != nil {
			return nil, nil, fmt.Errorf("create search fallback %d %q: %w", i, entry.Name, err)
		}
		searchProvider.AddFallback(fmt.Sprintf("%s#%d", entry.Name, i+1), p)
	}
	slog.Info("provider created", "kind", "search", "name", cfg.Providers.Search.Name, "fallbacks", len(cfg.Providers.SearchFallbacks))

	return liveProvider, searchProvider, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Aura startup summary         ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Live", cfg.Providers.Live.Name, cfg.Providers.Live.Model)
	printProvider("Search", cfg.Providers.Search.Name, cfg.Providers.Search.Model)
	fmt.Printf("║  Fallbacks       : %-19s ║\n",
		fmt.Sprintf("%d live / %d search", len(cfg.Providers.LiveFallbacks), len(cfg.Providers.SearchFallbacks)))
	voice := cfg.Assistant.Voice
	if voice == "" {
		voice = "(provider default)"
	}
	fmt.Printf("║  Voice           : %-19s ║\n", voice)
	lang := cfg.Locale.Language
	if lang == "" {
		lang = string(locale.English)
	}
	fmt.Printf("║  Locale          : %-19s ║\n", fmt.Sprintf("%s, %d overrides", lang, len(cfg.Locale.Strings)))
	fmt.Printf("║  Listen addr     : %-19s ║\n", listenAddr(cfg))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger returns a text logger whose level can be changed at runtime
// through the returned LevelVar.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
