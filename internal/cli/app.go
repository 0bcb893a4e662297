package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/saeedalam/stackforge/internal/archive"
	"github.com/saeedalam/stackforge/internal/blueprint"
	"github.com/saeedalam/stackforge/internal/config"
	"github.com/saeedalam/stackforge/internal/logger"
	"github.com/saeedalam/stackforge/internal/provider"
	"github.com/saeedalam/stackforge/internal/storage"
	"github.com/saeedalam/stackforge/internal/telemetry"
	"github.com/saeedalam/stackforge/pkg/types"
)

// app holds the collaborators shared by all commands
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *storage.Store
	gen      *blueprint.Generator
	decoder  *archive.Decoder
	registry *prometheus.Registry

	shutdownTracing telemetry.Shutdown
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if requestTimeout > 0 {
		cfg.Providers.Timeout = requestTimeout
	}

	level := cfg.Log.Level
	if strings.TrimSpace(logLevel) != "" {
		level = logLevel
	}
	log, err := logger.New(cfg.Log.Mode, level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	shutdown, err := telemetry.Init(ctx, cfg.Tracing, "stackforge", buildVersion, log)
	if err != nil {
		log.Warn("tracing disabled", "error", err)
	}

	store, err := storage.Open(cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	factory := provider.NewFactory(provider.Options{
		Endpoints: cfg.Providers,
		Metrics:   provider.NewMetrics(registry),
		Log:       log,
	})

	return &app{
		cfg:             cfg,
		log:             log,
		store:           store,
		gen:             blueprint.NewGenerator(factory, blueprint.WithLogger(log)),
		decoder:         archive.NewDecoder(log),
		registry:        registry,
		shutdownTracing: shutdown,
	}, nil
}

func (a *app) Close() {
	if a.shutdownTracing != nil {
		_ = a.shutdownTracing(context.Background())
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close store", "error", err)
	}
	a.log.Sync()
}

// settings returns stored settings seeded with configured credentials
func (a *app) settings() (types.Settings, error) {
	stored, err := a.store.Settings()
	if err != nil {
		return types.Settings{}, err
	}
	return a.cfg.SeedSettings(stored), nil
}
