// Package main provides the entry point for the text-to-SQL API server.
//
// The server answers natural-language questions about the sales-pipeline
// warehouse: SQL generation across parallel LLM providers, the multi-agent
// validation pipeline, and optional execution against the SQLite warehouse.
//
// Usage:
//
//	go run ./cmd/api
//
// Environment variables:
//
//	PIPELINE_DIALECT  - target SQL dialect, DB2 or SQLite (default: DB2)
//	PIPELINE_ROW_LIMIT - default row limit for unbounded queries
//	WAREHOUSE_PATH    - SQLite warehouse path (default: in-memory)
//	LLM_PROVIDERS     - comma-separated kind:model fan-out list
//	REDIS_ADDR        - result cache address (empty disables caching)
//	NATS_URL          - event bus URL (empty disables events)
//	SERVER_PORT       - API server port (default: 8080)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Yerdna1/Text-to-SQL/internal/api"
	"github.com/Yerdna1/Text-to-SQL/internal/api/handlers"
	"github.com/Yerdna1/Text-to-SQL/internal/cache"
	"github.com/Yerdna1/Text-to-SQL/internal/config"
	"github.com/Yerdna1/Text-to-SQL/internal/dialect"
	"github.com/Yerdna1/Text-to-SQL/internal/events"
	"github.com/Yerdna1/Text-to-SQL/internal/llm"
	"github.com/Yerdna1/Text-to-SQL/internal/pipeline"
	"github.com/Yerdna1/Text-to-SQL/internal/warehouse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.App.LogFormat, cfg.App.LogLevel)
	slog.SetDefault(logger.Logger)
	cfg.LogConfig(logger.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, cleanup, err := buildService(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	server := api.NewServer(cfg, service, logger.Logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// buildService wires the orchestrator and its optional collaborators from
// configuration. The returned cleanup closes everything that was opened.
func buildService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*handlers.Service, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	d, err := dialect.ParseDialect(cfg.Pipeline.Dialect)
	if err != nil {
		return nil, cleanup, err
	}

	// Warehouse and registry.
	wh, err := warehouse.Open(ctx, cfg.Warehouse.Path, logger)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, func() { wh.Close() })

	reg, err := wh.LoadRegistry(ctx)
	if err != nil {
		return nil, cleanup, err
	}
	if reg.Empty() {
		logger.Warn("warehouse holds no tables; pipeline will use the default catalog")
	}

	// LLM providers.
	var generator *llm.Generator
	var regenProvider llm.Provider
	if len(cfg.Parallel.Providers) > 0 {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		specs := make([]llm.ProviderSpec, 0, len(cfg.Parallel.Providers))
		for _, p := range cfg.Parallel.Providers {
			specs = append(specs, llm.ProviderSpec{
				Kind:        llm.Kind(p.Kind),
				Model:       p.Model,
				Credentials: llm.Credentials{APIKey: p.APIKey, BaseURL: p.BaseURL},
				Timeout:     p.Timeout,
			})
		}
		preferred := make([]llm.Kind, 0, len(cfg.Parallel.Preferred))
		for _, k := range cfg.Parallel.Preferred {
			preferred = append(preferred, llm.Kind(k))
		}

		generator = llm.NewGenerator(initCtx, specs, preferred, logger)
		if providers := generator.Providers(); len(providers) > 0 {
			regenProvider = providers[0]
		}
	}

	orchestrator := pipeline.New(pipeline.Config{
		Dialect:  d,
		RowLimit: cfg.Pipeline.RowLimitDefault,
		Registry: reg,
		Provider: regenProvider,
		Logger:   logger,
	})

	service := handlers.NewService(orchestrator, logger)
	service.Generator = generator
	service.Warehouse = wh

	// Optional result cache.
	if cfg.Redis.Addr != "" {
		cacheClient, err := cache.New(ctx, cache.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
			TTL:      cfg.Redis.TTL,
			Logger:   logger,
		})
		if err != nil {
			logger.Warn("result cache unavailable, continuing without it", slog.Any("error", err))
		} else {
			service.Cache = cacheClient
			closers = append(closers, func() { cacheClient.Close() })
		}
	}

	// Optional event publisher.
	if cfg.NATS.URL != "" {
		publisher, err := events.NewPublisher(events.PublisherConfig{
			URL:           cfg.NATS.URL,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		}, logger)
		if err != nil {
			logger.Warn("event bus unavailable, continuing without it", slog.Any("error", err))
		} else {
			service.Events = publisher
			closers = append(closers, publisher.Close)
		}
	}

	return service, cleanup, nil
}
