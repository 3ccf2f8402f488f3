package main

import (
	"context"
	"fmt"

	"github.com/aescanero/dago-adapters/pkg/llm"
	"github.com/alexchuang650730/aicore0624-sub006/internal/backend"
	"github.com/alexchuang650730/aicore0624-sub006/internal/config"
	"github.com/alexchuang650730/aicore0624-sub006/internal/eval/template"
	"github.com/alexchuang650730/aicore0624-sub006/internal/metrics"
	"github.com/alexchuang650730/aicore0624-sub006/internal/pipeline"
	"github.com/alexchuang650730/aicore0624-sub006/internal/router"
	"github.com/alexchuang650730/aicore0624-sub006/internal/tracer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// app holds the pipeline shared by the serve and ask commands.
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	registry     *prometheus.Registry
	orchestrator *pipeline.Orchestrator
	shutdown     func(context.Context) error
}

// newApp loads configuration and wires catalog, backend, router and orchestrator.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("configuration loaded", zap.String("config", cfg.String()))

	shutdown, err := tracer.Setup(cfg.TracingExporter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	catalog, routing, err := cfg.BuildCatalog(template.NewEngine())
	if err != nil {
		return nil, err
	}
	logger.Info("expert catalog loaded",
		zap.Strings("experts", catalog.IDs()),
		zap.String("default", catalog.Default()),
	)

	gen, classifierGen, err := initBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	r, err := router.NewRouter(catalog, routing, classifierGen, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("router initialized", zap.String("mode", string(r.Mode())))

	orchestrator, err := pipeline.NewOrchestrator(catalog, r, gen, pipeline.Options{
		Invoker: pipeline.InvokerOptions{
			Sequential:     cfg.Sequential,
			MaxConcurrency: cfg.MaxConcurrency,
		},
		SynthesisNote: cfg.SynthesisNote,
		Synthesize:    cfg.Synthesize,
		Timeout:       cfg.RequestTimeout,
	}, m, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:          cfg,
		logger:       logger,
		registry:     registry,
		orchestrator: orchestrator,
		shutdown:     shutdown,
	}, nil
}

// close flushes traces and logs.
func (a *app) close(ctx context.Context) {
	if err := a.shutdown(ctx); err != nil {
		a.logger.Error("failed to shut down tracing", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// initBackend returns the expert backend and the classifier backend. Without
// LLM credentials experts use the offline echo backend and the classifier
// backend is nil, so LLM routing is unavailable.
func initBackend(cfg *config.Config, logger *zap.Logger) (backend.Backend, backend.Backend, error) {
	if !cfg.UseLLM() {
		logger.Warn("llm api key not provided (using echo backend, llm routing will not be available)")
		return backend.Echo{}, nil, nil
	}

	client, err := llm.NewClient(&llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}
	logger.Info("llm client initialized",
		zap.String("provider", cfg.LLMProvider),
		zap.String("model", cfg.LLMModel),
	)

	var gen backend.Backend = backend.NewLLM(client, backend.LLMOptions{
		Model:     cfg.LLMModel,
		MaxTokens: cfg.LLMMaxTokens,
		Timeout:   cfg.LLMTimeout,
	}, logger)
	if cfg.RateLimitRPS > 0 {
		gen = backend.NewLimited(gen, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	gen = backend.NewBreaker(cfg.LLMProvider, gen, backend.BreakerConfig{
		MaxFailures: cfg.BreakerMaxFailures,
		Timeout:     cfg.BreakerTimeout,
	}, logger)

	return gen, gen, nil
}
