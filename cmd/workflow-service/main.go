// Command workflow-service runs the document workflow engine's Control
// API, WebSocket channel, and metrics endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/zapr"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jordigilh/docflow/internal/config"
	"github.com/jordigilh/docflow/pkg/ai/llm"
	"github.com/jordigilh/docflow/pkg/api"
	"github.com/jordigilh/docflow/pkg/cache"
	"github.com/jordigilh/docflow/pkg/citation"
	"github.com/jordigilh/docflow/pkg/eventbus"
	"github.com/jordigilh/docflow/pkg/metrics"
	"github.com/jordigilh/docflow/pkg/readability"
	"github.com/jordigilh/docflow/pkg/storage/postgres"
	"github.com/jordigilh/docflow/pkg/taskrunner"
	"github.com/jordigilh/docflow/pkg/workflow/engine"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the service configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := newZapLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init zap logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	otel.SetLogger(zapr.NewLogger(zapLog))

	log := newLogrusLogger(cfg.Logging)
	log.WithField("config", *configPath).Info("starting workflow-service")

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize storage")
	}
	defer closeStore()

	appCache := cache.New(ctx, cfg.Cache.URL, log)
	bus := eventbus.NewBus(log)
	runner := taskrunner.NewRunner(log, 16)

	llmClient, err := llm.NewClient(ctx, cfg.LLM, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize LLM client")
	}

	resolver := citation.NewResolver("", appCache)
	validator := citation.NewValidator(resolver)

	eng := engine.New(engine.Deps{
		Log:         log,
		Store:       store,
		Gates:       engine.NewGateRegistry(log),
		Generator:   engine.GeneratorAdapter{Client: llmClient},
		Citations:   engine.CitationValidatorAdapter{Validator: validator},
		Readability: engine.ReadabilityAnalyzerAdapter{},
		Events:      bus,
		Runner:      runner,
	})

	docs := api.NewDocumentService(store)
	apiServer := api.NewServer(eng, docs, bus, cfg.API.AllowedOrigins, log)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: apiServer.Router(),
	}

	metricsServer := metrics.NewServer(cfg.Server.MetricsPort, log)
	metricsServer.StartAsync()

	go func() {
		log.WithField("port", cfg.Server.Port).Info("control API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("control API server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("control API shutdown did not complete cleanly")
	}
	if err := metricsServer.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("metrics server shutdown did not complete cleanly")
	}
	log.Info("workflow-service stopped")
}

// newStore opens the Postgres adapter when a DSN is configured, falling
// back to the in-memory store otherwise.
func newStore(ctx context.Context, cfg config.DatabaseConfig, log *logrus.Logger) (engine.Store, func(), error) {
	if cfg.DSN == "" {
		log.Warn("no database DSN configured, using in-memory store")
		return engine.NewMemoryStore(), func() {}, nil
	}

	pgStore, err := postgres.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres store: %w", err)
	}
	return pgStore, func() { pgStore.Close() }, nil
}

func newZapLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func newLogrusLogger(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
