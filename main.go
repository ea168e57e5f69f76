package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/namnv2496/go-exec-broker/api"
	"github.com/namnv2496/go-exec-broker/internal/config"
	"github.com/namnv2496/go-exec-broker/internal/executor/batch"
	"github.com/namnv2496/go-exec-broker/internal/executor/worker/completion_worker"
	"github.com/namnv2496/go-exec-broker/internal/executor/worker/docker_worker"
	"github.com/namnv2496/go-exec-broker/internal/executor/worker/job_executor"
	"github.com/namnv2496/go-exec-broker/internal/language"
	"github.com/namnv2496/go-exec-broker/internal/logger"
	"github.com/namnv2496/go-exec-broker/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	if !cfg.DotEnvLoaded {
		logg.Info("no .env file found, using environment variables or defaults")
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Fatal("broker stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logg *zap.Logger) error {
	registry := language.Default()
	if cfg.LanguagesFile != "" {
		var err error
		if registry, err = language.LoadFile(cfg.LanguagesFile); err != nil {
			return err
		}
	}
	logg.Info("language registry loaded", zap.Strings("languages", registry.SupportedIDs()))

	backend, closeBackend, err := newBackend(ctx, cfg, registry, logg)
	if err != nil {
		return err
	}
	defer closeBackend()
	backend = job_executor.WithTimeout(backend, cfg.ExecutionTimeout)

	publisher := report.Nop()
	if cfg.Nats.URL != "" {
		if publisher, err = report.NewNats(cfg.Nats.URL, cfg.Nats.Subject, logg); err != nil {
			return err
		}
		logg.Info("publishing execution reports", zap.String("subject", cfg.Nats.Subject))
	}
	defer publisher.Close()

	server := api.NewServer(
		registry,
		backend,
		batch.NewEvaluator(backend, cfg.BatchConcurrency, logg),
		publisher,
		api.Options{
			MaxCodeBytes: cfg.MaxCodeBytes,
			RateLimit:    cfg.RateLimit,
			RateBurst:    cfg.RateBurst,
		},
		logg,
	)
	return server.Run(ctx, ":"+cfg.Port)
}

func newBackend(ctx context.Context, cfg *config.Config, registry *language.Registry, logg *zap.Logger) (job_executor.JobExecutor, func(), error) {
	switch cfg.ExecutionBackend {
	case config.BackendDocker:
		executor, err := docker_worker.New(docker_worker.Config{
			MemoryBytes: cfg.Docker.MemoryBytes,
			NanoCPUs:    cfg.Docker.NanoCPUs,
			TimeLimit:   cfg.Docker.TimeLimit,
			OutputLimit: cfg.Docker.OutputLimit,
		}, logg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Docker.PullImages {
			if err := executor.PullImages(ctx, registry.All()); err != nil {
				executor.Close()
				return nil, nil, err
			}
		}
		logg.Info("using docker execution backend")
		return executor, func() { _ = executor.Close() }, nil

	default:
		if cfg.Completion.APIKey == "" {
			logg.Warn("COMPLETION_API_KEY is not set, executions will fail until it is configured")
		}
		executor := completion_worker.New(completion_worker.Config{
			URL:         cfg.Completion.URL,
			APIKey:      cfg.Completion.APIKey,
			Model:       cfg.Completion.Model,
			MaxTokens:   cfg.Completion.MaxTokens,
			Temperature: cfg.Completion.Temperature,
		}, &http.Client{Timeout: cfg.ExecutionTimeout + 5*time.Second}, logg)
		logg.Info("using completion execution backend", zap.String("model", cfg.Completion.Model))
		return executor, func() {}, nil
	}
}
