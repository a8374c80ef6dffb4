package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hs-classifier/api/internal/classifier"
	"hs-classifier/api/internal/classifier/gemini"
	"hs-classifier/api/internal/classifier/openai"
	"hs-classifier/api/internal/config"
	"hs-classifier/api/internal/handle"
	"hs-classifier/api/internal/httpserver"
	"hs-classifier/api/internal/logger"
	"hs-classifier/api/internal/metrics"
	"hs-classifier/api/internal/service"
	"hs-classifier/api/internal/store"
)

const purgeInterval = time.Hour

func main() {
	var port string
	cmd := &cobra.Command{
		Use:           "classify-api",
		Short:         "HS code classification API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "classify-api:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	// without a key the server still starts; /classify reports it per request
	var eng classifier.Engine
	if cfg.EngineKeySet() {
		e, err := buildEngines(cfg).GetEngine(cfg.Engine)
		if err != nil {
			return err
		}
		eng = e
		log.Info("classification engine ready", zap.String("engine", eng.Name()), zap.String("model", eng.GetModel()))
	} else {
		log.Warn("no API key for the selected engine", zap.String("engine", cfg.Engine))
	}

	cache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	m := metrics.New()
	svc := service.NewClassifyService(eng, cache, m, log, cfg.MaxPredictions, cfg.ClassifyTimeout)
	h := handle.New(svc, log, cfg.ClassifyTimeout)

	r := httpserver.NewRouter(log)
	h.Routes(r, promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	return httpserver.Run(ctx, httpserver.Options{
		Addr:            cfg.Addr(),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, r, log)
}

// buildEngines only sets engines that have a key, so GetEngine reports the rest as not configured.
func buildEngines(cfg *config.Config) *classifier.Engines {
	engines := &classifier.Engines{}
	if cfg.OpenAIAPIKey != "" {
		e := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel).WithBaseURL(cfg.OpenAIBaseURL)
		e.MaxPredictions = cfg.MaxPredictions
		engines.OpenAI = e
	}
	if cfg.GeminiAPIKey != "" {
		e := gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
		e.MaxPredictions = cfg.MaxPredictions
		engines.Gemini = e
	}
	return engines
}

func openCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Cache, error) {
	switch cfg.Cache.Backend {
	case "postgres":
		db, err := store.OpenPostgres(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("db connected", zap.String("dsn", config.SafeDSNSummary(cfg.Cache.DatabaseURL)))
		repo := store.NewClassificationRepo(db, cfg.Cache.MaxAge)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		go purgeLoop(ctx, repo, cfg.Cache.MaxAge, log)
		return repo, nil
	case "redis":
		c, err := store.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.MaxAge)
		if err != nil {
			return nil, err
		}
		log.Info("redis connected", zap.String("addr", cfg.Cache.RedisAddr))
		return c, nil
	default:
		return store.Nop{}, nil
	}
}

func purgeLoop(ctx context.Context, repo *store.ClassificationRepo, maxAge time.Duration, log *zap.Logger) {
	if maxAge <= 0 {
		return
	}
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := repo.PurgeOlderThan(ctx, maxAge)
			if err != nil {
				log.Warn("cache purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("cache purged", zap.Int64("rows", n))
			}
		}
	}
}
