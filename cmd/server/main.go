package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/lumacms/lumacms/internal/config"
	"github.com/lumacms/lumacms/internal/server"
	"github.com/lumacms/lumacms/internal/service/comment"
	"github.com/lumacms/lumacms/internal/service/safety"
	"github.com/lumacms/lumacms/internal/service/search"
	"github.com/lumacms/lumacms/internal/service/spam"
	"github.com/lumacms/lumacms/pkg/logger"
	"github.com/lumacms/lumacms/pkg/openrouter"
	"github.com/lumacms/lumacms/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	log := logger.New(logger.Config{
		Environment: cfg.AppEnv,
		LogLevel:    cfg.LogLevel,
		ServiceName: "lumacms",
	})
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}

	// Redis is optional: without it the rate limiter and settings cache are
	// skipped and the pipeline degrades gracefully.
	var cache *redis.Cache
	if cfg.RedisHost != "" {
		redisClient, err := redis.NewClient(redis.Config{
			Host:         cfg.RedisHost,
			Port:         cfg.RedisPort,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     cfg.RedisPoolSize,
			MinIdleConns: cfg.RedisMinIdleConns,
			MaxRetries:   cfg.RedisMaxRetries,
		}, log)
		if err != nil {
			log.Warn("redis unavailable, continuing without cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache = redis.NewCache(redisClient, "lumacms", "safety")
		}
	}

	// Layer 1 rules: file if configured, built-in defaults otherwise.
	rules := safety.DefaultRules()
	if cfg.SafetyRulesPath != "" {
		loaded, err := safety.LoadRules(cfg.SafetyRulesPath)
		if err != nil {
			log.Fatal("failed to load safety rules", zap.String("path", cfg.SafetyRulesPath), zap.Error(err))
		}
		rules = loaded
	}

	safetyRepo := safety.NewPostgresRepository(db)
	embedder := search.NewHTTPEmbedder(cfg.EmbeddingEndpoint, cfg.EmbeddingAPIKey, cfg.EmbeddingModel)
	searcher := search.NewPgSearcher(db, embedder, log)

	chat := openrouter.New(openrouter.Config{
		Endpoint: cfg.OpenRouterEndpoint,
		APIKey:   cfg.OpenRouterAPIKey,
	}, log)

	retriever := safety.NewRetriever(searcher, safetyRepo, log)
	classifier := safety.NewClassifier(chat, log)
	engine := safety.NewEngine(rules, retriever, classifier, log)

	settings := safety.NewSettingsStore(db, cache, safety.Settings{
		Enabled:   true,
		ModelID:   cfg.SafetyModelID,
		TimeoutMs: cfg.SafetyTimeoutMs,
	}, log)

	commentRepo := comment.NewPostgresRepository(db)
	gate := spam.NewGate(cache, log)
	comments := comment.NewService(commentRepo, gate, engine, settings, safetyRepo, log)
	admin := safety.NewAdminService(safetyRepo, commentRepo, searcher, log)

	srv := server.New(cfg, server.Deps{
		Comments: comments,
		Admin:    admin,
		Settings: settings,
	}, log)

	log.Info("starting lumacms server",
		zap.String("app_port", cfg.AppPort),
		zap.String("metrics_port", cfg.MetricsPort),
		zap.Bool("classifier_configured", classifier.Available()),
	)

	if err := srv.Run(ctx); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("server stopped")
}
