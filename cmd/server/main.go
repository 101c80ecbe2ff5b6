package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v6"
	"github.com/redis/go-redis/v9"
	"github.com/repstack/trainer/internal/catalog"
	"github.com/repstack/trainer/internal/knowledge"
	"github.com/repstack/trainer/internal/leveltest"
	"github.com/repstack/trainer/internal/logging"
	"github.com/repstack/trainer/internal/profile"
	"github.com/repstack/trainer/internal/routine"
	"github.com/repstack/trainer/internal/sqlite"
)

type application struct {
	logger     *slog.Logger
	profiles   *profile.Store
	routines   *routine.Service
	levelTests *leveltest.Service
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"TRAINER_ADDR" envDefault:"localhost:8080"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"TRAINER_SQLITE_URL" envDefault:"./trainer.sqlite3"`
	// OpenAIAPIKey enables model-backed routine generation and semantic
	// knowledge search. Empty runs the deterministic paths only.
	OpenAIAPIKey string `env:"OPENAI_API_KEY" envDefault:""`
	// RedisAddr is the optional Redis address for shared novelty
	// tracking. Empty keeps tracking in process memory.
	RedisAddr string `env:"TRAINER_REDIS_ADDR" envDefault:""`
}

func run(ctx context.Context, logger *slog.Logger) (err error) {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err = env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return fmt.Errorf("open db %s: %w", cfg.SqliteURL, err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close db: %w", closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("load program catalog: %w", err)
	}

	novelty := knowledge.NewMemoryNoveltyStore()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if pingErr := client.Ping(ctx).Err(); pingErr != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "redis unreachable, novelty tracking stays in memory",
				slog.String("addr", cfg.RedisAddr), slog.Any("error", pingErr))
		} else {
			novelty = knowledge.NewRedisNoveltyStore(client)
			logger.LogAttrs(ctx, slog.LevelInfo, "novelty tracking on redis",
				slog.String("addr", cfg.RedisAddr))
		}
	}

	var embedder knowledge.Embedder
	if cfg.OpenAIAPIKey != "" {
		embedder = knowledge.NewOpenAIEmbedder(cfg.OpenAIAPIKey)
	}
	retriever := knowledge.NewRetriever(db, embedder, novelty, logger)

	profiles := profile.NewStore(db)
	routines := routine.NewService(db, logger, cat, retriever, profiles, cfg.OpenAIAPIKey)

	app := &application{
		logger:     logger,
		profiles:   profiles,
		routines:   routines,
		levelTests: leveltest.NewService(db, logger, profiles, routines),
	}
	return app.serve(ctx, cfg.Addr)
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", slog.Any("error", err))
		os.Exit(1)
	}
}
