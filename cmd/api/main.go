package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/github-review-sync/internal/api"
	"github.com/kurihiro0119/github-review-sync/internal/collector"
	"github.com/kurihiro0119/github-review-sync/internal/config"
	"github.com/kurihiro0119/github-review-sync/internal/cursor"
	"github.com/kurihiro0119/github-review-sync/internal/review"
	"github.com/kurihiro0119/github-review-sync/internal/storage"
	"github.com/kurihiro0119/github-review-sync/internal/storage/postgres"
	"github.com/kurihiro0119/github-review-sync/internal/storage/sqlite"
	"github.com/kurihiro0119/github-review-sync/internal/syncer"
	"github.com/kurihiro0119/github-review-sync/internal/vcs"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration", err)
	}

	// Initialize storage
	var store storage.Storage
	switch cfg.StorageType {
	case "postgres":
		store, err = postgres.NewPostgresStorage(cfg.PostgresURL)
		if err != nil {
			fatal("failed to initialize PostgreSQL storage", err)
		}
	default:
		store, err = sqlite.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			fatal("failed to initialize SQLite storage", err)
		}
	}
	defer store.Close()

	// Initialize sync components
	runner := vcs.NewRunner(vcs.Options{
		RepoDir:      cfg.RepoDir,
		GitBinary:    cfg.GitBinary,
		RemoteHost:   cfg.RemoteHost,
		AccessToken:  cfg.GitHubToken,
		PrivateClone: cfg.PrivateCloneEnabled(),
		Logger:       logger,
	})
	cursors := cursor.NewStore(store)
	service := review.NewService(runner, cursors, collector.NewGitHubCollector(cfg.GitHubToken), review.Options{
		CatchUpCommits: cfg.EffectiveCatchUpCommits(),
		Logger:         logger,
	})
	sync := syncer.NewSyncer(service, cursors, store, cfg.LeaseTTL, logger)

	// Initialize handler
	handler := api.NewHandler(service, sync, cursors)

	// Setup routes
	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRoutes(handler)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	logger.Info("starting API server",
		slog.String("addr", addr),
		slog.String("storage", cfg.StorageType),
		slog.String("repo_dir", cfg.RepoDir))

	if err := router.Run(addr); err != nil {
		fatal("failed to start server", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
