package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"testemunhas/api/internal/app"
	"testemunhas/api/internal/archive"
	"testemunhas/api/internal/cache"
	"testemunhas/api/internal/config"
	"testemunhas/api/internal/logging"
	"testemunhas/api/internal/search"
	"testemunhas/api/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	settings, err := config.LoadSettings(cfg.DetectionConfig)
	if err != nil {
		logger.WithError(err).Fatal("detection settings invalid")
	}

	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolOptions{MaxConns: cfg.DBMaxConns, ConnectWait: cfg.DBConnectWait})
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		logger.WithError(err).Fatal("migrations failed")
	}
	if len(applied) > 0 {
		logger.WithField("migrations", applied).Info("migrations applied")
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		logger.WithError(err).Fatal("failed to create archive dir")
	}

	opts := app.Options{
		Archive: archive.New(cfg.ArchiveDir),
		Logger:  logger,
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	opts.Search = search.NewService(meiliClient, pgfts, logger)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		analysisCache, err := cache.New(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, analysis cache disabled")
		} else {
			defer analysisCache.Close()
			opts.Cache = analysisCache
			logger.Info("analysis cache enabled")
		}
	}

	service := app.New(store.NewPostgresStore(db), settings, opts)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.Addr).Info("testemunhas API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}
}
