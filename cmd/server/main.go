package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/youruser/bannerprint/internal/api"
	"github.com/youruser/bannerprint/internal/assets"
	"github.com/youruser/bannerprint/internal/config"
	imagepkg "github.com/youruser/bannerprint/internal/image"
	"github.com/youruser/bannerprint/internal/logging"
	"github.com/youruser/bannerprint/internal/orders"
	"github.com/youruser/bannerprint/internal/render"
)

func main() {
	cfg := config.Load()
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)

	ctx := context.Background()

	var store *assets.MinIOStore
	if cfg.Assets.MinIO.Enabled() {
		s, err := assets.NewMinIOStore(cfg.Assets.MinIO)
		if err != nil {
			logging.Error("Failed to create object store", "error", err)
			os.Exit(1)
		}
		if err := s.EnsureBucket(ctx); err != nil {
			logging.Warn("Object store bucket check failed", "bucket", cfg.Assets.MinIO.Bucket, "error", err)
		}
		store = s
	}

	var resolver assets.Resolver = assets.NewCDN(cfg.Assets.CDNBaseURL, cfg.Assets.CloudName)
	if cfg.Assets.Provider == "minio" {
		if store == nil {
			logging.Error("Asset provider minio selected but MinIO is not configured")
			os.Exit(1)
		}
		resolver = store
	}

	fetcher := imagepkg.NewFetcher(&http.Client{}, cfg.Render.FetchTimeout, resolver)
	compositor := imagepkg.NewCompositor(fetcher, cfg.Render.OverlayConcurrency, cfg.Render.MaxOutputBytes, cfg.Render.JPEGQuality)
	pipeline := render.NewPipeline(fetcher, compositor, render.Settings{DPI: cfg.Render.DPI, BleedIn: cfg.Render.BleedIn})

	var uploader api.Uploader
	if store != nil {
		uploader = store
	}

	var recorder api.OrderRecorder
	if cfg.Database.DSN != "" {
		pool, err := orders.NewPool(ctx, cfg.Database)
		if err != nil {
			logging.Warn("Order database unavailable, print files will not be recorded", "error", err)
		} else {
			defer pool.Close()
			recorder = orders.NewRepository(pool)
		}
	}

	handler := api.NewHandler(pipeline, uploader, recorder, cfg.Server.PublicBaseURL)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewEngine(cfg.Server, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	startServer(srv)
}

// startServer runs srv until SIGINT or SIGTERM, then shuts it down gracefully.
func startServer(srv *http.Server) {
	go func() {
		logging.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint

	logging.Warn("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}
	logging.Info("Server stopped cleanly")
}
