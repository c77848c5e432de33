package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/borehole-data-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/borehole-data-service/internal/adapter/kafka"
	"github.com/couchcryptid/borehole-data-service/internal/config"
	"github.com/couchcryptid/borehole-data-service/internal/observability"
	"github.com/couchcryptid/borehole-data-service/internal/pipeline"
	"github.com/couchcryptid/borehole-data-service/internal/plot"
	"github.com/couchcryptid/borehole-data-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	registry := store.NewRegistry(cfg.Policy, logger, metrics)
	if cfg.SeedFile != "" {
		if err := loadSeed(registry, cfg.SeedFile, logger); err != nil {
			logger.Error("failed to load seed file", "path", cfg.SeedFile, "error", err)
			os.Exit(1)
		}
	}

	renderer, err := plot.NewRenderer(plot.Options{
		Width:    cfg.PlotWidth,
		Height:   cfg.PlotHeight,
		FontPath: cfg.PlotFontPath,
		FontSize: cfg.PlotFontSize,
	})
	if err != nil {
		logger.Error("failed to create plot renderer", "error", err)
		os.Exit(1)
	}
	plots := plot.NewCachedRenderer(renderer, cfg.PlotCacheSize, metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(cfg.Policy, logger)

	// Readings land in the registry before they are republished.
	p := pipeline.New(reader, transformer, pipeline.FanOut(registry, writer), logger, metrics, cfg.BatchSize)

	// Ready after the first ingested batch, or immediately when seeded.
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AnyReady(p, registry), registry, plots, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func loadSeed(registry *store.Registry, path string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := registry.LoadSeed(f)
	if err != nil {
		return err
	}
	logger.Info("seed points loaded", "path", path, "points", n)
	return nil
}
