package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/SoilMap/internal/config"
	"github.com/JonMunkholm/SoilMap/internal/core"
	"github.com/JonMunkholm/SoilMap/internal/export"
	"github.com/JonMunkholm/SoilMap/internal/logging"
	"github.com/JonMunkholm/SoilMap/internal/metrics"
	"github.com/JonMunkholm/SoilMap/internal/render"
	"github.com/JonMunkholm/SoilMap/internal/session"
	"github.com/JonMunkholm/SoilMap/internal/web"
)

// sessionCleanupInterval is how often expired in-memory sessions are swept.
const sessionCleanupInterval = 5 * time.Minute

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"session_backend", cfg.Session.Backend,
		"render_backend", cfg.Render.Backend,
		"render_max_concurrent", cfg.Render.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session store
	var (
		store  session.Store
		memory *session.MemoryStore
		valkey *session.ValkeyStore
	)
	switch cfg.Session.Backend {
	case "valkey":
		valkey, err = session.NewValkeyStore(cfg.Session.ValkeyAddr, cfg.Session.TTL)
		if err != nil {
			slog.Error("failed to connect to valkey", "addr", cfg.Session.ValkeyAddr, "error", err)
			os.Exit(1)
		}
		defer valkey.Close()
		if err := valkey.Ping(ctx); err != nil {
			slog.Error("failed to ping valkey", "addr", cfg.Session.ValkeyAddr, "error", err)
			os.Exit(1)
		}
		slog.Info("connected to valkey", "addr", cfg.Session.ValkeyAddr)
		store = valkey
	default:
		memory = session.NewMemoryStore(cfg.Session.TTL)
		store = memory
	}

	// Rasterizer and exporter
	legend := core.DefaultClassifier.Legend()
	document, err := web.MapDocument(cfg.Map, legend)
	if err != nil {
		slog.Error("failed to build map document", "error", err)
		os.Exit(1)
	}
	rasterizer, err := render.New(render.Options{
		Backend:   cfg.Render.Backend,
		Width:     cfg.Map.Width,
		Height:    cfg.Map.Height,
		ChromeBin: cfg.Render.ChromeBin,
		Document:  document,
		Legend:    legend,
	})
	if err != nil {
		slog.Error("failed to create rasterizer", "error", err)
		os.Exit(1)
	}
	limiter := core.NewRenderLimiter(cfg.Render.MaxConcurrent, cfg.Render.MaxWaitTime).
		WithObserver(metrics.RenderSlots{})
	exporter := export.New(rasterizer, limiter, cfg.Render.JPEGQuality)

	server := web.NewServer(cfg, store, exporter, limiter)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if memory != nil {
		g.Go(func() error {
			return memory.Run(gctx, sessionCleanupInterval)
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight exports to finish (with timeout)
		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for exports to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("exports did not complete in time", "error", err)
			} else {
				slog.Info("all exports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if c, ok := rasterizer.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close rasterizer", "backend", rasterizer.Name(), "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
