package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filmstrip/internal/engine"
	"filmstrip/internal/orchestrator"
	"filmstrip/internal/platform/config"
	"filmstrip/internal/platform/logger"
	"filmstrip/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		log.Error("work dir unavailable", "work_dir", cfg.WorkDir, "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	loader := engine.NewLoader(cfg.FFmpegBinary, cfg.FFprobeBinary, log)
	orch := orchestrator.New(loader, orchestrator.Config{
		WorkDir:    cfg.WorkDir,
		TileHeight: cfg.TileHeight,
		FetchSize:  cfg.FetchSize,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		MountAddr:  cfg.MountAddr,
	}, log, met)

	repo := orchestrator.NewInMemoryRepository()
	svc := orchestrator.NewService(repo, orch, log, met)
	h := orchestrator.NewHandler(svc, log)

	// Resolve the engine early so a missing binary shows up in the logs at
	// startup; a failure here is retried on the first request.
	go func() {
		if _, err := loader.Load(context.Background()); err != nil {
			log.Warn("engine not ready", "error", err)
		}
	}()

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetStored(repo.Count()) }).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"work_dir", cfg.WorkDir,
		"tile_height", cfg.TileHeight,
		"fetch_size", cfg.FetchSize,
		"http_timeout", cfg.HTTPTimeout.String(),
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
