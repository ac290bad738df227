package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"visaintake/internal/app"
	"visaintake/internal/intake/handler"
	"visaintake/internal/platform/config"
	"visaintake/internal/platform/httpserver"
	"visaintake/internal/platform/logger"
	"visaintake/internal/platform/metrics"
)

var version = "dev"

// main wires dependencies, exposes the intake routes, and runs the background
// work next to the server until a signal arrives.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, log, metrics.New())
	if err != nil {
		return err
	}
	defer deps.Close()

	health := handler.NewHealthHandler(version, deps.Health)
	r := chi.NewRouter()
	r.Get("/health", health.Live)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())
	handler.New(deps.Service, log,
		handler.WithTimeout(cfg.Server.RequestTimeout),
		handler.WithMaxFileSize(cfg.Intake.MaxFileSize),
	).Register(r)

	srv := httpserver.New(cfg.Server, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting visa intake", "addr", cfg.Server.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return deps.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
