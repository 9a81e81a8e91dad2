package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"entrygate/internal/platform/config"
	"entrygate/internal/platform/httpserver"
	"entrygate/internal/platform/logger"
)

const shutdownTimeout = 15 * time.Second

// main loads configuration, wires the backends it selects and serves the
// entry, admin and dispatch routes until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err.Error())
		os.Exit(1)
	}

	srv := httpserver.New(cfg.Server.Addr, app.router, cfg.Server.RequestTimeout)

	log.Info("starting entrygate",
		"addr", cfg.Server.Addr,
		"environment", cfg.Environment,
		"store", cfg.Store.Backend,
		"scheduler", cfg.Scheduler.Backend,
		"mail", cfg.Mail.Provider,
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error("server error", "error", err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
	}
	app.close(shutdownCtx)
	log.Info("server stopped")
}
