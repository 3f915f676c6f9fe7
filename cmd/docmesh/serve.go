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

	"github.com/Strob0t/docmesh/internal/config"
)

// waitForSignal blocks until SIGINT or SIGTERM, or until errc delivers a
// server error.
func waitForSignal(errc <-chan error) error {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	select {
	case sig := <-done:
		slog.Info("shutdown signal received", "signal", sig.String())
		return nil
	case err := <-errc:
		return err
	}
}

// serve runs handler on addr until a shutdown signal arrives. beforeShutdown
// runs first so hijacked connections the http.Server no longer tracks can be
// closed; drain runs after the listener is closed.
func serve(cfg config.Server, addr string, handler http.Handler, beforeShutdown func(), drain func(context.Context) error) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("listen %s: %w", addr, err)
		}
	}()

	if err := waitForSignal(errc); err != nil {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if beforeShutdown != nil {
		beforeShutdown()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if drain != nil {
		if err := drain(shutdownCtx); err != nil {
			slog.Warn("drain incomplete", "error", err)
		}
	}
	slog.Info("server stopped")
	return nil
}
