package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/docmesh/internal/adapter/fscorpus"
	"github.com/Strob0t/docmesh/internal/adapter/mcp"
	"github.com/Strob0t/docmesh/internal/config"
	"github.com/Strob0t/docmesh/internal/service"
)

// runDocs serves the corpus directory over MCP until interrupted.
func runDocs(args []string) error {
	r, err := bootstrap("docs", args, config.ValidateDocs)
	if err != nil {
		return err
	}
	defer r.close()
	cfg := r.cfg

	store, err := fscorpus.New(cfg.Docs.Dir, fscorpus.Options{
		Extensions:         cfg.Docs.Extensions,
		MaxHitsPerDocument: cfg.Docs.MaxHits,
	})
	if err != nil {
		return fmt.Errorf("corpus: %w", err)
	}
	slog.Info("corpus opened", "dir", store.Dir())

	srv := mcp.NewServer(mcp.ServerConfig{
		Addr:              cfg.Docs.Addr,
		Name:              cfg.Docs.Name,
		Version:           cfg.Docs.Version,
		AuthToken:         cfg.Docs.AuthToken,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}, mcp.ServerDeps{Docs: service.NewDocumentService(store)})
	if err := srv.Start(); err != nil {
		return err
	}
	if cfg.Docs.AuthToken == "" {
		slog.Warn("document server has no auth token; every client is accepted")
	}

	if err := waitForSignal(nil); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("mcp shutdown: %w", err)
	}
	slog.Info("document server stopped")
	return nil
}
