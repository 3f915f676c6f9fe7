package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Strob0t/docmesh/internal/adapter/nats"
	"github.com/Strob0t/docmesh/internal/config"
	"github.com/Strob0t/docmesh/internal/port/events"
)

// runEvents prints task lifecycle events as they arrive.
func runEvents(args []string) error {
	r, err := bootstrap("events", args, func(cfg *config.Config) error {
		if cfg.NATS.URL == "" {
			return errors.New("NATS_URL is not set")
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer r.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := nats.Connect(ctx, r.cfg.NATS.URL, r.cfg.NATS.Stream)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	unsubscribe, err := bus.Subscribe(ctx, events.SubjectPrefix+">", func(_ context.Context, _ string, data []byte) error {
		var ev events.TaskEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			// Redelivery cannot fix a malformed payload.
			slog.Warn("skipping undecodable task event", "error", err)
			return nil
		}
		fmt.Fprintf(os.Stdout, "%s  %-10s  %-24s  %s %s %dms\n",
			ev.Time.Format("15:04:05.000"), ev.State, ev.TaskID, ev.Agent, ev.Code, ev.DurationMS)
		return nil
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	<-ctx.Done()
	return nil
}
