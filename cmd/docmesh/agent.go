package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cfhttp "github.com/Strob0t/docmesh/internal/adapter/http"
	"github.com/Strob0t/docmesh/internal/adapter/mcp"
	"github.com/Strob0t/docmesh/internal/adapter/nats"
	"github.com/Strob0t/docmesh/internal/adapter/natskv"
	"github.com/Strob0t/docmesh/internal/adapter/openai"
	cfotel "github.com/Strob0t/docmesh/internal/adapter/otel"
	"github.com/Strob0t/docmesh/internal/adapter/ristretto"
	"github.com/Strob0t/docmesh/internal/adapter/tiered"
	"github.com/Strob0t/docmesh/internal/adapter/ws"
	"github.com/Strob0t/docmesh/internal/config"
	"github.com/Strob0t/docmesh/internal/domain/agentcard"
	"github.com/Strob0t/docmesh/internal/middleware"
	a2aport "github.com/Strob0t/docmesh/internal/port/a2a"
	"github.com/Strob0t/docmesh/internal/port/cache"
	"github.com/Strob0t/docmesh/internal/port/events"
	"github.com/Strob0t/docmesh/internal/port/tool"
	"github.com/Strob0t/docmesh/internal/service"
	"github.com/Strob0t/docmesh/internal/taskpool"
)

// runAgent serves the document summarizer agent until interrupted.
func runAgent(args []string) error {
	r, err := bootstrap("agent", args, config.ValidateAgent)
	if err != nil {
		return err
	}
	defer r.close()
	cfg := r.cfg
	ctx := context.Background()

	// --- Document tools over MCP ---
	dialCtx, cancelDial := context.WithTimeout(ctx, cfg.Agent.ConnectTimeout)
	docs, err := mcp.Dial(dialCtx, mcp.ClientConfig{
		URL:     cfg.Agent.DocsMCPURL,
		Token:   cfg.Agent.GatewayToken,
		Name:    cfg.Agent.Name,
		Version: cfg.Agent.Version,
	})
	if err != nil {
		cancelDial()
		return fmt.Errorf("document server: %w", err)
	}
	defer func() { _ = docs.Close() }()

	remote, err := docs.Tools(dialCtx)
	cancelDial()
	if err != nil {
		return fmt.Errorf("document tools: %w", err)
	}
	tools, dup := tool.NewSet(remote...)
	for _, name := range dup {
		slog.Warn("duplicate document tool ignored", "tool", name)
	}
	slog.Info("document server connected", "url", cfg.Agent.DocsMCPURL, "tools", len(tools))

	// --- Reasoning ---
	model, err := newChatModel(cfg.LLM)
	if err != nil {
		return err
	}
	reasoner := service.NewReasoner(model, cfg.LLM.MaxSteps)
	runner := service.NewReasoningAgent(reasoner, cfg.Agent.Instructions, tools)

	card, err := agentcard.Build(cardParams(&cfg.Agent))
	if err != nil {
		return fmt.Errorf("agent card: %w", err)
	}

	// --- Task infrastructure ---
	local, err := ristretto.New(cfg.Cache.MaxEntries)
	if err != nil {
		return fmt.Errorf("result cache: %w", err)
	}
	defer local.Close()
	var results cache.Cache = local

	var pub events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		bus, err := nats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
		if err != nil {
			return err
		}
		defer func() {
			if err := bus.Close(); err != nil {
				slog.Warn("nats close failed", "error", err)
			}
		}()
		pub = bus

		if cfg.Cache.Bucket != "" {
			shared, err := natskv.Open(ctx, bus.JetStream(), cfg.Cache.Bucket, cfg.Cache.TTL)
			if err != nil {
				return err
			}
			results = tiered.New(local, shared, cfg.Cache.TTL)
			slog.Info("shared result cache enabled", "bucket", cfg.Cache.Bucket)
		}
	}

	tasks := service.NewTaskService(card, runner, taskpool.New(cfg.Agent.MaxConcurrent), results, pub,
		service.TaskServiceConfig{TaskTimeout: cfg.Agent.TaskTimeout, ResultTTL: cfg.Cache.TTL})
	hub := ws.NewHub(tasks)

	// --- HTTP surface ---
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(chimw.RealIP)
	router.Use(cfhttp.Logger)
	router.Use(cfhttp.Recoverer)
	router.Use(cfotel.HTTPMiddleware(cfg.Logging.Service))
	router.Get("/health", cfhttp.Health)
	a2aport.NewHandler(tasks, hub.HandleWS).MountRoutes(router)

	slog.Info("agent ready", "name", card.Name, "url", card.URL, "skills", len(card.Skills))
	return serve(cfg.Server, cfg.Agent.Addr, router, hub.Close, tasks.Wait)
}

func cardParams(a *config.Agent) *agentcard.Params {
	skills := make([]agentcard.Skill, 0, len(a.Skills))
	for _, s := range a.Skills {
		skills = append(skills, agentcard.Skill{ID: s.ID, Name: s.Name, Description: s.Description, Tags: s.Tags})
	}
	return &agentcard.Params{
		Name:               a.Name,
		Description:        a.Description,
		Version:            a.Version,
		URL:                a.PublicURL,
		Streaming:          a.Streaming,
		PushNotifications:  a.PushNotifications,
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills:             skills,
	}
}

// newChatModel connects to the OpenAI-compatible endpoint with a traced,
// time-bounded HTTP client.
func newChatModel(cfg config.LLM) (*openai.Client, error) {
	hc := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: cfotel.HTTPTransport(http.DefaultTransport),
	}
	model, err := openai.NewFromURL(cfg.URL, cfg.APIKey, cfg.Model, cfg.Temperature, hc)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	return model, nil
}
