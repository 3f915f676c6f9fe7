package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/docmesh/internal/adapter/a2aclient"
	cfotel "github.com/Strob0t/docmesh/internal/adapter/otel"
	"github.com/Strob0t/docmesh/internal/config"
	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/domain/agentcard"
	"github.com/Strob0t/docmesh/internal/domain/task"
	"github.com/Strob0t/docmesh/internal/logger"
	"github.com/Strob0t/docmesh/internal/port/tool"
	"github.com/Strob0t/docmesh/internal/resilience"
)

// AgentClient fetches cards and delivers tasks over request/response HTTP.
type AgentClient interface {
	FetchCard(ctx context.Context, base string) (*a2a.AgentCard, error)
	SendTask(ctx context.Context, endpoint string, req *task.Request) (task.Result, error)
}

// TaskSender delivers tasks over a long-lived session.
type TaskSender interface {
	Send(ctx context.Context, req *task.Request) (task.Result, error)
	Close() error
}

// SessionOpener opens a session to the agent published at cardURL.
type SessionOpener func(ctx context.Context, cardURL string) (TaskSender, error)

// Binding ties one discovered skill to the tool that invokes it.
type Binding struct {
	Tool     string
	Agent    string
	BaseURL  string
	CardURL  string
	Endpoint string
	Skill    a2a.AgentSkill
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithSessions routes task invocations over one session per agent instead
// of one HTTP request per task.
func WithSessions(open SessionOpener) ProviderOption {
	return func(p *Provider) { p.openSession = open }
}

// Provider discovers agents from their cards and exposes every declared
// skill as a tool. The bound set is replaced atomically on Refresh.
type Provider struct {
	cfg         config.Discovery
	brk         config.Breaker
	client      AgentClient
	openSession SessionOpener
	metrics     *cfotel.Metrics

	current atomic.Pointer[toolset]

	mu       sync.Mutex
	breakers map[string]*resilience.Breaker
	sessions map[string]TaskSender
	closed   bool
}

type toolset struct {
	tools    tool.Set
	bindings []Binding
}

// NewProvider runs discovery once. Agents that cannot be fetched or whose
// cards are invalid are logged and skipped; two skills mapping to the same
// tool name make discovery fail with domain.ErrConflict.
func NewProvider(ctx context.Context, cfg config.Discovery, brk config.Breaker, client AgentClient, opts ...ProviderOption) (*Provider, error) {
	p := &Provider{
		cfg:      cfg,
		brk:      brk,
		client:   client,
		metrics:  cfotel.MustMetrics(),
		breakers: make(map[string]*resilience.Breaker),
		sessions: make(map[string]TaskSender),
	}
	for _, o := range opts {
		o(p)
	}
	if err := p.Refresh(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Refresh re-runs discovery and swaps in the new tool set. On error the
// previous set stays in place.
func (p *Provider) Refresh(ctx context.Context) error {
	cards := p.fetchAll(ctx)
	ts, err := p.bind(ctx, cards)
	if err != nil {
		return err
	}
	p.current.Store(ts)

	agents := 0
	for _, c := range cards {
		if c.card != nil {
			agents++
		}
	}
	p.metrics.AgentsDiscovered.Record(ctx, int64(agents))
	logger.From(ctx).Info("discovery complete", "agents", agents, "configured", len(p.cfg.AgentURLs), "tools", len(ts.bindings))
	return nil
}

// Tools returns the current tool set. The map must not be modified.
func (p *Provider) Tools() tool.Set {
	if ts := p.current.Load(); ts != nil {
		return ts.tools
	}
	return tool.Set{}
}

// Bindings returns the current bindings in discovery order.
func (p *Provider) Bindings() []Binding {
	ts := p.current.Load()
	if ts == nil {
		return nil
	}
	return append([]Binding(nil), ts.bindings...)
}

// Close ends any open sessions.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	for url, s := range p.sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", url, err))
		}
		delete(p.sessions, url)
	}
	return errors.Join(errs...)
}

type fetched struct {
	base string
	card *a2a.AgentCard
}

// fetchAll fetches every configured card in parallel. A slow or failing agent
// only affects its own slot.
func (p *Provider) fetchAll(ctx context.Context) []fetched {
	out := make([]fetched, len(p.cfg.AgentURLs))
	g, gctx := errgroup.WithContext(ctx)
	if p.cfg.MaxParallel > 0 {
		g.SetLimit(p.cfg.MaxParallel)
	}
	for i, base := range p.cfg.AgentURLs {
		out[i].base = base
		g.Go(func() error {
			card, err := p.fetch(gctx, base)
			if err != nil {
				logger.From(ctx).Warn("agent excluded from discovery", "agent_url", base, "error", err)
				return nil
			}
			out[i].card = card
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Provider) fetch(ctx context.Context, base string) (*a2a.AgentCard, error) {
	ctx, span := cfotel.StartDiscoverySpan(ctx, base)
	defer span.End()

	var card *a2a.AgentCard
	err := resilience.Retry(ctx, p.cfg.Retries, p.cfg.RetryDelay, permanentFetchError, func(ctx context.Context) error {
		fctx := ctx
		if p.cfg.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
			defer cancel()
		}
		c, err := p.client.FetchCard(fctx, base)
		if err != nil {
			return err
		}
		card = c
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return card, nil
}

// permanentFetchError reports failures that a retry cannot fix.
func permanentFetchError(err error) bool {
	return errors.Is(err, domain.ErrMalformed) || errors.Is(err, domain.ErrValidation)
}

func (p *Provider) bind(ctx context.Context, cards []fetched) (*toolset, error) {
	ts := &toolset{tools: tool.Set{}}
	owner := map[string]string{}
	for _, f := range cards {
		if f.card == nil {
			continue
		}
		endpoint, err := a2aclient.TaskURL(f.card.URL)
		if err != nil {
			logger.From(ctx).Warn("agent excluded: bad task url", "agent", f.card.Name, "url", f.card.URL, "error", err)
			continue
		}
		for _, skill := range f.card.Skills {
			name := agentcard.ToolName(f.card.Name, skill.ID)
			if prev, dup := owner[name]; dup {
				return nil, fmt.Errorf("%w: tool name %q is claimed by %s and %s (skill %q)",
					domain.ErrConflict, name, prev, f.base, skill.ID)
			}
			owner[name] = f.base
			b := Binding{
				Tool:     name,
				Agent:    f.card.Name,
				BaseURL:  f.base,
				CardURL:  f.card.URL,
				Endpoint: endpoint,
				Skill:    skill,
			}
			ts.bindings = append(ts.bindings, b)
			ts.tools[name] = &agentTool{p: p, b: b, description: describe(f.card, &skill)}
		}
	}
	return ts, nil
}

func describe(card *a2a.AgentCard, skill *a2a.AgentSkill) string {
	var sb strings.Builder
	sb.WriteString(skill.Name)
	if skill.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(skill.Description)
	}
	if card.Description != "" {
		fmt.Fprintf(&sb, " (agent %s: %s)", card.Name, card.Description)
	}
	return sb.String()
}

func (p *Provider) breaker(endpoint string) *resilience.Breaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.breakers[endpoint]
	if !ok {
		b = resilience.NewBreaker(p.brk.MaxFailures, p.brk.Timeout, resilience.WithFailureFilter(resilience.TransportFailure))
		p.breakers[endpoint] = b
	}
	return b
}

// session returns the open session for cardURL, dialing one if needed. The
// dial runs without p.mu so a stalled agent cannot hold up calls to others.
func (p *Provider) session(ctx context.Context, cardURL string) (TaskSender, error) {
	p.mu.Lock()
	s, ok := p.sessions[cardURL]
	p.mu.Unlock()
	if ok {
		return s, nil
	}

	s, err := p.openSession(ctx, cardURL)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = s.Close()
		return nil, fmt.Errorf("%w: provider closed", domain.ErrUnreachable)
	}
	if cur, ok := p.sessions[cardURL]; ok {
		// Another caller won the race.
		_ = s.Close()
		return cur, nil
	}
	p.sessions[cardURL] = s
	return s, nil
}

func (p *Provider) dropSession(cardURL string, s TaskSender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.sessions[cardURL]; ok && cur == s {
		delete(p.sessions, cardURL)
		_ = s.Close()
	}
}

// invoke sends one task for b and converts a non-completed result into an
// error. Tasks are never retried.
func (p *Provider) invoke(ctx context.Context, b *Binding, input string) (string, error) {
	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancel()
	}
	req := &task.Request{ID: uuid.NewString(), Skill: b.Skill.ID, Input: task.Input{Text: input}}
	log := logger.From(logger.WithCorrelationID(ctx, req.ID))

	// Only delivery failures reach the breaker; a delivered failed result
	// says nothing about the agent's reachability.
	var res task.Result
	err := p.breaker(b.Endpoint).Execute(func() error {
		var err error
		res, err = p.send(ctx, b, req)
		return err
	})
	if err == nil {
		err = a2aclient.ResultError(b.Endpoint, &res)
	}
	if err != nil {
		log.Warn("agent task failed", "tool", b.Tool, "agent", b.Agent, "error", err)
		return "", fmt.Errorf("agent %s: %w", b.Agent, err)
	}
	log.Debug("agent task completed", "tool", b.Tool, "agent", b.Agent)
	return res.Output.Text, nil
}

func (p *Provider) send(ctx context.Context, b *Binding, req *task.Request) (task.Result, error) {
	if p.openSession == nil {
		return p.client.SendTask(ctx, b.Endpoint, req)
	}
	s, err := p.session(ctx, b.CardURL)
	if err != nil {
		return task.Result{}, err
	}
	res, err := s.Send(ctx, req)
	if err != nil && errors.Is(err, domain.ErrUnreachable) {
		p.dropSession(b.CardURL, s)
	}
	return res, err
}

// agentTool is a discovered skill seen as a tool taking one "input" string.
type agentTool struct {
	p           *Provider
	b           Binding
	description string
}

func (t *agentTool) Name() string                { return t.b.Tool }
func (t *agentTool) Description() string         { return t.description }
func (t *agentTool) Parameters() json.RawMessage { return tool.TextInputSchema }

func (t *agentTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Input *string `json:"input"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("%w: arguments for %s: %w", domain.ErrMalformed, t.b.Tool, err)
	}
	if in.Input == nil || strings.TrimSpace(*in.Input) == "" {
		return "", fmt.Errorf("%w: %s requires a non-empty input", domain.ErrMalformed, t.b.Tool)
	}
	return t.p.invoke(ctx, &t.b, *in.Input)
}
