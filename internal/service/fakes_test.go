package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/Strob0t/docmesh/internal/domain/task"
	"github.com/Strob0t/docmesh/internal/port/llm"
)

// modelFunc adapts a function to llm.ChatModel.
type modelFunc func(ctx context.Context, req llm.Request) (llm.Response, error)

func (f modelFunc) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	return f(ctx, req)
}

// scriptedModel replays responses in order and records every request.
type scriptedModel struct {
	mu        sync.Mutex
	responses []llm.Response
	requests  []llm.Request
}

func (m *scriptedModel) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.responses) == 0 {
		return llm.Response{Content: "done"}, nil
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	return r, nil
}

func callTool(id, name, args string) llm.Response {
	return llm.Response{ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: json.RawMessage(args)}}}
}

type fakeTool struct {
	name string
	out  string
	err  error

	mu    sync.Mutex
	calls []string
}

func (t *fakeTool) Name() string                { return t.name }
func (t *fakeTool) Description() string         { return "fake " + t.name }
func (t *fakeTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (t *fakeTool) Invoke(_ context.Context, args json.RawMessage) (string, error) {
	t.mu.Lock()
	t.calls = append(t.calls, string(args))
	t.mu.Unlock()
	return t.out, t.err
}

// runnerFunc adapts a function to SkillRunner.
type runnerFunc func(ctx context.Context, skill a2a.AgentSkill, req *task.Request) (string, error)

func (f runnerFunc) RunSkill(ctx context.Context, skill a2a.AgentSkill, req *task.Request) (string, error) {
	return f(ctx, skill, req)
}

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// gateCache pauses the first Get after arm until resume is closed. The
// Get still reads the underlying cache before pausing.
type gateCache struct {
	*memCache
	armed  atomic.Bool
	paused chan struct{}
	resume chan struct{}
}

func newGateCache() *gateCache {
	return &gateCache{memCache: newMemCache(), paused: make(chan struct{}), resume: make(chan struct{})}
}

func (c *gateCache) arm() { c.armed.Store(true) }

func (c *gateCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := c.memCache.Get(ctx, key)
	if c.armed.CompareAndSwap(true, false) {
		close(c.paused)
		<-c.resume
	}
	return v, ok, err
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}
