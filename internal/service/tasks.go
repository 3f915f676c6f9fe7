package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/docmesh/internal/adapter/otel"
	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/domain/agentcard"
	"github.com/Strob0t/docmesh/internal/domain/task"
	"github.com/Strob0t/docmesh/internal/logger"
	"github.com/Strob0t/docmesh/internal/port/cache"
	"github.com/Strob0t/docmesh/internal/port/events"
	"github.com/Strob0t/docmesh/internal/taskpool"
)

// Defaults for TaskService.
const (
	DefaultTaskTimeout = 2 * time.Minute
	DefaultResultTTL   = 10 * time.Minute
)

// TaskServiceConfig holds the tunables of a TaskService.
type TaskServiceConfig struct {
	TaskTimeout time.Duration
	ResultTTL   time.Duration
}

// TaskService is the agent server's task state machine. It validates
// requests against the published card, bounds concurrent executions, and
// remembers finished results by correlation id.
type TaskService struct {
	card    *a2a.AgentCard
	runner  SkillRunner
	pool    *taskpool.Pool
	results cache.Cache
	events  events.Publisher
	metrics *cfotel.Metrics
	timeout time.Duration
	ttl     time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewTaskService creates a TaskService. A nil publisher disables events.
func NewTaskService(
	card *a2a.AgentCard,
	runner SkillRunner,
	pool *taskpool.Pool,
	results cache.Cache,
	pub events.Publisher,
	cfg TaskServiceConfig,
) *TaskService {
	if pub == nil {
		pub = events.Nop{}
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultTTL
	}
	return &TaskService{
		card:     card,
		runner:   runner,
		pool:     pool,
		results:  results,
		events:   pub,
		metrics:  cfotel.MustMetrics(),
		timeout:  cfg.TaskTimeout,
		ttl:      cfg.ResultTTL,
		inflight: make(map[string]struct{}),
	}
}

// Handle runs req to completion and returns exactly one result carrying
// req.ID. Execution is detached from ctx: if the caller goes away the task
// still finishes and its result stays retrievable through Get.
func (s *TaskService) Handle(ctx context.Context, req task.Request) task.Result {
	ctx = logger.WithCorrelationID(ctx, req.ID)
	log := logger.From(ctx)
	s.metrics.TasksReceived.Add(ctx, 1)
	state := task.StateReceived

	if err := req.Validate(); err != nil {
		return s.reject(ctx, &req, &state, err)
	}
	if res, ok := s.cached(ctx, req.ID); ok {
		log.Info("task already finished, returning cached result", "status", res.Status)
		return res
	}
	skill, err := agentcard.ResolveSkill(s.card, req.Skill)
	if err != nil {
		return s.reject(ctx, &req, &state, err)
	}
	if !s.claim(req.ID) {
		return s.reject(ctx, &req, &state, fmt.Errorf("%w: task %s is already executing", domain.ErrConflict, req.ID))
	}
	// A previous run may have stored its result and released the id since
	// the first lookup.
	if res, ok := s.cached(ctx, req.ID); ok {
		s.release(req.ID)
		log.Info("task already finished, returning cached result", "status", res.Status)
		return res
	}
	s.advance(ctx, &req, &state, task.StateValidated)

	done := make(chan task.Result, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		done <- s.execute(context.WithoutCancel(ctx), skill, &req, state)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		log.Info("caller left before task finished")
		return task.Failed(req.ID, fmt.Errorf("%w: caller cancelled: %w", domain.ErrTimeout, ctx.Err()))
	}
}

// Get returns the last result of a finished task. A task still executing
// yields domain.ErrConflict; an unknown id domain.ErrNotFound.
func (s *TaskService) Get(ctx context.Context, id string) (task.Result, error) {
	if res, ok := s.cached(ctx, id); ok {
		return res, nil
	}
	s.mu.Lock()
	_, running := s.inflight[id]
	s.mu.Unlock()
	if running {
		return task.Result{}, fmt.Errorf("%w: task %s is still executing", domain.ErrConflict, id)
	}
	return task.Result{}, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
}

// Card returns a copy of the published card.
func (s *TaskService) Card() *a2a.AgentCard {
	return agentcard.Clone(s.card)
}

// Wait blocks until every detached execution has finished or ctx ends.
func (s *TaskService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TaskService) execute(ctx context.Context, skill a2a.AgentSkill, req *task.Request, state task.State) task.Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx, span := cfotel.StartTaskSpan(ctx, req.ID, skill.ID)
	defer span.End()
	start := time.Now()

	var out string
	err := s.pool.Run(ctx, func() error {
		s.advance(ctx, req, &state, task.StateExecuting)
		var runErr error
		out, runErr = s.run(ctx, skill, req)
		return runErr
	})

	var res task.Result
	if err == nil {
		s.advance(ctx, req, &state, task.StateCompleted)
		res = task.Completed(req.ID, out)
		s.metrics.TasksCompleted.Add(ctx, 1)
	} else {
		if ctx.Err() != nil && !errors.Is(err, domain.ErrTimeout) {
			err = fmt.Errorf("%w: task exceeded %s: %w", domain.ErrTimeout, s.timeout, err)
		}
		s.advance(ctx, req, &state, task.StateFailed)
		res = task.Failed(req.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.TasksFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("code", res.Error.Code)))
		logger.From(ctx).Warn("task failed", "error", err)
	}

	elapsed := time.Since(start)
	s.metrics.TaskDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("skill", skill.ID)))
	s.store(ctx, &res)
	s.release(req.ID)
	s.publish(ctx, req, state, codeOf(&res), elapsed)
	return res
}

// run calls the runner and turns a panic into an upstream failure.
func (s *TaskService) run(ctx context.Context, skill a2a.AgentSkill, req *task.Request) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.From(ctx).Error("task panicked", "panic", fmt.Sprint(r))
			err = fmt.Errorf("%w: panic: %v", domain.ErrUpstreamFailure, r)
		}
	}()
	return s.runner.RunSkill(ctx, skill, req)
}

func (s *TaskService) reject(ctx context.Context, req *task.Request, state *task.State, err error) task.Result {
	s.advance(ctx, req, state, task.StateRejected)
	s.metrics.TasksRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("code", domain.Code(err))))
	logger.From(ctx).Info("task rejected", "skill", req.Skill, "error", err)
	res := task.Rejected(req.ID, err)
	s.publish(ctx, req, *state, res.Error.Code, 0)
	return res
}

// advance moves the state machine; an illegal transition is a bug and is
// logged rather than applied.
func (s *TaskService) advance(ctx context.Context, req *task.Request, state *task.State, to task.State) {
	if !task.CanTransition(*state, to) {
		logger.From(ctx).Error("illegal task transition", "from", *state, "to", to)
		return
	}
	*state = to
	if to == task.StateValidated || to == task.StateExecuting {
		s.publish(ctx, req, to, "", 0)
	}
}

func (s *TaskService) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *TaskService) release(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

func (s *TaskService) cached(ctx context.Context, id string) (task.Result, bool) {
	if s.results == nil || id == "" {
		return task.Result{}, false
	}
	data, ok, err := s.results.Get(ctx, id)
	if err != nil || !ok {
		return task.Result{}, false
	}
	var res task.Result
	if err := json.Unmarshal(data, &res); err != nil {
		logger.From(ctx).Warn("discarding undecodable cached result", "error", err)
		return task.Result{}, false
	}
	return res, true
}

func (s *TaskService) store(ctx context.Context, res *task.Result) {
	if s.results == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		logger.From(ctx).Error("marshal task result", "error", err)
		return
	}
	if err := s.results.Set(ctx, res.ID, data, s.ttl); err != nil {
		logger.From(ctx).Warn("cache task result", "error", err)
	}
}

func (s *TaskService) publish(ctx context.Context, req *task.Request, state task.State, code string, elapsed time.Duration) {
	ev := events.TaskEvent{
		TaskID:     req.ID,
		Agent:      s.card.Name,
		Skill:      req.Skill,
		State:      string(state),
		Code:       code,
		DurationMS: elapsed.Milliseconds(),
		Time:       time.Now().UTC(),
	}
	data, err := json.Marshal(&ev)
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, ev.Subject(), data); err != nil {
		logger.From(ctx).Warn("publish task event", "subject", ev.Subject(), "error", err)
	}
}

func codeOf(res *task.Result) string {
	if res.Error == nil {
		return ""
	}
	return res.Error.Code
}
