package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/domain/agentcard"
	"github.com/Strob0t/docmesh/internal/domain/task"
	"github.com/Strob0t/docmesh/internal/taskpool"
)

func testCard(t *testing.T) *a2a.AgentCard {
	t.Helper()
	card, err := agentcard.Build(&agentcard.Params{
		Name:               "doc_summarizer_agent",
		Version:            "1.0.0",
		URL:                "http://localhost:8010/",
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills:             []agentcard.Skill{{ID: "docs.summarize", Name: "Summarize Docs"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return card
}

func newTaskService(t *testing.T, runner SkillRunner, limit int, timeout time.Duration) (*TaskService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	s := NewTaskService(testCard(t), runner, taskpool.New(limit), newMemCache(), pub,
		TaskServiceConfig{TaskTimeout: timeout})
	return s, pub
}

func echoRunner() runnerFunc {
	return func(_ context.Context, _ a2a.AgentSkill, req *task.Request) (string, error) {
		return "summary: " + req.Input.Text, nil
	}
}

func TestHandleCompletes(t *testing.T) {
	s, pub := newTaskService(t, echoRunner(), 2, time.Second)

	res := s.Handle(context.Background(), task.Request{ID: "t1", Skill: "docs.summarize", Input: task.Input{Text: "intro"}})
	if res.ID != "t1" || res.Status != task.StatusCompleted || res.Output.Text != "summary: intro" {
		t.Fatalf("unexpected result %+v", res)
	}

	want := []string{"docmesh.tasks.validated", "docmesh.tasks.executing", "docmesh.tasks.completed"}
	got := pub.Subjects()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}

	cached, err := s.Get(context.Background(), "t1")
	if err != nil || cached.Output.Text != "summary: intro" {
		t.Fatalf("Get = %+v, %v", cached, err)
	}
}

func TestHandleDefaultSkill(t *testing.T) {
	s, _ := newTaskService(t, echoRunner(), 1, time.Second)
	for _, skill := range []string{"", "default"} {
		res := s.Handle(context.Background(), task.Request{ID: "id-" + skill, Skill: skill, Input: task.Input{Text: "x"}})
		if res.Status != task.StatusCompleted {
			t.Fatalf("skill %q: expected completed, got %+v", skill, res)
		}
	}
}

func TestHandleRejectsUnknownSkillWithoutExecuting(t *testing.T) {
	var runs atomic.Int32
	runner := runnerFunc(func(context.Context, a2a.AgentSkill, *task.Request) (string, error) {
		runs.Add(1)
		return "", nil
	})
	s, pub := newTaskService(t, runner, 1, time.Second)

	res := s.Handle(context.Background(), task.Request{ID: "t1", Skill: "docs.delete", Input: task.Input{Text: "x"}})
	if res.Status != task.StatusRejected || res.Error.Code != domain.CodeUnknownSkill {
		t.Fatalf("expected rejected unknown_skill, got %+v", res)
	}
	if runs.Load() != 0 {
		t.Fatal("runner must not execute for an unknown skill")
	}
	if got := pub.Subjects(); len(got) != 1 || got[0] != "docmesh.tasks.rejected" {
		t.Fatalf("expected a single rejected event, got %v", got)
	}
	if _, err := s.Get(context.Background(), "t1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("rejected tasks are not cached, got %v", err)
	}
}

func TestHandleRejectsMalformed(t *testing.T) {
	s, _ := newTaskService(t, echoRunner(), 1, time.Second)
	for _, req := range []task.Request{
		{Skill: "docs.summarize", Input: task.Input{Text: "x"}},
		{ID: "t1", Skill: "docs.summarize"},
	} {
		res := s.Handle(context.Background(), req)
		if res.Status != task.StatusRejected || res.Error.Code != domain.CodeMalformed {
			t.Fatalf("expected rejected malformed for %+v, got %+v", req, res)
		}
	}
}

func TestHandleFailureAndPanic(t *testing.T) {
	failing := runnerFunc(func(context.Context, a2a.AgentSkill, *task.Request) (string, error) {
		return "", fmt.Errorf("%w: docs server gone", domain.ErrUnreachable)
	})
	s, _ := newTaskService(t, failing, 1, time.Second)
	res := s.Handle(context.Background(), task.Request{ID: "f1", Input: task.Input{Text: "x"}})
	if res.Status != task.StatusFailed || res.Error.Code != domain.CodeUnreachable {
		t.Fatalf("expected failed unreachable, got %+v", res)
	}

	panicky := runnerFunc(func(context.Context, a2a.AgentSkill, *task.Request) (string, error) {
		panic("boom")
	})
	s, _ = newTaskService(t, panicky, 1, time.Second)
	res = s.Handle(context.Background(), task.Request{ID: "p1", Input: task.Input{Text: "x"}})
	if res.Status != task.StatusFailed || res.Error.Code != domain.CodeUpstreamFailure {
		t.Fatalf("expected failed upstream_failure after panic, got %+v", res)
	}
}

func TestHandleTimeout(t *testing.T) {
	slow := runnerFunc(func(ctx context.Context, _ a2a.AgentSkill, _ *task.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	s, _ := newTaskService(t, slow, 1, 20*time.Millisecond)

	res := s.Handle(context.Background(), task.Request{ID: "t1", Input: task.Input{Text: "x"}})
	if res.Status != task.StatusFailed || res.Error.Code != domain.CodeTimeout {
		t.Fatalf("expected failed timeout, got %+v", res)
	}
}

func TestHandleDuplicateIDs(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	runner := runnerFunc(func(_ context.Context, _ a2a.AgentSkill, req *task.Request) (string, error) {
		if runs.Add(1) == 1 {
			close(started)
		}
		<-release
		return "done " + req.ID, nil
	})
	s, _ := newTaskService(t, runner, 2, time.Second)
	req := task.Request{ID: "dup", Input: task.Input{Text: "x"}}

	first := make(chan task.Result, 1)
	go func() { first <- s.Handle(context.Background(), req) }()
	<-started

	res := s.Handle(context.Background(), req)
	if res.Status != task.StatusRejected || res.Error.Code != domain.CodeConflict {
		t.Fatalf("expected conflict for in-flight duplicate, got %+v", res)
	}
	if _, err := s.Get(context.Background(), "dup"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict while executing, got %v", err)
	}

	close(release)
	if r := <-first; r.Status != task.StatusCompleted {
		t.Fatalf("expected first to complete, got %+v", r)
	}

	again := s.Handle(context.Background(), req)
	if again.Status != task.StatusCompleted || again.Output.Text != "done dup" {
		t.Fatalf("expected cached result, got %+v", again)
	}
	if runs.Load() != 1 {
		t.Fatalf("finished duplicate must not re-execute, ran %d times", runs.Load())
	}
}

func TestHandleDuplicateAfterStaleMiss(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	runner := runnerFunc(func(_ context.Context, _ a2a.AgentSkill, req *task.Request) (string, error) {
		if runs.Add(1) == 1 {
			close(started)
		}
		<-release
		return "done " + req.ID, nil
	})
	results := newGateCache()
	s := NewTaskService(testCard(t), runner, taskpool.New(2), results, nil, TaskServiceConfig{TaskTimeout: time.Second})
	req := task.Request{ID: "dup", Input: task.Input{Text: "x"}}

	first := make(chan task.Result, 1)
	go func() { first <- s.Handle(context.Background(), req) }()
	<-started

	// The duplicate reads a miss while the first run is still executing,
	// then stays paused until that run has stored and released its id.
	results.arm()
	second := make(chan task.Result, 1)
	go func() { second <- s.Handle(context.Background(), req) }()
	<-results.paused

	close(release)
	if r := <-first; r.Status != task.StatusCompleted {
		t.Fatalf("expected first to complete, got %+v", r)
	}
	close(results.resume)

	r := <-second
	if r.Status != task.StatusCompleted || r.Output.Text != "done dup" {
		t.Fatalf("expected cached result for duplicate, got %+v", r)
	}
	if runs.Load() != 1 {
		t.Fatalf("runner executed %d times for one correlation id", runs.Load())
	}
}

func TestHandleDetachedFromCaller(t *testing.T) {
	release := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, _ a2a.AgentSkill, _ *task.Request) (string, error) {
		select {
		case <-release:
			return "finished", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	s, _ := newTaskService(t, runner, 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan task.Result, 1)
	go func() { done <- s.Handle(ctx, task.Request{ID: "d1", Input: task.Input{Text: "x"}}) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	if res := <-done; res.Status != task.StatusFailed {
		t.Fatalf("caller should see a failure after cancelling, got %+v", res)
	}
	close(release)
	if err := s.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	res, err := s.Get(context.Background(), "d1")
	if err != nil || res.Output.Text != "finished" {
		t.Fatalf("detached execution should finish and be cached, got %+v, %v", res, err)
	}
}

func TestHandleConcurrentCorrelation(t *testing.T) {
	var running, peak atomic.Int32
	runner := runnerFunc(func(_ context.Context, _ a2a.AgentSkill, req *task.Request) (string, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return "echo " + req.Input.Text, nil
	})
	s, _ := newTaskService(t, runner, 8, 5*time.Second)

	const n = 200
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("task-%d", i)
			res := s.Handle(context.Background(), task.Request{ID: id, Input: task.Input{Text: id}})
			if res.ID != id || res.Output == nil || res.Output.Text != "echo "+id {
				t.Errorf("task %s got %+v", id, res)
			}
		}()
	}
	wg.Wait()
	if peak.Load() > 8 {
		t.Fatalf("pool limit exceeded: peak %d", peak.Load())
	}
}

func TestCardIsCopy(t *testing.T) {
	s, _ := newTaskService(t, echoRunner(), 1, time.Second)
	c := s.Card()
	c.Skills[0].ID = "mutated"
	if s.Card().Skills[0].ID != "docs.summarize" {
		t.Fatal("Card must return a copy")
	}
}
