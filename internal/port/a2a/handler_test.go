package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	sdka2a "github.com/a2aproject/a2a-go/a2a"
	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/domain/task"
)

type fakeTasks struct {
	mu      sync.Mutex
	results map[string]task.Result
}

func (f *fakeTasks) Handle(_ context.Context, req task.Request) task.Result {
	var res task.Result
	switch {
	case req.ID == "":
		res = task.Rejected("", fmt.Errorf("%w: id is required", domain.ErrMalformed))
	case req.Skill == "nope":
		res = task.Rejected(req.ID, fmt.Errorf("%w: %q", domain.ErrUnknownSkill, req.Skill))
	default:
		res = task.Completed(req.ID, "echo "+req.Input.Text)
	}
	f.mu.Lock()
	f.results[req.ID] = res
	f.mu.Unlock()
	return res
}

func (f *fakeTasks) Get(_ context.Context, id string) (task.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if res, ok := f.results[id]; ok {
		return res, nil
	}
	return task.Result{}, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
}

func (f *fakeTasks) Card() *sdka2a.AgentCard {
	return &sdka2a.AgentCard{Name: "doc_summarizer_agent", URL: "http://localhost:8010/", Version: "1.0.0",
		Skills: []sdka2a.AgentSkill{{ID: "docs.summarize", Name: "Summarize Docs"}}}
}

func newTestRouter() *chi.Mux {
	h := NewHandler(&fakeTasks{results: map[string]task.Result{}}, nil)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func postTask(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, task.Result) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var res task.Result
	if w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return w, res
}

func TestAgentCard(t *testing.T) {
	r := newTestRouter()
	for _, path := range []string{"/.well-known/agent.json", "/.well-known/agent-card.json"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		var card sdka2a.AgentCard
		if err := json.NewDecoder(w.Body).Decode(&card); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if card.Name != "doc_summarizer_agent" || len(card.Skills) != 1 {
			t.Fatalf("unexpected card %+v", card)
		}
	}
}

func TestCreateAndGetTask(t *testing.T) {
	r := newTestRouter()

	w, res := postTask(t, r, `{"correlation_id":"test-1","skill_id":"docs.summarize","input":{"text":"intro"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if res.ID != "test-1" || res.Status != task.StatusCompleted || res.Output.Text != "echo intro" {
		t.Fatalf("unexpected result %+v", res)
	}

	req := httptest.NewRequest(http.MethodGet, "/a2a/tasks/test-1", http.NoBody)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRejectionsAreOK(t *testing.T) {
	r := newTestRouter()
	w, res := postTask(t, r, `{"correlation_id":"t2","skill_id":"nope","input":{"text":"x"}}`)
	if w.Code != http.StatusOK || res.Status != task.StatusRejected || res.Error.Code != domain.CodeUnknownSkill {
		t.Fatalf("expected 200 rejected unknown_skill, got %d %+v", w.Code, res)
	}
}

func TestCreateTaskMalformedBody(t *testing.T) {
	r := newTestRouter()
	w, _ := postTask(t, r, `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/a2a/tasks/nonexistent", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestConcurrentTasksKeepCorrelation(t *testing.T) {
	ts := httptest.NewServer(newTestRouter())
	defer ts.Close()

	const n = 150
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("task-%d", i)
			body := fmt.Sprintf(`{"correlation_id":%q,"input":{"text":%q}}`, id, id)
			resp, err := http.Post(ts.URL+"/a2a/tasks", "application/json", bytes.NewBufferString(body))
			if err != nil {
				t.Error(err)
				return
			}
			defer func() { _ = resp.Body.Close() }()
			var res task.Result
			if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
				t.Error(err)
				return
			}
			if res.ID != id || res.Output == nil || res.Output.Text != "echo "+id {
				t.Errorf("task %s got %+v", id, res)
			}
		}()
	}
	wg.Wait()
}
