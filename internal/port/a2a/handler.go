// Package a2a serves the agent-to-agent surface of an agent server: the
// published card, one-shot task invocation and task sessions.
package a2a

import (
	"context"
	"net/http"

	sdka2a "github.com/a2aproject/a2a-go/a2a"
	"github.com/go-chi/chi/v5"

	cfhttp "github.com/Strob0t/docmesh/internal/adapter/http"
	"github.com/Strob0t/docmesh/internal/domain/agentcard"
	"github.com/Strob0t/docmesh/internal/domain/task"
	"github.com/Strob0t/docmesh/internal/logger"
)

// Tasks is the task service behind the handler.
type Tasks interface {
	Handle(ctx context.Context, req task.Request) task.Result
	Get(ctx context.Context, id string) (task.Result, error)
	Card() *sdka2a.AgentCard
}

// Handler serves the A2A protocol endpoints.
type Handler struct {
	tasks   Tasks
	session http.HandlerFunc
}

// NewHandler creates an A2A handler. session serves GET /a2a/ws and may be
// nil when sessions are disabled.
func NewHandler(tasks Tasks, session http.HandlerFunc) *Handler {
	return &Handler{tasks: tasks, session: session}
}

// MountRoutes registers A2A routes on the given chi router.
// These are mounted at the root level.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(agentcard.WellKnownPath, h.handleAgentCard)
	r.Get(agentcard.AltWellKnownPath, h.handleAgentCard)
	r.Post("/a2a/tasks", h.handleCreateTask)
	r.Get("/a2a/tasks/{id}", h.handleGetTask)
	if h.session != nil {
		r.Get("/a2a/ws", h.session)
	}
}

func (h *Handler) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	cfhttp.WriteJSON(w, http.StatusOK, h.tasks.Card())
}

// handleCreateTask answers every decodable request with 200 and a task
// result; the result status carries the outcome.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := cfhttp.ReadJSON[task.Request](w, r, cfhttp.DefaultBodyLimit)
	if !ok {
		return
	}
	ctx := logger.WithCorrelationID(r.Context(), req.ID)
	logger.From(ctx).Info("a2a task received", "skill", req.Skill)

	res := h.tasks.Handle(ctx, req)
	cfhttp.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	res, err := h.tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		cfhttp.WriteDomainError(w, err)
		return
	}
	cfhttp.WriteJSON(w, http.StatusOK, res)
}
