// Package ws implements the websocket task session: one connection carries
// many task requests, and results are written back as they finish.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/domain/task"
)

// ReadLimit caps a single inbound frame.
const ReadLimit = 1 << 20

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Executor runs one task to completion. It must always return a result whose
// ID matches the request.
type Executor interface {
	Handle(ctx context.Context, req task.Request) task.Result
}

// conn wraps a single WebSocket connection.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub tracks open task sessions.
type Hub struct {
	exec Executor

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewHub creates a new WebSocket hub dispatching tasks to exec.
func NewHub(exec Executor) *Hub {
	return &Hub{
		exec:  exec,
		conns: make(map[*conn]struct{}),
	}
}

// HandleWS upgrades the connection and serves task messages until the client
// goes away. Each task runs in its own goroutine.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // agents are called server-to-server
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}
	ws.SetReadLimit(ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("websocket session opened", "remote", r.RemoteAddr)
	defer func() {
		h.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var msg Message
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				slog.Debug("websocket read ended", "error", err)
			}
			return
		}
		h.dispatch(ctx, c, msg)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *conn, msg Message) {
	if msg.Type != TypeTask {
		h.write(ctx, c, errorMessage(fmt.Errorf("%w: unexpected message type %q", domain.ErrMalformed, msg.Type)))
		return
	}
	var req task.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		h.write(ctx, c, errorMessage(fmt.Errorf("%w: task payload: %w", domain.ErrMalformed, err)))
		return
	}
	go func() {
		res := h.exec.Handle(ctx, req)
		out, err := NewMessage(TypeResult, res)
		if err != nil {
			slog.Error("websocket result marshal failed", "task_id", req.ID, "error", err)
			return
		}
		h.write(ctx, c, out)
	}()
}

// write is safe for concurrent use; the websocket library serializes writers.
func (h *Hub) write(ctx context.Context, c *conn, msg Message) {
	if err := wsjson.Write(ctx, c.ws, msg); err != nil {
		slog.Debug("websocket write failed", "error", err)
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close ends every open session.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.ws.Close(websocket.StatusGoingAway, "server shutting down")
		h.remove(c)
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket session closed")
	}
}
