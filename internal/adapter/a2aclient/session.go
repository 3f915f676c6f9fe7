package a2aclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Strob0t/docmesh/internal/adapter/ws"
	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/domain/task"
)

// ErrSessionClosed is returned for calls on a closed session.
var ErrSessionClosed = fmt.Errorf("%w: session closed", domain.ErrUnreachable)

// Session multiplexes many tasks over one websocket connection. Results are
// routed back to callers by correlation id; they may arrive in any order.
type Session struct {
	conn     *websocket.Conn
	endpoint string
	cancel   context.CancelFunc
	done     chan struct{}

	mu      sync.Mutex
	pending map[string]chan task.Result
	err     error
}

// SessionURL returns the websocket endpoint for a card URL.
func SessionURL(cardURL string) (string, error) {
	u, err := url.Parse(cardURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.JoinPath("a2a", "ws").String(), nil
}

// OpenSession dials the agent's session endpoint. ctx bounds the dial only.
func (c *Client) OpenSession(ctx context.Context, cardURL string) (*Session, error) {
	endpoint, err := SessionURL(cardURL)
	if err != nil {
		return nil, fmt.Errorf("%w: agent url %q: %w", domain.ErrValidation, cardURL, err)
	}
	opts := &websocket.DialOptions{}
	if c.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + c.token}}
	}
	conn, resp, err := websocket.Dial(ctx, endpoint, opts)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, transportError(endpoint, err)
	}
	conn.SetReadLimit(ws.ReadLimit)

	readCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		conn:     conn,
		endpoint: endpoint,
		cancel:   cancel,
		done:     make(chan struct{}),
		pending:  make(map[string]chan task.Result),
	}
	go s.readLoop(readCtx)
	return s, nil
}

// Send submits req and waits for its result or ctx.
func (s *Session) Send(ctx context.Context, req *task.Request) (task.Result, error) {
	ch := make(chan task.Result, 1)

	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return task.Result{}, err
	}
	if _, dup := s.pending[req.ID]; dup {
		s.mu.Unlock()
		return task.Result{}, fmt.Errorf("%w: task %s already pending on session", domain.ErrConflict, req.ID)
	}
	s.pending[req.ID] = ch
	s.mu.Unlock()
	defer s.forget(req.ID)

	msg, err := ws.NewMessage(ws.TypeTask, req)
	if err != nil {
		return task.Result{}, fmt.Errorf("%w: %w", domain.ErrMalformed, err)
	}
	if err := wsjson.Write(ctx, s.conn, msg); err != nil {
		return task.Result{}, transportError(s.endpoint, err)
	}

	select {
	case res := <-ch:
		if err := checkResult(req.ID, &res); err != nil {
			return task.Result{}, err
		}
		return res, nil
	case <-s.done:
		return task.Result{}, s.closeErr()
	case <-ctx.Done():
		return task.Result{}, fmt.Errorf("%w: task %s: %w", domain.ErrTimeout, req.ID, ctx.Err())
	}
}

// Pending returns the number of tasks awaiting a result.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close ends the session; callers still waiting get ErrSessionClosed.
func (s *Session) Close() error {
	s.fail(ErrSessionClosed)
	err := s.conn.Close(websocket.StatusNormalClosure, "")
	s.cancel()
	<-s.done
	return err
}

func (s *Session) readLoop(ctx context.Context) {
	defer close(s.done)
	for {
		var msg ws.Message
		if err := wsjson.Read(ctx, s.conn, &msg); err != nil {
			s.fail(transportError(s.endpoint, err))
			return
		}
		switch msg.Type {
		case ws.TypeResult:
			var res task.Result
			if err := json.Unmarshal(msg.Payload, &res); err != nil {
				slog.Warn("session: malformed result", "endpoint", s.endpoint, "error", err)
				continue
			}
			s.deliver(res)
		case ws.TypeError:
			var ep ws.ErrorPayload
			_ = json.Unmarshal(msg.Payload, &ep)
			slog.Warn("session: agent reported error", "endpoint", s.endpoint, "code", ep.Code, "message", ep.Message)
		default:
			slog.Debug("session: ignoring message", "type", msg.Type)
		}
	}
}

func (s *Session) deliver(res task.Result) {
	s.mu.Lock()
	ch, ok := s.pending[res.ID]
	s.mu.Unlock()
	if !ok {
		slog.Debug("session: result for unknown task", "task_id", res.ID)
		return
	}
	select {
	case ch <- res:
	default:
	}
}

func (s *Session) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *Session) closeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return ErrSessionClosed
	}
	return s.err
}
