package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/pagenotes/notehub/internal/notestore"
)

type HubOptions struct {
	// OutboxSize bounds the per-connection broadcast buffer.
	OutboxSize int
	Logger     *slog.Logger
}

// Hub is the privileged side of the Context Bridge. It executes engine
// operations on behalf of connected contexts and pushes changed events to
// every other live context after each successful mutation.
type Hub struct {
	store      *notestore.Store
	outboxSize int
	logger     *slog.Logger

	mu    sync.Mutex
	conns map[*hubConn]struct{}

	sub       *notestore.Subscription
	closeOnce sync.Once
}

type hubConn struct {
	ws     *websocket.Conn
	outbox *eventQueue

	mu    sync.Mutex
	muted map[string]int
}

func NewHub(store *notestore.Store) *Hub {
	return NewHubWithOptions(store, HubOptions{})
}

func NewHubWithOptions(store *notestore.Store, opts HubOptions) *Hub {
	outboxSize := opts.OutboxSize
	if outboxSize <= 0 {
		outboxSize = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		store:      store,
		outboxSize: outboxSize,
		logger:     logger,
		conns:      map[*hubConn]struct{}{},
	}
	h.sub = store.SubscribeAll(h.fanOut)
	return h
}

// Close stops fan-out and disconnects every context. The store itself is
// owned by the caller and stays up.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.sub.Cancel()
		h.mu.Lock()
		conns := make([]*hubConn, 0, len(h.conns))
		for conn := range h.conns {
			conns = append(conns, conn)
		}
		h.mu.Unlock()
		for _, conn := range conns {
			_ = conn.ws.Close(websocket.StatusGoingAway, "hub shutting down")
		}
	})
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Debug("bridge accept failed", "error", err)
		return
	}
	conn := &hubConn{
		ws:     ws,
		outbox: newEventQueue(h.outboxSize),
		muted:  map[string]int{},
	}
	h.addConn(conn)
	connectedContexts.Inc()
	h.logger.Debug("bridge context connected", "remote", r.RemoteAddr)
	defer func() {
		h.removeConn(conn)
		connectedContexts.Dec()
		h.logger.Debug("bridge context disconnected", "remote", r.RemoteAddr)
		_ = ws.CloseNow()
	}()

	ctx := r.Context()
	go conn.writeLoop(ctx)
	h.readLoop(ctx, conn)
}

func (h *Hub) readLoop(ctx context.Context, conn *hubConn) {
	for {
		_, data, err := conn.ws.Read(ctx)
		if err != nil {
			return
		}
		h.handleFrame(ctx, conn, data)
	}
}

func (h *Hub) handleFrame(ctx context.Context, conn *hubConn, data []byte) {
	if err := ValidateRequestFrame(data); err != nil {
		var probe struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(data, &probe)
		requestsTotal.WithLabelValues("unknown", "bad_request").Inc()
		h.respond(ctx, conn, Response{
			ID:    probe.ID,
			Error: &ErrorInfo{Code: "bad_request", Message: err.Error()},
		})
		return
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		requestsTotal.WithLabelValues("unknown", "bad_request").Inc()
		h.respond(ctx, conn, Response{
			Error: &ErrorInfo{Code: "bad_request", Message: "undecodable request frame"},
		})
		return
	}
	resp := h.dispatch(ctx, conn, req)
	outcome := "ok"
	if resp.Error != nil {
		outcome = resp.Error.Code
	}
	requestsTotal.WithLabelValues(req.Op, outcome).Inc()
	h.respond(ctx, conn, resp)
}

// dispatch executes the engine operation and returns its result or error
// verbatim. The originating connection is muted for the mutated page while
// the engine call runs: the fan-out it triggers goes to every other live
// context, and the originator learns the outcome from its response.
func (h *Hub) dispatch(ctx context.Context, conn *hubConn, req Request) Response {
	switch req.Op {
	case OpAdd:
		conn.mute(req.PageKey)
		note, err := h.store.Add(ctx, req.PageKey, req.Text)
		conn.unmute(req.PageKey)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		return Response{ID: req.ID, OK: true, Note: &note}
	case OpRemove:
		conn.mute(req.PageKey)
		removed, err := h.store.Remove(ctx, req.PageKey, req.NoteID)
		conn.unmute(req.PageKey)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		return Response{ID: req.ID, OK: true, Removed: &removed}
	case OpList:
		notes, err := h.store.List(ctx, req.PageKey)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		if notes == nil {
			notes = []notestore.Note{}
		}
		return Response{ID: req.ID, OK: true, Notes: notes}
	case OpPages:
		pages, err := h.store.Pages(ctx)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		if pages == nil {
			pages = []string{}
		}
		return Response{ID: req.ID, OK: true, Pages: pages}
	default:
		return Response{ID: req.ID, Error: &ErrorInfo{Code: "bad_request", Message: "unknown operation: " + req.Op}}
	}
}

func (h *Hub) respond(ctx context.Context, conn *hubConn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		h.logger.Warn("bridge response marshal failed", "error", err)
		return
	}
	if err := conn.ws.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("bridge response write failed", "error", err)
	}
}

// fanOut pushes a changed event into every connection's outbox except the
// ones muted for that page. Full outboxes drop the event rather than block
// the mutating context.
func (h *Hub) fanOut(pageKey string) {
	frame, err := json.Marshal(EventFrame{Event: EventChanged, PageKey: pageKey})
	if err != nil {
		return
	}
	h.mu.Lock()
	conns := make([]*hubConn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		if conn.isMuted(pageKey) {
			continue
		}
		if conn.outbox.TryEnqueue(frame) {
			broadcastsTotal.Inc()
		} else {
			droppedEventsTotal.Inc()
		}
	}
}

func (h *Hub) addConn(conn *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *Hub) removeConn(conn *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

func (c *hubConn) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.outbox.Frames():
			if err := c.ws.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		}
	}
}

func (c *hubConn) mute(pageKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted[pageKey]++
}

func (c *hubConn) unmute(pageKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.muted[pageKey] <= 1 {
		delete(c.muted, pageKey)
	} else {
		c.muted[pageKey]--
	}
}

func (c *hubConn) isMuted(pageKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted[pageKey] > 0
}

func errorResponse(id string, err error) Response {
	code := "internal"
	switch {
	case errors.Is(err, notestore.ErrValidation):
		code = "validation"
	case errors.Is(err, notestore.ErrCorruptState):
		code = "corrupt_state"
	case errors.Is(err, notestore.ErrNotFound):
		code = "not_found"
	}
	return Response{ID: id, Error: &ErrorInfo{Code: code, Message: err.Error()}}
}
