package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/pagenotes/notehub/internal/notestore"
)

const defaultRequestTimeout = 5 * time.Second

type ClientOptions struct {
	// RequestTimeout bounds each Request; expiry yields ErrBridgeTimeout.
	RequestTimeout time.Duration
}

// Client is the unprivileged side of the Context Bridge: a context without
// backend access that routes note operations through the hub and receives
// its changed broadcasts.
type Client struct {
	ws      *websocket.Conn
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan Response

	subMu     sync.Mutex
	listeners map[uint64]clientListener
	subSeq    uint64

	closed    chan struct{}
	closeOnce sync.Once
}

type clientListener struct {
	pageKey string
	fn      func(pageKey string)
}

// ClientSubscription is a registered broadcast listener; Cancel it when the
// consuming view goes away.
type ClientSubscription struct {
	client *Client
	id     uint64
}

func (s *ClientSubscription) Cancel() {
	if s == nil || s.client == nil {
		return
	}
	s.client.unsubscribe(s.id)
}

func Dial(ctx context.Context, url string) (*Client, error) {
	return DialWithOptions(ctx, url, ClientOptions{})
}

func DialWithOptions(ctx context.Context, url string, opts ClientOptions) (*Client, error) {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge dial %s: %w", url, err)
	}
	c := &Client{
		ws:        ws,
		timeout:   timeout,
		pending:   map[string]chan Response{},
		listeners: map[uint64]clientListener{},
		closed:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
	})
}

// Request sends one operation frame and waits for the matching response.
// On timeout the caller must not assume the operation did not happen: it
// may have committed on the privileged side with only the response lost.
func (c *Client) Request(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ch := make(chan Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	frame, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	writeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.ws.Write(writeCtx, websocket.MessageText, frame); err != nil {
		return Response{}, fmt.Errorf("bridge write: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		return Response{}, fmt.Errorf("%w: no response to %s within %s", ErrBridgeTimeout, req.Op, c.timeout)
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-c.closed:
		return Response{}, ErrClosed
	}
}

func (c *Client) Add(ctx context.Context, pageKey, text string) (notestore.Note, error) {
	resp, err := c.Request(ctx, Request{Op: OpAdd, PageKey: pageKey, Text: text})
	if err != nil {
		return notestore.Note{}, err
	}
	if resp.Error != nil {
		return notestore.Note{}, remoteError(resp.Error)
	}
	if resp.Note == nil {
		return notestore.Note{}, errors.New("bridge add: response carried no note")
	}
	return *resp.Note, nil
}

func (c *Client) Remove(ctx context.Context, pageKey, id string) (bool, error) {
	resp, err := c.Request(ctx, Request{Op: OpRemove, PageKey: pageKey, NoteID: id})
	if err != nil {
		return false, err
	}
	if resp.Error != nil {
		return false, remoteError(resp.Error)
	}
	return resp.Removed != nil && *resp.Removed, nil
}

func (c *Client) List(ctx context.Context, pageKey string) ([]notestore.Note, error) {
	resp, err := c.Request(ctx, Request{Op: OpList, PageKey: pageKey})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, remoteError(resp.Error)
	}
	if resp.Notes == nil {
		return []notestore.Note{}, nil
	}
	return resp.Notes, nil
}

func (c *Client) Pages(ctx context.Context) ([]string, error) {
	resp, err := c.Request(ctx, Request{Op: OpPages})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, remoteError(resp.Error)
	}
	return resp.Pages, nil
}

// Subscribe registers fn for changed broadcasts on pageKey. A broadcast with
// an empty pageKey (unattributed change) reaches every listener with its own
// key, mirroring the engine's semantics.
func (c *Client) Subscribe(pageKey string, fn func(pageKey string)) *ClientSubscription {
	if fn == nil {
		return &ClientSubscription{}
	}
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subSeq++
	id := c.subSeq
	c.listeners[id] = clientListener{pageKey: pageKey, fn: fn}
	return &ClientSubscription{client: c, id: id}
}

func (c *Client) SubscribeAll(fn func(pageKey string)) *ClientSubscription {
	return c.Subscribe("", fn)
}

func (c *Client) unsubscribe(id uint64) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.listeners, id)
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.ws.Read(context.Background())
		if err != nil {
			c.Close()
			return
		}
		var probe struct {
			Event string `json:"event"`
			ID    string `json:"id"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			continue
		}
		if probe.Event != "" {
			var event EventFrame
			if err := json.Unmarshal(data, &event); err != nil {
				continue
			}
			c.dispatchEvent(event)
			continue
		}
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		c.mu.Unlock()
		if ok {
			select {
			case ch <- resp:
			default:
			}
		}
	}
}

func (c *Client) dispatchEvent(event EventFrame) {
	if event.Event != EventChanged {
		return
	}
	c.subMu.Lock()
	listeners := make([]clientListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.subMu.Unlock()
	for _, l := range listeners {
		switch {
		case l.pageKey == "":
			l.fn(event.PageKey)
		case event.PageKey == "" || event.PageKey == l.pageKey:
			l.fn(l.pageKey)
		}
	}
}

// remoteError reconstructs the engine's error taxonomy from the wire shape
// so errors.Is works the same on both sides of the bridge.
func remoteError(info *ErrorInfo) error {
	switch info.Code {
	case "validation":
		return fmt.Errorf("%w: %s", notestore.ErrValidation, info.Message)
	case "corrupt_state":
		return fmt.Errorf("%w: %s", notestore.ErrCorruptState, info.Message)
	case "not_found":
		return fmt.Errorf("%w: %s", notestore.ErrNotFound, info.Message)
	default:
		return fmt.Errorf("bridge remote error (%s): %s", info.Code, info.Message)
	}
}
