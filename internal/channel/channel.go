// Package channel is the request/response bridge between the interactive
// surface context and the privileged execution context. Each call is
// independently timed; there is no cross-request ordering guarantee.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-region-annotator/internal/apperrors"
)

// MsgType tags one of the closed set of request variants.
type MsgType string

const (
	// MsgCapture requests a full-surface raster snapshot.
	MsgCapture MsgType = "CAPTURE"
	// MsgDeliver asks the privileged context to post an annotation record.
	MsgDeliver MsgType = "DELIVER"
	// MsgSchema asks the privileged context to fetch the taxonomy schema.
	MsgSchema MsgType = "SCHEMA"
)

// Request is one message from the surface to the privileged context.
type Request struct {
	ID      string          `json:"id"`
	Type    MsgType         `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response carries the privileged context's answer. OK false with a
// non-empty Error is an application-level failure, distinct from transport
// failure (which never produces a Response at all).
type Response struct {
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Transport moves a request toward the privileged context. Responses come
// back asynchronously through Client.Dispatch.
type Transport interface {
	Send(req Request) error
}

// DefaultTimeout bounds a single round trip when the client is built with
// a non-positive timeout.
const DefaultTimeout = 5 * time.Second

// Client is the surface-side endpoint.
type Client struct {
	transport Transport
	timeout   time.Duration

	mu      sync.Mutex
	pending map[string]chan Response
}

// NewClient creates a client over the given transport.
func NewClient(transport Transport, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		transport: transport,
		timeout:   timeout,
		pending:   make(map[string]chan Response),
	}
}

// Send issues one request and waits for its response, the per-call timer,
// or context cancellation, whichever comes first. The timer is cleared on
// every resolution path.
func (c *Client) Send(ctx context.Context, msgType MsgType, payload any) (Response, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Response{}, apperrors.NewInternalError("encode request payload", err)
		}
		raw = b
	}

	req := Request{ID: uuid.NewString(), Type: msgType, Payload: raw}

	ch := make(chan Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.transport.Send(req); err != nil {
		return Response{}, apperrors.NewTransportError(fmt.Sprintf("send %s request", msgType), err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if !resp.OK {
			return resp, apperrors.NewApplicationError(
				fmt.Sprintf("%s request rejected: %s", msgType, resp.Error), 0, nil)
		}
		return resp, nil
	case <-timer.C:
		return Response{}, apperrors.NewTimeoutError(
			fmt.Sprintf("no response to %s request within %s", msgType, c.timeout), nil)
	case <-ctx.Done():
		return Response{}, apperrors.NewTransportError(fmt.Sprintf("%s request cancelled", msgType), ctx.Err())
	}
}

// Dispatch routes an incoming response to its waiting call. Responses for
// unknown or already-resolved requests are dropped; a late response after a
// timeout must not block the transport.
func (c *Client) Dispatch(resp Response) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

// HandlerFunc serves one request variant on the privileged side.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Host is the privileged-context endpoint: a registry of handlers keyed by
// message type. The variant set is validated here; unregistered types are
// rejected, never silently swallowed.
type Host struct {
	mu       sync.RWMutex
	handlers map[MsgType]HandlerFunc
}

// NewHost creates an empty handler registry.
func NewHost() *Host {
	return &Host{handlers: make(map[MsgType]HandlerFunc)}
}

// Register installs the handler for one message type.
func (h *Host) Register(msgType MsgType, fn HandlerFunc) {
	h.mu.Lock()
	h.handlers[msgType] = fn
	h.mu.Unlock()
}

// Handle serves one request, turning handler errors into application-level
// failure responses.
func (h *Host) Handle(ctx context.Context, req Request) Response {
	h.mu.RLock()
	fn, ok := h.handlers[req.Type]
	h.mu.RUnlock()
	if !ok {
		return Response{ID: req.ID, OK: false, Error: fmt.Sprintf("unknown request type %q", req.Type)}
	}

	result, err := fn(ctx, req.Payload)
	if err != nil {
		return Response{ID: req.ID, OK: false, Error: err.Error()}
	}

	var raw json.RawMessage
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return Response{ID: req.ID, OK: false, Error: fmt.Sprintf("encode response: %v", err)}
		}
		raw = b
	}
	return Response{ID: req.ID, OK: true, Payload: raw}
}
