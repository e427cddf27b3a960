package ipc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/1broseidon/multiwin/internal/platform"
)

// ErrHandlerExists is returned when a command already has a handler.
var ErrHandlerExists = errors.New("handler already registered")

// Caller identifies the session a request arrived on.
type Caller struct {
	SessionID string
	// WindowID is the window the session is attached to, or NoWindow.
	WindowID platform.WindowID
}

// HandlerFunc serves one command. It must always return a response.
type HandlerFunc func(ctx context.Context, req *Request, caller Caller) *Response

// Router maps commands to handlers. It is safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	handlers map[CommandType]HandlerFunc
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[CommandType]HandlerFunc)}
}

// Handle registers h for cmd. A command holds at most one handler.
func (r *Router) Handle(cmd CommandType, h HandlerFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[cmd]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerExists, cmd)
	}
	r.handlers[cmd] = h
	return nil
}

// Remove drops the handler for cmd, if any.
func (r *Router) Remove(cmd CommandType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, cmd)
}

// Has reports whether cmd has a handler.
func (r *Router) Has(cmd CommandType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[cmd]
	return ok
}

// Commands returns the registered commands, sorted.
func (r *Router) Commands() []CommandType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]CommandType, 0, len(r.handlers))
	for cmd := range r.handlers {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })
	return cmds
}

// Serve runs the handler for req.Command and stamps the request id on the
// response.
func (r *Router) Serve(ctx context.Context, req *Request, caller Caller) *Response {
	r.mu.RLock()
	h, ok := r.handlers[req.Command]
	r.mu.RUnlock()

	var resp *Response
	if !ok {
		resp = NewErrorResponse(fmt.Sprintf("No handler registered for %s", req.Command))
	} else {
		resp = h(ctx, req, caller)
		if resp == nil {
			resp, _ = NewOKResponse(nil)
		}
	}
	resp.ID = req.ID
	return resp
}
