// Package dispatch exposes the window commands on the IPC router.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/multiwin/internal/actionlog"
	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
	"github.com/1broseidon/multiwin/internal/registry"
)

// State is the dispatcher's registration state.
type State int

const (
	StateUninitialized State = iota
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRegistered:
		return "registered"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Executor runs fn on the goroutine that owns the registry and waits for it.
type Executor interface {
	Do(ctx context.Context, fn func()) error
}

// Options configures a Dispatcher.
type Options struct {
	Logger  *slog.Logger
	Actions *actionlog.Logger
	// OnFatal is told about failures after which no window can ever be
	// created.
	OnFatal func(error)
}

// Dispatcher serves CreateNewWindow, GetWindowIds and SendMessage from a
// registry.
type Dispatcher struct {
	router   *ipc.Router
	registry *registry.Registry
	exec     Executor
	logger   *slog.Logger
	actions  *actionlog.Logger
	onFatal  func(error)

	mu    sync.Mutex
	state State
}

// New creates an unregistered dispatcher.
func New(router *ipc.Router, reg *registry.Registry, exec Executor, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if exec == nil {
		exec = inline{}
	}
	return &Dispatcher{
		router:   router,
		registry: reg,
		exec:     exec,
		logger:   logger,
		actions:  opts.Actions,
		onFatal:  opts.OnFatal,
	}
}

// State returns the current registration state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

type route struct {
	cmd ipc.CommandType
	fn  ipc.HandlerFunc
}

func (d *Dispatcher) routes() []route {
	return []route{
		{ipc.CommandCreateNewWindow, d.handleCreateNewWindow},
		{ipc.CommandGetWindowIDs, d.handleGetWindowIDs},
		{ipc.CommandSendMessage, d.handleSendMessage},
	}
}

// Init registers the command handlers. Calling it again while registered is a
// no-op. If any handler cannot be registered, those already added are removed
// and the dispatcher stays uninitialized.
func (d *Dispatcher) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateRegistered {
		return nil
	}

	var added []ipc.CommandType
	for _, h := range d.routes() {
		if err := d.router.Handle(h.cmd, h.fn); err != nil {
			for _, cmd := range added {
				d.router.Remove(cmd)
			}
			return fmt.Errorf("failed to register %s: %w", h.cmd, err)
		}
		added = append(added, h.cmd)
	}

	d.state = StateRegistered
	d.logger.Info("dispatcher registered", "commands", added)
	return nil
}

// Release removes the command handlers. It is a no-op when uninitialized.
func (d *Dispatcher) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateUninitialized {
		return
	}
	for _, h := range d.routes() {
		d.router.Remove(h.cmd)
	}
	d.state = StateUninitialized
	d.logger.Info("dispatcher released")
}

func (d *Dispatcher) handleCreateNewWindow(ctx context.Context, _ *ipc.Request, caller ipc.Caller) *ipc.Response {
	var id platform.WindowID
	var createErr error
	if err := d.exec.Do(ctx, func() {
		id, createErr = d.registry.CreateWindow()
	}); err != nil {
		return ipc.NewErrorResponse(fmt.Sprintf("Failed to create window: %v", err))
	}

	if createErr != nil {
		d.logger.Error("window creation failed", "session", caller.SessionID, "error", createErr)
		if errors.Is(createErr, platform.ErrDisplayUnavailable) && d.onFatal != nil {
			d.onFatal(createErr)
		}
		return ipc.NewErrorResponse(fmt.Sprintf("Failed to create window: %v", createErr))
	}

	d.logger.Debug("window created on request", "window", id, "session", caller.SessionID)
	resp, _ := ipc.NewOKResponse(nil)
	return resp
}

func (d *Dispatcher) handleGetWindowIDs(ctx context.Context, _ *ipc.Request, _ ipc.Caller) *ipc.Response {
	var ids []platform.WindowID
	if err := d.exec.Do(ctx, func() {
		ids = d.registry.ListIDs()
	}); err != nil {
		return ipc.NewErrorResponse(fmt.Sprintf("Failed to list windows: %v", err))
	}

	resp, err := ipc.NewOKResponse(ids)
	if err != nil {
		return ipc.NewErrorResponse(err.Error())
	}
	return resp
}

func (d *Dispatcher) handleSendMessage(ctx context.Context, req *ipc.Request, caller ipc.Caller) *ipc.Response {
	var p ipc.SendMessagePayload
	if err := ipc.DecodePayload(req.Payload, &p); err != nil {
		return ipc.NewErrorResponse(fmt.Sprintf("Invalid SendMessage payload: %v", err))
	}

	delivered := false
	if err := d.exec.Do(ctx, func() {
		h, ok := d.registry.Lookup(p.TargetID)
		if !ok {
			return
		}
		h.Channel.Send(ipc.EventUpdateMessage, p.Text)
		delivered = true
	}); err != nil {
		return ipc.NewErrorResponse(fmt.Sprintf("Failed to send message: %v", err))
	}

	d.logger.Debug("message sent", "target", p.TargetID, "delivered", delivered, "from", caller.WindowID)
	details := map[string]interface{}{"delivered": delivered}
	if d.actions.IncludeContent() {
		details["text"] = d.actions.Preview(p.Text)
	}
	d.actions.Log(actionlog.ActionSend, uint32(p.TargetID), details)

	resp, err := ipc.NewOKResponse(ipc.SendMessageResult{
		Delivered: delivered,
		TargetID:  p.TargetID,
		Text:      p.Text,
	})
	if err != nil {
		return ipc.NewErrorResponse(err.Error())
	}
	return resp
}

type inline struct{}

func (inline) Do(_ context.Context, fn func()) error {
	fn()
	return nil
}
