// Package registry owns the set of live windows. It is the single source of
// truth for which window ids exist and keeps every live window informed of
// changes to that set.
//
// A Registry is not safe for concurrent use. Its owner runs every call, and
// every scheduled close event, on one goroutine.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"github.com/1broseidon/multiwin/internal/actionlog"
	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
)

// ErrNotFound is returned for operations on an id that is not live.
var ErrNotFound = errors.New("window not found")

// Channel is a window's message channel. Sends are fire-and-forget.
type Channel interface {
	Send(event ipc.EventType, payload any)
	Close()
}

// ChannelFactory opens the message channel for a new window.
type ChannelFactory func(id platform.WindowID) Channel

// Handle is the registry's reference to a live window.
type Handle struct {
	ID      platform.WindowID
	Bounds  platform.Rect
	Channel Channel
}

// Options configures a Registry.
type Options struct {
	// Title is given to every surface.
	Title string
	// Schedule runs close events on the owner's goroutine. Nil runs them
	// inline on whichever goroutine the backend reports from.
	Schedule func(func())
	// OnCreated runs after a new window has been registered and announced.
	OnCreated func(h *Handle)
	// OnAllClosed runs after a close leaves the registry empty.
	OnAllClosed func()
	Logger      *slog.Logger
	Actions     *actionlog.Logger
}

// Registry maps window ids to handles.
type Registry struct {
	backend  platform.Backend
	channels ChannelFactory
	windows  map[platform.WindowID]*Handle
	fanout   *Fanout

	title       string
	schedule    func(func())
	onCreated   func(h *Handle)
	onAllClosed func()
	logger      *slog.Logger
	actions     *actionlog.Logger
}

// New creates an empty registry over backend.
func New(backend platform.Backend, channels ChannelFactory, opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	schedule := opts.Schedule
	if schedule == nil {
		schedule = func(fn func()) { fn() }
	}
	if channels == nil {
		channels = func(platform.WindowID) Channel { return discardChannel{} }
	}

	return &Registry{
		backend:     backend,
		channels:    channels,
		windows:     make(map[platform.WindowID]*Handle),
		fanout:      NewFanout(logger, opts.Actions),
		title:       opts.Title,
		schedule:    schedule,
		onCreated:   opts.OnCreated,
		onAllClosed: opts.OnAllClosed,
		logger:      logger,
		actions:     opts.Actions,
	}
}

// CreateWindow creates a surface covering the primary display's usable area,
// registers it and broadcasts the new id list to every live window, the new
// one included. An error wrapping platform.ErrDisplayUnavailable means no
// window can be created at all.
func (r *Registry) CreateWindow() (platform.WindowID, error) {
	area, err := r.backend.PrimaryWorkArea()
	if err != nil {
		return platform.NoWindow, fmt.Errorf("failed to query primary display: %w", err)
	}

	id, err := r.backend.CreateSurface(platform.SurfaceOptions{
		Title:  r.title,
		Bounds: area,
	}, r.surfaceClosed)
	if err != nil {
		return platform.NoWindow, fmt.Errorf("failed to create surface: %w", err)
	}

	if old, ok := r.windows[id]; ok {
		// Backends never hand out a live id twice; drop the stale handle's
		// channel rather than leak it.
		r.logger.Warn("backend reused a live window id", "window", id)
		old.Channel.Close()
	}

	h := &Handle{
		ID:      id,
		Bounds:  area,
		Channel: r.channels(id),
	}
	r.windows[id] = h
	r.logger.Info("window created", "window", id, "bounds", area, "windows", len(r.windows))
	r.actions.Log(actionlog.ActionCreate, uint32(id), map[string]interface{}{
		"width":  area.Width,
		"height": area.Height,
	})

	r.fanout.Broadcast(r.handles(), r.ListIDs(), platform.NoWindow)
	if r.onCreated != nil {
		r.onCreated(h)
	}
	return id, nil
}

// ListIDs returns a snapshot of the live ids in ascending order.
func (r *Registry) ListIDs() []platform.WindowID {
	ids := lo.Keys(r.windows)
	slices.Sort(ids)
	return ids
}

// Len returns the number of live windows.
func (r *Registry) Len() int {
	return len(r.windows)
}

// Lookup returns the handle of a live window.
func (r *Registry) Lookup(id platform.WindowID) (*Handle, bool) {
	h, ok := r.windows[id]
	return h, ok
}

// CloseWindow asks the backend to close a live window. The registry forgets
// the window when the surface reports its close event.
func (r *Registry) CloseWindow(id platform.WindowID) error {
	if _, ok := r.windows[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err := r.backend.CloseSurface(id); err != nil {
		return fmt.Errorf("failed to close window %d: %w", id, err)
	}
	return nil
}

// CloseAll asks the backend to close every live window.
func (r *Registry) CloseAll() {
	for _, id := range r.ListIDs() {
		if err := r.CloseWindow(id); err != nil {
			r.logger.Warn("failed to close window", "window", id, "error", err)
		}
	}
}

// Reconcile drops every window whose surface no longer exists, as if its close
// event had fired, and returns the dropped ids.
func (r *Registry) Reconcile() []platform.WindowID {
	var stale []platform.WindowID
	for _, id := range r.ListIDs() {
		if !r.backend.SurfaceExists(id) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		r.logger.Warn("window lost its surface", "window", id)
		r.closeNotify(id)
	}
	return stale
}

// surfaceClosed is the backend's close callback. It may run on any goroutine.
func (r *Registry) surfaceClosed(id platform.WindowID) {
	r.schedule(func() { r.closeNotify(id) })
}

// closeNotify removes a closed window and tells the survivors. The id is gone
// from the mapping before anyone is notified.
func (r *Registry) closeNotify(id platform.WindowID) {
	h, ok := r.windows[id]
	if !ok {
		r.logger.Debug("close event for unknown window", "window", id)
		return
	}
	delete(r.windows, id)
	h.Channel.Close()

	r.logger.Info("window closed", "window", id, "windows", len(r.windows))
	r.actions.Log(actionlog.ActionClose, uint32(id), nil)

	r.fanout.Broadcast(r.handles(), r.ListIDs(), id)

	if len(r.windows) == 0 && r.onAllClosed != nil {
		r.onAllClosed()
	}
}

func (r *Registry) handles() []*Handle {
	return lo.Values(r.windows)
}

type discardChannel struct{}

func (discardChannel) Send(ipc.EventType, any) {}
func (discardChannel) Close()                  {}
