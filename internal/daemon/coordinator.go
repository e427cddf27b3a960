// Package daemon runs the multiwin coordinator: the single goroutine that owns
// the window registry, serves the IPC socket and decides when to quit.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/multiwin/internal/actionlog"
	"github.com/1broseidon/multiwin/internal/config"
	"github.com/1broseidon/multiwin/internal/dispatch"
	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
	"github.com/1broseidon/multiwin/internal/registry"
)

// ErrStopped is returned by Do once the coordinator has stopped.
var ErrStopped = errors.New("coordinator stopped")

// Options configures a Coordinator.
type Options struct {
	Config     *config.Config
	Backend    platform.Backend
	SocketPath string
	Logger     *slog.Logger
	Actions    *actionlog.Logger
}

// Coordinator serialises every registry mutation, command and close event on
// one goroutine.
type Coordinator struct {
	cfg     *config.Config
	backend platform.Backend
	logger  *slog.Logger

	router     *ipc.Router
	server     *ipc.Server
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	launcher   *Launcher
	reconciler *Reconciler
	started    time.Time

	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}

	ready    chan struct{}
	stopped  chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// New wires a coordinator. Nothing runs until Run.
func New(opts Options) (*Coordinator, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("no windowing backend")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Coordinator{
		cfg:     cfg,
		backend: opts.Backend,
		logger:  logger,
		router:  ipc.NewRouter(),
		wake:    make(chan struct{}, 1),
		ready:   make(chan struct{}),
		stopped: make(chan struct{}),
		exited:  make(chan struct{}),
	}

	c.server = ipc.NewServer(opts.SocketPath, c.router, ipc.ServerOptions{
		EventBuffer: cfg.IPC.EventBuffer,
		Logger:      logger,
	})
	c.registry = registry.New(opts.Backend, func(id platform.WindowID) registry.Channel {
		return c.server.OpenEndpoint(id)
	}, registry.Options{
		Title:       cfg.WindowTitle,
		Schedule:    c.Post,
		OnCreated:   c.windowCreated,
		OnAllClosed: c.allClosed,
		Logger:      logger,
		Actions:     opts.Actions,
	})
	c.dispatcher = dispatch.New(c.router, c.registry, c, dispatch.Options{
		Logger:  logger,
		Actions: opts.Actions,
		OnFatal: c.fatal,
	})
	c.launcher = NewLauncher(LauncherConfig{
		Command:    cfg.Renderer.Command,
		Args:       cfg.RendererArgs,
		SocketPath: opts.SocketPath,
		Logger:     logger,
		OnExit:     c.rendererExited,
	})
	if cfg.ReconcileInterval > 0 {
		c.reconciler = NewReconciler(ReconcilerConfig{
			Interval: time.Duration(cfg.ReconcileInterval) * time.Second,
			Logger:   logger,
		}, c.Do, c.registry.Reconcile)
	}

	if err := c.registerSystemHandlers(); err != nil {
		return nil, err
	}
	return c, nil
}

// SocketPath returns the IPC socket the coordinator serves.
func (c *Coordinator) SocketPath() string {
	return c.server.SocketPath()
}

// Ready is closed once the first window exists and the window commands are
// registered. It stays open if startup fails.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// Run serves until ctx is cancelled, Stop is called, the last window closes
// under quit_when_all_closed, or a fatal error occurs. Only fatal errors are
// returned.
func (c *Coordinator) Run(ctx context.Context) error {
	c.started = time.Now()
	if err := c.server.Start(); err != nil {
		return err
	}
	defer c.shutdown()

	c.Post(func() {
		if c.initializeApp() {
			close(c.ready)
		}
	})

	if c.reconciler != nil {
		rctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go c.reconciler.Run(rctx)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping", "reason", ctx.Err())
			return nil
		case <-c.stopped:
			return c.stopErr
		case <-c.wake:
			c.drain()
		}
	}
}

// Stop ends Run. A non-nil err is returned from Run.
func (c *Coordinator) Stop(err error) {
	c.stopOnce.Do(func() {
		c.stopErr = err
		close(c.stopped)
	})
}

// Post queues fn to run on the coordinator goroutine. It never blocks.
func (c *Coordinator) Post(fn func()) {
	c.mu.Lock()
	c.tasks = append(c.tasks, fn)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the coordinator goroutine and waits for it to finish. It must
// not be called from that goroutine.
func (c *Coordinator) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	c.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-c.exited:
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		select {
		case <-done:
			return nil
		default:
			return ctx.Err()
		}
	}
}

func (c *Coordinator) drain() {
	for {
		c.mu.Lock()
		tasks := c.tasks
		c.tasks = nil
		c.mu.Unlock()

		if len(tasks) == 0 {
			return
		}
		for _, fn := range tasks {
			c.run(fn)
		}
	}
}

func (c *Coordinator) run(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			c.logger.Error("coordinator task panic recovered", "error", err)
		}
	}()
	fn()
}

func (c *Coordinator) shutdown() {
	close(c.exited)
	c.dispatcher.Release()
	c.server.Stop()
	c.launcher.Stop()
	c.logger.Info("coordinator stopped")
}

// initializeApp creates the first window and then registers the window
// commands. Runs on the coordinator goroutine.
func (c *Coordinator) initializeApp() bool {
	id, err := c.registry.CreateWindow()
	if err != nil {
		c.fatal(fmt.Errorf("failed to create initial window: %w", err))
		return false
	}
	if err := c.dispatcher.Init(); err != nil {
		c.fatal(err)
		return false
	}
	c.logger.Info("application initialized", "window", id)
	return true
}

// RequestWindow opens a window without waiting. With no window open it runs
// app initialisation, as Activate does. Safe from any goroutine.
func (c *Coordinator) RequestWindow() {
	c.Post(func() {
		if c.registry.Len() == 0 {
			c.initializeApp()
			return
		}
		if _, err := c.registry.CreateWindow(); err != nil {
			if errors.Is(err, platform.ErrDisplayUnavailable) {
				c.fatal(err)
				return
			}
			c.logger.Warn("failed to create window", "error", err)
		}
	})
}

// RequestCloseAll closes every window without waiting. Safe from any
// goroutine.
func (c *Coordinator) RequestCloseAll() {
	c.Post(c.registry.CloseAll)
}

func (c *Coordinator) fatal(err error) {
	c.logger.Error("fatal error", "error", err)
	c.Stop(err)
}

func (c *Coordinator) windowCreated(h *registry.Handle) {
	if err := c.launcher.Launch(h.ID); err != nil {
		c.logger.Warn("renderer not started", "window", h.ID, "error", err)
	}
}

// allClosed runs on the coordinator goroutine after the last window closed.
func (c *Coordinator) allClosed() {
	c.dispatcher.Release()
	if c.cfg.QuitWhenAllClosed {
		c.logger.Info("all windows closed, quitting")
		c.Stop(nil)
		return
	}
	c.logger.Info("all windows closed, waiting for activation")
}

func (c *Coordinator) rendererExited(id platform.WindowID, _ error) {
	if !c.cfg.Renderer.CloseOnExit {
		return
	}
	c.Post(func() {
		if err := c.registry.CloseWindow(id); err != nil && !errors.Is(err, registry.ErrNotFound) {
			c.logger.Warn("failed to close window after renderer exit", "window", id, "error", err)
		}
	})
}

func (c *Coordinator) registerSystemHandlers() error {
	handlers := map[ipc.CommandType]ipc.HandlerFunc{
		ipc.CommandGetStatus:   c.handleGetStatus,
		ipc.CommandCloseWindow: c.handleCloseWindow,
		ipc.CommandActivate:    c.handleActivate,
	}
	for cmd, h := range handlers {
		if err := c.router.Handle(cmd, h); err != nil {
			return fmt.Errorf("failed to register %s: %w", cmd, err)
		}
	}
	return nil
}

func (c *Coordinator) handleGetStatus(ctx context.Context, _ *ipc.Request, _ ipc.Caller) *ipc.Response {
	var ids []platform.WindowID
	if err := c.Do(ctx, func() {
		ids = c.registry.ListIDs()
	}); err != nil {
		return ipc.NewErrorResponse(fmt.Sprintf("Failed to get status: %v", err))
	}

	resp, err := ipc.NewOKResponse(ipc.StatusData{
		Backend:       c.backend.Name(),
		Dispatcher:    c.dispatcher.State().String(),
		WindowCount:   len(ids),
		WindowIDs:     ids,
		Sessions:      c.server.SessionCount(),
		UptimeSeconds: int64(time.Since(c.started).Seconds()),
		DaemonRunning: true,
	})
	if err != nil {
		return ipc.NewErrorResponse(err.Error())
	}
	return resp
}

func (c *Coordinator) handleCloseWindow(ctx context.Context, req *ipc.Request, _ ipc.Caller) *ipc.Response {
	var p ipc.WindowPayload
	if err := ipc.DecodePayload(req.Payload, &p); err != nil {
		return ipc.NewErrorResponse(fmt.Sprintf("Invalid CloseWindow payload: %v", err))
	}

	var closeErr error
	if err := c.Do(ctx, func() {
		closeErr = c.registry.CloseWindow(p.WindowID)
	}); err != nil {
		return ipc.NewErrorResponse(fmt.Sprintf("Failed to close window: %v", err))
	}
	if errors.Is(closeErr, registry.ErrNotFound) {
		return ipc.NewErrorResponse(fmt.Sprintf("Window %d not found", p.WindowID))
	}
	if closeErr != nil {
		return ipc.NewErrorResponse(closeErr.Error())
	}

	resp, _ := ipc.NewOKResponse(p)
	return resp
}

// handleActivate re-runs app initialisation when no window exists.
func (c *Coordinator) handleActivate(ctx context.Context, _ *ipc.Request, _ ipc.Caller) *ipc.Response {
	var result ipc.ActivateResult
	if err := c.Do(ctx, func() {
		if c.registry.Len() == 0 {
			c.initializeApp()
			result.Created = c.registry.Len() > 0
		}
		result.WindowIDs = c.registry.ListIDs()
	}); err != nil {
		return ipc.NewErrorResponse(fmt.Sprintf("Failed to activate: %v", err))
	}

	resp, err := ipc.NewOKResponse(result)
	if err != nil {
		return ipc.NewErrorResponse(err.Error())
	}
	return resp
}
