//go:build linux

package platform

import (
	"fmt"
	"sync"

	"github.com/1broseidon/multiwin/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
)

// X11Backend creates real X11 windows. Close events are delivered from the X
// event loop goroutine.
type X11Backend struct {
	conn *x11.Connection

	mu      sync.Mutex
	nextID  WindowID
	windows map[WindowID]xproto.Window
	// gone holds ids destroyed before CreateSurface returned.
	gone map[WindowID]bool
}

var (
	_ Backend   = (*X11Backend)(nil)
	_ KeyBinder = (*X11Backend)(nil)
)

// NewX11Backend opens a connection to display (empty means $DISPLAY).
func NewX11Backend(display string) (*X11Backend, error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &X11Backend{
		conn:    conn,
		windows: make(map[WindowID]xproto.Window),
		gone:    make(map[WindowID]bool),
	}, nil
}

// Name implements Backend.
func (b *X11Backend) Name() string { return "x11" }

// EventLoop runs the X11 event loop (blocking) until Disconnect.
func (b *X11Backend) EventLoop() {
	b.conn.EventLoop()
}

// Disconnect stops the event loop and closes the X11 connection.
func (b *X11Backend) Disconnect() {
	if b == nil || b.conn == nil {
		return
	}
	b.conn.Quit()
	b.conn.Close()
}

// PrimaryWorkArea implements Backend.
func (b *X11Backend) PrimaryWorkArea() (Rect, error) {
	mon, err := b.conn.PrimaryWorkArea()
	if err != nil {
		return Rect{}, fmt.Errorf("%w: %v", ErrDisplayUnavailable, err)
	}
	r := Rect{X: mon.X, Y: mon.Y, Width: mon.Width, Height: mon.Height}
	if r.Empty() {
		return Rect{}, fmt.Errorf("%w: primary work area is empty", ErrDisplayUnavailable)
	}
	return r, nil
}

// CreateSurface implements Backend.
func (b *X11Backend) CreateSurface(opts SurfaceOptions, onClose CloseFunc) (WindowID, error) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.mu.Unlock()

	wid, err := b.conn.CreateSurface(opts.Bounds.X, opts.Bounds.Y, opts.Bounds.Width, opts.Bounds.Height, opts.Title, func() {
		b.forget(id)
		if onClose != nil {
			onClose(id)
		}
	})
	if err != nil {
		return NoWindow, err
	}
	b.track(id, wid)
	return id, nil
}

// track records a created surface unless it was already destroyed.
func (b *X11Backend) track(id WindowID, wid xproto.Window) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gone[id] {
		delete(b.gone, id)
		return
	}
	b.windows[id] = wid
}

// forget drops a destroyed surface. A destroy that beats track is remembered.
func (b *X11Backend) forget(id WindowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.windows[id]; ok {
		delete(b.windows, id)
		return
	}
	b.gone[id] = true
}

// CloseSurface implements Backend.
func (b *X11Backend) CloseSurface(id WindowID) error {
	b.mu.Lock()
	wid, ok := b.windows[id]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSurface, id)
	}
	return b.conn.DestroySurface(wid)
}

// SurfaceExists implements Backend.
func (b *X11Backend) SurfaceExists(id WindowID) bool {
	b.mu.Lock()
	wid, ok := b.windows[id]
	b.mu.Unlock()
	return ok && b.conn.SurfaceExists(wid)
}

// BindKey implements KeyBinder with a passive grab on the root window.
func (b *X11Backend) BindKey(sequence string, fn func()) error {
	return b.conn.BindKey(sequence, fn)
}
