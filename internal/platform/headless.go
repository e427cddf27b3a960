package platform

import (
	"fmt"
	"sync"
)

// HeadlessBackend keeps surfaces in memory. It is used when no X display is
// available and by tests.
type HeadlessBackend struct {
	mu       sync.Mutex
	workArea Rect
	areaErr  error
	nextID   WindowID
	surfaces map[WindowID]headlessSurface
	keys     map[string]func()
}

type headlessSurface struct {
	opts    SurfaceOptions
	onClose CloseFunc
}

var (
	_ Backend   = (*HeadlessBackend)(nil)
	_ KeyBinder = (*HeadlessBackend)(nil)
)

// NewHeadlessBackend creates a backend whose primary display has the given
// usable area.
func NewHeadlessBackend(workArea Rect) *HeadlessBackend {
	return &HeadlessBackend{
		workArea: workArea,
		surfaces: make(map[WindowID]headlessSurface),
		keys:     make(map[string]func()),
	}
}

// Name implements Backend.
func (b *HeadlessBackend) Name() string { return "headless" }

// SetWorkAreaError makes PrimaryWorkArea fail with err until cleared with nil.
func (b *HeadlessBackend) SetWorkAreaError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.areaErr = err
}

// PrimaryWorkArea implements Backend.
func (b *HeadlessBackend) PrimaryWorkArea() (Rect, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.areaErr != nil {
		return Rect{}, fmt.Errorf("%w: %v", ErrDisplayUnavailable, b.areaErr)
	}
	if b.workArea.Empty() {
		return Rect{}, fmt.Errorf("%w: work area is empty", ErrDisplayUnavailable)
	}
	return b.workArea, nil
}

// CreateSurface implements Backend.
func (b *HeadlessBackend) CreateSurface(opts SurfaceOptions, onClose CloseFunc) (WindowID, error) {
	if opts.Bounds.Empty() {
		return NoWindow, fmt.Errorf("invalid surface bounds %dx%d", opts.Bounds.Width, opts.Bounds.Height)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.surfaces[id] = headlessSurface{opts: opts, onClose: onClose}
	return id, nil
}

// CloseSurface implements Backend. The close callback runs on the calling
// goroutine after the surface has been forgotten.
func (b *HeadlessBackend) CloseSurface(id WindowID) error {
	b.mu.Lock()
	s, ok := b.surfaces[id]
	if ok {
		delete(b.surfaces, id)
	}
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSurface, id)
	}
	if s.onClose != nil {
		s.onClose(id)
	}
	return nil
}

// SurfaceExists implements Backend.
func (b *HeadlessBackend) SurfaceExists(id WindowID) bool {
	_, ok := b.Surface(id)
	return ok
}

// Drop forgets a surface without running its close callback, as when a
// display server loses a window without reporting it.
func (b *HeadlessBackend) Drop(id WindowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.surfaces, id)
}

// Surface returns the options a live surface was created with.
func (b *HeadlessBackend) Surface(id WindowID) (SurfaceOptions, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.surfaces[id]
	return s.opts, ok
}

// SurfaceCount returns the number of live surfaces.
func (b *HeadlessBackend) SurfaceCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.surfaces)
}

// BindKey implements KeyBinder. Bindings fire only through PressKey.
func (b *HeadlessBackend) BindKey(sequence string, fn func()) error {
	if sequence == "" {
		return fmt.Errorf("empty key sequence")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.keys[sequence]; ok {
		return fmt.Errorf("key sequence %q already bound", sequence)
	}
	b.keys[sequence] = fn
	return nil
}

// PressKey runs the callback bound to sequence and reports whether one was
// bound.
func (b *HeadlessBackend) PressKey(sequence string) bool {
	b.mu.Lock()
	fn, ok := b.keys[sequence]
	b.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}
