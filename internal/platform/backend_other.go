//go:build !linux

package platform

import "fmt"

// X11Backend is only available on Linux.
type X11Backend struct{}

var _ Backend = (*X11Backend)(nil)

// NewX11Backend always fails on this platform.
func NewX11Backend(display string) (*X11Backend, error) {
	return nil, fmt.Errorf("x11 backend is not supported on this platform")
}

func (b *X11Backend) Name() string { return "x11" }

func (b *X11Backend) EventLoop() {}

func (b *X11Backend) Disconnect() {}

func (b *X11Backend) PrimaryWorkArea() (Rect, error) {
	return Rect{}, ErrDisplayUnavailable
}

func (b *X11Backend) CreateSurface(SurfaceOptions, CloseFunc) (WindowID, error) {
	return NoWindow, ErrDisplayUnavailable
}

func (b *X11Backend) CloseSurface(id WindowID) error {
	return fmt.Errorf("%w: %d", ErrUnknownSurface, id)
}

func (b *X11Backend) SurfaceExists(WindowID) bool {
	return false
}

func (b *X11Backend) BindKey(string, func()) error {
	return fmt.Errorf("x11 backend is not supported on this platform")
}
