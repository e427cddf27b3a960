package platform

import "errors"

// WindowID is a platform-neutral window identifier. Backends hand out small
// integers starting at 1.
type WindowID uint32

// NoWindow is the zero WindowID. It never names a live window.
const NoWindow WindowID = 0

// ErrDisplayUnavailable reports that display metrics could not be obtained.
// No surface can be created without them.
var ErrDisplayUnavailable = errors.New("display metrics unavailable")

// ErrUnknownSurface is returned when an operation names a surface the backend
// does not own.
var ErrUnknownSurface = errors.New("unknown surface")

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Display describes a physical display and its usable work area.
type Display struct {
	ID     int
	Name   string
	Bounds Rect
	Usable Rect
}

// SurfaceOptions describes a surface to create.
type SurfaceOptions struct {
	Title  string
	Bounds Rect
}

// CloseFunc is invoked once when a surface has closed. It may be called from
// any goroutine.
type CloseFunc func(id WindowID)

// Backend abstracts the windowing subsystem.
type Backend interface {
	// Name identifies the backend in logs and status output.
	Name() string
	// PrimaryWorkArea returns the usable area of the primary display.
	PrimaryWorkArea() (Rect, error)
	// CreateSurface creates and shows a surface and returns its id. onClose
	// fires after the surface is gone, whoever closed it.
	CreateSurface(opts SurfaceOptions, onClose CloseFunc) (WindowID, error)
	// CloseSurface requests that a surface close. The close is observed
	// through the surface's CloseFunc.
	CloseSurface(id WindowID) error
	// SurfaceExists reports whether the surface is still alive.
	SurfaceExists(id WindowID) bool
}

// KeyBinder is implemented by backends that can grab global key sequences.
type KeyBinder interface {
	// BindKey runs fn whenever sequence (e.g. "Mod4-Mod1-n") is pressed.
	// fn may be called from any goroutine.
	BindKey(sequence string, fn func()) error
}
