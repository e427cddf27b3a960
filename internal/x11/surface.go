package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xevent"
)

const (
	atomWMProtocols    = "WM_PROTOCOLS"
	atomWMDeleteWindow = "WM_DELETE_WINDOW"
)

// CreateSurface creates, titles and maps a top-level window. The window
// advertises WM_DELETE_WINDOW so the window manager asks before killing it.
// onDestroyed runs once from the event loop when the window is destroyed. It
// is connected before the window is mapped.
func (c *Connection) CreateSurface(x, y, width, height int, title string, onDestroyed func()) (xproto.Window, error) {
	protocols, err := c.internAtom(atomWMProtocols)
	if err != nil {
		return 0, err
	}
	deleteWindow, err := c.internAtom(atomWMDeleteWindow)
	if err != nil {
		return 0, err
	}

	conn := c.XUtil.Conn()
	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return 0, err
	}

	screen := c.XUtil.Screen()
	err = xproto.CreateWindowChecked(
		conn,
		screen.RootDepth,
		wid,
		c.Root,
		int16(x), int16(y),
		uint16(width), uint16(height),
		0, // border_width
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwBackPixel|xproto.CwEventMask,
		[]uint32{
			screen.WhitePixel,
			uint32(xproto.EventMaskStructureNotify),
		},
	).Check()
	if err != nil {
		return 0, fmt.Errorf("failed to create window: %w", err)
	}

	c.watchSurface(wid, protocols, deleteWindow, onDestroyed)
	abandon := func() {
		xevent.Detach(c.XUtil, wid)
		xproto.DestroyWindow(conn, wid)
	}

	if title != "" {
		// Both are best-effort; a missing title does not make the surface unusable.
		_ = ewmh.WmNameSet(c.XUtil, wid, title)
		_ = icccm.WmNameSet(c.XUtil, wid, title)
	}
	if err := icccm.WmProtocolsSet(c.XUtil, wid, []string{atomWMDeleteWindow}); err != nil {
		abandon()
		return 0, fmt.Errorf("failed to set WM_PROTOCOLS: %w", err)
	}

	if err := xproto.MapWindowChecked(conn, wid).Check(); err != nil {
		abandon()
		return 0, fmt.Errorf("failed to map window: %w", err)
	}
	return wid, nil
}

// watchSurface wires the close path of a surface: a WM_DELETE_WINDOW request
// destroys the window, and the resulting DestroyNotify runs onDestroyed once.
func (c *Connection) watchSurface(wid xproto.Window, protocols, deleteWindow xproto.Atom, onDestroyed func()) {
	xevent.ClientMessageFun(func(xu *xgbutil.XUtil, ev xevent.ClientMessageEvent) {
		if ev.Type != protocols || ev.Format != 32 {
			return
		}
		if xproto.Atom(ev.Data.Data32[0]) == deleteWindow {
			xproto.DestroyWindow(xu.Conn(), wid)
		}
	}).Connect(c.XUtil, wid)

	xevent.DestroyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.DestroyNotifyEvent) {
		if ev.Window != wid {
			return
		}
		xevent.Detach(xu, wid)
		if onDestroyed != nil {
			onDestroyed()
		}
	}).Connect(c.XUtil, wid)
}

// DestroySurface destroys a window created by CreateSurface.
func (c *Connection) DestroySurface(wid xproto.Window) error {
	return xproto.DestroyWindowChecked(c.XUtil.Conn(), wid).Check()
}

// SurfaceExists reports whether the server still knows wid.
func (c *Connection) SurfaceExists(wid xproto.Window) bool {
	_, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(wid)).Reply()
	return err == nil
}

func (c *Connection) internAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(c.XUtil.Conn(), false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern %s: %w", name, err)
	}
	return reply.Atom, nil
}
