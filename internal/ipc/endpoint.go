package ipc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/multiwin/internal/platform"
)

// Endpoint is a window's message channel. At most one session is attached at
// a time; sends with no attached session are dropped.
type Endpoint struct {
	id      platform.WindowID
	logger  *slog.Logger
	onClose func(*Endpoint)

	mu      sync.Mutex
	session *Session
	closed  bool
}

func newEndpoint(id platform.WindowID, logger *slog.Logger, onClose func(*Endpoint)) *Endpoint {
	return &Endpoint{id: id, logger: logger, onClose: onClose}
}

// WindowID returns the window the endpoint belongs to.
func (e *Endpoint) WindowID() platform.WindowID {
	return e.id
}

// Attached reports whether a session is currently attached.
func (e *Endpoint) Attached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// Send pushes an event to the attached session. It never blocks.
func (e *Endpoint) Send(event EventType, payload any) {
	e.mu.Lock()
	s := e.session
	closed := e.closed
	e.mu.Unlock()

	if closed || s == nil {
		e.logger.Debug("event dropped, no session attached", "window", e.id, "event", event)
		return
	}

	ev, err := NewEvent(event, payload)
	if err != nil {
		e.logger.Warn("event dropped", "window", e.id, "event", event, "error", err)
		return
	}
	if !s.send(ev) {
		e.logger.Debug("event dropped, session unavailable", "window", e.id, "event", event, "session", s.ID())
	}
}

// Close tells the attached session its window is gone and detaches it.
// Further sends are dropped. Close is idempotent.
func (e *Endpoint) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	s := e.session
	e.session = nil
	e.mu.Unlock()

	if s != nil {
		if ev, err := NewEvent(EventWindowClosed, e.id); err == nil {
			s.send(ev)
		}
		s.setWindow(platform.NoWindow)
	}
	if e.onClose != nil {
		e.onClose(e)
	}
}

// attach binds s to the endpoint, replacing any previous session.
func (e *Endpoint) attach(s *Session) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("window %d is closed", e.id)
	}
	prev := e.session
	e.session = s
	e.mu.Unlock()

	if prev != nil && prev != s {
		prev.setWindow(platform.NoWindow)
		e.logger.Info("session replaced", "window", e.id, "old", prev.ID(), "new", s.ID())
	}
	s.setWindow(e.id)
	return nil
}

// detach unbinds s if it is the attached session.
func (e *Endpoint) detach(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == s {
		e.session = nil
	}
}
