package ui

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
)

// Client is the daemon connection the UI drives. *ipc.Conn implements it.
type Client interface {
	Attach(ctx context.Context, id platform.WindowID) error
	CreateWindow(ctx context.Context) error
	WindowIDs(ctx context.Context) ([]platform.WindowID, error)
	SendMessage(ctx context.Context, target platform.WindowID, text string) (*ipc.SendMessageResult, error)
	CloseWindow(ctx context.Context, id platform.WindowID) error
	Events() <-chan ipc.Event
}

var _ Client = (*ipc.Conn)(nil)

// ListenerState is the lifecycle of a Listener.
type ListenerState int

const (
	ListenerUninitialized ListenerState = iota
	ListenerRegistered
)

func (s ListenerState) String() string {
	if s == ListenerRegistered {
		return "registered"
	}
	return "uninitialized"
}

// Listener subscribes the UI to its window's notifications.
type Listener struct {
	client Client
	window platform.WindowID
	logger *slog.Logger
	state  ListenerState
}

// NewListener creates an unregistered listener for a window.
func NewListener(client Client, window platform.WindowID, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Listener{client: client, window: window, logger: logger}
}

// State returns the listener's lifecycle state.
func (l *Listener) State() ListenerState {
	return l.state
}

// Register attaches to the window. A second call is a no-op. A failure is
// logged and leaves the listener uninitialized; the UI keeps working without
// notifications.
func (l *Listener) Register(ctx context.Context) {
	if l.state == ListenerRegistered {
		return
	}
	if err := l.client.Attach(ctx, l.window); err != nil {
		l.logger.Warn("window listener not registered", "window", l.window, "error", err)
		return
	}
	l.state = ListenerRegistered
	l.logger.Debug("window listener registered", "window", l.window)
}

// Release marks the listener uninitialized. The daemon drops the attachment
// when the connection closes.
func (l *Listener) Release() {
	l.state = ListenerUninitialized
}

// eventMsg wraps an action that came from the event stream, so the model
// knows to wait for the next one.
type eventMsg struct{ action Action }

// Wait returns a command that blocks for the next window event. It returns nil
// when the listener is not registered.
func (l *Listener) Wait() tea.Cmd {
	if l.state != ListenerRegistered {
		return nil
	}
	events := l.client.Events()
	return func() tea.Msg {
		for ev := range events {
			if a, ok := ActionForEvent(ev); ok {
				return eventMsg{action: a}
			}
			l.logger.Debug("ignoring event", "event", ev.Type)
		}
		return eventMsg{action: Disconnected{}}
	}
}
