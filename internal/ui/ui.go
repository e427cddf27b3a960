package ui

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
)

// Options configures Run.
type Options struct {
	SocketPath string
	WindowID   platform.WindowID
	Title      string
	Logger     *slog.Logger
}

// Run connects to the daemon and runs the UI for one window until the user
// quits or the window closes.
func Run(ctx context.Context, opts Options) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("ui requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	if opts.WindowID == platform.NoWindow {
		return fmt.Errorf("no window id given")
	}

	conn, err := ipc.Dial(ctx, opts.SocketPath)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer conn.Close()

	listener := NewListener(conn, opts.WindowID, opts.Logger)
	listener.Register(ctx)
	defer listener.Release()

	title := opts.Title
	if title == "" {
		title = "multiwin"
	}
	m := newModel(ctx, conn, listener, NewState(title, opts.WindowID))

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(model); ok && fm.state.Err == ErrDisconnected.Error() {
		return ErrDisconnected
	}
	return nil
}
