package daemon

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/1broseidon/multiwin/internal/platform"
	"github.com/1broseidon/multiwin/internal/runtimepath"
)

// WindowEnv tells a renderer which window it draws.
const WindowEnv = "MULTIWIN_WINDOW"

// LauncherConfig describes the renderer process started per window.
type LauncherConfig struct {
	Command string
	// Args builds the argument list for a window.
	Args       func(id platform.WindowID) []string
	SocketPath string
	Logger     *slog.Logger
	// OnExit runs when a renderer exits on its own.
	OnExit func(id platform.WindowID, err error)
}

// Launcher starts one renderer process per window and tracks it until exit.
type Launcher struct {
	cfg    LauncherConfig
	logger *slog.Logger

	mu       sync.Mutex
	procs    map[platform.WindowID]*exec.Cmd
	stopping bool
	wg       sync.WaitGroup
}

// NewLauncher returns nil when cfg has no command.
func NewLauncher(cfg LauncherConfig) *Launcher {
	if cfg.Command == "" {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Launcher{
		cfg:    cfg,
		logger: logger,
		procs:  make(map[platform.WindowID]*exec.Cmd),
	}
}

// Launch starts the renderer for a window. A nil Launcher does nothing.
func (l *Launcher) Launch(id platform.WindowID) error {
	if l == nil {
		return nil
	}

	var args []string
	if l.cfg.Args != nil {
		args = l.cfg.Args(id)
	}
	cmd := exec.Command(l.cfg.Command, args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", WindowEnv, id),
		fmt.Sprintf("%s=%s", runtimepath.SocketEnv, l.cfg.SocketPath),
	)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopping {
		return fmt.Errorf("launcher is stopping")
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch renderer for window %d: %w", id, err)
	}
	l.procs[id] = cmd
	l.logger.Info("renderer started", "window", id, "pid", cmd.Process.Pid, "command", l.cfg.Command)

	l.wg.Add(1)
	go l.wait(id, cmd)
	return nil
}

func (l *Launcher) wait(id platform.WindowID, cmd *exec.Cmd) {
	defer l.wg.Done()
	err := cmd.Wait()

	l.mu.Lock()
	if l.procs[id] == cmd {
		delete(l.procs, id)
	}
	stopping := l.stopping
	l.mu.Unlock()

	if err != nil {
		l.logger.Warn("renderer exited", "window", id, "error", err)
	} else {
		l.logger.Info("renderer exited", "window", id)
	}
	if !stopping && l.cfg.OnExit != nil {
		l.cfg.OnExit(id, err)
	}
}

// Running returns the number of live renderer processes.
func (l *Launcher) Running() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

// Stop interrupts every renderer and waits for them to exit.
func (l *Launcher) Stop() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.stopping = true
	for id, cmd := range l.procs {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			l.logger.Debug("failed to signal renderer", "window", id, "error", err)
		}
	}
	l.mu.Unlock()
	l.wg.Wait()
}
