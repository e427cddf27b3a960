package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/1broseidon/multiwin/internal/actionlog"
	"github.com/1broseidon/multiwin/internal/config"
	"github.com/1broseidon/multiwin/internal/daemon"
	"github.com/1broseidon/multiwin/internal/hotkeys"
	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
	"github.com/1broseidon/multiwin/internal/runtimepath"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "activate":
		os.Exit(runActivate(os.Args[2:]))
	case "window":
		os.Exit(runWindow(os.Args[2:]))
	case "ui":
		os.Exit(runUI(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: multiwin <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the multiwin daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  activate            Open a window if none is open")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  window new          Open a new window")
	fmt.Fprintln(w, "  window list         List open window ids")
	fmt.Fprintln(w, "  window send         Send a message to a window")
	fmt.Fprintln(w, "  window close        Close a window")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  ui                  Open the interactive UI for one window")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'multiwin <command> --help' for command-specific options.")
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

// newLogger builds the daemon's structured logger from the logging config.
func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newActionLogger(cfg *config.Config) (*actionlog.Logger, error) {
	logCfg := cfg.GetActionLogConfig()
	if !logCfg.Enabled {
		return nil, nil
	}
	return actionlog.New(actionlog.Config{
		Enabled:        logCfg.Enabled,
		Level:          actionlog.ParseLogLevel(logCfg.Level),
		FilePath:       logCfg.File,
		MaxSizeMB:      logCfg.MaxSizeMB,
		MaxFiles:       logCfg.MaxFiles,
		IncludeContent: logCfg.IncludeContent,
		PreviewLength:  logCfg.PreviewLength,
	})
}

// openBackend returns the configured windowing backend and a function that
// releases it. "auto" prefers X11 and falls back to headless.
func openBackend(cfg *config.Config, logger *slog.Logger) (platform.Backend, func(), error) {
	headless := func() (platform.Backend, func(), error) {
		return platform.NewHeadlessBackend(cfg.Headless.WorkArea), func() {}, nil
	}

	switch cfg.Backend {
	case config.BackendHeadless:
		return headless()
	case config.BackendX11, config.BackendAuto:
		b, err := platform.NewX11Backend(cfg.Display)
		if err != nil {
			if cfg.Backend == config.BackendX11 {
				return nil, nil, err
			}
			logger.Warn("X11 unavailable, using headless backend", "error", err)
			return headless()
		}
		go b.EventLoop()
		return b, b.Disconnect, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path (default: ~/.config/multiwin/config.yaml)")
	backendName := fs.String("backend", "", "Override the backend: auto, x11 or headless")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: multiwin daemon [--config PATH] [--backend NAME]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the window coordinator in the foreground.")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	cfg := res.Config
	if *backendName != "" {
		cfg.Backend = *backendName
		if err := cfg.Validate(); err != nil {
			log.Printf("Invalid --backend: %v", err)
			return 2
		}
	}

	logger := newLogger(os.Stderr, cfg.Logging)
	slog.SetDefault(logger)
	if res.File != "" {
		logger.Info("configuration loaded", "file", res.File, "env", res.Env)
	}

	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		logger.Error("failed to resolve socket path", "error", err)
		return 1
	}
	if err := ipc.NewClientWithPath(socketPath).Ping(); err == nil {
		logger.Error("daemon already running", "socket", socketPath)
		return 1
	}

	backend, release, err := openBackend(cfg, logger)
	if err != nil {
		logger.Error("failed to connect to display", "error", err)
		return 1
	}
	defer release()

	actions, err := newActionLogger(cfg)
	if err != nil {
		logger.Warn("action log disabled", "error", err)
		actions = nil
	}
	defer actions.Close()

	coord, err := daemon.New(daemon.Options{
		Config:     cfg,
		Backend:    backend,
		SocketPath: socketPath,
		Logger:     logger,
		Actions:    actions,
	})
	if err != nil {
		logger.Error("failed to create coordinator", "error", err)
		return 1
	}

	if err := hotkeys.NewHandler(backend, logger).Register(cfg.Hotkeys, coord); err != nil {
		logger.Warn("hotkeys not registered", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("multiwin daemon started", "backend", backend.Name(), "socket", socketPath)
	if err := coord.Run(ctx); err != nil {
		logger.Error("daemon stopped", "error", err)
		return 1
	}
	logger.Info("multiwin daemon exited")
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: multiwin status")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running: %v\n", status.DaemonRunning)
	fmt.Printf("backend:        %s\n", status.Backend)
	fmt.Printf("dispatcher:     %s\n", status.Dispatcher)
	fmt.Printf("window_count:   %d\n", status.WindowCount)
	fmt.Printf("window_ids:     %s\n", formatIDs(status.WindowIDs))
	fmt.Printf("sessions:       %d\n", status.Sessions)
	fmt.Printf("uptime_seconds: %d\n", status.UptimeSeconds)
	return 0
}

func runActivate(args []string) int {
	fs := flag.NewFlagSet("activate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: multiwin activate")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Open a window when the daemon has none open.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "activate takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := ipc.NewClient().Activate()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if res.Created {
		fmt.Printf("Opened window; windows: %s\n", formatIDs(res.WindowIDs))
	} else {
		fmt.Printf("Already active; windows: %s\n", formatIDs(res.WindowIDs))
	}
	return 0
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  multiwin config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  multiwin config print [--path PATH] [--defaults]")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/multiwin/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/multiwin/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			if res.File != "" {
				fmt.Printf("# file: %s\n", res.File)
			}
			for _, name := range res.Env {
				fmt.Printf("# env: %s\n", name)
			}
			cfg = res.Config
		}
		data, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}
