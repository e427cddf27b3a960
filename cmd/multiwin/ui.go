package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/multiwin/internal/config"
	"github.com/1broseidon/multiwin/internal/daemon"
	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
	"github.com/1broseidon/multiwin/internal/runtimepath"
	"github.com/1broseidon/multiwin/internal/ui"
)

func runUI(args []string) int {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	window := fs.String("window", os.Getenv(daemon.WindowEnv), "Window id to bind to (default: $"+daemon.WindowEnv+", else the lowest open id)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: multiwin ui [--window ID]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Open the interactive UI for one window.")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	var id platform.WindowID
	if *window != "" {
		id, err = parseWindowID(*window)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	} else {
		ids, err := ipc.NewClientWithPath(socketPath).WindowIDs()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if len(ids) == 0 {
			fmt.Fprintln(os.Stderr, "no windows are open")
			return 1
		}
		id = ids[0]
	}

	// The title is cosmetic; a broken config should not stop the UI.
	title := config.DefaultConfig().WindowTitle
	if res, err := config.LoadWithSources(); err == nil {
		title = res.Config.WindowTitle
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	err = ui.Run(ctx, ui.Options{
		SocketPath: socketPath,
		WindowID:   id,
		Title:      title,
	})
	if err != nil {
		if errors.Is(err, ui.ErrDisconnected) {
			fmt.Fprintln(os.Stderr, "daemon connection lost")
			return 1
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
