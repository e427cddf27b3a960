package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/samber/lo"
	"golang.org/x/term"

	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
)

func printWindowUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  multiwin window new")
	fmt.Fprintln(w, "  multiwin window list [--json]")
	fmt.Fprintln(w, "  multiwin window send [<id> <text>]")
	fmt.Fprintln(w, "  multiwin window close <id>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'multiwin window <command> --help' for command-specific options.")
}

func runWindow(args []string) int {
	if len(args) == 0 {
		printWindowUsage(os.Stderr)
		return 2
	}

	switch args[0] {
	case "new":
		return runWindowNew(args[1:])
	case "list":
		return runWindowList(args[1:])
	case "send":
		return runWindowSend(args[1:])
	case "close":
		return runWindowClose(args[1:])
	case "help", "-h", "--help":
		printWindowUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown window command: %s\n\n", args[0])
		printWindowUsage(os.Stderr)
		return 2
	}
}

func parseWindowID(s string) (platform.WindowID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return platform.NoWindow, fmt.Errorf("invalid window id %q", s)
	}
	return platform.WindowID(n), nil
}

func formatIDs(ids []platform.WindowID) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(lo.Map(ids, func(id platform.WindowID, _ int) string {
		return strconv.FormatUint(uint64(id), 10)
	}), ", ")
}

func runWindowNew(args []string) int {
	fs := flag.NewFlagSet("window new", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: multiwin window new")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Open a new window on the primary display.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "window new takes no arguments")
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	if err := client.CreateWindow(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	ids, err := client.WindowIDs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("windows: %s\n", formatIDs(ids))
	return 0
}

func runWindowList(args []string) int {
	fs := flag.NewFlagSet("window list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOut := fs.Bool("json", false, "Print ids as a JSON array")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: multiwin window list [--json]")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	ids, err := ipc.NewClient().WindowIDs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		if ids == nil {
			ids = []platform.WindowID{}
		}
		data, err := json.Marshal(ids)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return 0
}

func runWindowSend(args []string) int {
	fs := flag.NewFlagSet("window send", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: multiwin window send [<id> <text>]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show text in a window. Without arguments, prompts for both.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	client := ipc.NewClient()

	var target platform.WindowID
	var text string
	switch fs.NArg() {
	case 0:
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "window send needs <id> <text> when stdin is not a terminal")
			return 2
		}
		var err error
		target, text, err = promptSend(client)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return 130
			}
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	case 1:
		fmt.Fprintln(os.Stderr, "window send requires <id> and <text>")
		fs.Usage()
		return 2
	default:
		id, err := parseWindowID(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		target = id
		text = strings.Join(fs.Args()[1:], " ")
	}

	res, err := client.SendMessage(target, text)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !res.Delivered {
		fmt.Printf("window %d not found; message not delivered\n", res.TargetID)
		return 0
	}
	fmt.Printf("delivered to window %d\n", res.TargetID)
	return 0
}

// promptSend asks for a target among the open windows and the message text.
func promptSend(client *ipc.Client) (platform.WindowID, string, error) {
	ids, err := client.WindowIDs()
	if err != nil {
		return platform.NoWindow, "", err
	}
	if len(ids) == 0 {
		return platform.NoWindow, "", fmt.Errorf("no windows are open")
	}

	options := lo.Map(ids, func(id platform.WindowID, _ int) huh.Option[platform.WindowID] {
		return huh.NewOption(fmt.Sprintf("Window %d", id), id)
	})
	target := ids[0]
	var text string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[platform.WindowID]().
				Title("Target window").
				Options(options...).
				Value(&target),
			huh.NewInput().
				Title("Message").
				Value(&text),
		),
	)
	if err := form.Run(); err != nil {
		return platform.NoWindow, "", err
	}
	return target, text, nil
}

func runWindowClose(args []string) int {
	fs := flag.NewFlagSet("window close", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: multiwin window close <id>")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "window close requires exactly one <id>")
		fs.Usage()
		return 2
	}
	id, err := parseWindowID(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if err := ipc.NewClient().CloseWindow(id); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("closed window %d\n", id)
	return 0
}
