// Package mcp exposes the multiwin window commands as MCP tools over stdio.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/multiwin/internal/actionlog"
	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
)

const (
	ServerName    = "multiwin"
	ServerVersion = "0.1.0"
)

// Daemon is the part of the IPC client the tools use. *ipc.Client implements
// it.
type Daemon interface {
	CreateWindow() error
	WindowIDs() ([]platform.WindowID, error)
	SendMessage(target platform.WindowID, text string) (*ipc.SendMessageResult, error)
	CloseWindow(id platform.WindowID) error
	GetStatus() (*ipc.StatusData, error)
}

var _ Daemon = (*ipc.Client)(nil)

// Options configures a Server.
type Options struct {
	Logger  *slog.Logger
	Actions *actionlog.Logger
}

// Server is the MCP server bridging tools to a running daemon.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
	logger    *slog.Logger
	actions   *actionlog.Logger
}

// NewServer creates an MCP server that forwards tool calls to daemon.
func NewServer(daemon Daemon, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		daemon:  daemon,
		logger:  logger,
		actions: opts.Actions,
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect serves one session over t. Used for in-process transports.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "create_window",
		Description: "Open a new multiwin window covering the primary display. Every open window is told the new id list. Returns every id that appeared during the call, the likely id of the new window and the full list.",
	}, s.handleCreateWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List the ids of all open windows in ascending order.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "send_message",
		Description: "Show a text message in one window. delivered is false when no window has the target id; that is not an error.",
	}, s.handleSendMessage)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "close_window",
		Description: "Close one window. The remaining windows are told the new id list.",
	}, s.handleCloseWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "daemon_status",
		Description: "Report the daemon's backend, command state, open windows and uptime.",
	}, s.handleStatus)
}
