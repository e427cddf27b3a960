package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samber/lo"

	"github.com/1broseidon/multiwin/internal/actionlog"
	"github.com/1broseidon/multiwin/internal/platform"
)

func (s *Server) handleCreateWindow(_ context.Context, _ *mcpsdk.CallToolRequest, _ CreateWindowInput) (*mcpsdk.CallToolResult, CreateWindowOutput, error) {
	before, err := s.daemon.WindowIDs()
	if err != nil {
		return nil, CreateWindowOutput{}, fmt.Errorf("failed to list windows: %w", err)
	}
	if err := s.daemon.CreateWindow(); err != nil {
		return nil, CreateWindowOutput{}, fmt.Errorf("failed to create window: %w", err)
	}
	after, err := s.daemon.WindowIDs()
	if err != nil {
		return nil, CreateWindowOutput{}, fmt.Errorf("window created but listing failed: %w", err)
	}

	// Another client may have created windows between the two listings, so
	// every new id is reported and window_id is only a guess.
	out := CreateWindowOutput{
		Added:     lo.Without(after, before...),
		WindowIDs: after,
	}
	if len(out.Added) > 0 {
		out.WindowID = lo.Max(out.Added)
	}
	s.logger.Info("mcp create_window", "window", out.WindowID, "windows", len(after))
	return nil, out, nil
}

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	ids, err := s.daemon.WindowIDs()
	if err != nil {
		return nil, ListWindowsOutput{}, fmt.Errorf("failed to list windows: %w", err)
	}
	if ids == nil {
		ids = []platform.WindowID{}
	}
	return nil, ListWindowsOutput{WindowIDs: ids}, nil
}

func (s *Server) handleSendMessage(_ context.Context, _ *mcpsdk.CallToolRequest, args SendMessageInput) (*mcpsdk.CallToolResult, SendMessageOutput, error) {
	if args.TargetID == platform.NoWindow {
		return nil, SendMessageOutput{}, fmt.Errorf("target_id is required")
	}

	res, err := s.daemon.SendMessage(args.TargetID, args.Text)
	if err != nil {
		s.actions.Log(actionlog.ActionSend, uint32(args.TargetID), map[string]interface{}{
			"source": "mcp",
			"error":  err.Error(),
		})
		return nil, SendMessageOutput{}, fmt.Errorf("failed to send message: %w", err)
	}

	out := SendMessageOutput{
		Delivered: res.Delivered,
		TargetID:  res.TargetID,
		Text:      res.Text,
	}
	summary := fmt.Sprintf("Delivered to window %d", out.TargetID)
	if !out.Delivered {
		summary = fmt.Sprintf("No window %d; message not delivered", out.TargetID)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: summary},
		},
	}, out, nil
}

func (s *Server) handleCloseWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args CloseWindowInput) (*mcpsdk.CallToolResult, CloseWindowOutput, error) {
	if args.WindowID == platform.NoWindow {
		return nil, CloseWindowOutput{}, fmt.Errorf("window_id is required")
	}
	if err := s.daemon.CloseWindow(args.WindowID); err != nil {
		return nil, CloseWindowOutput{WindowID: args.WindowID}, fmt.Errorf("failed to close window %d: %w", args.WindowID, err)
	}
	s.logger.Info("mcp close_window", "window", args.WindowID)
	return nil, CloseWindowOutput{WindowID: args.WindowID, Closed: true}, nil
}

func (s *Server) handleStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	st, err := s.daemon.GetStatus()
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("failed to get daemon status: %w", err)
	}
	ids := st.WindowIDs
	if ids == nil {
		ids = []platform.WindowID{}
	}
	return nil, StatusOutput{
		Backend:       st.Backend,
		Dispatcher:    st.Dispatcher,
		WindowIDs:     ids,
		Sessions:      st.Sessions,
		UptimeSeconds: st.UptimeSeconds,
	}, nil
}
