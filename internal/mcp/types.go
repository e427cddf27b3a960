package mcp

import "github.com/1broseidon/multiwin/internal/platform"

// CreateWindowInput is the input for the create_window tool.
type CreateWindowInput struct{}

// CreateWindowOutput is the output for the create_window tool.
// WindowID is best-effort: it is the largest id that appeared during the
// call, which may belong to another client's window created concurrently.
// Added lists every such id.
type CreateWindowOutput struct {
	WindowID  platform.WindowID   `json:"window_id,omitempty"`
	Added     []platform.WindowID `json:"added"`
	WindowIDs []platform.WindowID `json:"window_ids"`
}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct{}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	WindowIDs []platform.WindowID `json:"window_ids"`
}

// SendMessageInput is the input for the send_message tool.
type SendMessageInput struct {
	TargetID platform.WindowID `json:"target_id" jsonschema:"Id of the window that should receive the message"`
	Text     string            `json:"text" jsonschema:"Message text shown in the target window"`
}

// SendMessageOutput is the output for the send_message tool.
type SendMessageOutput struct {
	Delivered bool              `json:"delivered"`
	TargetID  platform.WindowID `json:"target_id"`
	Text      string            `json:"text"`
}

// CloseWindowInput is the input for the close_window tool.
type CloseWindowInput struct {
	WindowID platform.WindowID `json:"window_id" jsonschema:"Id of the window to close"`
}

// CloseWindowOutput is the output for the close_window tool.
type CloseWindowOutput struct {
	WindowID platform.WindowID `json:"window_id"`
	Closed   bool              `json:"closed"`
}

// StatusInput is the input for the daemon_status tool.
type StatusInput struct{}

// StatusOutput is the output for the daemon_status tool.
type StatusOutput struct {
	Backend       string              `json:"backend"`
	Dispatcher    string              `json:"dispatcher"`
	WindowIDs     []platform.WindowID `json:"window_ids"`
	Sessions      int                 `json:"sessions"`
	UptimeSeconds int64               `json:"uptime_seconds"`
}
