package ipc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/1broseidon/multiwin/internal/platform"
)

// CommandType names a request channel.
type CommandType string

const (
	CommandCreateNewWindow CommandType = "CreateNewWindow"
	CommandGetWindowIDs    CommandType = "GetWindowIds"
	CommandSendMessage     CommandType = "SendMessage"

	// Session and daemon commands.
	CommandAttach      CommandType = "Attach"
	CommandCloseWindow CommandType = "CloseWindow"
	CommandGetStatus   CommandType = "GetStatus"
	CommandActivate    CommandType = "Activate"
)

// EventType names a notification channel.
type EventType string

const (
	EventUpdateWindowIDs EventType = "UpdateWindowIds"
	EventUpdateMessage   EventType = "UpdateMessage"
	// EventWindowClosed is the last event an attached session receives for
	// its window.
	EventWindowClosed EventType = "WindowClosed"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Request represents an IPC request from client to server
type Request struct {
	ID      uint64          `json:"id,omitempty"`
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is either the reply to a request (Status set, ID echoed) or an
// unsolicited event (Event set).
type Response struct {
	ID     uint64          `json:"id,omitempty"`
	Event  EventType       `json:"event,omitempty"`
	Status string          `json:"status,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// IsEvent reports whether r is a notification rather than a reply.
func (r *Response) IsEvent() bool {
	return r.Event != ""
}

// SendMessagePayload is the payload of SendMessage.
type SendMessagePayload struct {
	TargetID platform.WindowID `json:"target_id"`
	Text     string            `json:"text"`
}

// SendMessageResult echoes the request. Delivered is false when the target
// window does not exist; that is not an error.
type SendMessageResult struct {
	Delivered bool              `json:"delivered"`
	TargetID  platform.WindowID `json:"target_id"`
	Text      string            `json:"text"`
}

// WindowPayload names a single window.
type WindowPayload struct {
	WindowID platform.WindowID `json:"window_id" validate:"required"`
}

// ActivateResult reports whether Activate had to create a window.
type ActivateResult struct {
	Created   bool                `json:"created"`
	WindowIDs []platform.WindowID `json:"window_ids"`
}

// StatusData represents the data returned by GetStatus
type StatusData struct {
	Backend       string              `json:"backend"`
	Dispatcher    string              `json:"dispatcher"`
	WindowCount   int                 `json:"window_count"`
	WindowIDs     []platform.WindowID `json:"window_ids"`
	Sessions      int                 `json:"sessions"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	DaemonRunning bool                `json:"daemon_running"`
}

var validate = validator.New()

// ErrMissingPayload is returned by DecodePayload for an empty payload.
var ErrMissingPayload = errors.New("missing payload")

// DecodePayload unmarshals and validates a request payload.
func DecodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return ErrMissingPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// NewRequest builds a request, marshalling payload when it is not nil.
func NewRequest(cmd CommandType, payload any) (*Request, error) {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}
	return req, nil
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: StatusOK,
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: StatusError,
		Error:  errMsg,
	}
}

// NewEvent creates an event carrying payload.
func NewEvent(event EventType, payload interface{}) (*Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event, err)
	}
	return &Response{Event: event, Data: data}, nil
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	if req.Command == "" {
		return nil, fmt.Errorf("failed to parse request: missing command")
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeWindowIDs decodes an UpdateWindowIds event or GetWindowIds reply.
func DecodeWindowIDs(data json.RawMessage) ([]platform.WindowID, error) {
	var ids []platform.WindowID
	if len(data) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse window ids: %w", err)
	}
	return ids, nil
}

// DecodeMessage decodes an UpdateMessage event.
func DecodeMessage(data json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return "", fmt.Errorf("failed to parse message: %w", err)
	}
	return text, nil
}
