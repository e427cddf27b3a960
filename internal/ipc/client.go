package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/multiwin/internal/platform"
	"github.com/1broseidon/multiwin/internal/runtimepath"
)

// Client sends one request per connection. It suits CLI commands that never
// attach to a window.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientWithPath(socketPath)
}

// NewClientWithPath creates a client for an explicit socket path.
func NewClientWithPath(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	req.ID = 1
	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	// Unattached sessions receive no events, so the first line is the reply.
	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == StatusError {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

func (c *Client) call(cmd CommandType, payload any) (*Response, error) {
	req, err := NewRequest(cmd, payload)
	if err != nil {
		return nil, err
	}
	return c.sendRequest(req)
}

// CreateWindow asks the daemon for a new window. The new id is announced
// through UpdateWindowIds, not returned.
func (c *Client) CreateWindow() error {
	_, err := c.call(CommandCreateNewWindow, nil)
	return err
}

// WindowIDs returns the daemon's current window ids.
func (c *Client) WindowIDs() ([]platform.WindowID, error) {
	resp, err := c.call(CommandGetWindowIDs, nil)
	if err != nil {
		return nil, err
	}
	return DecodeWindowIDs(resp.Data)
}

// SendMessage delivers text to a window. A missing target is reported through
// the result, not as an error.
func (c *Client) SendMessage(target platform.WindowID, text string) (*SendMessageResult, error) {
	resp, err := c.call(CommandSendMessage, SendMessagePayload{TargetID: target, Text: text})
	if err != nil {
		return nil, err
	}

	var result SendMessageResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse send result: %w", err)
	}
	return &result, nil
}

// CloseWindow asks the daemon to close a window.
func (c *Client) CloseWindow(id platform.WindowID) error {
	_, err := c.call(CommandCloseWindow, WindowPayload{WindowID: id})
	return err
}

// Activate creates a window when none exist.
func (c *Client) Activate() (*ActivateResult, error) {
	resp, err := c.call(CommandActivate, nil)
	if err != nil {
		return nil, err
	}

	var result ActivateResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse activate result: %w", err)
	}
	return &result, nil
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	resp, err := c.call(CommandGetStatus, nil)
	if err != nil {
		return nil, err
	}

	var status StatusData
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status data: %w", err)
	}

	return &status, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
