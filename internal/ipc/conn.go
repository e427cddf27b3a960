package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/1broseidon/multiwin/internal/platform"
)

// ErrConnClosed is returned by calls on a closed Conn.
var ErrConnClosed = errors.New("connection closed")

// Event is a notification pushed by the daemon.
type Event struct {
	Type EventType
	Data json.RawMessage
}

// Conn is a persistent session with the daemon. Calls may be issued from any
// goroutine; replies are matched by request id and events are delivered on
// Events in arrival order.
type Conn struct {
	conn   net.Conn
	nextID atomic.Uint64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan *Response
	err     error

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the daemon socket.
func Dial(ctx context.Context, socketPath string) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	return NewConn(conn), nil
}

// NewConn wraps an established connection and starts reading from it.
func NewConn(conn net.Conn) *Conn {
	c := &Conn{
		conn:    conn,
		pending: make(map[uint64]chan *Response),
		events:  make(chan Event, DefaultEventBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Events returns the notification stream. It is closed when the connection
// ends.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Done is closed when the connection ends.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close ends the session.
func (c *Conn) Close() error {
	c.shutdown(ErrConnClosed)
	return nil
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.pending = make(map[uint64]chan *Response)
		c.mu.Unlock()

		close(c.done)
		c.conn.Close()
	})
}

func (c *Conn) readLoop() {
	defer close(c.events)

	reader := bufio.NewReader(c.conn)
	for {
		data, err := reader.ReadBytes('\n')
		if len(data) > 0 {
			c.dispatch(data)
		}
		if err != nil {
			c.shutdown(fmt.Errorf("daemon connection lost: %w", err))
			return
		}
	}
}

func (c *Conn) dispatch(data []byte) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return
	}

	if resp.IsEvent() {
		select {
		case c.events <- Event{Type: resp.Event, Data: resp.Data}:
		case <-c.done:
		}
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()

	if ok {
		ch <- &resp
	}
}

// Call sends a command and waits for its reply. An ERROR reply is returned as
// an error.
func (c *Conn) Call(ctx context.Context, cmd CommandType, payload any) (*Response, error) {
	req, err := NewRequest(cmd, payload)
	if err != nil {
		return nil, err
	}
	req.ID = c.nextID.Add(1)

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	data = append(data, '\n')

	ch := make(chan *Response, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	_, err = c.conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Status == StatusError {
			return nil, fmt.Errorf("daemon error: %s", resp.Error)
		}
		return resp, nil
	case <-c.done:
		return nil, c.Err()
	case <-ctx.Done():
		c.forget(req.ID)
		return nil, ctx.Err()
	}
}

func (c *Conn) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Attach binds the session to a window so it receives that window's events.
func (c *Conn) Attach(ctx context.Context, id platform.WindowID) error {
	_, err := c.Call(ctx, CommandAttach, WindowPayload{WindowID: id})
	return err
}

// CreateWindow requests a new window.
func (c *Conn) CreateWindow(ctx context.Context) error {
	_, err := c.Call(ctx, CommandCreateNewWindow, nil)
	return err
}

// WindowIDs requests the live window ids.
func (c *Conn) WindowIDs(ctx context.Context) ([]platform.WindowID, error) {
	resp, err := c.Call(ctx, CommandGetWindowIDs, nil)
	if err != nil {
		return nil, err
	}
	return DecodeWindowIDs(resp.Data)
}

// SendMessage delivers text to a window.
func (c *Conn) SendMessage(ctx context.Context, target platform.WindowID, text string) (*SendMessageResult, error) {
	resp, err := c.Call(ctx, CommandSendMessage, SendMessagePayload{TargetID: target, Text: text})
	if err != nil {
		return nil, err
	}
	var result SendMessageResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse send result: %w", err)
	}
	return &result, nil
}

// CloseWindow requests that a window close.
func (c *Conn) CloseWindow(ctx context.Context, id platform.WindowID) error {
	_, err := c.Call(ctx, CommandCloseWindow, WindowPayload{WindowID: id})
	return err
}
