package mcp

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
)

type fakeDaemon struct {
	ids     []platform.WindowID
	nextID  platform.WindowID
	sent    []ipc.SendMessagePayload
	failAll error
}

func newFakeDaemon(ids ...platform.WindowID) *fakeDaemon {
	next := platform.WindowID(1)
	if len(ids) > 0 {
		next = ids[len(ids)-1] + 1
	}
	return &fakeDaemon{ids: ids, nextID: next}
}

func (f *fakeDaemon) CreateWindow() error {
	if f.failAll != nil {
		return f.failAll
	}
	f.ids = append(f.ids, f.nextID)
	f.nextID++
	return nil
}

func (f *fakeDaemon) WindowIDs() ([]platform.WindowID, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	return slices.Clone(f.ids), nil
}

func (f *fakeDaemon) SendMessage(target platform.WindowID, text string) (*ipc.SendMessageResult, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	f.sent = append(f.sent, ipc.SendMessagePayload{TargetID: target, Text: text})
	return &ipc.SendMessageResult{Delivered: slices.Contains(f.ids, target), TargetID: target, Text: text}, nil
}

func (f *fakeDaemon) CloseWindow(id platform.WindowID) error {
	i := slices.Index(f.ids, id)
	if i < 0 {
		return errors.New("daemon error: Window not found")
	}
	f.ids = slices.Delete(f.ids, i, i+1)
	return nil
}

func (f *fakeDaemon) GetStatus() (*ipc.StatusData, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	return &ipc.StatusData{Backend: "headless", Dispatcher: "registered", WindowCount: len(f.ids), WindowIDs: f.ids, DaemonRunning: true}, nil
}

func TestHandleCreateWindow(t *testing.T) {
	d := newFakeDaemon(1, 2)
	s := NewServer(d, Options{})

	_, out, err := s.handleCreateWindow(context.Background(), nil, CreateWindowInput{})
	if err != nil {
		t.Fatalf("create_window: %v", err)
	}
	if out.WindowID != 3 || !slices.Equal(out.Added, []platform.WindowID{3}) || !slices.Equal(out.WindowIDs, []platform.WindowID{1, 2, 3}) {
		t.Fatalf("out = %+v", out)
	}
}

// racingDaemon creates an extra window on every CreateWindow, as another
// client would between the two listings.
type racingDaemon struct {
	*fakeDaemon
}

func (d racingDaemon) CreateWindow() error {
	if err := d.fakeDaemon.CreateWindow(); err != nil {
		return err
	}
	return d.fakeDaemon.CreateWindow()
}

func TestHandleCreateWindowReportsConcurrentWindows(t *testing.T) {
	d := racingDaemon{newFakeDaemon(1)}
	s := NewServer(d, Options{})

	_, out, err := s.handleCreateWindow(context.Background(), nil, CreateWindowInput{})
	if err != nil {
		t.Fatalf("create_window: %v", err)
	}
	if !slices.Equal(out.Added, []platform.WindowID{2, 3}) {
		t.Fatalf("Added = %v, want [2 3]", out.Added)
	}
	if out.WindowID != 3 {
		t.Fatalf("WindowID = %d, want 3", out.WindowID)
	}
}

func TestHandleCreateWindowError(t *testing.T) {
	d := newFakeDaemon()
	d.failAll = errors.New("daemon not running")
	s := NewServer(d, Options{})

	if _, _, err := s.handleCreateWindow(context.Background(), nil, CreateWindowInput{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandleListWindows(t *testing.T) {
	s := NewServer(newFakeDaemon(), Options{})
	_, out, err := s.handleListWindows(context.Background(), nil, ListWindowsInput{})
	if err != nil {
		t.Fatalf("list_windows: %v", err)
	}
	if out.WindowIDs == nil || len(out.WindowIDs) != 0 {
		t.Fatalf("WindowIDs = %#v, want empty non-nil", out.WindowIDs)
	}
}

func TestHandleSendMessage(t *testing.T) {
	d := newFakeDaemon(1, 2)
	s := NewServer(d, Options{})

	res, out, err := s.handleSendMessage(context.Background(), nil, SendMessageInput{TargetID: 2, Text: "hi"})
	if err != nil {
		t.Fatalf("send_message: %v", err)
	}
	if !out.Delivered || out.TargetID != 2 || out.Text != "hi" {
		t.Fatalf("out = %+v", out)
	}
	text := res.Content[0].(*mcpsdk.TextContent).Text
	if text != "Delivered to window 2" {
		t.Fatalf("summary = %q", text)
	}

	_, out, err = s.handleSendMessage(context.Background(), nil, SendMessageInput{TargetID: 99, Text: "hi"})
	if err != nil {
		t.Fatalf("send_message to unknown window should not fail: %v", err)
	}
	if out.Delivered {
		t.Fatal("message to unknown window reported delivered")
	}
}

func TestHandleSendMessageRequiresTarget(t *testing.T) {
	d := newFakeDaemon(1)
	s := NewServer(d, Options{})
	if _, _, err := s.handleSendMessage(context.Background(), nil, SendMessageInput{Text: "hi"}); err == nil {
		t.Fatal("expected error for missing target")
	}
	if len(d.sent) != 0 {
		t.Fatal("message reached the daemon")
	}
}

func TestHandleCloseWindow(t *testing.T) {
	d := newFakeDaemon(1, 2)
	s := NewServer(d, Options{})

	_, out, err := s.handleCloseWindow(context.Background(), nil, CloseWindowInput{WindowID: 1})
	if err != nil || !out.Closed {
		t.Fatalf("close_window = %+v, %v", out, err)
	}
	if !slices.Equal(d.ids, []platform.WindowID{2}) {
		t.Fatalf("ids = %v", d.ids)
	}

	_, _, err = s.handleCloseWindow(context.Background(), nil, CloseWindowInput{WindowID: 7})
	if err == nil || !strings.Contains(err.Error(), "window 7") {
		t.Fatalf("close unknown = %v", err)
	}
}

func TestHandleStatus(t *testing.T) {
	s := NewServer(newFakeDaemon(4), Options{})
	_, out, err := s.handleStatus(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatalf("daemon_status: %v", err)
	}
	if out.Backend != "headless" || !slices.Equal(out.WindowIDs, []platform.WindowID{4}) {
		t.Fatalf("out = %+v", out)
	}
}

func TestToolsOverInMemoryTransport(t *testing.T) {
	ctx := context.Background()
	s := NewServer(newFakeDaemon(1), Options{})

	serverT, clientT := mcpsdk.NewInMemoryTransports()
	ss, err := s.Connect(ctx, serverT)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer ss.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer cs.Close()

	tools, err := cs.ListTools(ctx, &mcpsdk.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	want := []string{"close_window", "create_window", "daemon_status", "list_windows", "send_message"}
	if !slices.Equal(names, want) {
		t.Fatalf("tools = %v, want %v", names, want)
	}

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "send_message",
		Arguments: map[string]any{"target_id": 1, "text": "hello"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("send_message returned a tool error: %+v", res.Content)
	}
}
