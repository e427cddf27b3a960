package ipc

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/multiwin/internal/platform"
)

// shortSocketPath avoids the unix socket path length limit that long
// t.TempDir paths can hit.
func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "mwipc")
	if err != nil {
		t.Fatalf("MkdirTemp error: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "test.sock")
}

func startTestServer(t *testing.T, router *Router) *Server {
	t.Helper()
	srv := NewServer(shortSocketPath(t), router, ServerOptions{})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func nextEvent(t *testing.T, c *Conn) Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		if !ok {
			t.Fatal("event stream closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestClientRoundTrip(t *testing.T) {
	router := NewRouter()
	router.Handle(CommandGetWindowIDs, func(context.Context, *Request, Caller) *Response {
		resp, _ := NewOKResponse([]platform.WindowID{1, 3})
		return resp
	})
	router.Handle(CommandSendMessage, func(_ context.Context, req *Request, _ Caller) *Response {
		var p SendMessagePayload
		if err := DecodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(err.Error())
		}
		resp, _ := NewOKResponse(SendMessageResult{Delivered: p.TargetID == 3, TargetID: p.TargetID, Text: p.Text})
		return resp
	})
	srv := startTestServer(t, router)

	client := NewClientWithPath(srv.SocketPath())
	ids, err := client.WindowIDs()
	if err != nil {
		t.Fatalf("WindowIDs error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("ids = %v, want [1 3]", ids)
	}

	result, err := client.SendMessage(99, "hi")
	if err != nil {
		t.Fatalf("SendMessage error: %v", err)
	}
	if result.Delivered || result.TargetID != 99 || result.Text != "hi" {
		t.Errorf("result = %+v", result)
	}

	err = client.CloseWindow(1)
	if err == nil || !strings.Contains(err.Error(), "daemon error: No handler registered for CloseWindow") {
		t.Errorf("CloseWindow error = %v", err)
	}
}

func TestClientNoDaemon(t *testing.T) {
	client := NewClientWithPath(filepath.Join(t.TempDir(), "missing.sock"))
	if err := client.Ping(); err == nil {
		t.Fatal("expected error without a daemon")
	}
}

func TestAttachReceivesWindowEvents(t *testing.T) {
	srv := startTestServer(t, NewRouter())
	ep := srv.OpenEndpoint(1)

	ctx := testContext(t)
	conn, err := Dial(ctx, srv.SocketPath())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer conn.Close()

	if err := conn.Attach(ctx, 2); err == nil || !strings.Contains(err.Error(), "Window 2 not found") {
		t.Fatalf("Attach(2) error = %v", err)
	}
	if err := conn.Attach(ctx, 1); err != nil {
		t.Fatalf("Attach(1) error: %v", err)
	}
	if !ep.Attached() {
		t.Fatal("endpoint not attached")
	}

	ep.Send(EventUpdateMessage, "hello")
	ev := nextEvent(t, conn)
	if ev.Type != EventUpdateMessage {
		t.Fatalf("event = %q, want UpdateMessage", ev.Type)
	}
	if text, _ := DecodeMessage(ev.Data); text != "hello" {
		t.Errorf("text = %q, want hello", text)
	}

	ep.Close()
	ev = nextEvent(t, conn)
	if ev.Type != EventWindowClosed {
		t.Fatalf("event = %q, want WindowClosed", ev.Type)
	}
	if _, ok := srv.Endpoint(1); ok {
		t.Error("closed endpoint still registered")
	}
}

func TestAttachReplacesPreviousSession(t *testing.T) {
	srv := startTestServer(t, NewRouter())
	ep := srv.OpenEndpoint(5)
	ctx := testContext(t)

	first, err := Dial(ctx, srv.SocketPath())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer first.Close()
	second, err := Dial(ctx, srv.SocketPath())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer second.Close()

	if err := first.Attach(ctx, 5); err != nil {
		t.Fatalf("first Attach error: %v", err)
	}
	if err := second.Attach(ctx, 5); err != nil {
		t.Fatalf("second Attach error: %v", err)
	}

	ep.Send(EventUpdateWindowIDs, []platform.WindowID{5})
	ev := nextEvent(t, second)
	if ev.Type != EventUpdateWindowIDs {
		t.Fatalf("event = %q, want UpdateWindowIds", ev.Type)
	}

	select {
	case ev := <-first.Events():
		t.Fatalf("replaced session received %q", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEndpointSendWithoutSession(t *testing.T) {
	closed := 0
	ep := newEndpoint(1, slog.New(slog.DiscardHandler), func(*Endpoint) { closed++ })

	ep.Send(EventUpdateMessage, "dropped")
	ep.Close()
	ep.Close()
	if closed != 1 {
		t.Errorf("onClose called %d times, want 1", closed)
	}
}

func TestConnCallAfterClose(t *testing.T) {
	srv := startTestServer(t, NewRouter())
	ctx := testContext(t)

	conn, err := Dial(ctx, srv.SocketPath())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	conn.Close()

	if _, err := conn.WindowIDs(ctx); err == nil {
		t.Fatal("expected error on closed connection")
	}
	select {
	case <-conn.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestServerStopEndsSessions(t *testing.T) {
	srv := NewServer(shortSocketPath(t), NewRouter(), ServerOptions{})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	ctx := testContext(t)

	conn, err := Dial(ctx, srv.SocketPath())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer conn.Close()

	// Round trip so the session is registered before stopping.
	if _, err := conn.Call(ctx, CommandGetStatus, nil); err == nil {
		t.Fatal("expected no-handler error")
	}
	if srv.SessionCount() != 1 {
		t.Fatalf("SessionCount = %d, want 1", srv.SessionCount())
	}

	srv.Stop()
	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection not closed by Stop")
	}
	if _, err := os.Stat(srv.SocketPath()); !os.IsNotExist(err) {
		t.Errorf("socket still present after Stop: %v", err)
	}
}

func TestServerStopDeliversInFlightReply(t *testing.T) {
	router := NewRouter()
	srv := NewServer(shortSocketPath(t), router, ServerOptions{})
	stopped := make(chan struct{})
	router.Handle(CommandCloseWindow, func(_ context.Context, req *Request, _ Caller) *Response {
		go func() {
			srv.Stop()
			close(stopped)
		}()
		for !srv.isShuttingDown() {
			time.Sleep(time.Millisecond)
		}
		var p WindowPayload
		_ = DecodePayload(req.Payload, &p)
		resp, _ := NewOKResponse(p)
		return resp
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	t.Cleanup(srv.Stop)

	if err := NewClientWithPath(srv.SocketPath()).CloseWindow(1); err != nil {
		t.Fatalf("CloseWindow during Stop: %v", err)
	}
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
