package ui

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
)

type fakeClient struct {
	attachErr error
	attached  []platform.WindowID
	created   int
	closed    []platform.WindowID
	sent      []ipc.SendMessagePayload
	ids       []platform.WindowID
	live      map[platform.WindowID]bool
	events    chan ipc.Event
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		ids:    []platform.WindowID{1, 2},
		live:   map[platform.WindowID]bool{1: true, 2: true},
		events: make(chan ipc.Event, 8),
	}
}

func (f *fakeClient) Attach(_ context.Context, id platform.WindowID) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attached = append(f.attached, id)
	return nil
}

func (f *fakeClient) CreateWindow(context.Context) error {
	f.created++
	return nil
}

func (f *fakeClient) WindowIDs(context.Context) ([]platform.WindowID, error) {
	return f.ids, nil
}

func (f *fakeClient) SendMessage(_ context.Context, target platform.WindowID, text string) (*ipc.SendMessageResult, error) {
	f.sent = append(f.sent, ipc.SendMessagePayload{TargetID: target, Text: text})
	return &ipc.SendMessageResult{Delivered: f.live[target], TargetID: target, Text: text}, nil
}

func (f *fakeClient) CloseWindow(_ context.Context, id platform.WindowID) error {
	if !f.live[id] {
		return errors.New("daemon error: Window not found")
	}
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeClient) Events() <-chan ipc.Event { return f.events }

func newTestModel(t *testing.T, client *fakeClient) model {
	t.Helper()
	l := NewListener(client, 1, nil)
	l.Register(context.Background())
	return newModel(context.Background(), client, l, NewState("multiwin", 1))
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+w":
		return tea.KeyMsg{Type: tea.KeyCtrlW}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// step applies msg and feeds the resulting command's message back once.
func step(m model, msg tea.Msg) (model, tea.Msg) {
	next, cmd := m.Update(msg)
	m = next.(model)
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func typeInto(m model, s string) model {
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(model)
	}
	return m
}

func TestListenerLifecycle(t *testing.T) {
	client := newFakeClient()
	l := NewListener(client, 1, nil)
	if l.State() != ListenerUninitialized || l.Wait() != nil {
		t.Fatal("new listener should be uninitialized with no wait command")
	}

	l.Register(context.Background())
	l.Register(context.Background())
	if l.State() != ListenerRegistered {
		t.Fatalf("State = %s", l.State())
	}
	if !slices.Equal(client.attached, []platform.WindowID{1}) {
		t.Fatalf("attached = %v, want one attach", client.attached)
	}

	l.Release()
	if l.State() != ListenerUninitialized {
		t.Fatalf("State after Release = %s", l.State())
	}
}

func TestListenerRegisterFailureIsIgnored(t *testing.T) {
	client := newFakeClient()
	client.attachErr = errors.New("daemon error: Window 1 not found")
	l := NewListener(client, 1, nil)

	l.Register(context.Background())
	if l.State() != ListenerUninitialized {
		t.Fatalf("State = %s, want uninitialized", l.State())
	}
}

func TestListenerWaitMapsEvents(t *testing.T) {
	client := newFakeClient()
	l := NewListener(client, 1, nil)
	l.Register(context.Background())

	client.events <- ipc.Event{Type: "Unknown"}
	client.events <- ipc.Event{Type: ipc.EventUpdateMessage, Data: []byte(`"hi"`)}
	msg := l.Wait()()
	ev, ok := msg.(eventMsg)
	if !ok {
		t.Fatalf("got %#v", msg)
	}
	if got, _ := ev.action.(MessageReceived); got.Text != "hi" {
		t.Fatalf("action = %#v", ev.action)
	}

	close(client.events)
	if ev := l.Wait()().(eventMsg); ev.action != (Disconnected{}) {
		t.Fatalf("action after close = %#v", ev.action)
	}
}

func TestModelRefreshAndEvents(t *testing.T) {
	client := newFakeClient()
	m := newTestModel(t, client)

	m, msg := step(m, key("ctrl+r"))
	m, _ = step(m, msg)
	if !slices.Equal(m.state.WindowIDs, []platform.WindowID{1, 2}) {
		t.Fatalf("WindowIDs = %v", m.state.WindowIDs)
	}

	// The returned command waits for the next event; it is not run here.
	next, cmd := m.Update(eventMsg{action: WindowIDsUpdated{IDs: []platform.WindowID{1, 2, 3}}})
	m = next.(model)
	if cmd == nil {
		t.Fatal("expected a command waiting for the next event")
	}
	if !slices.Equal(m.state.WindowIDs, []platform.WindowID{1, 2, 3}) {
		t.Fatalf("WindowIDs = %v", m.state.WindowIDs)
	}

	view := m.View()
	if !strings.Contains(view, "multiwin #1") {
		t.Fatalf("view missing title:\n%s", view)
	}
}

func TestModelCreateWindow(t *testing.T) {
	client := newFakeClient()
	m := newTestModel(t, client)

	m, msg := step(m, key("ctrl+n"))
	if client.created != 1 {
		t.Fatalf("created = %d, want 1", client.created)
	}
	if msg != nil {
		t.Fatalf("create should not produce a message, got %#v", msg)
	}
	if m.state.Err != "" {
		t.Fatalf("Err = %q", m.state.Err)
	}
}

func TestModelSendMessage(t *testing.T) {
	client := newFakeClient()
	m := newTestModel(t, client)

	m = typeInto(m, "2")
	m, _ = step(m, key("tab"))
	m = typeInto(m, "hi")
	m, msg := step(m, key("enter"))
	m, _ = step(m, msg)

	if len(client.sent) != 1 || client.sent[0].TargetID != 2 || client.sent[0].Text != "hi" {
		t.Fatalf("sent = %+v", client.sent)
	}
	if m.state.LastSend == nil || !m.state.LastSend.Delivered {
		t.Fatalf("LastSend = %+v", m.state.LastSend)
	}
	if m.text.Value() != "" {
		t.Fatalf("text input not cleared: %q", m.text.Value())
	}
	if !strings.Contains(m.View(), "delivered to #2") {
		t.Fatal("view does not report delivery")
	}
}

func TestModelSendToUnknownWindow(t *testing.T) {
	client := newFakeClient()
	m := newTestModel(t, client)

	m = typeInto(m, "99")
	m, msg := step(m, key("enter"))
	m, _ = step(m, msg)

	if m.state.LastSend == nil || m.state.LastSend.Delivered || m.state.LastSend.TargetID != 99 {
		t.Fatalf("LastSend = %+v", m.state.LastSend)
	}
	if m.state.Err != "" {
		t.Fatalf("unknown target should not be an error, got %q", m.state.Err)
	}
}

func TestModelSendWithoutTarget(t *testing.T) {
	client := newFakeClient()
	m := newTestModel(t, client)

	m, msg := step(m, key("enter"))
	if msg != nil || len(client.sent) != 0 {
		t.Fatal("send without a target should not reach the daemon")
	}
	if !strings.Contains(m.state.Err, "target window id") {
		t.Fatalf("Err = %q", m.state.Err)
	}
}

func TestModelCloseOwnWindow(t *testing.T) {
	client := newFakeClient()
	m := newTestModel(t, client)

	m, _ = step(m, key("ctrl+w"))
	if !slices.Equal(client.closed, []platform.WindowID{1}) {
		t.Fatalf("closed = %v", client.closed)
	}

	_, msg := step(m, eventMsg{action: WindowClosed{}})
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Fatalf("window close should quit, got %#v", msg)
	}
}

func TestModelQuitKey(t *testing.T) {
	m := newTestModel(t, newFakeClient())
	_, msg := step(m, key("esc"))
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Fatalf("esc should quit, got %#v", msg)
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    platform.WindowID
		wantErr bool
	}{
		{"2", 2, false},
		{" #7 ", 7, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-1", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTarget(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseTarget(%q) = %d, %v", tt.in, got, err)
		}
	}
}
