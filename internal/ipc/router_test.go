package ipc

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRouterHandleAndServe(t *testing.T) {
	r := NewRouter()
	var gotCaller Caller
	err := r.Handle(CommandGetStatus, func(ctx context.Context, req *Request, caller Caller) *Response {
		gotCaller = caller
		resp, _ := NewOKResponse(map[string]int{"n": 1})
		return resp
	})
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	resp := r.Serve(context.Background(), &Request{ID: 9, Command: CommandGetStatus}, Caller{SessionID: "s", WindowID: 4})
	if resp.Status != StatusOK || resp.ID != 9 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotCaller.SessionID != "s" || gotCaller.WindowID != 4 {
		t.Errorf("caller = %+v", gotCaller)
	}
}

func TestRouterDuplicateHandler(t *testing.T) {
	r := NewRouter()
	h := func(context.Context, *Request, Caller) *Response { return nil }
	if err := r.Handle(CommandActivate, h); err != nil {
		t.Fatalf("first Handle error: %v", err)
	}
	if err := r.Handle(CommandActivate, h); !errors.Is(err, ErrHandlerExists) {
		t.Fatalf("second Handle = %v, want ErrHandlerExists", err)
	}

	r.Remove(CommandActivate)
	if r.Has(CommandActivate) {
		t.Fatal("handler still registered after Remove")
	}
	if err := r.Handle(CommandActivate, h); err != nil {
		t.Fatalf("Handle after Remove error: %v", err)
	}
}

func TestRouterUnknownCommand(t *testing.T) {
	r := NewRouter()
	resp := r.Serve(context.Background(), &Request{ID: 2, Command: "Nope"}, Caller{})
	if resp.Status != StatusError {
		t.Fatalf("status = %q, want ERROR", resp.Status)
	}
	if !strings.Contains(resp.Error, "No handler registered for Nope") {
		t.Errorf("error = %q", resp.Error)
	}
	if resp.ID != 2 {
		t.Errorf("ID = %d, want 2", resp.ID)
	}
}

func TestRouterNilResponseIsOK(t *testing.T) {
	r := NewRouter()
	r.Handle(CommandCreateNewWindow, func(context.Context, *Request, Caller) *Response { return nil })

	resp := r.Serve(context.Background(), &Request{Command: CommandCreateNewWindow}, Caller{})
	if resp.Status != StatusOK {
		t.Fatalf("status = %q, want OK", resp.Status)
	}
}

func TestRouterCommandsSorted(t *testing.T) {
	r := NewRouter()
	h := func(context.Context, *Request, Caller) *Response { return nil }
	r.Handle(CommandSendMessage, h)
	r.Handle(CommandCreateNewWindow, h)
	r.Handle(CommandGetWindowIDs, h)

	got := r.Commands()
	want := []CommandType{CommandCreateNewWindow, CommandGetWindowIDs, CommandSendMessage}
	if len(got) != len(want) {
		t.Fatalf("Commands() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Commands()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
