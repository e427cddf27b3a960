// Package ui is the terminal front end bound to one multiwin window. It issues
// the window commands over a daemon connection and renders what the window
// has been told.
package ui

import (
	"errors"
	"slices"

	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
)

// ErrDisconnected is recorded when the daemon connection goes away.
var ErrDisconnected = errors.New("daemon connection lost")

// AppState is everything the view renders. Only Reduce changes it.
type AppState struct {
	Title     string
	WindowID  platform.WindowID
	WindowIDs []platform.WindowID
	Message   string
	LastSend  *ipc.SendMessageResult
	Err       string
	// Closed is set once the window is gone; the UI quits on it.
	Closed bool
}

// Action is an input to Reduce. Actions double as bubbletea messages.
type Action interface {
	action()
}

// WindowIDsUpdated carries a new id list, from a broadcast or a refresh.
type WindowIDsUpdated struct{ IDs []platform.WindowID }

// MessageReceived carries text sent to this window.
type MessageReceived struct{ Text string }

// MessageSent carries the daemon's answer to a send.
type MessageSent struct{ Result ipc.SendMessageResult }

// CommandFailed records a failed command.
type CommandFailed struct{ Err error }

// WindowClosed means this window is gone.
type WindowClosed struct{}

// Disconnected means the daemon connection ended.
type Disconnected struct{}

func (WindowIDsUpdated) action() {}
func (MessageReceived) action()  {}
func (MessageSent) action()      {}
func (CommandFailed) action()    {}
func (WindowClosed) action()     {}
func (Disconnected) action()     {}

// NewState returns the initial state for a window.
func NewState(title string, id platform.WindowID) AppState {
	return AppState{Title: title, WindowID: id}
}

// Reduce returns the state after applying a. It never mutates s.
func Reduce(s AppState, a Action) AppState {
	switch a := a.(type) {
	case WindowIDsUpdated:
		s.WindowIDs = slices.Clone(a.IDs)
		s.Err = ""
	case MessageReceived:
		s.Message = a.Text
	case MessageSent:
		result := a.Result
		s.LastSend = &result
		s.Err = ""
	case CommandFailed:
		if a.Err != nil {
			s.Err = a.Err.Error()
		}
	case WindowClosed:
		s.Closed = true
	case Disconnected:
		s.Err = ErrDisconnected.Error()
		s.Closed = true
	}
	return s
}

// ActionForEvent maps a daemon event to an action.
func ActionForEvent(ev ipc.Event) (Action, bool) {
	switch ev.Type {
	case ipc.EventUpdateWindowIDs:
		ids, err := ipc.DecodeWindowIDs(ev.Data)
		if err != nil {
			return CommandFailed{Err: err}, true
		}
		return WindowIDsUpdated{IDs: ids}, true
	case ipc.EventUpdateMessage:
		text, err := ipc.DecodeMessage(ev.Data)
		if err != nil {
			return CommandFailed{Err: err}, true
		}
		return MessageReceived{Text: text}, true
	case ipc.EventWindowClosed:
		return WindowClosed{}, true
	}
	return nil, false
}
