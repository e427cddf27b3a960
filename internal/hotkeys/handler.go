// Package hotkeys binds global key sequences to window actions.
package hotkeys

import (
	"fmt"
	"log/slog"

	"github.com/1broseidon/multiwin/internal/config"
	"github.com/1broseidon/multiwin/internal/platform"
)

// Actions are the window operations a hotkey can trigger. Both must be safe
// to call from any goroutine.
type Actions interface {
	RequestWindow()
	RequestCloseAll()
}

// Handler manages global keyboard shortcuts.
type Handler struct {
	binder platform.KeyBinder
	logger *slog.Logger
}

// NewHandler creates a hotkey handler. Backends without key grabs get a
// handler whose registrations fail.
func NewHandler(backend platform.Backend, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	binder, _ := backend.(platform.KeyBinder)
	return &Handler{binder: binder, logger: logger}
}

// Register binds every configured sequence to its action. Empty sequences are
// skipped. It stops at the first failure.
func (h *Handler) Register(cfg config.HotkeyConfig, actions Actions) error {
	bindings := []struct {
		name     string
		sequence string
		fn       func()
	}{
		{"new_window", cfg.NewWindow, actions.RequestWindow},
		{"close_all", cfg.CloseAll, actions.RequestCloseAll},
	}
	for _, b := range bindings {
		if b.sequence == "" {
			continue
		}
		name := b.name
		fn := b.fn
		if err := h.RegisterFunc(b.sequence, func() {
			h.logger.Info("hotkey triggered", "action", name)
			fn()
		}); err != nil {
			return fmt.Errorf("failed to register %s hotkey %q: %w", b.name, b.sequence, err)
		}
		h.logger.Info("hotkey registered", "action", b.name, "keys", b.sequence)
	}
	return nil
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	if h.binder == nil {
		return fmt.Errorf("backend does not support global hotkeys")
	}
	return h.binder.BindKey(keySequence, callback)
}
