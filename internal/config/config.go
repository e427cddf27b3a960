package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/multiwin/internal/platform"
)

// Backend names accepted by the backend key.
const (
	BackendAuto     = "auto"
	BackendX11      = "x11"
	BackendHeadless = "headless"
)

// WindowPlaceholder is replaced by the window id in renderer arguments.
const WindowPlaceholder = "{window}"

// HeadlessConfig configures the in-memory backend.
type HeadlessConfig struct {
	// WorkArea is the usable area reported for the primary display.
	WorkArea platform.Rect `yaml:"work_area"`
}

// RendererConfig describes the process launched for every new window.
type RendererConfig struct {
	// Command is empty when windows are not rendered by a child process.
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	// CloseOnExit closes the window when its renderer exits.
	CloseOnExit bool `yaml:"close_on_exit"`
}

// HotkeyConfig binds global key sequences (xgbutil syntax, e.g.
// "Mod4-Mod1-n"). Empty disables a binding.
type HotkeyConfig struct {
	NewWindow string `yaml:"new_window"`
	CloseAll  string `yaml:"close_all"`
}

// IPCConfig tunes the daemon socket.
type IPCConfig struct {
	// EventBuffer is the per-session outbound queue length.
	EventBuffer int `yaml:"event_buffer" validate:"gte=1,lte=4096"`
}

// ActionLogConfig configures the window action log.
type ActionLogConfig struct {
	// Enabled turns action logging on/off
	Enabled bool `yaml:"enabled,omitempty"`
	// Level controls logging verbosity: debug, info, warn, error
	Level string `yaml:"level,omitempty"`
	// File is the log file path (default: ~/.local/share/multiwin/actions.log)
	File string `yaml:"file,omitempty"`
	// MaxSizeMB is the maximum log file size before rotation (default: 10)
	MaxSizeMB int `yaml:"max_size_mb,omitempty" validate:"gte=0"`
	// MaxFiles is the number of rotated files to keep (default: 3)
	MaxFiles int `yaml:"max_files,omitempty" validate:"gte=0"`
	// IncludeContent logs message text
	IncludeContent bool `yaml:"include_content,omitempty"`
	// PreviewLength is the number of characters of text to log (default: 50)
	PreviewLength int `yaml:"preview_length,omitempty" validate:"gte=0"`
}

// LoggingConfig configures the daemon's structured log and the action log.
type LoggingConfig struct {
	Level   string          `yaml:"level" validate:"oneof=debug info warn error"`
	Format  string          `yaml:"format" validate:"oneof=text json"`
	Actions ActionLogConfig `yaml:"actions"`
}

// Config is the effective multiwin configuration.
type Config struct {
	Backend string `yaml:"backend" validate:"oneof=auto x11 headless"`
	// Display overrides $DISPLAY for the x11 backend.
	Display     string `yaml:"display,omitempty"`
	WindowTitle string `yaml:"window_title" validate:"required"`
	// QuitWhenAllClosed stops the daemon once the last window closes.
	// Otherwise it idles until activated.
	QuitWhenAllClosed bool `yaml:"quit_when_all_closed"`
	// ReconcileInterval is the number of seconds between checks that every
	// registered window still has a surface. 0 disables the check.
	ReconcileInterval int `yaml:"reconcile_interval" validate:"gte=0"`

	Headless HeadlessConfig `yaml:"headless"`
	Renderer RendererConfig `yaml:"renderer"`
	Hotkeys  HotkeyConfig   `yaml:"hotkeys"`
	IPC      IPCConfig      `yaml:"ipc"`
	Logging  LoggingConfig  `yaml:"logging"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:           BackendAuto,
		WindowTitle:       "multiwin",
		QuitWhenAllClosed: true,
		ReconcileInterval: 10,
		Headless: HeadlessConfig{
			WorkArea: platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1080},
		},
		Hotkeys: HotkeyConfig{
			NewWindow: "Mod4-Mod1-n", // Super+Alt+N
		},
		IPC: IPCConfig{
			EventBuffer: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml key paths rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration and returns the first problem found as a
// *ValidationError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{Path: yamlPath(fe.Namespace()), Err: fieldError(fe)}
		}
		return &ValidationError{Err: err}
	}

	if c.Headless.WorkArea.Empty() {
		return &ValidationError{Path: "headless.work_area", Err: fmt.Errorf("width and height must be > 0")}
	}
	if c.Renderer.Command == "" && len(c.Renderer.Args) > 0 {
		return &ValidationError{Path: "renderer.command", Err: fmt.Errorf("renderer.args set without a command")}
	}
	if c.Renderer.Command == "" && c.Renderer.CloseOnExit {
		return &ValidationError{Path: "renderer.close_on_exit", Err: fmt.Errorf("close_on_exit requires renderer.command")}
	}
	if c.Hotkeys.NewWindow != "" && c.Hotkeys.NewWindow == c.Hotkeys.CloseAll {
		return &ValidationError{Path: "hotkeys.close_all", Err: fmt.Errorf("same key sequence as hotkeys.new_window")}
	}
	if lvl := c.Logging.Actions.Level; lvl != "" {
		switch lvl {
		case "debug", "info", "warn", "error":
		default:
			return &ValidationError{Path: "logging.actions.level", Err: fmt.Errorf("level must be one of: debug, info, warn, error")}
		}
	}
	return nil
}

// yamlPath strips the root struct name from a validator namespace.
func yamlPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("value is required")
	case "oneof":
		return fmt.Errorf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Errorf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Errorf("must be <= %s", fe.Param())
	default:
		return fmt.Errorf("failed %q validation", fe.Tag())
	}
}

// GetActionLogConfig returns the action log configuration with defaults
// applied.
func (c *Config) GetActionLogConfig() ActionLogConfig {
	if c == nil {
		return ActionLogConfig{}
	}
	cfg := c.Logging.Actions
	if cfg.File == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			home = os.Getenv("HOME")
		}
		if home == "" {
			// Last resort fallback - use current directory
			home = "."
		}
		cfg.File = filepath.Join(home, ".local/share/multiwin/actions.log")
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = 3
	}
	if cfg.PreviewLength == 0 {
		cfg.PreviewLength = 50
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	return cfg
}

// RendererArgs returns the renderer arguments for a window with the
// placeholder substituted.
func (c *Config) RendererArgs(id platform.WindowID) []string {
	args := make([]string, len(c.Renderer.Args))
	for i, a := range c.Renderer.Args {
		args[i] = strings.ReplaceAll(a, WindowPlaceholder, fmt.Sprint(uint32(id)))
	}
	return args
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments
// from the original YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo validates the configuration and writes it to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
