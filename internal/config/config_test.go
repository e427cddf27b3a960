package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/multiwin/internal/platform"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"BACKEND", "DISPLAY_NAME", "WINDOW_TITLE", "LOG_LEVEL", "LOG_FORMAT", "RENDERER"} {
		t.Setenv(EnvPrefix+"_"+name, "")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Backend != BackendAuto {
		t.Fatalf("expected backend %q, got %q", BackendAuto, cfg.Backend)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.File != "" {
		t.Fatalf("expected no file, got %q", res.File)
	}
	if res.Config.WindowTitle != "multiwin" {
		t.Fatalf("expected default title, got %q", res.Config.WindowTitle)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.File != path {
		t.Fatalf("expected file %q, got %q", path, res.File)
	}
	if !res.Config.QuitWhenAllClosed {
		t.Fatal("expected quit_when_all_closed default true")
	}
}

func TestLoadFromPath_OverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, strings.Join([]string{
		"backend: headless",
		"window_title: Shell",
		"quit_when_all_closed: false",
		"headless:",
		"  work_area: {x: 0, y: 32, width: 1280, height: 688}",
		"renderer:",
		"  command: multiwin",
		"  args: [ui, --window, \"{window}\"]",
		"  close_on_exit: true",
		"logging:",
		"  level: debug",
		"  actions:",
		"    enabled: true",
		"",
	}, "\n"))

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Backend != BackendHeadless || cfg.WindowTitle != "Shell" || cfg.QuitWhenAllClosed {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if want := (platform.Rect{Y: 32, Width: 1280, Height: 688}); cfg.Headless.WorkArea != want {
		t.Fatalf("work area = %+v, want %+v", cfg.Headless.WorkArea, want)
	}
	if cfg.Logging.Format != "text" {
		t.Fatalf("expected untouched logging.format to keep default, got %q", cfg.Logging.Format)
	}
	if got := cfg.RendererArgs(7); !slices.Equal(got, []string{"ui", "--window", "7"}) {
		t.Fatalf("RendererArgs = %v", got)
	}
	if !cfg.GetActionLogConfig().Enabled {
		t.Fatal("expected action log enabled")
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "unknown_key: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") && !strings.Contains(err.Error(), "field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorPath(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
		path    string
	}{
		{"bad backend", "backend: wayland\n", "backend"},
		{"empty title", "window_title: \"\"\n", "window_title"},
		{"bad log level", "logging:\n  level: trace\n", "logging.level"},
		{"zero event buffer", "ipc:\n  event_buffer: 0\n", "ipc.event_buffer"},
		{"empty work area", "headless:\n  work_area: {width: 0, height: 10}\n", "headless.work_area"},
		{"args without command", "renderer:\n  args: [x]\n", "renderer.command"},
		{"bad action level", "logging:\n  actions:\n    level: loud\n", "logging.actions.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromPath(writeConfig(t, tt.content))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Path != tt.path {
				t.Fatalf("path = %q, want %q (%v)", verr.Path, tt.path, err)
			}
		})
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MULTIWIN_BACKEND", "headless")
	t.Setenv("MULTIWIN_LOG_LEVEL", "warn")
	path := writeConfig(t, "backend: x11\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Backend != BackendHeadless {
		t.Fatalf("backend = %q, want headless", res.Config.Backend)
	}
	if res.Config.Logging.Level != "warn" {
		t.Fatalf("logging.level = %q, want warn", res.Config.Logging.Level)
	}
	if !slices.Equal(res.Env, []string{"MULTIWIN_BACKEND", "MULTIWIN_LOG_LEVEL"}) {
		t.Fatalf("Env = %v", res.Env)
	}
}

func TestLoadFromPath_InvalidEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("MULTIWIN_LOG_FORMAT", "xml")

	_, err := LoadFromPath(filepath.Join(t.TempDir(), "none.yaml"))
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path != "logging.format" {
		t.Fatalf("expected logging.format validation error, got %v", err)
	}
}

func TestGetActionLogConfigDefaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	cfg := DefaultConfig().GetActionLogConfig()

	if cfg.File != "/home/tester/.local/share/multiwin/actions.log" {
		t.Fatalf("File = %q", cfg.File)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxFiles != 3 || cfg.PreviewLength != 50 || cfg.Level != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	cfg.WindowTitle = "saved"
	cfg.Renderer.Command = "xterm"
	cfg.Renderer.Args = []string{"-e", "multiwin", "ui", "--window", WindowPlaceholder}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.WindowTitle != "saved" || res.Config.Renderer.Command != "xterm" {
		t.Fatalf("round trip lost values: %+v", res.Config)
	}
}

func TestSaveToRejectsInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "nope"
	if err := cfg.SaveTo(filepath.Join(t.TempDir(), "config.yaml")); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestMarshalUsesYAMLKeys(t *testing.T) {
	data, err := DefaultConfig().Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"backend", "window_title", "quit_when_all_closed", "headless", "hotkeys", "ipc", "logging"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
}

func TestValidateRejectsDuplicateHotkeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hotkeys.CloseAll = cfg.Hotkeys.NewWindow

	err := cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path != "hotkeys.close_all" {
		t.Fatalf("Validate = %v, want hotkeys.close_all error", err)
	}
}
