package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MULTIWIN_BACKEND.
const EnvPrefix = "MULTIWIN"

// LoadResult is a loaded configuration plus where its values came from.
type LoadResult struct {
	Config *Config
	// File is the config file that was read, or empty when none existed.
	File string
	// Env lists the environment variables that overrode file values.
	Env []string
}

// envOverrides are applied after the file. Empty values are ignored.
type envOverrides struct {
	Backend     string `envconfig:"BACKEND"`
	Display     string `envconfig:"DISPLAY_NAME"`
	WindowTitle string `envconfig:"WINDOW_TITLE"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	LogFormat   string `envconfig:"LOG_FORMAT"`
	Renderer    string `envconfig:"RENDERER"`
}

func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "multiwin", "config.yaml"), nil
}

// Load reads the configuration from the standard location and applies
// environment overrides.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources is Load that also reports the file and overrides used.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path over the defaults. A missing file yields the
// defaults. Unknown keys are errors.
func LoadFromPath(path string) (*LoadResult, error) {
	cfg := DefaultConfig()
	res := &LoadResult{Config: cfg}

	exists, err := pathExists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read: %w", path, err)
		}
		if err := decodeStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		res.File = path
	}

	env, err := applyEnv(cfg)
	if err != nil {
		return nil, err
	}
	res.Env = env

	if err := cfg.Validate(); err != nil {
		if res.File != "" {
			return nil, fmt.Errorf("%s: %w", res.File, err)
		}
		return nil, err
	}
	return res, nil
}

func decodeStrict(data []byte, out *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

func applyEnv(cfg *Config) ([]string, error) {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	var applied []string
	set := func(name, value string, dst *string) {
		if value == "" {
			return
		}
		*dst = value
		applied = append(applied, EnvPrefix+"_"+name)
	}
	set("BACKEND", env.Backend, &cfg.Backend)
	set("DISPLAY_NAME", env.Display, &cfg.Display)
	set("WINDOW_TITLE", env.WindowTitle, &cfg.WindowTitle)
	set("LOG_LEVEL", env.LogLevel, &cfg.Logging.Level)
	set("LOG_FORMAT", env.LogFormat, &cfg.Logging.Format)
	set("RENDERER", env.Renderer, &cfg.Renderer.Command)
	return applied, nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
