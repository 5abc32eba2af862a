package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable that points at a config file.
const EnvConfig = "VOXMAP_CONFIG"

// Load loads configuration with priority: defaults < file < flags.
// The file is the --config flag, else $VOXMAP_CONFIG, else the first of
// ./voxmap.yaml and the user config directory that exists.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = os.Getenv(EnvConfig)
	}
	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)
	normalize(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// normalize resolves the "auto" values of the file: zero workers mean one
// per CPU.
func normalize(cfg *Config) {
	if cfg.Render.CullWorkers <= 0 {
		cfg.Render.CullWorkers = runtime.GOMAXPROCS(0)
	}
	if cfg.World.MeshWorkers <= 0 {
		cfg.World.MeshWorkers = runtime.GOMAXPROCS(0)
	}
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	for _, path := range []string{
		"./voxmap.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "voxmap")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "voxmap")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "voxmap")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "voxmap")
	}
}

// loadFromFile merges a YAML file into cfg. Unknown keys are rejected so a
// misspelt render option does not silently fall back to its default. An
// empty file leaves cfg unchanged.
func loadFromFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
