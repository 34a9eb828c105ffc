// Manages the command line configuration stored in a YAML file.

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the xmldb command configuration. Loaded from a YAML file,
// defaults are used for anything missing.
type Config struct {
	// Workspace is the directory holding the container documents.
	Workspace string `yaml:"workspace"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// OmitDefaultNamespace strips xmlns:xsi and xmlns:xsd from documents.
	OmitDefaultNamespace bool `yaml:"omit_default_namespace"`

	// Archive configures export.
	Archive Archive `yaml:"archive"`

	// History configures git-backed history of the workspace.
	History History `yaml:"history"`
}

// Archive configures workspace exports.
type Archive struct {
	// Dir is the default destination directory.
	Dir string `yaml:"dir"`
	// Extension is appended to the archive name. Must start with a dot.
	Extension string `yaml:"extension"`
}

// History configures the git repository kept in the workspace.
type History struct {
	Enabled     bool   `yaml:"enabled"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Workspace: "./workspace",
		LogLevel:  "info",
		Archive: Archive{
			Dir:       "./archives",
			Extension: ".db",
		},
		History: History{
			AuthorName:  "xmldb",
			AuthorEmail: "xmldb@localhost",
		},
	}
}

// Load reads the configuration at path. A missing file yields Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line.
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return errors.New("workspace is required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Archive.Extension != "" && c.Archive.Extension[0] != '.' {
		return fmt.Errorf("archive.extension %q must start with a dot", c.Archive.Extension)
	}
	if c.History.Enabled && (c.History.AuthorName == "" || c.History.AuthorEmail == "") {
		return errors.New("history.author_name and history.author_email are required when history is enabled")
	}
	return nil
}

// Level returns LogLevel as a slog.Level.
func (c *Config) Level() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}
