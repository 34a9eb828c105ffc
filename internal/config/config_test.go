package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if *cfg != *Default() {
			t.Errorf("Load = %+v, want defaults", cfg)
		}
	})

	t.Run("partial file", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "xmldb.yaml")
		data := "workspace: /data/ws\nlog_level: debug\narchive:\n  extension: .zip\nhistory:\n  enabled: true\n"
		if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(p)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Workspace != "/data/ws" || cfg.Archive.Extension != ".zip" || !cfg.History.Enabled {
			t.Errorf("Load = %+v", cfg)
		}
		// Unset keys keep their defaults.
		if cfg.Archive.Dir != "./archives" || cfg.History.AuthorName != "xmldb" {
			t.Errorf("defaults lost: %+v", cfg)
		}
		if l, err := cfg.Level(); err != nil || l != slog.LevelDebug {
			t.Errorf("Level() = %v, %v", l, err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for name, data := range map[string]string{
			"yaml":      "workspace: [",
			"level":     "log_level: loud\n",
			"extension": "archive:\n  extension: zip\n",
			"workspace": "workspace: \"\"\n",
		} {
			t.Run(name, func(t *testing.T) {
				p := filepath.Join(t.TempDir(), "xmldb.yaml")
				if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
					t.Fatal(err)
				}
				if _, err := Load(p); err == nil {
					t.Error("expected an error")
				}
			})
		}
	})
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults are invalid: %v", err)
	}
	cfg.History.Enabled = true
	cfg.History.AuthorEmail = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for a missing author email")
	}
}

func TestLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		c := &Config{LogLevel: in}
		got, err := c.Level()
		if err != nil || got != want {
			t.Errorf("Level(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
}
