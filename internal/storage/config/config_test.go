package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	berrors "github.com/xtxerr/beacon/internal/errors"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data_dir", func(c *Config) { c.DataDir = "" }},
		{"negative max_open_conns", func(c *Config) { c.Database.MaxOpenConns = -1 }},
		{"negative query_timeout", func(c *Config) { c.Database.QueryTimeout = -time.Second }},
		{"unknown compression", func(c *Config) { c.Archive.Compression = "bzip2" }},
		{"zstd level out of range", func(c *Config) {
			c.Archive.Compression = "zstd"
			c.Archive.CompressionLevel = 23
		}},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tt.name)
			continue
		}
		if !berrors.IsValidation(err) {
			t.Errorf("%s: error not classified as validation: %v", tt.name, err)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
data_dir: /tmp/beacon-test
database:
  max_open_conns: 4
  query_timeout: 10s
snapshot:
  dedup: false
archive:
  enabled: true
  compression: snappy
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.DataDir != "/tmp/beacon-test" {
		t.Errorf("unexpected data_dir: %s", cfg.DataDir)
	}
	if cfg.Database.MaxOpenConns != 4 {
		t.Errorf("expected max_open_conns 4, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.QueryTimeout != 10*time.Second {
		t.Errorf("expected query_timeout 10s, got %v", cfg.Database.QueryTimeout)
	}
	if cfg.Snapshot.Dedup {
		t.Error("expected dedup disabled")
	}
	if !cfg.Archive.Enabled || cfg.Archive.Compression != "snappy" {
		t.Errorf("unexpected archive config: %+v", cfg.Archive)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}

	// Unset fields keep their defaults.
	if cfg.Snapshot.Indent != "  " {
		t.Errorf("expected default indent, got %q", cfg.Snapshot.Indent)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestResolvedPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"

	if got := cfg.DatabasePath(); got != filepath.Join("/data", "records.db") {
		t.Errorf("unexpected database path: %s", got)
	}
	if got := cfg.ArchiveDir(); got != filepath.Join("/data", "archive") {
		t.Errorf("unexpected archive dir: %s", got)
	}

	cfg.Database.Path = "/elsewhere/r.db"
	if got := cfg.DatabasePath(); got != "/elsewhere/r.db" {
		t.Errorf("explicit path not honored: %s", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "beacon")
	cfg.Archive.Enabled = true

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	for _, dir := range []string{cfg.DataDir, cfg.ArchiveDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s missing", dir)
		}
	}
}
