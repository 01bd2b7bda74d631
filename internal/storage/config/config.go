// Package config defines the configuration for the beacon storage layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete storage configuration.
type Config struct {
	// DataDir is the root directory for all storage files.
	DataDir string `yaml:"data_dir"`

	// Database configures the record database.
	Database DatabaseConfig `yaml:"database"`

	// Snapshot configures the snapshot engine.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Archive configures the Parquet snapshot archive.
	Archive ArchiveConfig `yaml:"archive"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig configures the record database.
type DatabaseConfig struct {
	// Path is the database file path. Defaults to {DataDir}/records.db.
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// QueryTimeout is the default timeout for queries.
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// SnapshotConfig configures the snapshot engine.
type SnapshotConfig struct {
	// Dedup collapses concurrent identical non-clearing snapshots of the
	// same store into a single traversal. Clearing snapshots never
	// coalesce.
	Dedup bool `yaml:"dedup"`

	// Indent is the indentation used for pretty-printed snapshots.
	Indent string `yaml:"indent"`
}

// ArchiveConfig configures the Parquet snapshot archive.
type ArchiveConfig struct {
	// Enabled enables snapshot archiving.
	Enabled bool `yaml:"enabled"`

	// Dir is the archive directory. Defaults to {DataDir}/archive.
	Dir string `yaml:"dir"`

	// Compression is the compression algorithm: snappy, zstd, lz4, gzip, none.
	Compression string `yaml:"compression"`

	// CompressionLevel is the compression level (for zstd: 1-22).
	CompressionLevel int `yaml:"compression_level"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is the log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON switches output from text to JSON.
	JSON bool `yaml:"json"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "/var/lib/beacon",
		Database: DatabaseConfig{
			MaxOpenConns: 8,
			MaxIdleConns: 2,
			QueryTimeout: 30 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Dedup:  true,
			Indent: "  ",
		},
		Archive: ArchiveConfig{
			Enabled:          false,
			Compression:      "zstd",
			CompressionLevel: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DatabasePath returns the resolved database file path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.DataDir, "records.db")
}

// ArchiveDir returns the resolved archive directory.
func (c *Config) ArchiveDir() string {
	if c.Archive.Dir != "" {
		return c.Archive.Dir
	}
	return filepath.Join(c.DataDir, "archive")
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, filepath.Dir(c.DatabasePath())}
	if c.Archive.Enabled {
		dirs = append(dirs, c.ArchiveDir())
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
