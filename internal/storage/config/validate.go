package config

import (
	"errors"
	"fmt"

	berrors "github.com/xtxerr/beacon/internal/errors"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, berrors.NewMissingField("data_dir"))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	if err := c.Archive.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("archive: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	var errs []error

	if c.MaxOpenConns < 0 {
		errs = append(errs, berrors.NewValidation("max_open_conns", "must not be negative"))
	}
	if c.MaxIdleConns < 0 {
		errs = append(errs, berrors.NewValidation("max_idle_conns", "must not be negative"))
	}
	if c.QueryTimeout < 0 {
		errs = append(errs, berrors.NewValidation("query_timeout", "must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the archive configuration.
func (c *ArchiveConfig) Validate() error {
	switch c.Compression {
	case "", "none", "snappy", "zstd", "lz4", "gzip":
	default:
		return berrors.NewValidation("compression", fmt.Sprintf("unknown algorithm %q", c.Compression))
	}

	if c.Compression == "zstd" && (c.CompressionLevel < 0 || c.CompressionLevel > 22) {
		return berrors.NewValidation("compression_level", fmt.Sprintf("zstd level must be 0-22, got %d", c.CompressionLevel))
	}

	return nil
}

// Validate checks the logging configuration.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return berrors.NewValidation("level", fmt.Sprintf("unknown log level %q", c.Level))
	}
}
