package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/xtxerr/beacon/internal/archive"
	berrors "github.com/xtxerr/beacon/internal/errors"
	"github.com/xtxerr/beacon/internal/metrics"
	"github.com/xtxerr/beacon/internal/storage/config"
	"github.com/xtxerr/beacon/internal/storage/database"
	"github.com/xtxerr/beacon/internal/storage/snapshot"
)

// Service ties the record database, the snapshot engine and the optional
// archive together behind one handle.
type Service struct {
	config    *config.Config
	db        *database.Database
	snapshots *snapshot.Manager
}

// Open opens the storage service described by cfg.
func Open(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &Service{
		config:    cfg,
		db:        db,
		snapshots: snapshot.NewManager(db, cfg.Snapshot),
	}, nil
}

// Close closes the service.
func (s *Service) Close() error {
	return s.db.Close()
}

// Database returns the underlying record database for writers.
func (s *Service) Database() *database.Database {
	return s.db
}

// Config returns the current configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// Snapshot returns the pretty-printed merged view of a store, or the empty
// string when the store holds no records. See snapshot.Manager.Snapshot
// for the clear-on-read contract.
func (s *Service) Snapshot(ctx context.Context, storeName string, clear bool) (string, error) {
	return s.snapshots.Snapshot(ctx, storeName, clear)
}

// SnapshotAsJSON returns the merged category → name → value mapping of a
// store, or nil when the store holds no records.
func (s *Service) SnapshotAsJSON(ctx context.Context, storeName string, clear bool) (snapshot.Snapshot, error) {
	return s.snapshots.SnapshotAsJSON(ctx, storeName, clear)
}

// SnapshotMetric returns the merged value of a single metric, or nil when
// no lifetime holds a record under that identifier.
func (s *Service) SnapshotMetric(ctx context.Context, storeName, metricID string) (metrics.Metric, error) {
	return s.snapshots.SnapshotMetric(ctx, storeName, metricID)
}

// ArchiveSnapshot produces a snapshot and writes it to a timestamped
// Parquet file in the archive directory. It returns the file path, or the
// empty string when the store held no records (no file is written then;
// with clear set, the ping lifetime is still cleared).
func (s *Service) ArchiveSnapshot(ctx context.Context, storeName string, clear bool) (string, error) {
	at := time.Now().UTC()

	snap, err := s.snapshots.SnapshotAsJSON(ctx, storeName, clear)
	if err != nil {
		return "", err
	}
	if snap == nil {
		return "", nil
	}

	path := filepath.Join(s.config.ArchiveDir(),
		fmt.Sprintf("%s-%s.parquet", storeName, at.Format("20060102T150405Z")))

	opts := archive.Options{
		Compression:      archive.ParseCompressionType(s.config.Archive.Compression),
		CompressionLevel: s.config.Archive.CompressionLevel,
	}

	w, err := archive.NewWriter(path, opts)
	if err != nil {
		return "", berrors.Wrap(err, "create archive")
	}

	if err := w.WriteSnapshot(storeName, snap, at); err != nil {
		w.Close()
		return "", berrors.Wrap(err, "archive snapshot")
	}

	if err := w.Close(); err != nil {
		return "", berrors.Wrap(err, "close archive")
	}

	return path, nil
}
