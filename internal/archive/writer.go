// Package archive exports produced snapshots as Parquet files for offline
// analysis. One row is written per (store, category, name) entry of a
// snapshot; values are carried as their JSON encoding.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	berrors "github.com/xtxerr/beacon/internal/errors"
	"github.com/xtxerr/beacon/internal/storage/snapshot"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// CompressionLevel for algorithms that support it (zstd: 1-22)
	CompressionLevel int
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression:      CompressionZstd,
		CompressionLevel: 3,
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// Row represents one snapshot entry in Parquet format.
type Row struct {
	Store      string `parquet:"store,zstd"`
	Category   string `parquet:"category,zstd"`
	Name       string `parquet:"name,zstd"`
	Value      string `parquet:"value,zstd"`
	SnapshotMs int64  `parquet:"snapshot_ms"`
}

// SnapshotToRows flattens a snapshot into archive rows. Values are JSON
// encoded; an entry that cannot be encoded aborts the conversion.
func SnapshotToRows(storeName string, snap snapshot.Snapshot, at time.Time) ([]Row, error) {
	var rows []Row
	for category, names := range snap {
		for name, value := range names {
			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("encode %s/%s: %w", category, name, err)
			}
			rows = append(rows, Row{
				Store:      storeName,
				Category:   category,
				Name:       name,
				Value:      string(encoded),
				SnapshotMs: at.UnixMilli(),
			})
		}
	}
	return rows, nil
}

// Writer writes snapshot rows to a Parquet file.
type Writer struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[Row]
	rowCount int64
	closed   bool
}

// NewWriter creates a new snapshot Parquet writer.
func NewWriter(path string, opts Options) (*Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writerOpts := []parquet.WriterOption{
		parquet.Compression(getCompression(opts.Compression)),
	}

	return &Writer{
		path:   path,
		file:   f,
		writer: parquet.NewGenericWriter[Row](f, writerOpts...),
	}, nil
}

// Write appends rows to the Parquet file.
func (w *Writer) Write(rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return berrors.ErrWriterClosed
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// WriteSnapshot flattens and appends one snapshot.
func (w *Writer) WriteSnapshot(storeName string, snap snapshot.Snapshot, at time.Time) error {
	rows, err := SnapshotToRows(storeName, snap, at)
	if err != nil {
		return err
	}
	return w.Write(rows)
}

// Close closes the writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}

	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *Writer) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *Writer) Path() string {
	return w.path
}
