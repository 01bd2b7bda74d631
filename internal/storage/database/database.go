// Package database implements the lifetime-partitioned metric record store.
//
// Records are (name, metric) pairs partitioned by (lifetime, store). Ping-
// and user-lifetime partitions persist in DuckDB; application-lifetime
// records live in process memory only and are discarded on exit, matching
// the retention each lifetime promises.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	berrors "github.com/xtxerr/beacon/internal/errors"
	"github.com/xtxerr/beacon/internal/logging"
	"github.com/xtxerr/beacon/internal/metrics"
	"github.com/xtxerr/beacon/internal/storage/config"
	"github.com/xtxerr/beacon/internal/storage/types"
)

var log = logging.Component("database")

const schema = `
CREATE TABLE IF NOT EXISTS records (
	lifetime VARCHAR NOT NULL,
	store    VARCHAR NOT NULL,
	name     BLOB    NOT NULL,
	value    VARCHAR NOT NULL,
	PRIMARY KEY (lifetime, store, name)
)`

// Visitor is invoked once per record during iteration. Returning a non-nil
// error stops the iteration and propagates the error to the caller.
type Visitor func(name []byte, metric metrics.Metric) error

// Database provides metric record storage partitioned by lifetime and store.
//
// Database is safe for concurrent use. No isolation is promised between
// separate calls: a traversal followed by a clear is two independent
// operations, and records written in between are subject to the clear.
type Database struct {
	db           *sql.DB
	queryTimeout time.Duration

	mu sync.RWMutex
	// Application-lifetime records: store name → record name → encoded metric.
	// Record names are raw bytes; the map key preserves them exactly.
	appRecords map[string]map[string][]byte
	closed     bool
}

// Open opens (creating if necessary) the record database described by cfg.
func Open(cfg *config.Config) (*Database, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	db, err := sql.Open("duckdb", cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Info("opened", "path", cfg.DatabasePath())

	return &Database{
		db:           db,
		queryTimeout: cfg.Database.QueryTimeout,
		appRecords:   make(map[string]map[string][]byte),
	}, nil
}

// Close closes the database. Application-lifetime records are dropped.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.appRecords = nil

	return d.db.Close()
}

// timeoutContext derives a context bounded by the configured query timeout.
func (d *Database) timeoutContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.queryTimeout)
}

func (d *Database) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// Record stores a metric under the given lifetime, store and record name,
// replacing any existing record with the same name.
func (d *Database) Record(ctx context.Context, lifetime types.Lifetime, storeName string, name []byte, m metrics.Metric) error {
	if !lifetime.Valid() {
		return fmt.Errorf("%w: %d", berrors.ErrInvalidLifetime, lifetime)
	}
	if d.isClosed() {
		return berrors.ErrDatabaseClosed
	}

	encoded, err := metrics.Encode(m)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", name, err)
	}

	if !lifetime.Persistent() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.closed {
			return berrors.ErrDatabaseClosed
		}
		records := d.appRecords[storeName]
		if records == nil {
			records = make(map[string][]byte)
			d.appRecords[storeName] = records
		}
		records[string(name)] = encoded
		return nil
	}

	ctx, cancel := d.timeoutContext(ctx)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO records (lifetime, store, name, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (lifetime, store, name) DO UPDATE SET value = excluded.value`,
		lifetime.String(), storeName, name, string(encoded))
	if err != nil {
		return fmt.Errorf("%w: record %s/%s: %w", berrors.ErrDatabase, lifetime, storeName, err)
	}
	return nil
}

// IterStore invokes visitor once per record stored under (lifetime, store).
// Iteration order within the partition is unspecified. A decoding failure
// for a stored value aborts the iteration; it means the database content is
// corrupt, not that a caller passed bad input.
func (d *Database) IterStore(ctx context.Context, lifetime types.Lifetime, storeName string, visitor Visitor) error {
	if !lifetime.Valid() {
		return fmt.Errorf("%w: %d", berrors.ErrInvalidLifetime, lifetime)
	}
	if d.isClosed() {
		return berrors.ErrDatabaseClosed
	}

	if !lifetime.Persistent() {
		return d.iterApplication(storeName, visitor)
	}

	ctx, cancel := d.timeoutContext(ctx)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		`SELECT name, value FROM records WHERE lifetime = ? AND store = ?`,
		lifetime.String(), storeName)
	if err != nil {
		return fmt.Errorf("%w: iterate %s/%s: %w", berrors.ErrDatabase, lifetime, storeName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name []byte
		var value string
		if err := rows.Scan(&name, &value); err != nil {
			return berrors.Wrapf(err, "scan %s/%s", lifetime, storeName)
		}

		m, err := metrics.Decode([]byte(value))
		if err != nil {
			return fmt.Errorf("%w: %s/%s name %q: %v",
				berrors.ErrMalformedRecord, lifetime, storeName, name, err)
		}

		if err := visitor(name, m); err != nil {
			return err
		}
	}

	return rows.Err()
}

// iterApplication visits the in-memory application-lifetime partition.
// Visits run against a snapshot of the partition so the visitor may write
// back into the database without deadlocking.
func (d *Database) iterApplication(storeName string, visitor Visitor) error {
	d.mu.RLock()
	records := d.appRecords[storeName]
	copied := make(map[string][]byte, len(records))
	for name, value := range records {
		copied[name] = value
	}
	d.mu.RUnlock()

	for name, value := range copied {
		m, err := metrics.Decode(value)
		if err != nil {
			return fmt.Errorf("%w: application/%s name %q: %v",
				berrors.ErrMalformedRecord, storeName, name, err)
		}
		if err := visitor([]byte(name), m); err != nil {
			return err
		}
	}
	return nil
}

// ClearPingLifetime deletes every ping-lifetime record for the given store.
// Clearing an empty or unknown store is not an error.
func (d *Database) ClearPingLifetime(ctx context.Context, storeName string) error {
	if d.isClosed() {
		return berrors.ErrDatabaseClosed
	}

	ctx, cancel := d.timeoutContext(ctx)
	defer cancel()

	res, err := d.db.ExecContext(ctx,
		`DELETE FROM records WHERE lifetime = ? AND store = ?`,
		types.LifetimePing.String(), storeName)
	if err != nil {
		return fmt.Errorf("%w: clear ping lifetime for %s: %w", berrors.ErrDatabase, storeName, err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Debug("cleared ping lifetime", "store", storeName, "records", n)
	}
	return nil
}

// ClearApplicationLifetime drops every application-lifetime record. Called
// on startup by embedders that reuse a Database value across logical runs;
// a fresh process starts empty anyway.
func (d *Database) ClearApplicationLifetime() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.appRecords = make(map[string]map[string][]byte)
}
