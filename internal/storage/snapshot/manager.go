// Package snapshot produces merged, point-in-time views of a metric store.
//
// A store's records live in three lifetime partitions with different
// retention. A snapshot merges all three into one category → name → value
// mapping by traversing the partitions in the fixed order
// ping → application → user and letting later visits overwrite earlier
// ones: whichever lifetime recorded a metric last (in that order) wins.
// The same traversal backs single-metric lookup.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/beacon/internal/logging"
	"github.com/xtxerr/beacon/internal/metrics"
	"github.com/xtxerr/beacon/internal/storage/config"
	"github.com/xtxerr/beacon/internal/storage/database"
	"github.com/xtxerr/beacon/internal/storage/types"
)

var log = logging.Component("snapshot")

// Snapshot is the merged view of one store: category → metric name →
// structured value. A Snapshot is built fresh on every call and owned by
// the caller.
type Snapshot map[string]map[string]any

// Manager is the snapshot engine. It holds no state between calls beyond
// an optional in-flight dedup group; repeated non-clearing snapshots with
// no intervening writes produce identical results.
type Manager struct {
	db     *database.Database
	dedup  bool
	indent string

	// Collapses concurrent pretty-printed snapshots of the same store.
	// Only the string form is shared this way; structured snapshots are
	// caller-owned mutable maps and always traverse independently.
	group singleflight.Group
}

// NewManager creates a snapshot engine over db.
func NewManager(db *database.Database, cfg config.SnapshotConfig) *Manager {
	indent := cfg.Indent
	if indent == "" {
		indent = "  "
	}
	return &Manager{
		db:     db,
		dedup:  cfg.Dedup,
		indent: indent,
	}
}

// iterAllLifetimes visits every record of the store across the three
// lifetimes, in merge order. Each record is passed to the visitor exactly
// once per lifetime it exists in; nothing is filtered or deduplicated here.
func (m *Manager) iterAllLifetimes(ctx context.Context, storeName string, visitor database.Visitor) error {
	ctx = logging.ContextWithStore(ctx, storeName)
	for _, lifetime := range types.AllLifetimes() {
		lctx := logging.ContextWithLifetime(ctx, lifetime.String())
		if err := m.db.IterStore(lctx, lifetime, storeName, visitor); err != nil {
			logging.WithContext(lctx).Warn("traversal failed", "error", err)
			return fmt.Errorf("traverse %s lifetime: %w", lifetime, err)
		}
	}
	return nil
}

// SnapshotAsJSON builds the merged category → name → value mapping for the
// store. It returns nil when no lifetime holds any record for the store.
//
// When clear is true, the store's ping-lifetime partition is deleted after
// the traversal, whether or not the snapshot was empty. The read and the
// clear are two separate database calls with no transaction between them;
// ping-lifetime records written in between are deleted without appearing
// in the returned snapshot. Callers needing atomicity must serialize
// access themselves.
func (m *Manager) SnapshotAsJSON(ctx context.Context, storeName string, clear bool) (Snapshot, error) {
	snap := make(Snapshot)

	err := m.iterAllLifetimes(ctx, storeName, func(name []byte, metric metrics.Metric) error {
		category := snap[metric.Category()]
		if category == nil {
			category = make(map[string]any)
			snap[metric.Category()] = category
		}
		category[LossyDecodeName(name)] = metric.AsJSON()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if clear {
		if err := m.db.ClearPingLifetime(ctx, storeName); err != nil {
			return nil, err
		}
	}

	if len(snap) == 0 {
		log.Debug("snapshot empty", "store", storeName, "cleared", clear)
		return nil, nil
	}

	log.Debug("snapshot produced", "store", storeName, "categories", len(snap), "cleared", clear)
	return snap, nil
}

// Snapshot returns the pretty-printed JSON form of SnapshotAsJSON, or the
// empty string when the store holds no records. The read-then-clear
// caveats on SnapshotAsJSON apply.
func (m *Manager) Snapshot(ctx context.Context, storeName string, clear bool) (string, error) {
	// Clearing snapshots have a side effect per call and never coalesce.
	if m.dedup && !clear {
		result, err, _ := m.group.Do(storeName, func() (interface{}, error) {
			return m.snapshotString(ctx, storeName, false)
		})
		if err != nil {
			return "", err
		}
		return result.(string), nil
	}

	return m.snapshotString(ctx, storeName, clear)
}

func (m *Manager) snapshotString(ctx context.Context, storeName string, clear bool) (string, error) {
	snap, err := m.SnapshotAsJSON(ctx, storeName, clear)
	if err != nil {
		return "", err
	}
	if snap == nil {
		return "", nil
	}

	data, err := json.MarshalIndent(snap, "", m.indent)
	if err != nil {
		return "", fmt.Errorf("serialize snapshot for %s: %w", storeName, err)
	}
	return string(data), nil
}

// SnapshotMetric returns the current value of the single metric whose
// decoded record name equals metricID, merged across all three lifetimes
// with the same last-wins precedence as a whole-store snapshot. It returns
// nil when no lifetime holds a matching record. No clearing side effect.
func (m *Manager) SnapshotMetric(ctx context.Context, storeName, metricID string) (metrics.Metric, error) {
	var found metrics.Metric

	err := m.iterAllLifetimes(ctx, storeName, func(name []byte, metric metrics.Metric) error {
		if LossyDecodeName(name) == metricID {
			found = metric.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}
