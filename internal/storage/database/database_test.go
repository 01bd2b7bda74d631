package database

import (
	"context"
	"errors"
	"testing"

	berrors "github.com/xtxerr/beacon/internal/errors"
	"github.com/xtxerr/beacon/internal/metrics"
	"github.com/xtxerr/beacon/internal/storage/config"
	"github.com/xtxerr/beacon/internal/storage/types"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// collect gathers every record in a partition as name → metric.
func collect(t *testing.T, db *Database, lifetime types.Lifetime, store string) map[string]metrics.Metric {
	t.Helper()

	out := make(map[string]metrics.Metric)
	err := db.IterStore(context.Background(), lifetime, store, func(name []byte, m metrics.Metric) error {
		out[string(name)] = m
		return nil
	})
	if err != nil {
		t.Fatalf("iterate %s/%s: %v", lifetime, store, err)
	}
	return out
}

func TestRecordAndIterate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, lifetime := range types.AllLifetimes() {
		name := []byte("latency." + lifetime.String())
		if err := db.Record(ctx, lifetime, "metrics", name, metrics.Counter(7)); err != nil {
			t.Fatalf("record under %s: %v", lifetime, err)
		}

		got := collect(t, db, lifetime, "metrics")
		if len(got) != 1 {
			t.Fatalf("%s: expected 1 record, got %d", lifetime, len(got))
		}
		m, ok := got[string(name)]
		if !ok {
			t.Fatalf("%s: record %q missing", lifetime, name)
		}
		if c, ok := m.(metrics.Counter); !ok || int64(c) != 7 {
			t.Errorf("%s: unexpected value %v", lifetime, m.AsJSON())
		}
	}
}

func TestRecordOverwrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	name := []byte("clicks")

	if err := db.Record(ctx, types.LifetimeUser, "metrics", name, metrics.Counter(1)); err != nil {
		t.Fatal(err)
	}
	if err := db.Record(ctx, types.LifetimeUser, "metrics", name, metrics.Counter(2)); err != nil {
		t.Fatal(err)
	}

	got := collect(t, db, types.LifetimeUser, "metrics")
	if len(got) != 1 {
		t.Fatalf("expected 1 record after overwrite, got %d", len(got))
	}
	if c := got["clicks"].(metrics.Counter); int64(c) != 2 {
		t.Errorf("expected overwritten value 2, got %d", c)
	}
}

func TestIterStoreEmpty(t *testing.T) {
	db := openTestDB(t)

	visits := 0
	err := db.IterStore(context.Background(), types.LifetimePing, "nothing-here",
		func([]byte, metrics.Metric) error {
			visits++
			return nil
		})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if visits != 0 {
		t.Errorf("expected no visits, got %d", visits)
	}
}

func TestStoresAreIndependent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Record(ctx, types.LifetimePing, "store-a", []byte("m"), metrics.Counter(1)); err != nil {
		t.Fatal(err)
	}
	if err := db.Record(ctx, types.LifetimePing, "store-b", []byte("m"), metrics.Counter(2)); err != nil {
		t.Fatal(err)
	}

	if got := collect(t, db, types.LifetimePing, "store-a"); len(got) != 1 {
		t.Errorf("store-a: expected 1 record, got %d", len(got))
	}
	if got := collect(t, db, types.LifetimePing, "store-b"); len(got) != 1 {
		t.Errorf("store-b: expected 1 record, got %d", len(got))
	}
}

func TestClearPingLifetime(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Record(ctx, types.LifetimePing, "metrics", []byte("a"), metrics.Counter(1)); err != nil {
		t.Fatal(err)
	}
	if err := db.Record(ctx, types.LifetimeUser, "metrics", []byte("b"), metrics.Counter(2)); err != nil {
		t.Fatal(err)
	}
	if err := db.Record(ctx, types.LifetimePing, "other", []byte("c"), metrics.Counter(3)); err != nil {
		t.Fatal(err)
	}

	if err := db.ClearPingLifetime(ctx, "metrics"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if got := collect(t, db, types.LifetimePing, "metrics"); len(got) != 0 {
		t.Errorf("ping partition not cleared: %d records left", len(got))
	}
	if got := collect(t, db, types.LifetimeUser, "metrics"); len(got) != 1 {
		t.Errorf("user partition affected by clear: %d records", len(got))
	}
	if got := collect(t, db, types.LifetimePing, "other"); len(got) != 1 {
		t.Errorf("other store affected by clear: %d records", len(got))
	}

	// Clearing an already-empty store is not an error.
	if err := db.ClearPingLifetime(ctx, "metrics"); err != nil {
		t.Errorf("clear of empty store: %v", err)
	}
}

func TestVisitorShortCircuit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if err := db.Record(ctx, types.LifetimeUser, "metrics", []byte(name), metrics.Counter(1)); err != nil {
			t.Fatal(err)
		}
	}

	stop := errors.New("stop")
	visits := 0
	err := db.IterStore(ctx, types.LifetimeUser, "metrics", func([]byte, metrics.Metric) error {
		visits++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected visitor error to propagate, got %v", err)
	}
	if visits != 1 {
		t.Errorf("expected iteration to stop after 1 visit, got %d", visits)
	}
}

func TestNonUTF8NamePreserved(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	name := []byte{0xff, 0xfe, 'x'}

	if err := db.Record(ctx, types.LifetimePing, "metrics", name, metrics.Boolean(true)); err != nil {
		t.Fatal(err)
	}

	var got []byte
	err := db.IterStore(ctx, types.LifetimePing, "metrics", func(n []byte, _ metrics.Metric) error {
		got = append([]byte(nil), n...)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(name) {
		t.Errorf("name bytes changed: %v != %v", got, name)
	}
}

func TestInvalidLifetime(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.Record(ctx, types.Lifetime(9), "metrics", []byte("m"), metrics.Counter(1))
	if !errors.Is(err, berrors.ErrInvalidLifetime) {
		t.Errorf("record: expected ErrInvalidLifetime, got %v", err)
	}

	err = db.IterStore(ctx, types.Lifetime(9), "metrics", func([]byte, metrics.Metric) error { return nil })
	if !errors.Is(err, berrors.ErrInvalidLifetime) {
		t.Errorf("iterate: expected ErrInvalidLifetime, got %v", err)
	}
}

func TestDatabaseErrorsCarrySentinel(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.IterStore(ctx, types.LifetimeUser, "metrics", func([]byte, metrics.Metric) error { return nil })
	if !errors.Is(err, berrors.ErrDatabase) {
		t.Errorf("expected ErrDatabase in chain, got %v", err)
	}
	// The driver's own error stays reachable through the chain.
	if !errors.Is(err, context.Canceled) {
		t.Errorf("underlying cause masked: %v", err)
	}
}

func TestClosedDatabase(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	// Close is idempotent.
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	if err := db.Record(ctx, types.LifetimePing, "s", []byte("m"), metrics.Counter(1)); !errors.Is(err, berrors.ErrDatabaseClosed) {
		t.Errorf("record: expected ErrDatabaseClosed, got %v", err)
	}
	if err := db.IterStore(ctx, types.LifetimePing, "s", func([]byte, metrics.Metric) error { return nil }); !errors.Is(err, berrors.ErrDatabaseClosed) {
		t.Errorf("iterate: expected ErrDatabaseClosed, got %v", err)
	}
	if err := db.ClearPingLifetime(ctx, "s"); !errors.Is(err, berrors.ErrDatabaseClosed) {
		t.Errorf("clear: expected ErrDatabaseClosed, got %v", err)
	}
}

func TestApplicationLifetimeIsVolatile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	db, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := db.Record(ctx, types.LifetimeApplication, "metrics", []byte("m"), metrics.Counter(1)); err != nil {
		t.Fatal(err)
	}
	if err := db.Record(ctx, types.LifetimeUser, "metrics", []byte("m"), metrics.Counter(2)); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen: user-lifetime data survives, application-lifetime does not.
	db, err = Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if got := collect(t, db, types.LifetimeApplication, "metrics"); len(got) != 0 {
		t.Errorf("application records survived restart: %d", len(got))
	}
	if got := collect(t, db, types.LifetimeUser, "metrics"); len(got) != 1 {
		t.Errorf("user records lost across restart: %d", len(got))
	}
}

func TestClearApplicationLifetime(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Record(ctx, types.LifetimeApplication, "metrics", []byte("m"), metrics.Counter(1)); err != nil {
		t.Fatal(err)
	}

	db.ClearApplicationLifetime()

	if got := collect(t, db, types.LifetimeApplication, "metrics"); len(got) != 0 {
		t.Errorf("application partition not cleared: %d records", len(got))
	}
}
