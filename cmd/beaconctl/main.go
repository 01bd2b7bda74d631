// beaconctl inspects a beacon metrics data directory.
//
// It prints the merged snapshot of a store, or a single metric's value,
// and can clear the ping lifetime or archive the snapshot while doing so.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"

	"github.com/xtxerr/beacon/internal/logging"
	"github.com/xtxerr/beacon/internal/storage"
	"github.com/xtxerr/beacon/internal/storage/config"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "config.yaml", "config file path")
	dataDir := flag.String("data", "", "data directory (overrides config)")
	dbPath := flag.String("db", "", "record database path (overrides config)")
	storeName := flag.String("store", "metrics", "store name to inspect")
	metricID := flag.String("metric", "", "look up a single metric instead of a full snapshot")
	clear := flag.Bool("clear", false, "clear the ping lifetime after reading")
	doArchive := flag.Bool("archive", false, "write the snapshot to a Parquet archive file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg = config.DefaultConfig()
		} else {
			log.Fatalf("Load config: %v", err)
		}
	}

	// CLI overrides
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *doArchive {
		cfg.Archive.Enabled = true
	}

	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logging.Init(level, cfg.Logging.JSON)

	logging.Debug("beaconctl starting", "version", Version, "data_dir", cfg.DataDir)

	svc, err := storage.Open(cfg)
	if err != nil {
		log.Fatalf("Open storage: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()

	// Single-metric lookup
	if *metricID != "" {
		if *clear {
			log.Fatal("-clear has no effect with -metric; lookups never clear")
		}

		m, err := svc.SnapshotMetric(ctx, *storeName, *metricID)
		if err != nil {
			log.Fatalf("Lookup %s: %v", *metricID, err)
		}
		if m == nil {
			logging.Info("metric not found", "store", *storeName, "metric", *metricID)
			return
		}

		out, err := json.MarshalIndent(map[string]any{m.Category(): m.AsJSON()}, "", cfg.Snapshot.Indent)
		if err != nil {
			log.Fatalf("Serialize metric: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	// Whole-store snapshot
	if *doArchive {
		path, err := svc.ArchiveSnapshot(ctx, *storeName, *clear)
		if err != nil {
			log.Fatalf("Archive snapshot: %v", err)
		}
		if path == "" {
			logging.Info("no data to archive", "store", *storeName)
			return
		}
		logging.Info("snapshot archived", "store", *storeName, "path", path)
		return
	}

	snap, err := svc.Snapshot(ctx, *storeName, *clear)
	if err != nil {
		log.Fatalf("Snapshot %s: %v", *storeName, err)
	}
	if snap == "" {
		logging.Info("no data", "store", *storeName)
		return
	}
	fmt.Println(snap)
}
