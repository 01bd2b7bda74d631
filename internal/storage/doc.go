// Package storage implements the lifetime-partitioned metrics store and
// its snapshot engine.
//
// Architecture:
//
//	┌─────────────┐     ┌──────────────┐     ┌─────────────┐
//	│   Database  │◀────│   Snapshot   │────▶│   Archive   │
//	│  (DuckDB +  │     │    Manager   │     │  (Parquet)  │
//	│  in-memory) │     └──────────────┘     └─────────────┘
//
// The storage layer provides:
//   - Metric records partitioned by (lifetime, store), with ping- and
//     user-lifetime partitions persisted in DuckDB and application-lifetime
//     records held in memory
//   - Merged whole-store snapshots with last-lifetime-wins precedence
//     (ping → application → user traversal order)
//   - Clear-on-read of the ping lifetime as part of a snapshot
//   - Single-metric lookup using the same merge rule
//   - Optional Parquet export of produced snapshots
package storage
