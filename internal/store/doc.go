// Package store caches imported schema snapshots and built query records
// in SQLite.
//
// Both tables are content-addressed: a snapshot is keyed by the hash of its
// canonical JSON and a query by the hash of its canonical text and
// parameters, both computed in internal/ir. Writing the same content twice
// returns the existing record.
//
// # Ordering
//
// Listings are ordered by seq, the autoincrement import order, then by id.
// No wall-clock timestamps are stored; listings depend only on the order
// in which content was first written.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: A query's schema_hash must name a stored snapshot
package store
