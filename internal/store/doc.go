// Package store provides the single-writer SQLite store for the marketplace
// economy.
//
// The store owns one database file and is its only writer. Calling services
// read the same file directly; nothing in this package serves reads beyond
// the health counters.
//
// # Write Units
//
// Every mutation runs inside Execute:
//   - The in-process write slot is claimed first (bounded wait)
//   - BEGIN IMMEDIATE claims SQLite's write lock before any statement runs
//   - The unit then commits or rolls back; it cannot be cancelled mid-flight
//   - Driver errors are translated to apperr codes through the catalog
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Bounded wait for locks held by other processes
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: Lock claimed at BEGIN, never upgraded mid-unit
//
// # Events
//
// Each unit pairs its mutation with exactly one InsertEvent call. The events
// table is append-only and its maximum id is the consumers' freshness cursor.
package store
