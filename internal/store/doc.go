// Package store provides SQLite-backed durable storage for checklist sessions.
//
// The store holds:
//   - Settings: process-wide key/value pairs (configuration, credential
//     material, the report sequence counter)
//   - Sessions: one per work order run
//   - Steps: seeded once per session from the checklist definition
//   - Step versions: append-only status history of every step
//   - Photos, logs and reports: append-only records
//
// # Invariants
//
// Step identity within a session is (block_index, item_index), enforced by a
// UNIQUE index. Seeding uses ON CONFLICT DO NOTHING so it can be repeated.
//
// Every step status mutation writes exactly one step_versions row in the same
// transaction as the step update (see ApplyStepChange).
//
// Report sequence numbers come from the report_seq setting and are strictly
// increasing across the whole store (see NextReportSeq).
//
// # Database Configuration
//
//   - Single connection: one writer, no SQLITE_BUSY between our own goroutines
//   - WAL mode, synchronous=NORMAL, busy_timeout=5000, foreign_keys=ON
//
// Timestamps are persisted as unix seconds.
package store
