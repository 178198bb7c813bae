// Package ledger provides durable storage for the outreach ledger.
//
// The ledger is the sole source of truth for deduplication: a mapping
// from contact identity to outreach outcome, persisted as a single JSON
// document under the data directory. Every commit rewrites the whole
// document through a temp-file-and-rename sequence, so the on-disk file
// is never observed half-written.
//
// # Durability Model
//
//   - Commit is a synchronous durability point: the caller must not
//     treat a send as done until Commit returns.
//   - Writes go to a temp file in the same directory, are fsynced, then
//     renamed over records.json in one step.
//   - A ledger file that exists but cannot be parsed is fatal on open.
//     Aborting is always preferred over risking a double contact.
//
// # Invariants
//
//   - At most one record with status "sent" per identity, ever. A
//     prior "sent" is never downgraded by a later commit.
//   - The on-disk document after any completed run is a strict superset
//     (by identity) of the document before the run.
//
// # Concurrency
//
// A ledger is owned exclusively by one run. Open acquires a lock file
// next to the document; a second concurrent open fails with LockedError
// rather than allowing two runs to race on the same store.
//
// The runs/ area next to the document holds one append-only JSON log
// per run (query, timestamps, counts) for audit. Run logs are write-only
// from the run's perspective.
package ledger
