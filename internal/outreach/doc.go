// Package outreach implements the outreach run state machine.
//
// A run moves through Idle, Authenticated, Searching, Dispatching and
// Completed, with Aborted reachable from any state on a fatal error.
// The scheduler drains the directory search stream through the ledger's
// dedup filter, paces each send with a jittered delay, and commits the
// outcome to the ledger before moving on. A send is only counted after
// its ledger commit returns, so a crash at any point leaves a ledger
// that is safe to resume from.
//
// # Error taxonomy
//
// Fatal (run aborts, state Aborted): invalid cap, missing or expired
// session, search or enumeration failure, ledger commit failure,
// cancellation. Already-committed records stay valid; nothing is rolled
// back.
//
// Per-candidate (run continues): a single send failure. Recorded as a
// failed ledger entry so a later run may retry that identity.
//
// No-op: an already-contacted identity. Skipped without delay or side
// effect.
//
// # Concurrency
//
// The run is single-threaded and cooperative. The only blocking points
// are the pacing delay and the collaborator network calls, and
// cancellation is honored at candidate boundaries only - never mid-send,
// so a cancelled run cannot leave a sent message unrecorded.
package outreach
