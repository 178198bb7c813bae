package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// recordsFile is the ledger document name inside the data directory.
const recordsFile = "records.json"

// Ledger is the in-memory view of the persisted outreach ledger.
//
// All mutations go through Commit, which persists the entire document
// before returning. Ledger is not safe for concurrent use; the run that
// opened it is the single writer, enforced by the on-disk lock.
type Ledger struct {
	path    string
	lock    *fileLock
	records map[string]Record
}

// CorruptError is returned when the ledger file exists but cannot be
// parsed as the expected JSON document.
//
// This is fatal: a run must abort rather than proceed with an unknown
// contact history and risk double-contacting someone.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("ledger %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// IsCorrupt returns true if the error is a CorruptError.
// Uses errors.As to handle wrapped errors.
func IsCorrupt(err error) bool {
	var ce *CorruptError
	return errors.As(err, &ce)
}

// Open loads the ledger document from dir, creating the directory if
// needed. An absent document yields an empty ledger; a present but
// unparseable document yields CorruptError.
//
// Open takes an exclusive lock for the run's duration. A second open
// against the same directory fails with LockedError until Close is
// called. Callers must Close the ledger when the run ends.
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	lock, err := acquireLock(filepath.Join(dir, lockFile))
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, recordsFile)
	records, err := readRecords(path)
	if err != nil {
		lock.release()
		return nil, err
	}

	return &Ledger{path: path, lock: lock, records: records}, nil
}

// Snapshot loads the ledger document read-only, without locking.
// Used by inspection commands that must not block or be blocked by an
// active run. The result reflects the last completed commit.
func Snapshot(dir string) (map[string]Record, error) {
	return readRecords(filepath.Join(dir, recordsFile))
}

// readRecords parses the ledger document at path.
// An absent file is an empty ledger, not an error.
func readRecords(path string) (map[string]Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]Record), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	if records == nil {
		records = make(map[string]Record)
	}

	for identity, rec := range records {
		if !rec.Status.Valid() {
			return nil, &CorruptError{
				Path: path,
				Err:  fmt.Errorf("record %q has unknown status %q", identity, rec.Status),
			}
		}
	}

	return records, nil
}

// Close releases the exclusive lock. The ledger must not be used after
// Close returns.
func (l *Ledger) Close() error {
	if l.lock == nil {
		return nil
	}
	err := l.lock.release()
	l.lock = nil
	return err
}

// Contains reports whether identity has already been contacted, i.e.
// whether the ledger holds a record with status "sent" for it.
//
// Failed records do not count: a later run may retry them.
func (l *Ledger) Contains(identity string) bool {
	rec, ok := l.records[NormalizeIdentity(identity)]
	return ok && rec.Status == StatusSent
}

// Get returns the record for identity, if any.
func (l *Ledger) Get(identity string) (Record, bool) {
	rec, ok := l.records[NormalizeIdentity(identity)]
	return rec, ok
}

// Len returns the number of records in the ledger.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Records returns all records sorted by identity.
func (l *Ledger) Records() []Record {
	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// Commit upserts one record and persists the entire document to stable
// storage before returning. The caller must not consider the attempt
// recorded until Commit returns nil.
//
// A prior "sent" record is never downgraded: committing a "failed"
// outcome for an identity that was already sent to is a no-op. An
// existing record keeps its original CreatedAt across updates.
func (l *Ledger) Commit(rec Record) error {
	if rec.Identity == "" {
		return fmt.Errorf("commit: record has empty identity")
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("commit: record %q has unknown status %q", rec.Identity, rec.Status)
	}

	rec.Identity = NormalizeIdentity(rec.Identity)

	if existing, ok := l.records[rec.Identity]; ok {
		if existing.Status == StatusSent && rec.Status != StatusSent {
			return nil
		}
		rec.CreatedAt = existing.CreatedAt
	}

	prev, had := l.records[rec.Identity]
	l.records[rec.Identity] = rec

	if err := writeJSONAtomic(l.path, l.records); err != nil {
		// Roll back the in-memory upsert so memory matches disk.
		if had {
			l.records[rec.Identity] = prev
		} else {
			delete(l.records, rec.Identity)
		}
		return fmt.Errorf("commit %q: %w", rec.Identity, err)
	}

	return nil
}
