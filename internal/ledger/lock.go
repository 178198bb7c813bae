package ledger

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// lockFile is the lock marker name inside the data directory.
const lockFile = "records.lock"

// LockedError is returned when another run holds the ledger lock.
//
// Two runs against the same store would race on the document and break
// the dedup guarantee, so the second run is rejected outright.
type LockedError struct {
	Path string
	PID  int // holder's PID if readable, 0 otherwise
}

func (e *LockedError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("ledger is locked by another run (pid %d): %s", e.PID, e.Path)
	}
	return fmt.Sprintf("ledger is locked by another run: %s", e.Path)
}

// IsLocked returns true if the error is a LockedError.
// Uses errors.As to handle wrapped errors.
func IsLocked(err error) bool {
	var le *LockedError
	return errors.As(err, &le)
}

// fileLock is an exclusive advisory lock implemented as an O_EXCL
// create of a marker file holding the owner's PID.
type fileLock struct {
	path string
}

// acquireLock creates the lock marker, failing with LockedError if it
// already exists. The marker records the owning PID for diagnostics.
func acquireLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, &LockedError{Path: path, PID: readLockPID(path)}
	}
	if err != nil {
		return nil, fmt.Errorf("acquire ledger lock: %w", err)
	}

	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write ledger lock: %w", errors.Join(werr, cerr))
	}

	return &fileLock{path: path}, nil
}

// release removes the lock marker.
func (l *fileLock) release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release ledger lock: %w", err)
	}
	return nil
}

// readLockPID best-effort reads the PID recorded in an existing lock.
func readLockPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
