package outreach

import (
	"errors"
	"fmt"
)

// Stage identifies where in the run a fatal error occurred. Surfaced to
// the operator so an aborted run can be diagnosed without reading logs.
type Stage string

const (
	// StageAuth covers session validation failures.
	StageAuth Stage = "auth"

	// StageSearch covers search setup and candidate enumeration.
	StageSearch Stage = "search"

	// StageDispatch covers the dispatch loop itself, including
	// cancellation during pacing.
	StageDispatch Stage = "dispatch"

	// StageLedger covers ledger commit failures. A send may have gone
	// out without being recorded; the operator must inspect before
	// re-running.
	StageLedger Stage = "ledger"
)

// RunError is a fatal error that aborted a run.
type RunError struct {
	Stage   Stage
	Message string
	Err     error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("run aborted during %s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("run aborted during %s: %s", e.Stage, e.Message)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// StageOf extracts the failing stage from an error chain, "" if the
// error is not a RunError.
func StageOf(err error) Stage {
	var re *RunError
	if errors.As(err, &re) {
		return re.Stage
	}
	return ""
}

// InvalidCapError is returned when the requested cap is outside
// [0, MaxCap]. Checked before any external system is contacted.
type InvalidCapError struct {
	Cap int
}

func (e *InvalidCapError) Error() string {
	return fmt.Sprintf("cap %d out of range [0, %d]", e.Cap, MaxCap)
}

// IsInvalidCap returns true if the error is an InvalidCapError.
// Uses errors.As to handle wrapped errors.
func IsInvalidCap(err error) bool {
	var ie *InvalidCapError
	return errors.As(err, &ie)
}
