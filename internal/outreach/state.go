package outreach

// State is the scheduler's position in the run lifecycle.
type State int

const (
	// StateIdle is the initial state before Run is called.
	StateIdle State = iota

	// StateAuthenticated means a valid session is in hand.
	StateAuthenticated

	// StateSearching means the directory search is being established.
	StateSearching

	// StateDispatching means candidates are being filtered and sent to.
	StateDispatching

	// StateCompleted is terminal: candidates exhausted or cap reached.
	StateCompleted

	// StateAborted is terminal: a fatal error stopped the run. Records
	// committed before the abort remain valid.
	StateAborted
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticated:
		return "authenticated"
	case StateSearching:
		return "searching"
	case StateDispatching:
		return "dispatching"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
