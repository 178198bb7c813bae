package outreach

// MaxCap is the ceiling any single run may request. Outreach is meant
// to look like a person working through a directory, and a person does
// not send hundreds of messages in a sitting.
const MaxCap = 100

// CapEnforcer tracks successful sends against the run's cap.
//
// The cap bounds successful sends only: skips and failed sends do not
// consume it. Once the cap is reached, dispatch stops entirely -
// remaining candidates are left untouched for a future run, not
// individually skipped.
type CapEnforcer struct {
	cap  int
	sent int
}

// NewCapEnforcer creates an enforcer for the given cap.
// The caller validates the cap range; a zero cap is legal and means
// the run dispatches nothing.
func NewCapEnforcer(cap int) *CapEnforcer {
	return &CapEnforcer{cap: cap}
}

// Reached reports whether the run has used up its send budget.
func (c *CapEnforcer) Reached() bool {
	return c.sent >= c.cap
}

// RecordSend counts one successful send. Called only after the send's
// ledger commit has returned.
func (c *CapEnforcer) RecordSend() {
	c.sent++
}

// Sent returns the number of successful sends so far.
func (c *CapEnforcer) Sent() int {
	return c.sent
}

// Cap returns the run's send budget.
func (c *CapEnforcer) Cap() int {
	return c.cap
}
