package outreach

import (
	"time"

	"github.com/dirmail/dirmail/internal/ledger"
)

// SendOutcome is the per-candidate result of one dispatch attempt.
type SendOutcome struct {
	Identity    string        `json:"identity"`
	DisplayName string        `json:"display_name,omitempty"`
	Status      ledger.Status `json:"status"`
	Reason      string        `json:"reason,omitempty"` // failure reason, empty on success
}

// Report describes one finished run, whether Completed or Aborted.
type Report struct {
	RunID     string        `json:"run_id"`
	Query     string        `json:"query"`
	State     State         `json:"-"`
	Outcome   string        `json:"outcome"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Sent      int           `json:"sent"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Outcomes  []SendOutcome `json:"results,omitempty"`
}

// Summary converts the report to its audit log form.
func (r *Report) Summary() ledger.RunSummary {
	return ledger.RunSummary{
		RunID:          r.RunID,
		Query:          r.Query,
		Outcome:        r.State.String(),
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
		ElapsedSeconds: r.EndedAt.Sub(r.StartedAt).Seconds(),
		Counts: ledger.Counts{
			Sent:    r.Sent,
			Failed:  r.Failed,
			Skipped: r.Skipped,
		},
	}
}
