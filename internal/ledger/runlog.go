package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// runsDir is the audit area name inside the data directory.
const runsDir = "runs"

// safeTimeFormat names run log files by start time; filesystem-safe
// variant of the timestamp (no colons).
const safeTimeFormat = "2006-01-02_15-04-05"

// Counts aggregates per-run dispatch outcomes.
type Counts struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// RunSummary is the audit log entry for one run.
//
// Summaries are write-only from the run's perspective; they exist so an
// operator can reconstruct what each run did without replaying it.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	Query          string    `json:"query"`
	Outcome        string    `json:"outcome"` // "completed" | "aborted"
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	Counts         Counts    `json:"counts"`
}

// RunLog writes one append-only JSON file per run under <dir>/runs.
type RunLog struct {
	dir string
}

// NewRunLog returns a run log rooted at the data directory's runs/ area.
func NewRunLog(dataDir string) *RunLog {
	return &RunLog{dir: filepath.Join(dataDir, runsDir)}
}

// Write persists the summary for one run. The file name combines the
// start time and run ID so concurrent-looking starts cannot collide.
// Uses the same atomic write sequence as the ledger document.
func (r *RunLog) Write(sum RunSummary) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create runs dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json", sum.StartedAt.Format(safeTimeFormat), sum.RunID)
	if err := writeJSONAtomic(filepath.Join(r.dir, name), sum); err != nil {
		return fmt.Errorf("write run log: %w", err)
	}
	return nil
}

// List reads back all run summaries, oldest first. Used by inspection
// commands only; the core never reads the audit area.
func (r *RunLog) List() ([]RunSummary, error) {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read runs dir: %w", err)
	}

	var sums []RunSummary
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read run log %s: %w", entry.Name(), err)
		}
		var sum RunSummary
		if err := json.Unmarshal(data, &sum); err != nil {
			return nil, fmt.Errorf("parse run log %s: %w", entry.Name(), err)
		}
		sums = append(sums, sum)
	}

	sort.Slice(sums, func(i, j int) bool { return sums[i].StartedAt.Before(sums[j].StartedAt) })
	return sums, nil
}
