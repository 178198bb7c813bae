package outreach

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/dirmail/dirmail/internal/directory"
	"github.com/dirmail/dirmail/internal/ledger"
	"github.com/dirmail/dirmail/internal/notify"
	"github.com/dirmail/dirmail/internal/session"
)

// Results is the forward-only candidate stream consumed by the
// scheduler. Next returns io.EOF at exhaustion; any other error is
// fatal to the enumeration. Implemented by directory.Results.
type Results interface {
	Next(ctx context.Context) (directory.Contact, error)
}

// Searcher produces the candidate stream for a run.
// Implemented via SearcherFunc over directory.Client.
type Searcher interface {
	Search(ctx context.Context, sess *session.Session, q directory.Query) (Results, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, sess *session.Session, q directory.Query) (Results, error)

// Search implements Searcher.
func (f SearcherFunc) Search(ctx context.Context, sess *session.Session, q directory.Query) (Results, error) {
	return f(ctx, sess, q)
}

// Notifier sends one message to one contact. Implemented by
// notify.Client.
type Notifier interface {
	Send(ctx context.Context, sess *session.Session, contact directory.Contact, subject, body string) error
}

// RunRequest carries the per-run parameters.
type RunRequest struct {
	Query        directory.Query
	Subject      string
	Body         string
	Cap          int     // [0, MaxCap] successful sends allowed
	JitterFactor float64 // >= 0; 0 disables pacing
}

// Scheduler is the outreach run state machine. One Scheduler drives one
// run at a time; it is not safe for concurrent use (and the ledger lock
// prevents concurrent runs against the same store anyway).
type Scheduler struct {
	ledger   *ledger.Ledger
	runLog   *ledger.RunLog
	searcher Searcher
	notifier Notifier

	runIDs   RunIDGenerator
	now      func() time.Time
	minDelay time.Duration
	sleep    sleepFunc
	randFn   func() float64

	state State
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRunIDGenerator overrides the run ID source (for testing).
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(s *Scheduler) { s.runIDs = g }
}

// WithNow overrides the wall clock (for testing).
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithMinDelay overrides the pacing floor. The jittered delay before
// each send falls in [min, min*(1+jitter)].
func WithMinDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.minDelay = d }
}

// WithSleep overrides the pacing sleep (for testing).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = fn }
}

// WithRand overrides the jitter randomness source (for testing).
func WithRand(fn func() float64) Option {
	return func(s *Scheduler) { s.randFn = fn }
}

// New creates a Scheduler over an open ledger and the two collaborator
// interfaces.
func New(led *ledger.Ledger, runLog *ledger.RunLog, searcher Searcher, notifier Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		ledger:   led,
		runLog:   runLog,
		searcher: searcher,
		notifier: notifier,
		runIDs:   UUIDv7Generator{},
		now:      time.Now,
		minDelay: DefaultMinDelay,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the scheduler's current lifecycle state.
func (s *Scheduler) State() State {
	return s.state
}

// Run executes one outreach run: filter the candidate stream through
// the ledger, send up to req.Cap messages at jittered intervals, and
// commit every outcome before counting it.
//
// The returned Report is non-nil for every run that got past parameter
// validation, including aborted ones. The error is nil only when the
// run reached Completed.
func (s *Scheduler) Run(ctx context.Context, sess *session.Session, req RunRequest) (*Report, error) {
	// Reject a bad cap before touching any external system.
	if req.Cap < 0 || req.Cap > MaxCap {
		s.state = StateAborted
		return nil, &InvalidCapError{Cap: req.Cap}
	}

	report := &Report{
		RunID:     s.runIDs.Generate(),
		Query:     req.Query.Text,
		StartedAt: s.now(),
	}

	if sess == nil || !sess.Valid(s.now()) {
		return s.abort(report, StageAuth, "no valid authenticated session", nil)
	}
	s.state = StateAuthenticated
	slog.Info("run starting",
		"run_id", report.RunID,
		"query", req.Query.Text,
		"cap", req.Cap,
		"jitter", req.JitterFactor,
	)

	s.state = StateSearching
	results, err := s.searcher.Search(ctx, sess, req.Query)
	if err != nil {
		return s.abort(report, StageSearch, "directory search failed", err)
	}

	s.state = StateDispatching
	caps := NewCapEnforcer(req.Cap)
	pace := newPacer(req.JitterFactor, s.minDelay, s.sleep, s.randFn)

	for {
		// Cancellation is honored here, at the candidate boundary,
		// never between a send and its commit.
		if err := ctx.Err(); err != nil {
			return s.abort(report, StageDispatch, "run cancelled", err)
		}

		contact, err := results.Next(ctx)
		if errors.Is(err, io.EOF) {
			slog.Info("candidates exhausted")
			break
		}
		if err != nil {
			return s.abort(report, StageSearch, "candidate enumeration failed", err)
		}

		if s.ledger.Contains(contact.Identity) {
			report.Skipped++
			slog.Debug("skipping already-contacted identity", "identity", contact.Identity)
			continue
		}

		if caps.Reached() {
			slog.Info("send cap reached, stopping dispatch", "cap", caps.Cap())
			break
		}

		if err := pace.Wait(ctx); err != nil {
			return s.abort(report, StageDispatch, "run cancelled", err)
		}

		sendErr := s.notifier.Send(ctx, sess, contact, req.Subject, notify.Personalize(contact, req.Body))

		now := s.now()
		rec := ledger.Record{
			Identity:    contact.Identity,
			DisplayName: contact.DisplayName,
			Email:       contact.Email,
			Status:      ledger.StatusSent,
			RunID:       report.RunID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		outcome := SendOutcome{
			Identity:    contact.Identity,
			DisplayName: contact.DisplayName,
			Status:      ledger.StatusSent,
		}
		if sendErr != nil {
			rec.Status = ledger.StatusFailed
			outcome.Status = ledger.StatusFailed
			outcome.Reason = sendErr.Error()
		}

		// The commit is the durability point: a storage failure here is
		// fatal because continuing could double-contact after a crash.
		if err := s.ledger.Commit(rec); err != nil {
			return s.abort(report, StageLedger, "ledger commit failed", err)
		}

		report.Outcomes = append(report.Outcomes, outcome)
		if sendErr == nil {
			caps.RecordSend()
			report.Sent++
			slog.Info("message sent",
				"identity", contact.Identity,
				"sent", caps.Sent(),
				"cap", caps.Cap(),
			)
		} else {
			report.Failed++
			slog.Warn("send failed, continuing",
				"identity", contact.Identity,
				"reason", sendErr,
			)
		}
	}

	s.state = StateCompleted
	report.State = StateCompleted
	report.Outcome = StateCompleted.String()
	report.EndedAt = s.now()
	s.writeRunLog(report)

	slog.Info("run completed",
		"run_id", report.RunID,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}

// abort moves the run to its terminal failure state. Committed records
// are never rolled back.
func (s *Scheduler) abort(report *Report, stage Stage, msg string, err error) (*Report, error) {
	s.state = StateAborted
	report.State = StateAborted
	report.Outcome = StateAborted.String()
	report.EndedAt = s.now()
	s.writeRunLog(report)

	slog.Error("run aborted",
		"run_id", report.RunID,
		"stage", string(stage),
		"error", err,
	)
	return report, &RunError{Stage: stage, Message: msg, Err: err}
}

// writeRunLog records the run in the audit area. The audit log is
// best-effort: a write failure is logged but does not change the run's
// outcome, since the ledger - not the run log - carries the dedup
// guarantee.
func (s *Scheduler) writeRunLog(report *Report) {
	if s.runLog == nil {
		return
	}
	if err := s.runLog.Write(report.Summary()); err != nil {
		slog.Error("failed to write run log", "run_id", report.RunID, "error", err)
	}
}
