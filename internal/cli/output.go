package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dirmail/dirmail/internal/ledger"
	"github.com/dirmail/dirmail/internal/outreach"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // run completed
	ExitAborted      = 1 // run started but ended in the aborted state
	ExitCommandError = 2 // bad configuration, locked ledger, failed login
)

// ExitError carries a specific exit code out of a command's RunE.
type ExitError struct {
	Code    int
	Message string
	Err     error // underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not
// ExitErrors map to ExitAborted.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitAborted
}

// CLIResponse is the envelope for --format=json output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error half of a CLIResponse.
type CLIError struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter renders command results as styled text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// JSON reports whether the formatter emits machine-readable output.
// Commands use this to suppress decorative progress lines.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success emits data in the configured format. Text output uses the
// value's String method when it has one.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Failure emits an error in the configured format.
func (f *OutputFormatter) Failure(message string, details any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Message: message, Details: details},
		})
	}
	_, err := fmt.Fprintf(f.Writer, "Error: %s\n", message)
	return err
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Faint(true)
	sentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// OutcomeLine renders one dispatch result for the progress listing.
func OutcomeLine(o outreach.SendOutcome) string {
	tag := sentStyle.Render("sent")
	if o.Status == ledger.StatusFailed {
		tag = failedStyle.Render("fail")
	}
	name := o.DisplayName
	if name == "" {
		name = o.Identity
	}
	line := fmt.Sprintf("%s  %s", tag, name)
	if o.Reason != "" {
		line += "  " + labelStyle.Render("("+o.Reason+")")
	}
	return line
}

// RenderReport renders the end-of-run summary box.
func RenderReport(rep *outreach.Report) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("run "+rep.RunID) + "\n")

	rows := []struct{ label, value string }{
		{"query", rep.Query},
		{"outcome", rep.Outcome},
		{"sent", fmt.Sprintf("%d", rep.Sent)},
		{"failed", fmt.Sprintf("%d", rep.Failed)},
		{"skipped", fmt.Sprintf("%d", rep.Skipped)},
		{"elapsed", rep.EndedAt.Sub(rep.StartedAt).Round(time.Second).String()},
	}
	for _, r := range rows {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-8s", r.label)))
		b.WriteString(" " + r.value + "\n")
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
