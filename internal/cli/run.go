package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dirmail/dirmail/internal/config"
	"github.com/dirmail/dirmail/internal/directory"
	"github.com/dirmail/dirmail/internal/ledger"
	"github.com/dirmail/dirmail/internal/notify"
	"github.com/dirmail/dirmail/internal/outreach"
	"github.com/dirmail/dirmail/internal/session"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Cap      int
	Jitter   float64
	NoPrompt bool

	// HTTPClient overrides the transport (for testing). If nil, the
	// session layer uses http.DefaultClient.
	HTTPClient *http.Client

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs outreach.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Authenticate, search the directory, and send paced messages",
		Long: `Run one outreach pass: sign in (approving the MFA push on your
device), search the directory with the configured query, and message
each match that has not been successfully contacted before, up to the
send cap, with a jittered delay between sends.

Every outcome is committed to the ledger before it is counted, so an
interrupted run never double-contacts anyone when repeated.

Example:
  dirmail run --config dirmail.yaml
  dirmail run --cap 5 --jitter 0.5 --yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutreach(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Cap, "cap", 0, "successful sends allowed this run (overrides config and prompt)")
	cmd.Flags().Float64Var(&opts.Jitter, "jitter", 0, "pacing jitter factor (overrides config and prompt)")
	cmd.Flags().BoolVar(&opts.NoPrompt, "yes", false, "accept configured cap and jitter without prompting")

	return cmd
}

func runOutreach(opts *RunOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	sendCap, jitter, err := resolveRunParams(opts, cfg, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run parameters", err)
	}

	slog.Info("opening ledger", "data_dir", cfg.DataDir)
	led, err := ledger.Open(cfg.DataDir)
	if err != nil {
		if ledger.IsLocked(err) {
			return WrapExitError(ExitCommandError, "another run is already using this ledger", err)
		}
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer func() {
		if closeErr := led.Close(); closeErr != nil {
			slog.Error("error closing ledger", "error", closeErr)
		}
	}()

	mgr, err := session.NewManager(session.Config{
		BaseURL:    cfg.BaseURL,
		MFATimeout: cfg.MFAWait(),
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid directory service address", err)
	}

	// Signal handling: Ctrl-C cancels at the next candidate boundary,
	// after any in-flight send has been committed.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping after current send", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if !out.JSON() {
		fmt.Fprintln(cmd.OutOrStdout(), "Signing in. Approve the push notification on your device.")
	}
	sess, err := mgr.Authenticate(ctx, session.Credentials{
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "sign-in failed", err)
	}
	slog.Info("authenticated", "base_url", cfg.BaseURL, "expires_at", sess.ExpiresAt())

	dirClient := directory.NewClient()
	searcher := outreach.SearcherFunc(func(ctx context.Context, sess *session.Session, q directory.Query) (outreach.Results, error) {
		return dirClient.Search(ctx, sess, q)
	})

	schedOpts := []outreach.Option{}
	if opts.RunIDs != nil {
		schedOpts = append(schedOpts, outreach.WithRunIDGenerator(opts.RunIDs))
	}
	sched := outreach.New(led, ledger.NewRunLog(cfg.DataDir), searcher, notify.NewClient(cfg.SendCopy), schedOpts...)

	rep, err := sched.Run(ctx, sess, outreach.RunRequest{
		Query: directory.Query{
			Text:            cfg.Query,
			PageSize:        cfg.PageSize,
			SortBy:          cfg.SortBy,
			ExcludeDeceased: cfg.ExcludeDeceased,
		},
		Subject:      cfg.Subject,
		Body:         cfg.Body,
		Cap:          sendCap,
		JitterFactor: jitter,
	})
	if rep != nil {
		printReport(out, cmd, rep)
	}
	if err != nil {
		if outreach.IsInvalidCap(err) {
			return WrapExitError(ExitCommandError, "invalid send cap", err)
		}
		return WrapExitError(ExitAborted, "run aborted", err)
	}
	return nil
}

// resolveRunParams picks the cap and jitter for this run: an explicit
// flag wins, then the interactive prompt (when attached to a terminal),
// then the configured value.
func resolveRunParams(opts *RunOptions, cfg *config.Config, cmd *cobra.Command) (int, float64, error) {
	sendCap := cfg.Cap
	jitter := cfg.JitterFactor
	interactive := !opts.NoPrompt && isTerminal(os.Stdin)

	switch {
	case cmd.Flags().Changed("cap"):
		sendCap = opts.Cap
	case interactive:
		v, err := promptCap(cfg.Cap)
		if err != nil {
			return 0, 0, err
		}
		sendCap = v
	}

	switch {
	case cmd.Flags().Changed("jitter"):
		jitter = opts.Jitter
	case interactive:
		v, err := promptJitter(cfg.JitterFactor)
		if err != nil {
			return 0, 0, err
		}
		jitter = v
	}

	return sendCap, jitter, nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func printReport(out *OutputFormatter, cmd *cobra.Command, rep *outreach.Report) {
	if out.JSON() {
		var err error
		if rep.State == outreach.StateAborted {
			err = out.Failure("run aborted", rep)
		} else {
			err = out.Success(rep)
		}
		if err != nil {
			slog.Error("failed to encode report", "error", err)
		}
		return
	}

	w := cmd.OutOrStdout()
	for _, o := range rep.Outcomes {
		fmt.Fprintln(w, OutcomeLine(o))
	}
	fmt.Fprintln(w, RenderReport(rep))
}
