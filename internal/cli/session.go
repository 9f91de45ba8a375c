package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/nestcheck/internal/workflow"
)

// SessionOptions holds flags for the session commands.
type SessionOptions struct {
	*RootOptions
	Order     string
	Operator  string
	Replace   bool
	SessionID int64
}

// SessionStatus is the output of session start, resume and status.
type SessionStatus struct {
	Session  SessionView  `json:"session"`
	Progress ProgressView `json:"progress"`
	Steps    []StepView   `json:"steps"`
}

// FinishResult is the output of session finish.
type FinishResult struct {
	Session       SessionView `json:"session"`
	FinishMessage string      `json:"finish_message"`
	ReportPath    string      `json:"report_path,omitempty"`
	ReportSeq     int64       `json:"report_seq,omitempty"`
	Skipped       []string    `json:"skipped_photos,omitempty"`
	Delivered     bool        `json:"delivered"`
	DeliveryError string      `json:"delivery_error,omitempty"`
	ReportError   string      `json:"report_error,omitempty"`
}

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start, resume, inspect and finish checklist sessions",
	}
	cmd.AddCommand(newSessionStartCommand(rootOpts))
	cmd.AddCommand(newSessionResumeCommand(rootOpts))
	cmd.AddCommand(newSessionStatusCommand(rootOpts))
	cmd.AddCommand(newSessionFinishCommand(rootOpts))
	cmd.AddCommand(newSessionListCommand(rootOpts))
	return cmd
}

func newSessionStartCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Open a session for an order",
		Long: `Open a checklist session for an order. Only one session can be
active; use --replace to archive the active one first.

Example:
  nestcheck session start --order ORD-1042 --operator Petrov`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionStart(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Order, "order", "", "order number (required)")
	cmd.Flags().StringVar(&opts.Operator, "operator", "", "operator name (required)")
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "archive the active session and start a new one")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("operator")

	return cmd
}

func runSessionStart(opts *SessionOptions, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	start := a.engine.Start
	if opts.Replace {
		start = a.engine.StartReplacing
	}
	sess, err := start(ctx, opts.Order, opts.Operator)
	if err != nil {
		if workflow.IsActiveSessionError(err) {
			a.out.Warn("use 'nestcheck session resume' to continue it or --replace to archive it")
		}
		return fail(a.out, err)
	}
	return outputStatus(a, cmd, workflow.For(sess))
}

func newSessionResumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume the active session",
		Long: `Resume the active session (or the one given with --session) and add any
checklist items that were introduced since it was started.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := commandContext(cmd)

			cur, err := a.session(ctx, opts.SessionID)
			if err != nil {
				return fail(a.out, err)
			}
			sess, err := a.engine.Resume(ctx, cur.ID)
			if err != nil {
				return fail(a.out, err)
			}
			return outputStatus(a, cmd, workflow.For(sess))
		},
	}
	cmd.Flags().Int64Var(&opts.SessionID, "session", 0, "session ID (default: the active session)")
	return cmd
}

func newSessionStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show a session's steps and progress",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.session(commandContext(cmd), opts.SessionID)
			if err != nil {
				return fail(a.out, err)
			}
			return outputStatus(a, cmd, workflow.For(sess))
		},
	}
	cmd.Flags().Int64Var(&opts.SessionID, "session", 0, "session ID (default: the active session)")
	return cmd
}

func outputStatus(a *app, cmd *cobra.Command, sc workflow.SessionContext) error {
	ctx := commandContext(cmd)
	sess, err := a.store.GetSession(ctx, sc.SessionID)
	if err != nil {
		return fail(a.out, err)
	}
	steps, err := a.engine.Steps(ctx, sc)
	if err != nil {
		return fail(a.out, err)
	}
	p, err := a.engine.Progress(ctx, sc)
	if err != nil {
		return fail(a.out, err)
	}

	res := SessionStatus{
		Session:  sessionView(sess),
		Progress: progressView(p),
		Steps:    make([]StepView, len(steps)),
	}
	for i, st := range steps {
		res.Steps[i] = stepView(a.engine.Checklist(), st)
	}
	return a.out.Render(res, func(w io.Writer) {
		printSession(w, res.Session)
		printProgress(w, res.Progress)
		fmt.Fprintln(w)
		printSteps(w, res.Steps)
	})
}

func newSessionFinishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "finish",
		Short: "Finish the active session and produce its report",
		Long: `Complete the active session, generate the PDF report into the save
directory and e-mail it when delivery is enabled. A delivery failure is
reported but never undoes the session or the report.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionFinish(opts, cmd)
		},
	}
}

func runSessionFinish(opts *SessionOptions, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	sess, err := a.engine.Current(ctx)
	if err != nil {
		return fail(a.out, err)
	}
	out, err := a.engine.FinishAndReport(ctx, workflow.For(sess))
	if out == nil {
		return fail(a.out, err)
	}

	res := FinishResult{
		Session:       sessionView(out.Session),
		FinishMessage: out.FinishMessage,
		Delivered:     out.Delivered,
	}
	if out.Report != nil {
		res.ReportPath = out.Report.FilePath
		res.ReportSeq = out.Report.Seq
	}
	for _, s := range out.Skipped {
		res.Skipped = append(res.Skipped, s.Path)
	}
	if out.DeliveryErr != nil {
		res.DeliveryError = out.DeliveryErr.Error()
	}
	if err != nil {
		res.ReportError = err.Error()
	}

	if err != nil && a.out.Format == "json" {
		code, exit := classify(err)
		_ = a.out.Error(code, err.Error(), res)
		return WrapExitError(exit, code, err)
	}

	if rerr := a.out.Render(res, func(w io.Writer) {
		fmt.Fprintln(w, color.New(color.FgHiGreen).Sprintf("✓ %s", res.FinishMessage))
		if res.ReportPath != "" {
			fmt.Fprintf(w, "Report #%d: %s\n", res.ReportSeq, res.ReportPath)
		}
		for _, p := range res.Skipped {
			fmt.Fprintln(w, color.New(color.FgYellow).Sprintf("⚠ photo left out: %s", p))
		}
		switch {
		case res.Delivered:
			fmt.Fprintln(w, "Report e-mailed")
		case res.DeliveryError != "":
			fmt.Fprintln(w, color.New(color.FgRed).Sprintf("✗ e-mail failed: %s", res.DeliveryError))
		}
	}); rerr != nil {
		return rerr
	}

	if err != nil {
		a.out.Warn("session is completed; retry with 'nestcheck report generate --session %d'", res.Session.ID)
		return fail(a.out, err)
	}
	return nil
}

func newSessionListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List all sessions, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			sessions, err := a.store.ListSessions(commandContext(cmd))
			if err != nil {
				return fail(a.out, err)
			}
			views := make([]SessionView, len(sessions))
			for i, s := range sessions {
				views[i] = sessionView(s)
			}
			return a.out.Render(views, func(w io.Writer) {
				if len(views) == 0 {
					fmt.Fprintln(w, "No sessions")
					return
				}
				for _, v := range views {
					printSession(w, v)
				}
			})
		},
	}
}
