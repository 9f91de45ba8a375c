package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ReportOptions holds flags for the report commands.
type ReportOptions struct {
	*RootOptions
	SessionID int64
	Deliver   bool
	Order     string
}

// ReportView is the JSON form of a generated report.
type ReportView struct {
	Seq       int64     `json:"seq"`
	SessionID int64     `json:"session_id"`
	OrderNo   string    `json:"order_no"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateResult is the output of report generate.
type GenerateResult struct {
	Report        ReportView `json:"report"`
	Pages         int        `json:"pages"`
	Skipped       []string   `json:"skipped_photos,omitempty"`
	Delivered     bool       `json:"delivered"`
	DeliveryError string     `json:"delivery_error,omitempty"`
}

// NewReportCommand creates the report command group.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate and list PDF reports",
	}
	cmd.AddCommand(newReportGenerateCommand(rootOpts))
	cmd.AddCommand(newReportListCommand(rootOpts))
	return cmd
}

func newReportGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a report for a session",
		Long: `Generate a new PDF report for a session without changing it. Each
report takes the next sequence number. Use it for a test report of the active
session or to retry a report that failed at finish.

Example:
  nestcheck report generate
  nestcheck report generate --session 7 --deliver`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportGenerate(opts, cmd)
		},
	}
	cmd.Flags().Int64Var(&opts.SessionID, "session", 0, "session ID (default: the active session)")
	cmd.Flags().BoolVar(&opts.Deliver, "deliver", false, "e-mail the report when delivery is enabled")
	return cmd
}

func runReportGenerate(opts *ReportOptions, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	sess, err := a.session(ctx, opts.SessionID)
	if err != nil {
		return fail(a.out, err)
	}
	rep, res, err := a.engine.GenerateReport(ctx, sess.ID)
	if err != nil {
		return fail(a.out, err)
	}

	out := GenerateResult{
		Report: ReportView{Seq: rep.Seq, SessionID: rep.SessionID, OrderNo: rep.OrderNo, Path: rep.FilePath, CreatedAt: rep.CreatedAt},
		Pages:  res.Pages,
	}
	for _, s := range res.Skipped {
		out.Skipped = append(out.Skipped, s.Path)
	}
	if opts.Deliver {
		delivered, derr := a.engine.Deliver(ctx, rep)
		out.Delivered = delivered
		if derr != nil {
			out.DeliveryError = derr.Error()
		}
	}

	return a.out.Render(out, func(w io.Writer) {
		fmt.Fprintln(w, color.New(color.FgHiGreen).Sprintf("✓ Report #%d (%d pages): %s", out.Report.Seq, out.Pages, out.Report.Path))
		for _, p := range out.Skipped {
			fmt.Fprintln(w, color.New(color.FgYellow).Sprintf("⚠ photo left out: %s", p))
		}
		switch {
		case out.Delivered:
			fmt.Fprintln(w, "Report e-mailed")
		case out.DeliveryError != "":
			fmt.Fprintln(w, color.New(color.FgRed).Sprintf("✗ e-mail failed: %s", out.DeliveryError))
		case opts.Deliver:
			fmt.Fprintln(w, "E-mail delivery is disabled")
		}
	})
}

func newReportListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List generated reports, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			reports, err := a.engine.Reports(commandContext(cmd), opts.Order)
			if err != nil {
				return fail(a.out, err)
			}
			views := make([]ReportView, len(reports))
			for i, r := range reports {
				views[i] = ReportView{Seq: r.Seq, SessionID: r.SessionID, OrderNo: r.OrderNo, Path: r.FilePath, CreatedAt: r.CreatedAt}
			}
			return a.out.Render(views, func(w io.Writer) {
				if len(views) == 0 {
					fmt.Fprintln(w, "No reports")
					return
				}
				for _, v := range views {
					fmt.Fprintf(w, "#%04d  %s  %-12s  %s\n", v.Seq, v.CreatedAt.Local().Format(time.DateTime), v.OrderNo, v.Path)
				}
			})
		},
	}
	cmd.Flags().StringVar(&opts.Order, "order", "", "only reports whose order number contains this text")
	return cmd
}
