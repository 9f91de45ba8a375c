package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/nestcheck/internal/credential"
)

// LogsOptions holds flags for the logs commands.
type LogsOptions struct {
	*RootOptions
	AdminPin string
	Dir      string
}

// ExportResult is the output of logs export.
type ExportResult struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// NewLogsCommand creates the logs command group.
func NewLogsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Work with the event and audit log",
	}
	cmd.AddCommand(newLogsExportCommand(rootOpts))
	return cmd
}

func newLogsExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the log as CSV (needs the admin PIN)",
		Long: `Write every log entry, oldest first, as a semicolon separated CSV file
named logs_<unix time>.csv into --dir or the save directory.`,
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

			admin, err := a.authorize(ctx, credential.RoleAdmin, opts.AdminPin, "")
			if err != nil {
				return fail(a.out, err)
			}
			path, n, err := a.engine.ExportLogs(ctx, admin, opts.Dir)
			if err != nil {
				return fail(a.out, err)
			}
			res := ExportResult{Path: path, Rows: n}
			return a.out.Render(res, func(w io.Writer) {
				fmt.Fprintf(w, "Exported %d entries to %s\n", res.Rows, res.Path)
			})
		},
	}
	cmd.Flags().StringVar(&opts.AdminPin, "admin-pin", "", "admin PIN (required)")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "target directory (default: the save directory)")
	_ = cmd.MarkFlagRequired("admin-pin")
	return cmd
}
