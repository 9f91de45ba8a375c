package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/nestcheck/internal/checklist"
)

// InitResult is the output of the init command.
type InitResult struct {
	DataDir          string `json:"data_dir"`
	DBPath           string `json:"db_path"`
	ChecklistPath    string `json:"checklist_path"`
	ChecklistWritten bool   `json:"checklist_written"`
	ChecklistVersion string `json:"checklist_version"`
	Steps            int    `json:"steps"`
	SaveDir          string `json:"save_dir"`
	PinsMustChange   bool   `json:"pins_must_change"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Prepare the data directory, database and default checklist",
		Long: `Create the data directory, the database and the default PINs and
settings. The bundled checklist is written to checklist_path unless a file
already exists there, so local edits are never overwritten.

Running init again is harmless.

Example:
  nestcheck init
  NESTCHECK_DATA_DIR=/srv/nestcheck nestcheck init --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	written, err := writeIfAbsent(a.cfg.ChecklistPath, checklist.DefaultYAML())
	if err != nil {
		return failConfig(a.out, "failed to write checklist", err)
	}
	def, err := checklist.Load(a.cfg.ChecklistPath)
	if err != nil {
		return failConfig(a.out, "failed to load checklist", err)
	}

	mustChange, err := a.creds.PinsMustChange(ctx)
	if err != nil {
		return fail(a.out, err)
	}
	saveDir, err := a.engine.SaveDir(ctx)
	if err != nil {
		return fail(a.out, err)
	}

	res := InitResult{
		DataDir:          a.cfg.DataDir,
		DBPath:           a.cfg.DBPath,
		ChecklistPath:    a.cfg.ChecklistPath,
		ChecklistWritten: written,
		ChecklistVersion: def.Version(),
		Steps:            def.NumItems(),
		SaveDir:          saveDir,
		PinsMustChange:   mustChange,
	}
	return a.out.Render(res, func(w io.Writer) {
		fmt.Fprintln(w, color.New(color.FgHiGreen).Sprintf("✓ Initialised %s", res.DataDir))
		fmt.Fprintf(w, "  database:  %s\n", res.DBPath)
		state := "kept"
		if res.ChecklistWritten {
			state = "written"
		}
		fmt.Fprintf(w, "  checklist: %s (%s, version %s, %d steps)\n", res.ChecklistPath, state, res.ChecklistVersion, res.Steps)
		fmt.Fprintf(w, "  reports:   %s\n", res.SaveDir)
		if res.PinsMustChange {
			fmt.Fprintln(w, color.New(color.FgYellow).Sprint("⚠ default PINs are active; change them with 'nestcheck pin change'"))
		}
	})
}
