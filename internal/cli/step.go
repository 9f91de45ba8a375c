package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/nestcheck/internal/capture"
	"github.com/roach88/nestcheck/internal/credential"
	"github.com/roach88/nestcheck/internal/store"
	"github.com/roach88/nestcheck/internal/workflow"
)

// StepOptions holds flags for the step commands.
type StepOptions struct {
	*RootOptions
	SessionID  int64
	Note       string
	MasterPin  string
	MasterName string
	File       string

	// Photos overrides the photo source (for testing). If nil, a
	// capture.FileSource over --file is used.
	Photos workflow.PhotoSource
}

// VersionView is the JSON form of a step version row.
type VersionView struct {
	ChangedAt time.Time `json:"changed_at"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Note      string    `json:"note,omitempty"`
}

// PhotoResult is the output of step photo.
type PhotoResult struct {
	Step      StepView `json:"step"`
	Attached  bool     `json:"attached"`
	Path      string   `json:"path,omitempty"`
	Cancelled bool     `json:"cancelled"`
}

// NewStepCommand creates the step command group. Steps are named by ID or by
// checklist position, e.g. "2.1".
func NewStepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "step",
		Short: "Work on the steps of the active session",
		Long: `Work on the steps of the active session.

A step is named by its ID as shown in 'session status' (12 or #12) or by its
checklist position, block.item counted from 1 (2.1 is the first item of the
second block).`,
	}
	cmd.PersistentFlags().Int64Var(&opts.SessionID, "session", 0, "session ID (default: the active session)")

	cmd.AddCommand(newStepBeginCommand(opts))
	cmd.AddCommand(newStepDoneCommand(opts))
	cmd.AddCommand(newStepFailCommand(opts))
	cmd.AddCommand(newStepNoteCommand(opts))
	cmd.AddCommand(newStepPhotoCommand(opts))
	cmd.AddCommand(newStepHistoryCommand(opts))
	return cmd
}

// stepAction runs fn against the step named by ref and prints the result.
func stepAction(opts *StepOptions, cmd *cobra.Command, ref string,
	fn func(a *app, sc workflow.SessionContext, st *store.Step) (*store.Step, error)) error {
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	sc, st, err := lookupStep(a, cmd, opts.SessionID, ref)
	if err != nil {
		return fail(a.out, err)
	}
	updated, err := fn(a, sc, st)
	if err != nil {
		return fail(a.out, err)
	}

	v := stepView(a.engine.Checklist(), updated)
	return a.out.Render(v, func(w io.Writer) {
		printStep(w, v)
	})
}

func lookupStep(a *app, cmd *cobra.Command, sessionID int64, ref string) (workflow.SessionContext, *store.Step, error) {
	ctx := commandContext(cmd)
	sess, err := a.session(ctx, sessionID)
	if err != nil {
		return workflow.SessionContext{}, nil, err
	}
	sc := workflow.For(sess)
	steps, err := a.engine.Steps(ctx, sc)
	if err != nil {
		return sc, nil, err
	}
	st, err := resolveStep(ref, steps)
	return sc, st, err
}

func newStepBeginCommand(opts *StepOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "begin <step>",
		Short:         "Mark a step as in progress",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stepAction(opts, cmd, args[0], func(a *app, sc workflow.SessionContext, st *store.Step) (*store.Step, error) {
				return a.engine.Begin(commandContext(cmd), sc, st.ID)
			})
		},
	}
}

func newStepDoneCommand(opts *StepOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "done <step>",
		Short:         "Mark a step as done",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stepAction(opts, cmd, args[0], func(a *app, sc workflow.SessionContext, st *store.Step) (*store.Step, error) {
				return a.engine.Complete(commandContext(cmd), sc, st.ID, opts.Note)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Note, "note", "", "note to keep with the step")
	return cmd
}

func newStepFailCommand(opts *StepOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fail <step>",
		Short: "Mark a step as failed",
		Long: `Mark a step as failed. Critical steps can only be failed by a master,
who confirms with --master-pin and is recorded by --master-name.

Example:
  nestcheck step fail 1.3 --note "sheet warped"
  nestcheck step fail 2.1 --master-pin 2468 --master-name Ivanov`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stepAction(opts, cmd, args[0], func(a *app, sc workflow.SessionContext, st *store.Step) (*store.Step, error) {
				ctx := commandContext(cmd)
				var grant *credential.Grant
				if opts.MasterPin != "" {
					g, err := a.authorize(ctx, credential.RoleMaster, opts.MasterPin, opts.MasterName)
					if err != nil {
						return nil, err
					}
					grant = &g
				}
				return a.engine.Fail(ctx, sc, st.ID, opts.Note, grant)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Note, "note", "", "reason for the failure")
	cmd.Flags().StringVar(&opts.MasterPin, "master-pin", "", "master PIN (required for critical steps)")
	cmd.Flags().StringVar(&opts.MasterName, "master-name", "", "name of the master confirming the failure")
	return cmd
}

func newStepNoteCommand(opts *StepOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "note <step> [text]",
		Short:         "Set or clear a step's note",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			note := ""
			if len(args) == 2 {
				note = args[1]
			}
			return stepAction(opts, cmd, args[0], func(a *app, sc workflow.SessionContext, st *store.Step) (*store.Step, error) {
				return a.engine.Annotate(commandContext(cmd), sc, st.ID, note)
			})
		},
	}
}

func newStepPhotoCommand(opts *StepOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photo <step>",
		Short: "Attach a photo to a step",
		Long: `Copy an image into the photo directory and attach it to a step.
An empty --file is treated as a cancelled pick and attaches nothing.

Supported types: .jpg .jpeg .png .bmp .webp`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStepPhoto(opts, cmd, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.File, "file", "", "image file to attach")
	return cmd
}

func runStepPhoto(opts *StepOptions, cmd *cobra.Command, ref string) error {
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	sc, st, err := lookupStep(a, cmd, opts.SessionID, ref)
	if err != nil {
		return fail(a.out, err)
	}

	src := opts.Photos
	if src == nil {
		src = capture.NewFileSource(a.cfg.PhotosDir, opts.File)
	}
	photo, err := a.engine.AttachPhoto(ctx, sc, st.ID, src)
	if err != nil {
		return fail(a.out, err)
	}

	res := PhotoResult{Step: stepView(a.engine.Checklist(), st), Cancelled: photo == nil}
	if photo != nil {
		res.Attached = true
		res.Path = photo.FilePath
	}
	return a.out.Render(res, func(w io.Writer) {
		if res.Cancelled {
			fmt.Fprintln(w, "Cancelled, no photo attached")
			return
		}
		fmt.Fprintf(w, "Attached %s to step %s\n", res.Path, res.Step.Ref)
	})
}

func newStepHistoryCommand(opts *StepOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history <step>",
		Short:         "Show a step's status changes",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := commandContext(cmd)

			sc, st, err := lookupStep(a, cmd, opts.SessionID, args[0])
			if err != nil {
				return fail(a.out, err)
			}
			versions, err := a.engine.History(ctx, sc, st.ID)
			if err != nil {
				return fail(a.out, err)
			}
			views := make([]VersionView, len(versions))
			for i, v := range versions {
				views[i] = VersionView{ChangedAt: v.ChangedAt, From: string(v.OldStatus), To: string(v.NewStatus), Note: v.Note}
			}
			return a.out.Render(views, func(w io.Writer) {
				printStep(w, stepView(a.engine.Checklist(), st))
				if len(views) == 0 {
					fmt.Fprintln(w, "  no changes")
					return
				}
				for _, v := range views {
					line := fmt.Sprintf("  %s  %s → %s", v.ChangedAt.Local().Format(time.DateTime), v.From, v.To)
					if v.Note != "" {
						line += "  " + v.Note
					}
					fmt.Fprintln(w, line)
				}
			})
		},
	}
}
