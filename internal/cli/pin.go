package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/nestcheck/internal/credential"
	"github.com/roach88/nestcheck/internal/workflow"
)

// PinOptions holds flags for the pin commands.
type PinOptions struct {
	*RootOptions
	AdminPin string
	Role     string
	New      string
	Confirm  string
}

// NewPinCommand creates the pin command group.
func NewPinCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Manage the master and admin PINs",
	}
	cmd.AddCommand(newPinChangeCommand(rootOpts))
	return cmd
}

func newPinChangeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PinOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "change",
		Short: "Change a PIN (needs the admin PIN)",
		Long: `Change the master or admin PIN. The new PIN must be 4 to 8 digits and
is entered twice.

Example:
  nestcheck pin change --admin-pin 8642 --role master --new 1357 --confirm 1357`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPinChange(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AdminPin, "admin-pin", "", "current admin PIN (required)")
	cmd.Flags().StringVar(&opts.Role, "role", string(credential.RoleMaster), "PIN to change (master|admin)")
	cmd.Flags().StringVar(&opts.New, "new", "", "new PIN (required)")
	cmd.Flags().StringVar(&opts.Confirm, "confirm", "", "new PIN again (required)")
	_ = cmd.MarkFlagRequired("admin-pin")
	_ = cmd.MarkFlagRequired("new")
	_ = cmd.MarkFlagRequired("confirm")

	return cmd
}

func runPinChange(opts *PinOptions, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	role := credential.Role(opts.Role)
	if !role.Valid() {
		return fail(a.out, &workflow.ValidationError{Field: "role", Message: fmt.Sprintf("%q is not one of %v", opts.Role, credential.Roles)})
	}
	admin, err := a.authorize(ctx, credential.RoleAdmin, opts.AdminPin, "")
	if err != nil {
		return fail(a.out, err)
	}
	if err := a.creds.ChangePin(ctx, admin, role, opts.New, opts.Confirm); err != nil {
		return fail(a.out, err)
	}

	res := map[string]string{"role": string(role)}
	return a.out.Render(res, func(w io.Writer) {
		fmt.Fprintln(w, color.New(color.FgHiGreen).Sprintf("✓ %s PIN changed", role))
	})
}
