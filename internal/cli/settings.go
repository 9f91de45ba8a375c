package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/nestcheck/internal/credential"
	"github.com/roach88/nestcheck/internal/notify"
)

// SettingsOptions holds flags for the settings commands.
type SettingsOptions struct {
	*RootOptions
	AdminPin string

	Host       string
	Port       int
	User       string
	Password   string
	SSL        bool
	StartTLS   bool
	Recipients string
	Enable     bool
	Test       bool
}

// SettingsView is the output of settings show and settings email.
type SettingsView struct {
	SaveDir        string   `json:"save_dir"`
	EmailEnabled   bool     `json:"email_enabled"`
	EmailServer    string   `json:"email_server"`
	Recipients     []string `json:"recipients"`
	PinsMustChange bool     `json:"pins_must_change"`
	TestSent       bool     `json:"test_sent,omitempty"`
}

// NewSettingsCommand creates the settings command group.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change runtime settings",
	}
	cmd.AddCommand(newSettingsShowCommand(rootOpts))
	cmd.AddCommand(newSettingsSaveDirCommand(rootOpts))
	cmd.AddCommand(newSettingsEmailCommand(rootOpts))
	return cmd
}

func newSettingsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Show the current settings (passwords are never shown)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()
			return outputSettings(a, cmd, false)
		},
	}
}

func outputSettings(a *app, cmd *cobra.Command, testSent bool) error {
	ctx := commandContext(cmd)
	saveDir, err := a.engine.SaveDir(ctx)
	if err != nil {
		return fail(a.out, err)
	}
	cfg, err := a.engine.NotificationConfig(ctx)
	if err != nil {
		return fail(a.out, err)
	}
	mustChange, err := a.creds.PinsMustChange(ctx)
	if err != nil {
		return fail(a.out, err)
	}

	v := SettingsView{
		SaveDir:        saveDir,
		EmailEnabled:   cfg.Enabled,
		EmailServer:    cfg.String(),
		Recipients:     cfg.Recipients,
		PinsMustChange: mustChange,
		TestSent:       testSent,
	}
	return a.out.Render(v, func(w io.Writer) {
		fmt.Fprintf(w, "Save directory: %s\n", v.SaveDir)
		state := color.New(color.FgHiBlack).Sprint("disabled")
		if v.EmailEnabled {
			state = color.New(color.FgHiGreen).Sprint("enabled")
		}
		fmt.Fprintf(w, "E-mail:         %s (%s)\n", state, v.EmailServer)
		if len(v.Recipients) > 0 {
			fmt.Fprintf(w, "Recipients:     %s\n", strings.Join(v.Recipients, ", "))
		}
		if v.TestSent {
			fmt.Fprintln(w, color.New(color.FgHiGreen).Sprint("✓ test e-mail sent"))
		}
		if v.PinsMustChange {
			fmt.Fprintln(w, color.New(color.FgYellow).Sprint("⚠ default PINs are active"))
		}
	})
}

func newSettingsSaveDirCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "save-dir <dir>",
		Short:         "Change where reports are saved (needs the admin PIN)",
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

			admin, err := a.authorize(ctx, credential.RoleAdmin, opts.AdminPin, "")
			if err != nil {
				return fail(a.out, err)
			}
			dir, err := a.engine.SetSaveDir(ctx, admin, args[0])
			if err != nil {
				return fail(a.out, err)
			}
			return a.out.Render(map[string]string{"save_dir": dir}, func(w io.Writer) {
				fmt.Fprintln(w, color.New(color.FgHiGreen).Sprintf("✓ Reports will be saved to %s", dir))
			})
		},
	}
	cmd.Flags().StringVar(&opts.AdminPin, "admin-pin", "", "admin PIN (required)")
	_ = cmd.MarkFlagRequired("admin-pin")
	return cmd
}

func newSettingsEmailCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "email",
		Short: "Configure report e-mail delivery (needs the admin PIN)",
		Long: `Change the SMTP settings used to e-mail finished reports. Only the flags
given are changed. Enabling delivery requires a complete configuration:
host, port, user, password and at least one recipient.

Example:
  nestcheck settings email --admin-pin 8642 --host smtp.example.com \
    --user shop@example.com --password secret --recipients a@example.com,b@example.com --enable
  nestcheck settings email --admin-pin 8642 --test`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsEmail(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.AdminPin, "admin-pin", "", "admin PIN (required)")
	f.StringVar(&opts.Host, "host", "", "SMTP host")
	f.IntVar(&opts.Port, "port", notify.DefaultPort, "SMTP port")
	f.StringVar(&opts.User, "user", "", "SMTP user, also the sender address")
	f.StringVar(&opts.Password, "password", "", "SMTP password")
	f.BoolVar(&opts.SSL, "ssl", true, "use implicit TLS")
	f.BoolVar(&opts.StartTLS, "starttls", false, "use STARTTLS (when --ssl=false)")
	f.StringVar(&opts.Recipients, "recipients", "", "comma separated recipient addresses")
	f.BoolVar(&opts.Enable, "enable", false, "enable or disable delivery (--enable=false)")
	f.BoolVar(&opts.Test, "test", false, "send a test e-mail after saving")
	_ = cmd.MarkFlagRequired("admin-pin")

	return cmd
}

func runSettingsEmail(opts *SettingsOptions, cmd *cobra.Command) error {
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
	cfg, err := a.engine.NotificationConfig(ctx)
	if err != nil {
		return fail(a.out, err)
	}

	changed := applyEmailFlags(cmd, opts, &cfg)
	if changed {
		if err := a.engine.ConfigureNotification(ctx, admin, cfg); err != nil {
			return fail(a.out, err)
		}
		a.out.VerboseLog("e-mail settings saved: %s", cfg)
	}

	if opts.Test {
		if err := a.engine.TestEmail(ctx, admin); err != nil {
			return fail(a.out, err)
		}
	}
	return outputSettings(a, cmd, opts.Test)
}

// applyEmailFlags copies the flags the user set onto cfg and reports whether
// anything was set.
func applyEmailFlags(cmd *cobra.Command, opts *SettingsOptions, cfg *notify.Config) bool {
	f := cmd.Flags()
	changed := false
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
			changed = true
		}
	}
	set("host", func() { cfg.Host = strings.TrimSpace(opts.Host) })
	set("port", func() { cfg.Port = opts.Port })
	set("user", func() { cfg.User = strings.TrimSpace(opts.User) })
	set("password", func() { cfg.Password = opts.Password })
	set("ssl", func() { cfg.SSL = opts.SSL })
	set("starttls", func() { cfg.StartTLS = opts.StartTLS })
	set("recipients", func() { cfg.Recipients = notify.ParseRecipients(opts.Recipients) })
	set("enable", func() { cfg.Enabled = opts.Enable })
	return changed
}
