package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/bluewidget/bluewidget/internal/api"
	"github.com/bluewidget/bluewidget/internal/coordinator"
	"github.com/bluewidget/bluewidget/internal/device"
	"github.com/bluewidget/bluewidget/internal/launcher"
	"github.com/bluewidget/bluewidget/internal/tui"
)

// newRootCmd builds the command tree writing output to out.
func newRootCmd(out io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "bluewidget",
		Short:         "Bluetooth quick-settings widget",
		Long:          "bluewidget lists nearby Bluetooth devices, toggles the adapter, and connects, disconnects, or pairs devices without blocking the interface.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running with no subcommand opens the widget.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "daemon config file (default $"+configEnv+" or "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&opts.settingsPath, "settings", "", "settings file (default user config dir)")

	root.AddCommand(
		&cobra.Command{
			Use:   "tui",
			Short: "Open the terminal widget",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runTUI(cmd.Context(), opts)
			},
		},
		newServeCmd(opts),
		newDevicesCmd(opts),
		newPowerCmd(opts),
		newDeviceCommandCmd(opts, device.CommandConnect, "Connect a paired device"),
		newDeviceCommandCmd(opts, device.CommandDisconnect, "Disconnect a device"),
		newDeviceCommandCmd(opts, device.CommandPair, "Pair a device"),
		newSettingsCmd(opts),
		newMigrateCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

// ─── tui ───────────────────────────────────────────────────────────

func runTUI(ctx context.Context, opts *globalOptions) error {
	cfg, log, err := opts.loadConfig(true)
	if err != nil {
		return err
	}
	store, err := opts.settingsStore(cfg, log)
	if err != nil {
		return err
	}

	c, err := startCore(ctx, cfg, log, store, coreOptions{})
	if err != nil {
		return backendError(err)
	}
	defer c.Close()

	sched, err := startSchedule(c)
	if err != nil {
		return err
	}
	defer sched.Stop()

	l := launcher.New()
	l.SetLogger(log.With("component", "launcher"))

	return tui.Run(ctx, tui.Deps{
		Controller: c.coord,
		Foreground: c.fg,
		Settings:   store,
		Launcher:   l,
	})
}

// ─── devices ───────────────────────────────────────────────────────

func newDevicesCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List devices in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := startOneShot(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			records, err := listOnce(cmd.Context(), c)
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), records, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// listOnce requests one enumeration and waits for its snapshot.
func listOnce(ctx context.Context, c *core) ([]device.Record, error) {
	got := make(chan []device.Record, 1)
	c.fg.SubscribeDevices(func(records []device.Record) {
		select {
		case got <- records:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(ctx, waitTimeout(c.cfg))
	defer cancel()
	go c.fg.Run(ctx)

	c.coord.Refresh()
	select {
	case records := <-got:
		return records, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for device list: %w", ctx.Err())
	}
}

func printDevices(w io.Writer, records []device.Record, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No devices")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "NAME", "ADDRESS", "PAIRED", "CONNECTED")
	for _, r := range records {
		t.Row(r.Category.Glyph(), r.Name, r.ID, yesNo(r.Paired), yesNo(r.Connected))
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ─── power / connect / disconnect / pair ───────────────────────────

func newPowerCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "power on|off",
		Short:     "Switch the adapter on or off",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			on := args[0] == "on"
			return runCommand(cmd, opts, func(c *coordinator.Coordinator) error {
				return c.TogglePower(on)
			})
		},
	}
}

func newDeviceCommandCmd(opts *globalOptions, kind device.CommandKind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(kind) + " <address>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := device.NormaliseID(args[0])
			if err != nil {
				return err
			}
			return runCommand(cmd, opts, func(c *coordinator.Coordinator) error {
				return c.Command(kind, id)
			})
		},
	}
}

// runCommand submits one command and waits for its outcome.
func runCommand(cmd *cobra.Command, opts *globalOptions, submit func(*coordinator.Coordinator) error) error {
	results := make(chan coordinator.CommandResult, 1)
	c, err := startOneShot(cmd.Context(), opts, resultSink(results))
	if err != nil {
		return err
	}
	defer c.Close()

	if err := submit(c.coord); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), waitTimeout(c.cfg))
	defer cancel()

	select {
	case res := <-results:
		return printResult(cmd.OutOrStdout(), res)
	case <-ctx.Done():
		return fmt.Errorf("waiting for command: %w", ctx.Err())
	}
}

func printResult(w io.Writer, res coordinator.CommandResult) error {
	if res.Outcome == coordinator.OutcomeFailed || res.Outcome == coordinator.OutcomeDropped {
		if res.Err != nil {
			return res.Err
		}
		return fmt.Errorf("%s %s: %s", res.Op, res.DeviceID, res.Outcome)
	}

	line := string(res.Op)
	if res.DeviceID != "" {
		line += " " + res.DeviceID
	}
	line += ": " + string(res.Outcome)
	if res.Outcome == coordinator.OutcomeSimulated {
		line += " (functionality disabled in settings)"
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// resultSink forwards the command outcome to ch.
type resultSink chan<- coordinator.CommandResult

func (s resultSink) RecordCommand(_ context.Context, res coordinator.CommandResult) error {
	select {
	case s <- res:
	default:
	}
	return nil
}

// startOneShot builds a core for a single request.
func startOneShot(ctx context.Context, opts *globalOptions, sink coordinator.AuditSink) (*core, error) {
	cfg, log, err := opts.loadConfig(false)
	if err != nil {
		return nil, err
	}
	// One result per run; a follow-up refresh would outlive the process.
	cfg.Coordinator.RefreshAfterCommand = false

	store, err := opts.settingsStore(cfg, log)
	if err != nil {
		return nil, err
	}
	c, err := startCore(ctx, cfg, log, store, coreOptions{audit: sink})
	if err != nil {
		return nil, backendError(err)
	}
	return c, nil
}

// ─── settings ──────────────────────────────────────────────────────

func newSettingsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or change the settings file, or open the system Bluetooth manager",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the settings file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, log, err := opts.loadConfig(false)
				if err != nil {
					return err
				}
				store, err := opts.settingsStore(cfg, log)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), store.Path())
				return err
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, log, err := opts.loadConfig(false)
				if err != nil {
					return err
				}
				store, err := opts.settingsStore(cfg, log)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(store.Current())
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one setting and save the file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := opts.loadConfig(false)
				if err != nil {
					return err
				}
				store, err := opts.settingsStore(cfg, log)
				if err != nil {
					return err
				}
				next := store.Current()
				if err := next.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := store.Update(next); err != nil {
					return fmt.Errorf("saving settings: %w", err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
				return err
			},
		},
		&cobra.Command{
			Use:   "launch",
			Short: "Open the system Bluetooth manager",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, log, err := opts.loadConfig(false)
				if err != nil {
					return err
				}
				l := launcher.New()
				l.SetLogger(log.With("component", "launcher"))
				name, err := l.Launch(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "launched", name)
				return err
			},
		},
	)
	return cmd
}

// ─── token ─────────────────────────────────────────────────────────

func newTokenCmd(opts *globalOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with security.jwt.secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			if cfg.Security.JWT.Secret == "" {
				return fmt.Errorf("security.jwt.secret is not set; the API accepts unauthenticated requests")
			}
			token, err := api.IssueToken(subject, cfg.Security.JWT.Secret, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
