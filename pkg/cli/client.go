package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/daemon"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// call sends req to the daemon named by opts and prints its output.
func call(opts *RootOptions, cmd *cobra.Command, req daemon.IPCRequest) error {
	out, err := callOutput(opts, req)
	if err != nil {
		return err
	}
	printOutput(cmd.OutOrStdout(), out)
	return nil
}

func callOutput(opts *RootOptions, req daemon.IPCRequest) (string, error) {
	client := daemon.NewIPCClient(opts.paths().SocketPath)
	resp, err := client.Send(req)
	if err != nil {
		return "", &ExitError{Code: ExitCommandError, Err: err}
	}
	if !resp.OK {
		return "", &ExitError{Code: ExitFailure, Err: fmt.Errorf("%s", resp.Error)}
	}
	return resp.Output, nil
}

// simpleCommand builds a command that sends one argument-less action.
func simpleCommand(opts *RootOptions, use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(opts, cmd, daemon.IPCRequest{Action: action})
		},
	}
}

// NewOpenCommand creates the open command.
func NewOpenCommand(rootOpts *RootOptions) *cobra.Command {
	var pos, size, anchor string

	cmd := &cobra.Command{
		Use:   "open <window>",
		Short: "Open a window, reopening it if it is already open",
		Long: `Open a configured window.

Geometry flags override the configured values for this instance only; they
are kept when the configuration is reloaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := openRequest(args[0], pos, size, anchor)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Err: err}
			}
			return call(rootOpts, cmd, req)
		},
	}

	cmd.Flags().StringVar(&pos, "pos", "", "offset from the anchor, e.g. 10x20 or 5%x0")
	cmd.Flags().StringVar(&size, "size", "", "window size, e.g. 300x40 or 100%x30px")
	cmd.Flags().StringVar(&anchor, "anchor", "", `anchor point, e.g. "top right"`)

	return cmd
}

func openRequest(window, pos, size, anchor string) (daemon.IPCRequest, error) {
	req := daemon.IPCRequest{Action: daemon.ActionOpen, Window: window}
	if pos != "" {
		c, err := value.ParseCoords(pos)
		if err != nil {
			return req, fmt.Errorf("--pos: %w", err)
		}
		req.Pos = &c
	}
	if size != "" {
		c, err := value.ParseCoords(size)
		if err != nil {
			return req, fmt.Errorf("--size: %w", err)
		}
		req.Size = &c
	}
	if anchor != "" {
		if _, err := config.ParseAnchorPoint(anchor); err != nil {
			return req, fmt.Errorf("--anchor: %w", err)
		}
		req.Anchor = anchor
	}
	return req, nil
}

// NewOpenManyCommand creates the open-many command.
func NewOpenManyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open-many <window>...",
		Short: "Open several windows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(rootOpts, cmd, daemon.IPCRequest{Action: daemon.ActionOpenMany, Windows: args})
		},
	}
}

// NewCloseCommand creates the close command.
func NewCloseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "close <window>",
		Short: "Close an open window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(rootOpts, cmd, daemon.IPCRequest{Action: daemon.ActionClose, Window: args[0]})
		},
	}
}

// NewCloseAllCommand creates the close-all command.
func NewCloseAllCommand(rootOpts *RootOptions) *cobra.Command {
	return simpleCommand(rootOpts, "close-all", "Close every open window", daemon.ActionCloseAll)
}

// NewReloadCommand creates the reload command.
func NewReloadCommand(rootOpts *RootOptions) *cobra.Command {
	return simpleCommand(rootOpts, "reload", "Re-read the configuration and stylesheet", daemon.ActionReload)
}

// NewKillCommand creates the kill command.
func NewKillCommand(rootOpts *RootOptions) *cobra.Command {
	return simpleCommand(rootOpts, "kill", "Stop the daemon", daemon.ActionKill)
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	return simpleCommand(rootOpts, "state", "Print every variable and its value", daemon.ActionState)
}

// NewWindowsCommand creates the windows command.
func NewWindowsCommand(rootOpts *RootOptions) *cobra.Command {
	return simpleCommand(rootOpts, "windows", "List configured windows; open ones are marked *", daemon.ActionWindows)
}

// NewPingCommand creates the ping command.
func NewPingCommand(rootOpts *RootOptions) *cobra.Command {
	return simpleCommand(rootOpts, "ping", "Check that the daemon is running", daemon.ActionPing)
}

// NewDebugCommand creates the debug command.
func NewDebugCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Dump the daemon's internal state as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := callOutput(rootOpts, daemon.IPCRequest{Action: daemon.ActionDebug})
			if err != nil {
				return err
			}
			if out == "" {
				printOutput(cmd.OutOrStdout(), text)
				return nil
			}

			var snap daemon.DebugSnapshot
			if err := json.Unmarshal([]byte(text), &snap); err != nil {
				return fmt.Errorf("decode debug output: %w", err)
			}
			if err := daemon.WriteDebugFile(out, &snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the snapshot to a file instead of stdout")

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <name>=<value>...",
		Short: "Set variables used by open windows",
		Long: `Set one or more variables. Values are parsed the same way producer
output is: numbers (with optional px or % unit), true/false, JSON lists and
objects, and plain strings otherwise.

Updating a variable no open window uses is an error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseAssignments(args)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Err: err}
			}
			return call(rootOpts, cmd, daemon.IPCRequest{Action: daemon.ActionUpdate, Vars: vars})
		},
	}
}

// parseAssignments turns name=value arguments into update vars in the
// order given. The daemon applies them in that order, so a later duplicate
// wins.
func parseAssignments(args []string) ([]daemon.IPCVar, error) {
	vars := make([]daemon.IPCVar, 0, len(args))
	for _, arg := range args {
		name, val, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected name=value", arg)
		}
		vars = append(vars, daemon.IPCVar{Name: strings.TrimSpace(name), Value: val})
	}
	return vars, nil
}
