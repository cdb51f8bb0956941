// Package cli implements the widgetd command line: the daemon itself and
// the client commands that talk to it over the control socket.
package cli

import (
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigDir string
	Socket    string
	Verbose   bool
}

// paths resolves runtime paths, honouring an explicit --socket.
func (o *RootOptions) paths() config.Paths {
	p := config.ResolvePaths(o.ConfigDir)
	if o.Socket != "" {
		p.SocketPath = o.Socket
	}
	return p
}

// NewRootCommand creates the root command for the widgetd CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "widgetd",
		Short: "widgetd - declarative desktop widgets",
		Long: `widgetd keeps declaratively configured widget windows up to date.

Run "widgetd daemon" once, then open, close and inspect windows with the
client commands. Variables referenced by open windows are fed by poll,
listen and sys producers that only run while a window uses them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigDir, "config", "c", "", "config directory (default: $XDG_CONFIG_HOME/widgetd)")
	cmd.PersistentFlags().StringVar(&opts.Socket, "socket", "", "control socket path (default: derived from the config directory)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewDaemonCommand(opts))
	cmd.AddCommand(NewOpenCommand(opts))
	cmd.AddCommand(NewOpenManyCommand(opts))
	cmd.AddCommand(NewCloseCommand(opts))
	cmd.AddCommand(NewCloseAllCommand(opts))
	cmd.AddCommand(NewReloadCommand(opts))
	cmd.AddCommand(NewKillCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewWindowsCommand(opts))
	cmd.AddCommand(NewDebugCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewPingCommand(opts))

	return cmd
}
