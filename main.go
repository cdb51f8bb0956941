// widgetd runs declaratively configured desktop widgets.
//
// Usage:
//
//	widgetd daemon [--backend terminal|none] [--open bar,...]
//	widgetd open <window> [--pos WxH] [--size WxH] [--anchor "top right"]
//	widgetd open-many <window>...
//	widgetd close <window>
//	widgetd close-all
//	widgetd update <name>=<value>...
//	widgetd reload
//	widgetd state | windows | debug [--out file]
//	widgetd ping
//	widgetd kill
//
// Global flags:
//
//	-c, --config string   config directory (default: $XDG_CONFIG_HOME/widgetd)
//	    --socket string   control socket path
//	-v, --verbose         verbose output
package main

import (
	"os"

	"gitlab.com/tinyland/lab/widgetd/pkg/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
