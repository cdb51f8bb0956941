package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"gitlab.com/tinyland/lab/widgetd/pkg/widgets"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The daemon rejected the command
	ExitCommandError = 2 // Bad arguments or no daemon to talk to
)

// ExitError carries the exit code a command should end with.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// PrintError writes err to w, in red when w is a terminal.
func PrintError(w io.Writer, err error) {
	msg := "error: " + err.Error()
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		msg = lipgloss.NewStyle().Foreground(lipgloss.Color(widgets.ColorError)).Render(msg)
	}
	fmt.Fprintln(w, msg)
}

// printOutput writes non-empty daemon output followed by a newline.
func printOutput(w io.Writer, out string) {
	if out == "" {
		return
	}
	fmt.Fprintln(w, out)
}
