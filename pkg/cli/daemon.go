package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/daemon"
	"gitlab.com/tinyland/lab/widgetd/pkg/display"
	"gitlab.com/tinyland/lab/widgetd/pkg/producers"
	"gitlab.com/tinyland/lab/widgetd/pkg/style"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// DaemonOptions holds flags for the daemon command.
type DaemonOptions struct {
	Backend string // "terminal" | "none"
	NoWatch bool
	Open    []string
}

// NewDaemonCommand creates the daemon command.
func NewDaemonCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DaemonOptions{}

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the widget daemon in the foreground",
		Long: `Run the widget daemon.

The daemon owns every window and variable. It listens on a control socket
for client commands and reloads when the configuration or stylesheet
changes on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, rootOpts, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.Backend, "backend", "terminal", "display backend (terminal|none)")
	cmd.Flags().BoolVar(&opts.NoWatch, "no-watch", false, "do not reload when config files change")
	cmd.Flags().StringSliceVar(&opts.Open, "open", nil, "windows to open at startup")

	return cmd
}

func newBackend(name string, out io.Writer) (display.Backend, error) {
	switch name {
	case "terminal", "":
		return display.NewTerminal(display.TerminalOptions{Out: out}), nil
	case "none":
		return display.NewRecorder(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q: must be terminal or none", name)
	}
}

// newLogger writes to both stderr and the log file.
func newLogger(stderr io.Writer, logPath string, verbose bool) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(io.MultiWriter(stderr, logFile), &slog.HandlerOptions{
		Level: level,
	}))
	return logger, logFile, nil
}

func runDaemon(ctx context.Context, rootOpts *RootOptions, opts *DaemonOptions, stdout, stderr io.Writer) error {
	paths := rootOpts.paths()

	backend, err := newBackend(opts.Backend, stdout)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Err: err}
	}

	logger, logFile, err := newLogger(stderr, paths.LogFile, rootOpts.Verbose)
	if err != nil {
		return err
	}
	defer logFile.Close()

	pidFile, err := daemon.AcquirePIDFile(paths.PIDFile)
	if err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return &ExitError{Code: ExitCommandError, Err: err}
		}
		return err
	}
	defer func() {
		if err := pidFile.Release(); err != nil {
			logger.Warn("failed to remove PID file", "error", err)
		}
	}()

	cfg, err := config.ReadFromFileOrEmpty(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	css, err := style.ParseFromFileOrEmpty(paths.StyleFile)
	if err != nil {
		logger.Warn("stylesheet not loaded", "path", paths.StyleFile, "error", err)
		css = ""
	}

	queue := daemon.NewQueue()
	handler := producers.NewHandler(cfg, queue.Sink(), producers.WithLogger(logger))
	app := daemon.New(cfg, daemon.Options{
		ConfigPath: paths.ConfigFile,
		StylePath:  paths.StyleFile,
		Backend:    backend,
		Producers:  handler,
		Queue:      queue,
		Logger:     logger,
	})

	queue.Submit(daemon.UpdateCss{CSS: css})
	for _, name := range opts.Open {
		queue.Submit(daemon.OpenWindow{Name: value.WindowName(name)})
	}

	srv := daemon.NewIPCServer(paths.SocketPath, queue, logger)
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	if !opts.NoWatch {
		if err := daemon.WatchFiles(ctx, queue, logger, paths.ConfigFile, paths.StyleFile); err != nil {
			logger.Warn("config watcher disabled", "error", err)
		}
	}

	logger.Info("daemon started",
		"config", paths.ConfigFile,
		"socket", paths.SocketPath,
		"pid", os.Getpid(),
	)
	err = app.Run(ctx)
	handler.Wait()
	logger.Info("daemon stopped")
	return err
}
