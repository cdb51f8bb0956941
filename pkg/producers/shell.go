package producers

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// Shell is the interpreter used for poll and listen commands.
var Shell = "/bin/sh"

// shellCommand runs script under Shell in its own process group, so that
// cancelling ctx kills the script's children along with it.
func shellCommand(ctx context.Context, script string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, Shell, "-c", script)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = time.Second
	return cmd
}

// PollCommand runs a shell command on every tick and parses its trimmed
// stdout into a value.
type PollCommand struct {
	def config.PollVarDefinition
}

// NewPollCommand returns a Poller for a poll variable.
func NewPollCommand(def config.PollVarDefinition) *PollCommand {
	return &PollCommand{def: def}
}

func (p *PollCommand) Variable() value.VarName { return p.def.Name }
func (p *PollCommand) Kind() string { return "poll" }
func (p *PollCommand) Interval() time.Duration { return p.def.Interval }

// Poll runs the command once. A command that runs longer than its interval
// is killed.
func (p *PollCommand) Poll(ctx context.Context) (value.Value, error) {
	if p.def.Interval > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.def.Interval)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := shellCommand(ctx, p.def.Command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return value.Value{}, fmt.Errorf("poll %s: %w: %s", p.def.Name, err, msg)
		}
		return value.Value{}, fmt.Errorf("poll %s: %w", p.def.Name, err)
	}
	return value.Parse(strings.TrimRight(stdout.String(), "\r\n")), nil
}

// ListenCommand runs a long-lived shell command and emits one value per line
// of its output.
type ListenCommand struct {
	def config.ListenVarDefinition
}

// NewListenCommand returns a Producer for a listen variable.
func NewListenCommand(def config.ListenVarDefinition) *ListenCommand {
	return &ListenCommand{def: def}
}

func (l *ListenCommand) Variable() value.VarName { return l.def.Name }
func (l *ListenCommand) Kind() string { return "listen" }

// Run starts the command and blocks until it exits or ctx is done. Cancelling
// ctx kills the process.
func (l *ListenCommand) Run(ctx context.Context, emit func(value.Value)) error {
	cmd := shellCommand(ctx, l.def.Command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.def.Name, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("listen %s: %w", l.def.Name, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		emit(value.Parse(strings.TrimRight(scanner.Text(), "\r")))
	}
	scanErr := scanner.Err()

	err = cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if scanErr != nil {
		return fmt.Errorf("listen %s: %w", l.def.Name, scanErr)
	}
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.def.Name, err)
	}
	return nil
}
