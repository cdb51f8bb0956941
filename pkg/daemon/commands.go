package daemon

import (
	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// Command is a request to the dispatcher. The set of commands is closed:
// only the types in this file implement it.
type Command interface {
	// command returns the name used in logs.
	command() string
}

// VarUpdate is one name/value pair of an UpdateVariables command.
type VarUpdate struct {
	Name  value.VarName
	Value value.Value
}

// UpdateVariables sets each variable in order and stops at the first
// failure. Producers submit it without a Reply; the control socket sets one
// so `widgetd update` can report a rejected name.
type UpdateVariables struct {
	Updates []VarUpdate
	Reply   Reply
}

// ReloadConfigAndCss re-reads the configuration and stylesheet from disk and
// applies whichever loaded successfully.
type ReloadConfigAndCss struct {
	Reply Reply
}

// UpdateConfig replaces the configuration and reopens every open window
// against it.
type UpdateConfig struct {
	Config *config.Config
	Reply  Reply
}

// UpdateCss pushes stylesheet text to the display backend.
type UpdateCss struct {
	CSS string
}

// OpenWindow opens (or reopens) a window. Non-nil geometry fields override
// the configured values.
type OpenWindow struct {
	Name   value.WindowName
	Pos    *value.Coords
	Size   *value.Coords
	Anchor *config.AnchorPoint
	Reply  Reply
}

// OpenMany opens every named window, attempting each one even when an
// earlier one fails.
type OpenMany struct {
	Names []value.WindowName
	Reply Reply
}

// CloseWindow closes an open window.
type CloseWindow struct {
	Name  value.WindowName
	Reply Reply
}

// CloseAll closes every open window.
type CloseAll struct{}

// KillServer stops every producer, closes every window and ends the
// dispatch loop.
type KillServer struct{}

// PrintState replies with "name: value" for every known variable.
type PrintState struct {
	Reply Reply
}

// PrintWindows replies with every configured window, open ones marked "*".
type PrintWindows struct {
	Reply Reply
}

// PrintDebug replies with a JSON dump of the dispatcher state.
type PrintDebug struct {
	Reply Reply
}

// NoOp does nothing.
type NoOp struct{}

func (UpdateVariables) command() string    { return "update-variables" }
func (ReloadConfigAndCss) command() string { return "reload" }
func (UpdateConfig) command() string       { return "update-config" }
func (UpdateCss) command() string          { return "update-css" }
func (OpenWindow) command() string         { return "open" }
func (OpenMany) command() string           { return "open-many" }
func (CloseWindow) command() string        { return "close" }
func (CloseAll) command() string           { return "close-all" }
func (KillServer) command() string         { return "kill" }
func (PrintState) command() string         { return "state" }
func (PrintWindows) command() string       { return "windows" }
func (PrintDebug) command() string         { return "debug" }
func (NoOp) command() string               { return "noop" }

// Response is the result of a command that carries a Reply.
type Response struct {
	OK   bool
	Text string
}

// Success returns a successful response with optional output text.
func Success(text string) Response { return Response{OK: true, Text: text} }

// Failure returns a failed response carrying a human-readable message.
func Failure(text string) Response { return Response{Text: text} }

func (r Response) String() string {
	if r.OK {
		return "success: " + r.Text
	}
	return "failure: " + r.Text
}

// Reply is the one-shot channel a command's response is written to. The
// dispatcher writes at most once and never blocks on it.
type Reply chan<- Response

// NewReply returns a Reply and the channel its response arrives on.
func NewReply() (Reply, <-chan Response) {
	ch := make(chan Response, 1)
	return ch, ch
}

// send delivers resp without blocking. A nil Reply discards the response.
func (r Reply) send(resp Response) error {
	if r == nil {
		return nil
	}
	select {
	case r <- resp:
		return nil
	default:
		return ErrSendFailure
	}
}

// replyOf returns the Reply carried by cmd, if any.
func replyOf(cmd Command) Reply {
	switch c := cmd.(type) {
	case UpdateVariables:
		return c.Reply
	case ReloadConfigAndCss:
		return c.Reply
	case UpdateConfig:
		return c.Reply
	case OpenWindow:
		return c.Reply
	case OpenMany:
		return c.Reply
	case CloseWindow:
		return c.Reply
	case PrintState:
		return c.Reply
	case PrintWindows:
		return c.Reply
	case PrintDebug:
		return c.Reply
	}
	return nil
}
