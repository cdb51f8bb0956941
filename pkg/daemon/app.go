// Package daemon is widgetd's state owner. A single dispatcher goroutine
// drains the command queue and is the only writer of the variable store,
// the window registry and the subscription set. Everything else (producers,
// the control socket, the config watcher) talks to it by submitting
// commands.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/display"
	"gitlab.com/tinyland/lab/widgetd/pkg/style"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
	"gitlab.com/tinyland/lab/widgetd/pkg/widgets"
)

// State is the dispatcher's state.
type State int32

const (
	Idle State = iota
	Processing
)

func (s State) String() string {
	if s == Processing {
		return "processing"
	}
	return "idle"
}

// Options configures an App.
type Options struct {
	// ConfigPath and StylePath are re-read by ReloadConfigAndCss.
	ConfigPath string
	StylePath  string

	Backend   display.Backend
	Producers Producers

	// Optional. Defaults: widgets.NewBuilder, NewQueue, slog.Default,
	// config.ReadFromFile and style.ParseFromFile.
	Builder    widgets.Builder
	Queue      *Queue
	Logger     *slog.Logger
	LoadConfig func(path string) (*config.Config, error)
	LoadStyle  func(path string) (string, error)
}

// App is the command dispatcher and the state it owns.
type App struct {
	cfg       *config.Config
	css       string
	store     *Store
	windows   *Registry
	reconcile *Reconciler
	producers Producers
	backend   display.Backend
	queue     *Queue
	logger    *slog.Logger

	configPath string
	stylePath  string
	loadConfig func(string) (*config.Config, error)
	loadStyle  func(string) (string, error)

	state    atomic.Int32
	started  time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// New creates an App holding cfg. Call Run to start dispatching.
func New(cfg *config.Config, opts Options) *App {
	if cfg == nil {
		cfg = config.Empty()
	}
	if opts.Builder == nil {
		opts.Builder = widgets.NewBuilder()
	}
	if opts.Queue == nil {
		opts.Queue = NewQueue()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.ReadFromFile
	}
	if opts.LoadStyle == nil {
		opts.LoadStyle = style.ParseFromFile
	}

	return &App{
		cfg:        cfg,
		store:      NewStore(),
		windows:    NewRegistry(opts.Backend, opts.Builder),
		reconcile:  NewReconciler(opts.Producers, opts.Logger),
		producers:  opts.Producers,
		backend:    opts.Backend,
		queue:      opts.Queue,
		logger:     opts.Logger,
		configPath: opts.ConfigPath,
		stylePath:  opts.StylePath,
		loadConfig: opts.LoadConfig,
		loadStyle:  opts.LoadStyle,
		started:    time.Now(),
		done:       make(chan struct{}),
	}
}

// Queue returns the queue the dispatcher drains.
func (a *App) Queue() *Queue { return a.queue }

// Submit enqueues cmd. It is safe to call from any goroutine.
func (a *App) Submit(cmd Command) bool { return a.queue.Submit(cmd) }

// State reports whether the dispatcher is handling a command.
func (a *App) State() State { return State(a.state.Load()) }

// Done is closed once KillServer has been handled.
func (a *App) Done() <-chan struct{} { return a.done }

// Run dispatches queued commands in order until KillServer is handled or ctx
// is cancelled. Cancelling ctx shuts down the same way KillServer does.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("dispatcher started", "windows", len(a.cfg.Windows))
	defer a.queue.Close()

	for {
		for {
			cmd, ok := a.queue.TryDequeue()
			if !ok {
				break
			}
			_ = a.Handle(cmd)
			if a.stopped() {
				a.drain()
				return nil
			}
		}

		select {
		case <-ctx.Done():
			_ = a.Handle(KillServer{})
			a.drain()
			return nil
		case _, ok := <-a.queue.Wait():
			if !ok {
				return nil
			}
		}
	}
}

// drain answers every command still queued after shutdown.
func (a *App) drain() {
	a.queue.Close()
	for {
		cmd, ok := a.queue.TryDequeue()
		if !ok {
			return
		}
		_ = replyOf(cmd).send(Failure("daemon is shutting down"))
	}
}

func (a *App) stopped() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Handle runs one command to completion and writes its response, if the
// command carries a Reply. It must only be called from the dispatcher
// goroutine. The returned error is the failure that was logged and
// reported, or nil.
func (a *App) Handle(cmd Command) error {
	a.state.Store(int32(Processing))
	defer a.state.Store(int32(Idle))

	a.logger.Debug("handling command", "command", cmd.command())
	text, err := a.dispatch(cmd)
	if err != nil {
		a.logger.Warn("command failed", "command", cmd.command(), "error", err)
	}

	resp := Success(text)
	if err != nil {
		resp = Failure(err.Error())
	}
	if sendErr := replyOf(cmd).send(resp); sendErr != nil {
		a.logger.Warn("could not deliver response", "command", cmd.command(), "error", sendErr)
	}
	return err
}

func (a *App) dispatch(cmd Command) (string, error) {
	switch c := cmd.(type) {
	case NoOp:
		return "", nil
	case UpdateVariables:
		return "", a.updateVariables(c.Updates)
	case ReloadConfigAndCss:
		return "", a.reloadConfigAndCss()
	case UpdateConfig:
		return "", a.updateConfig(c.Config)
	case UpdateCss:
		return "", a.updateCss(c.CSS)
	case OpenWindow:
		ov := Overrides{Pos: c.Pos, Size: c.Size, Anchor: c.Anchor}
		return "", errors.Join(a.openWindow(c.Name, ov), a.reconcileNow())
	case OpenMany:
		return "", a.openMany(c)
	case CloseWindow:
		return "", a.closeWindow(c.Name)
	case CloseAll:
		return "", a.closeAll()
	case KillServer:
		return "", a.kill()
	case PrintState:
		return a.printState(), nil
	case PrintWindows:
		return a.printWindows(), nil
	case PrintDebug:
		return a.printDebug()
	default:
		return "", fmt.Errorf("unhandled command %T", cmd)
	}
}

func (a *App) reconcileNow() error {
	return a.reconcile.Reconcile(a.store, a.windows.Names())
}

func (a *App) updateVariables(updates []VarUpdate) error {
	for _, u := range updates {
		if err := a.store.Set(u.Name, u.Value); err != nil {
			return err
		}
	}
	return nil
}

// reloadConfigAndCss applies the config and the stylesheet independently;
// a broken stylesheet does not keep a good config from loading.
func (a *App) reloadConfigAndCss() error {
	var errs []error

	if cfg, err := a.loadConfig(a.configPath); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrParse, err))
	} else if err := a.updateConfig(cfg); err != nil {
		errs = append(errs, err)
	}

	if css, err := a.loadStyle(a.stylePath); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrParse, err))
	} else if err := a.updateCss(css); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// updateConfig swaps the configuration and rebuilds every open window
// against it. Producers are restarted because their definitions may have
// changed. A window that fails to reopen stays closed; the others are
// still reopened.
func (a *App) updateConfig(cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Empty()
	}
	a.logger.Info("reloading windows", "open", len(a.windows.Names()))

	names := a.windows.Names()
	reopen := make(map[value.WindowName]Overrides, len(names))
	for _, name := range names {
		inst, _ := a.windows.Get(name)
		reopen[name] = inst.Overrides
	}

	a.cfg = cfg
	a.producers.SetConfig(cfg)
	a.producers.StopAll()
	a.reconcile.Reset()
	a.store.ClearAllWindowStates()

	var errs []error
	for _, name := range names {
		if err := a.openWindow(name, reopen[name]); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.reconcileNow())
	return errors.Join(errs...)
}

func (a *App) updateCss(css string) error {
	a.css = css
	return a.backend.LoadStylesheet(css)
}

// openWindow closes any instance already open under name and opens it
// again from the current configuration. It does not reconcile; callers run
// one pass afterwards so a reopen never starts a producer twice.
func (a *App) openWindow(name value.WindowName, ov Overrides) error {
	if a.windows.IsOpen(name) {
		a.store.ClearWindowState(name)
		if err := a.windows.Close(name); err != nil {
			a.logger.Warn("closing previous instance", "window", string(name), "error", err)
		}
	}

	def, ok := a.cfg.Window(name)
	if !ok {
		return fmt.Errorf("window %q: %w", name, ErrNotFound)
	}
	def.Geometry = def.Geometry.Override(ov.Anchor, ov.Pos, ov.Size)

	a.logger.Info("opening window", "window", string(name))
	inst, err := a.windows.Open(a.cfg, a.store.Snapshot(), def, ov)
	if err != nil {
		return err
	}
	a.store.TrackWindow(name, inst.Tree.Vars, a.cfg.VarInitial)
	return nil
}

func (a *App) openMany(c OpenMany) error {
	var errs []error
	for _, name := range c.Names {
		err := errors.Join(a.openWindow(name, Overrides{}), a.reconcileNow())
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// closeWindow drops the window's references and reconciles before the
// native window goes away, so producers used only by it stop first.
func (a *App) closeWindow(name value.WindowName) error {
	if !a.windows.IsOpen(name) {
		return fmt.Errorf("window %q: %w", name, ErrNotOpen)
	}
	a.logger.Info("closing window", "window", string(name))
	a.store.ClearWindowState(name)
	rerr := a.reconcileNow()
	return errors.Join(rerr, a.windows.Close(name))
}

func (a *App) closeAll() error {
	a.logger.Info("closing all windows")
	var errs []error
	for _, name := range a.windows.Names() {
		errs = append(errs, a.closeWindow(name))
	}
	return errors.Join(errs...)
}

// kill stops every producer, closes every window and ends the dispatch
// loop.
func (a *App) kill() error {
	a.logger.Info("received kill command, stopping server")
	a.producers.StopAll()
	a.reconcile.Reset()
	a.store.ClearAllWindowStates()
	err := a.windows.CloseAll()
	a.stopOnce.Do(func() { close(a.done) })
	return err
}

func (a *App) printState() string {
	vars := a.store.Variables()
	lines := make([]string, 0, len(vars))
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		lines = append(lines, fmt.Sprintf("%s: %s", name, vars[name]))
	}
	return strings.Join(lines, "\n")
}

func (a *App) printWindows() string {
	list := a.windows.List(a.cfg)
	lines := make([]string, 0, len(list))
	for _, w := range list {
		if w.Open {
			lines = append(lines, "*"+string(w.Name))
		} else {
			lines = append(lines, string(w.Name))
		}
	}
	return strings.Join(lines, "\n")
}
