package producers

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// Factory builds the producer for a variable, or reports false when the
// configuration defines no producer for it. onError receives non-fatal
// errors such as a failed poll.
type Factory func(cfg *config.Config, name value.VarName, onError func(error)) (Producer, bool)

// DefaultFactory builds poll, listen and sys producers from cfg.
func DefaultFactory(cfg *config.Config, name value.VarName, onError func(error)) (Producer, bool) {
	if def, ok := cfg.PollVars[name]; ok {
		return AsProducer(NewPollCommand(def), onError), true
	}
	if def, ok := cfg.ListenVars[name]; ok {
		return NewListenCommand(def), true
	}
	if def, ok := cfg.SysVars[name]; ok {
		return AsProducer(NewSysMetrics(def), onError), true
	}
	return nil, false
}

// Handler starts and stops producers on behalf of the daemon. At most one
// producer runs per variable.
type Handler struct {
	mu      sync.Mutex
	cfg     *config.Config
	sink    Sink
	factory Factory
	logger  *slog.Logger
	running map[value.VarName]*run
	exited  map[value.VarName]struct{}

	statuses *Registry
	wg       sync.WaitGroup
}

// run is one started producer. Its address identifies the run, so a
// goroutine that outlives a stop and restart cannot remove its successor.
type run struct {
	cancel context.CancelFunc
}

// Option configures a Handler.
type Option func(*Handler)

// WithFactory replaces DefaultFactory.
func WithFactory(f Factory) Option {
	return func(h *Handler) { h.factory = f }
}

// WithLogger sets the logger used for producer failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler returns a Handler that builds producers from cfg and delivers
// their values to sink.
func NewHandler(cfg *config.Config, sink Sink, opts ...Option) *Handler {
	if cfg == nil {
		cfg = config.Empty()
	}
	h := &Handler{
		cfg:      cfg,
		sink:     sink,
		factory:  DefaultFactory,
		logger:   slog.Default(),
		running:  make(map[value.VarName]*run),
		exited:   make(map[value.VarName]struct{}),
		statuses: NewRegistry(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetConfig replaces the producer definitions. Running producers keep their
// old definition until they are stopped.
func (h *Handler) SetConfig(cfg *config.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
}

// Start launches the producer for name. Starting a variable that is already
// running, or that has no producer definition, succeeds without doing
// anything.
func (h *Handler) Start(name value.VarName) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.running[name]; ok {
		return nil
	}

	logger := h.logger.With("variable", string(name))
	var status *Status
	onError := func(err error) {
		logger.Warn("producer error", "error", err)
		if status != nil {
			h.statuses.update(status, func(s *Status) {
				s.ErrorCount++
				s.LastError = err.Error()
			})
		}
	}

	p, ok := h.factory(h.cfg, name, onError)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel}
	h.running[name] = r
	delete(h.exited, name)
	status = h.statuses.begin(name, p.Kind())
	logger.Debug("producer started", "kind", p.Kind())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		err := p.Run(ctx, func(v value.Value) {
			if ctx.Err() != nil {
				return
			}
			h.statuses.update(status, func(s *Status) {
				s.EmitCount++
				s.LastEmit = time.Now()
			})
			h.sink(name, v)
		})

		h.statuses.update(status, func(s *Status) { s.Running = false })
		if err != nil {
			onError(err)
		} else if ctx.Err() == nil {
			logger.Info("producer exited", "kind", p.Kind())
		}

		h.mu.Lock()
		if h.running[name] == r {
			delete(h.running, name)
			h.exited[name] = struct{}{}
		}
		h.mu.Unlock()
		cancel()
	}()
	return nil
}

// StopForVariable cancels the producer for name. Stopping a variable that
// is not running is a no-op.
func (h *Handler) StopForVariable(name value.VarName) {
	h.mu.Lock()
	r, ok := h.running[name]
	delete(h.running, name)
	delete(h.exited, name)
	h.mu.Unlock()

	if !ok {
		return
	}
	r.cancel()
	h.statuses.Remove(name)
	h.logger.Debug("producer stopped", "variable", string(name))
}

// StopAll cancels every running producer.
func (h *Handler) StopAll() {
	h.mu.Lock()
	running := h.running
	h.running = make(map[value.VarName]*run)
	clear(h.exited)
	h.mu.Unlock()

	for name, r := range running {
		r.cancel()
		h.statuses.Remove(name)
	}
}

// TakeExited returns the variables whose producer returned on its own since
// the last call, sorted, and forgets them. Such a variable is no longer
// running and the next Start launches it again.
func (h *Handler) TakeExited() []value.VarName {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]value.VarName, 0, len(h.exited))
	for name := range h.exited {
		names = append(names, name)
	}
	clear(h.exited)
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Running returns the variables whose producer is still running, sorted.
func (h *Handler) Running() []value.VarName {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]value.VarName, 0, len(h.running))
	for name := range h.running {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Statuses returns the status of every started producer.
func (h *Handler) Statuses() []Status {
	return h.statuses.All()
}

// Wait blocks until every producer goroutine has returned. Call it after
// StopAll during shutdown.
func (h *Handler) Wait() {
	h.wg.Wait()
}
