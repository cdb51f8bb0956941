// Package producers runs the background sources that feed variables: shell
// commands polled on an interval, long-running listeners that print one value
// per line, and builtin system metrics. Producers never touch the variable
// store; every value they emit goes through a Sink, which the daemon wires to
// its command queue.
package producers

import (
	"context"
	"time"

	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// Producer emits values for a single variable until its context is
// cancelled.
type Producer interface {
	// Variable returns the variable this producer feeds.
	Variable() value.VarName

	// Kind returns a short label for status output ("poll", "listen", "sys").
	Kind() string

	// Run blocks, calling emit for every new value. It returns when ctx is
	// done or when the underlying source ends.
	Run(ctx context.Context, emit func(value.Value)) error
}

// Poller is a producer that computes one value per tick. Poll and sys
// variables are Pollers and are driven by RunPoller.
type Poller interface {
	Variable() value.VarName
	Kind() string
	Interval() time.Duration
	Poll(ctx context.Context) (value.Value, error)
}

// Sink receives every value a producer emits.
type Sink func(name value.VarName, v value.Value)

// Status tracks the runtime state of a single producer.
type Status struct {
	Variable   value.VarName `json:"variable"`
	Kind       string        `json:"kind"`
	Running    bool          `json:"running"`
	StartedAt  time.Time     `json:"started_at"`
	LastEmit   time.Time     `json:"last_emit,omitzero"`
	EmitCount  int64         `json:"emit_count"`
	ErrorCount int64         `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
}

// pollerProducer adapts a Poller to the Producer interface.
type pollerProducer struct {
	Poller
	onError func(error)
}

// AsProducer wraps p so it polls immediately and then on every interval.
// onError, if non-nil, is called for every failed poll.
func AsProducer(p Poller, onError func(error)) Producer {
	return &pollerProducer{Poller: p, onError: onError}
}

func (p *pollerProducer) Run(ctx context.Context, emit func(value.Value)) error {
	return RunPoller(ctx, p.Poller, emit, p.onError)
}

// RunPoller polls p once right away and then every p.Interval() until ctx is
// done. Failed polls are reported to onError and do not stop the loop.
func RunPoller(ctx context.Context, p Poller, emit func(value.Value), onError func(error)) error {
	tick := func() {
		v, err := p.Poll(ctx)
		if err != nil {
			if ctx.Err() == nil && onError != nil {
				onError(err)
			}
			return
		}
		if ctx.Err() == nil {
			emit(v)
		}
	}

	interval := p.Interval()
	if interval <= 0 {
		interval = time.Second
	}

	tick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick()
		}
	}
}
