package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/producers"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// Producers is the subsystem that runs variable producers. The dispatcher
// only tells it what to start and stop; values come back through the queue.
type Producers interface {
	Start(name value.VarName) error
	StopForVariable(name value.VarName)
	StopAll()
	SetConfig(cfg *config.Config)
	Statuses() []producers.Status
	// TakeExited drains the variables whose producer returned by itself.
	TakeExited() []value.VarName
}

// Reconciler keeps the set of subscribed variables equal to the set of
// variables referenced by open windows.
type Reconciler struct {
	producers Producers
	active    map[value.VarName]struct{}
	logger    *slog.Logger
}

// NewReconciler returns a Reconciler with no active subscriptions.
func NewReconciler(p Producers, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		producers: p,
		active:    make(map[value.VarName]struct{}),
		logger:    logger,
	}
}

// Reconcile recomputes the wanted subscriptions from the references of the
// open windows, stops the ones no longer wanted and then starts the new
// ones. A variable whose start fails, or whose producer has exited, is
// unsubscribed and started again on the next pass.
func (r *Reconciler) Reconcile(store *Store, open []value.WindowName) error {
	for _, name := range r.producers.TakeExited() {
		if _, ok := r.active[name]; ok {
			r.logger.Info("producer exited, resubscribing", "variable", string(name))
			delete(r.active, name)
		}
	}

	wanted := store.Referenced(open)
	want := make(map[value.VarName]struct{}, len(wanted))
	for _, name := range wanted {
		want[name] = struct{}{}
	}

	for _, name := range r.Active() {
		if _, ok := want[name]; ok {
			continue
		}
		r.logger.Info("stopping producer", "variable", string(name))
		r.producers.StopForVariable(name)
		delete(r.active, name)
	}

	var errs []error
	for _, name := range wanted {
		if _, ok := r.active[name]; ok {
			continue
		}
		if err := r.producers.Start(name); err != nil {
			errs = append(errs, fmt.Errorf("start producer for %q: %w", name, err))
			continue
		}
		r.logger.Debug("subscribed", "variable", string(name))
		r.active[name] = struct{}{}
	}
	return errors.Join(errs...)
}

// Reset forgets every subscription. Call it after Producers.StopAll.
func (r *Reconciler) Reset() {
	clear(r.active)
}

// Active returns the subscribed variables, sorted.
func (r *Reconciler) Active() []value.VarName {
	return slices.Sorted(maps.Keys(r.active))
}

// IsActive reports whether name is subscribed.
func (r *Reconciler) IsActive(name value.VarName) bool {
	_, ok := r.active[name]
	return ok
}
