package daemon

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/display"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
	"gitlab.com/tinyland/lab/widgetd/pkg/widgets"
)

// Overrides are the geometry fields given on the command line when a window
// was opened. They are kept so a config reload can reopen the window the
// same way.
type Overrides struct {
	Pos    *value.Coords
	Size   *value.Coords
	Anchor *config.AnchorPoint
}

// Instance is one open window. It is never modified after Open; a changed
// definition means closing and reopening.
type Instance struct {
	Name       value.WindowName
	Definition config.WindowDefinition
	Overrides  Overrides
	Tree       *widgets.Tree
	Placement  display.Placement
	Handle     display.Handle
	OpenedAt   time.Time
}

// WindowStatus is one line of Registry.List.
type WindowStatus struct {
	Name value.WindowName
	Open bool
}

// Registry maps window names to open instances. It is owned by the
// dispatcher and is not safe for concurrent use.
type Registry struct {
	backend display.Backend
	builder widgets.Builder
	windows map[value.WindowName]*Instance
}

// NewRegistry returns an empty registry that builds trees with builder and
// shows them through backend.
func NewRegistry(backend display.Backend, builder widgets.Builder) *Registry {
	return &Registry{
		backend: backend,
		builder: builder,
		windows: make(map[value.WindowName]*Instance),
	}
}

// Open builds the widget tree for def against vars and shows it. An
// instance already open under the same name is closed first, so a name
// never has two native windows.
func (r *Registry) Open(cfg *config.Config, vars widgets.Snapshot, def config.WindowDefinition, ov Overrides) (*Instance, error) {
	if _, ok := r.windows[def.Name]; ok {
		if err := r.Close(def.Name); err != nil {
			return nil, err
		}
	}

	tree, err := r.builder.Build(cfg, vars, def.Name, def)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailure, err)
	}

	placement := display.PlacementFor(r.backend, def)
	h, err := r.backend.Open(tree, placement)
	if err != nil {
		return nil, fmt.Errorf("window %q: %w: %w", def.Name, ErrBuildFailure, err)
	}
	if err := r.backend.SetStacking(h, def.Stacking); err != nil {
		_ = r.backend.Close(h)
		return nil, fmt.Errorf("window %q: %w: %w", def.Name, ErrBuildFailure, err)
	}

	inst := &Instance{
		Name:       def.Name,
		Definition: def,
		Overrides:  ov,
		Tree:       tree,
		Placement:  placement,
		Handle:     h,
		OpenedAt:   time.Now(),
	}
	if err := r.add(inst); err != nil {
		_ = r.backend.Close(h)
		return nil, err
	}
	return inst, nil
}

func (r *Registry) add(inst *Instance) error {
	if _, ok := r.windows[inst.Name]; ok {
		return fmt.Errorf("window %q: %w", inst.Name, ErrAlreadyOpen)
	}
	r.windows[inst.Name] = inst
	return nil
}

// Close destroys the native window and removes the entry. The entry is
// removed even when the backend reports an error.
func (r *Registry) Close(name value.WindowName) error {
	inst, ok := r.windows[name]
	if !ok {
		return fmt.Errorf("window %q: %w", name, ErrNotOpen)
	}
	delete(r.windows, name)
	if err := r.backend.Close(inst.Handle); err != nil {
		return fmt.Errorf("close window %q: %w", name, err)
	}
	return nil
}

// CloseAll closes every open window.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, name := range r.Names() {
		errs = append(errs, r.Close(name))
	}
	return errors.Join(errs...)
}

// Get returns the open instance for name.
func (r *Registry) Get(name value.WindowName) (*Instance, bool) {
	inst, ok := r.windows[name]
	return inst, ok
}

// IsOpen reports whether name is open.
func (r *Registry) IsOpen(name value.WindowName) bool {
	_, ok := r.windows[name]
	return ok
}

// Names returns the open window names, sorted.
func (r *Registry) Names() []value.WindowName {
	return slices.Sorted(maps.Keys(r.windows))
}

// List returns every window configured in cfg plus any open window cfg no
// longer defines, sorted by name.
func (r *Registry) List(cfg *config.Config) []WindowStatus {
	names := make(map[value.WindowName]struct{}, len(cfg.Windows)+len(r.windows))
	for name := range cfg.Windows {
		names[name] = struct{}{}
	}
	for name := range r.windows {
		names[name] = struct{}{}
	}

	out := make([]WindowStatus, 0, len(names))
	for _, name := range slices.Sorted(maps.Keys(names)) {
		out = append(out, WindowStatus{Name: name, Open: r.IsOpen(name)})
	}
	return out
}
