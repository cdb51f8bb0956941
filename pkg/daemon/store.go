package daemon

import (
	"fmt"
	"maps"
	"slices"

	"gitlab.com/tinyland/lab/widgetd/pkg/value"
	"gitlab.com/tinyland/lab/widgetd/pkg/widgets"
)

// Store holds the current value of every variable and, per open window, the
// variables its widget tree references. It is owned by the dispatcher and is
// not safe for concurrent use.
type Store struct {
	values map[value.VarName]value.Value
	refs   map[value.WindowName][]value.VarName
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		values: make(map[value.VarName]value.Value),
		refs:   make(map[value.WindowName][]value.VarName),
	}
}

// Get returns the current value of name.
func (s *Store) Get(name value.VarName) (value.Value, error) {
	v, ok := s.values[name]
	if !ok {
		return value.Value{}, fmt.Errorf("variable %q: %w", name, ErrNotFound)
	}
	return v, nil
}

// Set updates name. It fails with ErrNotFound when no open window references
// name, so late values from a producer that is being stopped are dropped.
func (s *Store) Set(name value.VarName, v value.Value) error {
	if !s.isReferenced(name) {
		return fmt.Errorf("variable %q is not used by any open window: %w", name, ErrNotFound)
	}
	s.values[name] = v
	return nil
}

func (s *Store) isReferenced(name value.VarName) bool {
	for _, vars := range s.refs {
		if _, found := slices.BinarySearch(vars, name); found {
			return true
		}
	}
	return false
}

// ReferencedBy returns the variables used by window, sorted. The result is
// empty for a window that is not tracked.
func (s *Store) ReferencedBy(window value.WindowName) []value.VarName {
	return slices.Clone(s.refs[window])
}

// TrackWindow records the variables a freshly built window references.
// Variables without a value are seeded from initial so every referenced
// variable has an entry, even before its producer reports.
func (s *Store) TrackWindow(window value.WindowName, vars []value.VarName, initial func(value.VarName) value.Value) {
	sorted := slices.Clone(vars)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	s.refs[window] = sorted

	for _, name := range sorted {
		if _, ok := s.values[name]; ok {
			continue
		}
		var v value.Value
		if initial != nil {
			v = initial(name)
		}
		s.values[name] = v
	}
}

// ClearWindowState forgets the references cached for window. Values stay in
// the store.
func (s *Store) ClearWindowState(window value.WindowName) {
	delete(s.refs, window)
}

// ClearAllWindowStates forgets the references of every window.
func (s *Store) ClearAllWindowStates() {
	clear(s.refs)
}

// Referenced returns the union of the variables referenced by the given
// windows, sorted.
func (s *Store) Referenced(windows []value.WindowName) []value.VarName {
	seen := make(map[value.VarName]struct{})
	for _, w := range windows {
		for _, name := range s.refs[w] {
			seen[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Variables returns a copy of every known value.
func (s *Store) Variables() map[value.VarName]value.Value {
	return maps.Clone(s.values)
}

// Snapshot returns a copy of the values in the form the widget builder
// consumes.
func (s *Store) Snapshot() widgets.Snapshot {
	snap := make(widgets.Snapshot, len(s.values))
	for k, v := range s.values {
		snap[k] = v
	}
	return snap
}
