package producers

import (
	"sort"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// Registry tracks the status of every running producer. It is safe for
// concurrent use: producer goroutines record emits and errors while the
// dispatcher reads snapshots.
type Registry struct {
	mu       sync.RWMutex
	statuses map[value.VarName]*Status
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{statuses: make(map[value.VarName]*Status)}
}

// begin registers a fresh status for name and returns it. The pointer stays
// valid after Remove so a finishing goroutine never touches its successor.
func (r *Registry) begin(name value.VarName, kind string) *Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Status{Variable: name, Kind: kind, Running: true, StartedAt: time.Now()}
	r.statuses[name] = s
	return s
}

// Remove drops the status for name. It is a no-op if name is unknown.
func (r *Registry) Remove(name value.VarName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.statuses, name)
}

// update applies fn to s under the registry lock.
func (r *Registry) update(s *Status, fn func(s *Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(s)
}

// Status returns a copy of the status for name.
func (r *Registry) Status(name value.VarName) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.statuses[name]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

// All returns a copy of every status, sorted by variable name.
func (r *Registry) All() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Status, 0, len(r.statuses))
	for _, s := range r.statuses {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Variable < result[j].Variable
	})
	return result
}
