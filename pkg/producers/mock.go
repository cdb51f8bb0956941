package producers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// MockPoller implements Poller for testing. It returns a configurable value
// and error and counts how many times Poll has been called.
type MockPoller struct {
	name     value.VarName
	interval time.Duration

	mu  sync.RWMutex
	v   value.Value
	err error

	callCount atomic.Int64

	// PollFunc, if set, overrides the configured value and error.
	PollFunc func(ctx context.Context) (value.Value, error)
}

// MockPollerOption configures a MockPoller.
type MockPollerOption func(*MockPoller)

// WithValue sets the value returned by Poll.
func WithValue(v value.Value) MockPollerOption {
	return func(m *MockPoller) { m.v = v }
}

// WithError sets the error returned by Poll.
func WithError(err error) MockPollerOption {
	return func(m *MockPoller) { m.err = err }
}

// WithPollFunc sets a custom function for Poll.
func WithPollFunc(fn func(ctx context.Context) (value.Value, error)) MockPollerOption {
	return func(m *MockPoller) { m.PollFunc = fn }
}

// NewMockPoller creates a mock poller for name.
func NewMockPoller(name value.VarName, interval time.Duration, opts ...MockPollerOption) *MockPoller {
	m := &MockPoller{name: name, interval: interval}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockPoller) Variable() value.VarName { return m.name }
func (m *MockPoller) Kind() string { return "mock" }
func (m *MockPoller) Interval() time.Duration { return m.interval }

// SetValue updates the returned value (thread-safe).
func (m *MockPoller) SetValue(v value.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v = v
}

// SetError updates the returned error (thread-safe).
func (m *MockPoller) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Poll increments the call counter and returns the configured value and
// error, or delegates to PollFunc if set.
func (m *MockPoller) Poll(ctx context.Context) (value.Value, error) {
	m.callCount.Add(1)

	if m.PollFunc != nil {
		return m.PollFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v, m.err
}

// CallCount returns how many times Poll has been called.
func (m *MockPoller) CallCount() int64 {
	return m.callCount.Load()
}

// MockFactory returns a Factory that serves the given pollers by variable
// name and reports no producer for anything else.
func MockFactory(pollers ...*MockPoller) Factory {
	byName := make(map[value.VarName]*MockPoller, len(pollers))
	for _, p := range pollers {
		byName[p.name] = p
	}
	return func(_ *config.Config, name value.VarName, onError func(error)) (Producer, bool) {
		p, ok := byName[name]
		if !ok {
			return nil, false
		}
		return AsProducer(p, onError), true
	}
}
