package daemon

import (
	"sync"

	"gitlab.com/tinyland/lab/widgetd/pkg/producers"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// Queue is the dispatcher's inbound command queue: unbounded, FIFO and safe
// for concurrent submitters. A single dispatcher drains it.
type Queue struct {
	mu       sync.Mutex
	commands []Command
	closed   bool
	signal   chan struct{} // buffered, size 1
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{
		commands: make([]Command, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Submit appends cmd to the queue. It returns false once the queue is
// closed.
func (q *Queue) Submit(cmd Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.commands = append(q.commands, cmd)

	// Multiple signals coalesce into one.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the oldest command without blocking.
func (q *Queue) TryDequeue() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return nil, false
	}
	cmd := q.commands[0]
	q.commands[0] = nil
	if len(q.commands) == 1 {
		q.commands = q.commands[:0]
	} else {
		q.commands = q.commands[1:]
	}
	return cmd, true
}

// Wait returns a channel that receives when commands may be available. It
// is closed when the queue is closed.
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}

// Close rejects further submissions and wakes the dispatcher.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Sink returns a producers.Sink that submits every value as a
// fire-and-forget UpdateVariables command.
func (q *Queue) Sink() producers.Sink {
	return func(name value.VarName, v value.Value) {
		q.Submit(UpdateVariables{Updates: []VarUpdate{{Name: name, Value: v}}})
	}
}
