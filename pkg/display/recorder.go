package display

import (
	"fmt"
	"sync"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
	"gitlab.com/tinyland/lab/widgetd/pkg/widgets"
)

// Op is one call recorded by a Recorder.
type Op struct {
	Verb   string
	Window value.WindowName
	Handle Handle
}

func (o Op) String() string { return fmt.Sprintf("%s %s#%d", o.Verb, o.Window, o.Handle) }

// Recorder is an in-memory Backend that records every call. It is used by
// the daemon's tests and by `widgetd daemon --backend=none`.
type Recorder struct {
	mu         sync.Mutex
	next       Handle
	open       map[Handle]RecordedWindow
	ops        []Op
	stylesheet string
	failOpen   map[value.WindowName]error
	monitor    Monitor
}

// RecordedWindow is the state the Recorder keeps per open window.
type RecordedWindow struct {
	Tree      *widgets.Tree
	Placement Placement
}

// NewRecorder returns an empty Recorder with a 1920x1080 monitor.
func NewRecorder() *Recorder {
	return &Recorder{
		open:     make(map[Handle]RecordedWindow),
		failOpen: make(map[value.WindowName]error),
		monitor:  Monitor{Width: 1920, Height: 1080},
	}
}

// FailOpen makes every later Open of window return err. A nil err clears
// the failure.
func (r *Recorder) FailOpen(window value.WindowName, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failOpen, window)
		return
	}
	r.failOpen[window] = err
}

func (r *Recorder) Open(tree *widgets.Tree, p Placement) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.failOpen[tree.Window]; err != nil {
		r.ops = append(r.ops, Op{Verb: "open-failed", Window: tree.Window})
		return 0, err
	}
	r.next++
	r.open[r.next] = RecordedWindow{Tree: tree, Placement: p}
	r.ops = append(r.ops, Op{Verb: "open", Window: tree.Window, Handle: r.next})
	return r.next, nil
}

func (r *Recorder) Close(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.open[h]
	if !ok {
		return fmt.Errorf("recorder: unknown window handle %d", h)
	}
	delete(r.open, h)
	r.ops = append(r.ops, Op{Verb: "close", Window: w.Tree.Window, Handle: h})
	return nil
}

func (r *Recorder) Resize(h Handle, width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.open[h]
	if !ok {
		return fmt.Errorf("recorder: unknown window handle %d", h)
	}
	w.Placement.Rect.Width, w.Placement.Rect.Height = width, height
	r.open[h] = w
	r.ops = append(r.ops, Op{Verb: "resize", Window: w.Tree.Window, Handle: h})
	return nil
}

func (r *Recorder) SetStacking(h Handle, s config.Stacking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.open[h]
	if !ok {
		return fmt.Errorf("recorder: unknown window handle %d", h)
	}
	w.Placement.Stacking = s
	r.open[h] = w
	r.ops = append(r.ops, Op{Verb: "stacking", Window: w.Tree.Window, Handle: h})
	return nil
}

func (r *Recorder) LoadStylesheet(css string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stylesheet = css
	r.ops = append(r.ops, Op{Verb: "stylesheet"})
	return nil
}

func (r *Recorder) Monitor(int) Monitor { return r.monitor }

// Ops returns a copy of all recorded calls.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Stylesheet returns the last stylesheet loaded.
func (r *Recorder) Stylesheet() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stylesheet
}

// OpenWindows returns the open windows keyed by window name. If a name has
// more than one open handle the result reports the count in the second
// return value.
func (r *Recorder) OpenWindows() (map[value.WindowName]RecordedWindow, map[value.WindowName]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byName := make(map[value.WindowName]RecordedWindow, len(r.open))
	counts := make(map[value.WindowName]int, len(r.open))
	for _, w := range r.open {
		byName[w.Tree.Window] = w
		counts[w.Tree.Window]++
	}
	return byName, counts
}
