package daemon

import (
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/display"
	"gitlab.com/tinyland/lab/widgetd/pkg/producers"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

const testConfig = `
[vars.greeting]
initial = "hi"

[poll.volume]
command = "pamixer --get-volume"
interval = "1s"

[poll.battery]
command = "cat /sys/class/power_supply/BAT0/capacity"
interval = "5s"

[windows.bar.geometry]
anchor = "top center"
size = "100%x30px"
[windows.bar.widget]
type = "box"
children = [
  { type = "label", attrs = { text = "vol {{volume}}" } },
  { type = "label", attrs = { text = "{{greeting}}" } },
]

[windows.side.widget]
type = "label"
attrs = { text = "bat {{battery}} vol {{volume}}" }

[windows.clock.widget]
type = "label"
attrs = { text = "{{time}}" }
`

// fakeProducers records every instruction the dispatcher issues.
type fakeProducers struct {
	ops        []string
	running    map[value.VarName]bool
	duplicates []value.VarName
	failStart  map[value.VarName]error
	cfg        *config.Config
	onStop     func(value.VarName)
	exited     []value.VarName
}

func newFakeProducers() *fakeProducers {
	return &fakeProducers{
		running:   make(map[value.VarName]bool),
		failStart: make(map[value.VarName]error),
	}
}

func (f *fakeProducers) Start(name value.VarName) error {
	if err := f.failStart[name]; err != nil {
		f.ops = append(f.ops, "start-failed "+string(name))
		return err
	}
	if f.running[name] {
		f.duplicates = append(f.duplicates, name)
		return nil
	}
	f.running[name] = true
	f.ops = append(f.ops, "start "+string(name))
	return nil
}

func (f *fakeProducers) StopForVariable(name value.VarName) {
	if f.onStop != nil {
		f.onStop(name)
	}
	delete(f.running, name)
	f.ops = append(f.ops, "stop "+string(name))
}

func (f *fakeProducers) StopAll() {
	clear(f.running)
	f.ops = append(f.ops, "stop-all")
}

func (f *fakeProducers) SetConfig(cfg *config.Config) {
	f.cfg = cfg
	f.ops = append(f.ops, "set-config")
}

func (f *fakeProducers) TakeExited() []value.VarName {
	out := f.exited
	f.exited = nil
	return out
}

// exit behaves like a producer for name returning by itself.
func (f *fakeProducers) exit(name value.VarName) {
	delete(f.running, name)
	f.exited = append(f.exited, name)
}

func (f *fakeProducers) Statuses() []producers.Status {
	var out []producers.Status
	for _, name := range f.Running() {
		out = append(out, producers.Status{Variable: name, Kind: "fake", Running: true})
	}
	return out
}

func (f *fakeProducers) Running() []value.VarName {
	var names []value.VarName
	for name := range f.running {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// reset clears the recorded ops.
func (f *fakeProducers) reset() { f.ops = nil }

type testApp struct {
	*App
	producers *fakeProducers
	backend   *display.Recorder
}

func mustConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.ReadFrom(strings.NewReader(doc), config.FormatTOML)
	require.NoError(t, err)
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(t *testing.T, opts ...func(*Options)) *testApp {
	t.Helper()
	fp := newFakeProducers()
	rec := display.NewRecorder()
	o := Options{
		ConfigPath: "widgetd.toml",
		StylePath:  "widgetd.css",
		Backend:    rec,
		Producers:  fp,
		Logger:     discardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &testApp{App: New(mustConfig(t, testConfig), o), producers: fp, backend: rec}
}

// call handles cmd built around a fresh Reply and returns the response.
func (ta *testApp) call(t *testing.T, build func(Reply) Command) Response {
	t.Helper()
	reply, replies := NewReply()
	_ = ta.Handle(build(reply))
	select {
	case resp := <-replies:
		return resp
	default:
		t.Fatal("command did not respond")
		return Response{}
	}
}

func (ta *testApp) open(t *testing.T, name value.WindowName) Response {
	t.Helper()
	return ta.call(t, func(r Reply) Command { return OpenWindow{Name: name, Reply: r} })
}

func (ta *testApp) close(t *testing.T, name value.WindowName) Response {
	t.Helper()
	return ta.call(t, func(r Reply) Command { return CloseWindow{Name: name, Reply: r} })
}

func (ta *testApp) update(t *testing.T, name value.VarName, v value.Value) Response {
	t.Helper()
	return ta.call(t, func(r Reply) Command {
		return UpdateVariables{Updates: []VarUpdate{{Name: name, Value: v}}, Reply: r}
	})
}

// referencedByOpenWindows computes, from the trees the backend holds, the
// variables the open windows use.
func (ta *testApp) referencedByOpenWindows() []value.VarName {
	open, _ := ta.backend.OpenWindows()
	seen := make(map[value.VarName]bool)
	for _, w := range open {
		for _, v := range w.Tree.Vars {
			seen[v] = true
		}
	}
	out := []value.VarName{}
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
