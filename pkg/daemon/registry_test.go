package daemon

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/display"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
	"gitlab.com/tinyland/lab/widgetd/pkg/widgets"
)

func newTestRegistry(t *testing.T) (*Registry, *display.Recorder, *config.Config) {
	t.Helper()
	rec := display.NewRecorder()
	return NewRegistry(rec, widgets.NewBuilder()), rec, mustConfig(t, testConfig)
}

func TestRegistry_OpenClose(t *testing.T) {
	r, rec, cfg := newTestRegistry(t)
	def, _ := cfg.Window("bar")

	inst, err := r.Open(cfg, nil, def, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, value.WindowName("bar"), inst.Name)
	assert.Equal(t, []value.VarName{"greeting", "volume"}, inst.Tree.Vars)
	assert.True(t, r.IsOpen("bar"))

	require.NoError(t, r.Close("bar"))
	assert.False(t, r.IsOpen("bar"))
	open, _ := rec.OpenWindows()
	assert.Empty(t, open)

	assert.ErrorIs(t, r.Close("bar"), ErrNotOpen)
}

func TestRegistry_OpenReplacesExisting(t *testing.T) {
	r, rec, cfg := newTestRegistry(t)
	def, _ := cfg.Window("bar")

	first, err := r.Open(cfg, nil, def, Overrides{})
	require.NoError(t, err)
	second, err := r.Open(cfg, nil, def, Overrides{})
	require.NoError(t, err)

	assert.NotEqual(t, first.Handle, second.Handle)
	_, counts := rec.OpenWindows()
	assert.Equal(t, map[value.WindowName]int{"bar": 1}, counts)
}

func TestRegistry_BuildFailure(t *testing.T) {
	r, rec, cfg := newTestRegistry(t)
	def := config.WindowDefinition{
		Name:     "broken",
		Geometry: config.DefaultGeometry(),
		Widget:   config.WidgetUse{Type: "no-such-widget"},
	}

	_, err := r.Open(cfg, nil, def, Overrides{})
	require.ErrorIs(t, err, ErrBuildFailure)
	var be *widgets.BuildError
	assert.True(t, errors.As(err, &be))
	assert.False(t, r.IsOpen("broken"))
	assert.Empty(t, rec.Ops())
}

func TestRegistry_BackendFailure(t *testing.T) {
	r, rec, cfg := newTestRegistry(t)
	rec.FailOpen("bar", errors.New("no display"))
	def, _ := cfg.Window("bar")

	_, err := r.Open(cfg, nil, def, Overrides{})
	require.ErrorIs(t, err, ErrBuildFailure)
	assert.Contains(t, err.Error(), "no display")
	assert.False(t, r.IsOpen("bar"))
}

func TestRegistry_UsesSnapshotValues(t *testing.T) {
	r, _, cfg := newTestRegistry(t)
	def, _ := cfg.Window("side")

	inst, err := r.Open(cfg, widgets.Snapshot{"battery": value.Number(80, value.UnitPercent)}, def, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "bat 80% vol ", inst.Tree.Root.Attr("text"))
}

func TestRegistry_List(t *testing.T) {
	r, _, cfg := newTestRegistry(t)
	def, _ := cfg.Window("side")
	_, err := r.Open(cfg, nil, def, Overrides{})
	require.NoError(t, err)

	// A window opened from an older config still shows up.
	orphan := def
	orphan.Name = "orphan"
	_, err = r.Open(cfg, nil, orphan, Overrides{})
	require.NoError(t, err)

	want := []WindowStatus{
		{Name: "bar"},
		{Name: "clock"},
		{Name: "orphan", Open: true},
		{Name: "side", Open: true},
	}
	assert.Equal(t, want, r.List(cfg))
	assert.Equal(t, []value.WindowName{"orphan", "side"}, r.Names())

	require.NoError(t, r.CloseAll())
	assert.Empty(t, r.Names())
}
