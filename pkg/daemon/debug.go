package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gitlab.com/tinyland/lab/widgetd/pkg/producers"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// DebugSnapshot is the document PrintDebug replies with.
type DebugSnapshot struct {
	State             string                        `json:"state"`
	Uptime            string                        `json:"uptime"`
	QueueLength       int                           `json:"queue_length"`
	ConfigPath        string                        `json:"config_path"`
	StylePath         string                        `json:"style_path"`
	StylesheetBytes   int                           `json:"stylesheet_bytes"`
	ConfiguredWindows []value.WindowName            `json:"configured_windows"`
	Windows           []DebugWindow                 `json:"windows"`
	Subscriptions     []value.VarName               `json:"subscriptions"`
	Producers         []producers.Status            `json:"producers"`
	Variables         map[value.VarName]value.Value `json:"variables"`
}

// DebugWindow describes one open window.
type DebugWindow struct {
	Name       value.WindowName `json:"name"`
	Handle     uint64           `json:"handle"`
	Rect       string           `json:"rect"`
	Anchor     string           `json:"anchor"`
	Stacking   string           `json:"stacking"`
	Focusable  bool             `json:"focusable"`
	References []value.VarName  `json:"references"`
	OpenedAt   time.Time        `json:"opened_at"`
	Tree       string           `json:"tree"`
}

// Debug collects the dispatcher's current state.
func (a *App) Debug() *DebugSnapshot {
	snap := &DebugSnapshot{
		State:             a.State().String(),
		Uptime:            time.Since(a.started).Truncate(time.Second).String(),
		QueueLength:       a.queue.Len(),
		ConfigPath:        a.configPath,
		StylePath:         a.stylePath,
		StylesheetBytes:   len(a.css),
		ConfiguredWindows: a.cfg.WindowNames(),
		Windows:           []DebugWindow{},
		Subscriptions:     a.reconcile.Active(),
		Producers:         a.producers.Statuses(),
		Variables:         a.store.Variables(),
	}
	for _, name := range a.windows.Names() {
		inst, _ := a.windows.Get(name)
		snap.Windows = append(snap.Windows, DebugWindow{
			Name:       inst.Name,
			Handle:     uint64(inst.Handle),
			Rect:       inst.Placement.Rect.String(),
			Anchor:     inst.Definition.Geometry.Anchor.String(),
			Stacking:   inst.Placement.Stacking.String(),
			Focusable:  inst.Placement.Focusable,
			References: a.store.ReferencedBy(name),
			OpenedAt:   inst.OpenedAt,
			Tree:       inst.Tree.String(),
		})
	}
	return snap
}

func (a *App) printDebug() (string, error) {
	data, err := json.MarshalIndent(a.Debug(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal debug snapshot: %w", err)
	}
	return string(data), nil
}

// WriteDebugFile writes snap as indented JSON to path. The write is atomic:
// content goes to a temporary file first and is renamed into place.
func WriteDebugFile(path string, snap *DebugSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create debug directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal debug snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp debug file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename debug file: %w", err)
	}
	return nil
}
