// Package config loads the widgetd configuration: window definitions, widget
// templates and variable definitions, plus the filesystem locations the
// daemon uses at runtime.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// Config is an immutable snapshot of everything the daemon knows about
// windows, widget templates and variables. A reload replaces the whole
// snapshot; nothing mutates a Config after it is loaded.
type Config struct {
	Windows    map[value.WindowName]WindowDefinition
	Widgets    map[string]WidgetDefinition
	Vars       map[value.VarName]VarDefinition
	PollVars   map[value.VarName]PollVarDefinition
	ListenVars map[value.VarName]ListenVarDefinition
	SysVars    map[value.VarName]SysVarDefinition
}

// Empty returns a configuration with no windows and no variables.
func Empty() *Config {
	return &Config{
		Windows:    map[value.WindowName]WindowDefinition{},
		Widgets:    map[string]WidgetDefinition{},
		Vars:       map[value.VarName]VarDefinition{},
		PollVars:   map[value.VarName]PollVarDefinition{},
		ListenVars: map[value.VarName]ListenVarDefinition{},
		SysVars:    map[value.VarName]SysVarDefinition{},
	}
}

// VarDefinition is a variable with a static initial value. It has no
// producer; it only changes through explicit updates.
type VarDefinition struct {
	Name    value.VarName
	Initial value.Value
}

// PollVarDefinition is a variable refreshed by running Command every
// Interval.
type PollVarDefinition struct {
	Name     value.VarName
	Command  string
	Interval time.Duration
	Initial  value.Value
}

// ListenVarDefinition is a variable fed by a long-running Command, one
// value per line of output.
type ListenVarDefinition struct {
	Name    value.VarName
	Command string
	Initial value.Value
}

// SysMetric names a builtin system-information source.
type SysMetric string

const (
	SysCPU    SysMetric = "cpu"
	SysRAM    SysMetric = "ram"
	SysDisk   SysMetric = "disk"
	SysLoad   SysMetric = "load"
	SysUptime SysMetric = "uptime"
)

// SysVarDefinition is a variable produced from gopsutil metrics.
type SysVarDefinition struct {
	Name     value.VarName
	Metric   SysMetric
	Interval time.Duration
}

// WidgetUse is one node of a widget tree as written in the configuration:
// either a builtin widget type or the name of a template.
type WidgetUse struct {
	Type     string
	Attrs    map[string]string
	Children []WidgetUse
}

// WidgetDefinition is a named, parameterised widget template.
type WidgetDefinition struct {
	Name   string
	Params []string
	Body   WidgetUse
}

// Stacking selects whether a window sits above or below other windows.
type Stacking int

const (
	StackingForeground Stacking = iota
	StackingBackground
)

func (s Stacking) String() string {
	if s == StackingBackground {
		return "background"
	}
	return "foreground"
}

// ParseStacking parses "foreground"/"fg" or "background"/"bg".
func ParseStacking(s string) (Stacking, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "foreground", "fg":
		return StackingForeground, nil
	case "background", "bg":
		return StackingBackground, nil
	}
	return StackingForeground, fmt.Errorf("invalid stacking %q", s)
}

// WindowDefinition is the declarative description of one window.
type WindowDefinition struct {
	Name      value.WindowName
	Geometry  Geometry
	Stacking  Stacking
	Screen    *int
	Focusable bool
	Widget    WidgetUse
}

// Window returns the named window definition.
func (c *Config) Window(name value.WindowName) (WindowDefinition, bool) {
	def, ok := c.Windows[name]
	return def, ok
}

// WindowNames returns all configured window names, sorted.
func (c *Config) WindowNames() []value.WindowName {
	names := make([]value.WindowName, 0, len(c.Windows))
	for name := range c.Windows {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// VarInitial returns the declared initial value of a variable of any kind,
// or the unset sentinel for variables the configuration does not declare.
func (c *Config) VarInitial(name value.VarName) value.Value {
	if v, ok := c.Vars[name]; ok {
		return v.Initial
	}
	if v, ok := c.PollVars[name]; ok {
		return v.Initial
	}
	if v, ok := c.ListenVars[name]; ok {
		return v.Initial
	}
	return value.Value{}
}

// HasProducer reports whether name is backed by a poll, listen or sys
// definition.
func (c *Config) HasProducer(name value.VarName) bool {
	if _, ok := c.PollVars[name]; ok {
		return true
	}
	if _, ok := c.ListenVars[name]; ok {
		return true
	}
	_, ok := c.SysVars[name]
	return ok
}
