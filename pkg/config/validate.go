package config

import (
	"errors"
	"fmt"
	"sort"

	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// BuiltinWidgets lists the widget types the builder renders natively.
// Any other widget type must name a template in Config.Widgets.
var BuiltinWidgets = map[string]bool{
	"box":      true,
	"label":    true,
	"button":   true,
	"image":    true,
	"progress": true,
	"scale":    true,
	"text":     true,
}

// maxTemplateDepth bounds template expansion during validation and build.
const maxTemplateDepth = 32

// Validate checks cross references inside the configuration. All problems
// are reported together.
func (c *Config) Validate() error {
	var errs []error

	seen := make(map[value.VarName]string)
	claim := func(name value.VarName, kind string) {
		if prev, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("variable %q defined as both %s and %s", name, prev, kind))
			return
		}
		seen[name] = kind
	}
	for _, name := range sortedVarNames(c.Vars) {
		claim(name, "var")
	}
	for _, name := range sortedVarNames(c.PollVars) {
		claim(name, "poll")
		def := c.PollVars[name]
		if def.Command == "" {
			errs = append(errs, fmt.Errorf("poll var %q: missing command", name))
		}
		if def.Interval <= 0 {
			errs = append(errs, fmt.Errorf("poll var %q: interval must be positive", name))
		}
	}
	for _, name := range sortedVarNames(c.ListenVars) {
		claim(name, "listen")
		if c.ListenVars[name].Command == "" {
			errs = append(errs, fmt.Errorf("listen var %q: missing command", name))
		}
	}
	for _, name := range sortedVarNames(c.SysVars) {
		claim(name, "sys")
		switch c.SysVars[name].Metric {
		case SysCPU, SysRAM, SysDisk, SysLoad, SysUptime:
		default:
			errs = append(errs, fmt.Errorf("sys var %q: unknown metric %q", name, c.SysVars[name].Metric))
		}
	}

	templates := make([]string, 0, len(c.Widgets))
	for name := range c.Widgets {
		templates = append(templates, name)
	}
	sort.Strings(templates)
	for _, name := range templates {
		if BuiltinWidgets[name] {
			errs = append(errs, fmt.Errorf("widget template %q shadows a builtin widget", name))
			continue
		}
		if err := c.checkUse(c.Widgets[name].Body, []string{name}); err != nil {
			errs = append(errs, fmt.Errorf("widget template %q: %w", name, err))
		}
	}

	for _, name := range c.WindowNames() {
		def := c.Windows[name]
		if def.Widget.Type == "" {
			errs = append(errs, fmt.Errorf("window %q: missing widget", name))
			continue
		}
		if err := c.checkUse(def.Widget, nil); err != nil {
			errs = append(errs, fmt.Errorf("window %q: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// checkUse verifies that every widget in the tree resolves and that no
// template expands into itself. stack holds the templates being expanded.
func (c *Config) checkUse(use WidgetUse, stack []string) error {
	if use.Type == "" {
		return errors.New("widget without a type")
	}
	if !BuiltinWidgets[use.Type] {
		tmpl, ok := c.Widgets[use.Type]
		if !ok {
			return fmt.Errorf("unknown widget %q", use.Type)
		}
		for _, s := range stack {
			if s == use.Type {
				return fmt.Errorf("widget %q is recursive", use.Type)
			}
		}
		if len(stack) >= maxTemplateDepth {
			return fmt.Errorf("widget %q nests deeper than %d templates", use.Type, maxTemplateDepth)
		}
		if err := c.checkUse(tmpl.Body, append(stack, use.Type)); err != nil {
			return err
		}
	}
	for _, child := range use.Children {
		if err := c.checkUse(child, stack); err != nil {
			return err
		}
	}
	return nil
}

func sortedVarNames[T any](m map[value.VarName]T) []value.VarName {
	names := make([]value.VarName, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
