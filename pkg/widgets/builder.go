package widgets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// maxDepth bounds template expansion.
const maxDepth = 32

// Snapshot is a read-only copy of the variable values a tree is built
// against.
type Snapshot map[value.VarName]value.Value

// BuildError reports a window whose widget tree could not be built.
type BuildError struct {
	Window value.WindowName
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build window %q: %v", e.Window, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Builder turns a window definition into a widget tree.
type Builder interface {
	Build(cfg *config.Config, vars Snapshot, window value.WindowName, def config.WindowDefinition) (*Tree, error)
}

// TemplateBuilder expands templates and substitutes {{name}} references.
type TemplateBuilder struct{}

// NewBuilder returns the default Builder.
func NewBuilder() *TemplateBuilder { return &TemplateBuilder{} }

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_\-]*)\s*\}\}`)

// Build expands def.Widget. References to variables missing from vars
// resolve to the configured initial value, then to the unset sentinel.
// The special local window_name resolves to the window's name.
func (b *TemplateBuilder) Build(cfg *config.Config, vars Snapshot, window value.WindowName, def config.WindowDefinition) (*Tree, error) {
	ctx := &buildContext{
		cfg:  cfg,
		vars: vars,
		refs: make(map[value.VarName]struct{}),
	}
	locals := map[string]string{"window_name": string(window)}

	root, err := ctx.expand(def.Widget, locals, 0)
	if err != nil {
		return nil, &BuildError{Window: window, Err: err}
	}
	root.Classes = append([]string{string(window)}, root.Classes...)

	tree := &Tree{Window: window, Root: root}
	for name := range ctx.refs {
		tree.Vars = append(tree.Vars, name)
	}
	sort.Slice(tree.Vars, func(i, j int) bool { return tree.Vars[i] < tree.Vars[j] })
	return tree, nil
}

type buildContext struct {
	cfg  *config.Config
	vars Snapshot
	refs map[value.VarName]struct{}
}

func (c *buildContext) expand(use config.WidgetUse, locals map[string]string, depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("widget %q nests deeper than %d templates", use.Type, maxDepth)
	}

	attrs := make(map[string]string, len(use.Attrs))
	for k, v := range use.Attrs {
		attrs[k] = c.substitute(v, locals)
	}

	if config.BuiltinWidgets[use.Type] {
		node := &Node{Type: use.Type}
		if len(attrs) > 0 {
			node.Attrs = attrs
		}
		if class, ok := attrs["class"]; ok {
			node.Classes = strings.Fields(class)
		}
		for _, child := range use.Children {
			n, err := c.expand(child, locals, depth)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, n)
		}
		return node, nil
	}

	tmpl, ok := c.cfg.Widgets[use.Type]
	if !ok {
		return nil, fmt.Errorf("unknown widget %q", use.Type)
	}

	// Template bodies only see their own params plus window_name.
	inner := map[string]string{"window_name": locals["window_name"]}
	for _, p := range tmpl.Params {
		v, ok := attrs[p]
		if !ok {
			return nil, fmt.Errorf("widget %q: missing required attribute %q", use.Type, p)
		}
		inner[p] = v
	}

	node, err := c.expand(tmpl.Body, inner, depth+1)
	if err != nil {
		return nil, err
	}
	for _, child := range use.Children {
		n, err := c.expand(child, locals, depth)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, n)
	}
	return node, nil
}

// substitute replaces {{name}} with a local or the variable's value,
// recording every variable it resolves.
func (c *buildContext) substitute(s string, locals map[string]string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := locals[name]; ok {
			return v
		}
		vn := value.VarName(name)
		c.refs[vn] = struct{}{}
		if v, ok := c.vars[vn]; ok && v.IsSet() {
			return v.String()
		}
		return c.cfg.VarInitial(vn).String()
	})
}
