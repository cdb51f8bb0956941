package widgets

import (
	"fmt"
	"sort"
	"strings"

	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// Node is one builtin widget with its attributes fully substituted.
type Node struct {
	Type     string            `json:"type"`
	Classes  []string          `json:"classes,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []*Node           `json:"children,omitempty"`
}

// Attr returns the named attribute or "".
func (n *Node) Attr(name string) string { return n.Attrs[name] }

// Tree is the result of building one window.
type Tree struct {
	Window value.WindowName
	Root   *Node
	// Vars is the sorted set of variables referenced anywhere in the tree.
	Vars []value.VarName
}

// References reports whether the tree uses name.
func (t *Tree) References(name value.VarName) bool {
	i := sort.Search(len(t.Vars), func(i int) bool { return t.Vars[i] >= name })
	return i < len(t.Vars) && t.Vars[i] == name
}

// Walk visits every node depth first.
func (t *Tree) Walk(fn func(n *Node, depth int)) {
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		fn(n, depth)
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	if t.Root != nil {
		walk(t.Root, 0)
	}
}

// String renders an indented outline of the tree, one node per line.
func (t *Tree) String() string {
	var b strings.Builder
	t.Walk(func(n *Node, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.Type)
		keys := make([]string, 0, len(n.Attrs))
		for k := range n.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%q", k, n.Attrs[k])
		}
		b.WriteByte('\n')
	})
	return b.String()
}
