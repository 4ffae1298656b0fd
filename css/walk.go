package css

// WalkFunc is called for every node. Returning false stops descent into the
// node children.
type WalkFunc func(n Node, parent Container) bool

// Walk visits nodes depth-first in document order.
func Walk(c Container, fn WalkFunc) {
	for _, n := range c.Children() {
		if !fn(n, c) {
			continue
		}
		if child, ok := n.(Container); ok {
			Walk(child, fn)
		}
	}
}

// WalkRules visits every qualified rule including nested ones.
func WalkRules(c Container, fn func(r *Rule, parent Container)) {
	Walk(c, func(n Node, parent Container) bool {
		if r, ok := n.(*Rule); ok {
			fn(r, parent)
		}
		return true
	})
}

// WalkAtRules visits every at-rule, name filter is optional.
func WalkAtRules(c Container, name string, fn func(a *AtRule, parent Container)) {
	Walk(c, func(n Node, parent Container) bool {
		if a, ok := n.(*AtRule); ok && (name == "" || a.Name == name) {
			fn(a, parent)
		}
		return true
	})
}

// WalkDecls visits every declaration.
func WalkDecls(c Container, fn func(d *Declaration, parent Container)) {
	Walk(c, func(n Node, parent Container) bool {
		if d, ok := n.(*Declaration); ok {
			fn(d, parent)
		}
		return true
	})
}

// Replace calls fn for each direct child of c. fn returns replacement nodes
// (nil removes the node, a slice with the same node keeps it). Result is
// applied after the whole list is processed.
func Replace(c Container, fn func(n Node) []Node) {
	children := c.Children()
	out := make([]Node, 0, len(children))
	for _, n := range children {
		out = append(out, fn(n)...)
	}
	c.SetChildren(out)
}

// ReplaceDeep applies Replace recursively, children are processed before
// their parent list is rebuilt.
func ReplaceDeep(c Container, fn func(n Node, parent Container) []Node) {
	for _, n := range c.Children() {
		if child, ok := n.(Container); ok {
			ReplaceDeep(child, fn)
		}
	}
	Replace(c, func(n Node) []Node { return fn(n, c) })
}

// Keep is a convenience for Replace callbacks.
func Keep(n Node) []Node {
	return []Node{n}
}
