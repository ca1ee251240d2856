package phpindex

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// nodeHandler processes one node kind. It returns true when it has taken care
// of the node's children itself.
type nodeHandler func(b *builder, node *sitter.Node) bool

// walker dispatches node handlers by kind and otherwise descends into
// children.
type walker struct {
	handlers map[string]nodeHandler
}

func (w *walker) walk(b *builder, node *sitter.Node) {
	if node == nil {
		return
	}
	if handler, ok := w.handlers[node.Kind()]; ok && handler(b, node) {
		return
	}
	w.walkChildren(b, node)
}

func (w *walker) walkChildren(b *builder, node *sitter.Node) {
	if node == nil {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		w.walk(b, node.Child(i))
	}
}

func (b *builder) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(b.source[node.StartByte():node.EndByte()])
}

func startLine(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

func endLine(node *sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}

// childOfKind returns the first direct child of one of kinds.
func childOfKind(node *sitter.Node, kinds ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		for _, kind := range kinds {
			if child.Kind() == kind {
				return child
			}
		}
	}
	return nil
}

func childrenOfKind(node *sitter.Node, kinds ...string) []*sitter.Node {
	var out []*sitter.Node
	if node == nil {
		return out
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		for _, kind := range kinds {
			if child.Kind() == kind {
				out = append(out, child)
				break
			}
		}
	}
	return out
}

// field prefers the named field and falls back to the first child of one of
// kinds, which keeps the builder working across grammar revisions.
func field(node *sitter.Node, name string, kinds ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	if child := node.ChildByFieldName(name); child != nil {
		return child
	}
	return childOfKind(node, kinds...)
}

func hasModifier(b *builder, node *sitter.Node, modifier string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		kind := child.Kind()
		if kind == modifier+"_modifier" {
			return true
		}
		if strings.HasSuffix(kind, "_modifier") && strings.EqualFold(b.text(child), modifier) {
			return true
		}
	}
	return false
}

func variableName(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "$")
}
