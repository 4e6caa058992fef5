package structure

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"flowlens/internal/core/ports"
)

// NodeHandler processes a syntax node. Returns true if the handler has
// consumed the node's children and the walker should not descend.
type NodeHandler func(ctx *walkContext, node *sitter.Node) bool

// walkContext carries the source and the structure being accumulated.
type walkContext struct {
	source []byte
	out    *documentStructure
}

func (c *walkContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.source[node.StartByte():node.EndByte()])
}

func (c *walkContext) Position(node *sitter.Node) ports.Position {
	return ports.Position{
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}

// walker dispatches node handlers by kind over the whole tree.
type walker struct {
	handlers map[string]NodeHandler
}

func (w *walker) Walk(ctx *walkContext, node *sitter.Node) {
	if node == nil {
		return
	}
	stop := false
	if handler, ok := w.handlers[node.Kind()]; ok {
		stop = handler(ctx, node)
	}
	if stop {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		w.Walk(ctx, node.Child(i))
	}
}
