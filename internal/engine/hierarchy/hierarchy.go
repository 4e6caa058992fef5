// Package hierarchy groups discovered dataflow nodes into two independent
// trees: a location hierarchy (where does it run, with Tick scopes nested
// below each location) and a code hierarchy (file, function, variable
// binding). Every node lands in exactly one container per tree.
package hierarchy

import (
	"fmt"
	"log/slog"

	"flowlens/internal/core/ports"
	"flowlens/internal/engine/typestr"
)

const (
	// Sentinel container names for nodes the analysis could not place.
	UnknownLocationName = "(unknown location)"
	UnknownCodeName     = "(unknown)"

	// HierarchyLocation and HierarchyCode name the two trees.
	HierarchyLocation = "location"
	HierarchyCode     = "code"
)

// Node is one discovered dataflow graph node, read-only input to the build.
type Node struct {
	ID           string
	ShortLabel   string
	Position     *ports.Position
	Location     *typestr.LocationKind
	TickVariable string
}

// Container is a named node in one of the output trees. Containers are
// created during a single build pass and not mutated afterwards; re-analysis
// rebuilds the trees wholesale.
type Container struct {
	ID       string
	Name     string
	Children []*Container
}

// Result carries both trees, their node assignment maps and the default
// selection.
type Result struct {
	Location    *Container
	Code        *Container
	Assignments Assignments
	Selected    string
}

// Assignments maps node ID to container ID, one map per hierarchy.
type Assignments struct {
	Location map[string]string
	Code     map[string]string
}

// Builder constructs both hierarchies in one pass.
type Builder struct {
	// EnclosingFunction resolves the function a position belongs to; used
	// for standalone chains and as the degraded-mode fallback. May be nil.
	EnclosingFunction func(pos ports.Position) string

	// Logger receives degraded-mode reports instead of them becoming errors.
	Logger *slog.Logger

	seq int
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func (b *Builder) newContainer(prefix, name string) *Container {
	b.seq++
	return &Container{ID: fmt.Sprintf("%s-%d", prefix, b.seq), Name: name}
}

// Build produces both hierarchies. Degenerate input still yields well-formed
// trees holding only fallback containers.
func (b *Builder) Build(nodes []Node, bindings []ports.VariableBinding, chains [][]ports.OperatorCall, fileName string) Result {
	b.seq = 0
	result := Result{
		Assignments: Assignments{
			Location: make(map[string]string),
			Code:     make(map[string]string),
		},
		Selected: HierarchyLocation,
	}
	result.Location = b.buildLocationTree(nodes, result.Assignments.Location)
	result.Code = b.buildCodeTree(nodes, bindings, chains, fileName, result.Assignments.Code)
	return result
}

// --- location hierarchy ---

func (b *Builder) buildLocationTree(nodes []Node, assign map[string]string) *Container {
	root := b.newContainer("loc", "Locations")

	// One top-level container per distinct base label, in first-seen order.
	baseByLabel := make(map[string]*Container)
	baseContainer := func(label string) *Container {
		if c, ok := baseByLabel[label]; ok {
			return c
		}
		c := b.newContainer("loc", label)
		baseByLabel[label] = c
		root.Children = append(root.Children, c)
		return c
	}

	// Tick containers are keyed by (parent, level name) so nodes sharing a
	// depth and tick variable collapse while differing variables split into
	// siblings.
	tickChildren := make(map[*Container]map[string]*Container)
	tickContainer := func(parent *Container, name string) *Container {
		children, ok := tickChildren[parent]
		if !ok {
			children = make(map[string]*Container)
			tickChildren[parent] = children
		}
		if c, ok := children[name]; ok {
			return c
		}
		c := b.newContainer("loc", name)
		children[name] = c
		parent.Children = append(parent.Children, c)
		return c
	}

	placed := false
	for _, node := range nodes {
		if node.Location == nil {
			continue
		}
		placed = true
		target := baseContainer(node.Location.Label())
		// Walk downward one container per tick level; the node's own tick
		// variable names the deepest level, intermediate levels stay
		// generic.
		for depth := 1; depth <= node.Location.TickDepth; depth++ {
			name := "tick"
			if depth == node.Location.TickDepth && node.TickVariable != "" {
				name = node.TickVariable
			}
			target = tickContainer(target, name)
		}
		assign[node.ID] = target.ID
	}

	var unknown *Container
	for _, node := range nodes {
		if node.Location != nil {
			continue
		}
		if unknown == nil {
			unknown = b.newContainer("loc", UnknownLocationName)
			root.Children = append(root.Children, unknown)
		}
		assign[node.ID] = unknown.ID
	}

	if !placed && unknown == nil {
		// No nodes at all: the tree still carries its fallback container.
		root.Children = append(root.Children, b.newContainer("loc", UnknownLocationName))
	}
	return root
}

// --- code hierarchy ---

func (b *Builder) buildCodeTree(nodes []Node, bindings []ports.VariableBinding, chains [][]ports.OperatorCall, fileName string, assign map[string]string) *Container {
	root := b.newContainer("code", fileName)

	degraded := len(bindings) == 0 && len(chains) == 0
	if degraded && len(nodes) > 0 {
		b.logger().Warn("DEGRADED MODE: no structural bindings or chains, grouping by enclosing function only",
			"file", fileName)
	}

	funcByName := make(map[string]*Container)
	funcContainer := func(name string) *Container {
		if c, ok := funcByName[name]; ok {
			return c
		}
		c := b.newContainer("code", name)
		funcByName[name] = c
		root.Children = append(root.Children, c)
		return c
	}

	// Index structural operator calls so nodes can be matched by position
	// first and by (name, line) second.
	byPos := make(map[string]*Container)
	byNameLine := make(map[string]*Container)
	index := func(target *Container, ops []ports.OperatorCall) {
		for _, op := range ops {
			if _, taken := byPos[op.Position.Key()]; !taken {
				byPos[op.Position.Key()] = target
			}
			key := fmt.Sprintf("%s@%d", op.Name, op.Position.Line)
			if _, taken := byNameLine[key]; !taken {
				byNameLine[key] = target
			}
		}
	}

	for _, binding := range bindings {
		if len(binding.Operators) == 0 {
			continue
		}
		fn := b.enclosing(binding.Operators[0].Position)
		fnContainer := funcContainer(fn)
		varContainer := b.childByName(fnContainer, binding.VarName)
		index(varContainer, binding.Operators)
	}
	for _, chain := range chains {
		if len(chain) == 0 {
			continue
		}
		fn := b.enclosing(chain[0].Position)
		index(funcContainer(fn), chain)
	}

	var unknown *Container
	unknownContainer := func() *Container {
		if unknown == nil {
			unknown = b.newContainer("code", UnknownCodeName)
			root.Children = append(root.Children, unknown)
		}
		return unknown
	}

	directNodes := make(map[*Container]int)
	for _, node := range nodes {
		target := b.resolveCodeTarget(node, byPos, byNameLine, funcContainer, unknownContainer)
		assign[node.ID] = target.ID
		directNodes[target]++
	}

	if len(root.Children) == 0 {
		root.Children = append(root.Children, unknownContainer())
	}

	b.collapseSingleChildChains(root, directNodes, assign)
	return root
}

func (b *Builder) resolveCodeTarget(node Node, byPos, byNameLine map[string]*Container, funcContainer func(string) *Container, unknownContainer func() *Container) *Container {
	if node.Position == nil {
		return unknownContainer()
	}
	if target, ok := byPos[node.Position.Key()]; ok {
		return target
	}
	key := fmt.Sprintf("%s@%d", node.ShortLabel, node.Position.Line)
	if target, ok := byNameLine[key]; ok {
		return target
	}
	// No structural match: coarse grouping by enclosing function keeps the
	// tree usable.
	if fn := b.enclosing(*node.Position); fn != UnknownCodeName {
		return funcContainer(fn)
	}
	return unknownContainer()
}

func (b *Builder) enclosing(pos ports.Position) string {
	if b.EnclosingFunction == nil {
		return UnknownCodeName
	}
	if fn := b.EnclosingFunction(pos); fn != "" {
		return fn
	}
	return UnknownCodeName
}

func (b *Builder) childByName(parent *Container, name string) *Container {
	for _, child := range parent.Children {
		if child.Name == name {
			return child
		}
	}
	c := b.newContainer("code", name)
	parent.Children = append(parent.Children, c)
	return c
}

// collapseSingleChildChains merges any non-root container that has exactly
// one child and no directly assigned nodes into that child, joining the
// names with an arrow. This keeps the common single-binding-per-function
// case to one level.
func (b *Builder) collapseSingleChildChains(root *Container, directNodes map[*Container]int, assign map[string]string) {
	alias := make(map[string]string)
	for i, child := range root.Children {
		root.Children[i] = collapse(child, directNodes, alias)
	}
	if len(alias) == 0 {
		return
	}
	for nodeID, containerID := range assign {
		for {
			next, ok := alias[containerID]
			if !ok {
				break
			}
			containerID = next
		}
		assign[nodeID] = containerID
	}
}

func collapse(c *Container, directNodes map[*Container]int, alias map[string]string) *Container {
	for i, child := range c.Children {
		c.Children[i] = collapse(child, directNodes, alias)
	}
	if len(c.Children) == 1 && directNodes[c] == 0 {
		child := c.Children[0]
		merged := &Container{
			ID:       c.ID,
			Name:     c.Name + " → " + child.Name,
			Children: child.Children,
		}
		alias[child.ID] = merged.ID
		directNodes[merged] = directNodes[child]
		return merged
	}
	return c
}
