// Package structure extracts the coarse shape of a Hydro source file:
// variable bindings with their operator chains, standalone chains, and
// function spans. It deliberately parses only what the hierarchy builder and
// candidate probing need, nothing close to the full grammar.
package structure

import (
	"errors"
	"regexp"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"flowlens/internal/core/ports"
)

// Parser implements ports.StructuralParser and ports.CandidateSource on top
// of the Rust grammar.
type Parser struct {
	language *sitter.Language
}

func NewParser() *Parser {
	return &Parser{language: sitter.NewLanguage(tree_sitter_rust.Language())}
}

var _ ports.StructuralParser = (*Parser)(nil)
var _ ports.CandidateSource = (*Parser)(nil)

type functionSpan struct {
	name      string
	startLine int
	endLine   int
}

type documentStructure struct {
	bindings  []ports.VariableBinding
	chains    [][]ports.OperatorCall
	functions []functionSpan
}

func (p *Parser) VariableBindings(doc ports.Document) ([]ports.VariableBinding, error) {
	s, err := p.extract(doc)
	if err != nil {
		return nil, err
	}
	return s.bindings, nil
}

func (p *Parser) StandaloneChains(doc ports.Document) ([][]ports.OperatorCall, error) {
	s, err := p.extract(doc)
	if err != nil {
		return nil, err
	}
	return s.chains, nil
}

// EnclosingFunction returns the name of the innermost function whose span
// contains the position, or "" when the position is outside every function.
func (p *Parser) EnclosingFunction(doc ports.Document, pos ports.Position) string {
	s, err := p.extract(doc)
	if err != nil {
		return ""
	}
	best := ""
	bestSize := -1
	for _, fn := range s.functions {
		if pos.Line < fn.startLine || pos.Line > fn.endLine {
			continue
		}
		size := fn.endLine - fn.startLine
		if bestSize < 0 || size < bestSize {
			best = fn.name
			bestSize = size
		}
	}
	return best
}

// Candidates lists the positions worth probing for types: every operator
// call site plus every bound variable name. Duplicates by position are
// dropped.
func (p *Parser) Candidates(doc ports.Document) ([]ports.Candidate, error) {
	s, err := p.extract(doc)
	if err != nil {
		return nil, err
	}
	var out []ports.Candidate
	seen := make(map[string]bool)
	add := func(name string, pos ports.Position) {
		key := pos.Key()
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, ports.Candidate{Name: name, Position: pos})
	}
	for _, binding := range s.bindings {
		add(binding.VarName, ports.Position{Line: binding.Line, Column: binding.Column})
		for _, op := range binding.Operators {
			add(op.Name, op.Position)
		}
	}
	for _, chain := range s.chains {
		for _, op := range chain {
			add(op.Name, op.Position)
		}
	}
	return out, nil
}

func (p *Parser) extract(doc ports.Document) (*documentStructure, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.language); err != nil {
		return nil, err
	}

	tree := parser.Parse(doc.Content, nil)
	if tree == nil {
		return nil, errors.New("parse failed")
	}
	defer tree.Close()

	out := &documentStructure{}
	ctx := &walkContext{source: doc.Content, out: out}
	w := &walker{handlers: map[string]NodeHandler{
		"function_item":        extractFunction,
		"let_declaration":      extractBinding,
		"expression_statement": extractStandaloneChain,
	}}
	w.Walk(ctx, tree.RootNode())
	return out, nil
}

func extractFunction(ctx *walkContext, node *sitter.Node) bool {
	name := ctx.Text(node.ChildByFieldName("name"))
	if name != "" {
		ctx.out.functions = append(ctx.out.functions, functionSpan{
			name:      name,
			startLine: int(node.StartPosition().Row) + 1,
			endLine:   int(node.EndPosition().Row) + 1,
		})
	}
	return false // bindings and chains live inside the body
}

func extractBinding(ctx *walkContext, node *sitter.Node) bool {
	pattern := node.ChildByFieldName("pattern")
	value := node.ChildByFieldName("value")
	if pattern == nil || value == nil {
		return true
	}
	ops := methodChain(ctx, value)
	if len(ops) == 0 {
		return true
	}
	ctx.out.bindings = append(ctx.out.bindings, ports.VariableBinding{
		VarName:   ctx.Text(pattern),
		Line:      int(pattern.StartPosition().Row) + 1,
		Column:    int(pattern.StartPosition().Column) + 1,
		Operators: ops,
	})
	return true
}

func extractStandaloneChain(ctx *walkContext, node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() != "call_expression" {
			continue
		}
		// A single method call is not a chain worth grouping.
		if ops := methodChain(ctx, child); len(ops) >= 2 {
			ctx.out.chains = append(ctx.out.chains, ops)
		}
	}
	return true
}

// methodChain flattens a nested method-call expression into its operator
// calls in source order (receiver first).
func methodChain(ctx *walkContext, node *sitter.Node) []ports.OperatorCall {
	if node == nil || node.Kind() != "call_expression" {
		return nil
	}
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "field_expression" {
		return nil
	}
	field := fn.ChildByFieldName("field")
	if field == nil {
		return nil
	}
	ops := methodChain(ctx, fn.ChildByFieldName("value"))
	return append(ops, ports.OperatorCall{
		Name:     ctx.Text(field),
		Position: ctx.Position(field),
		TickVar:  tickVariable(ctx.Text(node.ChildByFieldName("arguments"))),
	})
}

var (
	tickCallRe  = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\.\s*tick\s*\(\s*\)`)
	tickIdentRe = regexp.MustCompile(`&\s*([A-Za-z_][A-Za-z0-9_]*tick[A-Za-z0-9_]*)\b`)
)

// tickVariable recovers the identifier an operator call obtains its tick
// context from, e.g. "cluster.tick()" in batch(&cluster.tick(), ...) or a
// bound "tick" variable passed by reference. Heuristic: the tick argument
// has no dedicated syntax in the source.
func tickVariable(argsText string) string {
	if argsText == "" {
		return ""
	}
	if m := tickCallRe.FindStringSubmatch(argsText); m != nil {
		return m[1] + ".tick()"
	}
	if m := tickIdentRe.FindStringSubmatch(argsText); m != nil {
		return m[1]
	}
	return ""
}
