// Package ports defines the collaborator interfaces the analysis engine is
// built against. Concrete adapters (tree-sitter structural parsing, the
// captured-signature oracle) live in their own packages; the engine only
// sees these contracts.
package ports

import (
	"context"
	"fmt"
)

// Document is an in-memory source file under analysis.
type Document struct {
	Path    string
	Content []byte
}

// Position is a 1-based line/column pair inside a document.
type Position struct {
	Line   int
	Column int
}

func (p Position) Key() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Range spans from Start to End, inclusive of Start, exclusive of End.
type Range struct {
	Start Position
	End   Position
}

// OperatorCall is one call site inside a method chain. TickVar is the
// identifier the call obtains its tick context from, when one is present in
// its arguments.
type OperatorCall struct {
	Name     string
	Position Position
	TickVar  string
}

// VariableBinding is a `let name = <chain>` statement together with the
// operator calls of its right-hand side. Line and Column locate the bound
// pattern itself.
type VariableBinding struct {
	VarName   string
	Line      int
	Column    int
	Operators []OperatorCall
}

// Candidate is an identifier occurrence worth probing for a type.
type Candidate struct {
	Name     string
	Position Position
}

// StructuralParser extracts the coarse structure the hierarchy builder needs.
// It is deliberately not a full grammar: operator chains, variable bindings
// and enclosing function names are all the engine consumes.
type StructuralParser interface {
	VariableBindings(doc Document) ([]VariableBinding, error)
	StandaloneChains(doc Document) ([][]OperatorCall, error)
	EnclosingFunction(doc Document, pos Position) string
}

// CandidateSource produces the identifier occurrences to probe.
type CandidateSource interface {
	Candidates(doc Document) ([]Candidate, error)
}

// TypeOracle resolves the type at a position. A nil result with a nil error
// means the oracle has no answer for that position; the caller caches the
// absence to avoid re-asking.
type TypeOracle interface {
	QueryTypeAtPosition(ctx context.Context, doc Document, pos Position) (*string, error)
}
