// Package oracle provides TypeOracle implementations. The live editor-host
// oracle is not part of this tool; StaticOracle replays signatures captured
// from it, which is what the CLI and the test suite run against.
package oracle

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"flowlens/internal/core/errors"
	"flowlens/internal/core/ports"
)

// StaticOracle answers type queries from a captured-signature table:
// file name -> "line:col" -> raw type or signature text.
type StaticOracle struct {
	byFile map[string]map[string]string
}

var _ ports.TypeOracle = (*StaticOracle)(nil)

func NewStatic(entries map[string]map[string]string) *StaticOracle {
	if entries == nil {
		entries = make(map[string]map[string]string)
	}
	return &StaticOracle{byFile: entries}
}

// LoadStatic reads a JSON capture file.
func LoadStatic(path string) (*StaticOracle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNotFound, "signature capture not readable")
	}
	var entries map[string]map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "signature capture malformed")
	}
	return NewStatic(entries), nil
}

// QueryTypeAtPosition returns the captured text for a position, or nil when
// nothing was captured there. Lookup tries the full document path first,
// then its base name so captures stay portable across checkouts.
func (o *StaticOracle) QueryTypeAtPosition(_ context.Context, doc ports.Document, pos ports.Position) (*string, error) {
	table, ok := o.byFile[doc.Path]
	if !ok {
		table, ok = o.byFile[filepath.Base(doc.Path)]
	}
	if !ok {
		return nil, nil
	}
	text, ok := table[pos.Key()]
	if !ok {
		return nil, nil
	}
	return &text, nil
}
