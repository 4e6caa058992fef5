package oracle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"flowlens/internal/core/errors"
	"flowlens/internal/core/ports"
)

func TestStaticOracle_Lookup(t *testing.T) {
	o := NewStatic(map[string]map[string]string{
		"flow.rs": {
			"9:10": "Stream<i32, Process<'a, Leader>, Unbounded>",
		},
	})
	ctx := context.Background()

	// Base-name lookup keeps captures portable across checkouts.
	doc := ports.Document{Path: "/work/project/src/flow.rs"}
	text, err := o.QueryTypeAtPosition(ctx, doc, ports.Position{Line: 9, Column: 10})
	if err != nil {
		t.Fatal(err)
	}
	if text == nil || *text != "Stream<i32, Process<'a, Leader>, Unbounded>" {
		t.Fatalf("got %v", text)
	}

	// Unknown positions are a clean "no answer", not an error.
	text, err = o.QueryTypeAtPosition(ctx, doc, ports.Position{Line: 1, Column: 1})
	if err != nil || text != nil {
		t.Fatalf("want nil, nil; got %v, %v", text, err)
	}
	text, err = o.QueryTypeAtPosition(ctx, ports.Document{Path: "other.rs"}, ports.Position{Line: 9, Column: 10})
	if err != nil || text != nil {
		t.Fatalf("want nil, nil; got %v, %v", text, err)
	}
}

func TestLoadStatic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.json")
	payload := `{"flow.rs": {"3:5": "Process<'a, Leader>"}}`
	if err := os.WriteFile(path, []byte(payload), 0600); err != nil {
		t.Fatal(err)
	}

	o, err := LoadStatic(path)
	if err != nil {
		t.Fatal(err)
	}
	text, err := o.QueryTypeAtPosition(context.Background(), ports.Document{Path: "flow.rs"}, ports.Position{Line: 3, Column: 5})
	if err != nil {
		t.Fatal(err)
	}
	if text == nil || *text != "Process<'a, Leader>" {
		t.Fatalf("got %v", text)
	}

	if _, err := LoadStatic(filepath.Join(dir, "missing.json")); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("want NOT_FOUND, got %v", err)
	}
	if err := os.WriteFile(path, []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadStatic(path); !errors.IsCode(err, errors.CodeValidationError) {
		t.Fatalf("want VALIDATION_ERROR, got %v", err)
	}
}
