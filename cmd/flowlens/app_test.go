package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"flowlens/internal/core/config"
	"flowlens/internal/engine/oracle"
)

const appTestSource = `fn flow<'a>(flow: &FlowBuilder<'a>) {
    let process = flow.process::<()>();
    let numbers = process
        .source_iter(q!(vec![1, 2, 3]))
        .map(q!(|x| x + 1));
    numbers.for_each(q!(|n| println!("{}", n)));
}
`

func TestApp(t *testing.T) {
	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "flow.rs"), []byte(appTestSource), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("not rust"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, "target"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "target", "gen.rs"), []byte("fn gen() {}"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Paths.ProjectRoot = tmpDir

	app, err := NewApp(cfg, oracle.NewStatic(map[string]map[string]string{
		"flow.rs": {},
	}))
	if err != nil {
		t.Fatal(err)
	}

	files, err := app.ScanDirectories([]string{tmpDir})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "flow.rs" {
		t.Fatalf("scan returned %v, want only flow.rs", files)
	}

	reports, err := app.AnalyzeAll(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	// Without captured signatures nothing resolves, but the pass itself
	// must complete cleanly.
	if len(reports[0].Infos) != 0 {
		t.Errorf("unexpected located expressions: %v", reports[0].Infos)
	}

	status := app.Health()
	if status.Status != "up" {
		t.Errorf("health = %q", status.Status)
	}
	if _, ok := status.Components["cache"]; !ok {
		t.Error("health report is missing the cache component")
	}
}
