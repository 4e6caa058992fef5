package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowlens.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	content := `
version = 1

[paths]
project_root = "./src"
capture_file = "types.json"

[analyzer]
batch_size = 4
oracle_rate = 10.0

[cache]
ttl = "2m"
budget_mb = 20

[operators]
extra_sources = ["source_file"]
extra_transforms = ["triple"]

[exclude]
dirs = [".git", "target", "node_modules"]
files = ["*_generated.rs"]

[watch]
debounce = "1s"

[observability]
enabled = true
address = "127.0.0.1:9200"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Paths.ProjectRoot != "./src" {
		t.Errorf("project_root = %q", cfg.Paths.ProjectRoot)
	}
	if cfg.Analyzer.BatchSize != 4 {
		t.Errorf("batch_size = %d", cfg.Analyzer.BatchSize)
	}
	// Burst defaults to batch size when unset.
	if cfg.Analyzer.OracleBurst != 4 {
		t.Errorf("oracle_burst = %d", cfg.Analyzer.OracleBurst)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("ttl = %v", cfg.Cache.TTL)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
	if len(cfg.Operators.ExtraSources) != 1 || cfg.Operators.ExtraSources[0] != "source_file" {
		t.Errorf("extra_sources = %v", cfg.Operators.ExtraSources)
	}

	cc := cfg.CacheConfig()
	if cc.BudgetBytes != 20*1024*1024 {
		t.Errorf("BudgetBytes = %d", cc.BudgetBytes)
	}
	ac := cfg.AnalyzerConfig()
	if ac.OracleRate != 10.0 {
		t.Errorf("OracleRate = %v", ac.OracleRate)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("version = %d", cfg.Version)
	}
	if cfg.Paths.ProjectRoot != "." {
		t.Errorf("project_root = %q", cfg.Paths.ProjectRoot)
	}
	if cfg.Analyzer.BatchSize != 8 {
		t.Errorf("batch_size = %d", cfg.Analyzer.BatchSize)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("ttl = %v", cfg.Cache.TTL)
	}
	if cfg.Cache.BudgetMB != 10 {
		t.Errorf("budget_mb = %d", cfg.Cache.BudgetMB)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
	if cfg.Observability.Enabled {
		t.Error("observability should default to disabled")
	}
	if len(cfg.Exclude.Dirs) == 0 {
		t.Error("exclude.dirs should have defaults")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad version",
			content: "version = 3\n",
			wantErr: "unsupported config version",
		},
		{
			name:    "oversized batch",
			content: "[analyzer]\nbatch_size = 1000\noracle_burst = 1000\n",
			wantErr: "batch_size",
		},
		{
			name:    "burst below batch",
			content: "[analyzer]\nbatch_size = 16\noracle_burst = 2\n",
			wantErr: "oracle_burst",
		},
		{
			name:    "entry cost beyond budget",
			content: "[cache]\nbudget_mb = 1\nentry_cost_bytes = 2097152\n",
			wantErr: "entry_cost_bytes",
		},
		{
			name:    "observability address without port",
			content: "[observability]\nenabled = true\naddress = \"localhost\"\n",
			wantErr: "host:port",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
