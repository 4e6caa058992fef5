package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"flowlens/internal/engine/analyzer"
	"flowlens/internal/engine/operators"
	"flowlens/internal/engine/typecache"
)

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Analyzer      Analyzer      `toml:"analyzer"`
	Cache         Cache         `toml:"cache"`
	Operators     Operators     `toml:"operators"`
	Exclude       Exclude       `toml:"exclude"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	CaptureFile string `toml:"capture_file"`
}

type Analyzer struct {
	BatchSize   int     `toml:"batch_size"`
	OracleRate  float64 `toml:"oracle_rate"`
	OracleBurst int     `toml:"oracle_burst"`
}

type Cache struct {
	TTL            time.Duration `toml:"ttl"`
	BudgetMB       int64         `toml:"budget_mb"`
	EntryCostBytes int64         `toml:"entry_cost_bytes"`
}

type Operators struct {
	ExtraSources      []string `toml:"extra_sources"`
	ExtraSinks        []string `toml:"extra_sinks"`
	ExtraJoins        []string `toml:"extra_joins"`
	ExtraNetworking   []string `toml:"extra_networking"`
	ExtraAggregations []string `toml:"extra_aggregations"`
	ExtraTees         []string `toml:"extra_tees"`
	ExtraTransforms   []string `toml:"extra_transforms"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Observability struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateAnalyzer(&cfg); err != nil {
		return nil, err
	}
	if err := validateCache(&cfg); err != nil {
		return nil, err
	}
	if err := validateObservability(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.ProjectRoot) == "" {
		cfg.Paths.ProjectRoot = "."
	}

	if cfg.Analyzer.BatchSize <= 0 {
		cfg.Analyzer.BatchSize = analyzer.DefaultBatchSize
	}
	if cfg.Analyzer.OracleRate <= 0 {
		cfg.Analyzer.OracleRate = analyzer.DefaultOracleRate
	}
	if cfg.Analyzer.OracleBurst <= 0 {
		cfg.Analyzer.OracleBurst = cfg.Analyzer.BatchSize
	}

	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = typecache.DefaultTTL
	}
	if cfg.Cache.BudgetMB <= 0 {
		cfg.Cache.BudgetMB = typecache.DefaultBudgetBytes / (1024 * 1024)
	}
	if cfg.Cache.EntryCostBytes <= 0 {
		cfg.Cache.EntryCostBytes = typecache.DefaultEntryCostBytes
	}

	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "target"}
	}

	// Default debounce if not set.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9135"
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateAnalyzer(cfg *Config) error {
	if cfg.Analyzer.BatchSize > 256 {
		return fmt.Errorf("analyzer.batch_size must be <= 256, got %d", cfg.Analyzer.BatchSize)
	}
	if cfg.Analyzer.OracleBurst < cfg.Analyzer.BatchSize {
		return fmt.Errorf("analyzer.oracle_burst must be >= analyzer.batch_size, got %d < %d",
			cfg.Analyzer.OracleBurst, cfg.Analyzer.BatchSize)
	}
	return nil
}

func validateCache(cfg *Config) error {
	if cfg.Cache.BudgetMB > 4096 {
		return fmt.Errorf("cache.budget_mb must be <= 4096, got %d", cfg.Cache.BudgetMB)
	}
	if cfg.Cache.EntryCostBytes > cfg.Cache.BudgetMB*1024*1024 {
		return fmt.Errorf("cache.entry_cost_bytes exceeds the whole budget")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if !cfg.Observability.Enabled {
		return nil
	}
	addr := strings.TrimSpace(cfg.Observability.Address)
	if addr == "" {
		return fmt.Errorf("observability.address must not be empty when observability is enabled")
	}
	if !strings.Contains(addr, ":") {
		return fmt.Errorf("observability.address must be host:port, got %q", addr)
	}
	return nil
}

// AnalyzerConfig maps the file-level settings onto the engine's own config.
func (c *Config) AnalyzerConfig() analyzer.Config {
	return analyzer.Config{
		BatchSize:   c.Analyzer.BatchSize,
		OracleRate:  c.Analyzer.OracleRate,
		OracleBurst: c.Analyzer.OracleBurst,
	}
}

func (c *Config) CacheConfig() typecache.Config {
	return typecache.Config{
		TTL:            c.Cache.TTL,
		BudgetBytes:    c.Cache.BudgetMB * 1024 * 1024,
		EntryCostBytes: c.Cache.EntryCostBytes,
	}
}

func (c *Config) OperatorConfig() operators.Config {
	return operators.Config{
		ExtraSources:      c.Operators.ExtraSources,
		ExtraSinks:        c.Operators.ExtraSinks,
		ExtraJoins:        c.Operators.ExtraJoins,
		ExtraNetworking:   c.Operators.ExtraNetworking,
		ExtraAggregations: c.Operators.ExtraAggregations,
		ExtraTees:         c.Operators.ExtraTees,
		ExtraTransforms:   c.Operators.ExtraTransforms,
	}
}
