package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"flowlens/internal/core/config"
	"flowlens/internal/core/ports"
	"flowlens/internal/engine/analyzer"
	"flowlens/internal/engine/hierarchy"
	"flowlens/internal/engine/operators"
	"flowlens/internal/engine/structure"
	"flowlens/internal/engine/typecache"
	"flowlens/internal/shared/observability"
	"flowlens/internal/watcher"
)

type App struct {
	Config   *config.Config
	Analyzer *analyzer.Analyzer
}

// FileReport is the result of analyzing one source file.
type FileReport struct {
	Path        string
	Infos       []analyzer.LocationInfo
	Nodes       []hierarchy.Node
	Hierarchies hierarchy.Result
}

func NewApp(cfg *config.Config, oracle ports.TypeOracle) (*App, error) {
	parser := structure.NewParser()
	cache := typecache.New(cfg.CacheConfig())

	a, err := analyzer.New(cfg.AnalyzerConfig(), analyzer.Deps{
		Oracle:     oracle,
		Structural: parser,
		Candidates: parser,
		Cache:      cache,
		Classifier: operators.NewClassifier(cfg.OperatorConfig()),
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Analyzer: a,
	}, nil
}

// ScanDirectories collects the Rust sources under the given roots, honoring
// the exclude globs from the config.
func (a *App) ScanDirectories(paths []string) ([]string, error) {
	var files []string

	dirGlobs := make([]glob.Glob, 0, len(a.Config.Exclude.Dirs))
	for _, p := range a.Config.Exclude.Dirs {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude dir pattern %q: %w", p, err)
		}
		dirGlobs = append(dirGlobs, g)
	}

	fileGlobs := make([]glob.Glob, 0, len(a.Config.Exclude.Files))
	for _, p := range a.Config.Exclude.Files {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude file pattern %q: %w", p, err)
		}
		fileGlobs = append(fileGlobs, g)
	}

	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			base := filepath.Base(path)

			if d.IsDir() {
				for _, g := range dirGlobs {
					if g.Match(base) {
						return filepath.SkipDir
					}
				}
				return nil
			}

			if filepath.Ext(path) != ".rs" {
				return nil
			}

			for _, g := range fileGlobs {
				if g.Match(base) {
					return nil
				}
			}

			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func (a *App) AnalyzeFile(ctx context.Context, path string) (*FileReport, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := ports.Document{Path: path, Content: content}

	infos, err := a.Analyzer.AnalyzeDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	nodes, err := a.Analyzer.DiscoverNodes(ctx, doc)
	if err != nil {
		return nil, err
	}

	return &FileReport{
		Path:        path,
		Infos:       infos,
		Nodes:       nodes,
		Hierarchies: a.Analyzer.BuildHierarchies(nodes, doc),
	}, nil
}

func (a *App) AnalyzeAll(ctx context.Context, paths []string) ([]*FileReport, error) {
	files, err := a.ScanDirectories(paths)
	if err != nil {
		return nil, err
	}

	reports := make([]*FileReport, 0, len(files))
	for _, path := range files {
		report, err := a.AnalyzeFile(ctx, path)
		if err != nil {
			slog.Warn("failed to analyze file", "path", path, "error", err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// HandleChanges is the watcher callback: changed files get their cached type
// answers dropped and are re-analyzed.
func (a *App) HandleChanges(paths []string) {
	slog.Info("detected changes", "count", len(paths))
	start := time.Now()

	ctx := context.Background()
	for _, path := range paths {
		a.Analyzer.ClearCache(path)

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		report, err := a.AnalyzeFile(ctx, path)
		if err != nil {
			slog.Warn("failed to re-analyze file", "path", path, "error", err)
			continue
		}
		a.PrintReport(report)
	}

	a.PrintSummary(len(paths), time.Since(start))
}

func (a *App) StartWatcher() error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Exclude.Dirs,
		a.Config.Exclude.Files,
		a.HandleChanges,
	)
	if err != nil {
		return err
	}
	// Note: we don't close here, it should run forever
	return w.Watch([]string{a.Config.Paths.ProjectRoot})
}

func (a *App) Health() observability.HealthStatus {
	status := observability.HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if a.Analyzer == nil {
		status.Status = "degraded"
		status.Components["analyzer"] = "missing"
	} else {
		stats := a.Analyzer.CacheStats()
		status.Components["analyzer"] = "ok"
		status.Components["cache"] = fmt.Sprintf("ok (%d files, %d entries, %.2f MB)",
			stats.NumFiles, stats.TotalEntries, stats.EstimatedMemoryMB)
	}

	return status
}

func (a *App) PrintReport(r *FileReport) {
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("%s: %d located expressions, %d graph nodes\n", r.Path, len(r.Infos), len(r.Nodes))

	for _, info := range r.Infos {
		fmt.Printf("   %3d:%-3d %-24s %-14s %s\n",
			info.Range.Start.Line, info.Range.Start.Column,
			info.OperatorName, info.Category, info.LocationType)
	}

	if len(r.Nodes) > 0 {
		fmt.Println("Location hierarchy:")
		printContainer(r.Hierarchies.Location, r.Nodes, r.Hierarchies.Assignments.Location, "   ")
		fmt.Println("Code hierarchy:")
		printContainer(r.Hierarchies.Code, r.Nodes, r.Hierarchies.Assignments.Code, "   ")
	}
}

func (a *App) PrintSummary(fileCount int, duration time.Duration) {
	stats := a.Analyzer.CacheStats()
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("Update: %d files in %v\n", fileCount, duration)
	fmt.Printf("Cache: %d files, %d entries, %.2f MB estimated\n",
		stats.NumFiles, stats.TotalEntries, stats.EstimatedMemoryMB)
}

func printContainer(c *hierarchy.Container, nodes []hierarchy.Node, assign map[string]string, indent string) {
	if c == nil {
		return
	}
	fmt.Printf("%s%s\n", indent, c.Name)
	for _, n := range nodes {
		if assign[n.ID] == c.ID {
			fmt.Printf("%s   * %s\n", indent, n.ShortLabel)
		}
	}
	for _, child := range c.Children {
		printContainer(child, nodes, assign, indent+"   ")
	}
}
