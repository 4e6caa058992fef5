package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"flowlens/internal/core/config"
	"flowlens/internal/engine/oracle"
	"flowlens/internal/shared/observability"
)

var (
	configPath  = flag.String("config", "./flowlens.toml", "Path to config file")
	captureFile = flag.String("capture", "", "Path to a JSON signature capture (overrides config)")
	once        = flag.Bool("once", false, "Run single analysis pass and exit")
	stats       = flag.Bool("stats", false, "Print cache statistics after analysis")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	version     = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("flowlens v%s\n", VERSION)
		os.Exit(0)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./flowlens.toml" {
			cfg, err = config.Load("./flowlens.example.toml")
		}
		if err != nil {
			slog.Warn("no config file found, using defaults", "error", err)
			cfg = config.Default()
		}
	}

	if flag.NArg() > 0 {
		cfg.Paths.ProjectRoot = flag.Arg(0)
	}
	if *captureFile != "" {
		cfg.Paths.CaptureFile = *captureFile
	}
	if cfg.Paths.CaptureFile == "" {
		fmt.Fprintln(os.Stderr, "no signature capture configured; pass -capture or set paths.capture_file")
		os.Exit(1)
	}

	typeOracle, err := oracle.LoadStatic(cfg.Paths.CaptureFile)
	if err != nil {
		slog.Error("failed to load signature capture", "path", cfg.Paths.CaptureFile, "error", err)
		os.Exit(1)
	}

	app, err := NewApp(cfg, typeOracle)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if cfg.Observability.Enabled {
		srv := observability.NewServer(cfg.Observability.Address, func(context.Context) observability.HealthStatus {
			return app.Health()
		})
		if err := srv.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			os.Exit(1)
		}
		defer srv.Stop(ctx)
	}

	// Initial pass
	reports, err := app.AnalyzeAll(ctx, []string{cfg.Paths.ProjectRoot})
	if err != nil {
		slog.Error("initial analysis failed", "error", err)
		os.Exit(1)
	}
	for _, report := range reports {
		app.PrintReport(report)
	}

	if *stats {
		s := app.Analyzer.CacheStats()
		fmt.Printf("Cache: %d files, %d entries, %.2f MB estimated\n",
			s.NumFiles, s.TotalEntries, s.EstimatedMemoryMB)
	}

	if *once {
		os.Exit(0)
	}

	// Watch mode
	if err := app.StartWatcher(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	// Block forever
	select {}
}
