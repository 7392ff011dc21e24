// # cmd/symgraph/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"symgraph/internal/core/app"
	"symgraph/internal/core/config"
)

var (
	configPath = flag.String("config", "./symgraph.toml", "Path to config file")
	once       = flag.Bool("once", false, "Run single scan and exit")
	serve      = flag.Bool("serve", false, "Serve the realtime query endpoint")
	queryText  = flag.String("query", "", "Execute one query and print the result as JSON")
	ui         = flag.Bool("ui", false, "Enable terminal UI mode")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("symgraph v%s\n", VERSION)
		os.Exit(0)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stdout
	if *ui {
		// In UI mode, avoid stdout logs corrupting the TUI.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
			if err == nil {
				output = f
			} else {
				fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load config; a missing default path falls back to built-in defaults
	// rooted at the current directory.
	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./symgraph.toml" && os.IsNotExist(err) {
			slog.Info("no config file found, using defaults")
			cfg = config.Default(".")
		} else {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	if flag.NArg() > 0 {
		cfg.Project.Root = flag.Arg(0)
		cfg.Watch.Paths = []string{flag.Arg(0)}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			slog.Warn("shutdown incomplete", "error", err)
		}
	}()

	// Initial scan
	res, err := a.InitialScan(ctx)
	if err != nil {
		slog.Error("initial scan failed", "error", err)
		os.Exit(1)
	}
	slog.Info("scan complete",
		"files", res.FilesScanned, "nodes", res.Nodes, "edges", res.Edges,
		"duration", res.Duration, "warnings", len(res.Warnings))

	if *queryText != "" {
		result, err := a.Query.Execute(ctx, *queryText)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		return
	}

	if *once {
		return
	}

	// Watch mode
	if err := a.StartWatcher(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	if cfg.Observability.Enabled {
		a.NewObservabilityServer().Start()
	}
	if *serve || cfg.Realtime.Enabled {
		a.NewRealtimeServer().Start()
		a.Poller.Start(ctx)
	}

	if *ui {
		if err := runUI(ctx, a); err != nil {
			slog.Error("failed to run UI", "error", err)
			os.Exit(1)
		}
		return
	}

	<-ctx.Done()
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "symgraph", "symgraph.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "symgraph", "symgraph.log")
	}

	return "symgraph.log"
}
