// Package app assembles the configured store, extractor, engines, and
// realtime server into one running process.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"symgraph/internal/core/config"
	"symgraph/internal/data/graphstore"
	"symgraph/internal/engine/extract"
	"symgraph/internal/engine/graph"
	"symgraph/internal/engine/inference"
	"symgraph/internal/engine/query"
	"symgraph/internal/realtime"
	"symgraph/internal/shared/observability"
	"symgraph/internal/watcher"
)

// graphCounter is the optional store surface used for stats and health.
// Both the memory store and the sqlite store implement it.
type graphCounter interface {
	NodeCount() int
	EdgeCount() int
}

// fileRemover is the store surface driving watch-mode deletions.
type fileRemover interface {
	RemoveFile(project, filePath string) error
}

// App owns every long-lived component. Construct with New, shut down with
// Close.
type App struct {
	Config    *config.Config
	Store     graph.Store
	Extractor *extract.Extractor
	Inference *inference.RealtimeEngine
	Query     *query.Engine
	Realtime  *realtime.System
	Poller    *realtime.Poller

	writer  graph.BatchWriter
	remover fileRemover

	activeWatcher *watcher.Watcher

	tracingShutdown func(context.Context) error
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	writer, ok := store.(graph.BatchWriter)
	if !ok {
		store.Close()
		return nil, fmt.Errorf("store driver %q does not accept batches", cfg.DB.Driver)
	}
	remover, ok := store.(fileRemover)
	if !ok {
		store.Close()
		return nil, fmt.Errorf("store driver %q cannot remove files", cfg.DB.Driver)
	}

	inf := inference.NewRealtime(store,
		inference.Options{
			EnableParallel: cfg.Inference.Parallel,
			MaxConcurrency: cfg.Inference.MaxConcurrency,
			CacheSize:      cfg.Inference.CacheSize,
			CacheTTL:       cfg.Inference.CacheTTL,
		},
		inference.RealtimeOptions{
			EnableAutoInference: cfg.Inference.AutoInference,
			RuleIDs:             ruleAllowList(cfg.Inference.Rules),
		})
	registerBuiltinRules(inf.Engine)

	qe := query.New(store, inf, query.Options{
		CacheSize: cfg.Query.CacheSize,
		CacheTTL:  cfg.Query.CacheTTL,
		Timeout:   cfg.Query.Timeout,
	})

	sys := realtime.NewSystem(store, qe, realtime.Config{
		MaxConnections: cfg.Realtime.MaxConnections,
		PollInterval:   cfg.Realtime.PollInterval,
		QueryTimeout:   cfg.Realtime.QueryTimeout,
		MaxConcurrency: cfg.Realtime.MaxConcurrency,
	})

	shutdown, err := observability.InitTracing(ctx, cfg.Observability.TraceEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		shutdown = func(context.Context) error { return nil }
	}

	return &App{
		Config:          cfg,
		Store:           store,
		Extractor:       extract.New(cfg.Project.Name, cfg.Languages),
		Inference:       inf,
		Query:           qe,
		Realtime:        sys,
		Poller:          realtime.NewPoller(sys),
		writer:          writer,
		remover:         remover,
		tracingShutdown: shutdown,
	}, nil
}

func openStore(cfg *config.Config) (graph.Store, error) {
	switch cfg.DB.Driver {
	case "sqlite":
		return graphstore.Open(cfg.DB.Path)
	case "memory":
		return graph.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DB.Driver)
	}
}

// ruleAllowList maps the config's empty slice to "all rules" (nil).
func ruleAllowList(rules []string) []string {
	if len(rules) == 0 {
		return nil
	}
	return rules
}

// registerBuiltinRules installs the stock derivation rules. Config rule
// allow-lists select among these by ID.
func registerBuiltinRules(e *inference.Engine) {
	must := func(err error) {
		if err != nil {
			slog.Error("failed to register builtin rule", "error", err)
		}
	}

	must(e.RegisterRule(inference.Rule{
		ID: "imports-to-depends",
		Predicate: func(_ graph.Node, edge graph.Edge) bool {
			return edge.Type == graph.EdgeImports
		},
		Transform: func(_ graph.Node, edge graph.Edge) graph.Edge {
			return graph.Edge{From: edge.From, To: edge.To, Type: graph.EdgeDependsOn}
		},
	}))

	must(e.RegisterRule(inference.Rule{
		ID: "calls-to-used-by",
		Predicate: func(_ graph.Node, edge graph.Edge) bool {
			return edge.Type == graph.EdgeCalls
		},
		Transform: func(_ graph.Node, edge graph.Edge) graph.Edge {
			return graph.Edge{From: edge.To, To: edge.From, Type: graph.EdgeUsedBy}
		},
	}))

	must(e.RegisterRule(inference.Rule{
		ID: "contains-to-defined-in",
		Predicate: func(_ graph.Node, edge graph.Edge) bool {
			return edge.Type == graph.EdgeContains
		},
		Transform: func(_ graph.Node, edge graph.Edge) graph.Edge {
			return graph.Edge{From: edge.To, To: edge.From, Type: graph.EdgeDefinedIn}
		},
	}))
}

// Stats is the one-line process summary used by the CLI and health endpoint.
type Stats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

func (a *App) Stats() Stats {
	var s Stats
	if c, ok := a.Store.(graphCounter); ok {
		s.Nodes = c.NodeCount()
		s.Edges = c.EdgeCount()
	}
	return s
}

// Close tears the process down in dependency order: watcher first so no new
// writes arrive, then the realtime layer, then the store.
func (a *App) Close(ctx context.Context) error {
	var errs []string

	if a.activeWatcher != nil {
		if err := a.activeWatcher.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("watcher: %v", err))
		}
	}
	if a.Poller != nil {
		a.Poller.Stop()
	}
	if a.Realtime != nil {
		a.Realtime.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("store: %v", err))
		}
	}
	if a.tracingShutdown != nil {
		if err := a.tracingShutdown(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("tracing: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close: %s", strings.Join(errs, "; "))
	}
	return nil
}
