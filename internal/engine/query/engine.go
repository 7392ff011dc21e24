package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"symgraph/internal/core/errors"
	"symgraph/internal/engine/address"
	"symgraph/internal/engine/graph"
	"symgraph/internal/engine/inference"
	"symgraph/internal/shared/observability"
	"symgraph/internal/shared/util"
)

// Traverser is the slice of the inference engine the executor needs.
type Traverser interface {
	Hierarchical(ctx context.Context, rootID string, edgeType graph.EdgeType, opts inference.HierarchicalOptions) (*inference.Result, error)
}

// Options configures the engine.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	// Timeout bounds a single execution when the caller's context carries
	// no deadline of its own. Zero disables the bound.
	Timeout time.Duration
}

const defaultCacheSize = 256

// Result is one executed query. Nodes are sorted by address string so equal
// queries yield byte-equal results.
type Result struct {
	Dialect   Dialect       `json:"dialect"`
	Nodes     []graph.Node  `json:"nodes"`
	Total     int           `json:"total"`
	FromCache bool          `json:"fromCache"`
	Duration  time.Duration `json:"duration"`
}

// CacheInfo is the ManageCache report.
type CacheInfo struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
	Pruned   int    `json:"pruned,omitempty"`
}

// Engine compiles query text into plans and executes them read-only. Results
// are memoized in an LRU keyed by (dialect, normalized text); any edge write
// to the store clears the whole cache.
type Engine struct {
	store     graph.Store
	traverser Traverser
	cache     *util.LRUCache[string, []graph.Node]
	opts      Options
}

func New(store graph.Store, traverser Traverser, opts Options) *Engine {
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	e := &Engine{
		store:     store,
		traverser: traverser,
		cache:     util.NewLRUCache[string, []graph.Node](opts.CacheSize),
		opts:      opts,
	}
	if cn, ok := store.(graph.ChangeNotifier); ok {
		cn.OnEdgeWrite(func(graph.Edge) { e.cache.Clear() })
	}
	return e
}

// Execute auto-detects the dialect and runs the query.
func (e *Engine) Execute(ctx context.Context, raw string) (*Result, error) {
	return e.ExecuteDialect(ctx, raw, "")
}

// ExecuteDialect runs the query in an explicit dialect. An empty dialect
// auto-detects.
func (e *Engine) ExecuteDialect(ctx context.Context, raw string, dialect Dialect) (*Result, error) {
	if dialect == "" {
		dialect = Detect(raw)
	}
	dialect = Canonical(dialect)

	ctx, span := observability.Tracer.Start(ctx, "query.Execute",
		trace.WithAttributes(attribute.String("dialect", string(dialect))))
	defer span.End()

	observability.ActiveQueries.Inc()
	defer observability.ActiveQueries.Dec()

	start := time.Now()
	defer func() {
		observability.QueryDuration.WithLabelValues(string(dialect)).Observe(time.Since(start).Seconds())
	}()

	if e.opts.Timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
			defer cancel()
		}
	}

	plan, err := Compile(raw, dialect)
	if err != nil {
		observability.QueryErrorsTotal.WithLabelValues(string(errors.CodeOf(err))).Inc()
		return nil, err
	}

	key := string(dialect) + "|" + strings.Join(strings.Fields(raw), " ")
	if nodes, ok := e.cache.Get(key); ok {
		observability.QueryCacheHitsTotal.Inc()
		return &Result{
			Dialect:   dialect,
			Nodes:     nodes,
			Total:     len(nodes),
			FromCache: true,
			Duration:  time.Since(start),
		}, nil
	}

	nodes, err := e.run(ctx, plan)
	if err != nil {
		observability.QueryErrorsTotal.WithLabelValues(string(errors.CodeOf(err))).Inc()
		return nil, err
	}

	e.cache.PutTTL(key, nodes, e.opts.CacheTTL)
	return &Result{
		Dialect:  dialect,
		Nodes:    nodes,
		Total:    len(nodes),
		Duration: time.Since(start),
	}, nil
}

func (e *Engine) run(ctx context.Context, plan Plan) ([]graph.Node, error) {
	var candidates []graph.Node
	var err error

	if plan.Traverse != nil {
		candidates, err = e.traverse(ctx, plan.Traverse)
	} else {
		candidates, err = e.store.AllNodes(nil)
	}
	if err != nil {
		return nil, err
	}

	matched := make([]graph.Node, 0, len(candidates))
	for _, n := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeQueryTimeout, "query deadline exceeded")
		}
		if plan.matches(n) {
			matched = append(matched, n)
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Address < matched[j].Address })

	if plan.Limit > 0 && len(matched) > plan.Limit {
		matched = matched[:plan.Limit]
	}
	return matched, nil
}

func (e *Engine) traverse(ctx context.Context, tr *Traverse) ([]graph.Node, error) {
	root, err := e.resolveRoot(tr.Root)
	if err != nil {
		return nil, err
	}

	res, err := e.traverser.Hierarchical(ctx, root, tr.Edge, inference.HierarchicalOptions{
		IncludeChildren: !tr.Reverse,
		MaxDepth:        tr.Depth,
	})
	if err != nil {
		return nil, err
	}

	nodes := make([]graph.Node, 0, len(res.Nodes))
	for _, tn := range res.Nodes {
		nodes = append(nodes, tn.Node)
	}
	return nodes, nil
}

// resolveRoot accepts a full address or a bare symbol name. A bare name
// resolves to the lowest-addressed node with that name.
func (e *Engine) resolveRoot(root string) (string, error) {
	if address.Parse(root).IsValid {
		return root, nil
	}

	nodes, err := e.store.AllNodes(func(n graph.Node) bool { return n.Name == root })
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "resolve root")
	}
	if len(nodes) == 0 {
		return "", errors.AddContext(
			errors.Newf(errors.CodeNodeNotFound, "no node named %q", root),
			errors.CtxAddress, root)
	}
	return nodes[0].Address, nil
}

// ManageCache runs a cache maintenance action: "clear" empties it, "stats"
// reports counters, "optimize" prunes expired entries.
func (e *Engine) ManageCache(action string) (CacheInfo, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "clear":
		e.cache.Clear()
	case "optimize":
		pruned := e.cache.PruneExpired()
		info := e.cacheInfo()
		info.Pruned = pruned
		return info, nil
	case "stats":
	default:
		return CacheInfo{}, errors.Newf(errors.CodeValidationError,
			"unknown cache action %q, want clear, stats, or optimize", action)
	}
	return e.cacheInfo(), nil
}

func (e *Engine) cacheInfo() CacheInfo {
	hits, misses := e.cache.Stats()
	return CacheInfo{
		Hits:     hits,
		Misses:   misses,
		Entries:  e.cache.Len(),
		Capacity: e.cache.Cap(),
	}
}
