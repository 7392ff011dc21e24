package inference

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"symgraph/internal/core/errors"
	"symgraph/internal/engine/graph"
	"symgraph/internal/shared/observability"
	"symgraph/internal/shared/util"
)

// Options configures the optimized engine.
type Options struct {
	EnableParallel bool
	MaxConcurrency int
	CacheSize      int
	CacheTTL       time.Duration
}

const (
	defaultCacheSize      = 512
	defaultMaxConcurrency = 4
)

// OptimizedEngine runs the same algorithms as Engine with results memoized
// by (root, edgeType, params). Cache entries are invalidated whenever an
// edge touching a node in the cached path set is written to the store. With
// EnableParallel set, independent branches discovered at the first fan-out
// level run concurrently, bounded by MaxConcurrency.
type OptimizedEngine struct {
	*Engine
	opts Options
	memo *util.LRUCache[string, *Result]

	mu         sync.Mutex
	keysByAddr map[string]map[string]bool // address -> memo keys whose path set touches it
}

func NewOptimized(store graph.Store, opts Options) *OptimizedEngine {
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}

	oe := &OptimizedEngine{
		Engine:     NewEngine(store),
		opts:       opts,
		memo:       util.NewLRUCache[string, *Result](opts.CacheSize),
		keysByAddr: make(map[string]map[string]bool),
	}
	if cn, ok := store.(graph.ChangeNotifier); ok {
		cn.OnEdgeWrite(oe.invalidate)
	}
	return oe
}

func memoKey(kind, rootID string, edgeType graph.EdgeType, params string) string {
	return kind + "|" + rootID + "|" + string(edgeType) + "|" + params
}

func (o *OptimizedEngine) Hierarchical(ctx context.Context, rootID string, edgeType graph.EdgeType, opts HierarchicalOptions) (*Result, error) {
	key := memoKey("hierarchical", rootID, edgeType, fmt.Sprintf("%t|%d", opts.IncludeChildren, opts.MaxDepth))
	if res, ok := o.memo.Get(key); ok {
		observability.InferenceCacheHitsTotal.Inc()
		return res, nil
	}

	var res *Result
	var err error
	if o.opts.EnableParallel {
		res, err = o.hierarchicalParallel(ctx, rootID, edgeType, opts)
	} else {
		res, err = o.Engine.Hierarchical(ctx, rootID, edgeType, opts)
	}
	if err == nil {
		o.remember(key, res)
	}
	return res, err
}

func (o *OptimizedEngine) Transitive(ctx context.Context, rootID string, edgeType graph.EdgeType, opts TransitiveOptions) (*Result, error) {
	key := memoKey("transitive", rootID, edgeType, fmt.Sprintf("%d|%t", opts.MaxPathLength, opts.IncludeIntermediate))
	if res, ok := o.memo.Get(key); ok {
		observability.InferenceCacheHitsTotal.Inc()
		return res, nil
	}

	res, err := o.Engine.Transitive(ctx, rootID, edgeType, opts)
	if err == nil {
		o.remember(key, res)
	}
	return res, err
}

func (o *OptimizedEngine) Inheritable(ctx context.Context, rootID string, edgeType graph.EdgeType, opts InheritableOptions) (*Result, error) {
	key := memoKey("inheritable", rootID, edgeType, fmt.Sprintf("%t|%d", opts.IncludeInherited, opts.MaxInheritanceDepth))
	if res, ok := o.memo.Get(key); ok {
		observability.InferenceCacheHitsTotal.Inc()
		return res, nil
	}

	res, err := o.Engine.Inheritable(ctx, rootID, edgeType, opts)
	if err == nil {
		o.remember(key, res)
	}
	return res, err
}

// remember stores the result and indexes the memo key under every address
// in the result's path set so edge writes can invalidate it.
func (o *OptimizedEngine) remember(key string, res *Result) {
	o.memo.PutTTL(key, res, o.opts.CacheTTL)

	addrs := map[string]bool{res.Root: true}
	for _, tn := range res.Nodes {
		addrs[tn.Node.Address] = true
		for _, a := range tn.Path {
			addrs[a] = true
		}
	}
	for _, e := range res.Edges {
		addrs[e.From] = true
		addrs[e.To] = true
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for a := range addrs {
		if o.keysByAddr[a] == nil {
			o.keysByAddr[a] = make(map[string]bool)
		}
		o.keysByAddr[a][key] = true
	}
}

// invalidate drops every memoized result whose path set touches the edge.
func (o *OptimizedEngine) invalidate(e graph.Edge) {
	o.mu.Lock()
	var stale []string
	for _, addr := range []string{e.From, e.To} {
		for key := range o.keysByAddr[addr] {
			stale = append(stale, key)
		}
		delete(o.keysByAddr, addr)
	}
	o.mu.Unlock()

	for _, key := range stale {
		o.memo.Evict(key)
		observability.InferenceCacheInvalidationsTotal.Inc()
	}
}

// visitSet is a mutex-guarded visited set shared by traversal workers.
// Check-and-mark is atomic so no node is processed twice and cycle
// detection holds across goroutines.
type visitSet struct {
	mu sync.Mutex
	m  map[string]bool
}

func newVisitSet() *visitSet {
	return &visitSet{m: make(map[string]bool)}
}

// tryVisit marks addr visited and reports whether this call was the first.
func (v *visitSet) tryVisit(addr string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.m[addr] {
		return false
	}
	v.m[addr] = true
	return true
}

// hierarchicalParallel fans out the disjoint subtrees discovered at the
// first level onto a bounded worker pool. Workers share one visited set and
// one result accumulator.
func (o *OptimizedEngine) hierarchicalParallel(ctx context.Context, rootID string, edgeType graph.EdgeType, opts HierarchicalOptions) (*Result, error) {
	start := time.Now()
	defer func() {
		observability.InferenceDuration.WithLabelValues("hierarchical_parallel").Observe(time.Since(start).Seconds())
	}()

	if _, err := o.requireRoot(rootID); err != nil {
		return &Result{Root: rootID, EdgeType: edgeType, Status: StatusFailed}, err
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	dir := graph.DirOut
	if !opts.IncludeChildren {
		dir = graph.DirIn
	}

	result := &Result{Root: rootID, EdgeType: edgeType, Status: StatusTraversing}

	rootEdges, err := o.store.GetEdges(rootID, edgeType, dir)
	if err != nil {
		result.Status = StatusFailed
		return result, errors.Wrap(err, errors.CodeInternal, "read edges")
	}

	visited := newVisitSet()
	visited.tryVisit(rootID)

	var (
		resultMu sync.Mutex
		nodes    []TraversedNode
		timedOut atomic.Bool
		failed   atomic.Value // error
	)

	sem := make(chan struct{}, o.opts.MaxConcurrency)
	var wg sync.WaitGroup

	for _, edge := range rootEdges {
		branch := edge.To
		if dir == graph.DirIn {
			branch = edge.From
		}
		if !visited.tryVisit(branch) {
			continue
		}

		wg.Add(1)
		go func(branchRoot string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			type queued struct {
				addr  string
				depth int
			}
			queue := []queued{{branchRoot, 1}}

			for len(queue) > 0 {
				if err := ctx.Err(); err != nil {
					timedOut.Store(true)
					return
				}

				curr := queue[0]
				queue = queue[1:]

				node, err := o.store.GetNode(curr.addr)
				if err != nil {
					failed.Store(errors.Wrap(err, errors.CodeInternal, "read node"))
					return
				}
				if node == nil {
					continue
				}

				resultMu.Lock()
				nodes = append(nodes, TraversedNode{Node: *node, Depth: curr.depth})
				resultMu.Unlock()

				if curr.depth >= maxDepth {
					continue
				}

				edges, err := o.store.GetEdges(curr.addr, edgeType, dir)
				if err != nil {
					failed.Store(errors.Wrap(err, errors.CodeInternal, "read edges"))
					return
				}
				for _, e := range edges {
					next := e.To
					if dir == graph.DirIn {
						next = e.From
					}
					if visited.tryVisit(next) {
						queue = append(queue, queued{next, curr.depth + 1})
					}
				}
			}
		}(branch)
	}

	wg.Wait()

	// Worker completion order is nondeterministic; normalize.
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth == nodes[j].Depth {
			return nodes[i].Node.Address < nodes[j].Node.Address
		}
		return nodes[i].Depth < nodes[j].Depth
	})
	result.Nodes = nodes

	if err, ok := failed.Load().(error); ok && err != nil {
		result.Status = StatusFailed
		return result, err
	}
	if timedOut.Load() {
		result.Status = StatusTimedOut
		result.Partial = true
		return result, errors.New(errors.CodeQueryTimeout, "hierarchical traversal deadline exceeded")
	}

	result.Status = StatusCompleted
	return result, nil
}
