// Package inference derives new graph relations from existing ones:
// hierarchical traversal, transitive closure, and inheritance-aware edge
// resolution, plus a registry of custom derivation rules.
package inference

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"symgraph/internal/core/errors"
	"symgraph/internal/engine/graph"
	"symgraph/internal/shared/observability"
)

// Status tracks the lifecycle of a single inference call.
type Status string

const (
	StatusPending    Status = "pending"
	StatusTraversing Status = "traversing"
	StatusCompleted  Status = "completed"
	StatusTimedOut   Status = "timed_out"
	StatusFailed     Status = "failed"
)

// TraversedNode is a node reached during traversal, annotated with the depth
// it was discovered at and, for transitive inference, the shortest path from
// the root.
type TraversedNode struct {
	Node  graph.Node
	Depth int
	Path  []string
}

// Result is the outcome of one inference call. When Status is TimedOut the
// node set holds whatever had been accumulated and Partial is true.
type Result struct {
	Root     string
	EdgeType graph.EdgeType
	Status   Status
	Nodes    []TraversedNode
	// Edges holds derived edges for inheritable inference and rule runs.
	Edges   []graph.Edge
	Partial bool
}

// HierarchicalOptions controls Hierarchical. IncludeChildren selects the
// traversal direction: true walks outgoing edges (descendants), false walks
// incoming edges (ancestors).
type HierarchicalOptions struct {
	IncludeChildren bool
	MaxDepth        int
}

// TransitiveOptions controls Transitive. IncludeIntermediate=false returns
// only terminal nodes (no further outgoing edge of the type); true returns
// every node reached at any hop.
type TransitiveOptions struct {
	MaxPathLength       int
	IncludeIntermediate bool
}

// InheritableOptions controls Inheritable.
type InheritableOptions struct {
	IncludeInherited    bool
	MaxInheritanceDepth int
}

const (
	defaultMaxDepth         = 10
	defaultMaxPathLength    = 10
	defaultInheritanceDepth = 5
)

// DerivedByInheritance is the provenance tag on edges produced by
// inheritance resolution.
const DerivedByInheritance = "inheritance"

// Engine runs traversals against an injected store. It is stateless apart
// from the rule registry and safe for concurrent use.
type Engine struct {
	store graph.Store
	rules *ruleRegistry
}

func NewEngine(store graph.Store) *Engine {
	return &Engine{
		store: store,
		rules: newRuleRegistry(),
	}
}

// Store exposes the injected store to composing layers.
func (e *Engine) Store() graph.Store {
	return e.store
}

// requireRoot returns the root node or a NODE_NOT_FOUND error; an unknown
// root is a failure, never an empty result.
func (e *Engine) requireRoot(rootID string) (*graph.Node, error) {
	node, err := e.store.GetNode(rootID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "load root node")
	}
	if node == nil {
		return nil, errors.AddContext(
			errors.New(errors.CodeNodeNotFound, "root node not found"),
			errors.CtxAddress, rootID)
	}
	return node, nil
}

// Hierarchical walks strictly along edgeType edges breadth-first, collecting
// nodes annotated with their depth. Depth 0 is the root itself and is never
// included; traversal stops at MaxDepth inclusive. A visited set keyed by
// address makes the walk safe on cyclic edge sets: a detected cycle simply
// terminates that branch.
func (e *Engine) Hierarchical(ctx context.Context, rootID string, edgeType graph.EdgeType, opts HierarchicalOptions) (*Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "inference.Hierarchical",
		trace.WithAttributes(attribute.String("edge_type", string(edgeType))))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.InferenceDuration.WithLabelValues("hierarchical").Observe(time.Since(start).Seconds())
	}()

	if _, err := e.requireRoot(rootID); err != nil {
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

	type queued struct {
		addr  string
		depth int
	}
	queue := []queued{{rootID, 0}}
	visited := map[string]bool{rootID: true}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			result.Status = StatusTimedOut
			result.Partial = true
			return result, errors.Wrap(err, errors.CodeQueryTimeout, "hierarchical traversal deadline exceeded")
		}

		curr := queue[0]
		queue = queue[1:]
		if curr.depth >= maxDepth {
			continue
		}

		edges, err := e.store.GetEdges(curr.addr, edgeType, dir)
		if err != nil {
			result.Status = StatusFailed
			return result, errors.Wrap(err, errors.CodeInternal, "read edges")
		}

		for _, edge := range edges {
			next := edge.To
			if dir == graph.DirIn {
				next = edge.From
			}
			if visited[next] {
				continue
			}
			visited[next] = true

			node, err := e.store.GetNode(next)
			if err != nil {
				result.Status = StatusFailed
				return result, errors.Wrap(err, errors.CodeInternal, "read node")
			}
			if node == nil {
				// Dangling edge: traversal stops here.
				continue
			}

			result.Nodes = append(result.Nodes, TraversedNode{Node: *node, Depth: curr.depth + 1})
			queue = append(queue, queued{next, curr.depth + 1})
		}
	}

	result.Status = StatusCompleted
	return result, nil
}

// Transitive computes the closure along a single edge type up to
// MaxPathLength hops. For each reachable node only the shortest discovered
// path is retained (BFS order guarantees this).
func (e *Engine) Transitive(ctx context.Context, rootID string, edgeType graph.EdgeType, opts TransitiveOptions) (*Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "inference.Transitive",
		trace.WithAttributes(attribute.String("edge_type", string(edgeType))))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.InferenceDuration.WithLabelValues("transitive").Observe(time.Since(start).Seconds())
	}()

	if _, err := e.requireRoot(rootID); err != nil {
		return &Result{Root: rootID, EdgeType: edgeType, Status: StatusFailed}, err
	}

	maxLen := opts.MaxPathLength
	if maxLen <= 0 {
		maxLen = defaultMaxPathLength
	}

	result := &Result{Root: rootID, EdgeType: edgeType, Status: StatusTraversing}

	type queued struct {
		addr string
		path []string
	}
	queue := []queued{{rootID, []string{rootID}}}
	visited := map[string]bool{rootID: true}
	var reached []TraversedNode

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			// Best-effort filtering; the deadline error takes precedence
			// over a read failure on the partial set.
			if filtered, ferr := filterTerminal(reached, e, edgeType, opts.IncludeIntermediate); ferr == nil {
				result.Nodes = filtered
			} else {
				result.Nodes = reached
			}
			result.Status = StatusTimedOut
			result.Partial = true
			return result, errors.Wrap(err, errors.CodeQueryTimeout, "transitive traversal deadline exceeded")
		}

		curr := queue[0]
		queue = queue[1:]
		if len(curr.path)-1 >= maxLen {
			continue
		}

		edges, err := e.store.GetEdges(curr.addr, edgeType, graph.DirOut)
		if err != nil {
			result.Status = StatusFailed
			return result, errors.Wrap(err, errors.CodeInternal, "read edges")
		}

		for _, edge := range edges {
			if visited[edge.To] {
				continue
			}
			visited[edge.To] = true

			node, err := e.store.GetNode(edge.To)
			if err != nil {
				result.Status = StatusFailed
				return result, errors.Wrap(err, errors.CodeInternal, "read node")
			}
			if node == nil {
				continue
			}

			path := append(append([]string(nil), curr.path...), edge.To)
			reached = append(reached, TraversedNode{Node: *node, Depth: len(path) - 1, Path: path})
			queue = append(queue, queued{edge.To, path})
		}
	}

	filtered, err := filterTerminal(reached, e, edgeType, opts.IncludeIntermediate)
	if err != nil {
		result.Status = StatusFailed
		return result, errors.Wrap(err, errors.CodeInternal, "read edges")
	}
	result.Nodes = filtered
	result.Status = StatusCompleted
	return result, nil
}

// filterTerminal keeps only nodes without further outgoing edgeType edges
// when includeIntermediate is false. A store read failure is propagated, not
// treated as "no edges".
func filterTerminal(nodes []TraversedNode, e *Engine, edgeType graph.EdgeType, includeIntermediate bool) ([]TraversedNode, error) {
	if includeIntermediate {
		return nodes, nil
	}
	terminal := make([]TraversedNode, 0, len(nodes))
	for _, tn := range nodes {
		edges, err := e.store.GetEdges(tn.Node.Address, edgeType, graph.DirOut)
		if err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			terminal = append(terminal, tn)
		}
	}
	return terminal, nil
}

// Inheritable first resolves the extends/implements chain of the root up to
// MaxInheritanceDepth, then unions in each ancestor's own edgeType edges as
// inherited relations of the root. An inherited edge carries
// DerivedBy="inheritance" and the ancestor's address as metadata.source.
func (e *Engine) Inheritable(ctx context.Context, rootID string, edgeType graph.EdgeType, opts InheritableOptions) (*Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "inference.Inheritable",
		trace.WithAttributes(attribute.String("edge_type", string(edgeType))))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.InferenceDuration.WithLabelValues("inheritable").Observe(time.Since(start).Seconds())
	}()

	if _, err := e.requireRoot(rootID); err != nil {
		return &Result{Root: rootID, EdgeType: edgeType, Status: StatusFailed}, err
	}

	result := &Result{Root: rootID, EdgeType: edgeType, Status: StatusTraversing}

	// The root's own asserted edges always participate.
	own, err := e.store.GetEdges(rootID, edgeType, graph.DirOut)
	if err != nil {
		result.Status = StatusFailed
		return result, errors.Wrap(err, errors.CodeInternal, "read edges")
	}
	result.Edges = append(result.Edges, own...)

	if !opts.IncludeInherited {
		result.Status = StatusCompleted
		return result, nil
	}

	maxDepth := opts.MaxInheritanceDepth
	if maxDepth <= 0 {
		maxDepth = defaultInheritanceDepth
	}

	ancestors, err := e.ancestorChain(ctx, rootID, maxDepth)
	if err != nil {
		if errors.IsCode(err, errors.CodeQueryTimeout) {
			result.Status = StatusTimedOut
			result.Partial = true
			return result, err
		}
		result.Status = StatusFailed
		return result, err
	}

	// Dedup against edges already present on the root.
	seen := make(map[string]bool, len(result.Edges))
	for _, e := range result.Edges {
		seen[e.To+"|"+string(e.Type)] = true
	}

	for _, anc := range ancestors {
		edges, err := e.store.GetEdges(anc.addr, edgeType, graph.DirOut)
		if err != nil {
			result.Status = StatusFailed
			return result, errors.Wrap(err, errors.CodeInternal, "read ancestor edges")
		}
		for _, edge := range edges {
			key := edge.To + "|" + string(edge.Type)
			if seen[key] {
				continue
			}
			seen[key] = true
			result.Edges = append(result.Edges, graph.Edge{
				From:      rootID,
				To:        edge.To,
				Type:      edgeType,
				DerivedBy: DerivedByInheritance,
				Depth:     anc.depth,
				Metadata:  map[string]string{"source": anc.addr},
			})
		}

		node, err := e.store.GetNode(anc.addr)
		if err == nil && node != nil {
			result.Nodes = append(result.Nodes, TraversedNode{Node: *node, Depth: anc.depth})
		}
	}

	result.Status = StatusCompleted
	return result, nil
}

type ancestor struct {
	addr  string
	depth int
}

// ancestorChain walks extends and implements edges breadth-first.
func (e *Engine) ancestorChain(ctx context.Context, rootID string, maxDepth int) ([]ancestor, error) {
	var chain []ancestor
	queue := []ancestor{{rootID, 0}}
	visited := map[string]bool{rootID: true}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return chain, errors.Wrap(err, errors.CodeQueryTimeout, "inheritance resolution deadline exceeded")
		}

		curr := queue[0]
		queue = queue[1:]
		if curr.depth >= maxDepth {
			continue
		}

		for _, t := range []graph.EdgeType{graph.EdgeExtends, graph.EdgeImplements} {
			edges, err := e.store.GetEdges(curr.addr, t, graph.DirOut)
			if err != nil {
				return chain, errors.Wrap(err, errors.CodeInternal, "read inheritance edges")
			}
			for _, edge := range edges {
				if visited[edge.To] {
					continue
				}
				visited[edge.To] = true
				chain = append(chain, ancestor{edge.To, curr.depth + 1})
				queue = append(queue, ancestor{edge.To, curr.depth + 1})
			}
		}
	}
	return chain, nil
}
