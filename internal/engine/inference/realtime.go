package inference

import (
	"context"
	"log/slog"

	"symgraph/internal/engine/graph"
)

// RealtimeOptions configures change-triggered inference.
type RealtimeOptions struct {
	// EnableAutoInference runs the rule registry on every change
	// notification and persists the derived edges.
	EnableAutoInference bool
	// RuleIDs narrows auto-inference to an allow-list; nil means all rules.
	RuleIDs []string
}

// RealtimeEngine runs the same computation as OptimizedEngine but is driven
// by change notifications from the realtime query layer rather than
// one-shot calls.
type RealtimeEngine struct {
	*OptimizedEngine
	opts RealtimeOptions
}

func NewRealtime(store graph.Store, opts Options, rtOpts RealtimeOptions) *RealtimeEngine {
	return &RealtimeEngine{
		OptimizedEngine: NewOptimized(store, opts),
		opts:            rtOpts,
	}
}

// OnDataChange reacts to a batch of changed node addresses. When
// auto-inference is enabled the allow-listed rules run over the changed
// nodes and the derived edges are written back to the store. The memo cache
// invalidation happens independently through the store's edge listener.
func (r *RealtimeEngine) OnDataChange(ctx context.Context, addrs []string) ([]graph.Edge, error) {
	if !r.opts.EnableAutoInference || len(addrs) == 0 {
		return nil, nil
	}

	derived, err := r.ApplyRulesForNodes(ctx, addrs, r.opts.RuleIDs)
	if err != nil {
		return derived, err
	}

	for _, edge := range derived {
		if err := r.Store().PutEdge(edge); err != nil {
			slog.Warn("failed to persist inferred edge",
				"from", edge.From, "to", edge.To, "rule", edge.DerivedBy, "error", err)
		}
	}
	return derived, nil
}
