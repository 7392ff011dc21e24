package inference

import (
	"context"
	"sync"

	"symgraph/internal/core/errors"
	"symgraph/internal/engine/graph"
)

// Rule derives new edges from existing ones. Predicate decides whether the
// rule fires for a (node, edge) pair; Transform produces the derived edge.
// The engine stamps the rule's ID into DerivedBy.
type Rule struct {
	ID        string
	Predicate func(node graph.Node, edge graph.Edge) bool
	Transform func(node graph.Node, edge graph.Edge) graph.Edge
}

type ruleRegistry struct {
	mu    sync.RWMutex
	order []Rule
	byID  map[string]bool
}

func newRuleRegistry() *ruleRegistry {
	return &ruleRegistry{byID: make(map[string]bool)}
}

// RegisterRule appends a rule to the registry. Rules execute in registration
// order; see ApplyRules for the conflict policy.
func (e *Engine) RegisterRule(rule Rule) error {
	if rule.ID == "" {
		return errors.New(errors.CodeValidationError, "rule id must not be empty")
	}
	if rule.Predicate == nil || rule.Transform == nil {
		return errors.New(errors.CodeValidationError, "rule predicate and transform are required")
	}

	e.rules.mu.Lock()
	defer e.rules.mu.Unlock()
	if e.rules.byID[rule.ID] {
		return errors.Newf(errors.CodeValidationError, "rule %q already registered", rule.ID)
	}
	e.rules.byID[rule.ID] = true
	e.rules.order = append(e.rules.order, rule)
	return nil
}

// RuleIDs returns the registered rule IDs in registration order.
func (e *Engine) RuleIDs() []string {
	e.rules.mu.RLock()
	defer e.rules.mu.RUnlock()
	ids := make([]string, 0, len(e.rules.order))
	for _, r := range e.rules.order {
		ids = append(ids, r.ID)
	}
	return ids
}

func (e *Engine) selectRules(allow []string) []Rule {
	e.rules.mu.RLock()
	defer e.rules.mu.RUnlock()

	if allow == nil {
		return append([]Rule(nil), e.rules.order...)
	}
	allowed := make(map[string]bool, len(allow))
	for _, id := range allow {
		allowed[id] = true
	}
	selected := make([]Rule, 0, len(allow))
	for _, r := range e.rules.order {
		if allowed[r.ID] {
			selected = append(selected, r)
		}
	}
	return selected
}

// ApplyRules runs the registered rules over every asserted edge in the
// store and returns the derived edges. ruleIDs narrows execution to an
// allow-list; nil runs every rule.
//
// When two rules would both infer an edge with the same (from, to, type)
// key, first-wins applies: the registration-order rule that fired first is
// kept and later duplicates are discarded.
func (e *Engine) ApplyRules(ctx context.Context, ruleIDs []string) ([]graph.Edge, error) {
	rules := e.selectRules(ruleIDs)
	if len(rules) == 0 {
		return nil, nil
	}

	nodes, err := e.store.AllNodes(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list nodes")
	}

	var derived []graph.Edge
	won := make(map[string]bool)

	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return derived, errors.Wrap(err, errors.CodeQueryTimeout, "rule application deadline exceeded")
		}

		edges, err := e.store.GetEdges(node.Address, "", graph.DirOut)
		if err != nil {
			return derived, errors.Wrap(err, errors.CodeInternal, "read edges")
		}

		for _, edge := range edges {
			if edge.Inferred() {
				continue
			}
			for _, rule := range rules {
				if !rule.Predicate(node, edge) {
					continue
				}
				out := rule.Transform(node, edge)
				out.DerivedBy = rule.ID
				key := out.From + "|" + out.To + "|" + string(out.Type)
				if won[key] {
					continue
				}
				won[key] = true
				derived = append(derived, out)
			}
		}
	}
	return derived, nil
}

// ApplyRulesForNodes is the incremental form of ApplyRules used by the
// realtime variant: only edges originating at the given addresses are
// considered.
func (e *Engine) ApplyRulesForNodes(ctx context.Context, addrs []string, ruleIDs []string) ([]graph.Edge, error) {
	rules := e.selectRules(ruleIDs)
	if len(rules) == 0 || len(addrs) == 0 {
		return nil, nil
	}

	var derived []graph.Edge
	won := make(map[string]bool)

	for _, addr := range addrs {
		if err := ctx.Err(); err != nil {
			return derived, errors.Wrap(err, errors.CodeQueryTimeout, "rule application deadline exceeded")
		}

		node, err := e.store.GetNode(addr)
		if err != nil {
			return derived, errors.Wrap(err, errors.CodeInternal, "read node")
		}
		if node == nil {
			continue
		}

		edges, err := e.store.GetEdges(addr, "", graph.DirOut)
		if err != nil {
			return derived, errors.Wrap(err, errors.CodeInternal, "read edges")
		}

		for _, edge := range edges {
			if edge.Inferred() {
				continue
			}
			for _, rule := range rules {
				if !rule.Predicate(*node, edge) {
					continue
				}
				out := rule.Transform(*node, edge)
				out.DerivedBy = rule.ID
				key := out.From + "|" + out.To + "|" + string(out.Type)
				if won[key] {
					continue
				}
				won[key] = true
				derived = append(derived, out)
			}
		}
	}
	return derived, nil
}
