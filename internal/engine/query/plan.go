// Package query parses SQL-like, GraphQL-like, and natural-language query
// text into a common plan and executes it read-only against the graph store
// and inference engine.
package query

import (
	"strconv"
	"strings"

	"symgraph/internal/engine/graph"
)

// Condition is one attribute filter. Value is kept as a string; comparison
// falls back to lexicographic order when either side is not an integer.
type Condition struct {
	Field string
	Op    string
	Value string
}

// Traverse narrows the candidate set to the nodes reachable from Root along
// Edge. Reverse walks incoming edges instead. Root may be a full address or
// a bare symbol name resolved at execution time.
type Traverse struct {
	Root    string
	Edge    graph.EdgeType
	Depth   int
	Reverse bool
}

// Plan is the dialect-independent compilation target. All three parsers
// produce one; the executor only ever sees plans.
type Plan struct {
	Conditions []Condition
	Traverse   *Traverse
	Limit      int
}

// fieldValue resolves a condition field against a node. Unknown fields fall
// through to the node's metadata.
func fieldValue(n graph.Node, field string) (string, bool) {
	switch strings.ToLower(field) {
	case "type", "kind":
		return string(n.Kind), true
	case "name":
		return n.Name, true
	case "file", "filepath", "file_path":
		return n.FilePath, true
	case "project":
		return n.Project, true
	case "address":
		return n.Address, true
	}
	v, ok := n.Metadata[field]
	return v, ok
}

// matches reports whether the node satisfies every condition.
func (p Plan) matches(n graph.Node) bool {
	for _, c := range p.Conditions {
		got, ok := fieldValue(n, c.Field)
		if !ok {
			return false
		}
		if !compare(got, c.Op, c.Value) {
			return false
		}
	}
	return true
}

func compare(got, op, want string) bool {
	switch op {
	case "=":
		return got == want
	case "!=":
		return got != want
	case "contains":
		return strings.Contains(strings.ToLower(got), strings.ToLower(want))
	}

	// Ordered comparators, numeric when both sides parse.
	gi, gerr := strconv.Atoi(got)
	wi, werr := strconv.Atoi(want)
	if gerr == nil && werr == nil {
		switch op {
		case ">":
			return gi > wi
		case ">=":
			return gi >= wi
		case "<":
			return gi < wi
		case "<=":
			return gi <= wi
		}
		return false
	}
	switch op {
	case ">":
		return got > want
	case ">=":
		return got >= want
	case "<":
		return got < want
	case "<=":
		return got <= want
	}
	return false
}
