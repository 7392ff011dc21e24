package query

import (
	"regexp"
	"strconv"
	"strings"

	"symgraph/internal/core/errors"
	"symgraph/internal/engine/graph"
)

var (
	gqlShapeRE = regexp.MustCompile(`(?s)^\s*\{\s*nodes\s*(?:\(([^)]*)\))?\s*\{(.*)\}\s*\}\s*$`)
	gqlArgRE   = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*:\s*(?:"([^"]*)"|(\d+))`)
	// Optional traversal selection inside the body:
	//   traverse(edge: "contains", from: "<address>", depth: 2)
	gqlTraverseRE = regexp.MustCompile(`traverse\s*\(([^)]*)\)`)
)

func parseGraphQL(raw string) (Plan, error) {
	matches := gqlShapeRE.FindStringSubmatch(raw)
	if len(matches) == 0 {
		return Plan{}, errors.New(errors.CodeQuerySyntax,
			`invalid query: expected { nodes(field: "value", ...) { ... } }`)
	}

	var plan Plan
	for _, arg := range gqlArgRE.FindAllStringSubmatch(matches[1], -1) {
		name := strings.ToLower(arg[1])
		value := arg[2]
		if value == "" {
			value = arg[3]
		}
		if name == "limit" {
			n, err := strconv.Atoi(value)
			if err != nil {
				return Plan{}, errors.Newf(errors.CodeQuerySyntax, "invalid limit %q", value)
			}
			plan.Limit = n
			continue
		}
		plan.Conditions = append(plan.Conditions, Condition{Field: name, Op: "=", Value: value})
	}

	if tm := gqlTraverseRE.FindStringSubmatch(matches[2]); len(tm) == 2 {
		tr := &Traverse{}
		for _, arg := range gqlArgRE.FindAllStringSubmatch(tm[1], -1) {
			value := arg[2]
			if value == "" {
				value = arg[3]
			}
			switch strings.ToLower(arg[1]) {
			case "edge":
				tr.Edge = graph.EdgeType(strings.ToLower(value))
			case "from":
				tr.Root = value
			case "depth":
				tr.Depth, _ = strconv.Atoi(value)
			case "reverse":
				tr.Reverse = value == "true"
			}
		}
		if tr.Root == "" || tr.Edge == "" {
			return Plan{}, errors.New(errors.CodeQuerySyntax, "traverse requires edge and from arguments")
		}
		plan.Traverse = tr
	}
	return plan, nil
}
