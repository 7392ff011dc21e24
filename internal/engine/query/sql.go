package query

import (
	"regexp"
	"strconv"
	"strings"

	"symgraph/internal/core/errors"
	"symgraph/internal/engine/graph"
)

var (
	sqlSelectRE = regexp.MustCompile(
		`(?i)^\s*(?:SELECT|MATCH)\s+nodes` +
			`(?:\s+WHERE\s+(.+?))?` +
			`(?:\s+FROM\s+'([^']+)'\s+TRAVERSE\s+([a-z_]+)(?:\s+DEPTH\s+(\d+))?)?` +
			`(?:\s+LIMIT\s+(\d+))?\s*$`)
	sqlAndSplitRE     = regexp.MustCompile(`(?i)\s+AND\s+`)
	sqlOrderedCondRE  = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s*(>=|<=|!=|=|>|<)\s*(-?[0-9]+)\s*$`)
	sqlContainsCondRE = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s+CONTAINS\s+['"]([^'"]+)['"]\s*$`)
	sqlStringCondRE   = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s*(=|!=)\s*['"]([^'"]+)['"]\s*$`)
)

func parseSQL(raw string) (Plan, error) {
	matches := sqlSelectRE.FindStringSubmatch(strings.TrimSpace(raw))
	if len(matches) == 0 {
		return Plan{}, errors.New(errors.CodeQuerySyntax,
			"invalid query: expected SELECT nodes [WHERE ...] [FROM '<address>' TRAVERSE <edge> [DEPTH n]] [LIMIT n]")
	}

	var plan Plan

	if where := strings.TrimSpace(matches[1]); where != "" {
		for _, part := range sqlAndSplitRE.Split(where, -1) {
			cond, err := parseSQLCondition(part)
			if err != nil {
				return Plan{}, err
			}
			plan.Conditions = append(plan.Conditions, cond)
		}
	}

	if root := matches[2]; root != "" {
		tr := &Traverse{Root: root, Edge: graph.EdgeType(strings.ToLower(matches[3]))}
		if matches[4] != "" {
			tr.Depth, _ = strconv.Atoi(matches[4])
		}
		plan.Traverse = tr
	}

	if matches[5] != "" {
		plan.Limit, _ = strconv.Atoi(matches[5])
	}
	return plan, nil
}

func parseSQLCondition(raw string) (Condition, error) {
	if m := sqlContainsCondRE.FindStringSubmatch(raw); len(m) == 3 {
		return Condition{
			Field: strings.ToLower(strings.TrimSpace(m[1])),
			Op:    "contains",
			Value: strings.TrimSpace(m[2]),
		}, nil
	}
	if m := sqlStringCondRE.FindStringSubmatch(raw); len(m) == 4 {
		return Condition{
			Field: strings.ToLower(strings.TrimSpace(m[1])),
			Op:    strings.TrimSpace(m[2]),
			Value: strings.TrimSpace(m[3]),
		}, nil
	}
	if m := sqlOrderedCondRE.FindStringSubmatch(raw); len(m) == 4 {
		return Condition{
			Field: strings.ToLower(strings.TrimSpace(m[1])),
			Op:    strings.TrimSpace(m[2]),
			Value: strings.TrimSpace(m[3]),
		}, nil
	}
	return Condition{}, errors.Newf(errors.CodeQuerySyntax, "invalid condition %q", strings.TrimSpace(raw))
}
