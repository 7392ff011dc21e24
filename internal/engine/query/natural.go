package query

import (
	"regexp"
	"strings"

	"symgraph/internal/core/errors"
	"symgraph/internal/engine/address"
	"symgraph/internal/engine/graph"
)

// Plural keyword to node kind, for "find all functions" style intents.
var kindKeywords = map[string]address.NodeKind{
	"functions":  address.KindFunction,
	"classes":    address.KindClass,
	"interfaces": address.KindInterface,
	"methods":    address.KindMethod,
	"variables":  address.KindVariable,
	"properties": address.KindProperty,
	"types":      address.KindType,
	"enums":      address.KindEnum,
	"namespaces": address.KindNamespace,
	"headings":   address.KindHeading,
	"sections":   address.KindSection,
}

var (
	nlKindInFileRE = regexp.MustCompile(`(?i)^(?:find\s+|show\s+|list\s+)?(?:all\s+)?([a-z]+)\s+in\s+(\S+)\s*$`)
	nlAllKindRE    = regexp.MustCompile(`(?i)^(?:find\s+|show\s+|list\s+)?(?:all\s+)?([a-z]+)\s*$`)
	nlCallsRE      = regexp.MustCompile(`(?i)^(?:what|who)\s+calls\s+(\S+?)\??$`)
	nlDependsOnRE  = regexp.MustCompile(`(?i)^what\s+depends\s+on\s+(\S+?)\??$`)
	nlDepsOfRE     = regexp.MustCompile(`(?i)^dependencies\s+of\s+(\S+)\s*$`)
	nlChildrenRE   = regexp.MustCompile(`(?i)^children\s+of\s+(\S+)\s*$`)
)

// parseNatural classifies the text into one of a small set of keyword
// intents. It is deliberately shallow: anything it cannot classify is a
// syntax error rather than a guess.
func parseNatural(raw string) (Plan, error) {
	text := strings.TrimSpace(raw)

	if m := nlCallsRE.FindStringSubmatch(text); len(m) == 2 {
		return Plan{Traverse: &Traverse{Root: m[1], Edge: graph.EdgeCalls, Reverse: true}}, nil
	}
	if m := nlDependsOnRE.FindStringSubmatch(text); len(m) == 2 {
		return Plan{Traverse: &Traverse{Root: m[1], Edge: graph.EdgeDependsOn, Reverse: true}}, nil
	}
	if m := nlDepsOfRE.FindStringSubmatch(text); len(m) == 2 {
		return Plan{Traverse: &Traverse{Root: m[1], Edge: graph.EdgeDependsOn}}, nil
	}
	if m := nlChildrenRE.FindStringSubmatch(text); len(m) == 2 {
		return Plan{Traverse: &Traverse{Root: m[1], Edge: graph.EdgeContains, Depth: 1}}, nil
	}

	if m := nlKindInFileRE.FindStringSubmatch(text); len(m) == 3 {
		if kind, ok := kindKeywords[strings.ToLower(m[1])]; ok {
			return Plan{Conditions: []Condition{
				{Field: "type", Op: "=", Value: string(kind)},
				{Field: "file", Op: "contains", Value: m[2]},
			}}, nil
		}
	}
	if m := nlAllKindRE.FindStringSubmatch(text); len(m) == 2 {
		if kind, ok := kindKeywords[strings.ToLower(m[1])]; ok {
			return Plan{Conditions: []Condition{
				{Field: "type", Op: "=", Value: string(kind)},
			}}, nil
		}
	}

	return Plan{}, errors.Newf(errors.CodeQuerySyntax, "could not understand query %q", text)
}
