package query

import (
	"strings"

	"symgraph/internal/core/errors"
)

// Dialect names a query surface. The set is closed; dispatch is exhaustive.
type Dialect string

const (
	DialectSQL     Dialect = "sql"
	DialectGraphQL Dialect = "graphql"
	DialectNatural Dialect = "natural"
)

// Detect guesses the dialect from the raw text. SELECT or MATCH prefixes
// read as SQL, a leading brace as GraphQL, anything else as natural
// language.
func Detect(raw string) Dialect {
	trimmed := strings.TrimSpace(raw)
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "MATCH"):
		return DialectSQL
	case strings.HasPrefix(trimmed, "{"):
		return DialectGraphQL
	default:
		return DialectNatural
	}
}

// Canonical maps external spellings onto the enum: matching is
// case-insensitive and the wire name "NaturalLanguage" reads as natural.
// Unknown spellings pass through unchanged so dispatch can reject them.
func Canonical(dialect Dialect) Dialect {
	switch strings.ToLower(string(dialect)) {
	case string(DialectSQL):
		return DialectSQL
	case string(DialectGraphQL):
		return DialectGraphQL
	case string(DialectNatural), "naturallanguage":
		return DialectNatural
	default:
		return dialect
	}
}

// Compile parses raw in the given dialect into a plan. An empty dialect
// auto-detects; an unknown one is UNSUPPORTED_DIALECT.
func Compile(raw string, dialect Dialect) (Plan, error) {
	if dialect == "" {
		dialect = Detect(raw)
	}
	switch Canonical(dialect) {
	case DialectSQL:
		return parseSQL(raw)
	case DialectGraphQL:
		return parseGraphQL(raw)
	case DialectNatural:
		return parseNatural(raw)
	default:
		return Plan{}, errors.AddContext(
			errors.Newf(errors.CodeUnsupportedDialect, "unsupported query dialect %q", dialect),
			errors.CtxDialect, string(dialect))
	}
}
