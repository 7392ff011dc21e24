package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symgraph/internal/core/errors"
	"symgraph/internal/engine/address"
	"symgraph/internal/engine/graph"
	"symgraph/internal/engine/inference"
)

func TestDetect(t *testing.T) {
	assert.Equal(t, DialectSQL, Detect("SELECT nodes"))
	assert.Equal(t, DialectSQL, Detect("  select nodes where type = 'Function'"))
	assert.Equal(t, DialectSQL, Detect("MATCH nodes"))
	assert.Equal(t, DialectGraphQL, Detect(`{ nodes(type: "Function") { address } }`))
	assert.Equal(t, DialectNatural, Detect("find all functions"))
}

func TestParseSQL(t *testing.T) {
	plan, err := parseSQL("SELECT nodes WHERE type = 'Function' AND file CONTAINS 'src' LIMIT 10")
	require.NoError(t, err)
	require.Len(t, plan.Conditions, 2)
	assert.Equal(t, Condition{Field: "type", Op: "=", Value: "Function"}, plan.Conditions[0])
	assert.Equal(t, Condition{Field: "file", Op: "contains", Value: "src"}, plan.Conditions[1])
	assert.Equal(t, 10, plan.Limit)
	assert.Nil(t, plan.Traverse)
}

func TestParseSQLTraverse(t *testing.T) {
	plan, err := parseSQL("SELECT nodes FROM 'p/a.go#Class:A' TRAVERSE contains DEPTH 2 LIMIT 5")
	require.NoError(t, err)
	require.NotNil(t, plan.Traverse)
	assert.Equal(t, "p/a.go#Class:A", plan.Traverse.Root)
	assert.Equal(t, graph.EdgeContains, plan.Traverse.Edge)
	assert.Equal(t, 2, plan.Traverse.Depth)
	assert.Equal(t, 5, plan.Limit)
}

func TestParseSQLSyntaxErrors(t *testing.T) {
	for _, raw := range []string{
		"SELECT edges",
		"SELECT nodes WHERE",
		"SELECT nodes WHERE type ~ 'x'",
		"DROP nodes",
	} {
		_, err := parseSQL(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.IsCode(err, errors.CodeQuerySyntax), raw)
	}
}

func TestParseGraphQL(t *testing.T) {
	plan, err := parseGraphQL(`{ nodes(type: "Function", file: "src", limit: 3) { address name } }`)
	require.NoError(t, err)
	require.Len(t, plan.Conditions, 2)
	assert.Equal(t, Condition{Field: "type", Op: "=", Value: "Function"}, plan.Conditions[0])
	assert.Equal(t, Condition{Field: "file", Op: "=", Value: "src"}, plan.Conditions[1])
	assert.Equal(t, 3, plan.Limit)
}

func TestParseGraphQLTraverse(t *testing.T) {
	plan, err := parseGraphQL(`{ nodes { traverse(edge: "contains", from: "p/a.go#Class:A", depth: 1) } }`)
	require.NoError(t, err)
	require.NotNil(t, plan.Traverse)
	assert.Equal(t, graph.EdgeContains, plan.Traverse.Edge)
	assert.Equal(t, "p/a.go#Class:A", plan.Traverse.Root)
	assert.Equal(t, 1, plan.Traverse.Depth)
}

func TestParseGraphQLSyntaxError(t *testing.T) {
	_, err := parseGraphQL(`{ edges { } }`)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeQuerySyntax))
}

func TestParseNatural(t *testing.T) {
	plan, err := parseNatural("find all functions")
	require.NoError(t, err)
	require.Len(t, plan.Conditions, 1)
	assert.Equal(t, string(address.KindFunction), plan.Conditions[0].Value)

	plan, err = parseNatural("classes in src/models.ts")
	require.NoError(t, err)
	require.Len(t, plan.Conditions, 2)
	assert.Equal(t, string(address.KindClass), plan.Conditions[0].Value)
	assert.Equal(t, "src/models.ts", plan.Conditions[1].Value)

	plan, err = parseNatural("what calls handler?")
	require.NoError(t, err)
	require.NotNil(t, plan.Traverse)
	assert.Equal(t, graph.EdgeCalls, plan.Traverse.Edge)
	assert.True(t, plan.Traverse.Reverse)
	assert.Equal(t, "handler", plan.Traverse.Root)

	plan, err = parseNatural("children of p/a.go#Class:A")
	require.NoError(t, err)
	require.NotNil(t, plan.Traverse)
	assert.Equal(t, graph.EdgeContains, plan.Traverse.Edge)
	assert.Equal(t, 1, plan.Traverse.Depth)

	_, err = parseNatural("make me a sandwich")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeQuerySyntax))
}

func TestCompileUnsupportedDialect(t *testing.T) {
	_, err := Compile("SELECT nodes", Dialect("xpath"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedDialect))
}

func TestCanonicalDialectSpellings(t *testing.T) {
	assert.Equal(t, DialectSQL, Canonical("SQL"))
	assert.Equal(t, DialectGraphQL, Canonical("GraphQL"))
	assert.Equal(t, DialectNatural, Canonical("NaturalLanguage"))
	assert.Equal(t, DialectNatural, Canonical("natural"))
	assert.Equal(t, Dialect("xpath"), Canonical("xpath"))

	plan, err := Compile("SELECT nodes", "SQL")
	require.NoError(t, err)
	assert.Empty(t, plan.Conditions)
}

func seedStore(t *testing.T) (*graph.MemoryStore, map[string]string) {
	t.Helper()
	s := graph.NewMemoryStore()
	addrs := make(map[string]string)
	put := func(name, file string, kind address.NodeKind) {
		n := graph.Node{
			Address:  address.Create("p", file, kind, name),
			Project:  "p",
			FilePath: file,
			Kind:     kind,
			Name:     name,
		}
		addrs[name] = n.Address
		require.NoError(t, s.PutNode(n))
	}
	put("App", "src/app.ts", address.KindClass)
	put("render", "src/app.ts", address.KindFunction)
	put("helper", "src/util.ts", address.KindFunction)
	put("Model", "src/models.ts", address.KindClass)

	require.NoError(t, s.PutEdge(graph.Edge{From: addrs["App"], To: addrs["render"], Type: graph.EdgeContains}))
	require.NoError(t, s.PutEdge(graph.Edge{From: addrs["render"], To: addrs["helper"], Type: graph.EdgeCalls}))
	return s, addrs
}

func newTestEngine(s *graph.MemoryStore, opts Options) *Engine {
	return New(s, inference.NewEngine(s), opts)
}

func TestExecuteFilterSortLimit(t *testing.T) {
	s, addrs := seedStore(t)
	e := newTestEngine(s, Options{})

	res, err := e.Execute(context.Background(), "SELECT nodes WHERE type = 'Function'")
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)
	assert.Equal(t, DialectSQL, res.Dialect)
	// Sorted by address string.
	assert.Equal(t, addrs["render"], res.Nodes[0].Address)
	assert.Equal(t, addrs["helper"], res.Nodes[1].Address)

	res, err = e.Execute(context.Background(), "SELECT nodes WHERE type = 'Function' LIMIT 1")
	require.NoError(t, err)
	require.Len(t, res.Nodes, 1)
	assert.Equal(t, addrs["render"], res.Nodes[0].Address)
}

func TestExecuteTraverse(t *testing.T) {
	s, addrs := seedStore(t)
	e := newTestEngine(s, Options{})

	res, err := e.Execute(context.Background(),
		"SELECT nodes FROM '"+addrs["App"]+"' TRAVERSE contains DEPTH 1")
	require.NoError(t, err)
	require.Len(t, res.Nodes, 1)
	assert.Equal(t, addrs["render"], res.Nodes[0].Address)
}

func TestExecuteNaturalReverseTraverse(t *testing.T) {
	s, addrs := seedStore(t)
	e := newTestEngine(s, Options{})

	// Bare name resolves to the node, reverse calls-walk finds the caller.
	res, err := e.Execute(context.Background(), "what calls helper?")
	require.NoError(t, err)
	require.Len(t, res.Nodes, 1)
	assert.Equal(t, addrs["render"], res.Nodes[0].Address)
}

func TestExecuteUnknownRoot(t *testing.T) {
	s, _ := seedStore(t)
	e := newTestEngine(s, Options{})

	_, err := e.Execute(context.Background(), "dependencies of nosuchsymbol")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNodeNotFound))
}

func TestExecuteGraphQL(t *testing.T) {
	s, addrs := seedStore(t)
	e := newTestEngine(s, Options{})

	res, err := e.Execute(context.Background(), `{ nodes(type: "Class") { address } }`)
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)
	assert.Equal(t, addrs["App"], res.Nodes[0].Address)
	assert.Equal(t, addrs["Model"], res.Nodes[1].Address)
}

func TestExecuteCacheHitAndInvalidation(t *testing.T) {
	s, addrs := seedStore(t)
	e := newTestEngine(s, Options{CacheTTL: time.Minute})

	const q = "SELECT nodes WHERE type = 'Function'"
	first, err := e.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := e.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Nodes, second.Nodes)

	// An edge write clears the cache.
	require.NoError(t, s.PutEdge(graph.Edge{From: addrs["App"], To: addrs["helper"], Type: graph.EdgeCalls}))
	third, err := e.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, third.FromCache)
}

func TestExecuteSyntaxErrorBeforeStore(t *testing.T) {
	e := newTestEngine(graph.NewMemoryStore(), Options{})
	_, err := e.Execute(context.Background(), "SELECT nodes WHERE bogus ~ 'x'")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeQuerySyntax))
}

func TestExecuteTimeout(t *testing.T) {
	s, _ := seedStore(t)
	e := newTestEngine(s, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Execute(ctx, "SELECT nodes")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeQueryTimeout))
}

func TestManageCache(t *testing.T) {
	s, _ := seedStore(t)
	e := newTestEngine(s, Options{CacheTTL: time.Minute})

	_, err := e.Execute(context.Background(), "SELECT nodes")
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), "SELECT nodes")
	require.NoError(t, err)

	info, err := e.ManageCache("stats")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Entries)
	assert.Equal(t, uint64(1), info.Hits)

	info, err = e.ManageCache("clear")
	require.NoError(t, err)
	assert.Equal(t, 0, info.Entries)

	_, err = e.ManageCache("defragment")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestManageCacheOptimize(t *testing.T) {
	s, _ := seedStore(t)
	e := newTestEngine(s, Options{CacheTTL: time.Nanosecond})

	_, err := e.Execute(context.Background(), "SELECT nodes")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	info, err := e.ManageCache("optimize")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pruned)
	assert.Equal(t, 0, info.Entries)
}
