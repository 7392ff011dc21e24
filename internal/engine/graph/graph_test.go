package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symgraph/internal/engine/address"
)

func mkNode(project, file string, kind address.NodeKind, name string) Node {
	return Node{
		Address:  address.Create(project, file, kind, name),
		Project:  project,
		FilePath: file,
		Kind:     kind,
		Name:     name,
	}
}

func TestMemoryStoreNodeRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	n := mkNode("p", "src/a.go", address.KindFunction, "Run")
	n.Metadata = map[string]string{"line": "10"}

	require.NoError(t, s.PutNode(n))

	got, err := s.GetNode(n.Address)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, n.Name, got.Name)
	assert.Equal(t, "10", got.Metadata["line"])

	// Mutating the returned clone must not affect the store.
	got.Metadata["line"] = "99"
	again, _ := s.GetNode(n.Address)
	assert.Equal(t, "10", again.Metadata["line"])

	missing, err := s.GetNode("p/nope.go#Function:x")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStoreEdges(t *testing.T) {
	s := NewMemoryStore()
	a := mkNode("p", "a.go", address.KindFunction, "A")
	b := mkNode("p", "b.go", address.KindFunction, "B")
	require.NoError(t, s.PutNode(a))
	require.NoError(t, s.PutNode(b))

	require.NoError(t, s.PutEdge(Edge{From: a.Address, To: b.Address, Type: EdgeCalls}))
	require.NoError(t, s.PutEdge(Edge{From: a.Address, To: b.Address, Type: EdgeDependsOn}))

	out, err := s.GetEdges(a.Address, EdgeCalls, DirOut)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, b.Address, out[0].To)

	all, err := s.GetEdges(a.Address, "", DirOut)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	in, err := s.GetEdges(b.Address, EdgeCalls, DirIn)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, a.Address, in[0].From)

	// Upsert: same (from, to, type, provenance) replaces, not duplicates.
	require.NoError(t, s.PutEdge(Edge{From: a.Address, To: b.Address, Type: EdgeCalls, Metadata: map[string]string{"count": "2"}}))
	out, _ = s.GetEdges(a.Address, EdgeCalls, DirOut)
	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].Metadata["count"])
}

func TestMemoryStoreApplyBatchReplacesFile(t *testing.T) {
	s := NewMemoryStore()
	a := mkNode("p", "a.go", address.KindFunction, "Old")
	b := mkNode("p", "b.go", address.KindFunction, "B")
	require.NoError(t, s.PutNode(b))
	require.NoError(t, s.ApplyBatch(Batch{
		Project:  "p",
		FilePath: "a.go",
		Nodes:    []Node{a},
		Edges:    []Edge{{From: a.Address, To: b.Address, Type: EdgeCalls}},
	}))
	assert.Equal(t, 2, s.NodeCount())

	// Re-analysis of a.go replaces its contribution wholesale.
	renamed := mkNode("p", "a.go", address.KindFunction, "New")
	require.NoError(t, s.ApplyBatch(Batch{
		Project:  "p",
		FilePath: "a.go",
		Nodes:    []Node{renamed},
	}))

	old, _ := s.GetNode(a.Address)
	assert.Nil(t, old, "old node must be gone")
	got, _ := s.GetNode(renamed.Address)
	assert.NotNil(t, got)

	in, _ := s.GetEdges(b.Address, EdgeCalls, DirIn)
	assert.Empty(t, in, "asserted edge from replaced file must be gone")
}

func TestMemoryStoreOnEdgeWrite(t *testing.T) {
	s := NewMemoryStore()
	var seen []Edge
	s.OnEdgeWrite(func(e Edge) { seen = append(seen, e) })

	a := mkNode("p", "a.go", address.KindFunction, "A")
	b := mkNode("p", "b.go", address.KindFunction, "B")
	require.NoError(t, s.PutEdge(Edge{From: a.Address, To: b.Address, Type: EdgeCalls}))
	require.Len(t, seen, 1)
	assert.Equal(t, EdgeCalls, seen[0].Type)
}

func TestAllNodesSortedAndFiltered(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutNode(mkNode("p", "z.go", address.KindFunction, "Z")))
	require.NoError(t, s.PutNode(mkNode("p", "a.go", address.KindClass, "A")))
	require.NoError(t, s.PutNode(mkNode("p", "m.go", address.KindFunction, "M")))

	all, err := s.AllNodes(nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Address < all[1].Address && all[1].Address < all[2].Address)

	funcs, err := s.AllNodes(func(n Node) bool { return n.Kind == address.KindFunction })
	require.NoError(t, err)
	assert.Len(t, funcs, 2)
}

func TestValidateFlagsDanglingEdges(t *testing.T) {
	s := NewMemoryStore()
	a := mkNode("p", "a.go", address.KindFunction, "A")
	require.NoError(t, s.PutNode(a))
	require.NoError(t, s.PutEdge(Edge{From: a.Address, To: "p/ghost.go#Function:Ghost", Type: EdgeCalls}))

	report, err := Validate(s)
	require.NoError(t, err)
	assert.False(t, report.Clean())
	require.Len(t, report.DanglingEdges, 1)
	assert.Equal(t, "p/ghost.go#Function:Ghost", report.DanglingEdges[0].To)
}

func TestDetectCycles(t *testing.T) {
	s := NewMemoryStore()
	a := mkNode("p", "a.go", address.KindClass, "A")
	b := mkNode("p", "b.go", address.KindClass, "B")
	for _, n := range []Node{a, b} {
		require.NoError(t, s.PutNode(n))
	}
	require.NoError(t, s.PutEdge(Edge{From: a.Address, To: b.Address, Type: EdgeExtends}))
	require.NoError(t, s.PutEdge(Edge{From: b.Address, To: a.Address, Type: EdgeExtends}))

	cycles, err := DetectCycles(s, EdgeExtends)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Len(t, cycles[0], 2)
}

func TestFindPath(t *testing.T) {
	s := NewMemoryStore()
	names := []string{"A", "B", "C", "D"}
	addrs := make([]string, len(names))
	for i, name := range names {
		n := mkNode("p", name+".go", address.KindFunction, name)
		addrs[i] = n.Address
		require.NoError(t, s.PutNode(n))
	}
	// A -> B -> D and A -> C (dead end)
	require.NoError(t, s.PutEdge(Edge{From: addrs[0], To: addrs[1], Type: EdgeCalls}))
	require.NoError(t, s.PutEdge(Edge{From: addrs[0], To: addrs[2], Type: EdgeCalls}))
	require.NoError(t, s.PutEdge(Edge{From: addrs[1], To: addrs[3], Type: EdgeCalls}))

	path, ok, err := FindPath(s, addrs[0], addrs[3], EdgeCalls)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{addrs[0], addrs[1], addrs[3]}, path)

	_, ok, err = FindPath(s, addrs[3], addrs[0], EdgeCalls)
	require.NoError(t, err)
	assert.False(t, ok)
}
