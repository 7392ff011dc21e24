package graph

import (
	"sort"
	"sync"

	"symgraph/internal/shared/observability"
)

// MemoryStore is the in-process Store implementation. All reads return
// clones so callers can never mutate shared state.
type MemoryStore struct {
	mu sync.RWMutex

	nodes map[string]*Node               // address -> node
	out   map[string]map[EdgeType][]Edge // from -> type -> edges
	in    map[string]map[EdgeType][]Edge // to -> type -> edges

	// Ownership tracking for wholesale per-file replacement.
	fileNodes map[string][]string // project|filePath -> addresses

	listeners []func(Edge)
}

var _ Store = (*MemoryStore)(nil)
var _ BatchWriter = (*MemoryStore)(nil)
var _ ChangeNotifier = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:     make(map[string]*Node),
		out:       make(map[string]map[EdgeType][]Edge),
		in:        make(map[string]map[EdgeType][]Edge),
		fileNodes: make(map[string][]string),
	}
}

func (s *MemoryStore) GetNode(addr string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNode(s.nodes[addr]), nil
}

func (s *MemoryStore) PutNode(node Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putNodeLocked(node)
	s.updateGaugesLocked()
	return nil
}

func (s *MemoryStore) putNodeLocked(node Node) {
	s.nodes[node.Address] = cloneNode(&node)
	key := fileKey(node.Project, node.FilePath)
	for _, a := range s.fileNodes[key] {
		if a == node.Address {
			return
		}
	}
	s.fileNodes[key] = append(s.fileNodes[key], node.Address)
}

func (s *MemoryStore) GetEdges(addr string, edgeType EdgeType, dir Direction) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var byType map[EdgeType][]Edge
	if dir == DirIn {
		byType = s.in[addr]
	} else {
		byType = s.out[addr]
	}
	if byType == nil {
		return nil, nil
	}

	var result []Edge
	if edgeType != "" {
		for i := range byType[edgeType] {
			result = append(result, cloneEdge(&byType[edgeType][i]))
		}
		return result, nil
	}

	types := make([]EdgeType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		for i := range byType[t] {
			result = append(result, cloneEdge(&byType[t][i]))
		}
	}
	return result, nil
}

func (s *MemoryStore) PutEdge(edge Edge) error {
	s.mu.Lock()
	s.putEdgeLocked(edge)
	s.updateGaugesLocked()
	listeners := append([]func(Edge){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(edge)
	}
	return nil
}

func (s *MemoryStore) putEdgeLocked(edge Edge) {
	e := cloneEdge(&edge)

	if s.out[e.From] == nil {
		s.out[e.From] = make(map[EdgeType][]Edge)
	}
	s.out[e.From][e.Type] = upsertEdge(s.out[e.From][e.Type], e)

	if s.in[e.To] == nil {
		s.in[e.To] = make(map[EdgeType][]Edge)
	}
	s.in[e.To][e.Type] = upsertEdge(s.in[e.To][e.Type], e)
}

func upsertEdge(edges []Edge, e Edge) []Edge {
	for i := range edges {
		if edges[i].key() == e.key() {
			edges[i] = e
			return edges
		}
	}
	return append(edges, e)
}

func (s *MemoryStore) AllNodes(filter func(Node) bool) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addrs := make([]string, 0, len(s.nodes))
	for a := range s.nodes {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	result := make([]Node, 0, len(addrs))
	for _, a := range addrs {
		n := s.nodes[a]
		if filter == nil || filter(*n) {
			result = append(result, *cloneNode(n))
		}
	}
	return result, nil
}

// ApplyBatch replaces every node and asserted edge previously contributed by
// the batch's file, then inserts the new contents. Inferred edges from other
// sources are left untouched.
func (s *MemoryStore) ApplyBatch(batch Batch) error {
	s.mu.Lock()
	s.removeFileLocked(batch.Project, batch.FilePath)
	for _, n := range batch.Nodes {
		s.putNodeLocked(n)
	}
	for _, e := range batch.Edges {
		s.putEdgeLocked(e)
	}
	s.updateGaugesLocked()
	listeners := append([]func(Edge){}, s.listeners...)
	edges := append([]Edge(nil), batch.Edges...)
	s.mu.Unlock()

	for _, fn := range listeners {
		for _, e := range edges {
			fn(e)
		}
	}
	return nil
}

// RemoveFile drops every node and asserted edge owned by the file.
func (s *MemoryStore) RemoveFile(project, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeFileLocked(project, filePath)
	s.updateGaugesLocked()
	return nil
}

func (s *MemoryStore) removeFileLocked(project, filePath string) {
	key := fileKey(project, filePath)
	for _, addr := range s.fileNodes[key] {
		delete(s.nodes, addr)
		s.removeAssertedEdgesLocked(addr)
	}
	delete(s.fileNodes, key)
}

// removeAssertedEdgesLocked drops asserted edges touching addr. Inferred
// edges are kept; the inference cache invalidates them independently.
func (s *MemoryStore) removeAssertedEdgesLocked(addr string) {
	prune := func(byType map[EdgeType][]Edge) {
		for t, edges := range byType {
			kept := edges[:0]
			for _, e := range edges {
				if e.Inferred() || (e.From != addr && e.To != addr) {
					kept = append(kept, e)
				}
			}
			if len(kept) == 0 {
				delete(byType, t)
			} else {
				byType[t] = kept
			}
		}
	}
	if byType := s.out[addr]; byType != nil {
		prune(byType)
		if len(byType) == 0 {
			delete(s.out, addr)
		}
	}
	if byType := s.in[addr]; byType != nil {
		prune(byType)
		if len(byType) == 0 {
			delete(s.in, addr)
		}
	}
	// The removed node may also appear on the far side of edges indexed
	// under other addresses.
	for from, byType := range s.out {
		if from == addr {
			continue
		}
		for t, edges := range byType {
			kept := edges[:0]
			for _, e := range edges {
				if e.Inferred() || e.To != addr {
					kept = append(kept, e)
				}
			}
			if len(kept) == 0 {
				delete(byType, t)
			} else {
				byType[t] = kept
			}
		}
		if len(byType) == 0 {
			delete(s.out, from)
		}
	}
	for to, byType := range s.in {
		if to == addr {
			continue
		}
		for t, edges := range byType {
			kept := edges[:0]
			for _, e := range edges {
				if e.Inferred() || e.From != addr {
					kept = append(kept, e)
				}
			}
			if len(kept) == 0 {
				delete(byType, t)
			} else {
				byType[t] = kept
			}
		}
		if len(byType) == 0 {
			delete(s.in, to)
		}
	}
}

func (s *MemoryStore) OnEdgeWrite(fn func(Edge)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *MemoryStore) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *MemoryStore) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgeCountLocked()
}

func (s *MemoryStore) edgeCountLocked() int {
	count := 0
	for _, byType := range s.out {
		for _, edges := range byType {
			count += len(edges)
		}
	}
	return count
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) updateGaugesLocked() {
	observability.GraphNodes.Set(float64(len(s.nodes)))
	observability.GraphEdges.Set(float64(s.edgeCountLocked()))
}

func fileKey(project, filePath string) string {
	return project + "|" + filePath
}
