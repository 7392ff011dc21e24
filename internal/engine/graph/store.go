package graph

// Store is the port (interface) the graph subsystem consumes. It guarantees
// read-after-write visibility within a single process; cross-process
// consistency is out of scope.
//
// A concrete SQLite adapter lives in internal/data/graphstore and implements
// this interface; MemoryStore in this package is the in-process reference.
type Store interface {
	// GetNode retrieves a node by canonical address.
	// Returns (nil, nil) if the node does not exist.
	GetNode(addr string) (*Node, error)

	// PutNode persists a node, overwriting any existing node at the same
	// address (upsert semantics).
	PutNode(node Node) error

	// GetEdges returns the edges touching addr on the given side. An empty
	// edgeType matches all types. Edges referencing missing nodes are
	// returned as-is; traversal tolerates them.
	GetEdges(addr string, edgeType EdgeType, dir Direction) ([]Edge, error)

	// PutEdge persists an edge (upsert on from, to, type, provenance).
	PutEdge(edge Edge) error

	// AllNodes returns every node matching filter, or every node when
	// filter is nil.
	AllNodes(filter func(Node) bool) ([]Node, error)

	// Close releases underlying resources. After Close, behaviour of other
	// methods is undefined.
	Close() error
}

// BatchWriter is implemented by stores that accept the extraction layer's
// per-file write batches.
type BatchWriter interface {
	ApplyBatch(batch Batch) error
}

// ChangeNotifier is implemented by stores that can report edge writes, used
// by the inference memo cache for invalidation.
type ChangeNotifier interface {
	// OnEdgeWrite registers a callback invoked after every edge write.
	// Callbacks run synchronously on the writing goroutine and must be fast.
	OnEdgeWrite(fn func(Edge))
}
