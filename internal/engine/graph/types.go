// Package graph defines the symbol graph data model and the store contract
// the inference, query, and realtime layers are written against.
package graph

import (
	"symgraph/internal/engine/address"
)

// EdgeType names a relation between two nodes.
type EdgeType string

// Asserted edge types, produced directly by extraction.
const (
	EdgeImports    EdgeType = "imports"
	EdgeCalls      EdgeType = "calls"
	EdgeExtends    EdgeType = "extends"
	EdgeImplements EdgeType = "implements"
	EdgeContains   EdgeType = "contains"
	EdgeDependsOn  EdgeType = "depends_on"
	EdgeUsedBy     EdgeType = "used_by"
	EdgeDefinedIn  EdgeType = "defined_in"
)

// Direction selects which side of an edge an address is on.
type Direction string

const (
	DirOut Direction = "out"
	DirIn  Direction = "in"
)

// Node is a graph node identified by its canonical address string. Metadata
// (location, documentation, visibility, ...) is owned by the extraction
// layer that created the node; the graph subsystem treats it as opaque.
type Node struct {
	Address  string
	Project  string
	FilePath string
	Kind     address.NodeKind
	Name     string
	Metadata map[string]string
}

// Edge connects two nodes by address. An edge produced by the inference
// engine carries its provenance in DerivedBy and the traversal depth it was
// discovered at; asserted edges leave both zero.
type Edge struct {
	From     string
	To       string
	Type     EdgeType
	Metadata map[string]string
	// Provenance, set only on inferred edges.
	DerivedBy string
	Depth     int
}

// Inferred reports whether the edge was derived rather than asserted.
func (e Edge) Inferred() bool {
	return e.DerivedBy != ""
}

// key identifies an edge for upsert purposes. Two inferred edges from
// different rules are distinct; two asserted edges between the same pair of
// the same type collapse.
func (e Edge) key() string {
	return e.From + "|" + e.To + "|" + string(e.Type) + "|" + e.DerivedBy
}

// Batch is the unit of write produced per analyzed file by the extraction
// layer. Applying a batch replaces every node and asserted edge previously
// owned by (Project, FilePath); nodes are never partially mutated.
type Batch struct {
	Project  string
	FilePath string
	Nodes    []Node
	Edges    []Edge
}

func cloneNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Metadata != nil {
		c.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func cloneEdge(e *Edge) Edge {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}
