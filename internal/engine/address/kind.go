package address

// NodeKind is the closed set of node types an address may carry. The string
// values are part of the stable address format and must not change.
type NodeKind string

// Structural kinds.
const (
	KindClass     NodeKind = "Class"
	KindInterface NodeKind = "Interface"
	KindFunction  NodeKind = "Function"
	KindMethod    NodeKind = "Method"
	KindProperty  NodeKind = "Property"
	KindVariable  NodeKind = "Variable"
	KindType      NodeKind = "Type"
	KindEnum      NodeKind = "Enum"
	KindNamespace NodeKind = "Namespace"
)

// Document kinds.
const (
	KindHeading   NodeKind = "Heading"
	KindSection   NodeKind = "Section"
	KindParagraph NodeKind = "Paragraph"
)

// Relational kinds.
const (
	KindTag        NodeKind = "tag"
	KindParsedBy   NodeKind = "parsed-by"
	KindDefinedIn  NodeKind = "defined-in"
	KindExtends    NodeKind = "extends"
	KindImplements NodeKind = "implements"
	KindUsedBy     NodeKind = "used-by"
)

var validKinds = map[NodeKind]bool{
	KindClass:     true,
	KindInterface: true,
	KindFunction:  true,
	KindMethod:    true,
	KindProperty:  true,
	KindVariable:  true,
	KindType:      true,
	KindEnum:      true,
	KindNamespace: true,

	KindHeading:   true,
	KindSection:   true,
	KindParagraph: true,

	KindTag:        true,
	KindParsedBy:   true,
	KindDefinedIn:  true,
	KindExtends:    true,
	KindImplements: true,
	KindUsedBy:     true,
}

// IsValid reports whether k is a member of the closed kind set.
func (k NodeKind) IsValid() bool {
	return validKinds[k]
}

// Kinds returns every valid node kind. The result is a fresh slice.
func Kinds() []NodeKind {
	out := make([]NodeKind, 0, len(validKinds))
	for k := range validKinds {
		out = append(out, k)
	}
	return out
}
