// Package extract turns source files into graph batches. It is a thin
// collaborator: tree-sitter grammars drive per-language symbol extraction,
// markdown gets a raw-text extractor, and everything funnels into one
// graph.Batch per file, the sole write path into the store.
package extract

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"symgraph/internal/core/errors"
	"symgraph/internal/engine/address"
	"symgraph/internal/engine/graph"
	"symgraph/internal/shared/observability"
)

// Extractor parses files of the enabled languages into graph batches.
type Extractor struct {
	project string
	byExt   map[string]*languageDef
}

// New creates an extractor for the project. enabled selects language IDs;
// nil enables every built-in language.
func New(project string, enabled []string) *Extractor {
	return &Extractor{
		project: project,
		byExt:   buildLanguages(enabled),
	}
}

// Supported reports whether the path maps to an enabled language.
func (e *Extractor) Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".md" || ext == ".markdown" {
		return true
	}
	_, ok := e.byExt[ext]
	return ok
}

// ExtractFile parses one file into a batch. The file path is normalized
// into the batch's addresses; an unsupported extension is an error.
func (e *Extractor) ExtractFile(filePath string, content []byte) (graph.Batch, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	start := time.Now()
	langID := strings.TrimPrefix(ext, ".")
	defer func() {
		observability.ExtractionDuration.WithLabelValues(langID).Observe(time.Since(start).Seconds())
	}()

	if ext == ".md" || ext == ".markdown" {
		return e.extractMarkdown(filePath, content)
	}

	def, ok := e.byExt[ext]
	if !ok {
		return graph.Batch{}, errors.Newf(errors.CodeNotSupported, "unsupported file extension %q", ext)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(def.Language())

	tree := parser.Parse(content, nil)
	if tree == nil {
		return graph.Batch{}, errors.Newf(errors.CodeInternal, "parse failed for %s", filePath)
	}
	defer tree.Close()

	b := newBatchBuilder(e.project, filePath, content)
	b.walk(def, tree.RootNode())
	return b.batch(), nil
}

// batchBuilder accumulates one file's nodes and edges under a per-file
// namespace node that anchors containment and imports.
type batchBuilder struct {
	project  string
	filePath string
	source   []byte

	namespace string
	nodes     []graph.Node
	edges     []graph.Edge
	seen      map[string]bool
}

func newBatchBuilder(project, filePath string, source []byte) *batchBuilder {
	filePath = strings.ReplaceAll(filePath, `\`, "/")
	b := &batchBuilder{
		project:  project,
		filePath: filePath,
		source:   source,
		seen:     make(map[string]bool),
	}

	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	b.namespace = b.addNode(address.KindNamespace, base, 1, nil)
	return b
}

func (b *batchBuilder) addNode(kind address.NodeKind, name string, line int, meta map[string]string) string {
	addr := address.Create(b.project, b.filePath, kind, name)
	if b.seen[addr] {
		return addr
	}
	b.seen[addr] = true

	if meta == nil {
		meta = map[string]string{}
	}
	meta["line"] = strconv.Itoa(line)

	b.nodes = append(b.nodes, graph.Node{
		Address:  addr,
		Project:  b.project,
		FilePath: b.filePath,
		Kind:     kind,
		Name:     name,
		Metadata: meta,
	})
	return addr
}

func (b *batchBuilder) addEdge(from, to string, t graph.EdgeType) {
	b.edges = append(b.edges, graph.Edge{From: from, To: to, Type: t})
}

func (b *batchBuilder) batch() graph.Batch {
	return graph.Batch{
		Project:  b.project,
		FilePath: b.filePath,
		Nodes:    b.nodes,
		Edges:    b.edges,
	}
}

func (b *batchBuilder) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(b.source[node.StartByte():node.EndByte()])
}

func (b *batchBuilder) line(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// walk visits the whole tree, recording declarations and imports wherever
// they appear. Nested declarations hang off the file namespace like
// top-level ones; deep scoping is not this extractor's job.
func (b *batchBuilder) walk(def *languageDef, node *sitter.Node) {
	if node == nil {
		return
	}

	kind := node.Kind()
	switch {
	case def.ImportKinds[kind]:
		b.recordImport(node)
	case def.ID == "html" && kind == "element":
		b.recordHTMLElement(node)
	default:
		if rule, ok := def.Decls[kind]; ok {
			b.recordDecl(node, rule)
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		b.walk(def, node.Child(i))
	}
}

func (b *batchBuilder) recordDecl(node *sitter.Node, rule declRule) {
	name := b.declName(node, rule)
	if name == "" {
		return
	}
	addr := b.addNode(rule.Kind, name, b.line(node), nil)
	if addr != b.namespace {
		b.addEdge(b.namespace, addr, graph.EdgeContains)
	}
}

func (b *batchBuilder) declName(node *sitter.Node, rule declRule) string {
	if named := node.ChildByFieldName("name"); named != nil {
		return strings.TrimSpace(b.text(named))
	}
	for _, kind := range rule.NameKinds {
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child.Kind() == kind {
				return strings.TrimSpace(b.text(child))
			}
		}
	}
	return ""
}

// recordImport finds the imported module in the statement's string literal
// (or dotted name for python/java/rust) and links the file namespace to the
// target module's namespace address.
func (b *batchBuilder) recordImport(node *sitter.Node) {
	module := b.importModule(node)
	if module == "" {
		return
	}

	target := address.Create(b.project, module, address.KindNamespace, moduleBase(module))
	b.addEdge(b.namespace, target, graph.EdgeImports)
}

func (b *batchBuilder) importModule(node *sitter.Node) string {
	var found string
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if found != "" || n == nil {
			return
		}
		switch n.Kind() {
		case "interpreted_string_literal", "raw_string_literal", "string", "string_literal":
			found = strings.Trim(b.text(n), "\"'`")
			return
		case "dotted_name", "scoped_identifier", "scoped_use_list", "use_wildcard", "identifier":
			// python "import a.b", java "import a.b.C", rust "use a::b".
			found = b.text(n)
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			visit(n.Child(i))
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		visit(node.Child(i))
	}
	return strings.TrimSpace(found)
}

func moduleBase(module string) string {
	module = strings.ReplaceAll(module, "::", "/")
	module = strings.ReplaceAll(module, ".", "/")
	parts := strings.Split(module, "/")
	return parts[len(parts)-1]
}

// recordHTMLElement turns elements with an id attribute into section nodes.
func (b *batchBuilder) recordHTMLElement(node *sitter.Node) {
	var id string
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if id != "" || n == nil {
			return
		}
		if n.Kind() == "attribute" {
			attr := b.text(n)
			if v, ok := strings.CutPrefix(attr, "id="); ok {
				id = strings.Trim(v, "\"'")
			}
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			visit(n.Child(i))
		}
	}
	// Only inspect the opening tag, not the subtree.
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "start_tag" || child.Kind() == "self_closing_tag" {
			visit(child)
		}
	}
	if id == "" {
		return
	}
	addr := b.addNode(address.KindSection, id, b.line(node), nil)
	b.addEdge(b.namespace, addr, graph.EdgeContains)
}
