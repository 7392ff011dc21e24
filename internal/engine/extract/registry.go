package extract

import (
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"symgraph/internal/engine/address"
)

// declRule maps one syntax-tree node kind to the symbol it declares.
type declRule struct {
	Kind address.NodeKind
	// NameKinds lists child node kinds that carry the symbol name, tried
	// in order when the grammar has no "name" field on the declaration.
	NameKinds []string
}

// languageDef is the per-language extraction table. Decls maps declaration
// node kinds to symbol kinds; ImportKinds marks nodes whose string literal
// child names an imported module.
type languageDef struct {
	ID          string
	Extensions  []string
	Language    func() *sitter.Language
	Decls       map[string]declRule
	ImportKinds map[string]bool
}

func identRule(kind address.NodeKind) declRule {
	return declRule{Kind: kind, NameKinds: []string{"identifier", "type_identifier", "property_identifier", "field_identifier"}}
}

// builtinLanguages is the full grammar table. Configuration enables a
// subset; markdown is handled by a raw extractor and has no entry here.
func builtinLanguages() []*languageDef {
	return []*languageDef{
		{
			ID:         "go",
			Extensions: []string{".go"},
			Language:   func() *sitter.Language { return sitter.NewLanguage(tree_sitter_go.Language()) },
			Decls: map[string]declRule{
				"function_declaration": identRule(address.KindFunction),
				"method_declaration":   identRule(address.KindMethod),
				"type_spec":            identRule(address.KindType),
				"const_spec":           identRule(address.KindVariable),
				"var_spec":             identRule(address.KindVariable),
			},
			ImportKinds: map[string]bool{"import_spec": true},
		},
		{
			ID:         "javascript",
			Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
			Language:   func() *sitter.Language { return sitter.NewLanguage(tree_sitter_javascript.Language()) },
			Decls: map[string]declRule{
				"function_declaration":  identRule(address.KindFunction),
				"generator_function_declaration": identRule(address.KindFunction),
				"class_declaration":     identRule(address.KindClass),
				"method_definition":     identRule(address.KindMethod),
				"variable_declarator":   identRule(address.KindVariable),
			},
			ImportKinds: map[string]bool{"import_statement": true},
		},
		{
			ID:         "typescript",
			Extensions: []string{".ts"},
			Language:   func() *sitter.Language { return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()) },
			Decls: map[string]declRule{
				"function_declaration":   identRule(address.KindFunction),
				"class_declaration":      identRule(address.KindClass),
				"interface_declaration":  identRule(address.KindInterface),
				"enum_declaration":       identRule(address.KindEnum),
				"type_alias_declaration": identRule(address.KindType),
				"method_definition":      identRule(address.KindMethod),
				"variable_declarator":    identRule(address.KindVariable),
				"internal_module":        identRule(address.KindNamespace),
			},
			ImportKinds: map[string]bool{"import_statement": true},
		},
		{
			ID:         "tsx",
			Extensions: []string{".tsx"},
			Language:   func() *sitter.Language { return sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()) },
			Decls: map[string]declRule{
				"function_declaration":  identRule(address.KindFunction),
				"class_declaration":     identRule(address.KindClass),
				"interface_declaration": identRule(address.KindInterface),
				"enum_declaration":      identRule(address.KindEnum),
				"variable_declarator":   identRule(address.KindVariable),
			},
			ImportKinds: map[string]bool{"import_statement": true},
		},
		{
			ID:         "python",
			Extensions: []string{".py"},
			Language:   func() *sitter.Language { return sitter.NewLanguage(tree_sitter_python.Language()) },
			Decls: map[string]declRule{
				"function_definition": identRule(address.KindFunction),
				"class_definition":    identRule(address.KindClass),
			},
			ImportKinds: map[string]bool{"import_statement": true, "import_from_statement": true},
		},
		{
			ID:         "java",
			Extensions: []string{".java"},
			Language:   func() *sitter.Language { return sitter.NewLanguage(tree_sitter_java.Language()) },
			Decls: map[string]declRule{
				"class_declaration":     identRule(address.KindClass),
				"interface_declaration": identRule(address.KindInterface),
				"enum_declaration":      identRule(address.KindEnum),
				"method_declaration":    identRule(address.KindMethod),
			},
			ImportKinds: map[string]bool{"import_declaration": true},
		},
		{
			ID:         "rust",
			Extensions: []string{".rs"},
			Language:   func() *sitter.Language { return sitter.NewLanguage(tree_sitter_rust.Language()) },
			Decls: map[string]declRule{
				"function_item": identRule(address.KindFunction),
				"struct_item":   identRule(address.KindClass),
				"enum_item":     identRule(address.KindEnum),
				"trait_item":    identRule(address.KindInterface),
				"mod_item":      identRule(address.KindNamespace),
			},
			ImportKinds: map[string]bool{"use_declaration": true},
		},
		{
			ID:         "html",
			Extensions: []string{".html", ".htm"},
			Language:   func() *sitter.Language { return sitter.NewLanguage(tree_sitter_html.Language()) },
			// Elements carrying an id attribute become document sections;
			// handled specially in the walker.
			Decls:       map[string]declRule{},
			ImportKinds: map[string]bool{},
		},
		{
			ID:         "css",
			Extensions: []string{".css"},
			Language:   func() *sitter.Language { return sitter.NewLanguage(tree_sitter_css.Language()) },
			Decls: map[string]declRule{
				"rule_set": {Kind: address.KindTag, NameKinds: []string{"selectors"}},
			},
			ImportKinds: map[string]bool{},
		},
	}
}

// buildLanguages resolves the enabled set. Nil enables everything.
func buildLanguages(enabled []string) map[string]*languageDef {
	allow := map[string]bool{}
	for _, id := range enabled {
		allow[strings.ToLower(id)] = true
	}

	byExt := make(map[string]*languageDef)
	for _, def := range builtinLanguages() {
		if enabled != nil && !allow[def.ID] {
			continue
		}
		for _, ext := range def.Extensions {
			byExt[ext] = def
		}
	}
	return byExt
}

// LanguageIDs lists every built-in language, for configuration validation.
func LanguageIDs() []string {
	defs := builtinLanguages()
	ids := make([]string, 0, len(defs)+1)
	for _, def := range defs {
		ids = append(ids, def.ID)
	}
	ids = append(ids, "markdown")
	sort.Strings(ids)
	return ids
}
