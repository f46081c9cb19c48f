// Package languages registers the tree-sitter grammars whose declarations
// steer chunk boundaries in source files found among run artifacts.
package languages

import (
	"bigrag/internal/chunker"

	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// RegisterAll adds every bundled grammar to r.
func RegisterAll(r *chunker.Registry) {
	RegisterGo(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterPython(r)
}

func RegisterGo(r *chunker.Registry) {
	r.Register(&chunker.LanguageSpec{
		Name:     "go",
		Language: golang.GetLanguage(),
		Query: `
			(function_declaration) @chunk
			(method_declaration) @chunk
			(type_declaration) @chunk
		`,
		Extensions: []string{"go"},
	})
}

func RegisterJavaScript(r *chunker.Registry) {
	r.Register(&chunker.LanguageSpec{
		Name:     "javascript",
		Language: javascript.GetLanguage(),
		Query: `
			(function_declaration) @chunk
			(class_declaration) @chunk
			(export_statement) @chunk
			(lexical_declaration (variable_declarator value: (arrow_function))) @chunk
		`,
		Extensions: []string{"js", "jsx", "mjs", "cjs"},
	})
}

func RegisterTypeScript(r *chunker.Registry) {
	r.Register(&chunker.LanguageSpec{
		Name:     "typescript",
		Language: typescript.GetLanguage(),
		Query: `
			(function_declaration) @chunk
			(class_declaration) @chunk
			(export_statement) @chunk
			(interface_declaration) @chunk
			(type_alias_declaration) @chunk
			(lexical_declaration (variable_declarator value: (arrow_function))) @chunk
		`,
		Extensions: []string{"ts"},
	})
}

func RegisterPython(r *chunker.Registry) {
	r.Register(&chunker.LanguageSpec{
		Name:     "python",
		Language: python.GetLanguage(),
		Query: `
			(function_definition) @chunk
			(class_definition) @chunk
			(decorated_definition) @chunk
		`,
		Extensions: []string{"py"},
	})
}
