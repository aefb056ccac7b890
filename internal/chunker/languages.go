package chunker

import (
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// DefaultRegistry returns a registry with all built-in language detectors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	registerGo(r)
	registerPython(r)
	registerJavaScript(r)
	registerTypeScript(r)
	return r
}

func registerGo(r *Registry) {
	r.Register("go", &LanguageSpec{
		Language: golang.GetLanguage(),
		Query: `
			(function_declaration) @definition
			(method_declaration) @definition
			(type_declaration) @definition
		`,
		Kinds: map[string]types.ChunkKind{
			"function_declaration": types.ChunkFunction,
			"method_declaration":   types.ChunkMethod,
			"type_declaration":     types.ChunkClass,
		},
	})
}

func registerPython(r *Registry) {
	r.Register("python", &LanguageSpec{
		Language: python.GetLanguage(),
		Query: `
			(function_definition) @definition
			(class_definition) @definition
			(decorated_definition) @definition
		`,
		Kinds: map[string]types.ChunkKind{
			"function_definition":  types.ChunkFunction,
			"class_definition":     types.ChunkClass,
			"decorated_definition": types.ChunkFunction,
		},
	})
}

func registerJavaScript(r *Registry) {
	r.Register("javascript", &LanguageSpec{
		Language: javascript.GetLanguage(),
		Query: `
			(function_declaration) @definition
			(class_declaration) @definition
			(method_definition) @definition
		`,
		Kinds: map[string]types.ChunkKind{
			"function_declaration": types.ChunkFunction,
			"class_declaration":    types.ChunkClass,
			"method_definition":    types.ChunkMethod,
		},
	})
}

func registerTypeScript(r *Registry) {
	r.Register("typescript", &LanguageSpec{
		Language: typescript.GetLanguage(),
		Query: `
			(function_declaration) @definition
			(class_declaration) @definition
			(method_definition) @definition
			(interface_declaration) @definition
			(type_alias_declaration) @definition
		`,
		Kinds: map[string]types.ChunkKind{
			"function_declaration":   types.ChunkFunction,
			"class_declaration":      types.ChunkClass,
			"method_definition":      types.ChunkMethod,
			"interface_declaration":  types.ChunkClass,
			"type_alias_declaration": types.ChunkClass,
		},
	})
}
