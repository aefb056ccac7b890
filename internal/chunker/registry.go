package chunker

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// LanguageSpec describes how to find chunk boundaries for one language.
type LanguageSpec struct {
	Language *sitter.Language
	// Query is a tree-sitter S-expression query capturing top-level
	// definitions as @definition.
	Query string
	// Kinds maps a captured node type to a chunk kind. Node types not
	// listed default to ChunkFunction.
	Kinds map[string]types.ChunkKind
}

// Registry maps language names (as tagged by the walker) to specs.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*LanguageSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*LanguageSpec)}
}

// Register adds a language spec under the given name.
func (r *Registry) Register(name string, spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[name] = spec
}

// Lookup returns the spec for a language, or nil when the language has no
// boundary detector and the caller must use the window fallback.
func (r *Registry) Lookup(language string) *LanguageSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[language]
}

// Supported returns the set of languages with a registered detector.
func (r *Registry) Supported() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.specs))
	for name := range r.specs {
		out[name] = true
	}
	return out
}
