package analysis

import (
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codecompass/codecompass-mcp/internal/pathguard"
	"github.com/codecompass/codecompass-mcp/internal/store"
	"github.com/codecompass/codecompass-mcp/pkg/types"
)

const todoCacheSize = 2048

// Analyzer answers code-understanding requests: TODO extraction,
// complexity scoring, reference lookup, and rule-based explanation. It
// reads file content through the path guard and file metadata from index
// snapshots.
type Analyzer struct {
	guard        *pathguard.Guard
	registry     *store.Registry
	todoCache    *lru.Cache[[32]byte, []types.TodoRecord]
	todoPatterns []*regexp.Regexp
}

// New creates an Analyzer with the default marker set.
func New(guard *pathguard.Guard, registry *store.Registry) *Analyzer {
	return NewWithMarkers(guard, registry, nil)
}

// NewWithMarkers creates an Analyzer scanning for a custom marker set.
// Nil or empty markers fall back to the defaults.
func NewWithMarkers(guard *pathguard.Guard, registry *store.Registry, markers []string) *Analyzer {
	cache, _ := lru.New[[32]byte, []types.TodoRecord](todoCacheSize)
	patterns := defaultTodoPatterns
	if len(markers) > 0 {
		patterns = compileMarkerPatterns(markers)
	}
	return &Analyzer{
		guard:        guard,
		registry:     registry,
		todoCache:    cache,
		todoPatterns: patterns,
	}
}

// snapshot resolves the published snapshot for a root.
func (a *Analyzer) snapshot(root string) (*store.Snapshot, string, error) {
	croot, err := a.guard.ResolveRoot(root)
	if err != nil {
		return nil, "", err
	}
	ix, err := a.registry.Get(croot)
	if err != nil {
		return nil, "", err
	}
	snap := ix.Snapshot()
	if snap == nil {
		return nil, "", types.ErrNotFound
	}
	return snap, croot, nil
}
