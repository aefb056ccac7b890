package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// Builder produces snapshots. The concrete implementation lives in the
// indexing pipeline; the store only sequences builds and publishes results.
type Builder interface {
	// Build indexes a root from scratch.
	Build(ctx context.Context, root string) (*Snapshot, error)

	// Refresh re-indexes a root, reusing unchanged chunks and their
	// embeddings from the previous snapshot.
	Refresh(ctx context.Context, prev *Snapshot) (*Snapshot, error)
}

// Index holds the current snapshot for one root. Readers load the snapshot
// pointer atomically; a build assembles a complete replacement off to the
// side and swaps it in, so queries never observe a half-built index.
type Index struct {
	root  string
	snap  atomic.Pointer[Snapshot]
	lock  buildLock
	stale atomic.Bool
}

// NewIndex creates an empty index for a root. It has no snapshot until the
// first Build or a successful artifact load.
func NewIndex(root string) *Index {
	return &Index{root: root}
}

// Root returns the canonical root path this index serves.
func (ix *Index) Root() string { return ix.root }

// Snapshot returns the current snapshot, or nil before the first build.
func (ix *Index) Snapshot() *Snapshot {
	return ix.snap.Load()
}

// Stale reports whether the filesystem is known to have drifted from the
// current snapshot. Queries still run against the stale snapshot; the flag
// is surfaced on results so callers can decide to refresh.
func (ix *Index) Stale() bool { return ix.stale.Load() }

// MarkStale flags the index for a future refresh. It never triggers a
// rebuild by itself.
func (ix *Index) MarkStale() { ix.stale.Store(true) }

// Restore installs a snapshot loaded from a persisted artifact. The index
// is marked stale because the filesystem may have changed since the
// artifact was written.
func (ix *Index) Restore(snap *Snapshot) {
	ix.snap.Store(snap)
	ix.stale.Store(true)
}

// Build runs a full build and atomically publishes the result. A build
// already in flight fails fast with types.ErrRefreshInProgress.
func (ix *Index) Build(ctx context.Context, b Builder) (*Snapshot, error) {
	if !ix.lock.tryAcquire() {
		return nil, fmt.Errorf("%w: root %s", types.ErrRefreshInProgress, ix.root)
	}
	defer ix.lock.release()

	snap, err := b.Build(ctx, ix.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIndexBuild, err)
	}
	ix.snap.Store(snap)
	ix.stale.Store(false)
	return snap, nil
}

// Refresh re-indexes against the previous snapshot, reusing unchanged work.
// With no previous snapshot it degrades to a full build.
func (ix *Index) Refresh(ctx context.Context, b Builder) (*Snapshot, error) {
	if !ix.lock.tryAcquire() {
		return nil, fmt.Errorf("%w: root %s", types.ErrRefreshInProgress, ix.root)
	}
	defer ix.lock.release()

	prev := ix.snap.Load()
	var snap *Snapshot
	var err error
	if prev == nil {
		snap, err = b.Build(ctx, ix.root)
	} else {
		snap, err = b.Refresh(ctx, prev)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIndexBuild, err)
	}
	ix.snap.Store(snap)
	ix.stale.Store(false)
	return snap, nil
}

// Registry owns the indexes of all configured roots. It is an explicit
// object handed to its consumers; nothing in this package keeps global
// state, so tests and embedders can run isolated registries side by side.
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]*Index
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{indexes: make(map[string]*Index)}
}

// Open returns the index for a canonical root, creating it on first use.
func (r *Registry) Open(root string) *Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	ix, ok := r.indexes[root]
	if !ok {
		ix = NewIndex(root)
		r.indexes[root] = ix
	}
	return ix
}

// Get returns the index for a root, or types.ErrNotFound when the root was
// never opened or has been evicted.
func (r *Registry) Get(root string) (*Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ix, ok := r.indexes[root]
	if !ok {
		return nil, fmt.Errorf("%w: no index for root %s", types.ErrNotFound, root)
	}
	return ix, nil
}

// Evict drops a root's index. Subsequent lookups fail with
// types.ErrNotFound until the root is opened again.
func (r *Registry) Evict(root string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, root)
}

// Roots lists the registered roots in sorted order.
func (r *Registry) Roots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roots := make([]string, 0, len(r.indexes))
	for root := range r.indexes {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}
