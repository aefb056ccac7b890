package store

import (
	"sort"
	"time"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// Diagnostic records a file that was skipped or degraded during a build.
type Diagnostic struct {
	Path   string
	Reason string
}

// VectorEntry pairs an embedding with the content hash of the chunk it was
// computed from. A hash mismatch after reload means the vector is stale and
// must be dropped.
type VectorEntry struct {
	Vector      []float32
	ContentHash [32]byte
	Dimension   int
}

// Posting locates every occurrence of a token inside one chunk.
type Posting struct {
	ChunkID string
	Offsets []int // ascending byte offsets within the chunk content
}

// Snapshot is one immutable view of an indexed root. All fields are written
// during construction and never mutated afterwards, so readers may hold a
// snapshot across an arbitrary number of queries without locking.
type Snapshot struct {
	Root     string
	BuiltAt  time.Time
	Provider string
	Model    string

	Files       map[string]types.FileRecord
	Chunks      map[string]types.ChunkRecord
	Diagnostics []Diagnostic

	chunkIDs   []string            // all chunk IDs, sorted
	fileChunks map[string][]string // path -> chunk IDs ordered by start byte
	postings   map[string][]Posting
	chunkToks  map[string]map[string][]int // chunkID -> token -> offsets
	vectors    map[string]VectorEntry
}

// NewSnapshot assembles a snapshot from build output. Postings are derived
// here so every snapshot is internally consistent by construction. The
// vectors map may be nil or sparse when no embedding backend is available.
func NewSnapshot(root string, files []types.FileRecord, chunks []types.ChunkRecord,
	vectors map[string]VectorEntry, provider, model string, diags []Diagnostic) *Snapshot {
	return newSnapshot(root, files, chunks, nil, vectors, provider, model, diags)
}

// newSnapshot is the shared constructor. When precomputed per-chunk tokens
// are supplied (artifact load) they are trusted; otherwise content is
// tokenized here.
func newSnapshot(root string, files []types.FileRecord, chunks []types.ChunkRecord,
	precomputedToks map[string]map[string][]int, vectors map[string]VectorEntry,
	provider, model string, diags []Diagnostic) *Snapshot {

	s := &Snapshot{
		Root:        root,
		BuiltAt:     time.Now().UTC(),
		Provider:    provider,
		Model:       model,
		Files:       make(map[string]types.FileRecord, len(files)),
		Chunks:      make(map[string]types.ChunkRecord, len(chunks)),
		Diagnostics: diags,
		fileChunks:  make(map[string][]string),
		chunkToks:   make(map[string]map[string][]int, len(chunks)),
		vectors:     make(map[string]VectorEntry, len(vectors)),
	}

	for _, f := range files {
		s.Files[f.Path] = f
	}

	for _, c := range chunks {
		s.Chunks[c.ID] = c
		s.chunkIDs = append(s.chunkIDs, c.ID)
		s.fileChunks[c.Path] = append(s.fileChunks[c.Path], c.ID)
		if toks, ok := precomputedToks[c.ID]; ok {
			s.chunkToks[c.ID] = toks
		} else {
			s.chunkToks[c.ID] = Tokenize(c.Content)
		}
	}
	sort.Strings(s.chunkIDs)
	for path := range s.fileChunks {
		ids := s.fileChunks[path]
		sort.Slice(ids, func(i, j int) bool {
			return s.Chunks[ids[i]].StartByte < s.Chunks[ids[j]].StartByte
		})
	}

	s.postings = buildPostings(s.chunkIDs, s.chunkToks)

	// A vector is only admitted when its content hash still matches the
	// chunk it claims to describe; anything else is stale.
	for id, v := range vectors {
		c, ok := s.Chunks[id]
		if !ok || c.ContentHash != v.ContentHash {
			continue
		}
		s.vectors[id] = v
	}

	return s
}

// buildPostings inverts per-chunk token maps into token -> postings lists
// ordered by chunk ID. Ordering makes list intersection linear and query
// results deterministic.
func buildPostings(sortedIDs []string, chunkToks map[string]map[string][]int) map[string][]Posting {
	postings := make(map[string][]Posting)
	for _, id := range sortedIDs {
		for tok, offs := range chunkToks[id] {
			postings[tok] = append(postings[tok], Posting{ChunkID: id, Offsets: offs})
		}
	}
	return postings
}

// ChunkIDs returns all chunk IDs in sorted order.
func (s *Snapshot) ChunkIDs() []string {
	return s.chunkIDs
}

// ChunksForFile returns the chunk IDs of one file ordered by start byte.
func (s *Snapshot) ChunksForFile(path string) []string {
	return s.fileChunks[path]
}

// Vector returns the embedding stored for a chunk, if any.
func (s *Snapshot) Vector(chunkID string) (VectorEntry, bool) {
	v, ok := s.vectors[chunkID]
	return v, ok
}

// VectorCount reports how many chunks carry embeddings.
func (s *Snapshot) VectorCount() int {
	return len(s.vectors)
}

// TokensForChunk exposes a chunk's token offsets for persistence and for
// vector reuse across refreshes.
func (s *Snapshot) TokensForChunk(chunkID string) map[string][]int {
	return s.chunkToks[chunkID]
}

// Postings returns the posting list for a token, or nil.
func (s *Snapshot) Postings(token string) []Posting {
	return s.postings[token]
}

// Stats summarizes a snapshot for status reporting.
type Stats struct {
	Files       int
	Chunks      int
	Vectors     int
	Degraded    int
	Diagnostics int
	BuiltAt     time.Time
	Provider    string
	Model       string
}

// Stats computes summary statistics for the snapshot.
func (s *Snapshot) Stats() Stats {
	degraded := 0
	for _, f := range s.Files {
		if f.Degraded {
			degraded++
		}
	}
	return Stats{
		Files:       len(s.Files),
		Chunks:      len(s.Chunks),
		Vectors:     len(s.vectors),
		Degraded:    degraded,
		Diagnostics: len(s.Diagnostics),
		BuiltAt:     s.BuiltAt,
		Provider:    s.Provider,
		Model:       s.Model,
	}
}
