package chunker

import (
	"bytes"
	"context"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// Defaults for the chunking configuration constants.
const (
	DefaultWindowBytes   = 512
	DefaultOverlapBytes  = 50
	DefaultMaxChunkBytes = 8192
)

// Config holds the chunking constants.
type Config struct {
	// WindowBytes is the target size of fallback window chunks.
	WindowBytes int
	// OverlapBytes of preceding file content are attached to each window
	// chunk as embedding context. Chunk byte ranges themselves never
	// overlap, so range invariants hold regardless of this value.
	OverlapBytes int
	// MaxChunkBytes bounds every chunk, including language-aware ones;
	// oversized definitions are subdivided at line boundaries.
	MaxChunkBytes int
}

func (c *Config) applyDefaults() {
	if c.WindowBytes <= 0 {
		c.WindowBytes = DefaultWindowBytes
	}
	if c.OverlapBytes < 0 {
		c.OverlapBytes = DefaultOverlapBytes
	}
	if c.MaxChunkBytes < c.WindowBytes {
		c.MaxChunkBytes = DefaultMaxChunkBytes
	}
}

// Chunker splits file content into addressable chunks with stable identities.
type Chunker struct {
	cfg      Config
	registry *Registry
}

// New creates a Chunker with the built-in language registry.
func New(cfg Config) *Chunker {
	cfg.applyDefaults()
	return &Chunker{cfg: cfg, registry: DefaultRegistry()}
}

// NewWithRegistry creates a Chunker with a caller-supplied registry.
func NewWithRegistry(cfg Config, r *Registry) *Chunker {
	cfg.applyDefaults()
	return &Chunker{cfg: cfg, registry: r}
}

// span is a candidate boundary before coverage filling.
type span struct {
	start, end int
	kind       types.ChunkKind
}

// Chunk splits content into an ordered sequence of non-overlapping chunk
// records that together cover every byte. When a boundary detector exists
// for the language hint it splits on definition boundaries; otherwise, and
// for gaps between definitions, it uses fixed-size windows.
func (c *Chunker) Chunk(relPath string, content []byte, language string) []types.ChunkRecord {
	if len(content) == 0 {
		return nil
	}

	spans := c.detectBoundaries(content, language)

	var ranges []span
	if len(spans) == 0 {
		ranges = c.windowSpans(0, len(content), len(content) <= c.cfg.WindowBytes)
	} else {
		cursor := 0
		for _, s := range spans {
			if s.start > cursor {
				ranges = append(ranges, c.windowSpans(cursor, s.start, false)...)
			}
			ranges = append(ranges, c.subdivide(content, s)...)
			cursor = s.end
		}
		if cursor < len(content) {
			ranges = append(ranges, c.windowSpans(cursor, len(content), false)...)
		}
	}

	lineOffsets := computeLineOffsets(content)
	records := make([]types.ChunkRecord, 0, len(ranges))
	for _, r := range ranges {
		rec := types.ChunkRecord{
			ID:        types.ChunkID(relPath, r.start, r.end),
			Path:      relPath,
			StartByte: r.start,
			EndByte:   r.end,
			StartLine: lineForOffset(lineOffsets, r.start),
			EndLine:   lineForOffset(lineOffsets, r.end-1),
			Kind:      r.kind,
			Language:  language,
			Content:   string(content[r.start:r.end]),
		}
		if r.kind == types.ChunkWindow && r.start > 0 {
			ctxStart := r.start - c.cfg.OverlapBytes
			if ctxStart < 0 {
				ctxStart = 0
			}
			rec.Context = string(content[ctxStart:r.start])
		}
		rec.ComputeContentHash()
		records = append(records, rec)
	}
	return records
}

// detectBoundaries parses content with the language's tree-sitter grammar
// and returns sorted, non-overlapping definition spans. A nil result means
// the caller must fall back to windows.
func (c *Chunker) detectBoundaries(content []byte, language string) []span {
	spec := c.registry.Lookup(language)
	if spec == nil {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		return nil
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var spans []span
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, cap := range m.Captures {
			node := cap.Node
			kind, ok := spec.Kinds[node.Type()]
			if !ok {
				kind = types.ChunkFunction
			}
			spans = append(spans, span{
				start: int(node.StartByte()),
				end:   int(node.EndByte()),
				kind:  kind,
			})
		}
	}

	return dedupSpans(spans)
}

// dedupSpans sorts spans and drops any that overlap an earlier, larger one,
// keeping the outermost node when captures nest.
func dedupSpans(spans []span) []span {
	if len(spans) <= 1 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end-spans[i].start > spans[j].end-spans[j].start
	})

	out := spans[:0]
	lastEnd := -1
	for _, s := range spans {
		if s.start >= lastEnd {
			out = append(out, s)
			lastEnd = s.end
		}
	}
	return out
}

// subdivide splits a definition span that exceeds the chunk bound into block
// chunks, cutting at line boundaries where possible.
func (c *Chunker) subdivide(content []byte, s span) []span {
	if s.end-s.start <= c.cfg.MaxChunkBytes {
		return []span{s}
	}

	var out []span
	cursor := s.start
	for cursor < s.end {
		cut := cursor + c.cfg.MaxChunkBytes
		if cut >= s.end {
			cut = s.end
		} else {
			// Prefer the last newline inside the budget.
			if nl := bytes.LastIndexByte(content[cursor:cut], '\n'); nl > 0 {
				cut = cursor + nl + 1
			}
		}
		out = append(out, span{start: cursor, end: cut, kind: types.ChunkBlock})
		cursor = cut
	}
	return out
}

// windowSpans covers [start, end) with non-overlapping windows. wholeFile
// marks a region that is the entire (small) file.
func (c *Chunker) windowSpans(start, end int, wholeFile bool) []span {
	if start >= end {
		return nil
	}
	if wholeFile {
		return []span{{start: start, end: end, kind: types.ChunkFile}}
	}

	var out []span
	cursor := start
	for cursor < end {
		cut := cursor + c.cfg.WindowBytes
		if cut > end {
			cut = end
		}
		out = append(out, span{start: cursor, end: cut, kind: types.ChunkWindow})
		cursor = cut
	}
	return out
}

// computeLineOffsets returns the byte offset of each line start.
func computeLineOffsets(content []byte) []int {
	offsets := []int{0}
	for i, b := range content {
		if b == '\n' && i+1 < len(content) {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// lineForOffset returns the 1-based line containing the byte offset.
func lineForOffset(offsets []int, off int) int {
	i := sort.SearchInts(offsets, off+1)
	return i
}
