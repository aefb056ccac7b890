package query

import (
	"strings"

	"github.com/codecompass/codecompass-mcp/internal/store"
	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// textResult converts a text match into a result with a line-oriented
// snippet and highlight offsets. Snippets are cut from chunk content, so
// they never require touching the filesystem at query time.
func (e *Engine) textResult(snap *store.Snapshot, m store.TextMatch, req Request) types.QueryResult {
	chunk := snap.Chunks[m.ChunkID]

	line := chunk.StartLine + strings.Count(chunk.Content[:m.Offset], "\n")
	snippet, hlStart := snippetAround(chunk.Content, m.Offset, req.ContextLines)
	hlEnd := hlStart + m.Length
	if hlEnd > len(snippet) {
		hlEnd = len(snippet)
	}

	return types.QueryResult{
		ChunkID:        m.ChunkID,
		Path:           m.Path,
		Line:           line,
		Snippet:        snippet,
		HighlightStart: hlStart,
		HighlightEnd:   hlEnd,
		Score:          1.0,
		Mode:           string(req.Mode),
	}
}

// semanticResult converts a scored chunk into a result. There is no exact
// matched span, so the highlight offsets are -1 and the snippet is the
// head of the chunk.
func (e *Engine) semanticResult(snap *store.Snapshot, m store.SemanticMatch, req Request) types.QueryResult {
	chunk := snap.Chunks[m.ChunkID]

	snippet := chunk.Content
	if nl := nthLineEnd(snippet, 1+req.ContextLines); nl >= 0 {
		snippet = snippet[:nl]
	}

	return types.QueryResult{
		ChunkID:        m.ChunkID,
		Path:           m.Path,
		Line:           chunk.StartLine,
		Snippet:        snippet,
		HighlightStart: -1,
		HighlightEnd:   -1,
		Score:          m.Score,
		Mode:           string(req.Mode),
	}
}

// snippetAround returns the lines surrounding the byte offset, clipped to
// the chunk, plus the highlight start relative to the snippet.
func snippetAround(content string, offset int, contextLines int) (string, int) {
	if offset > len(content) {
		offset = len(content)
	}

	// Walk back to the start of the match line, then contextLines more.
	start := offset
	for lines := 0; start > 0; {
		prev := strings.LastIndexByte(content[:start], '\n')
		if prev < 0 {
			start = 0
			break
		}
		if lines == contextLines {
			start = prev + 1
			break
		}
		start = prev
		lines++
	}
	if start < 0 {
		start = 0
	}

	// Walk forward past the end of the match line, then contextLines more.
	end := offset
	for lines := 0; end < len(content); {
		next := strings.IndexByte(content[end:], '\n')
		if next < 0 {
			end = len(content)
			break
		}
		if lines == contextLines {
			end += next
			break
		}
		end += next + 1
		lines++
	}

	return content[start:end], offset - start
}

// nthLineEnd returns the byte offset of the nth newline, or -1.
func nthLineEnd(s string, n int) int {
	pos := 0
	for i := 0; i < n; i++ {
		nl := strings.IndexByte(s[pos:], '\n')
		if nl < 0 {
			return -1
		}
		pos += nl
		if i < n-1 {
			pos++
		}
	}
	return pos
}
