package store

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// TextMatch is one occurrence of a pattern inside a chunk.
type TextMatch struct {
	ChunkID string
	Path    string
	Offset  int // byte offset within the chunk content
	Length  int
}

// SemanticMatch is one chunk scored against a query vector.
type SemanticMatch struct {
	ChunkID string
	Path    string
	Score   float64
}

// deadline cancellation is checked between chunks, not per byte.
const deadlineCheckStride = 64

func checkDeadline(ctx context.Context, i int) error {
	if i%deadlineCheckStride != 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", types.ErrTimeout, ctx.Err())
	default:
		return nil
	}
}

// LookupLiteral finds every occurrence of a literal pattern. Candidate
// chunks are pruned through the postings index when the pattern contains an
// indexable token; otherwise every chunk is scanned. Results are ordered by
// path, then chunk start byte, then offset.
func (s *Snapshot) LookupLiteral(ctx context.Context, pattern string, caseSensitive bool) ([]TextMatch, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", types.ErrQuerySyntax)
	}

	ids, pruned := s.pruneByPattern(pattern)
	if !pruned {
		ids = s.chunkIDs
	}

	needle := pattern
	if !caseSensitive {
		needle = toLowerASCII(pattern)
	}

	var matches []TextMatch
	for i, id := range ids {
		if err := checkDeadline(ctx, i); err != nil {
			return matches, err
		}
		chunk := s.Chunks[id]
		haystack := chunk.Content
		if !caseSensitive {
			haystack = toLowerASCII(haystack)
		}
		for from := 0; ; {
			rel := strings.Index(haystack[from:], needle)
			if rel < 0 {
				break
			}
			off := from + rel
			matches = append(matches, TextMatch{
				ChunkID: id,
				Path:    chunk.Path,
				Offset:  off,
				Length:  len(pattern),
			})
			from = off + 1
		}
	}

	s.orderMatches(matches)
	return matches, nil
}

// LookupRegex finds every match of a regular expression. The parsed pattern
// is mined for required literals to prune candidates; patterns with no
// usable literal scan every chunk. Invalid patterns fail with
// types.ErrQuerySyntax.
func (s *Snapshot) LookupRegex(ctx context.Context, pattern string, caseSensitive bool) ([]TextMatch, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", types.ErrQuerySyntax)
	}

	expr := pattern
	if !caseSensitive {
		expr = "(?i)" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrQuerySyntax, err)
	}

	ids, pruned := s.candidateChunks(regexPruneTokens(pattern, caseSensitive))
	if !pruned {
		ids = s.chunkIDs
	}

	var matches []TextMatch
	for i, id := range ids {
		if err := checkDeadline(ctx, i); err != nil {
			return matches, err
		}
		chunk := s.Chunks[id]
		for _, loc := range re.FindAllStringIndex(chunk.Content, -1) {
			matches = append(matches, TextMatch{
				ChunkID: id,
				Path:    chunk.Path,
				Offset:  loc[0],
				Length:  loc[1] - loc[0],
			})
		}
	}

	s.orderMatches(matches)
	return matches, nil
}

// toLowerASCII folds only ASCII letters so byte offsets stay aligned with
// the original content regardless of multibyte runes.
func toLowerASCII(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// orderMatches sorts matches by path, chunk start byte, then offset, so
// identical snapshots always yield identical result order.
func (s *Snapshot) orderMatches(matches []TextMatch) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		as, bs := s.Chunks[a.ChunkID].StartByte, s.Chunks[b.ChunkID].StartByte
		if as != bs {
			return as < bs
		}
		return a.Offset < b.Offset
	})
}

// LookupSemantic scores every embedded chunk against the query vector with
// cosine similarity and returns the top limit matches, descending by score
// with chunk ID as the tiebreaker. Snapshots without vectors fail with
// types.ErrEmbeddingUnavailable.
func (s *Snapshot) LookupSemantic(ctx context.Context, queryVector []float32, limit int) ([]SemanticMatch, error) {
	if len(s.vectors) == 0 {
		return nil, fmt.Errorf("%w: no embeddings in index", types.ErrEmbeddingUnavailable)
	}
	if limit <= 0 {
		return nil, nil
	}

	matches := make([]SemanticMatch, 0, len(s.vectors))
	i := 0
	for id, entry := range s.vectors {
		if err := checkDeadline(ctx, i); err != nil {
			return nil, err
		}
		i++
		if len(entry.Vector) != len(queryVector) {
			continue
		}
		matches = append(matches, SemanticMatch{
			ChunkID: id,
			Path:    s.Chunks[id].Path,
			Score:   CosineSimilarity(queryVector, entry.Vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// CosineSimilarity computes the cosine similarity of two vectors. Zero
// vectors and mismatched dimensions score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
