package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

func makeChunk(path, content string, start int) types.ChunkRecord {
	c := types.ChunkRecord{
		ID:        types.ChunkID(path, start, start+len(content)),
		Path:      path,
		StartByte: start,
		EndByte:   start + len(content),
		StartLine: 1,
		EndLine:   1,
		Kind:      types.ChunkWindow,
		Language:  "go",
		Content:   content,
	}
	c.ComputeContentHash()
	return c
}

func makeSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	chunks := []types.ChunkRecord{
		makeChunk("a.go", "func Foo() { return handleRequest() }", 0),
		makeChunk("b.go", "func Bar() { foo := 1; _ = foo }", 0),
		makeChunk("c.go", "// nothing of note here", 0),
	}
	files := []types.FileRecord{
		{Path: "a.go", Language: "go"},
		{Path: "b.go", Language: "go"},
		{Path: "c.go", Language: "go"},
	}
	return NewSnapshot("/repo", files, chunks, nil, "", "", nil)
}

func TestTokenize(t *testing.T) {
	toks := Tokenize("func handleRequest(id int) { _x := id }")
	assert.Equal(t, []int{5}, toks["handlerequest"])
	assert.Contains(t, toks, "func")
	assert.Contains(t, toks, "int")
	assert.Contains(t, toks, "_x")
	// Single characters are not indexed.
	assert.NotContains(t, toks, "x")
}

func TestTokenizeRecordsEveryOccurrence(t *testing.T) {
	toks := Tokenize("foo bar foo")
	assert.Equal(t, []int{0, 8}, toks["foo"])
}

func TestLookupLiteralUnique(t *testing.T) {
	s := makeSnapshot(t)

	matches, err := s.LookupLiteral(context.Background(), "handleRequest", true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a.go", matches[0].Path)
	assert.Equal(t, len("handleRequest"), matches[0].Length)
}

func TestLookupLiteralCaseInsensitive(t *testing.T) {
	s := makeSnapshot(t)

	matches, err := s.LookupLiteral(context.Background(), "HANDLEREQUEST", false)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	matches, err = s.LookupLiteral(context.Background(), "HANDLEREQUEST", true)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLookupLiteralNoTokenFallsBackToScan(t *testing.T) {
	s := makeSnapshot(t)

	// Punctuation-only patterns cannot use the postings index.
	matches, err := s.LookupLiteral(context.Background(), "{ ", true)
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestLookupLiteralEmptyPattern(t *testing.T) {
	s := makeSnapshot(t)
	_, err := s.LookupLiteral(context.Background(), "", true)
	assert.ErrorIs(t, err, types.ErrQuerySyntax)
}

func TestLookupLiteralOrderIsDeterministic(t *testing.T) {
	s := makeSnapshot(t)

	first, err := s.LookupLiteral(context.Background(), "foo", false)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.LookupLiteral(context.Background(), "foo", false)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestLookupRegex(t *testing.T) {
	s := makeSnapshot(t)

	matches, err := s.LookupRegex(context.Background(), `func (Foo|Bar)`, true)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a.go", matches[0].Path)
	assert.Equal(t, "b.go", matches[1].Path)
}

func TestLookupRegexInvalidPattern(t *testing.T) {
	s := makeSnapshot(t)
	_, err := s.LookupRegex(context.Background(), `(unclosed`, true)
	assert.ErrorIs(t, err, types.ErrQuerySyntax)
}

func TestLookupRegexWordBoundary(t *testing.T) {
	chunks := []types.ChunkRecord{
		makeChunk("w.go", "foo foobar myfoo foo", 0),
	}
	s := NewSnapshot("/repo", []types.FileRecord{{Path: "w.go"}}, chunks, nil, "", "", nil)

	matches, err := s.LookupRegex(context.Background(), `\bfoo\b`, true)
	require.NoError(t, err)
	// Only the standalone occurrences match.
	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Offset)
	assert.Equal(t, 17, matches[1].Offset)
}

func TestLookupDeadline(t *testing.T) {
	s := makeSnapshot(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := s.LookupLiteral(ctx, "foo", false)
	assert.ErrorIs(t, err, types.ErrTimeout)
}

func TestLookupSemanticOrdering(t *testing.T) {
	chunks := []types.ChunkRecord{
		makeChunk("a.go", "alpha", 0),
		makeChunk("b.go", "beta", 0),
		makeChunk("c.go", "gamma", 0),
	}
	vectors := map[string]VectorEntry{
		chunks[0].ID: {Vector: []float32{1, 0}, ContentHash: chunks[0].ContentHash, Dimension: 2},
		chunks[1].ID: {Vector: []float32{0.6, 0.8}, ContentHash: chunks[1].ContentHash, Dimension: 2},
		chunks[2].ID: {Vector: []float32{0, 1}, ContentHash: chunks[2].ContentHash, Dimension: 2},
	}
	s := NewSnapshot("/repo", nil, chunks, vectors, "test", "test", nil)

	matches, err := s.LookupSemantic(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "a.go", matches[0].Path)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, "b.go", matches[1].Path)
	assert.Equal(t, "c.go", matches[2].Path)

	// Identical calls return identical order despite map iteration.
	for i := 0; i < 5; i++ {
		again, err := s.LookupSemantic(context.Background(), []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Equal(t, matches, again)
	}
}

func TestLookupSemanticNoVectors(t *testing.T) {
	s := makeSnapshot(t)
	_, err := s.LookupSemantic(context.Background(), []float32{1, 0}, 10)
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
}

func TestStaleVectorsDropped(t *testing.T) {
	chunk := makeChunk("a.go", "current content", 0)
	var wrongHash [32]byte
	wrongHash[0] = 0xFF

	vectors := map[string]VectorEntry{
		chunk.ID: {Vector: []float32{1}, ContentHash: wrongHash, Dimension: 1},
	}
	s := NewSnapshot("/repo", nil, []types.ChunkRecord{chunk}, vectors, "test", "test", nil)
	assert.Equal(t, 0, s.VectorCount())
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestStats(t *testing.T) {
	files := []types.FileRecord{
		{Path: "a.go", Language: "go"},
		{Path: "big.bin", Degraded: true, DegradedReason: "too large"},
	}
	chunks := []types.ChunkRecord{makeChunk("a.go", "content here", 0)}
	s := NewSnapshot("/repo", files, chunks, nil, "", "", []Diagnostic{{Path: "big.bin", Reason: "too large"}})

	stats := s.Stats()
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 1, stats.Degraded)
	assert.Equal(t, 1, stats.Diagnostics)
}
