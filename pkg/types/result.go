package types

// QueryResult is a single ranked hit from any search mode.
type QueryResult struct {
	ChunkID string
	Path    string
	Line    int // 1-based line of the match (or chunk start for semantic hits)

	// Snippet is a bounded window of surrounding lines. HighlightStart and
	// HighlightEnd delimit the matched span within Snippet (byte offsets);
	// both are -1 when there is no exact span (semantic results).
	Snippet        string
	HighlightStart int
	HighlightEnd   int

	Score float64 // similarity, rank-fusion score, or 1.0 for exact matches
	Mode  string  // the search mode that produced this result
}

// Validate checks structural invariants on a result.
func (r *QueryResult) Validate() error {
	if r.ChunkID == "" {
		return ErrInvalidChunkID
	}
	if r.Path == "" {
		return ErrMissingFileInfo
	}
	if r.Score < 0 {
		return ErrInvalidScore
	}
	return nil
}
