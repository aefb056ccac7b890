package types

import "time"

// FileRecord is the indexed metadata for one file under a repository root.
// A record is replaced wholesale when the content hash changes and removed
// when the file disappears from a walk.
type FileRecord struct {
	Path        string // relative to the root, slash-separated
	ContentHash [32]byte
	SizeBytes   int64
	ModTime     time.Time
	Language    string // from extension; "" when unknown

	// Degraded marks a file the indexer saw but could not fully process
	// (oversized, unreadable, chunk or embed failure). Degraded files stay
	// in the index so callers can see what was skipped and why.
	Degraded       bool
	DegradedReason string
}

// TodoRecord is one TODO-style marker found in a file.
type TodoRecord struct {
	Path    string
	Line    int // 1-based
	Column  int // 1-based, position of the marker keyword
	Marker  string
	Text    string // trailing comment text after the marker
	Snippet string // the whole trimmed line
}
