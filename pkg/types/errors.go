package types

import "errors"

// Engine error kinds. Callers match these with errors.Is; every component
// wraps them with mode and root context via fmt.Errorf and %w.
var (
	// ErrPathTraversal is returned when a requested path canonicalizes to a
	// location outside the repository root, including via symlinks and "..".
	ErrPathTraversal = errors.New("path escapes repository root")

	// ErrFileTooLarge is returned before any read of a file whose size
	// exceeds the configured ceiling.
	ErrFileTooLarge = errors.New("file exceeds size ceiling")

	// ErrNotFound is returned for an unknown root, file, or chunk.
	ErrNotFound = errors.New("not found")

	// ErrQuerySyntax is returned for an unparseable regex pattern.
	ErrQuerySyntax = errors.New("invalid query syntax")

	// ErrEmbeddingUnavailable is returned when no embedding backend is
	// configured or the backend is unreachable. Semantic search never
	// silently falls back to text search.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrTimeout is returned when a query exceeds its deadline and did not
	// opt into best-effort results.
	ErrTimeout = errors.New("query deadline exceeded")

	// ErrIndexBuild is returned when a build fails part-way; the previous
	// snapshot, if any, remains published.
	ErrIndexBuild = errors.New("index build failed")

	// ErrRefreshInProgress is returned to the second of two concurrent
	// build/refresh attempts on the same root.
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

// Result validation errors.
var (
	ErrInvalidChunkID  = errors.New("invalid chunk ID")
	ErrInvalidScore    = errors.New("score must be non-negative")
	ErrMissingFileInfo = errors.New("file path is required")
)
