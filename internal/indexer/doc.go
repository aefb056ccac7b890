// Package indexer builds index snapshots from repository contents.
//
// The pipeline is walk -> hash -> chunk -> embed, with file work spread
// over a bounded pool of workers. Failures are contained per file: a file
// that cannot be read or chunked is recorded as degraded and the rest of
// the root still indexes. Embedding failures degrade further, down to a
// snapshot with no vectors at all when the backend is unavailable.
//
// Refresh compares content hashes against the previous snapshot and reuses
// chunk records and vectors of unchanged files verbatim, so a refresh over
// an untouched tree produces an equivalent snapshot without touching the
// embedding backend.
package indexer
