// Package chunker splits file content into addressable chunks with stable
// identities.
//
// # Strategy
//
// When a tree-sitter grammar is registered for the file's language, the
// chunker splits on function/class/method boundaries. Gaps between
// definitions, and files in unsupported languages, are covered by fixed-size
// windows so no semantic query silently receives zero candidates.
//
// Two invariants hold for every file:
//
//   - Full coverage: every byte belongs to exactly one chunk's range.
//   - Bounded size: no chunk exceeds MaxChunkBytes; oversized definitions
//     are subdivided at line boundaries into block chunks.
//
// Chunk IDs hash (path, start, end) rather than content, so identity survives
// edits elsewhere in the file, while ContentHash separately detects when a
// chunk's own bytes changed and cached embeddings must be recomputed.
//
// Window chunks additionally carry a bounded amount of preceding file
// content as embedding context; that context is not part of the byte range
// and is never indexed for text search.
package chunker
