// Package types provides shared type definitions for the CodeCompass MCP server.
//
// This package defines the domain records used across components: file and
// chunk records, TODO records, query results, and the sentinel error kinds
// that cross component boundaries.
//
// # Chunk identity
//
// A chunk's ID is a hash of (relative path, start byte, end byte), not of
// its content. Identity therefore survives edits elsewhere in the file,
// while the separate ContentHash detects when a chunk's own bytes changed
// and its cached embedding must be recomputed:
//
//	chunk := &types.ChunkRecord{
//	    Path:      "internal/server/handler.go",
//	    StartByte: 120,
//	    EndByte:   640,
//	    Kind:      types.ChunkFunction,
//	}
//	chunk.ID = types.ChunkID(chunk.Path, chunk.StartByte, chunk.EndByte)
//
// # Errors
//
// The error variables here are the engine's closed set of failure kinds.
// Components wrap them with context and callers unwrap with errors.Is:
//
//	if errors.Is(err, types.ErrEmbeddingUnavailable) {
//	    // semantic search unsupported; do not fall back silently
//	}
package types
