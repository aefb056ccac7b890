package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ChunkKind classifies how a chunk was carved out of its file.
type ChunkKind string

const (
	ChunkFunction ChunkKind = "function"
	ChunkClass    ChunkKind = "class"
	ChunkMethod   ChunkKind = "method"
	ChunkBlock    ChunkKind = "block"  // slice of an oversized definition
	ChunkWindow   ChunkKind = "window" // fixed-size fallback window
	ChunkFile     ChunkKind = "file"   // whole file small enough to be one chunk
)

// ChunkRecord is the unit of indexing and retrieval: an addressable byte
// range of a file. Ranges within one file are non-overlapping and ordered,
// and together cover every byte of the file.
type ChunkRecord struct {
	// ID is derived from (path, byte range), not from content, so the same
	// region keeps its identity across edits elsewhere in the file.
	ID   string
	Path string // relative to the repository root, slash-separated

	StartByte int
	EndByte   int // exclusive
	StartLine int
	EndLine   int

	Kind     ChunkKind
	Language string

	Content     string
	ContentHash [32]byte // SHA-256 of Content; staleness key for embeddings

	// Context holds a bounded amount of preceding file content that is
	// prepended when the chunk is embedded. It is never indexed for text
	// search and does not belong to the chunk's byte range.
	Context string
}

// ChunkID computes the stable identity for a byte range of a file.
func ChunkID(path string, startByte, endByte int) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s\x00%d\x00%d", path, startByte, endByte))
	return hex.EncodeToString(h[:])
}

// ComputeContentHash fills ContentHash from Content.
func (c *ChunkRecord) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// EmbedText returns the text handed to the embedding provider.
func (c *ChunkRecord) EmbedText() string {
	if c.Context == "" {
		return c.Content
	}
	return c.Context + "\n\n" + c.Content
}

// ValidateKind checks the chunk kind against the closed set.
func (c *ChunkRecord) ValidateKind() error {
	switch c.Kind {
	case ChunkFunction, ChunkClass, ChunkMethod, ChunkBlock, ChunkWindow, ChunkFile:
		return nil
	default:
		return fmt.Errorf("invalid chunk kind %q", c.Kind)
	}
}

// Validate performs comprehensive validation of the chunk record.
func (c *ChunkRecord) Validate() error {
	if c.Path == "" {
		return errors.New("chunk path is required")
	}
	if c.StartByte < 0 || c.EndByte <= c.StartByte {
		return fmt.Errorf("invalid byte range [%d, %d)", c.StartByte, c.EndByte)
	}
	if c.StartLine <= 0 || c.EndLine < c.StartLine {
		return errors.New("line numbers must be positive and ordered")
	}
	if err := c.ValidateKind(); err != nil {
		return err
	}
	if c.ID != ChunkID(c.Path, c.StartByte, c.EndByte) {
		return errors.New("chunk ID does not match its byte range")
	}
	var zero [32]byte
	if c.ContentHash == zero {
		return errors.New("content hash must be computed")
	}
	return nil
}
