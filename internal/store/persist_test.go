package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

func TestArtifactPathIsStable(t *testing.T) {
	a := ArtifactPath("/cache", "/repo/one")
	b := ArtifactPath("/cache", "/repo/one")
	c := ArtifactPath("/cache", "/repo/two")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "/cache", filepath.Dir(a))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := ArtifactPath(dir, "/repo")

	chunks := []types.ChunkRecord{
		makeChunk("a.go", "func Foo() {}", 0),
		makeChunk("b.go", "func Bar() {}", 0),
	}
	files := []types.FileRecord{
		{Path: "a.go", Language: "go", SizeBytes: 13, ModTime: time.Now()},
		{Path: "b.go", Language: "go", SizeBytes: 13, ModTime: time.Now()},
		{Path: "big.bin", Degraded: true, DegradedReason: "exceeds size limit"},
	}
	vectors := map[string]VectorEntry{
		chunks[0].ID: {Vector: []float32{0.5, -0.25}, ContentHash: chunks[0].ContentHash, Dimension: 2},
	}
	diags := []Diagnostic{{Path: "big.bin", Reason: "exceeds size limit"}}

	snap := NewSnapshot("/repo", files, chunks, vectors, "ollama", "nomic-embed-text", diags)
	require.NoError(t, SaveSnapshot(context.Background(), path, snap))

	loaded, err := LoadSnapshot(context.Background(), path, "/repo")
	require.NoError(t, err)

	assert.Equal(t, snap.Root, loaded.Root)
	assert.Equal(t, snap.Provider, loaded.Provider)
	assert.Equal(t, snap.Model, loaded.Model)
	assert.Len(t, loaded.Files, 3)
	assert.Len(t, loaded.Chunks, 2)
	assert.Equal(t, 1, loaded.VectorCount())
	assert.Len(t, loaded.Diagnostics, 1)

	v, ok := loaded.Vector(chunks[0].ID)
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, -0.25}, v.Vector)

	assert.True(t, loaded.Files["big.bin"].Degraded)

	// Postings survive the round trip.
	matches, err := loaded.LookupLiteral(context.Background(), "Foo", true)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestLoadMissingArtifact(t *testing.T) {
	_, err := LoadSnapshot(context.Background(), filepath.Join(t.TempDir(), "missing.db"), "/repo")
	assert.ErrorIs(t, err, ErrNoArtifact)
}

func TestLoadRootMismatch(t *testing.T) {
	dir := t.TempDir()
	path := ArtifactPath(dir, "/repo")

	snap := NewSnapshot("/repo", nil, nil, nil, "", "", nil)
	require.NoError(t, SaveSnapshot(context.Background(), path, snap))

	_, err := LoadSnapshot(context.Background(), path, "/other")
	assert.ErrorIs(t, err, ErrNoArtifact)
}

func TestLoadIncompatibleSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	path := ArtifactPath(dir, "/repo")

	snap := NewSnapshot("/repo", nil, nil, nil, "", "", nil)
	require.NoError(t, SaveSnapshot(context.Background(), path, snap))

	db, err := sql.Open(DriverName, path)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE meta SET value = '99.0.0' WHERE key = 'schema_version'")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = LoadSnapshot(context.Background(), path, "/repo")
	assert.ErrorIs(t, err, ErrNoArtifact)
}

func TestSaveOverwritesPreviousContents(t *testing.T) {
	dir := t.TempDir()
	path := ArtifactPath(dir, "/repo")

	first := NewSnapshot("/repo", nil,
		[]types.ChunkRecord{makeChunk("a.go", "old content", 0)}, nil, "", "", nil)
	require.NoError(t, SaveSnapshot(context.Background(), path, first))

	second := NewSnapshot("/repo", nil,
		[]types.ChunkRecord{makeChunk("b.go", "new content", 0)}, nil, "", "", nil)
	require.NoError(t, SaveSnapshot(context.Background(), path, second))

	loaded, err := LoadSnapshot(context.Background(), path, "/repo")
	require.NoError(t, err)
	assert.Len(t, loaded.Chunks, 1)
	assert.NotNil(t, loaded.ChunksForFile("b.go"))
	assert.Nil(t, loaded.ChunksForFile("a.go"))
}

func TestVectorSerializationRoundTrip(t *testing.T) {
	in := []float32{0, 1, -1, 3.14159, -2.5e10}
	out := deserializeVector(serializeVector(in))
	assert.Equal(t, in, out)
}
