package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// ArtifactSchemaVersion gates persisted artifacts. A loaded artifact whose
// version does not satisfy the current major version is discarded, forcing
// a full rebuild rather than a risky in-place migration.
const ArtifactSchemaVersion = "1.0.0"

// ErrNoArtifact means no usable persisted index exists for the root.
var ErrNoArtifact = errors.New("no usable index artifact")

const artifactSchema = `
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
    path TEXT PRIMARY KEY,
    content_hash BLOB NOT NULL,
    size_bytes INTEGER NOT NULL,
    mod_time INTEGER NOT NULL,
    language TEXT NOT NULL,
    degraded INTEGER NOT NULL DEFAULT 0,
    degraded_reason TEXT
);

CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL,
    start_byte INTEGER NOT NULL,
    end_byte INTEGER NOT NULL,
    start_line INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    kind TEXT NOT NULL,
    language TEXT NOT NULL,
    content TEXT NOT NULL,
    context TEXT,
    tokens_json TEXT NOT NULL,
    FOREIGN KEY (path) REFERENCES files(path) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path);

CREATE TABLE IF NOT EXISTS vectors (
    chunk_id TEXT PRIMARY KEY,
    content_hash BLOB NOT NULL,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    FOREIGN KEY (chunk_id) REFERENCES chunks(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS diagnostics (
    path TEXT NOT NULL,
    reason TEXT NOT NULL
);
`

// ArtifactPath returns the on-disk location of a root's index artifact
// under cacheDir. The root path is hashed so arbitrary roots map to flat,
// collision-free file names.
func ArtifactPath(cacheDir, root string) string {
	h := sha256.Sum256([]byte(root))
	return filepath.Join(cacheDir, hex.EncodeToString(h[:16])+".db")
}

func openArtifact(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	// Artifact IO is single-writer; one connection avoids driver-level
	// table locking surprises.
	db.SetMaxOpenConns(1)
	return db, nil
}

// SaveSnapshot writes a snapshot to the artifact at path, replacing any
// previous contents in a single transaction.
func SaveSnapshot(ctx context.Context, path string, snap *Snapshot) error {
	db, err := openArtifact(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, artifactSchema); err != nil {
		return fmt.Errorf("apply artifact schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin artifact tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		"DELETE FROM vectors", "DELETE FROM chunks", "DELETE FROM files",
		"DELETE FROM diagnostics", "DELETE FROM meta",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear artifact: %w", err)
		}
	}

	meta := map[string]string{
		"schema_version": ArtifactSchemaVersion,
		"root":           snap.Root,
		"provider":       snap.Provider,
		"model":          snap.Model,
		"built_at":       snap.BuiltAt.Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("write meta %s: %w", k, err)
		}
	}

	for _, f := range snap.Files {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO files (path, content_hash, size_bytes, mod_time, language, degraded, degraded_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.Path, f.ContentHash[:], f.SizeBytes, f.ModTime.UnixNano(), f.Language, boolToInt(f.Degraded), f.DegradedReason)
		if err != nil {
			return fmt.Errorf("write file %s: %w", f.Path, err)
		}
	}

	for _, id := range snap.chunkIDs {
		c := snap.Chunks[id]
		toks, err := json.Marshal(snap.chunkToks[id])
		if err != nil {
			return fmt.Errorf("marshal tokens for %s: %w", id, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (id, path, start_byte, end_byte, start_line, end_line, kind, language, content, context, tokens_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Path, c.StartByte, c.EndByte, c.StartLine, c.EndLine, string(c.Kind), c.Language, c.Content, c.Context, string(toks))
		if err != nil {
			return fmt.Errorf("write chunk %s: %w", id, err)
		}
	}

	for id, v := range snap.vectors {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO vectors (chunk_id, content_hash, vector, dimension)
			VALUES (?, ?, ?, ?)`,
			id, v.ContentHash[:], serializeVector(v.Vector), v.Dimension)
		if err != nil {
			return fmt.Errorf("write vector %s: %w", id, err)
		}
	}

	for _, d := range snap.Diagnostics {
		if _, err := tx.ExecContext(ctx, "INSERT INTO diagnostics (path, reason) VALUES (?, ?)", d.Path, d.Reason); err != nil {
			return fmt.Errorf("write diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit artifact: %w", err)
	}
	return nil
}

// LoadSnapshot reads a persisted snapshot. A missing artifact, a schema
// version from a different major, or a root mismatch all fail with
// ErrNoArtifact so the caller falls back to a full build. Vectors whose
// stored content hash no longer matches the chunk content are dropped.
func LoadSnapshot(ctx context.Context, path, root string) (*Snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoArtifact, err)
	}

	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoArtifact, err)
	}
	defer func() { _ = db.Close() }()

	meta, err := loadMeta(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoArtifact, err)
	}
	if err := checkSchemaVersion(meta["schema_version"]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoArtifact, err)
	}
	if meta["root"] != root {
		return nil, fmt.Errorf("%w: artifact belongs to %s", ErrNoArtifact, meta["root"])
	}

	files, err := loadFiles(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoArtifact, err)
	}
	chunks, toks, err := loadChunks(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoArtifact, err)
	}
	vectors, err := loadVectors(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoArtifact, err)
	}
	diags, err := loadDiagnostics(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoArtifact, err)
	}

	snap := newSnapshot(root, files, chunks, toks, vectors, meta["provider"], meta["model"], diags)
	if builtAt, err := time.Parse(time.RFC3339Nano, meta["built_at"]); err == nil {
		snap.BuiltAt = builtAt
	}
	return snap, nil
}

// checkSchemaVersion accepts artifacts written by the same major version.
func checkSchemaVersion(got string) error {
	current := semver.MustParse(ArtifactSchemaVersion)
	stored, err := semver.NewVersion(got)
	if err != nil {
		return fmt.Errorf("invalid artifact schema version %q: %w", got, err)
	}
	if stored.Major() != current.Major() {
		return fmt.Errorf("artifact schema %s incompatible with %s", got, ArtifactSchemaVersion)
	}
	return nil
}

func loadMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func loadFiles(ctx context.Context, db *sql.DB) ([]types.FileRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT path, content_hash, size_bytes, mod_time, language, degraded, degraded_reason
		FROM files`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var files []types.FileRecord
	for rows.Next() {
		var f types.FileRecord
		var hash []byte
		var modNano int64
		var degraded int
		var reason sql.NullString
		if err := rows.Scan(&f.Path, &hash, &f.SizeBytes, &modNano, &f.Language, &degraded, &reason); err != nil {
			return nil, err
		}
		copy(f.ContentHash[:], hash)
		f.ModTime = time.Unix(0, modNano)
		f.Degraded = degraded != 0
		f.DegradedReason = reason.String
		files = append(files, f)
	}
	return files, rows.Err()
}

func loadChunks(ctx context.Context, db *sql.DB) ([]types.ChunkRecord, map[string]map[string][]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, path, start_byte, end_byte, start_line, end_line, kind, language, content, context, tokens_json
		FROM chunks`)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	var chunks []types.ChunkRecord
	toks := make(map[string]map[string][]int)
	for rows.Next() {
		var c types.ChunkRecord
		var kind, tokensJSON string
		var chunkCtx sql.NullString
		if err := rows.Scan(&c.ID, &c.Path, &c.StartByte, &c.EndByte, &c.StartLine, &c.EndLine, &kind, &c.Language, &c.Content, &chunkCtx, &tokensJSON); err != nil {
			return nil, nil, err
		}
		c.Kind = types.ChunkKind(kind)
		c.Context = chunkCtx.String
		c.ComputeContentHash()
		chunks = append(chunks, c)

		var t map[string][]int
		if err := json.Unmarshal([]byte(tokensJSON), &t); err != nil {
			return nil, nil, fmt.Errorf("decode tokens for %s: %w", c.ID, err)
		}
		toks[c.ID] = t
	}
	return chunks, toks, rows.Err()
}

func loadVectors(ctx context.Context, db *sql.DB) (map[string]VectorEntry, error) {
	rows, err := db.QueryContext(ctx, "SELECT chunk_id, content_hash, vector, dimension FROM vectors")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	vectors := make(map[string]VectorEntry)
	for rows.Next() {
		var id string
		var hash, blob []byte
		var dim int
		if err := rows.Scan(&id, &hash, &blob, &dim); err != nil {
			return nil, err
		}
		entry := VectorEntry{Vector: deserializeVector(blob), Dimension: dim}
		copy(entry.ContentHash[:], hash)
		vectors[id] = entry
	}
	return vectors, rows.Err()
}

func loadDiagnostics(ctx context.Context, db *sql.DB) ([]Diagnostic, error) {
	rows, err := db.QueryContext(ctx, "SELECT path, reason FROM diagnostics")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var diags []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.Path, &d.Reason); err != nil {
			return nil, err
		}
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// serializeVector packs a float32 slice little-endian.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector unpacks a little-endian float32 blob.
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}
