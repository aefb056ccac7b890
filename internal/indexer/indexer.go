package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codecompass/codecompass-mcp/internal/chunker"
	"github.com/codecompass/codecompass-mcp/internal/embedder"
	"github.com/codecompass/codecompass-mcp/internal/pathguard"
	"github.com/codecompass/codecompass-mcp/internal/store"
	"github.com/codecompass/codecompass-mcp/internal/walker"
	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// Indexer runs the pipeline: walk -> hash -> chunk -> embed -> snapshot.
// It implements store.Builder.
type Indexer struct {
	guard   *pathguard.Guard
	walker  *walker.Walker
	chunker *chunker.Chunker
	embed   embedder.Embedder
	workers int
}

// Config contains indexer tuning knobs.
type Config struct {
	Workers        int      // concurrent file workers (default: runtime.NumCPU())
	IgnorePatterns []string // extra ignore patterns merged with the defaults
	Chunking       chunker.Config
}

// New creates an Indexer. A nil embedder disables semantic indexing.
func New(guard *pathguard.Guard, emb embedder.Embedder, cfg Config) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if emb == nil {
		emb = embedder.Unavailable{}
	}
	return &Indexer{
		guard:   guard,
		walker:  walker.New(guard, cfg.IgnorePatterns),
		chunker: chunker.New(cfg.Chunking),
		embed:   emb,
		workers: cfg.Workers,
	}
}

// fileResult is the per-file output of the worker pool.
type fileResult struct {
	file   types.FileRecord
	chunks []types.ChunkRecord
	reused bool
}

// Build indexes a root from scratch.
func (idx *Indexer) Build(ctx context.Context, root string) (*store.Snapshot, error) {
	return idx.run(ctx, root, nil)
}

// Refresh re-indexes a root against a previous snapshot. Files whose
// content hash is unchanged keep their chunk records and vectors
// byte-for-byte; only changed files are re-chunked and re-embedded.
func (idx *Indexer) Refresh(ctx context.Context, prev *store.Snapshot) (*store.Snapshot, error) {
	return idx.run(ctx, prev.Root, prev)
}

func (idx *Indexer) run(ctx context.Context, root string, prev *store.Snapshot) (*store.Snapshot, error) {
	start := time.Now()

	croot, err := idx.guard.ResolveRoot(root)
	if err != nil {
		return nil, err
	}

	files, walkDiags, err := idx.walker.Walk(ctx, croot)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", croot, err)
	}

	diags := make([]store.Diagnostic, 0, len(walkDiags))
	for _, d := range walkDiags {
		diags = append(diags, store.Diagnostic{Path: d.Path, Reason: d.Reason})
	}

	results, fileDiags, err := idx.processFiles(ctx, croot, files, prev)
	if err != nil {
		return nil, err
	}
	diags = append(diags, fileDiags...)

	var outFiles []types.FileRecord
	var outChunks []types.ChunkRecord
	reusedVectors := make(map[string]store.VectorEntry)
	var toEmbed []types.ChunkRecord

	reusedFiles := 0
	for _, r := range results {
		if r.reused {
			reusedFiles++
		}
		outFiles = append(outFiles, r.file)
		outChunks = append(outChunks, r.chunks...)
		for _, c := range r.chunks {
			if prev != nil {
				if v, ok := prev.Vector(c.ID); ok && v.ContentHash == c.ContentHash {
					reusedVectors[c.ID] = v
					continue
				}
			}
			toEmbed = append(toEmbed, c)
		}
	}

	vectors, embedDiags := idx.embedChunks(ctx, toEmbed)
	diags = append(diags, embedDiags...)
	for id, v := range reusedVectors {
		vectors[id] = v
	}

	snap := store.NewSnapshot(croot, outFiles, outChunks, vectors,
		idx.embed.Provider(), idx.embed.Model(), diags)

	log.Printf("indexed %s: %d files (%d unchanged), %d chunks, %d vectors in %s",
		croot, len(outFiles), reusedFiles, len(outChunks), len(vectors), time.Since(start).Round(time.Millisecond))
	return snap, nil
}

// processFiles hashes and chunks every walked file through a bounded worker
// pool. A failure on one file degrades that file and never aborts the root.
func (idx *Indexer) processFiles(ctx context.Context, croot string, files []types.FileRecord, prev *store.Snapshot) ([]fileResult, []store.Diagnostic, error) {
	results := make([]fileResult, len(files))
	sem := make(chan struct{}, idx.workers)
	g, gctx := errgroup.WithContext(ctx)

	for i := range files {
		i := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			results[i] = idx.processFile(gctx, croot, files[i], prev)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var diags []store.Diagnostic
	for _, r := range results {
		if r.file.Degraded && r.file.DegradedReason != "" {
			diags = append(diags, store.Diagnostic{Path: r.file.Path, Reason: r.file.DegradedReason})
		}
	}
	return results, diags, nil
}

// processFile hashes one file and either reuses the previous snapshot's
// chunks or re-chunks the content.
func (idx *Indexer) processFile(ctx context.Context, croot string, f types.FileRecord, prev *store.Snapshot) fileResult {
	if f.Degraded {
		// The walker already degraded this file (size ceiling); carry
		// it through with no chunks so status reporting still sees it.
		return fileResult{file: f}
	}

	abs, err := idx.guard.Resolve(croot, f.Path)
	if err != nil {
		f.Degraded = true
		f.DegradedReason = fmt.Sprintf("resolve: %v", err)
		return fileResult{file: f}
	}

	// The walker's ceiling check saw the directory entry; a symlink's own
	// size is not its target's, so the resolved path is checked again here
	// before any read.
	if err := idx.guard.CheckSize(abs); err != nil {
		f.Degraded = true
		if errors.Is(err, types.ErrFileTooLarge) {
			f.DegradedReason = "exceeds size ceiling"
		} else {
			f.DegradedReason = fmt.Sprintf("stat: %v", err)
		}
		return fileResult{file: f}
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		f.Degraded = true
		f.DegradedReason = fmt.Sprintf("read: %v", err)
		return fileResult{file: f}
	}

	f.ContentHash = sha256.Sum256(content)
	f.SizeBytes = int64(len(content))

	if prev != nil {
		if pf, ok := prev.Files[f.Path]; ok && pf.ContentHash == f.ContentHash && !pf.Degraded {
			ids := prev.ChunksForFile(f.Path)
			chunks := make([]types.ChunkRecord, 0, len(ids))
			for _, id := range ids {
				chunks = append(chunks, prev.Chunks[id])
			}
			return fileResult{file: f, chunks: chunks, reused: true}
		}
	}

	return fileResult{file: f, chunks: idx.chunker.Chunk(f.Path, content, f.Language)}
}

// embedChunks generates vectors for chunks in bounded batches. When the
// backend is unavailable the snapshot is still built, just without vectors;
// partial batch failures degrade only the chunks in that batch.
func (idx *Indexer) embedChunks(ctx context.Context, chunks []types.ChunkRecord) (map[string]store.VectorEntry, []store.Diagnostic) {
	vectors := make(map[string]store.VectorEntry)
	if len(chunks) == 0 {
		return vectors, nil
	}

	var diags []store.Diagnostic
	unavailableLogged := false

	for from := 0; from < len(chunks); from += embedder.MaxBatchSize {
		to := from + embedder.MaxBatchSize
		if to > len(chunks) {
			to = len(chunks)
		}
		batch := chunks[from:to]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.EmbedText()
		}

		embedded, err := idx.embed.EmbedBatch(ctx, texts)
		if err != nil {
			if errors.Is(err, types.ErrEmbeddingUnavailable) {
				if !unavailableLogged {
					log.Printf("embedding unavailable, indexing without vectors: %v", err)
					unavailableLogged = true
					diags = append(diags, store.Diagnostic{Reason: fmt.Sprintf("embedding unavailable: %v", err)})
				}
				return vectors, diags
			}
			diags = append(diags, store.Diagnostic{
				Path:   batch[0].Path,
				Reason: fmt.Sprintf("embed batch: %v", err),
			})
			continue
		}

		for i, c := range batch {
			vectors[c.ID] = store.VectorEntry{
				Vector:      embedded[i],
				ContentHash: c.ContentHash,
				Dimension:   len(embedded[i]),
			}
		}
	}

	return vectors, diags
}
