package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codecompass/codecompass-mcp/internal/analysis"
	"github.com/codecompass/codecompass-mcp/internal/chunker"
	"github.com/codecompass/codecompass-mcp/internal/config"
	"github.com/codecompass/codecompass-mcp/internal/embedder"
	"github.com/codecompass/codecompass-mcp/internal/indexer"
	"github.com/codecompass/codecompass-mcp/internal/pathguard"
	"github.com/codecompass/codecompass-mcp/internal/query"
	"github.com/codecompass/codecompass-mcp/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "codecompass-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	guard    *pathguard.Guard
	registry *store.Registry
	engine   *query.Engine
	analyzer *analysis.Analyzer
	indexer  *indexer.Indexer
	cacheDir string
}

// NewServer wires all components from the loaded configuration and restores
// any persisted index artifacts for the configured roots.
func NewServer(cfg *config.Config) (*Server, error) {
	guard, err := pathguard.New(cfg.Repositories.Roots, cfg.Repositories.MaxFileBytes)
	if err != nil {
		return nil, fmt.Errorf("configure path guard: %w", err)
	}

	emb, err := embedder.New(embedder.Options{
		Provider:      cfg.Embedding.Provider,
		Model:         cfg.Embedding.Model,
		BaseURL:       cfg.Embedding.BaseURL,
		APIKey:        cfg.Embedding.APIKey,
		CacheSize:     cfg.Embedding.CacheSize,
		MaxConcurrent: cfg.Embedding.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("configure embedder: %w", err)
	}

	registry := store.NewRegistry()

	idx := indexer.New(guard, emb, indexer.Config{
		Workers:        cfg.Repositories.Workers,
		IgnorePatterns: cfg.Repositories.IgnorePatterns,
		Chunking: chunker.Config{
			WindowBytes:   cfg.Chunking.WindowBytes,
			OverlapBytes:  cfg.Chunking.OverlapBytes,
			MaxChunkBytes: cfg.Chunking.MaxChunkBytes,
		},
	})

	engine := query.New(guard, registry, emb, query.Options{
		Timeout:     time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
		CacheTTL:    time.Duration(cfg.Search.CacheTTLSeconds) * time.Second,
		RRFConstant: cfg.Search.RRFConstant,
	})

	name := cfg.Server.Name
	if name == "" {
		name = ServerName
	}
	mcpServer := server.NewMCPServer(name, ServerVersion)

	s := &Server{
		mcp:      mcpServer,
		guard:    guard,
		registry: registry,
		engine:   engine,
		analyzer: analysis.NewWithMarkers(guard, registry, cfg.Todos.Markers),
		indexer:  idx,
		cacheDir: cfg.Server.CacheDir,
	}

	s.restoreArtifacts(context.Background())

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown. All
// logging goes to stderr; stdout carries the protocol.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// restoreArtifacts loads persisted index artifacts for every configured
// root. Restored snapshots are marked stale until the first refresh; a
// missing or incompatible artifact just means the root starts unindexed.
func (s *Server) restoreArtifacts(ctx context.Context) {
	for _, croot := range s.guard.Roots() {
		ix := s.registry.Open(croot)
		snap, err := store.LoadSnapshot(ctx, store.ArtifactPath(s.cacheDir, croot), croot)
		if err != nil {
			if !errors.Is(err, store.ErrNoArtifact) {
				log.Printf("artifact load failed for %s: %v", croot, err)
			}
			continue
		}
		ix.Restore(snap)
		stats := snap.Stats()
		log.Printf("restored index for %s: %d files, %d chunks, %d vectors (stale until refresh)",
			croot, stats.Files, stats.Chunks, stats.Vectors)
	}
}

// persistArtifact saves a freshly built snapshot. Persistence failures are
// logged, never fatal; the in-memory index stays authoritative.
func (s *Server) persistArtifact(ctx context.Context, croot string, snap *store.Snapshot) {
	path := store.ArtifactPath(s.cacheDir, croot)
	if err := store.SaveSnapshot(ctx, path, snap); err != nil {
		log.Printf("artifact save failed for %s: %v", croot, err)
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(semanticSearchTool(), s.handleSemanticSearch)
	s.mcp.AddTool(readFileTool(), s.handleReadFile)
	s.mcp.AddTool(listTodosTool(), s.handleListTodos)
	s.mcp.AddTool(explainRangeTool(), s.handleExplainRange)
	s.mcp.AddTool(getFileInfoTool(), s.handleGetFileInfo)
	s.mcp.AddTool(analyzeComplexityTool(), s.handleAnalyzeComplexity)
	s.mcp.AddTool(findReferencesTool(), s.handleFindReferences)
	s.mcp.AddTool(codeMetricsTool(), s.handleCodeMetrics)
	s.mcp.AddTool(indexRepoTool(), s.handleIndexRepo)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
