package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecompass/codecompass-mcp/internal/config"
	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// newTestServer builds a server over a temp root with the given files and
// no embedding backend.
func newTestServer(t *testing.T, files map[string]string) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg := &config.Config{}
	cfg.Repositories.Roots = []string{root}
	cfg.Repositories.MaxFileBytes = 1 << 20
	cfg.Server.CacheDir = filepath.Join(t.TempDir(), "cache")
	cfg.Embedding.Provider = "none"

	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s, s.guard.Roots()[0]
}

func index(t *testing.T, s *Server, root string) {
	t.Helper()
	_, err := s.Dispatch(context.Background(), IndexRepoOp{Root: root})
	require.NoError(t, err)
}

func TestServerWiring(t *testing.T) {
	s, _ := newTestServer(t, nil)
	assert.NotNil(t, s.guard)
	assert.NotNil(t, s.registry)
	assert.NotNil(t, s.engine)
	assert.NotNil(t, s.analyzer)
	assert.NotNil(t, s.indexer)
}

func TestIndexThenSearch(t *testing.T) {
	s, root := newTestServer(t, map[string]string{
		"main.go": "package main\n\nfunc handleRequest() {}\n",
		"util.go": "package main\n\nfunc helper() {}\n",
	})
	index(t, s, root)

	resp, err := s.Dispatch(context.Background(), SearchCodeOp{
		Root:    root,
		Pattern: "handleRequest",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, resp["total"])
	assert.Equal(t, "literal", resp["mode"])
	results := resp["results"].([]map[string]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "main.go", results[0]["path"])
	assert.Equal(t, 3, results[0]["line"])
}

func TestSearchUnindexedRoot(t *testing.T) {
	s, root := newTestServer(t, map[string]string{"a.go": "package a\n"})

	_, err := s.Dispatch(context.Background(), SearchCodeOp{Root: root, Pattern: "a"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSemanticSearchWithoutBackend(t *testing.T) {
	s, root := newTestServer(t, map[string]string{"a.go": "package a\n"})
	index(t, s, root)

	_, err := s.Dispatch(context.Background(), SemanticSearchOp{Root: root, Query: "auth flow"})
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
}

func TestReadFileClipping(t *testing.T) {
	s, root := newTestServer(t, map[string]string{"f.txt": "hello world"})

	resp, err := s.Dispatch(context.Background(), ReadFileOp{
		Root: root, Path: "f.txt", Offset: 6, Length: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "world", resp["content"])
	assert.Equal(t, int64(11), resp["total_size"])
	assert.Equal(t, false, resp["truncated"])
}

func TestReadFileTraversalRejected(t *testing.T) {
	s, root := newTestServer(t, map[string]string{"f.txt": "x"})

	_, err := s.Dispatch(context.Background(), ReadFileOp{
		Root: root, Path: "../outside.txt", Length: -1,
	})
	assert.ErrorIs(t, err, types.ErrPathTraversal)
}

func TestReadFileTooLarge(t *testing.T) {
	root := t.TempDir()
	big := strings.Repeat("x", 256)
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.txt"), []byte(big), 0o644))

	cfg := &config.Config{}
	cfg.Repositories.Roots = []string{root}
	cfg.Repositories.MaxFileBytes = 128
	cfg.Server.CacheDir = filepath.Join(t.TempDir(), "cache")
	cfg.Embedding.Provider = "none"

	s, err := NewServer(cfg)
	require.NoError(t, err)

	_, err = s.Dispatch(context.Background(), ReadFileOp{
		Root: s.guard.Roots()[0], Path: "big.txt", Length: -1,
	})
	assert.ErrorIs(t, err, types.ErrFileTooLarge)
}

func TestListTodosOp(t *testing.T) {
	s, root := newTestServer(t, map[string]string{
		"a.go": "package a\n// TODO: finish this\n",
	})
	index(t, s, root)

	resp, err := s.Dispatch(context.Background(), ListTodosOp{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 1, resp["total"])
}

func TestGetFileInfoIndexed(t *testing.T) {
	s, root := newTestServer(t, map[string]string{
		"a.go": "package a\n\nfunc A() {}\n",
	})
	index(t, s, root)

	resp, err := s.Dispatch(context.Background(), GetFileInfoOp{Root: root, Path: "a.go"})
	require.NoError(t, err)
	assert.Equal(t, true, resp["indexed"])
	assert.Equal(t, "go", resp["language"])
	assert.Equal(t, 3, resp["lines"])
}

func TestGetStatusLifecycle(t *testing.T) {
	s, root := newTestServer(t, map[string]string{"a.go": "package a\n"})

	resp, err := s.Dispatch(context.Background(), GetStatusOp{Root: root})
	require.NoError(t, err)
	assert.Equal(t, false, resp["indexed"])

	index(t, s, root)

	resp, err = s.Dispatch(context.Background(), GetStatusOp{Root: root})
	require.NoError(t, err)
	assert.Equal(t, true, resp["indexed"])
	assert.Equal(t, false, resp["stale"])
	stats := resp["statistics"].(map[string]interface{})
	assert.Equal(t, 1, stats["files"])
}

func TestGetStatusDetectsDrift(t *testing.T) {
	s, root := newTestServer(t, map[string]string{"a.go": "package a\n"})
	index(t, s, root)

	resp, err := s.Dispatch(context.Background(), GetStatusOp{Root: root})
	require.NoError(t, err)
	assert.Equal(t, false, resp["stale"])

	// Modify the file behind the index; the status re-stat must flip the
	// flag without rebuilding anything.
	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n\nvar drifted = 1\n"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	resp, err = s.Dispatch(context.Background(), GetStatusOp{Root: root})
	require.NoError(t, err)
	assert.Equal(t, true, resp["stale"])
	stats := resp["statistics"].(map[string]interface{})
	assert.Equal(t, 1, stats["files"])
}

func TestCodeMetricsWholeRoot(t *testing.T) {
	s, root := newTestServer(t, map[string]string{
		"a.go": "package a\nvar x = 1\n",
		"b.py": "y = 2\n",
	})
	index(t, s, root)

	resp, err := s.Dispatch(context.Background(), CodeMetricsOp{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 2, resp["files"])
	assert.Equal(t, 3, resp["total_lines"])
	assert.NotZero(t, resp["chunks"])
	assert.Equal(t, 0, resp["degraded"])

	// A path still yields the per-file view.
	resp, err = s.Dispatch(context.Background(), CodeMetricsOp{Root: root, Path: "a.go"})
	require.NoError(t, err)
	assert.Equal(t, "a.go", resp["path"])
	assert.Equal(t, "go", resp["language"])
}

func TestIndexPersistsAndRestores(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644))
	cacheDir := filepath.Join(t.TempDir(), "cache")

	cfg := &config.Config{}
	cfg.Repositories.Roots = []string{root}
	cfg.Repositories.MaxFileBytes = 1 << 20
	cfg.Server.CacheDir = cacheDir
	cfg.Embedding.Provider = "none"

	s1, err := NewServer(cfg)
	require.NoError(t, err)
	_, err = s1.Dispatch(context.Background(), IndexRepoOp{Root: root})
	require.NoError(t, err)

	// A second server over the same cache dir starts from the artifact,
	// marked stale until the first refresh.
	s2, err := NewServer(cfg)
	require.NoError(t, err)
	resp, err := s2.Dispatch(context.Background(), GetStatusOp{Root: root})
	require.NoError(t, err)
	assert.Equal(t, true, resp["indexed"])
	assert.Equal(t, true, resp["stale"])
}

func TestToolErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{types.ErrQuerySyntax, ErrorCodeInvalidParams},
		{types.ErrPathTraversal, ErrorCodeInvalidParams},
		{types.ErrFileTooLarge, ErrorCodeInvalidParams},
		{types.ErrNotFound, ErrorCodeRootNotConfigured},
		{types.ErrRefreshInProgress, ErrorCodeRefreshInProgress},
		{types.ErrEmbeddingUnavailable, ErrorCodeEmbeddingUnavailable},
		{types.ErrTimeout, ErrorCodeTimeout},
		{os.ErrPermission, ErrorCodeInternalError},
	}
	for _, tt := range tests {
		var mcpErr *MCPError
		require.ErrorAs(t, toolError(tt.err), &mcpErr)
		assert.Equal(t, tt.code, mcpErr.Code, "for %v", tt.err)
	}
}

func TestRequireString(t *testing.T) {
	args := map[string]interface{}{"root": "/tmp", "empty": ""}

	val, err := requireString(args, "root")
	require.NoError(t, err)
	assert.Equal(t, "/tmp", val)

	_, err = requireString(args, "empty")
	assert.Error(t, err)
	_, err = requireString(args, "missing")
	assert.Error(t, err)
}
