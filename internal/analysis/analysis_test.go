package analysis

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecompass/codecompass-mcp/internal/pathguard"
	"github.com/codecompass/codecompass-mcp/internal/store"
	"github.com/codecompass/codecompass-mcp/internal/walker"
	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// setup writes files to a temp root, indexes them into a snapshot, and
// returns an Analyzer over it.
func setup(t *testing.T, files map[string]string) (*Analyzer, string) {
	t.Helper()
	root := t.TempDir()
	guard, err := pathguard.New([]string{root}, 1<<20)
	require.NoError(t, err)
	croot := guard.Roots()[0]

	var records []types.FileRecord
	var chunks []types.ChunkRecord
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		records = append(records, types.FileRecord{
			Path:        rel,
			ContentHash: sha256.Sum256([]byte(content)),
			SizeBytes:   int64(len(content)),
			Language:    walker.LanguageForPath(rel),
		})
		lines := strings.Count(content, "\n")
		if !strings.HasSuffix(content, "\n") {
			lines++
		}
		c := types.ChunkRecord{
			ID:        types.ChunkID(rel, 0, len(content)),
			Path:      rel,
			StartByte: 0,
			EndByte:   len(content),
			StartLine: 1,
			EndLine:   lines,
			Kind:      types.ChunkFile,
			Language:  walker.LanguageForPath(rel),
			Content:   content,
		}
		c.ComputeContentHash()
		chunks = append(chunks, c)
	}

	snap := store.NewSnapshot(croot, records, chunks, nil, "", "", nil)
	registry := store.NewRegistry()
	registry.Open(croot).Restore(snap)

	return New(guard, registry), root
}

func TestListTodos(t *testing.T) {
	a, root := setup(t, map[string]string{
		"main.go": "package main\n// TODO: wire up config\nfunc main() {}\n// fixme handle errors\n",
		"util.py": "# NOTE this is load bearing\nx = 1\n",
	})

	todos, err := a.ListTodos(context.Background(), root, "")
	require.NoError(t, err)
	require.Len(t, todos, 3)

	assert.Equal(t, "TODO", todos[0].Marker)
	assert.Equal(t, 2, todos[0].Line)
	assert.Equal(t, "wire up config", todos[0].Text)

	assert.Equal(t, "FIXME", todos[1].Marker)
	assert.Equal(t, "handle errors", todos[1].Text)

	assert.Equal(t, "NOTE", todos[2].Marker)
	assert.Equal(t, "util.py", todos[2].Path)
}

func TestListTodosPathPrefix(t *testing.T) {
	a, root := setup(t, map[string]string{
		"src/a.go":  "// TODO: in src\npackage a\n",
		"docs/b.go": "// TODO: in docs\npackage b\n",
	})

	todos, err := a.ListTodos(context.Background(), root, "src/")
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "src/a.go", todos[0].Path)
}

func TestListTodosCacheByContentHash(t *testing.T) {
	a, root := setup(t, map[string]string{
		"a.go": "// TODO: one\npackage a\n",
	})

	first, err := a.ListTodos(context.Background(), root, "")
	require.NoError(t, err)

	// Deleting the file behind the index proves the second pass is served
	// from the content-hash cache.
	require.NoError(t, os.Remove(filepath.Join(root, "a.go")))
	second, err := a.ListTodos(context.Background(), root, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestListTodosIdenticalContentDistinctFiles(t *testing.T) {
	content := "# TODO: fix me\nx = 1\n"
	a, root := setup(t, map[string]string{
		"a/x.py": content,
		"b/y.py": content,
	})

	todos, err := a.ListTodos(context.Background(), root, "")
	require.NoError(t, err)
	require.Len(t, todos, 2)

	// The two files share one cache entry by content hash; each record must
	// still carry its own file's path.
	paths := map[string]int{}
	for _, todo := range todos {
		paths[todo.Path]++
	}
	assert.Equal(t, 1, paths["a/x.py"])
	assert.Equal(t, 1, paths["b/y.py"])
}

func TestListTodosMultipleMarkersOneLine(t *testing.T) {
	a, root := setup(t, map[string]string{
		"a.go": "package a\n// TODO: refactor FIXME: broken\n",
	})

	todos, err := a.ListTodos(context.Background(), root, "")
	require.NoError(t, err)
	require.Len(t, todos, 2)

	assert.Equal(t, "TODO", todos[0].Marker)
	assert.Equal(t, 2, todos[0].Line)
	assert.Equal(t, "FIXME", todos[1].Marker)
	assert.Equal(t, 2, todos[1].Line)
	assert.Equal(t, "broken", todos[1].Text)
}

func TestListTodosCustomMarkers(t *testing.T) {
	a, root := setup(t, map[string]string{
		"a.go": "package a\n// WIP: half done\n// TODO: standard marker\n",
	})
	a = NewWithMarkers(a.guard, a.registry, []string{"WIP"})

	todos, err := a.ListTodos(context.Background(), root, "")
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "WIP", todos[0].Marker)
	assert.Equal(t, "half done", todos[0].Text)
}

func TestComplexityStraightLinePython(t *testing.T) {
	a, root := setup(t, map[string]string{
		"a.py": "def add(a, b):\n    return a + b\n",
	})

	res, err := a.AnalyzeComplexity(context.Background(), root, "a.py", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, ComplexityHeuristic, res.Mode)
	assert.Equal(t, "python", res.Language)
}

func TestComplexityGoExact(t *testing.T) {
	code := `package main

func classify(n int) string {
	if n < 0 {
		return "negative"
	}
	for i := 0; i < n; i++ {
		if i%2 == 0 && i > 2 {
			continue
		}
	}
	return "done"
}
`
	a, root := setup(t, map[string]string{"c.go": code})

	res, err := a.AnalyzeComplexity(context.Background(), root, "c.go", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, ComplexityExact, res.Mode)
	// 1 + two ifs + one for + one &&.
	assert.Equal(t, 5, res.Score)
}

func TestComplexityGoRangeWithoutPackageClause(t *testing.T) {
	code := `package main

func f(n int) int {
	if n > 0 {
		return n
	}
	return -n
}
`
	a, root := setup(t, map[string]string{"r.go": code})

	// Lines 4-6 are just the if statement.
	res, err := a.AnalyzeComplexity(context.Background(), root, "r.go", 4, 6)
	require.NoError(t, err)
	assert.Equal(t, ComplexityExact, res.Mode)
	assert.Equal(t, 2, res.Score)
}

func TestComplexityInvalidRange(t *testing.T) {
	a, root := setup(t, map[string]string{"a.go": "package a\n"})
	_, err := a.AnalyzeComplexity(context.Background(), root, "a.go", 10, 5)
	assert.Error(t, err)
}

func TestFindReferencesWordBoundaries(t *testing.T) {
	a, root := setup(t, map[string]string{
		"w.go": "package w\n\nvar foo = 1\nvar foobar = 2\nvar myfoo = 3\nvar _ = foo\n",
	})

	refs, err := a.FindReferences(context.Background(), root, "foo", 0)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, 3, refs[0].Line)
	assert.Equal(t, 6, refs[1].Line)
	assert.Equal(t, "var foo = 1", refs[0].Snippet)
}

func TestFindReferencesRejectsNonIdentifier(t *testing.T) {
	a, root := setup(t, map[string]string{"a.go": "package a\n"})
	_, err := a.FindReferences(context.Background(), root, "a b", 0)
	assert.ErrorIs(t, err, types.ErrQuerySyntax)
}

func TestExplainRange(t *testing.T) {
	code := `import sqlite3

def login(password):
    query = "select * from users where pw = '%s'" % password
    db.execute(query)
`
	a, root := setup(t, map[string]string{"auth.py": code})

	exp, err := a.ExplainRange(context.Background(), root, "auth.py", 0, 0)
	require.NoError(t, err)

	assert.Equal(t, "python", exp.Language)
	assert.Contains(t, exp.Patterns, "authentication")
	assert.Contains(t, exp.Patterns, "database")
	assert.Contains(t, exp.Risks, "sql_injection")
	assert.Contains(t, exp.Suggestions, "Use parameterized queries instead of string-built SQL")
	assert.Equal(t, 1, exp.Metrics.FunctionCount)
	assert.NotEmpty(t, exp.Summary)
	assert.Equal(t, "Low", exp.Metrics.Band)
}

func TestExplainRangeSubset(t *testing.T) {
	code := "line1\nline2\nline3\nline4\n"
	a, root := setup(t, map[string]string{"f.txt": code})

	exp, err := a.ExplainRange(context.Background(), root, "f.txt", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, exp.StartLine)
	assert.Equal(t, 3, exp.EndLine)
	assert.Equal(t, 2, exp.Metrics.TotalLines)
}

func TestAggregateMetrics(t *testing.T) {
	a, root := setup(t, map[string]string{
		"a.go": "package a\nvar x = 1\n",
		"b.py": "y = 2\n",
	})

	m, err := a.AggregateMetrics(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Files)
	assert.Equal(t, 2, m.Chunks)
	assert.Equal(t, 3, m.TotalLines)
	assert.Equal(t, 0, m.Degraded)
}

func TestComplexityBands(t *testing.T) {
	tests := []struct {
		score int
		band  string
	}{
		{3, "Low"},
		{10, "Medium"},
		{25, "High"},
		{40, "Very High"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.band, complexityBand(tt.score))
	}
}
