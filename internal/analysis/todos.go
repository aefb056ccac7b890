package analysis

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// DefaultMarkers is the standard marker word set.
var DefaultMarkers = []string{"TODO", "FIXME", "HACK", "NOTE", "XXX", "BUG"}

// todoPattern matches any marker word followed by optional punctuation and
// the remainder of the line. Markers are matched case-insensitively but
// reported in their canonical uppercase form.
var todoPattern = compileTodoPattern(DefaultMarkers)

// defaultTodoPatterns holds one pattern per default marker, so a line that
// mentions several distinct markers yields one record per marker.
var defaultTodoPatterns = compileMarkerPatterns(DefaultMarkers)

func compileTodoPattern(markers []string) *regexp.Regexp {
	quoted := make([]string, len(markers))
	for i, m := range markers {
		quoted[i] = regexp.QuoteMeta(strings.ToUpper(m))
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b[:\s]*(.*)`)
}

func compileMarkerPatterns(markers []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(markers))
	for i, m := range markers {
		quoted := regexp.QuoteMeta(strings.ToUpper(m))
		patterns[i] = regexp.MustCompile(`(?i)\b(` + quoted + `)\b[:\s]*(.*)`)
	}
	return patterns
}

// ListTodos scans indexed files under root for marker comments. Results
// are cached per file content hash, so unchanged files are never rescanned
// across calls or refreshes. pathPrefix optionally narrows to files whose
// relative path starts with it.
func (a *Analyzer) ListTodos(ctx context.Context, root, pathPrefix string) ([]types.TodoRecord, error) {
	snap, croot, err := a.snapshot(root)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(snap.Files))
	for path := range snap.Files {
		if pathPrefix != "" && !strings.HasPrefix(path, pathPrefix) {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var todos []types.TodoRecord
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		f := snap.Files[path]
		if f.Degraded {
			continue
		}

		cached, ok := a.todoCache.Get(f.ContentHash)
		if !ok {
			content, _, err := a.guard.ReadFile(croot, path, 0, -1)
			if err != nil {
				continue
			}
			cached = scanTodos(a.todoPatterns, string(content))
			a.todoCache.Add(f.ContentHash, cached)
		}
		// Cached records carry no path, so two files with identical content
		// share one cache entry without reporting each other's location.
		for _, todo := range cached {
			todo.Path = path
			todos = append(todos, todo)
		}
	}
	return todos, nil
}

// scanTodos extracts marker comments from one file's content. A line
// mentioning several distinct markers yields one record per marker. The
// returned records are path-free (the caller stamps the path) and the slice
// is never nil so cache hits and misses are indistinguishable.
func scanTodos(patterns []*regexp.Regexp, content string) []types.TodoRecord {
	todos := []types.TodoRecord{}
	for lineIdx, line := range strings.Split(content, "\n") {
		for _, pattern := range patterns {
			loc := pattern.FindStringSubmatchIndex(line)
			if loc == nil {
				continue
			}
			marker := strings.ToUpper(line[loc[2]:loc[3]])
			text := strings.TrimSpace(line[loc[4]:loc[5]])
			todos = append(todos, types.TodoRecord{
				Line:    lineIdx + 1,
				Column:  loc[2] + 1,
				Marker:  marker,
				Text:    text,
				Snippet: strings.TrimSpace(line),
			})
		}
	}
	return todos
}
