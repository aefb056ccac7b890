package walker

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codecompass/codecompass-mcp/internal/pathguard"
	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// DefaultIgnorePatterns are used when the configuration provides none.
var DefaultIgnorePatterns = []string{
	".git",
	".svn",
	".hg",
	"node_modules",
	"vendor",
	"__pycache__",
	".venv",
	"venv",
	".idea",
	".vscode",
	"dist",
	"build",
	"target",
	".pytest_cache",
	".mypy_cache",
	"*.lock",
	"package-lock.json",
	"yarn.lock",
}

// languageByExt tags files with a language for chunking and analysis.
var languageByExt = map[string]string{
	".py":    "python",
	".pyi":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".go":    "go",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sh":    "bash",
	".sql":   "sql",
	".html":  "html",
	".css":   "css",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".md":    "markdown",
	".txt":   "text",
}

// LanguageForPath returns the language tag for a file path, or "".
func LanguageForPath(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}

// Diagnostic records a file the walker saw but did not emit as indexable.
type Diagnostic struct {
	Path   string // relative to root
	Reason string
}

// Walker enumerates candidate files under a repository root. Every call is a
// fresh traversal; results within one call are in lexicographic path order.
type Walker struct {
	guard   *pathguard.Guard
	ignores []string
}

// New creates a Walker. Nil or empty patterns fall back to the defaults.
func New(guard *pathguard.Guard, ignorePatterns []string) *Walker {
	if len(ignorePatterns) == 0 {
		ignorePatterns = DefaultIgnorePatterns
	}
	return &Walker{guard: guard, ignores: ignorePatterns}
}

// Walk traverses root and returns candidate file records plus diagnostics
// for files that were seen but skipped (symlink escapes, unreadable entries).
// Oversized files are emitted as degraded records rather than dropped, so
// the index can report them. A single file's problem never fails the walk.
func (w *Walker) Walk(ctx context.Context, root string) ([]types.FileRecord, []Diagnostic, error) {
	croot, err := w.guard.ResolveRoot(root)
	if err != nil {
		return nil, nil, err
	}

	var (
		records []types.FileRecord
		diags   []Diagnostic
	)

	err = filepath.WalkDir(croot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable entry: record and keep walking.
			rel, _ := filepath.Rel(croot, path)
			diags = append(diags, Diagnostic{Path: filepath.ToSlash(rel), Reason: walkErr.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(croot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == croot {
				return nil
			}
			// Directory-level pruning: a matching directory's subtree is
			// never descended.
			if w.matchesIgnore(d.Name(), rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if w.matchesIgnore(d.Name(), rel) {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(path)
			if err != nil || !w.guard.Within(croot, target) {
				diags = append(diags, Diagnostic{Path: rel, Reason: "symlink escapes root"})
				return nil
			}
		}

		lang := LanguageForPath(path)
		if lang == "" {
			return nil // not a file type we index
		}

		info, err := d.Info()
		if err != nil {
			diags = append(diags, Diagnostic{Path: rel, Reason: err.Error()})
			return nil
		}
		if info.Size() == 0 {
			return nil
		}

		rec := types.FileRecord{
			Path:      rel,
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
			Language:  lang,
		}
		if info.Size() > w.guard.MaxFileBytes() {
			rec.Degraded = true
			rec.DegradedReason = "exceeds size ceiling"
			diags = append(diags, Diagnostic{Path: rel, Reason: "exceeds size ceiling"})
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, diags, nil
}

// matchesIgnore checks a name or relative path against the ignore patterns.
// Patterns match exact names, path prefixes, and globs.
func (w *Walker) matchesIgnore(name, relPath string) bool {
	for _, p := range w.ignores {
		if name == p {
			return true
		}
		if strings.HasPrefix(relPath, p+"/") || relPath == p {
			return true
		}
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
		if ok, _ := filepath.Match(p, relPath); ok {
			return true
		}
	}
	return false
}
