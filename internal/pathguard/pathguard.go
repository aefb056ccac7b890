package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// Guard validates every filesystem access against a whitelist of repository
// roots and a file size ceiling. No other component touches the filesystem
// without passing through it.
type Guard struct {
	roots        []string // canonical absolute paths
	maxFileBytes int64
}

// New canonicalizes the configured roots and drops any that do not exist or
// are not directories. At least one valid root is required.
func New(roots []string, maxFileBytes int64) (*Guard, error) {
	if maxFileBytes <= 0 {
		return nil, fmt.Errorf("size ceiling must be positive, got %d", maxFileBytes)
	}

	canonical := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			continue
		}
		info, err := os.Stat(resolved)
		if err != nil || !info.IsDir() {
			continue
		}
		canonical = append(canonical, resolved)
	}
	if len(canonical) == 0 {
		return nil, fmt.Errorf("no valid repository roots configured")
	}
	sort.Strings(canonical)

	return &Guard{roots: canonical, maxFileBytes: maxFileBytes}, nil
}

// Roots returns the canonical whitelisted roots.
func (g *Guard) Roots() []string {
	out := make([]string, len(g.roots))
	copy(out, g.roots)
	return out
}

// MaxFileBytes returns the configured size ceiling.
func (g *Guard) MaxFileBytes() int64 {
	return g.maxFileBytes
}

// ResolveRoot canonicalizes root and checks it against the whitelist.
func (g *Guard) ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: root %s", types.ErrNotFound, root)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: root %s", types.ErrNotFound, root)
	}
	for _, r := range g.roots {
		if r == resolved {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: root %s is not whitelisted", types.ErrNotFound, root)
}

// Resolve validates a requested path against a whitelisted root and returns
// its canonical absolute form. The resolved path must be a descendant of the
// root; ".." elements and symlinks that escape the root are rejected with
// types.ErrPathTraversal.
func (g *Guard) Resolve(root, requested string) (string, error) {
	croot, err := g.ResolveRoot(root)
	if err != nil {
		return "", err
	}

	// Reject traversal elements before touching the filesystem.
	for _, part := range strings.Split(filepath.ToSlash(requested), "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %s", types.ErrPathTraversal, requested)
		}
	}

	candidate := requested
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(croot, requested)
	}

	resolved, err := canonicalize(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %s", types.ErrNotFound, requested)
	}

	if !g.within(croot, resolved) {
		return "", fmt.Errorf("%w: %s", types.ErrPathTraversal, requested)
	}
	return resolved, nil
}

// Within reports whether an already-absolute path lies under the given
// canonical root. Used by the walker for symlink targets.
func (g *Guard) Within(croot, abs string) bool {
	resolved, err := canonicalize(abs)
	if err != nil {
		return false
	}
	return g.within(croot, resolved)
}

func (g *Guard) within(croot, resolved string) bool {
	rel, err := filepath.Rel(croot, resolved)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Stat resolves a path under root and stats it without reading.
func (g *Guard) Stat(root, requested string) (os.FileInfo, error) {
	abs, err := g.Resolve(root, requested)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, requested)
	}
	return info, nil
}

// CheckSize compares the file at abs against the byte ceiling. It performs a
// stat only; no read happens here or anywhere before this check passes.
func (g *Guard) CheckSize(abs string) error {
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%w: %s", types.ErrNotFound, abs)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", types.ErrNotFound, abs)
	}
	if info.Size() > g.maxFileBytes {
		return fmt.Errorf("%w: %s is %d bytes (ceiling %d)", types.ErrFileTooLarge, abs, info.Size(), g.maxFileBytes)
	}
	return nil
}

// ReadFile resolves, size-checks, and reads a file under root, returning the
// slice [offset, offset+length) clipped to the file's actual size, plus the
// total size in bytes. A negative length means "to the end of the file".
func (g *Guard) ReadFile(root, requested string, offset, length int64) ([]byte, int64, error) {
	abs, err := g.Resolve(root, requested)
	if err != nil {
		return nil, 0, err
	}
	if err := g.CheckSize(abs); err != nil {
		return nil, 0, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", requested, err)
	}
	total := int64(len(data))

	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if length >= 0 && offset+length < total {
		end = offset + length
	}
	return data[offset:end], total, nil
}

// canonicalize resolves symlinks even when the final path component does not
// exist yet, by resolving the deepest existing ancestor and re-appending the
// remainder.
func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	dir := filepath.Dir(path)
	if dir == path {
		return "", err
	}
	base := filepath.Base(path)
	resolvedDir, derr := canonicalize(dir)
	if derr != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}
