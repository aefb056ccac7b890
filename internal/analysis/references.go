package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// Reference is one whole-word occurrence of a symbol.
type Reference struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Snippet string `json:"snippet"`
}

var symbolPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// FindReferences lists whole-word occurrences of a symbol across the
// indexed root. Word boundaries keep "foo" from matching "foobar" or
// "myfoo". Occurrences are capped at limit; 0 means the engine default.
func (a *Analyzer) FindReferences(ctx context.Context, root, symbol string, limit int) ([]Reference, error) {
	if !symbolPattern.MatchString(symbol) {
		return nil, fmt.Errorf("%w: %q is not an identifier", types.ErrQuerySyntax, symbol)
	}
	if limit <= 0 {
		limit = 200
	}

	snap, _, err := a.snapshot(root)
	if err != nil {
		return nil, err
	}

	matches, err := snap.LookupRegex(ctx, `\b`+regexp.QuoteMeta(symbol)+`\b`, true)
	if err != nil {
		return nil, err
	}

	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		if len(refs) >= limit {
			break
		}
		chunk := snap.Chunks[m.ChunkID]
		before := chunk.Content[:m.Offset]
		line := chunk.StartLine + strings.Count(before, "\n")
		col := m.Offset - (strings.LastIndexByte(before, '\n') + 1) + 1

		lineStart := strings.LastIndexByte(before, '\n') + 1
		lineEnd := m.Offset + strings.IndexByte(chunk.Content[m.Offset:]+"\n", '\n')
		refs = append(refs, Reference{
			Path:    m.Path,
			Line:    line,
			Column:  col,
			Snippet: strings.TrimRight(chunk.Content[lineStart:lineEnd], "\r"),
		})
	}
	return refs, nil
}
