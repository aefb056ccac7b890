package analysis

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strings"

	"github.com/codecompass/codecompass-mcp/internal/walker"
)

// Complexity modes. Exact means the score came from a parsed syntax tree;
// heuristic means keyword counting. The mode is always reported so callers
// never mistake an estimate for a measurement.
const (
	ComplexityExact     = "exact"
	ComplexityHeuristic = "heuristic"
)

// ComplexityResult scores one range of code.
type ComplexityResult struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Score     int    `json:"score"`
	Mode      string `json:"mode"`
	Language  string `json:"language"`
}

// branch keywords for languages without exact analysis. "elif" and
// "else if" are covered by "if"; boolean operators count separately.
var heuristicKeyword = regexp.MustCompile(`\b(if|for|while|case|when|catch|except|and|or)\b`)

// AnalyzeComplexity computes a cyclomatic-style score for a line range of
// a file. startLine/endLine of 0 mean the whole file. Go code is scored
// exactly from its syntax tree; other languages fall back to keyword
// counting, and the result says which happened.
func (a *Analyzer) AnalyzeComplexity(ctx context.Context, root, path string, startLine, endLine int) (*ComplexityResult, error) {
	croot, err := a.guard.ResolveRoot(root)
	if err != nil {
		return nil, err
	}
	content, _, err := a.guard.ReadFile(croot, path, 0, -1)
	if err != nil {
		return nil, err
	}

	code, startLine, endLine, err := sliceLines(string(content), startLine, endLine)
	if err != nil {
		return nil, err
	}

	language := walker.LanguageForPath(path)
	result := &ComplexityResult{
		Path:      path,
		StartLine: startLine,
		EndLine:   endLine,
		Language:  language,
	}

	if language == "go" {
		if score, ok := goComplexity(code); ok {
			result.Score = score
			result.Mode = ComplexityExact
			return result, nil
		}
	}

	result.Score = heuristicComplexity(code)
	result.Mode = ComplexityHeuristic
	return result, nil
}

// sliceLines cuts a 1-based inclusive line range out of content.
func sliceLines(content string, startLine, endLine int) (string, int, int, error) {
	lines := strings.Split(content, "\n")
	if startLine <= 0 {
		startLine = 1
	}
	if endLine <= 0 || endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine || startLine > len(lines) {
		return "", 0, 0, fmt.Errorf("invalid line range %d-%d for %d lines", startLine, endLine, len(lines))
	}
	return strings.Join(lines[startLine-1:endLine], "\n"), startLine, endLine, nil
}

// goComplexity parses the code and counts decision points: 1 plus every
// if, for, range, case/comm clause, and short-circuit operator. Ranges
// that are not a whole file are wrapped so function bodies still parse.
func goComplexity(code string) (int, bool) {
	node := parseGo(code)
	if node == nil {
		return 0, false
	}

	score := 1
	ast.Inspect(node, func(n ast.Node) bool {
		switch v := n.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt, *ast.CaseClause, *ast.CommClause:
			score++
		case *ast.BinaryExpr:
			if v.Op == token.LAND || v.Op == token.LOR {
				score++
			}
		}
		return true
	})
	return score, true
}

func parseGo(code string) ast.Node {
	fset := token.NewFileSet()
	if f, err := parser.ParseFile(fset, "", code, 0); err == nil {
		return f
	}
	// A mid-file range has no package clause.
	if f, err := parser.ParseFile(fset, "", "package p\n"+code, 0); err == nil {
		return f
	}
	// A statement range is not a valid top level; wrap in a function.
	wrapped := "package p\nfunc _() {\n" + code + "\n}"
	if f, err := parser.ParseFile(fset, "", wrapped, 0); err == nil {
		return f
	}
	return nil
}

// heuristicComplexity counts branch keywords and short-circuit operators.
// A straight-line snippet scores exactly 1.
func heuristicComplexity(code string) int {
	score := 1
	score += len(heuristicKeyword.FindAllString(code, -1))
	score += strings.Count(code, "&&")
	score += strings.Count(code, "||")
	return score
}
