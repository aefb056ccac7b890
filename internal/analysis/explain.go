package analysis

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/codecompass/codecompass-mcp/internal/walker"
)

// Explanation is a rule-based reading of a code range: what it seems to
// do, what could go wrong with it, and how complex it is.
type Explanation struct {
	Summary     string   `json:"summary"`
	Language    string   `json:"language"`
	Patterns    []string `json:"patterns"`
	Risks       []string `json:"risks"`
	Metrics     Metrics  `json:"metrics"`
	Suggestions []string `json:"suggestions"`
	Path        string   `json:"path"`
	StartLine   int      `json:"start_line"`
	EndLine     int      `json:"end_line"`
}

// Metrics are the size and branching measurements behind the band.
type Metrics struct {
	TotalLines    int    `json:"total_lines"`
	CodeLines     int    `json:"code_lines"`
	Cyclomatic    int    `json:"cyclomatic_complexity"`
	MaxNesting    int    `json:"max_nesting_depth"`
	FunctionCount int    `json:"function_count"`
	Band          string `json:"complexity_band"`
}

// Concern keywords. A hit means the range plausibly touches the concern,
// nothing stronger.
var concernPatterns = map[string][]string{
	"authentication": {"login", "auth", "jwt", "token", "password", "session"},
	"database":       {"query", "select", "insert", "update", "delete", "sql", "db"},
	"api":            {"endpoint", "route", "request", "response", "http", "rest"},
	"security":       {"hash", "encrypt", "validate", "sanitize", "csrf", "xss"},
	"error_handling": {"try", "catch", "except", "error", "exception", "raise", "panic", "recover"},
	"async":          {"async", "await", "promise", "future", "coroutine", "goroutine", "channel"},
	"testing":        {"test", "assert", "mock", "fixture"},
	"logging":        {"log", "debug", "info", "warn", "logger"},
	"file_io":        {"read", "write", "open", "close", "file", "path"},
	"network":        {"socket", "http", "tcp", "udp", "dial", "listen"},
}

var riskPatterns = map[string][]string{
	"sql_injection":     {"execute", "raw sql", "format sql", "sprintf(\"select"},
	"unsafe_eval":       {"eval(", "exec(", "__import__"},
	"hardcoded_secrets": {"password =", "secret =", "api_key", "apikey ="},
	"race_conditions":   {"go func", "thread", "concurrent", "parallel"},
	"path_traversal":    {"../", "..\\"},
	"xss":               {"innerhtml", "document.write"},
}

var riskSuggestions = map[string]string{
	"sql_injection":     "Use parameterized queries instead of string-built SQL",
	"unsafe_eval":       "Avoid eval/exec on dynamic input",
	"hardcoded_secrets": "Move secrets to environment variables or secure config",
	"race_conditions":   "Verify shared state is synchronized",
	"path_traversal":    "Validate and canonicalize file paths before use",
	"xss":               "Sanitize user input before injecting it into markup",
}

// Content fingerprints used when the file extension gives no answer.
var languageFingerprints = map[string][]string{
	"python":     {"def ", "import ", "if __name__", "lambda "},
	"javascript": {"function ", "const ", "=>", "require("},
	"typescript": {"interface ", ": string", "export "},
	"go":         {"package ", "func ", ":= "},
	"rust":       {"fn ", "let mut", "impl "},
	"java":       {"public class ", "import java"},
	"ruby":       {"def ", "module ", "require "},
}

// ExplainRange produces a rule-based explanation of a line range.
// startLine/endLine of 0 mean the whole file.
func (a *Analyzer) ExplainRange(ctx context.Context, root, path string, startLine, endLine int) (*Explanation, error) {
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
	if language == "" {
		language = detectLanguage(code)
	}

	patterns := matchKeywordGroups(code, concernPatterns)
	risks := matchKeywordGroups(code, riskPatterns)
	metrics := computeMetrics(code)

	return &Explanation{
		Summary:     buildSummary(code, patterns, language, metrics),
		Language:    language,
		Patterns:    patterns,
		Risks:       risks,
		Metrics:     metrics,
		Suggestions: buildSuggestions(code, risks, metrics),
		Path:        path,
		StartLine:   startLine,
		EndLine:     endLine,
	}, nil
}

// FileMetrics is the whole-file metrics view, without the explanation prose.
type FileMetrics struct {
	Path     string  `json:"path"`
	Language string  `json:"language"`
	Metrics  Metrics `json:"metrics"`
}

// CodeMetrics computes size and branching metrics for a whole file.
func (a *Analyzer) CodeMetrics(ctx context.Context, root, path string) (*FileMetrics, error) {
	croot, err := a.guard.ResolveRoot(root)
	if err != nil {
		return nil, err
	}
	content, _, err := a.guard.ReadFile(croot, path, 0, -1)
	if err != nil {
		return nil, err
	}

	language := walker.LanguageForPath(path)
	if language == "" {
		language = detectLanguage(string(content))
	}
	return &FileMetrics{
		Path:     path,
		Language: language,
		Metrics:  computeMetrics(string(content)),
	}, nil
}

// RootMetrics aggregates index-wide counts for one root.
type RootMetrics struct {
	Root       string `json:"root"`
	Files      int    `json:"files"`
	Chunks     int    `json:"chunks"`
	TotalLines int    `json:"total_lines"`
	Degraded   int    `json:"degraded"`
}

// AggregateMetrics computes whole-root counts from the published snapshot.
// Line counts come from chunk coverage, so degraded files contribute to the
// file count but not to the line total.
func (a *Analyzer) AggregateMetrics(ctx context.Context, root string) (*RootMetrics, error) {
	snap, croot, err := a.snapshot(root)
	if err != nil {
		return nil, err
	}

	m := &RootMetrics{Root: croot, Files: len(snap.Files)}
	for path, f := range snap.Files {
		if f.Degraded {
			m.Degraded++
		}
		ids := snap.ChunksForFile(path)
		m.Chunks += len(ids)
		if n := len(ids); n > 0 {
			// Chunks cover the whole file, so the last chunk ends on the
			// file's last line.
			m.TotalLines += snap.Chunks[ids[n-1]].EndLine
		}
	}
	return m, nil
}

func detectLanguage(code string) string {
	lower := strings.ToLower(code)
	// Deterministic iteration: most distinctive fingerprints first.
	order := []string{"go", "rust", "typescript", "python", "java", "ruby", "javascript"}
	for _, lang := range order {
		for _, fp := range languageFingerprints[lang] {
			if strings.Contains(lower, strings.ToLower(fp)) {
				return lang
			}
		}
	}
	return "unknown"
}

func matchKeywordGroups(code string, groups map[string][]string) []string {
	lower := strings.ToLower(code)
	hits := []string{}
	for name, keywords := range groups {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits = append(hits, name)
				break
			}
		}
	}
	sort.Strings(hits)
	return hits
}

var functionDefPattern = regexp.MustCompile(`(?m)^\s*(def\s+\w+|func\s+[\w(]|function\s+\w+|fn\s+\w+)`)

func computeMetrics(code string) Metrics {
	lines := strings.Split(code, "\n")
	codeLines := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			codeLines++
		}
	}

	m := Metrics{
		TotalLines:    len(lines),
		CodeLines:     codeLines,
		Cyclomatic:    heuristicComplexity(code),
		MaxNesting:    maxIndentDepth(lines),
		FunctionCount: len(functionDefPattern.FindAllString(code, -1)),
	}
	m.Band = complexityBand(m.Cyclomatic + m.MaxNesting + m.FunctionCount)
	return m
}

// maxIndentDepth estimates nesting from leading whitespace, counting tabs
// and 4-space units.
func maxIndentDepth(lines []string) int {
	max := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		depth := 0
		for i := 0; i < len(l); {
			if l[i] == '\t' {
				depth++
				i++
			} else if strings.HasPrefix(l[i:], "    ") {
				depth++
				i += 4
			} else {
				break
			}
		}
		if depth > max {
			max = depth
		}
	}
	return max
}

func complexityBand(score int) string {
	switch {
	case score <= 5:
		return "Low"
	case score <= 15:
		return "Medium"
	case score <= 30:
		return "High"
	default:
		return "Very High"
	}
}

func buildSummary(code string, patterns []string, language string, m Metrics) string {
	parts := []string{fmt.Sprintf("This is %d lines of %s code", m.CodeLines, language)}

	switch len(patterns) {
	case 0:
	case 1:
		parts = append(parts, fmt.Sprintf("that appears to handle %s", patterns[0]))
	default:
		parts = append(parts, fmt.Sprintf("that involves %s and %s",
			strings.Join(patterns[:len(patterns)-1], ", "), patterns[len(patterns)-1]))
	}

	if m.FunctionCount > 0 {
		parts = append(parts, fmt.Sprintf("with %d function(s)", m.FunctionCount))
	}
	if strings.Contains(code, "import ") {
		parts = append(parts, "that imports external dependencies")
	}
	return strings.Join(parts, ". ") + "."
}

func buildSuggestions(code string, risks []string, m Metrics) []string {
	suggestions := []string{}
	for _, r := range risks {
		if s, ok := riskSuggestions[r]; ok {
			suggestions = append(suggestions, s)
		}
	}

	if m.Cyclomatic > 10 {
		suggestions = append(suggestions, "Consider breaking down complex functions into smaller ones")
	}
	if m.MaxNesting > 4 {
		suggestions = append(suggestions, "Reduce nesting depth for better readability")
	}
	if m.FunctionCount == 0 && m.CodeLines > 20 {
		suggestions = append(suggestions, "Consider organizing code into functions")
	}
	if todoPattern.MatchString(code) {
		suggestions = append(suggestions, "Resolve outstanding marker comments")
	}
	return suggestions
}
