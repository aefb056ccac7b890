package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// rootProperty is shared by every tool; all operations are scoped to a
// whitelisted repository root.
func rootProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to a configured repository root",
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search an indexed repository with literal, regex, or combined (text + semantic) matching",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": rootProperty(),
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Search pattern. Interpreted per mode: substring, Go regular expression, or free text for combined mode",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Matching strategy",
					"enum":        []string{"literal", "regex", "combined"},
					"default":     "literal",
				},
				"case_sensitive": map[string]interface{}{
					"type":        "boolean",
					"description": "If false, matching ignores ASCII case",
					"default":     false,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"default":     50,
					"minimum":     1,
					"maximum":     1000,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of ordered results to skip, for pagination",
					"default":     0,
					"minimum":     0,
				},
				"context_lines": map[string]interface{}{
					"type":        "integer",
					"description": "Lines of surrounding context to include in each snippet",
					"default":     0,
					"minimum":     0,
					"maximum":     10,
				},
				"best_effort": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, return partial results on timeout instead of failing",
					"default":     false,
				},
			},
			Required: []string{"root", "pattern"},
		},
	}
}

// semanticSearchTool returns the tool definition for semantic_search
func semanticSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "semantic_search",
		Description: "Search an indexed repository by embedding similarity. Fails if no embedding backend produced vectors",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": rootProperty(),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language description of the code to find",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"default":     50,
					"minimum":     1,
					"maximum":     1000,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of ordered results to skip, for pagination",
					"default":     0,
					"minimum":     0,
				},
			},
			Required: []string{"root", "query"},
		},
	}
}

// readFileTool returns the tool definition for read_file
func readFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "read_file",
		Description: "Read a byte range of a file under a configured root. Paths escaping the root are rejected",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": rootProperty(),
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the root",
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Byte offset to start reading from",
					"default":     0,
					"minimum":     0,
				},
				"length": map[string]interface{}{
					"type":        "integer",
					"description": "Number of bytes to read. Omit or -1 for the rest of the file",
					"default":     -1,
				},
			},
			Required: []string{"root", "path"},
		},
	}
}

// listTodosTool returns the tool definition for list_todos
func listTodosTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_todos",
		Description: "List TODO, FIXME, HACK, NOTE, XXX, and BUG marker comments across an indexed repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": rootProperty(),
				"path_prefix": map[string]interface{}{
					"type":        "string",
					"description": "Only report markers in files whose path starts with this prefix",
					"default":     "",
				},
			},
			Required: []string{"root"},
		},
	}
}

// explainRangeTool returns the tool definition for explain_range
func explainRangeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "explain_range",
		Description: "Produce a heuristic explanation of a line range: apparent concerns, risk patterns, metrics, and suggestions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": rootProperty(),
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the root",
				},
				"start_line": map[string]interface{}{
					"type":        "integer",
					"description": "First line of the range (1-based). Omit for the whole file",
					"minimum":     1,
				},
				"end_line": map[string]interface{}{
					"type":        "integer",
					"description": "Last line of the range, inclusive. Omit for the whole file",
					"minimum":     1,
				},
			},
			Required: []string{"root", "path"},
		},
	}
}

// getFileInfoTool returns the tool definition for get_file_info
func getFileInfoTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_file_info",
		Description: "Report size, line count, language, and index state for one file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": rootProperty(),
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the root",
				},
			},
			Required: []string{"root", "path"},
		},
	}
}

// analyzeComplexityTool returns the tool definition for analyze_complexity
func analyzeComplexityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_complexity",
		Description: "Score the cyclomatic complexity of a file or line range. Go code is scored from its syntax tree; other languages use a keyword heuristic, and the response names which mode was used",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": rootProperty(),
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the root",
				},
				"start_line": map[string]interface{}{
					"type":        "integer",
					"description": "First line of the range (1-based). Omit for the whole file",
					"minimum":     1,
				},
				"end_line": map[string]interface{}{
					"type":        "integer",
					"description": "Last line of the range, inclusive. Omit for the whole file",
					"minimum":     1,
				},
			},
			Required: []string{"root", "path"},
		},
	}
}

// findReferencesTool returns the tool definition for find_references
func findReferencesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_references",
		Description: "List whole-word occurrences of an identifier across an indexed repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": rootProperty(),
				"symbol": map[string]interface{}{
					"type":        "string",
					"description": "Identifier to look up. Word boundaries keep 'foo' from matching 'foobar'",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of occurrences to return",
					"default":     200,
					"minimum":     1,
					"maximum":     1000,
				},
			},
			Required: []string{"root", "symbol"},
		},
	}
}

// codeMetricsTool returns the tool definition for code_metrics
func codeMetricsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "code_metrics",
		Description: "Compute size and branching metrics for a whole file, or aggregate counts (files, chunks, lines) for the whole root when no path is given",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": rootProperty(),
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the root. Omit for aggregate counts over the indexed root",
				},
			},
			Required: []string{"root"},
		},
	}
}

// indexRepoTool returns the tool definition for index_repo
func indexRepoTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_repo",
		Description: "Build or refresh the search index for a configured root. A refresh reuses chunks and embeddings of unchanged files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": rootProperty(),
				"refresh": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, reuse unchanged work from the previous index instead of rebuilding from scratch",
					"default":     true,
				},
			},
			Required: []string{"root"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index state for a root: statistics, staleness, embedding availability, and recent build diagnostics",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": rootProperty(),
			},
			Required: []string{"root"},
		},
	}
}
