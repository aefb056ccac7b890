package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeRootNotConfigured    = -32001 // Root is not on the configured whitelist
	ErrorCodeRefreshInProgress    = -32002 // Another build is already running for the root
	ErrorCodeNotIndexed           = -32003 // Root has no published index
	ErrorCodeEmbeddingUnavailable = -32004 // Semantic search requested with no embedding backend
	ErrorCodeTimeout              = -32005 // Query deadline expired without best_effort
)

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireString(args, "root")
	if err != nil {
		return nil, err
	}
	pattern, err := requireString(args, "pattern")
	if err != nil {
		return nil, err
	}

	op := SearchCodeOp{
		Root:          root,
		Pattern:       pattern,
		Mode:          getStringDefault(args, "mode", "literal"),
		CaseSensitive: getBoolDefault(args, "case_sensitive", false),
		Limit:         getIntDefault(args, "limit", 0),
		Offset:        getIntDefault(args, "offset", 0),
		ContextLines:  getIntDefault(args, "context_lines", 0),
		BestEffort:    getBoolDefault(args, "best_effort", false),
	}
	return s.run(ctx, op)
}

// handleSemanticSearch handles the semantic_search tool invocation
func (s *Server) handleSemanticSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireString(args, "root")
	if err != nil {
		return nil, err
	}
	q, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}

	op := SemanticSearchOp{
		Root:   root,
		Query:  q,
		Limit:  getIntDefault(args, "limit", 0),
		Offset: getIntDefault(args, "offset", 0),
	}
	return s.run(ctx, op)
}

// handleReadFile handles the read_file tool invocation
func (s *Server) handleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireString(args, "root")
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}

	op := ReadFileOp{
		Root:   root,
		Path:   path,
		Offset: int64(getIntDefault(args, "offset", 0)),
		Length: int64(getIntDefault(args, "length", -1)),
	}
	return s.run(ctx, op)
}

// handleListTodos handles the list_todos tool invocation
func (s *Server) handleListTodos(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireString(args, "root")
	if err != nil {
		return nil, err
	}

	op := ListTodosOp{
		Root:       root,
		PathPrefix: getStringDefault(args, "path_prefix", ""),
	}
	return s.run(ctx, op)
}

// handleExplainRange handles the explain_range tool invocation
func (s *Server) handleExplainRange(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireString(args, "root")
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}

	op := ExplainRangeOp{
		Root:      root,
		Path:      path,
		StartLine: getIntDefault(args, "start_line", 0),
		EndLine:   getIntDefault(args, "end_line", 0),
	}
	return s.run(ctx, op)
}

// handleGetFileInfo handles the get_file_info tool invocation
func (s *Server) handleGetFileInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireString(args, "root")
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}

	return s.run(ctx, GetFileInfoOp{Root: root, Path: path})
}

// handleAnalyzeComplexity handles the analyze_complexity tool invocation
func (s *Server) handleAnalyzeComplexity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireString(args, "root")
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}

	op := AnalyzeComplexityOp{
		Root:      root,
		Path:      path,
		StartLine: getIntDefault(args, "start_line", 0),
		EndLine:   getIntDefault(args, "end_line", 0),
	}
	return s.run(ctx, op)
}

// handleFindReferences handles the find_references tool invocation
func (s *Server) handleFindReferences(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireString(args, "root")
	if err != nil {
		return nil, err
	}
	symbol, err := requireString(args, "symbol")
	if err != nil {
		return nil, err
	}

	op := FindReferencesOp{
		Root:   root,
		Symbol: symbol,
		Limit:  getIntDefault(args, "limit", 0),
	}
	return s.run(ctx, op)
}

// handleCodeMetrics handles the code_metrics tool invocation
func (s *Server) handleCodeMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireString(args, "root")
	if err != nil {
		return nil, err
	}

	return s.run(ctx, CodeMetricsOp{
		Root: root,
		Path: getStringDefault(args, "path", ""),
	})
}

// handleIndexRepo handles the index_repo tool invocation
func (s *Server) handleIndexRepo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireString(args, "root")
	if err != nil {
		return nil, err
	}

	op := IndexRepoOp{
		Root:    root,
		Refresh: getBoolDefault(args, "refresh", true),
	}
	return s.run(ctx, op)
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireString(args, "root")
	if err != nil {
		return nil, err
	}

	return s.run(ctx, GetStatusOp{Root: root})
}

// run executes an operation and maps domain errors to protocol errors.
func (s *Server) run(ctx context.Context, op Operation) (*mcp.CallToolResult, error) {
	response, err := s.Dispatch(ctx, op)
	if err != nil {
		return nil, toolError(err)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// toolError translates domain sentinel errors into MCP error codes.
func toolError(err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, types.ErrQuerySyntax):
		return newMCPError(ErrorCodeInvalidParams, "invalid query", data)
	case errors.Is(err, types.ErrPathTraversal):
		return newMCPError(ErrorCodeInvalidParams, "path escapes repository root", data)
	case errors.Is(err, types.ErrFileTooLarge):
		return newMCPError(ErrorCodeInvalidParams, "file exceeds size ceiling", data)
	case errors.Is(err, types.ErrNotFound):
		return newMCPError(ErrorCodeRootNotConfigured, "root or path not found", data)
	case errors.Is(err, types.ErrRefreshInProgress):
		return newMCPError(ErrorCodeRefreshInProgress, "an index build is already running", data)
	case errors.Is(err, types.ErrEmbeddingUnavailable):
		return newMCPError(ErrorCodeEmbeddingUnavailable, "embedding backend unavailable", data)
	case errors.Is(err, types.ErrTimeout):
		return newMCPError(ErrorCodeTimeout, "query deadline expired", data)
	default:
		return newMCPError(ErrorCodeInternalError, "operation failed", data)
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireArgs extracts the argument map from a tool request.
func requireArgs(request mcp.CallToolRequest) (map[string]interface{}, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// requireString extracts a mandatory non-empty string parameter.
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
