package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/codecompass/codecompass-mcp/internal/query"
	"github.com/codecompass/codecompass-mcp/internal/store"
	"github.com/codecompass/codecompass-mcp/internal/walker"
)

// Operation is the closed set of requests this server executes. Each tool
// handler decodes its arguments into exactly one variant; Dispatch is an
// exhaustive type switch over all variants, so an unhandled operation is a
// programming error surfaced loudly, not a silent fallthrough.
type Operation interface {
	isOperation()
}

// SearchCodeOp runs a literal, regex, or combined search.
type SearchCodeOp struct {
	Root          string
	Pattern       string
	Mode          string
	CaseSensitive bool
	Limit         int
	Offset        int
	ContextLines  int
	BestEffort    bool
}

// SemanticSearchOp runs an embedding-similarity search.
type SemanticSearchOp struct {
	Root   string
	Query  string
	Limit  int
	Offset int
}

// ReadFileOp reads a byte range of a file under a whitelisted root.
type ReadFileOp struct {
	Root   string
	Path   string
	Offset int64
	Length int64
}

// ListTodosOp extracts marker comments, optionally under a path prefix.
type ListTodosOp struct {
	Root       string
	PathPrefix string
}

// ExplainRangeOp produces a rule-based explanation of a line range.
type ExplainRangeOp struct {
	Root      string
	Path      string
	StartLine int
	EndLine   int
}

// GetFileInfoOp reports metadata for one file.
type GetFileInfoOp struct {
	Root string
	Path string
}

// AnalyzeComplexityOp scores the cyclomatic complexity of a range.
type AnalyzeComplexityOp struct {
	Root      string
	Path      string
	StartLine int
	EndLine   int
}

// FindReferencesOp lists whole-word occurrences of a symbol.
type FindReferencesOp struct {
	Root   string
	Symbol string
	Limit  int
}

// CodeMetricsOp computes size and branching metrics for one file, or
// aggregate counts over the whole root when Path is empty.
type CodeMetricsOp struct {
	Root string
	Path string
}

// IndexRepoOp builds or refreshes the index for a root.
type IndexRepoOp struct {
	Root    string
	Refresh bool
}

// GetStatusOp reports index state and statistics for a root.
type GetStatusOp struct {
	Root string
}

func (SearchCodeOp) isOperation()        {}
func (SemanticSearchOp) isOperation()    {}
func (ReadFileOp) isOperation()          {}
func (ListTodosOp) isOperation()         {}
func (ExplainRangeOp) isOperation()      {}
func (GetFileInfoOp) isOperation()       {}
func (AnalyzeComplexityOp) isOperation() {}
func (FindReferencesOp) isOperation()    {}
func (CodeMetricsOp) isOperation()       {}
func (IndexRepoOp) isOperation()         {}
func (GetStatusOp) isOperation()         {}

// Dispatch executes one operation and returns the response body that the
// tool layer serializes. Every Operation variant has a case here.
func (s *Server) Dispatch(ctx context.Context, op Operation) (map[string]interface{}, error) {
	switch op := op.(type) {
	case SearchCodeOp:
		return s.execSearch(ctx, query.Request{
			Root:          op.Root,
			Mode:          query.Mode(op.Mode),
			Pattern:       op.Pattern,
			CaseSensitive: op.CaseSensitive,
			Limit:         op.Limit,
			Offset:        op.Offset,
			ContextLines:  op.ContextLines,
			BestEffort:    op.BestEffort,
		})
	case SemanticSearchOp:
		return s.execSearch(ctx, query.Request{
			Root:    op.Root,
			Mode:    query.ModeSemantic,
			Pattern: op.Query,
			Limit:   op.Limit,
			Offset:  op.Offset,
		})
	case ReadFileOp:
		return s.execReadFile(ctx, op)
	case ListTodosOp:
		return s.execListTodos(ctx, op)
	case ExplainRangeOp:
		return s.execExplainRange(ctx, op)
	case GetFileInfoOp:
		return s.execGetFileInfo(ctx, op)
	case AnalyzeComplexityOp:
		return s.execAnalyzeComplexity(ctx, op)
	case FindReferencesOp:
		return s.execFindReferences(ctx, op)
	case CodeMetricsOp:
		return s.execCodeMetrics(ctx, op)
	case IndexRepoOp:
		return s.execIndexRepo(ctx, op)
	case GetStatusOp:
		return s.execGetStatus(ctx, op)
	default:
		return nil, fmt.Errorf("unhandled operation type %T", op)
	}
}

func (s *Server) execSearch(ctx context.Context, req query.Request) (map[string]interface{}, error) {
	resp, err := s.engine.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"chunk_id":        r.ChunkID,
			"path":            r.Path,
			"line":            r.Line,
			"snippet":         r.Snippet,
			"highlight_start": r.HighlightStart,
			"highlight_end":   r.HighlightEnd,
			"score":           r.Score,
			"mode":            r.Mode,
		})
	}

	return map[string]interface{}{
		"results":     results,
		"total":       resp.Total,
		"stale":       resp.Stale,
		"partial":     resp.Partial,
		"cache_hit":   resp.CacheHit,
		"mode":        string(resp.Mode),
		"duration_ms": resp.Duration.Milliseconds(),
	}, nil
}

func (s *Server) execReadFile(ctx context.Context, op ReadFileOp) (map[string]interface{}, error) {
	croot, err := s.guard.ResolveRoot(op.Root)
	if err != nil {
		return nil, err
	}
	data, total, err := s.guard.ReadFile(croot, op.Path, op.Offset, op.Length)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"path":       op.Path,
		"content":    string(data),
		"offset":     op.Offset,
		"length":     len(data),
		"total_size": total,
		"truncated":  op.Offset+int64(len(data)) < total,
	}, nil
}

func (s *Server) execListTodos(ctx context.Context, op ListTodosOp) (map[string]interface{}, error) {
	todos, err := s.analyzer.ListTodos(ctx, op.Root, op.PathPrefix)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]interface{}, 0, len(todos))
	for _, t := range todos {
		items = append(items, map[string]interface{}{
			"path":    t.Path,
			"line":    t.Line,
			"column":  t.Column,
			"marker":  t.Marker,
			"text":    t.Text,
			"snippet": t.Snippet,
		})
	}
	return map[string]interface{}{
		"todos": items,
		"total": len(items),
	}, nil
}

func (s *Server) execExplainRange(ctx context.Context, op ExplainRangeOp) (map[string]interface{}, error) {
	exp, err := s.analyzer.ExplainRange(ctx, op.Root, op.Path, op.StartLine, op.EndLine)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"summary":     exp.Summary,
		"language":    exp.Language,
		"patterns":    exp.Patterns,
		"risks":       exp.Risks,
		"suggestions": exp.Suggestions,
		"path":        exp.Path,
		"start_line":  exp.StartLine,
		"end_line":    exp.EndLine,
		"metrics": map[string]interface{}{
			"total_lines":           exp.Metrics.TotalLines,
			"code_lines":            exp.Metrics.CodeLines,
			"cyclomatic_complexity": exp.Metrics.Cyclomatic,
			"max_nesting_depth":     exp.Metrics.MaxNesting,
			"function_count":        exp.Metrics.FunctionCount,
			"complexity_band":       exp.Metrics.Band,
		},
		"disclaimer": "Heuristic keyword analysis, not semantic understanding",
	}, nil
}

func (s *Server) execGetFileInfo(ctx context.Context, op GetFileInfoOp) (map[string]interface{}, error) {
	croot, err := s.guard.ResolveRoot(op.Root)
	if err != nil {
		return nil, err
	}
	content, total, err := s.guard.ReadFile(croot, op.Path, 0, -1)
	if err != nil {
		return nil, err
	}

	lines := 0
	for _, b := range content {
		if b == '\n' {
			lines++
		}
	}
	if len(content) > 0 && content[len(content)-1] != '\n' {
		lines++
	}

	info := map[string]interface{}{
		"path":       op.Path,
		"size_bytes": total,
		"lines":      lines,
		"indexed":    false,
	}

	if ix, err := s.registry.Get(croot); err == nil {
		if snap := ix.Snapshot(); snap != nil {
			if f, ok := snap.Files[op.Path]; ok {
				info["indexed"] = true
				info["language"] = f.Language
				info["degraded"] = f.Degraded
				info["chunks"] = len(snap.ChunksForFile(op.Path))
				if f.Degraded && f.DegradedReason != "" {
					info["degraded_reason"] = f.DegradedReason
				}
			}
		}
	}
	if _, ok := info["language"]; !ok {
		info["language"] = walker.LanguageForPath(op.Path)
	}
	return info, nil
}

func (s *Server) execAnalyzeComplexity(ctx context.Context, op AnalyzeComplexityOp) (map[string]interface{}, error) {
	res, err := s.analyzer.AnalyzeComplexity(ctx, op.Root, op.Path, op.StartLine, op.EndLine)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"path":       res.Path,
		"start_line": res.StartLine,
		"end_line":   res.EndLine,
		"score":      res.Score,
		"mode":       string(res.Mode),
		"language":   res.Language,
	}, nil
}

func (s *Server) execFindReferences(ctx context.Context, op FindReferencesOp) (map[string]interface{}, error) {
	refs, err := s.analyzer.FindReferences(ctx, op.Root, op.Symbol, op.Limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]interface{}, 0, len(refs))
	for _, r := range refs {
		items = append(items, map[string]interface{}{
			"path":    r.Path,
			"line":    r.Line,
			"column":  r.Column,
			"snippet": r.Snippet,
		})
	}
	return map[string]interface{}{
		"symbol":     op.Symbol,
		"references": items,
		"total":      len(items),
	}, nil
}

func (s *Server) execCodeMetrics(ctx context.Context, op CodeMetricsOp) (map[string]interface{}, error) {
	if op.Path == "" {
		rm, err := s.analyzer.AggregateMetrics(ctx, op.Root)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"root":        rm.Root,
			"files":       rm.Files,
			"chunks":      rm.Chunks,
			"total_lines": rm.TotalLines,
			"degraded":    rm.Degraded,
		}, nil
	}

	fm, err := s.analyzer.CodeMetrics(ctx, op.Root, op.Path)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"path":     fm.Path,
		"language": fm.Language,
		"metrics": map[string]interface{}{
			"total_lines":           fm.Metrics.TotalLines,
			"code_lines":            fm.Metrics.CodeLines,
			"cyclomatic_complexity": fm.Metrics.Cyclomatic,
			"max_nesting_depth":     fm.Metrics.MaxNesting,
			"function_count":        fm.Metrics.FunctionCount,
			"complexity_band":       fm.Metrics.Band,
		},
	}, nil
}

func (s *Server) execIndexRepo(ctx context.Context, op IndexRepoOp) (map[string]interface{}, error) {
	croot, err := s.guard.ResolveRoot(op.Root)
	if err != nil {
		return nil, err
	}

	ix := s.registry.Open(croot)
	start := time.Now()

	var snap *store.Snapshot
	if op.Refresh {
		snap, err = ix.Refresh(ctx, s.indexer)
	} else {
		snap, err = ix.Build(ctx, s.indexer)
	}
	if err != nil {
		return nil, err
	}

	s.engine.Purge()
	s.persistArtifact(ctx, croot, snap)

	stats := snap.Stats()
	return map[string]interface{}{
		"indexed":     true,
		"root":        croot,
		"files":       stats.Files,
		"chunks":      stats.Chunks,
		"vectors":     stats.Vectors,
		"degraded":    stats.Degraded,
		"diagnostics": diagnosticList(snap.Diagnostics),
		"duration_ms": time.Since(start).Milliseconds(),
	}, nil
}

func (s *Server) execGetStatus(ctx context.Context, op GetStatusOp) (map[string]interface{}, error) {
	croot, err := s.guard.ResolveRoot(op.Root)
	if err != nil {
		return nil, err
	}

	ix, err := s.registry.Get(croot)
	if err != nil || ix.Snapshot() == nil {
		return map[string]interface{}{
			"indexed": false,
			"root":    croot,
			"message": "Root not indexed. Use the index_repo tool first.",
		}, nil
	}
	s.detectDrift(croot, ix)

	snap := ix.Snapshot()
	stats := snap.Stats()
	status := map[string]interface{}{
		"indexed": true,
		"root":    croot,
		"stale":   ix.Stale(),
		"statistics": map[string]interface{}{
			"files":       stats.Files,
			"chunks":      stats.Chunks,
			"vectors":     stats.Vectors,
			"degraded":    stats.Degraded,
			"diagnostics": stats.Diagnostics,
			"built_at":    stats.BuiltAt.Format(time.RFC3339),
		},
		"embedding": map[string]interface{}{
			"provider":  stats.Provider,
			"model":     stats.Model,
			"available": stats.Vectors > 0,
		},
		"sqlite_driver": store.BuildMode,
	}
	if len(snap.Diagnostics) > 0 {
		status["recent_diagnostics"] = diagnosticList(snap.Diagnostics)
	}
	return status, nil
}

// detectDrift re-stats the snapshot's files and marks the index stale when
// any recorded size or mtime diverges, including deleted files. It only sets
// the flag; refreshing stays an explicit caller decision.
func (s *Server) detectDrift(croot string, ix *store.Index) {
	if ix.Stale() {
		return
	}
	snap := ix.Snapshot()
	if snap == nil {
		return
	}
	for path, f := range snap.Files {
		info, err := s.guard.Stat(croot, path)
		if err != nil || info.Size() != f.SizeBytes || !info.ModTime().Equal(f.ModTime) {
			ix.MarkStale()
			return
		}
	}
}

// diagnosticList converts build diagnostics into a serializable form,
// capped so a pathological build does not flood the response.
func diagnosticList(diags []store.Diagnostic) []map[string]interface{} {
	const maxDiags = 20
	out := make([]map[string]interface{}, 0, len(diags))
	for _, d := range diags {
		if len(out) == maxDiags {
			break
		}
		out = append(out, map[string]interface{}{
			"path":   d.Path,
			"reason": d.Reason,
		})
	}
	return out
}
