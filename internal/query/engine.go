package query

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codecompass/codecompass-mcp/internal/embedder"
	"github.com/codecompass/codecompass-mcp/internal/pathguard"
	"github.com/codecompass/codecompass-mcp/internal/store"
	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// Mode selects the matching strategy for a search.
type Mode string

const (
	ModeLiteral  Mode = "literal"
	ModeRegex    Mode = "regex"
	ModeSemantic Mode = "semantic"
	ModeCombined Mode = "combined" // literal + semantic fused with RRF
)

// Limits and defaults.
const (
	DefaultLimit    = 50
	MaxLimit        = 1000
	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 60 * time.Second

	defaultRRFConstant = 60.0
	queryCacheSize     = 1000
)

// Request describes one search.
type Request struct {
	Root          string
	Mode          Mode
	Pattern       string
	CaseSensitive bool
	Limit         int
	Offset        int
	ContextLines  int
	// BestEffort returns the results accumulated so far on deadline
	// expiry instead of failing.
	BestEffort bool
}

// Response carries results plus the flags callers need to interpret them.
type Response struct {
	Results  []types.QueryResult
	Total    int // matches before pagination
	Stale    bool
	Partial  bool // deadline expired under BestEffort
	CacheHit bool
	Mode     Mode
	Duration time.Duration
}

type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Engine executes searches against published snapshots. Responses are
// cached per (snapshot, request) with a TTL; a new snapshot changes the
// cache key, so rebuilds invalidate naturally.
type Engine struct {
	guard    *pathguard.Guard
	registry *store.Registry
	embed    embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheTTL time.Duration
	timeout  time.Duration
	rrfK     float64
}

// Options tunes the engine.
type Options struct {
	Timeout     time.Duration
	CacheTTL    time.Duration
	RRFConstant float64
}

// New creates a search engine over the given registry. A nil embedder
// makes semantic and combined modes fail with types.ErrEmbeddingUnavailable.
func New(guard *pathguard.Guard, registry *store.Registry, emb embedder.Embedder, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.RRFConstant <= 0 {
		opts.RRFConstant = defaultRRFConstant
	}
	if emb == nil {
		emb = embedder.Unavailable{}
	}
	cache, _ := lru.New[[32]byte, *cacheEntry](queryCacheSize)
	return &Engine{
		guard:    guard,
		registry: registry,
		embed:    emb,
		cache:    cache,
		cacheTTL: opts.CacheTTL,
		timeout:  opts.Timeout,
		rrfK:     opts.RRFConstant,
	}
}

// Search runs one query. Pagination happens after the full match set is
// ordered, so (limit, offset) windows over one snapshot never skip or
// duplicate results.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	if err := normalize(&req); err != nil {
		return nil, err
	}

	croot, err := e.guard.ResolveRoot(req.Root)
	if err != nil {
		return nil, err
	}
	ix, err := e.registry.Get(croot)
	if err != nil {
		return nil, err
	}
	snap := ix.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("%w: root %s is not indexed", types.ErrNotFound, croot)
	}

	key := cacheKey(snap, req)
	if entry, ok := e.cache.Get(key); ok && time.Now().Before(entry.expiresAt) {
		resp := *entry.response
		resp.CacheHit = true
		resp.Stale = ix.Stale()
		return &resp, nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.dispatch(ctx, snap, req)
	if err != nil {
		return nil, err
	}
	resp.Stale = ix.Stale()
	resp.Mode = req.Mode
	resp.Duration = time.Since(start)

	// Partial responses are not cached; a retry may do better.
	if !resp.Partial {
		e.cache.Add(key, &cacheEntry{response: resp, expiresAt: time.Now().Add(e.cacheTTL)})
	}
	return resp, nil
}

// Purge drops all cached responses.
func (e *Engine) Purge() {
	e.cache.Purge()
}

func normalize(req *Request) error {
	if req.Pattern == "" {
		return fmt.Errorf("%w: empty pattern", types.ErrQuerySyntax)
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	switch req.Mode {
	case ModeLiteral, ModeRegex, ModeSemantic, ModeCombined:
		return nil
	case "":
		req.Mode = ModeLiteral
		return nil
	default:
		return fmt.Errorf("%w: unknown mode %q", types.ErrQuerySyntax, req.Mode)
	}
}

func cacheKey(snap *store.Snapshot, req Request) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%s\x00%t\x00%d\x00%d\x00%d\x00%d",
		snap.Root, req.Mode, req.Pattern, req.CaseSensitive,
		req.Limit, req.Offset, req.ContextLines, snap.BuiltAt.UnixNano())))
}

func (e *Engine) dispatch(ctx context.Context, snap *store.Snapshot, req Request) (*Response, error) {
	switch req.Mode {
	case ModeLiteral, ModeRegex:
		return e.searchText(ctx, snap, req)
	case ModeSemantic:
		return e.searchSemantic(ctx, snap, req)
	case ModeCombined:
		return e.searchCombined(ctx, snap, req)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", types.ErrQuerySyntax, req.Mode)
	}
}

func (e *Engine) searchText(ctx context.Context, snap *store.Snapshot, req Request) (*Response, error) {
	var matches []store.TextMatch
	var err error
	if req.Mode == ModeRegex {
		matches, err = snap.LookupRegex(ctx, req.Pattern, req.CaseSensitive)
	} else {
		matches, err = snap.LookupLiteral(ctx, req.Pattern, req.CaseSensitive)
	}

	partial := false
	if err != nil {
		if errors.Is(err, types.ErrTimeout) && req.BestEffort {
			partial = true
		} else {
			return nil, err
		}
	}

	results := make([]types.QueryResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, e.textResult(snap, m, req))
	}
	return paginate(results, req, partial), nil
}

func (e *Engine) searchSemantic(ctx context.Context, snap *store.Snapshot, req Request) (*Response, error) {
	matches, err := e.semanticMatches(ctx, snap, req)
	if err != nil {
		return nil, err
	}

	results := make([]types.QueryResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, e.semanticResult(snap, m, req))
	}
	return paginate(results, req, false), nil
}

func (e *Engine) semanticMatches(ctx context.Context, snap *store.Snapshot, req Request) ([]store.SemanticMatch, error) {
	vec, err := e.embed.Embed(ctx, req.Pattern)
	if err != nil {
		return nil, err
	}
	// Fetch enough to cover the pagination window.
	return snap.LookupSemantic(ctx, vec, req.Offset+req.Limit)
}

// searchCombined fuses literal and semantic rankings with Reciprocal Rank
// Fusion: RRF(d) = sum over rankings of 1/(k + rank(d)).
func (e *Engine) searchCombined(ctx context.Context, snap *store.Snapshot, req Request) (*Response, error) {
	textMatches, err := snap.LookupLiteral(ctx, req.Pattern, req.CaseSensitive)
	if err != nil && !(errors.Is(err, types.ErrTimeout) && req.BestEffort) {
		return nil, err
	}
	partial := errors.Is(err, types.ErrTimeout)

	semMatches, err := e.semanticMatches(ctx, snap, req)
	if err != nil {
		// Combined mode requires the semantic leg; an unavailable
		// backend is surfaced, never silently dropped.
		return nil, err
	}

	// One rank entry per chunk from the text leg, in match order.
	scores := make(map[string]float64)
	seen := make(map[string]bool)
	textRank := 0
	for _, m := range textMatches {
		if seen[m.ChunkID] {
			continue
		}
		seen[m.ChunkID] = true
		textRank++
		scores[m.ChunkID] += 1.0 / (e.rrfK + float64(textRank))
	}
	for rank, m := range semMatches {
		scores[m.ChunkID] += 1.0 / (e.rrfK + float64(rank+1))
	}

	fused := make([]store.SemanticMatch, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, store.SemanticMatch{
			ChunkID: id,
			Path:    snap.Chunks[id].Path,
			Score:   score,
		})
	}
	sortByScore(fused)

	results := make([]types.QueryResult, 0, len(fused))
	for _, m := range fused {
		results = append(results, e.semanticResult(snap, m, req))
	}
	resp := paginate(results, req, partial)
	return resp, nil
}

// sortByScore orders descending by score with chunk ID as tiebreaker,
// mirroring semantic result ordering.
func sortByScore(matches []store.SemanticMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
}

func paginate(results []types.QueryResult, req Request, partial bool) *Response {
	total := len(results)
	from := req.Offset
	if from > total {
		from = total
	}
	to := from + req.Limit
	if to > total {
		to = total
	}
	return &Response{
		Results: results[from:to],
		Total:   total,
		Partial: partial,
		Mode:    req.Mode,
	}
}
