package store

import (
	"regexp/syntax"
	"sort"
	"strings"
)

// MinTokenLen is the minimum length of an indexed token. Single characters
// produce posting lists too dense to prune anything.
const MinTokenLen = 2

func isTokenByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// Tokenize splits content into identifier-style tokens and records the byte
// offset of each occurrence. Tokens are lowercased so the postings index is
// case-insensitive; case-sensitive queries re-verify against raw content.
func Tokenize(content string) map[string][]int {
	out := make(map[string][]int)
	i := 0
	for i < len(content) {
		if !isTokenByte(content[i]) {
			i++
			continue
		}
		start := i
		for i < len(content) && isTokenByte(content[i]) {
			i++
		}
		if i-start >= MinTokenLen {
			tok := strings.ToLower(content[start:i])
			out[tok] = append(out[tok], start)
		}
	}
	return out
}

// queryTokens splits a literal pattern the same way content is tokenized.
// Interior tokens are delimited on both sides inside the pattern, so any
// content containing the pattern contains them as whole tokens; edge tokens
// may continue into adjacent content and only appear as substrings of some
// indexed token.
func queryTokens(pattern string) (interior []string, edge []string) {
	seen := make(map[string]bool)
	i := 0
	for i < len(pattern) {
		if !isTokenByte(pattern[i]) {
			i++
			continue
		}
		start := i
		for i < len(pattern) && isTokenByte(pattern[i]) {
			i++
		}
		if i-start < MinTokenLen {
			continue
		}
		tok := strings.ToLower(pattern[start:i])
		if seen[tok] {
			continue
		}
		seen[tok] = true
		if start > 0 && i < len(pattern) {
			interior = append(interior, tok)
		} else {
			edge = append(edge, tok)
		}
	}
	return interior, edge
}

// pruneByPattern narrows the candidate chunk set for a literal pattern.
// Interior tokens intersect exactly; failing that, the longest edge token
// unions every vocabulary token containing it as a substring, which is
// still a superset of all true matches. ok=false means no pruning was
// possible and every chunk must be scanned.
func (s *Snapshot) pruneByPattern(pattern string) (ids []string, ok bool) {
	interior, edge := queryTokens(pattern)
	if len(interior) > 0 {
		return s.candidateChunks(interior)
	}
	if len(edge) == 0 {
		return nil, false
	}

	longest := edge[0]
	for _, tok := range edge[1:] {
		if len(tok) > len(longest) {
			longest = tok
		}
	}

	seen := make(map[string]bool)
	out := []string{}
	for vocab, list := range s.postings {
		if !strings.Contains(vocab, longest) {
			continue
		}
		for _, p := range list {
			if !seen[p.ChunkID] {
				seen[p.ChunkID] = true
				out = append(out, p.ChunkID)
			}
		}
	}
	sort.Strings(out)
	return out, true
}

// candidateChunks intersects the posting lists of the given tokens. All
// token lists are ordered by chunk ID, so intersection is a linear merge.
// A nil return with ok=false means no token had a posting list and the
// caller must scan every chunk; an empty non-nil return means the
// intersection is provably empty.
func (s *Snapshot) candidateChunks(tokens []string) (ids []string, ok bool) {
	if len(tokens) == 0 {
		return nil, false
	}

	lists := make([][]Posting, 0, len(tokens))
	for _, tok := range tokens {
		lists = append(lists, s.postings[tok])
	}

	// Start from the shortest list.
	minIdx := 0
	for i, l := range lists {
		if len(l) < len(lists[minIdx]) {
			minIdx = i
		}
	}
	if len(lists[minIdx]) == 0 {
		return []string{}, true
	}

	out := make([]string, 0, len(lists[minIdx]))
	for _, p := range lists[minIdx] {
		inAll := true
		for i, l := range lists {
			if i == minIdx {
				continue
			}
			if !containsChunk(l, p.ChunkID) {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, p.ChunkID)
		}
	}
	return out, true
}

// containsChunk binary-searches an ordered posting list for a chunk ID.
func containsChunk(list []Posting, chunkID string) bool {
	lo, hi := 0, len(list)
	for lo < hi {
		mid := (lo + hi) / 2
		if list[mid].ChunkID < chunkID {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo < len(list) && list[lo].ChunkID == chunkID
}

// requiredLiterals walks a parsed regular expression and collects literal
// strings that every match must contain. Alternation contributes nothing
// (either branch may match); concatenation and capture groups pass through.
func requiredLiterals(re *syntax.Regexp) []string {
	switch re.Op {
	case syntax.OpLiteral:
		return []string{string(re.Rune)}
	case syntax.OpConcat:
		var out []string
		for _, sub := range re.Sub {
			out = append(out, requiredLiterals(sub)...)
		}
		return out
	case syntax.OpCapture:
		return requiredLiterals(re.Sub[0])
	case syntax.OpPlus:
		// x+ guarantees at least one x.
		return requiredLiterals(re.Sub[0])
	default:
		return nil
	}
}

// regexPruneTokens derives postings tokens from a regex pattern. Only
// interior tokens of required literals are sound pruning keys, mirroring
// the literal path.
func regexPruneTokens(pattern string, caseSensitive bool) []string {
	flags := syntax.Perl
	if !caseSensitive {
		flags |= syntax.FoldCase
	}
	parsed, err := syntax.Parse(pattern, flags)
	if err != nil {
		return nil
	}
	parsed = parsed.Simplify()

	seen := make(map[string]bool)
	var toks []string
	for _, lit := range requiredLiterals(parsed) {
		interior, _ := queryTokens(lit)
		for _, tok := range interior {
			if !seen[tok] {
				seen[tok] = true
				toks = append(toks, tok)
			}
		}
	}
	return toks
}
