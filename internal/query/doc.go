// Package query executes searches against published index snapshots.
//
// Four modes are supported: literal, regex, semantic, and combined, where
// combined fuses the literal and semantic rankings with Reciprocal Rank
// Fusion. Results are ordered deterministically, paginated after ordering,
// and annotated with the staleness of the snapshot they were computed
// from. Responses are cached in a bounded LRU keyed by snapshot and
// request, so a rebuild invalidates cached entries implicitly.
//
// Every search runs under a deadline. By default expiry fails the query
// with types.ErrTimeout; best-effort requests instead return what was
// found and mark the response partial.
package query
