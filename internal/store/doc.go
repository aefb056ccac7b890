// Package store holds the in-memory index and its persisted artifact.
//
// The unit of publication is the immutable Snapshot: files, chunks, a
// token postings index, and per-chunk embedding vectors, all assembled
// before any reader can see them. An Index owns one atomic snapshot
// pointer per root; builds and refreshes construct a full replacement and
// swap it in, so a query sees either the old index or the new one, never
// a mixture. A second concurrent build on the same root fails fast with
// types.ErrRefreshInProgress.
//
// The Registry is an explicit object mapping canonical roots to indexes.
// Evicting a root makes subsequent lookups fail with types.ErrNotFound.
//
// Snapshots round-trip through a per-root SQLite artifact. The artifact
// carries a semver schema version; a major mismatch discards it and forces
// a full rebuild. Vectors are revalidated against chunk content hashes on
// load, so an artifact written against older file contents degrades to a
// partially embedded snapshot instead of serving wrong neighbors.
package store
