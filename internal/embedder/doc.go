// Package embedder provides pluggable text embedding backends for semantic
// search.
//
// Two real backends are supported: a local Ollama instance (default model
// nomic-embed-text) and the OpenAI embeddings API. When neither is
// configured, the Unavailable embedder is used and every call fails with
// types.ErrEmbeddingUnavailable; semantic queries then report the feature as
// unsupported instead of silently falling back to text search.
//
// Both backends share an LRU vector cache keyed by provider, model, and a
// hash of the input text, and transient failures are retried with
// exponential backoff. Wrap any backend with Limit to bound in-flight calls
// independently of indexing parallelism.
package embedder
