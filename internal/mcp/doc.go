// Package mcp exposes the repository index over the Model Context
// Protocol on stdio.
//
// Tool handlers decode JSON arguments into one variant of the closed
// Operation set; Dispatch executes the variant against the query engine,
// analyzer, or indexer. Domain sentinel errors are translated into MCP
// error codes at the boundary, so callers see stable codes rather than
// internal error text.
package mcp
