// Package analysis answers code-understanding requests over indexed roots.
//
// It covers four operations: marker-comment extraction (TODO, FIXME and
// friends, cached per file content hash), complexity scoring (exact from
// the Go syntax tree where possible, keyword heuristic elsewhere, with the
// mode always reported), whole-word reference lookup, and a rule-based
// explanation that summarizes a range's apparent concerns, risks, and
// complexity band. Explanations are keyword heuristics and are labeled as
// such in their output shape; they make no claim of semantic understanding.
package analysis
