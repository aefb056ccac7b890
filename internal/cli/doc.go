// Package cli defines the codecompass command tree. Every command wires
// the same server the MCP transport uses and goes through its operation
// dispatch, so CLI and protocol behavior cannot drift apart.
package cli
