// Package orchestrator implements the Query Orchestrator (§4.14): the three
// entry points every external surface (CLI, MCP) calls through — index,
// search, and analyze — plus the context-tier budget table that governs how
// generously each stage over-retrieves and how many results a caller sees.
package orchestrator
