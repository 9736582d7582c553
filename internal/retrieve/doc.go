// Package retrieve implements the Hybrid Retriever (§4.10): given a query
// it fans out a vector search, a lexical search, and an optional
// graph-structure seed against the Storage Engine, merges the results keyed
// by NodeId, and scores each candidate by the fixed max-fusion formula the
// specification defines. It deliberately does not use rank-based fusion
// (see DESIGN.md) — the merge keeps the maximum score observed per source
// and takes the max across sources, weighted by fixed α/β constants.
package retrieve
