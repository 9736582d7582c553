// Package storage implements the Storage Engine adapter (C9): the narrow
// boundary the rest of the pipeline uses to persist and query nodes, edges,
// vectors, and lexical text without leaking a backing engine's query
// dialect. It composes three concrete backends translated from the
// teacher's persistence layer — a SQLite-backed node/edge graph, a
// per-dimension HNSW vector index, and a Bleve BM25 lexical index — plus
// RoaringBitmap-backed graph analytics used by the graph analysis services.
package storage
