package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// Engine is the Storage Engine adapter (C9): the narrow boundary used by
// the rest of the pipeline to persist and query nodes, edges, vectors, and
// lexical text, scoped per Project (§3 "Project: opaque id string; all
// writes and queries are scoped by it"). It never leaks the concrete
// backends (SQLite, HNSW, Bleve) past this interface.
type Engine struct {
	baseDir string
	metrics *QueryMetrics

	mu         sync.Mutex
	partitions map[core.Project]*partition
}

// partition holds one project's backends: its node/edge graph, its
// per-dimension vector indices, and its lexical index.
type partition struct {
	meta    *metadataStore
	vectors *vectorIndex
	lexical *lexicalIndex
}

// NewEngine opens (creating as needed) a Storage Engine rooted at baseDir,
// where each project gets its own on-disk subdirectory.
func NewEngine(baseDir string) *Engine {
	return &Engine{baseDir: baseDir, metrics: NewQueryMetrics(), partitions: make(map[core.Project]*partition)}
}

func (e *Engine) partitionFor(project core.Project) (*partition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.partitions[project]; ok {
		return p, nil
	}

	dir := filepath.Join(e.baseDir, sanitizeProjectDir(string(project)))
	metaPath := filepath.Join(dir, "graph.db")
	lexicalPath := filepath.Join(dir, "lexical.bleve")

	if e.baseDir == "" {
		metaPath, lexicalPath = ":memory:", ""
	}

	meta, err := newMetadataStore(metaPath)
	if err != nil {
		return nil, core.Wrap(core.KindStorage, "open metadata store", err)
	}
	lexical, err := newLexicalIndex(lexicalPath)
	if err != nil {
		return nil, core.Wrap(core.KindStorage, "open lexical index", err)
	}

	p := &partition{meta: meta, vectors: newVectorIndex(), lexical: lexical}
	e.partitions[project] = p
	return p, nil
}

func sanitizeProjectDir(project string) string {
	if project == "" {
		return "default"
	}
	out := make([]rune, 0, len(project))
	for _, r := range project {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// UpsertNodes inserts or replaces nodes by NodeId, updating their vector
// and lexical indices alongside the graph store (§4.9).
func (e *Engine) UpsertNodes(ctx context.Context, project core.Project, nodes []core.Node) error {
	p, err := e.partitionFor(project)
	if err != nil {
		return err
	}
	if err := p.meta.UpsertNodes(ctx, nodes); err != nil {
		return core.Wrap(core.KindStorage, "upsert_nodes", err)
	}
	for _, n := range nodes {
		if len(n.Embedding) > 0 {
			if err := p.vectors.upsert(n.ID, n.Embedding); err != nil {
				return core.Wrap(core.KindStorage, "upsert_nodes: vector index", err)
			}
		}
		if n.Content != "" {
			if err := p.lexical.upsert(n.ID, n.Content); err != nil {
				return core.Wrap(core.KindStorage, "upsert_nodes: lexical index", err)
			}
		}
	}
	return nil
}

// UpsertEdges resolves string targets to NodeIds where possible using the
// Symbol Indexer and persists the result, returning how many targets were
// resolved (§4.9).
func (e *Engine) UpsertEdges(ctx context.Context, project core.Project, edges []core.Edge) (int, error) {
	p, err := e.partitionFor(project)
	if err != nil {
		return 0, err
	}
	resolved, err := p.meta.UpsertEdges(ctx, edges)
	if err != nil {
		return resolved, core.Wrap(core.KindStorage, "upsert_edges", err)
	}
	return resolved, nil
}

// DeleteNodesByFile removes every node at file_path and their incident
// edges, plus the corresponding vector/lexical entries (§4.9).
func (e *Engine) DeleteNodesByFile(ctx context.Context, project core.Project, filePath string) error {
	p, err := e.partitionFor(project)
	if err != nil {
		return err
	}

	var removed []core.NodeId
	for _, n := range p.meta.allNodesSnapshot() {
		if n.Location.FilePath == filePath {
			removed = append(removed, n.ID)
		}
	}

	if err := p.meta.DeleteNodesByFile(ctx, filePath); err != nil {
		return core.Wrap(core.KindStorage, "delete_nodes_by_file", err)
	}
	for _, id := range removed {
		p.vectors.removeFromAll(id)
		_ = p.lexical.delete(id)
	}
	return nil
}

// GetNode returns a node by id (§4.9).
func (e *Engine) GetNode(project core.Project, id core.NodeId) (core.Node, bool, error) {
	p, err := e.partitionFor(project)
	if err != nil {
		return core.Node{}, false, err
	}
	n, ok := p.meta.GetNode(id)
	return n, ok, nil
}

// GetNeighbors returns up to limit edges incident to id (§4.9).
func (e *Engine) GetNeighbors(project core.Project, id core.NodeId, limit int) ([]core.Edge, error) {
	p, err := e.partitionFor(project)
	if err != nil {
		return nil, err
	}
	return p.meta.GetNeighbors(id, limit), nil
}

// VectorKNN performs approximate nearest-neighbor search against the
// per-dimension HNSW index whose column name is `embedding_<dim>` (§4.9).
func (e *Engine) VectorKNN(ctx context.Context, project core.Project, dimension int, query []float32, k, efSearch int) ([]ScoredNode, error) {
	p, err := e.partitionFor(project)
	if err != nil {
		return nil, err
	}
	results, err := p.vectors.knn(dimension, query, k, efSearch)
	if err != nil {
		return nil, core.Wrap(core.KindStorage, fmt.Sprintf("vector_knn: embedding_%d", dimension), err)
	}
	return results, nil
}

// LexicalSearch runs BM25-like analyzer-backed text search scoped to a
// project (§4.9).
func (e *Engine) LexicalSearch(ctx context.Context, project core.Project, text string, limit int) ([]LexicalResult, error) {
	p, err := e.partitionFor(project)
	if err != nil {
		return nil, err
	}
	results, err := p.lexical.search(ctx, text, limit)
	if err != nil {
		return nil, core.Wrap(core.KindStorage, "lexical_search", err)
	}
	return results, nil
}

// ResolveSymbol looks up text as a symbol name (qualified or bare) against
// the project's current node set, returning the node it resolves to if any
// (§4.10 graph-structure seed, §4.9 symbol resolution shared with
// upsert_edges).
func (e *Engine) ResolveSymbol(project core.Project, text string) (core.NodeId, bool, error) {
	p, err := e.partitionFor(project)
	if err != nil {
		return core.Nil, false, err
	}
	id, ok := p.meta.resolveSymbol(text)
	return id, ok, nil
}

// TransitiveDependencies walks outgoing edges of edgeType up to depth hops
// from id (§4.9, consumed by C12).
func (e *Engine) TransitiveDependencies(project core.Project, id core.NodeId, edgeType core.EdgeType, depth int) ([]core.NodeId, error) {
	p, err := e.partitionFor(project)
	if err != nil {
		return nil, err
	}
	return p.meta.TransitiveDependencies(id, edgeType, depth), nil
}

// ReverseDependencies walks incoming edges of edgeType up to depth hops
// from id (§4.9, consumed by C12).
func (e *Engine) ReverseDependencies(project core.Project, id core.NodeId, edgeType core.EdgeType, depth int) ([]core.NodeId, error) {
	p, err := e.partitionFor(project)
	if err != nil {
		return nil, err
	}
	return p.meta.ReverseDependencies(id, edgeType, depth), nil
}

// DetectCycles finds simple cycles among edges of edgeType (§4.9, consumed
// by C12).
func (e *Engine) DetectCycles(project core.Project, edgeType core.EdgeType) ([][]core.NodeId, error) {
	p, err := e.partitionFor(project)
	if err != nil {
		return nil, err
	}
	return p.meta.DetectCycles(edgeType), nil
}

// CouplingMetrics reports Ca/Ce/I for id (§4.9, consumed by C12).
func (e *Engine) CouplingMetrics(project core.Project, id core.NodeId) (CouplingMetrics, error) {
	p, err := e.partitionFor(project)
	if err != nil {
		return CouplingMetrics{}, err
	}
	return p.meta.CouplingMetrics(id), nil
}

// HubNodes returns nodes whose combined degree is at least minDegree
// (§4.9, consumed by C12).
func (e *Engine) HubNodes(project core.Project, minDegree int) ([]core.NodeId, error) {
	p, err := e.partitionFor(project)
	if err != nil {
		return nil, err
	}
	return p.meta.HubNodes(minDegree), nil
}

// TraceCallChain follows Calls edges from `from` up to maxDepth hops
// (§4.9, consumed by C12).
func (e *Engine) TraceCallChain(project core.Project, from core.NodeId, maxDepth int) ([]core.NodeId, error) {
	p, err := e.partitionFor(project)
	if err != nil {
		return nil, err
	}
	return p.meta.TraceCallChain(from, maxDepth), nil
}

// RecordQuery records one completed search's retrieval kind, result count,
// and latency into the engine's rolling query-metrics histogram (§9.3).
func (e *Engine) RecordQuery(kind QueryKind, resultCount int, latency time.Duration) {
	e.metrics.Record(kind, resultCount, latency)
}

// MetricsSnapshot returns the current rolling query-metrics counters, read
// by `status` and graph analytics in place of the hard-coded placeholder
// analytics the original returned (§9.3).
func (e *Engine) MetricsSnapshot() QueryMetricsSnapshot {
	return e.metrics.Snapshot()
}

// Close releases every open partition's backends.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for _, p := range e.partitions {
		if err := p.meta.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := p.lexical.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
