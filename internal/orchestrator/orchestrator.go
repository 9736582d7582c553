package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/codegraph-dev/codegraph/internal/cache"
	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/graphsvc"
	"github.com/codegraph-dev/codegraph/internal/rerank"
	"github.com/codegraph-dev/codegraph/internal/retrieve"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

// StorageBackend is the slice of the Storage Engine (C9) the Orchestrator
// talks to directly, beyond what it hands down to the Retriever and the
// Graph Analysis Services.
type StorageBackend interface {
	retrieve.Backend
	graphsvc.Backend
	UpsertNodes(ctx context.Context, project core.Project, nodes []core.Node) error
	UpsertEdges(ctx context.Context, project core.Project, edges []core.Edge) (int, error)
	DeleteNodesByFile(ctx context.Context, project core.Project, filePath string) error
	GetNode(project core.Project, id core.NodeId) (core.Node, bool, error)
	RecordQuery(kind storage.QueryKind, resultCount int, latency time.Duration)
	MetricsSnapshot() storage.QueryMetricsSnapshot
}

// Embedder is the subset of the Embedding Batcher (C8) the Orchestrator
// needs to turn node content into vectors during an index run; it also
// satisfies retrieve.QueryEmbedder for query-time embedding. ModelName
// scopes the query-embedding cache key (§4.2) to the active provider/model
// so a provider switch can never serve a stale cached vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
}

// Orchestrator is the Query Orchestrator (C14): it owns no storage or
// retrieval logic itself, only the wiring and tier policy that turns
// index/search/analyze calls into the right sequence of C3-C12 calls.
type Orchestrator struct {
	storage    StorageBackend
	embedder   Embedder
	retriever  *retrieve.Retriever
	reranker   *rerank.Pipeline
	graph      *graphsvc.Service
	efSearch   int
	queryCache *cache.Cache
}

// New builds an Orchestrator. reranker may be nil; Search then returns the
// Retriever's candidates with their fusion scores, cut to the limit, and no
// rerank stage (not even the prefilter) runs.
func New(backend StorageBackend, embedder Embedder, reranker *rerank.Pipeline) *Orchestrator {
	return &Orchestrator{
		storage:   backend,
		embedder:  embedder,
		retriever: retrieve.New(backend, embedder),
		reranker:  reranker,
		graph:     graphsvc.New(backend),
		efSearch:  defaultEFSearch,
	}
}

// WithCache attaches a Content-Addressed Cache (C2) used to memoize query
// embeddings (§5 "Cache (C2): many readers + single-writer per key"). Nil is
// the zero value's behavior: every query is embedded fresh, no caching.
func (o *Orchestrator) WithCache(c *cache.Cache) *Orchestrator {
	o.queryCache = c
	return o
}

// defaultEFSearch mirrors the HNSW construction parameters the Storage
// Engine declares per §6 (M=12, EFC=150); ef_search is kept smaller than
// EFC since it only bounds query-time candidate exploration.
const defaultEFSearch = 64

// Compile-time check that *storage.Engine satisfies StorageBackend
// structurally.
var _ StorageBackend = (*storage.Engine)(nil)

// Node looks up one node's full record, used by callers (e.g. the MCP tool
// surface) that need a RankedResult's content/file path/symbol metadata
// beyond the NodeID/Score/MatchSources a search response carries.
func (o *Orchestrator) Node(project core.Project, id core.NodeId) (core.Node, bool, error) {
	return o.storage.GetNode(project, id)
}

// QueryMetrics returns a snapshot of the Storage Engine's rolling
// query-latency histogram and retrieval-kind counters (§9.3), so transport
// surfaces (e.g. the MCP server's metrics resource) can report real
// measurements instead of duplicating their own telemetry collector.
func (o *Orchestrator) QueryMetrics() storage.QueryMetricsSnapshot {
	return o.storage.MetricsSnapshot()
}

// queryEmbeddingTTL bounds how long a cached query embedding survives; short
// enough that a provider redeploy or model swap is noticed well before it
// would matter, long enough to absorb repeat queries within one session.
const queryEmbeddingTTL = 10 * time.Minute

// embedQuery embeds query text, transparently serving a cached vector when
// the Orchestrator was built WithCache. Cache misses embed fresh and store
// the result under EmbeddingCacheKey(text, model, dimensions), JSON-encoded
// per the corpus's dominant serialization convention.
func (o *Orchestrator) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if o.queryCache == nil {
		return o.embedder.Embed(ctx, text)
	}

	key := cache.EmbeddingCacheKey(text, o.embedder.ModelName(), o.embedder.Dimensions())
	if raw, _, ok := o.queryCache.Get(key); ok {
		var cached []float32
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	vec, err := o.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(vec); err == nil {
		o.queryCache.Put(key, encoded, "application/json", queryEmbeddingTTL)
	}
	return vec, nil
}
