package retrieve

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

// graphSeedScore is the score assigned to a node reached via the optional
// graph-structure seed (§4.10 step 2 "fetch its outgoing/incoming edges").
// The specification gives no decay formula for graph-seed hits, so every
// node directly adjacent to a resolved symbol — and the symbol itself — is
// treated as a maximal (1.0) graph signal; β then discounts it during
// fusion. Recorded as a deliberate Open Question resolution in DESIGN.md.
const graphSeedScore = 1.0

// Backend is the narrow slice of the Storage Engine (C9) the retriever
// depends on.
type Backend interface {
	VectorKNN(ctx context.Context, project core.Project, dimension int, query []float32, k, efSearch int) ([]storage.ScoredNode, error)
	LexicalSearch(ctx context.Context, project core.Project, text string, limit int) ([]storage.LexicalResult, error)
	ResolveSymbol(project core.Project, text string) (core.NodeId, bool, error)
	GetNeighbors(project core.Project, id core.NodeId, limit int) ([]core.Edge, error)
}

// QueryEmbedder produces the single query-time embedding used for vector
// search (§4.10 step 1).
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever is the Hybrid Retriever (C10).
type Retriever struct {
	backend  Backend
	embedder QueryEmbedder
	weights  Weights
}

// New builds a Retriever over a Storage Engine backend and a query
// embedder, using the specification's default fusion weights.
func New(backend Backend, embedder QueryEmbedder) *Retriever {
	return &Retriever{backend: backend, embedder: embedder, weights: DefaultWeights()}
}

// WithWeights overrides the default α/β fusion weights.
func (r *Retriever) WithWeights(w Weights) *Retriever {
	r.weights = w
	return r
}

// Retrieve runs the hybrid search described in §4.10: a single query
// embedding, a parallel fan-out of vector search, lexical search, and an
// optional graph-structure seed, a max-fusion merge keyed by NodeId, and a
// deterministic sort. overRetrieveLimit is the per-branch and final result
// size (limit × the context tier's over-retrieve factor, resolved by the
// caller per §4.14 — this package has no opinion on tier policy).
//
// Per §5's fan-out ordering guarantee ("partial results from a fan-out are
// never returned — all branches must complete or the whole search fails"),
// a real failure in any branch cancels the others and fails the whole call;
// only the graph seed's "query doesn't resolve to a symbol" case is a
// legitimate empty result, not a failure.
func (r *Retriever) Retrieve(ctx context.Context, project core.Project, queryText string, overRetrieveLimit, efSearch int) ([]Candidate, error) {
	if overRetrieveLimit <= 0 {
		overRetrieveLimit = 1
	}

	queryEmbedding, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, core.Wrap(core.KindProvider, "hybrid retrieve: query embedding", err)
	}

	var (
		vectorHits  []storage.ScoredNode
		lexicalHits []storage.LexicalResult
		graphHits   map[core.NodeId]struct{}
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hits, err := r.backend.VectorKNN(gctx, project, len(queryEmbedding), queryEmbedding, overRetrieveLimit, efSearch)
		if err != nil {
			return core.Wrap(core.KindStorage, "hybrid retrieve: vector search", err)
		}
		vectorHits = hits
		return nil
	})

	g.Go(func() error {
		hits, err := r.backend.LexicalSearch(gctx, project, queryText, overRetrieveLimit)
		if err != nil {
			return core.Wrap(core.KindStorage, "hybrid retrieve: lexical search", err)
		}
		lexicalHits = hits
		return nil
	})

	g.Go(func() error {
		seedID, ok, err := r.backend.ResolveSymbol(project, queryText)
		if err != nil {
			return core.Wrap(core.KindStorage, "hybrid retrieve: graph seed resolution", err)
		}
		if !ok {
			return nil
		}
		hits := make(map[core.NodeId]struct{})
		hits[seedID] = struct{}{}
		neighbors, err := r.backend.GetNeighbors(project, seedID, overRetrieveLimit)
		if err != nil {
			return core.Wrap(core.KindStorage, "hybrid retrieve: graph seed neighbors", err)
		}
		for _, e := range neighbors {
			if e.From != seedID {
				hits[e.From] = struct{}{}
				continue
			}
			if e.To.Resolved && e.To.NodeID != nil {
				hits[*e.To.NodeID] = struct{}{}
			}
		}
		graphHits = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeCandidates(vectorHits, lexicalHits, graphHits, r.weights)
	return topByScore(merged, overRetrieveLimit), nil
}

func mergeCandidates(vectorHits []storage.ScoredNode, lexicalHits []storage.LexicalResult, graphHits map[core.NodeId]struct{}, weights Weights) []Candidate {
	byID := make(map[core.NodeId]*Candidate)

	get := func(id core.NodeId) *Candidate {
		c, ok := byID[id]
		if !ok {
			c = &Candidate{NodeID: id}
			byID[id] = c
		}
		return c
	}

	for _, h := range vectorHits {
		c := get(h.NodeID)
		if h.Score > c.VectorScore {
			c.VectorScore = h.Score
		}
		c.addSource(SourceVector)
	}
	for _, h := range lexicalHits {
		c := get(h.NodeID)
		if h.Score > c.LexicalScore {
			c.LexicalScore = h.Score
		}
		c.addSource(SourceLexical)
	}
	for id := range graphHits {
		c := get(id)
		if graphSeedScore > c.GraphScore {
			c.GraphScore = graphSeedScore
		}
		c.addSource(SourceGraph)
	}

	out := make([]Candidate, 0, len(byID))
	for _, c := range byID {
		c.fuse(weights)
		out = append(out, *c)
	}
	return out
}

// topByScore sorts candidates by (score desc, NodeId asc) — the
// specification's deterministic tie-break — and truncates to limit.
func topByScore(candidates []Candidate, limit int) []Candidate {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.NodeID.String() < b.NodeID.String()
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
