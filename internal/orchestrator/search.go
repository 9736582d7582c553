package orchestrator

import (
	"context"
	"time"

	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/rerank"
	"github.com/codegraph-dev/codegraph/internal/retrieve"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

// queryKindOf classifies a search by which retrieval sources contributed to
// its candidates, so the Storage Engine's query histogram (§9.3) can be read
// alongside "was this lexical, semantic, or mixed" the way the placeholder
// analytics it replaces wanted broken out.
func queryKindOf(candidates []retrieve.Candidate) storage.QueryKind {
	var sawLexical, sawVector bool
	for _, c := range candidates {
		for _, s := range c.MatchSources {
			switch s {
			case retrieve.SourceLexical:
				sawLexical = true
			case retrieve.SourceVector:
				sawVector = true
			}
		}
	}
	switch {
	case sawLexical && sawVector:
		return storage.QueryMixed
	case sawLexical:
		return storage.QueryLexical
	default:
		return storage.QuerySemantic
	}
}

// rerankConfigForTier derives the Reranker Pipeline's per-stage toggles and
// thresholds from a context tier (SPEC_FULL.md §C.7 "rerank_config.rs
// tier-aware rerank config"), rather than one global Config. Every tier
// enables every stage except Insights, which only the two upper tiers turn
// on by default (a wider context window is what makes concatenating or
// generating extra narrative actually useful to the caller).
func rerankConfigForTier(tier ContextTier) rerank.Config {
	budget := tier.Budget()
	cfg := rerank.Config{
		PrefilterEnabled:    true,
		EmbeddingThreshold:  0.2,
		PrefilterTopN:       budget.BaseLimit * budget.RerankOverRetrieve,
		CrossEncoderEnabled: true,
		CrossEncoderTopN:    budget.BaseLimit * 2,
		Insights:            rerank.InsightModeOff,
		InsightTopK:         budget.BaseLimit,
		ContextBytes:        8192,
	}
	switch tier {
	case TierLarge:
		cfg.Insights = rerank.InsightModeContextOnly
	case TierMassive:
		cfg.Insights = rerank.InsightModeBalanced
	}
	return cfg
}

// Search runs the Hybrid Retriever (C10) followed by the Reranker Pipeline
// (C11), with the over-retrieve factors and result limit resolved from the
// request's context tier (§4.14).
func (o *Orchestrator) Search(ctx context.Context, req SearchRequest) (RankedResults, error) {
	tier := req.Limits.Tier
	budget := tier.Budget()
	limit := tier.ResolveLimit(req.Limits.Limit)

	embedStart := time.Now()
	overRetrieve := limit * budget.LocalOverRetrieve
	candidates, err := o.retriever.Retrieve(ctx, req.Project, req.Query, overRetrieve, o.efSearch)
	searchMs := durationMs(time.Since(embedStart))
	if err != nil {
		return RankedResults{}, err
	}

	if o.reranker == nil {
		results := candidatesToResults(candidates, limit)
		o.storage.RecordQuery(queryKindOf(candidates), len(results), time.Since(embedStart))
		return RankedResults{
			Results: results,
			Timings: SearchTimings{SearchMs: searchMs},
		}, nil
	}

	docs := make([]rerank.Document, 0, len(candidates))
	for _, c := range candidates {
		node, ok, err := o.storage.GetNode(req.Project, c.NodeID)
		if err != nil {
			return RankedResults{}, core.Wrap(core.KindStorage, "fetch candidate node for rerank", err)
		}
		if !ok {
			continue
		}
		docs = append(docs, rerank.Document{
			NodeID:           c.NodeID,
			Content:          node.Content,
			Embedding:        node.Embedding,
			PreliminaryScore: c.Score,
		})
	}

	queryEmbedding, err := o.embedQuery(ctx, req.Query)
	if err != nil {
		return RankedResults{}, core.Wrap(core.KindProvider, "query embedding for rerank", err)
	}

	resp, err := o.reranker.Rerank(ctx, req.Query, queryEmbedding, docs, rerankConfigForTier(tier))
	if err != nil {
		return RankedResults{}, err
	}

	sources := sourcesByNode(candidates)
	results := make([]RankedResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(results) >= limit {
			break
		}
		results = append(results, RankedResult{NodeID: r.NodeID, Score: r.Score, MatchSources: sources[r.NodeID]})
	}

	o.storage.RecordQuery(queryKindOf(candidates), len(results), time.Since(embedStart))

	return RankedResults{
		Results:  results,
		Insights: resp.Insights,
		Timings: SearchTimings{
			SearchMs: searchMs,
			RerankMs: durationMs(resp.Timings.Prefilter + resp.Timings.CrossEncoder + resp.Timings.Insights),
		},
	}, nil
}

func candidatesToResults(candidates []retrieve.Candidate, limit int) []RankedResult {
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]RankedResult, len(candidates))
	for i, c := range candidates {
		out[i] = RankedResult{NodeID: c.NodeID, Score: c.Score, MatchSources: sourceStrings(c.MatchSources)}
	}
	return out
}

func sourcesByNode(candidates []retrieve.Candidate) map[core.NodeId][]string {
	out := make(map[core.NodeId][]string, len(candidates))
	for _, c := range candidates {
		out[c.NodeID] = sourceStrings(c.MatchSources)
	}
	return out
}

func sourceStrings(sources []retrieve.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}
