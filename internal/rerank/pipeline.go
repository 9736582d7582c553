package rerank

import (
	"context"
	"sort"
	"time"
)

// Pipeline runs the three Reranker Pipeline stages in order, each optional
// per Config (§4.11).
type Pipeline struct {
	crossEncoder CrossEncoder
	llm          LLMClient
}

// New builds a Pipeline. crossEncoder and llm may be nil when their
// respective stages are never enabled.
func New(crossEncoder CrossEncoder, llm LLMClient) *Pipeline {
	return &Pipeline{crossEncoder: crossEncoder, llm: llm}
}

// Rerank runs Stage 1 (embedding prefilter), Stage 2 (cross-encoder), and
// Stage 3 (LLM insights) over docs for query, per cfg, returning results
// sorted by score desc then NodeId asc with scores normalized to [0,1]
// (§4.11).
func (p *Pipeline) Rerank(ctx context.Context, query string, queryEmbedding []float32, docs []Document, cfg Config) (Response, error) {
	bytesBefore := totalBytes(docs)

	ranked := make([]scoredDoc, len(docs))
	for i, d := range docs {
		ranked[i] = scoredDoc{doc: d, score: d.PreliminaryScore}
	}

	var timings StageTimings

	if cfg.PrefilterEnabled {
		start := time.Now()
		ranked = prefilterScored(ranked, queryEmbedding, cfg.EmbeddingThreshold, cfg.PrefilterTopN)
		timings.Prefilter = time.Since(start)
	}

	if cfg.CrossEncoderEnabled && p.crossEncoder != nil && len(ranked) > 0 {
		start := time.Now()
		texts := make([]string, len(ranked))
		for i, r := range ranked {
			texts[i] = r.doc.Content
		}
		scores, err := p.crossEncoder.Score(ctx, query, texts)
		if err != nil {
			return Response{}, err
		}
		for i := range ranked {
			if i < len(scores) {
				ranked[i].score = scores[i]
			}
		}
		timings.CrossEncoder = time.Since(start)

		scope := ranked
		if cfg.CrossEncoderTopN > 0 && len(scope) > cfg.CrossEncoderTopN {
			sort.Slice(scope, func(i, j int) bool { return scope[i].score > scope[j].score })
			scope = scope[:cfg.CrossEncoderTopN]
		}
		ranked = scope
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].doc.NodeID.String() < ranked[j].doc.NodeID.String()
	})

	var insights string
	if cfg.Insights != "" && cfg.Insights != InsightModeOff {
		start := time.Now()
		summary, err := summarize(ctx, p.llm, cfg.Insights, query, ranked, cfg.InsightTopK, cfg.ContextBytes)
		if err != nil {
			return Response{}, err
		}
		insights = summary
		timings.Insights = time.Since(start)
	}

	results := make([]Result, len(ranked))
	maxScore := maxOf(ranked)
	for i, r := range ranked {
		score := r.score
		if maxScore > 0 {
			score = clamp01(score / maxScore)
		}
		results[i] = Result{NodeID: r.doc.NodeID, Score: score}
	}

	bytesAfter := totalBytesScored(ranked)
	var bytesSavedRatio float64
	if bytesBefore > 0 {
		bytesSavedRatio = clamp01(float64(bytesBefore-bytesAfter) / float64(bytesBefore))
	}

	return Response{Results: results, Insights: insights, Timings: timings, BytesSavedRatio: bytesSavedRatio}, nil
}

// prefilterScored applies Stage 1 to already-wrapped scoredDocs, replacing
// each survivor's running score with its cosine similarity.
func prefilterScored(ranked []scoredDoc, queryEmbedding []float32, threshold float64, topN int) []scoredDoc {
	docs := make([]Document, len(ranked))
	for i, r := range ranked {
		docs[i] = r.doc
	}
	return prefilter(queryEmbedding, docs, threshold, topN)
}

func totalBytes(docs []Document) int {
	n := 0
	for _, d := range docs {
		n += len(d.Content)
	}
	return n
}

func totalBytesScored(docs []scoredDoc) int {
	n := 0
	for _, d := range docs {
		n += len(d.doc.Content)
	}
	return n
}

func maxOf(docs []scoredDoc) float64 {
	max := 0.0
	for _, d := range docs {
		if d.score > max {
			max = d.score
		}
	}
	return max
}
