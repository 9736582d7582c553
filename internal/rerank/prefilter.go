package rerank

import (
	"math"
	"sort"
)

// scoredDoc pairs a Document with its running score across stages.
type scoredDoc struct {
	doc   Document
	score float64
}

// prefilter is Stage 1 (§4.11 "cosine similarity between query embedding
// and candidate node embeddings; keep top N1 above embedding_threshold"),
// adapted from the cosine-normalize-then-compare pattern the teacher uses
// in its HNSW vector store (internal/store/hnsw.go's
// normalizeVectorInPlace), generalized to plain in-memory candidate scoring
// since Stage 1 runs over an already-fetched candidate set rather than an
// index.
func prefilter(queryEmbedding []float32, docs []Document, threshold float64, topN int) []scoredDoc {
	out := make([]scoredDoc, 0, len(docs))
	for _, d := range docs {
		score := cosineSimilarity(queryEmbedding, d.Embedding)
		if score < threshold {
			continue
		}
		out = append(out, scoredDoc{doc: d, score: score})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
