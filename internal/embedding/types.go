// Package embedding implements the Embedding Batcher (C8): a
// provider-agnostic embed(batch) -> []vector contract, bounded-concurrency
// batching with retries/timeouts, and a hybrid pipeline that composes a
// primary provider with ordered fallbacks under a configurable strategy.
package embedding

import (
	"context"
	"time"
)

// Provider is the uniform embedding contract every backend implements
// (Ollama, a local static/hash embedder, or anything else) — generalized
// from the teacher's `embed.Embedder` interface to the spec's narrower
// §4.8 contract, dropping the teacher's thermal-progression hooks
// (`SetBatchIndex`/`SetFinalBatch`) since those are an Ollama-specific
// concern the hybrid pipeline's retry/backoff already generalizes.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
}

// Characteristics describes a provider's declared performance profile,
// used by the hybrid pipeline's FastestFirst strategy (§4.8).
type Characteristics struct {
	ExpectedThroughput float64 // texts per second
	TypicalLatency     time.Duration
	MaxBatchSize       int
}

// CharacterizedProvider is implemented by providers that can report their
// own Characteristics; providers that don't are treated as having zero
// expected throughput (never preferred by FastestFirst over one that does).
type CharacterizedProvider interface {
	Provider
	Characteristics() Characteristics
}

// Metrics reports what a batch embed call did (§4.8): texts_processed,
// duration, throughput, avg_latency, provider_name.
type Metrics struct {
	TextsProcessed int
	Duration       time.Duration
	Throughput     float64 // texts per second
	AvgLatency     time.Duration
	ProviderName   string
}

// NewMetrics computes Throughput/AvgLatency from the raw counts, mirroring
// the original's `EmbeddingMetrics::new`.
func NewMetrics(providerName string, textsProcessed int, duration time.Duration) Metrics {
	var throughput float64
	if duration > 0 {
		throughput = float64(textsProcessed) / duration.Seconds()
	}
	var avgLatency time.Duration
	if textsProcessed > 0 {
		avgLatency = duration / time.Duration(textsProcessed)
	}
	return Metrics{
		TextsProcessed: textsProcessed,
		Duration:       duration,
		Throughput:     throughput,
		AvgLatency:     avgLatency,
		ProviderName:   providerName,
	}
}
