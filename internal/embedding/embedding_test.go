package embedding

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProvider struct {
	name      string
	dim       int
	fail      bool
	available bool
	calls     int
	chars     Characteristics
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		for j := range v {
			v[j] = 1.0
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeProvider) Dimensions() int                      { return f.dim }
func (f *fakeProvider) ModelName() string                    { return f.name }
func (f *fakeProvider) Available(ctx context.Context) bool   { return f.available }
func (f *fakeProvider) Characteristics() Characteristics     { return f.chars }

func TestBatcherEmbedAllPreservesOrderAcrossBatches(t *testing.T) {
	p := &fakeProvider{name: "fake", dim: 4, available: true}
	b := NewBatcher(p, BatcherConfig{BatchSize: 2, MaxConcurrent: 2, Timeout: time.Second, MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	texts := []string{"a", "b", "c", "d", "e"}
	vectors, metrics, err := b.EmbedAll(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	if metrics.TextsProcessed != len(texts) {
		t.Fatalf("expected metrics to report %d texts, got %d", len(texts), metrics.TextsProcessed)
	}
	if metrics.ProviderName != "fake" {
		t.Fatalf("expected provider name fake, got %s", metrics.ProviderName)
	}
}

func TestBatcherEmbedAllEmptyInput(t *testing.T) {
	p := &fakeProvider{name: "fake", dim: 4, available: true}
	b := NewBatcher(p, DefaultBatcherConfig())
	vectors, metrics, err := b.EmbedAll(context.Background(), nil)
	if err != nil || vectors != nil || metrics.TextsProcessed != 0 {
		t.Fatalf("expected no-op for empty input, got %+v %+v %v", vectors, metrics, err)
	}
}

func TestBatcherRetriesThenFailsSurfacesProviderError(t *testing.T) {
	p := &fakeProvider{name: "fake", dim: 4, fail: true, available: true}
	b := NewBatcher(p, BatcherConfig{BatchSize: 10, MaxConcurrent: 1, Timeout: time.Second, MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	_, _, err := b.EmbedAll(context.Background(), []string{"x"})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if p.calls < 2 {
		t.Fatalf("expected at least one retry, got %d calls", p.calls)
	}
}

func TestPipelineSequentialFallsBackWhenPrimaryUnavailable(t *testing.T) {
	primary := &fakeProvider{name: "primary", dim: 4, available: false}
	fallback := &fakeProvider{name: "fallback", dim: 4, available: true}

	pipeline := NewPipeline(primary, StrategySequential).AddFallback(fallback)
	vectors, err := pipeline.EmbedBatch(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vectors))
	}
	if fallback.calls != 1 {
		t.Fatalf("expected fallback to be used, got %d calls", fallback.calls)
	}
}

func TestPipelineFastestFirstPicksHigherThroughput(t *testing.T) {
	primary := &fakeProvider{name: "primary", dim: 4, available: true, chars: Characteristics{ExpectedThroughput: 10}}
	fallback := &fakeProvider{name: "fallback", dim: 4, available: true, chars: Characteristics{ExpectedThroughput: 100}}

	pipeline := NewPipeline(primary, StrategyFastestFirst).AddFallback(fallback)
	_, err := pipeline.EmbedBatch(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fallback.calls != 1 || primary.calls != 0 {
		t.Fatalf("expected fastest (fallback) provider to be used, primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestPipelineFallsThroughAllOnError(t *testing.T) {
	primary := &fakeProvider{name: "primary", dim: 4, available: true, fail: true}
	fallback := &fakeProvider{name: "fallback", dim: 4, available: true, fail: true}

	pipeline := NewPipeline(primary, StrategyNone).AddFallback(fallback)
	_, err := pipeline.EmbedBatch(context.Background(), []string{"x"})
	if err == nil {
		t.Fatalf("expected error when every provider fails")
	}
}

func TestEnsureDimensionReembedsOnlyStaleVectors(t *testing.T) {
	p := &fakeProvider{name: "fake", dim: 4, available: true}
	existing := [][]float32{{1, 1, 1}, {1, 1, 1, 1}}
	texts := []string{"stale", "fresh"}

	out, err := EnsureDimension(context.Background(), p, texts, existing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out[0]) != 4 {
		t.Fatalf("expected stale vector to be re-embedded to dim 4, got %d", len(out[0]))
	}
	if p.calls != 1 {
		t.Fatalf("expected exactly one re-embed call, got %d", p.calls)
	}
}
