package embedding

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/errors"
)

// BatcherConfig configures bounded-concurrency batch embedding (§4.8).
type BatcherConfig struct {
	BatchSize     int
	MaxConcurrent int
	Timeout       time.Duration
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
}

// DefaultBatcherConfig mirrors the original's `BatchConfig::default` sizing
// with the spec's own retry backoff (§4.8: base 200ms, jittered, cap ≤ 6
// retries) in place of the original's untimed 3-retry default.
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		BatchSize:     32,
		MaxConcurrent: 4,
		Timeout:       30 * time.Second,
		MaxRetries:    6,
		BaseDelay:     200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
	}
}

// Batcher drives a single Provider with bounded-concurrency batch requests,
// per-request size limits, and exponential-backoff retries.
type Batcher struct {
	provider Provider
	cfg      BatcherConfig
}

// NewBatcher builds a Batcher over a provider with the given config,
// falling back to DefaultBatcherConfig's zero-value fields.
func NewBatcher(provider Provider, cfg BatcherConfig) *Batcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatcherConfig().BatchSize
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultBatcherConfig().MaxConcurrent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBatcherConfig().Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultBatcherConfig().MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBatcherConfig().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultBatcherConfig().MaxDelay
	}
	return &Batcher{provider: provider, cfg: cfg}
}

// EmbedAll splits texts into BatchSize-sized requests, runs up to
// MaxConcurrent of them at once (via errgroup, per the ambient stack's
// fan-out/fan-in convention), retries each batch with jittered exponential
// backoff, and returns one vector per input text in input order alongside
// the aggregate Metrics for the whole call.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) ([][]float32, Metrics, error) {
	start := time.Now()
	if len(texts) == 0 {
		return nil, NewMetrics(b.provider.ModelName(), 0, 0), nil
	}

	type batchRange struct{ start, end int }
	var ranges []batchRange
	for i := 0; i < len(texts); i += b.cfg.BatchSize {
		end := i + b.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		ranges = append(ranges, batchRange{i, end})
	}

	results := make([][][]float32, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.MaxConcurrent)

	for i, r := range ranges {
		i, r := i, r
		g.Go(func() error {
			batch := texts[r.start:r.end]
			retryCfg := errors.RetryConfig{
				MaxRetries:   b.cfg.MaxRetries,
				InitialDelay: b.cfg.BaseDelay,
				MaxDelay:     b.cfg.MaxDelay,
				Multiplier:   2.0,
				Jitter:       true,
			}
			vectors, err := errors.RetryWithResult(gctx, retryCfg, func() ([][]float32, error) {
				callCtx, cancel := context.WithTimeout(gctx, b.cfg.Timeout)
				defer cancel()
				return b.provider.EmbedBatch(callCtx, batch)
			})
			if err != nil {
				return core.Wrap(core.KindProvider, "embed batch failed", err)
			}
			results[i] = vectors
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, Metrics{}, err
	}

	out := make([][]float32, 0, len(texts))
	for _, r := range results {
		out = append(out, r...)
	}

	return out, NewMetrics(b.provider.ModelName(), len(texts), time.Since(start)), nil
}
