package embedding

import (
	"context"
	"sync"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// reliability is a rolling success/failure counter used by
// StrategyReliabilityBased, translated from the original's
// `ProviderHealthChecker` — the original's own implementation was a stub
// that only ever checked current availability, so this extends it with the
// historical tracking the original's doc comment describes as the intended
// "full implementation" ("this would track historical reliability").
type reliability struct {
	mu       sync.Mutex
	attempts int
	failures int
}

func (r *reliability) recordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
}

func (r *reliability) recordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	r.failures++
}

// score returns the observed success rate, defaulting to 1.0 (optimistic)
// for a provider that's never been tried.
func (r *reliability) score() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempts == 0 {
		return 1.0
	}
	return 1.0 - float64(r.failures)/float64(r.attempts)
}

// Pipeline composes a primary Provider with ordered fallbacks under a
// Strategy (§4.8), translated from the original's `HybridEmbeddingPipeline`.
type Pipeline struct {
	primary     Provider
	fallbacks   []Provider
	strategy    Strategy
	reliability map[Provider]*reliability
}

// NewPipeline builds a Pipeline around a primary provider.
func NewPipeline(primary Provider, strategy Strategy) *Pipeline {
	p := &Pipeline{
		primary:     primary,
		strategy:    strategy,
		reliability: map[Provider]*reliability{primary: {}},
	}
	return p
}

// AddFallback appends an ordered fallback provider and returns the
// pipeline for chaining, mirroring the original's builder-style
// `add_fallback`.
func (p *Pipeline) AddFallback(provider Provider) *Pipeline {
	p.fallbacks = append(p.fallbacks, provider)
	p.reliability[provider] = &reliability{}
	return p
}

// ModelName identifies the pipeline itself, not the currently selected
// provider, matching the original's `provider_name() -> "HybridPipeline"`.
func (p *Pipeline) ModelName() string { return "hybrid_pipeline" }

// Dimensions returns the primary provider's declared dimension (§4.8
// "the active dimension is taken from the provider's declared dimension").
func (p *Pipeline) Dimensions() int { return p.primary.Dimensions() }

// Available reports whether any provider in the chain is reachable.
func (p *Pipeline) Available(ctx context.Context) bool {
	if p.primary.Available(ctx) {
		return true
	}
	for _, f := range p.fallbacks {
		if f.Available(ctx) {
			return true
		}
	}
	return false
}

// Embed embeds a single text via the selected provider, falling back
// through the chain on error.
func (p *Pipeline) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch selects a provider per the configured Strategy and embeds the
// whole batch with it, falling back through the remaining chain in order
// on error (§4.8 "On provider failure, the next is attempted per
// strategy").
func (p *Pipeline) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	selected := p.selectProvider(ctx)

	vectors, err := selected.EmbedBatch(ctx, texts)
	if err == nil {
		p.reliability[selected].recordSuccess()
		return vectors, nil
	}
	p.reliability[selected].recordFailure()

	for _, candidate := range p.orderedCandidates() {
		if candidate == selected {
			continue
		}
		vectors, fbErr := candidate.EmbedBatch(ctx, texts)
		if fbErr == nil {
			p.reliability[candidate].recordSuccess()
			return vectors, nil
		}
		p.reliability[candidate].recordFailure()
	}

	return nil, core.Wrap(core.KindProvider, "all embedding providers failed", err)
}

func (p *Pipeline) orderedCandidates() []Provider {
	out := make([]Provider, 0, len(p.fallbacks)+1)
	out = append(out, p.primary)
	out = append(out, p.fallbacks...)
	return out
}

func (p *Pipeline) selectProvider(ctx context.Context) Provider {
	switch p.strategy {
	case StrategySequential:
		for _, candidate := range p.orderedCandidates() {
			if candidate.Available(ctx) {
				return candidate
			}
		}
		return p.primary

	case StrategyFastestFirst:
		best := p.primary
		bestThroughput := throughputOf(p.primary)
		if !p.primary.Available(ctx) {
			bestThroughput = -1
		}
		for _, candidate := range p.fallbacks {
			if !candidate.Available(ctx) {
				continue
			}
			if t := throughputOf(candidate); t > bestThroughput {
				best = candidate
				bestThroughput = t
			}
		}
		return best

	case StrategyReliabilityBased:
		best := p.primary
		bestScore := -1.0
		for _, candidate := range p.orderedCandidates() {
			if !candidate.Available(ctx) {
				continue
			}
			if s := p.reliability[candidate].score(); s > bestScore {
				best = candidate
				bestScore = s
			}
		}
		return best

	default: // StrategyNone
		return p.primary
	}
}

func throughputOf(p Provider) float64 {
	if cp, ok := p.(CharacterizedProvider); ok {
		return cp.Characteristics().ExpectedThroughput
	}
	return 0
}

// EnsureDimension re-embeds every node whose existing embedding's length
// doesn't match the provider's currently declared dimension (§4.8
// "dimension discovery... if the caller already has embeddings of a
// different dimension they are re-embedded").
func EnsureDimension(ctx context.Context, provider Provider, texts []string, existing [][]float32) ([][]float32, error) {
	dim := provider.Dimensions()
	stale := make([]int, 0)
	out := make([][]float32, len(texts))
	copy(out, existing)

	for i := range texts {
		if i >= len(existing) || len(existing[i]) != dim {
			stale = append(stale, i)
		}
	}
	if len(stale) == 0 {
		return out, nil
	}

	staleTexts := make([]string, len(stale))
	for i, idx := range stale {
		staleTexts[i] = texts[idx]
	}

	reembedded, err := provider.EmbedBatch(ctx, staleTexts)
	if err != nil {
		return nil, core.Wrap(core.KindProvider, "re-embed on dimension change failed", err)
	}
	for i, idx := range stale {
		out[idx] = reembedded[i]
	}
	return out, nil
}
