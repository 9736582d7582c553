package rerank

import (
	"time"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// Document is one candidate handed to the pipeline: the text and embedding
// the stages score against, plus the preliminary fusion score the Hybrid
// Retriever already computed (§4.10), carried through as the pre-rerank
// baseline when a stage is disabled.
type Document struct {
	NodeID           core.NodeId
	Content          string
	Embedding        []float32
	PreliminaryScore float64
}

// Result is one final ranked document, with its score normalized to [0,1]
// (§4.11 "Final scores are normalized to [0,1]").
type Result struct {
	NodeID core.NodeId
	Score  float64
}

// StageTimings reports per-stage latency (§4.11 "Timings per stage are
// reported in the response").
type StageTimings struct {
	Prefilter    time.Duration
	CrossEncoder time.Duration
	Insights     time.Duration
}

// Response is the full pipeline output.
type Response struct {
	Results  []Result
	Insights string
	Timings  StageTimings

	// BytesSavedRatio is bytes_saved / bytes_before, clamped to [0,1] — the
	// resolution of the Open Question around the original's scale-dependent
	// `compression_efficiency` metric (see DESIGN.md).
	BytesSavedRatio float64
}

// InsightMode selects Stage 3's behavior (§4.11).
type InsightMode string

const (
	// InsightModeOff skips Stage 3 entirely.
	InsightModeOff InsightMode = "off"
	// InsightModeContextOnly concatenates candidate snippets into a bounded
	// context string with no LLM call.
	InsightModeContextOnly InsightMode = "context_only"
	// InsightModeBalanced calls the LLM over the top-k candidates only.
	InsightModeBalanced InsightMode = "balanced"
	// InsightModeDeep calls the LLM over every reranked candidate.
	InsightModeDeep InsightMode = "deep"
)

// Config toggles and parameterizes each of the three stages. Per
// SPEC_FULL.md's supplemented §C.7, these are meant to be parameterized per
// context tier rather than fixed globally — callers (C14) select a Config
// per tier instead of this package owning tier policy.
type Config struct {
	// Stage 1
	PrefilterEnabled   bool
	EmbeddingThreshold float64
	PrefilterTopN      int

	// Stage 2
	CrossEncoderEnabled bool
	CrossEncoderTopN    int

	// Stage 3
	Insights     InsightMode
	InsightTopK  int
	ContextBytes int
}
