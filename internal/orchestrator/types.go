package orchestrator

import (
	"time"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// IndexerConfig parameterizes a full index run (§6 "index(root_path,
// IndexerConfig) → IndexStats").
type IndexerConfig struct {
	IncludeGlobs      []string
	ExcludeGlobs      []string
	MaxFileSize       int64
	ParseConcurrency  int
	EmbedBatchSize    int
}

// IndexStats reports what a run did (§6 exact field list).
type IndexStats struct {
	FilesScanned int
	ParsedFiles  int
	FailedFiles  int
	NodesAdded   int
	EdgesAdded   int
	Symbols      int
	ParseSeconds float64
}

// SearchLimits is the caller-supplied half of a search request; the
// Orchestrator resolves the effective limit and over-retrieve factors from
// Tier before calling C10/C11.
type SearchLimits struct {
	Limit int
	Tier  ContextTier
}

// SearchRequest is §6's SearchRequest.
type SearchRequest struct {
	Query   string
	Project core.Project
	Limits  SearchLimits
	Mode    string // reserved for a future vector/lexical/hybrid-only override; "" = hybrid
}

// RankedResult is one entry of a SearchResponse's results list.
type RankedResult struct {
	NodeID       core.NodeId
	Score        float64
	MatchSources []string
}

// SearchTimings is §6's SearchResponse.timings.
type SearchTimings struct {
	EmbeddingMs float64
	SearchMs    float64
	RerankMs    float64
}

// RankedResults is §6's SearchResponse.
type RankedResults struct {
	Results []RankedResult
	Timings SearchTimings
	Insights string
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
