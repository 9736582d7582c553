package orchestrator

import (
	"context"
	"os"
	"time"

	"github.com/codegraph-dev/codegraph/internal/analyzer"
	"github.com/codegraph-dev/codegraph/internal/arena"
	"github.com/codegraph-dev/codegraph/internal/chunker"
	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/extract"
	"github.com/codegraph-dev/codegraph/internal/symbols"
	"github.com/codegraph-dev/codegraph/internal/walker"
)

// mmapThreshold is the file size above which Index reads a file through a
// read-only memory map (with a sequential-access advice hint) instead of
// os.ReadFile, avoiding a full heap copy for large source files (§C.1).
// Below this size the mmap/munmap syscall overhead outweighs the copy cost.
const mmapThreshold = 256 * 1024

// readFileContent returns a file's bytes, using a memory map for files at
// or above mmapThreshold and a plain read otherwise. The returned closer
// must be called once the caller is done with the returned slice; for the
// plain-read path it is a no-op.
func readFileContent(path string, size int64) ([]byte, func(), error) {
	if size < mmapThreshold {
		content, err := os.ReadFile(path)
		return content, func() {}, err
	}

	mapped, err := arena.OpenMapped(path)
	if err != nil {
		content, readErr := os.ReadFile(path)
		return content, func() {}, readErr
	}
	mapped.Advise(arena.AdviceSequential)
	return mapped.Bytes(), func() { _ = mapped.Close() }, nil
}

// DefaultEmbedBatchSize caps how many chunk texts go into a single
// EmbedBatch call during an index run.
const DefaultEmbedBatchSize = 64

// DefaultMaxTokensPerChunk mirrors the chunker's own tuned default (§4.7).
const DefaultMaxTokensPerChunk = chunker.DefaultMaxChunkTokens

// Index runs the full write pipeline (§6 "index(root_path, IndexerConfig)
// → IndexStats"): walk → extract → derived analyzers → symbol resolution →
// chunk → embed → upsert (C3 through C9).
func (o *Orchestrator) Index(ctx context.Context, project core.Project, root string, cfg IndexerConfig) (IndexStats, error) {
	start := time.Now()
	var stats IndexStats

	entries, err := walker.Walk(walker.Options{
		RootDir:      root,
		IncludeGlobs: cfg.IncludeGlobs,
		ExcludeGlobs: cfg.ExcludeGlobs,
		MaxFileSize:  cfg.MaxFileSize,
	})
	if err != nil {
		return stats, core.Wrap(core.KindInternal, "walk project root", err)
	}
	stats.FilesScanned = len(entries)

	files := make([]extract.FileInput, 0, len(entries))
	var closers []func()
	for _, e := range entries {
		if !e.IsCode {
			continue
		}
		content, closer, readErr := readFileContent(e.AbsPath, e.Size)
		if readErr != nil {
			stats.FailedFiles++
			continue
		}
		closers = append(closers, closer)
		files = append(files, extract.FileInput{Path: e.Path, Content: content, Language: e.Language})
	}

	results := extract.ExtractAll(ctx, string(project), files, cfg.ParseConcurrency)
	for _, closer := range closers {
		closer()
	}

	var nodes []core.Node
	var edges []core.Edge
	for _, r := range results {
		if r.Err != nil {
			stats.FailedFiles++
			continue
		}
		stats.ParsedFiles++
		nodes = append(nodes, r.Nodes...)
		edges = append(edges, r.Edges...)
	}

	analyzer.EnrichDataflow(string(project), &nodes, &edges)
	analyzer.AnalyzeArchitecture(root, nodes, &edges)
	analyzer.LinkDocsAndContracts(root, string(project), &nodes, &edges)

	symIndex := symbols.NewIndex(nodes)
	symIndex.ResolveEdges(edges)
	stats.Symbols = symIndex.Len()

	if err := o.embedNodes(ctx, nodes, cfg); err != nil {
		return stats, err
	}

	if err := o.storage.UpsertNodes(ctx, project, nodes); err != nil {
		return stats, core.Wrap(core.KindStorage, "upsert nodes", err)
	}
	added, err := o.storage.UpsertEdges(ctx, project, edges)
	if err != nil {
		return stats, core.Wrap(core.KindStorage, "upsert edges", err)
	}

	stats.NodesAdded = len(nodes)
	stats.EdgesAdded = added
	stats.ParseSeconds = time.Since(start).Seconds()
	return stats, nil
}

// embedNodes runs the Chunker (C7) over nodes, embeds every chunk in
// bounded batches through the Embedding Batcher (C8), and aggregates chunk
// vectors back into one embedding per node by element-wise mean (§4.7),
// mutating nodes in place.
func (o *Orchestrator) embedNodes(ctx context.Context, nodes []core.Node, cfg IndexerConfig) error {
	if o.embedder == nil || len(nodes) == 0 {
		return nil
	}

	plan := chunker.BuildPlan(nodes, chunker.CharApproxTokenCounter, chunker.DefaultConfig(DefaultMaxTokensPerChunk))
	if len(plan.Chunks) == 0 {
		return nil
	}

	batchSize := cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}

	chunkEmbeddings := make([][]float32, 0, len(plan.Chunks))
	for start := 0; start < len(plan.Chunks); start += batchSize {
		end := start + batchSize
		if end > len(plan.Chunks) {
			end = len(plan.Chunks)
		}
		vectors, err := o.embedder.EmbedBatch(ctx, plan.Chunks[start:end])
		if err != nil {
			return core.Wrap(core.KindProvider, "embed chunk batch", err)
		}
		chunkEmbeddings = append(chunkEmbeddings, vectors...)
	}

	chunkToNode := plan.ChunkToNode()
	hasChunks := make(map[int]bool, len(chunkToNode))
	for _, nodeIdx := range chunkToNode {
		hasChunks[nodeIdx] = true
	}

	nodeEmbeddings := chunker.AggregateChunkEmbeddings(len(nodes), chunkToNode, chunkEmbeddings, o.embedder.Dimensions())
	for i := range nodes {
		if hasChunks[i] && i < len(nodeEmbeddings) {
			nodes[i].Embedding = nodeEmbeddings[i]
		}
	}
	return nil
}
