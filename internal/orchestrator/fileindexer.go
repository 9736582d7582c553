package orchestrator

import (
	"context"
	"os"
	"path/filepath"

	"github.com/codegraph-dev/codegraph/internal/analyzer"
	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/extract"
	"github.com/codegraph-dev/codegraph/internal/symbols"
	"github.com/codegraph-dev/codegraph/internal/walker"
)

// FileIndexer adapts an Orchestrator to the Watch Daemon's watch.Indexer
// interface (§4.13 "re-indexing uses the normal write pipeline and is
// idempotent"): single-file re-extraction and deletion scoped to one
// project root, reusing the same extract → analyze → resolve → embed →
// upsert sequence Index runs over the whole tree.
type FileIndexer struct {
	orchestrator *Orchestrator
	project      core.Project
	root         string
	cfg          IndexerConfig
}

// NewFileIndexer builds a FileIndexer rooted at root for project, used by
// the Watch Daemon to replay debounced batches.
func NewFileIndexer(o *Orchestrator, project core.Project, root string, cfg IndexerConfig) *FileIndexer {
	return &FileIndexer{orchestrator: o, project: project, root: root, cfg: cfg}
}

// ReindexFile re-extracts one file and upserts its nodes/edges. It first
// deletes the file's existing derived data so a changed file never leaves
// behind stale nodes from a prior version with fewer symbols.
func (fi *FileIndexer) ReindexFile(ctx context.Context, relPath string) error {
	content, err := os.ReadFile(filepath.Join(fi.root, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return fi.RemoveFile(ctx, relPath)
		}
		return core.Wrap(core.KindInternal, "read file for reindex", err)
	}

	if err := fi.orchestrator.storage.DeleteNodesByFile(ctx, fi.project, relPath); err != nil {
		return core.Wrap(core.KindStorage, "delete stale nodes before reindex", err)
	}

	results := extract.ExtractAll(ctx, string(fi.project), []extract.FileInput{{
		Path:     relPath,
		Content:  content,
		Language: walker.DetectLanguage(relPath),
	}}, 1)
	if len(results) == 0 || results[0].Err != nil {
		if len(results) > 0 {
			return core.Wrap(core.KindParse, "reindex file", results[0].Err)
		}
		return nil
	}

	nodes := results[0].Nodes
	edges := results[0].Edges

	analyzer.EnrichDataflow(string(fi.project), &nodes, &edges)

	symIndex := symbols.NewIndex(nodes)
	symIndex.ResolveEdges(edges)

	if err := fi.orchestrator.embedNodes(ctx, nodes, fi.cfg); err != nil {
		return err
	}

	if err := fi.orchestrator.storage.UpsertNodes(ctx, fi.project, nodes); err != nil {
		return core.Wrap(core.KindStorage, "upsert reindexed nodes", err)
	}
	if _, err := fi.orchestrator.storage.UpsertEdges(ctx, fi.project, edges); err != nil {
		return core.Wrap(core.KindStorage, "upsert reindexed edges", err)
	}
	return nil
}

// RemoveFile deletes a file's derived nodes and incident edges (§4.13
// "delete its derived data").
func (fi *FileIndexer) RemoveFile(ctx context.Context, relPath string) error {
	if err := fi.orchestrator.storage.DeleteNodesByFile(ctx, fi.project, relPath); err != nil {
		return core.Wrap(core.KindStorage, "delete nodes by file", err)
	}
	return nil
}
