package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/codegraph-dev/codegraph/internal/cache"
	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

// stubEmbedder is a deterministic, dependency-free stand-in for the
// Embedding Batcher (C8) in tests: every text maps to the same fixed-length
// vector derived from its length, never touching the network.
type stubEmbedder struct{ dim int }

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, s.dim)
	for i := range v {
		v[i] = float32(len(text)%7) + float32(i)*0.01
	}
	return v, nil
}

func (s stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := s.Embed(context.Background(), t)
		out[i] = v
	}
	return out, nil
}

func (s stubEmbedder) Dimensions() int { return s.dim }

func (s stubEmbedder) ModelName() string { return "stub-embedder" }

func newTestOrchestrator(t *testing.T) (*Orchestrator, *storage.Engine) {
	t.Helper()
	engine := storage.NewEngine("")
	o := New(engine, stubEmbedder{dim: 4}, nil)
	return o, engine
}

func TestIndexWalksExtractsAndUpsertsAGoFile(t *testing.T) {
	root := t.TempDir()
	src := "package sample\n\nfunc Greet(name string) string {\n\treturn \"hello \" + name\n}\n"
	if err := os.WriteFile(filepath.Join(root, "sample.go"), []byte(src), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	o, engine := newTestOrchestrator(t)
	project := core.Project("proj")

	stats, err := o.Index(context.Background(), project, root, IndexerConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.FilesScanned != 1 {
		t.Fatalf("expected 1 file scanned, got %d", stats.FilesScanned)
	}
	if stats.ParsedFiles != 1 {
		t.Fatalf("expected 1 parsed file, got %d", stats.ParsedFiles)
	}
	if stats.NodesAdded == 0 {
		t.Fatalf("expected at least one node added")
	}

	if _, ok, err := engine.ResolveSymbol(project, "Greet"); err != nil || !ok {
		t.Fatalf("expected Greet to be indexed and resolvable, ok=%v err=%v", ok, err)
	}
}

func TestSearchReturnsResultsWithoutReranker(t *testing.T) {
	o, engine := newTestOrchestrator(t)
	project := core.Project("proj")
	ctx := context.Background()

	nodeType := core.NodeTypeFunction
	lang := core.LangGo
	n := core.NewNode(string(project), "LookupUser", &nodeType, &lang, core.Location{FilePath: "a.go", Line: 1})
	n.Content = "func LookupUser(id int) User { return db.find(id) }"
	n.Embedding = []float32{1, 0, 0, 0}
	n.Metadata.QualifiedName = "a.go::LookupUser"

	if err := engine.UpsertNodes(ctx, project, []core.Node{n}); err != nil {
		t.Fatalf("seed node: %v", err)
	}

	results, err := o.Search(ctx, SearchRequest{
		Query:   "LookupUser",
		Project: project,
		Limits:  SearchLimits{Limit: 5, Tier: TierSmall},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results.Results) == 0 {
		t.Fatalf("expected at least one ranked result")
	}
}

func TestAnalyzeDispatchesToGraphService(t *testing.T) {
	o, engine := newTestOrchestrator(t)
	project := core.Project("proj")
	ctx := context.Background()

	nodeType := core.NodeTypeFunction
	lang := core.LangGo
	caller := core.NewNode(string(project), "Caller", &nodeType, &lang, core.Location{FilePath: "a.go", Line: 1})
	callee := core.NewNode(string(project), "Callee", &nodeType, &lang, core.Location{FilePath: "a.go", Line: 5})
	if err := engine.UpsertNodes(ctx, project, []core.Node{caller, callee}); err != nil {
		t.Fatalf("seed nodes: %v", err)
	}
	edge := core.Edge{From: caller.ID, To: core.ResolvedTarget(callee.ID), EdgeType: core.EdgeCalls}
	if _, err := engine.UpsertEdges(ctx, project, []core.Edge{edge}); err != nil {
		t.Fatalf("seed edge: %v", err)
	}

	env, err := o.Analyze(project, "transitive_dependencies", map[string]any{
		"node_id": caller.ID.String(),
		"depth":   float64(2),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Tool != "transitive_dependencies" {
		t.Fatalf("expected tool name echoed back, got %q", env.Tool)
	}
}

func TestFileIndexerReindexAndRemove(t *testing.T) {
	root := t.TempDir()
	src := "package sample\n\nfunc Greet() string { return \"hi\" }\n"
	if err := os.WriteFile(filepath.Join(root, "sample.go"), []byte(src), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	o, engine := newTestOrchestrator(t)
	project := core.Project("proj")
	fi := NewFileIndexer(o, project, root, IndexerConfig{})
	ctx := context.Background()

	if err := fi.ReindexFile(ctx, "sample.go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	node, ok, err := engine.GetNode(project, findNodeByName(t, engine, project, "Greet"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || node.Name != "Greet" {
		t.Fatalf("expected Greet node to be indexed")
	}

	if err := fi.RemoveFile(ctx, "sample.go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := engine.GetNode(project, node.ID); ok {
		t.Fatalf("expected node to be removed")
	}
}

// countingEmbedder tracks how many times Embed is called, so a test can
// assert a cache hit skipped the embedder entirely.
type countingEmbedder struct {
	stubEmbedder
	calls *int
}

func (c countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	*c.calls++
	return c.stubEmbedder.Embed(ctx, text)
}

func TestEmbedQueryServesRepeatQueriesFromCache(t *testing.T) {
	calls := 0
	embedder := countingEmbedder{stubEmbedder: stubEmbedder{dim: 4}, calls: &calls}

	engine := storage.NewEngine("")
	o := New(engine, embedder, nil)

	c, err := cache.New(cache.Options{Capacity: 16})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	o.WithCache(c)

	ctx := context.Background()
	first, err := o.embedQuery(ctx, "LookupUser")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := o.embedQuery(ctx, "LookupUser")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected embedder invoked once, got %d calls", calls)
	}
	if len(first) != len(second) {
		t.Fatalf("expected cached embedding to match original length")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected cached embedding to match original values at %d", i)
		}
	}
}

func findNodeByName(t *testing.T, engine *storage.Engine, project core.Project, name string) core.NodeId {
	t.Helper()
	id, ok, err := engine.ResolveSymbol(project, name)
	if err != nil {
		t.Fatalf("resolve symbol: %v", err)
	}
	if !ok {
		t.Fatalf("expected to resolve symbol %q", name)
	}
	return id
}
