package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/orchestrator"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

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

func newTestServer(t *testing.T) (*Server, *storage.Engine, core.Project) {
	t.Helper()
	root := t.TempDir()
	engine := storage.NewEngine("")
	o := orchestrator.New(engine, stubEmbedder{dim: 4}, nil)
	project := core.Project("proj")

	srv, err := NewServer(o, project, root)
	require.NoError(t, err)
	return srv, engine, project
}

func seedNode(t *testing.T, engine *storage.Engine, project core.Project, name, content string, embedding []float32) core.Node {
	t.Helper()
	nodeType := core.NodeTypeFunction
	lang := core.LangGo
	n := core.NewNode(string(project), name, &nodeType, &lang, core.Location{FilePath: "a.go", Line: 1})
	n.Content = content
	n.Embedding = embedding
	n.Metadata.QualifiedName = "a.go::" + name

	require.NoError(t, engine.UpsertNodes(context.Background(), project, []core.Node{n}))
	return n
}

func TestNewServerRejectsNilOrchestrator(t *testing.T) {
	_, err := NewServer(nil, core.Project("proj"), t.TempDir())
	assert.Error(t, err)
}

func TestServerInfoAndCapabilities(t *testing.T) {
	srv, _, _ := newTestServer(t)

	name, ver := srv.Info()
	assert.Equal(t, "CodeGraph", name)
	assert.NotEmpty(t, ver)

	tools, resources := srv.Capabilities()
	assert.True(t, tools)
	assert.True(t, resources)
}

func TestServerListTools(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tools := srv.ListTools()
	names := make([]string, len(tools))
	for i, tl := range tools {
		names[i] = tl.Name
	}
	assert.Contains(t, names, "search")
	assert.Contains(t, names, "analyze")
	assert.Contains(t, names, "index_status")
}

func TestCallToolSearchReturnsMarkdown(t *testing.T) {
	srv, engine, project := newTestServer(t)
	seedNode(t, engine, project, "LookupUser", "func LookupUser(id int) User { return db.find(id) }", []float32{1, 0, 0, 0})

	result, err := srv.CallTool(context.Background(), "search", map[string]any{"query": "LookupUser"})
	require.NoError(t, err)

	md, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, md, "LookupUser")
}

func TestCallToolSearchRejectsEmptyQuery(t *testing.T) {
	srv, _, _ := newTestServer(t)

	_, err := srv.CallTool(context.Background(), "search", map[string]any{"query": "   "})
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestCallToolUnknownToolReturnsMethodNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	_, err := srv.CallTool(context.Background(), "nonexistent", nil)
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestCallToolIndexStatusReportsRecordedStats(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.RecordIndexStats(orchestrator.IndexStats{FilesScanned: 3, ParsedFiles: 3, NodesAdded: 7})

	result, err := srv.CallTool(context.Background(), "index_status", nil)
	require.NoError(t, err)

	out, ok := result.(*IndexStatusOutput)
	require.True(t, ok)
	assert.Equal(t, 3, out.Stats.FilesScanned)
	assert.Equal(t, 7, out.Stats.NodesAdded)
}

func TestCallToolAnalyzeDispatchesToGraphService(t *testing.T) {
	srv, engine, project := newTestServer(t)

	caller := seedNode(t, engine, project, "Caller", "", nil)
	callee := seedNode(t, engine, project, "Callee", "", nil)
	edge := core.Edge{From: caller.ID, To: core.ResolvedTarget(callee.ID), EdgeType: core.EdgeCalls}
	_, err := engine.UpsertEdges(context.Background(), project, []core.Edge{edge})
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "analyze", map[string]any{
		"tool": "transitive_dependencies",
		"params": map[string]any{
			"node_id": caller.ID.String(),
			"depth":   float64(2),
		},
	})
	require.NoError(t, err)

	out, ok := result.(*AnalyzeOutput)
	require.True(t, ok)
	assert.Equal(t, "transitive_dependencies", out.Tool)
}

func TestServeRejectsUnknownTransport(t *testing.T) {
	srv, _, _ := newTestServer(t)
	err := srv.Serve(context.Background(), "carrier-pigeon", "")
	assert.Error(t, err)
}

func TestRegisterResourcesWalksProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0644))

	engine := storage.NewEngine("")
	o := orchestrator.New(engine, stubEmbedder{dim: 4}, nil)
	srv, err := NewServer(o, core.Project("proj"), root)
	require.NoError(t, err)

	require.NoError(t, srv.RegisterResources(context.Background()))
}
