package analyzer

import (
	"testing"

	"github.com/codegraph-dev/codegraph/internal/core"
)

func demoFunctionNode() core.Node {
	lang := core.LangRust
	nt := core.NodeTypeFunction
	n := core.NewNode("project", "demo", &nt, &lang, core.Location{FilePath: "src/lib.rs", Line: 10})
	n.Content = "fn demo() {\n  let a = 1;\n  let b = a;\n  a = 2;\n  return b;\n}\n"
	n.Metadata.QualifiedName = "crate::demo"
	return n
}

func TestEnrichDataflowEmitsDefUseAndPropagationEdges(t *testing.T) {
	nodes := []core.Node{demoFunctionNode()}
	var edges []core.Edge

	stats := EnrichDataflow("project", &nodes, &edges)

	if stats.VariableNodesAdded != 2 {
		t.Fatalf("expected 2 variable nodes, got %d", stats.VariableNodesAdded)
	}
	if stats.DefinesEdgesAdded != 2 {
		t.Fatalf("expected 2 defines edges, got %d", stats.DefinesEdgesAdded)
	}

	hasType := func(et core.EdgeType) bool {
		for _, e := range edges {
			if e.EdgeType.Equal(et) {
				return true
			}
		}
		return false
	}
	if !hasType(core.EdgeDefines) {
		t.Fatalf("expected a defines edge")
	}
	if !hasType(core.EdgeFlowsTo) {
		t.Fatalf("expected a flows_to edge")
	}
	if !hasType(core.EdgeMutates) {
		t.Fatalf("expected a mutates edge")
	}
	if !hasType(core.EdgeReturns) {
		t.Fatalf("expected a returns edge")
	}
}

func TestEnrichDataflowSkipsFunctionsWithoutBody(t *testing.T) {
	lang := core.LangGo
	nt := core.NodeTypeFunction
	n := core.NewNode("project", "noop", &nt, &lang, core.Location{FilePath: "f.go", Line: 1})
	nodes := []core.Node{n}
	var edges []core.Edge

	stats := EnrichDataflow("project", &nodes, &edges)
	if stats.VariableNodesAdded != 0 || len(edges) != 0 {
		t.Fatalf("expected no enrichment for a function with no content, got %+v", stats)
	}
}
