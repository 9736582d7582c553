package extract

import (
	"context"
	"testing"

	"github.com/codegraph-dev/codegraph/internal/core"
)

func TestExtractOneSimpleGoFunction(t *testing.T) {
	src := []byte("package main\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n")
	results := ExtractAll(context.Background(), "proj", []FileInput{{Path: "lib.go", Content: src, Language: "go"}}, 1)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}

	var fn *core.Node
	for i := range r.Nodes {
		if r.Nodes[i].Name == "add" {
			fn = &r.Nodes[i]
		}
	}
	if fn == nil {
		t.Fatalf("expected an add node, got %+v", r.Nodes)
	}
	if fn.NodeType == nil || !fn.NodeType.Equal(core.NodeTypeFunction) {
		t.Fatalf("expected add to be a Function node, got %+v", fn.NodeType)
	}
	if fn.Complexity == nil || *fn.Complexity != 1.0 {
		t.Fatalf("expected complexity 1.0 for a branch-free function, got %+v", fn.Complexity)
	}
}

func TestExtractComplexityCountsDecisionPoints(t *testing.T) {
	src := []byte(`package main

func classify(x int) string {
	if x > 0 {
		for i := 0; i < x; i++ {
			if i%2 == 0 {
				return "even"
			}
		}
	}
	return "other"
}
`)
	results := ExtractAll(context.Background(), "proj", []FileInput{{Path: "c.go", Content: src, Language: "go"}}, 1)
	r := results[0]
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	var fn *core.Node
	for i := range r.Nodes {
		if r.Nodes[i].Name == "classify" {
			fn = &r.Nodes[i]
		}
	}
	if fn == nil || fn.Complexity == nil {
		t.Fatalf("expected classify node with complexity, got %+v", r.Nodes)
	}
	if *fn.Complexity != 4.0 {
		t.Fatalf("expected complexity 4 (1 + if + for + if), got %v", *fn.Complexity)
	}
}

func TestExtractDeterministicIDsStableAcrossRuns(t *testing.T) {
	src := []byte("package main\n\nfunc add(a, b int) int { return a + b }\n")
	files := []FileInput{{Path: "lib.go", Content: src, Language: "go"}}

	r1 := ExtractAll(context.Background(), "proj", files, 1)[0]
	r2 := ExtractAll(context.Background(), "proj", files, 1)[0]

	if len(r1.Nodes) == 0 || len(r2.Nodes) == 0 {
		t.Fatalf("expected nodes to be extracted")
	}
	if r1.Nodes[0].ID.String() != r2.Nodes[0].ID.String() {
		t.Fatalf("expected deterministic ids to match across runs")
	}
}

func TestExtractUnsupportedLanguageReturnsError(t *testing.T) {
	results := ExtractAll(context.Background(), "proj", []FileInput{{Path: "f.cobol", Content: []byte("x"), Language: "cobol"}}, 1)
	if results[0].Err == nil {
		t.Fatalf("expected an error for an unsupported language")
	}
}

func TestExtractMalformedInputDoesNotPanic(t *testing.T) {
	src := []byte("func ((( this is not valid go {{{ at all")
	results := ExtractAll(context.Background(), "proj", []FileInput{{Path: "bad.go", Content: src, Language: "go"}}, 1)
	if len(results) != 1 {
		t.Fatalf("expected a result even for malformed input")
	}
}

func TestExtractAllProcessesFilesConcurrentlyWithoutDataRace(t *testing.T) {
	files := make([]FileInput, 0, 20)
	for i := 0; i < 20; i++ {
		files = append(files, FileInput{Path: "f.go", Content: []byte("package main\nfunc f() {}\n"), Language: "go"})
	}
	results := ExtractAll(context.Background(), "proj", files, DefaultConcurrency)
	if len(results) != 20 {
		t.Fatalf("expected 20 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
	}
}
