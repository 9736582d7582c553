package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/orchestrator"
)

func makeResolvedResult(name, filePath, content string, line uint32, score float64, sources []string) resolvedResult {
	nodeType := core.NodeTypeFunction
	lang := core.LangGo
	n := core.NewNode("proj", name, &nodeType, &lang, core.Location{FilePath: filePath, Line: line})
	n.Content = content
	n.Metadata.QualifiedName = filePath + "::" + name

	return resolvedResult{
		RankedResult: orchestrator.RankedResult{NodeID: n.ID, Score: score, MatchSources: sources},
		Node:         n,
	}
}

func TestFormatSearchResultsBasic(t *testing.T) {
	results := []resolvedResult{
		makeResolvedResult("AuthMiddleware", "internal/auth/handler.go", "func AuthMiddleware() {}", 42, 0.95, []string{"vector"}),
	}

	markdown := FormatSearchResults("authentication", results)

	assert.Contains(t, markdown, "## Search Results")
	assert.Contains(t, markdown, `"authentication"`)
	assert.Contains(t, markdown, "Found 1 result")
	assert.Contains(t, markdown, "internal/auth/handler.go:42")
	assert.Contains(t, markdown, "score: 0.95")
	assert.Contains(t, markdown, "AuthMiddleware")
	assert.Contains(t, markdown, "```go")
	assert.Contains(t, markdown, "vector")
}

func TestFormatSearchResultsEmpty(t *testing.T) {
	markdown := FormatSearchResults("nothing matches", nil)
	assert.Contains(t, markdown, "No results found")
	assert.Contains(t, markdown, "nothing matches")
}

func TestFormatSearchResultsPluralizesCount(t *testing.T) {
	results := []resolvedResult{
		makeResolvedResult("A", "a.go", "func A() {}", 1, 0.5, nil),
		makeResolvedResult("B", "b.go", "func B() {}", 1, 0.4, nil),
	}

	markdown := FormatSearchResults("two results", results)
	assert.Contains(t, markdown, "Found 2 results")
}

func TestToSearchResultOutputFillsFieldsFromNode(t *testing.T) {
	r := makeResolvedResult("Greet", "greet.go", "func Greet() {}", 5, 0.8, []string{"lexical", "vector"})

	out := toSearchResultOutput(r)
	assert.Equal(t, "greet.go", out.FilePath)
	assert.Equal(t, uint32(5), out.Line)
	assert.Equal(t, "Greet", out.Symbol)
	assert.Equal(t, "go", out.Language)
	assert.Equal(t, "function", out.SymbolType)
	assert.Equal(t, "greet.go::Greet", out.QualifiedName)
	assert.Equal(t, []string{"lexical", "vector"}, out.MatchSources)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10, 1, 50))
	assert.Equal(t, 1, clampLimit(-5, 10, 1, 50))
	assert.Equal(t, 50, clampLimit(500, 10, 1, 50))
	assert.Equal(t, 25, clampLimit(25, 10, 1, 50))
}
