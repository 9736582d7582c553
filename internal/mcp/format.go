package mcp

import (
	"fmt"
	"strings"

	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/orchestrator"
)

// resolvedResult pairs a RankedResult with the node it names, fetched once
// per result so formatting never has to re-query storage.
type resolvedResult struct {
	orchestrator.RankedResult
	Node core.Node
}

// FormatSearchResults formats a ranked search response as markdown.
func FormatSearchResults(query string, results []resolvedResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for %q\n\n", query)
	fmt.Fprintf(&sb, "Found %d result%s\n\n", len(results), plural(len(results)))

	for i, r := range results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, num int, r resolvedResult) {
	n := r.Node
	fmt.Fprintf(sb, "### %d. %s:%d (score: %.2f)\n", num, n.Location.FilePath, n.Location.Line, r.Score)

	if n.Name != "" {
		typeName := "symbol"
		if n.NodeType != nil {
			typeName = n.NodeType.String()
		}
		fmt.Fprintf(sb, "**%s:** `%s`\n\n", typeName, n.Name)
	}
	if len(r.MatchSources) > 0 {
		fmt.Fprintf(sb, "**Matched via:** %s\n\n", strings.Join(r.MatchSources, ", "))
	}

	lang := "text"
	if n.Language != nil {
		lang = string(*n.Language)
	}
	fmt.Fprintf(sb, "```%s\n%s\n```\n\n", lang, n.Content)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit == 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// toSearchResultOutput converts a resolved result into the MCP schema type.
func toSearchResultOutput(r resolvedResult) SearchResultOutput {
	n := r.Node
	out := SearchResultOutput{
		FilePath:      n.Location.FilePath,
		Line:          n.Location.Line,
		Content:       n.Content,
		Score:         r.Score,
		Symbol:        n.Name,
		QualifiedName: n.Metadata.QualifiedName,
		MatchSources:  r.MatchSources,
	}
	if n.Language != nil {
		out.Language = string(*n.Language)
	}
	if n.NodeType != nil {
		out.SymbolType = n.NodeType.String()
	}
	return out
}
