// Package analyzer implements the Derived Analyzers (C5): post-extraction
// passes that enrich the node/edge collections for a project — conservative
// regex-based dataflow, architecture boundary/cycle detection, and a
// docs/specs-to-symbol linker — grounded on the original codegraph-mcp
// analyzers of the same names.
package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// DataflowStats reports what enrich_dataflow added, mirroring the
// original's DataflowStats.
type DataflowStats struct {
	VariableNodesAdded int
	DefinesEdgesAdded  int
	UsesEdgesAdded     int
	FlowsToEdgesAdded  int
	ReturnsEdgesAdded  int
	MutatesEdgesAdded  int
}

var (
	letRe    = regexp.MustCompile(`(?m)^[ \t]*(?:let|var|const)(?:\s+mut)?\s+([A-Za-z_][A-Za-z0-9_]*)`)
	assignRe = regexp.MustCompile(`(?m)\b([A-Za-z_][A-Za-z0-9_]*)\b\s*(?:=|\+=|-=|\*=|/=|%=)`)
	returnRe = regexp.MustCompile(`(?m)\breturn\b[^\n;]*\b([A-Za-z_][A-Za-z0-9_]*)\b`)
	flowRe   = regexp.MustCompile(`(?m)^[ \t]*(?:let|var|const)(?:\s+mut)?\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*([A-Za-z_][A-Za-z0-9_]*)\s*;?\s*$`)
)

// EnrichDataflow derives per-function def/use/mutate/return/flow edges from
// each function node's own source text via conservative regex matching
// (§4.5), generalized from the original's Rust-only `enrich_rust_dataflow`
// to any language, since the regexes only lean on `let`/`var`/`const`-style
// declaration syntax shared across the C-family/Rust/Go/JS surface and are
// deliberately approximate everywhere. New variable nodes get deterministic
// ids; edges carry analyzer confidence 0.6-0.7 per the spec.
func EnrichDataflow(projectID string, nodes *[]core.Node, edges *[]core.Edge) DataflowStats {
	var stats DataflowStats
	seen := map[string]bool{}

	functionIdx := map[core.NodeId]int{}
	for i, n := range *nodes {
		if n.NodeType != nil && n.NodeType.Equal(core.NodeTypeFunction) {
			functionIdx[n.ID] = i
		}
	}

	for functionID, idx := range functionIdx {
		fn := (*nodes)[idx]
		if fn.Content == "" {
			continue
		}
		qname := fn.Metadata.QualifiedName
		if qname == "" {
			qname = fn.Name
		}
		body := fn.Content

		varByName := map[string]string{}
		varIDByQualified := map[string]core.NodeId{}

		for _, m := range letRe.FindAllStringSubmatchIndex(body, -1) {
			name := body[m[2]:m[3]]
			lineOffset := uint32(strings.Count(body[:m[2]], "\n"))
			varLine := fn.Location.Line + lineOffset
			qualified := qname + "::" + name
			dedupeKey := fn.Location.FilePath + ":" + strconv.FormatUint(uint64(varLine), 10) + ":" + qualified
			if seen[dedupeKey] {
				continue
			}
			seen[dedupeKey] = true

			lang := core.Language("")
			if fn.Language != nil {
				lang = *fn.Language
			}
			endLine := varLine
			varNode := core.NewNode(projectID, name, ptrNodeType(core.NodeTypeVariable), ptrLang(lang), core.Location{
				FilePath: fn.Location.FilePath,
				Line:     varLine,
				EndLine:  &endLine,
			})
			varNode.Metadata.Analyzer = "dataflow"
			varNode.Metadata.AnalyzerConfidence = 0.7
			varNode.Metadata.QualifiedName = qualified

			varByName[name] = qualified
			varIDByQualified[qualified] = varNode.ID
			*nodes = append(*nodes, varNode)
			stats.VariableNodesAdded++

			*edges = append(*edges, core.Edge{
				From:     functionID,
				To:       core.UnresolvedTarget(qualified),
				EdgeType: core.EdgeDefines,
				Metadata: confMeta("dataflow", 0.7),
			})
			stats.DefinesEdgesAdded++
		}

		if len(varByName) == 0 {
			continue
		}

		for name, qualified := range varByName {
			usesRe := regexp.MustCompile(`(?m)\b` + regexp.QuoteMeta(name) + `\b`)
			if len(usesRe.FindAllString(body, -1)) > 1 {
				*edges = append(*edges, core.Edge{
					From:     functionID,
					To:       core.UnresolvedTarget(qualified),
					EdgeType: core.EdgeUses,
					Metadata: confMeta("dataflow", 0.6),
				})
				stats.UsesEdgesAdded++
			}
		}

		for _, m := range assignRe.FindAllStringSubmatch(body, -1) {
			if qualified, ok := varByName[m[1]]; ok {
				*edges = append(*edges, core.Edge{
					From:     functionID,
					To:       core.UnresolvedTarget(qualified),
					EdgeType: core.EdgeMutates,
					Metadata: confMeta("dataflow", 0.6),
				})
				stats.MutatesEdgesAdded++
			}
		}

		for _, m := range returnRe.FindAllStringSubmatch(body, -1) {
			if qualified, ok := varByName[m[1]]; ok {
				*edges = append(*edges, core.Edge{
					From:     functionID,
					To:       core.UnresolvedTarget(qualified),
					EdgeType: core.EdgeReturns,
					Metadata: confMeta("dataflow", 0.6),
				})
				stats.ReturnsEdgesAdded++
			}
		}

		for _, m := range flowRe.FindAllStringSubmatch(body, -1) {
			dst, src := m[1], m[2]
			dstQ, dstOK := varByName[dst]
			srcQ, srcOK := varByName[src]
			if !dstOK || !srcOK {
				continue
			}
			fromID, ok := varIDByQualified[srcQ]
			if !ok {
				continue
			}
			*edges = append(*edges, core.Edge{
				From:     fromID,
				To:       core.UnresolvedTarget(dstQ),
				EdgeType: core.EdgeFlowsTo,
				Metadata: confMeta("dataflow", 0.6),
			})
			stats.FlowsToEdgesAdded++
		}
	}

	return stats
}

func confMeta(analyzer string, confidence float32) core.Metadata {
	m := core.NewMetadata()
	m.Analyzer = analyzer
	m.AnalyzerConfidence = confidence
	return m
}

func ptrNodeType(t core.NodeType) *core.NodeType { return &t }
func ptrLang(l core.Language) *core.Language      { return &l }
