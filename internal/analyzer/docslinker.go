package analyzer

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// DocsLinkerStats reports what LinkDocsAndContracts added, mirroring the
// original's DocsContractsStats.
type DocsLinkerStats struct {
	DocumentNodesAdded      int
	DocumentEdgesAdded      int
	SpecificationEdgesAdded int
}

var tickRe = regexp.MustCompile("`([^`]+)`")

// LinkDocsAndContracts walks README.md plus docs/ and schema/ (markdown and
// .surql files), and for every backtick-quoted token in those files that
// names a known symbol (by bare name or qualified name), emits a document
// node for the file and a Documents (or Specifies, for .spec.md files and
// anything under docs/specifications/) edge from that document to the
// symbol, carrying file:line evidence (§4.5). Translated from the
// original's `link_docs_and_contracts`/`build_symbol_set`/
// `collect_document_paths`.
func LinkDocsAndContracts(projectRoot, projectID string, nodes *[]core.Node, edges *[]core.Edge) DocsLinkerStats {
	var stats DocsLinkerStats

	symbols := buildSymbolSet(*nodes)
	if len(symbols) == 0 {
		return stats
	}

	docPaths := collectDocumentPaths(projectRoot)
	if len(docPaths) == 0 {
		return stats
	}

	seenEdges := map[string]bool{}

	for _, docPath := range docPaths {
		rel := relativeDisplayPath(projectRoot, docPath)
		content, err := os.ReadFile(docPath)
		if err != nil {
			continue
		}
		text := string(content)

		docNodeType := core.NodeTypeDocument
		endLine := uint32(1)
		docNode := core.NewNode(projectID, rel, &docNodeType, nil, core.Location{
			FilePath: rel,
			Line:     1,
			EndLine:  &endLine,
		})
		docNode.Metadata.Analyzer = "docs_linker"
		docNode.Metadata.AnalyzerConfidence = 0.9
		docNode.Metadata.QualifiedName = "doc::" + rel

		isSpec := strings.HasSuffix(rel, ".spec.md") || strings.HasPrefix(rel, "docs/specifications/")
		edgeType := core.EdgeDocuments
		if isSpec {
			edgeType = core.EdgeSpecifies
		}

		for _, m := range tickRe.FindAllStringSubmatchIndex(text, -1) {
			token := strings.TrimSpace(text[m[2]:m[3]])
			if token == "" {
				continue
			}
			if !symbols[token] {
				continue
			}

			line1Based := 1 + strings.Count(text[:m[2]], "\n")

			edgeKey := docNode.ID.String() + "|" + token + "|" + edgeType.String()
			if seenEdges[edgeKey] {
				continue
			}
			seenEdges[edgeKey] = true

			meta := core.NewMetadata()
			meta.Analyzer = "docs_linker"
			meta.AnalyzerConfidence = 0.7
			meta.Attributes.Set("analyzer_evidence", rel+":"+strconv.Itoa(line1Based))

			*edges = append(*edges, core.Edge{
				From:     docNode.ID,
				To:       core.UnresolvedTarget(token),
				EdgeType: edgeType,
				Metadata: meta,
			})
			if isSpec {
				stats.SpecificationEdgesAdded++
			} else {
				stats.DocumentEdgesAdded++
			}
		}

		*nodes = append(*nodes, docNode)
		stats.DocumentNodesAdded++
	}

	return stats
}

func buildSymbolSet(nodes []core.Node) map[string]bool {
	out := map[string]bool{}
	for _, n := range nodes {
		out[n.Name] = true
		if n.Metadata.QualifiedName != "" {
			out[n.Metadata.QualifiedName] = true
		}
	}
	return out
}

func collectDocumentPaths(projectRoot string) []string {
	var out []string

	readme := filepath.Join(projectRoot, "README.md")
	if info, err := os.Stat(readme); err == nil && !info.IsDir() {
		out = append(out, readme)
	}

	for _, dir := range []string{filepath.Join(projectRoot, "docs"), filepath.Join(projectRoot, "schema")} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			ext := strings.TrimPrefix(filepath.Ext(path), ".")
			if ext == "md" || ext == "surql" {
				out = append(out, path)
			}
			return nil
		})
	}

	sort.Strings(out)
	out = dedupSorted(out)
	return out
}

func dedupSorted(in []string) []string {
	out := in[:0]
	var prev string
	for i, s := range in {
		if i > 0 && s == prev {
			continue
		}
		out = append(out, s)
		prev = s
	}
	return out
}

func relativeDisplayPath(projectRoot, path string) string {
	rel, err := filepath.Rel(projectRoot, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}
