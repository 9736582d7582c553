package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// FileInput is a single file handed to the extractor.
type FileInput struct {
	Path     string
	Content  []byte
	Language string
}

// ParseStats reports per-file extraction outcome counters (§4.4 "parse_stats").
type ParseStats struct {
	NodesEmitted int
	EdgesEmitted int
	HadErrors    bool // tree-sitter reported at least one ERROR node
}

// FileResult is one file's extraction output, or a recoverable failure.
type FileResult struct {
	Path  string
	Nodes []core.Node
	Edges []core.Edge
	Stats ParseStats
	Err   error
}

// DefaultConcurrency is the extractor's default bounded parallelism (§4.4).
const DefaultConcurrency = 4

// ExtractAll runs the bounded-concurrency extractor over files: each file is
// parsed and walked independently, a per-file panic or error is captured as
// a failed FileResult rather than aborting the batch, and the pipeline
// continues (§4.4 "on per-file failure the file is counted as failed and
// the pipeline continues").
func ExtractAll(ctx context.Context, projectID string, files []FileInput, concurrency int) []FileResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]FileResult, len(files))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, f := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, f FileInput) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = extractOneSafely(ctx, projectID, f)
		}(i, f)
	}
	wg.Wait()
	return results
}

// extractOneSafely recovers from any panic during a single file's
// extraction, turning it into a FileResult error so one malformed file can
// never take down the batch.
func extractOneSafely(ctx context.Context, projectID string, f FileInput) (result FileResult) {
	defer func() {
		if r := recover(); r != nil {
			result = FileResult{Path: f.Path, Err: fmt.Errorf("extract panic: %v", r)}
		}
	}()
	return extractOne(ctx, projectID, f)
}

func extractOne(ctx context.Context, projectID string, f FileInput) FileResult {
	parser := NewParser()
	defer parser.Close()

	tree, err := parser.Parse(ctx, f.Content, f.Language)
	if err != nil {
		return FileResult{Path: f.Path, Err: err}
	}

	cfg, _, ok := defaultRegistry.get(f.Language)
	if !ok {
		return FileResult{Path: f.Path, Err: fmt.Errorf("no language config for %s", f.Language)}
	}

	e := &fileExtractor{projectID: projectID, path: f.Path, source: f.Content, cfg: cfg, lang: f.Language}
	e.walk(tree.Root, core.Nil, "")

	stats := ParseStats{NodesEmitted: len(e.nodes), EdgesEmitted: len(e.edges), HadErrors: tree.Root.HasError}
	return FileResult{Path: f.Path, Nodes: e.nodes, Edges: e.edges, Stats: stats}
}

type fileExtractor struct {
	projectID string
	path      string
	source    []byte
	cfg       *LanguageConfig
	lang      string

	nodes []core.Node
	edges []core.Edge
}

// walk descends the tree emitting one node per named declaration (§4.4)
// and a Contains edge from each enclosing declaration to the one nested
// inside it. The enclosing declaration's NodeId is already known (ids are
// deterministic from project+qualified_name+file_path+start_line, all
// available at extraction time) so Contains edges resolve immediately;
// Calls/Uses/Implements/Extends edges still target unresolved string
// symbols since their targets may live in another file entirely.
func (e *fileExtractor) walk(n *Node, enclosingID core.NodeId, enclosingQN string) {
	if n == nil {
		return
	}

	kind, name, ok := e.classify(n)
	if !ok {
		for _, c := range n.Children {
			e.walk(c, enclosingID, enclosingQN)
		}
		return
	}

	qn := e.path + "::" + name
	lang := core.Language(e.lang)
	loc := e.location(n)

	node := core.NewNode(e.projectID, name, &kind, &lang, loc)
	node.Content = n.Content(e.source)
	node.Metadata.QualifiedName = qn
	node.Metadata.Analyzer = "ast_extractor"
	node.Metadata.AnalyzerConfidence = 1.0

	if kind.Equal(core.NodeTypeFunction) {
		complexity := float32(CyclomaticComplexity(n, e.source))
		node.Complexity = &complexity
		if enclosingQN != "" {
			node.Metadata.MethodOf = enclosingQN
		}
	}

	e.nodes = append(e.nodes, node)

	if !enclosingID.IsNil() {
		e.edges = append(e.edges, core.Edge{
			From:     enclosingID,
			To:       core.ResolvedTarget(node.ID),
			EdgeType: core.EdgeContains,
			Metadata: provenance("ast_extractor", 1.0),
		})
	}

	e.emitBodyEdges(n, node.ID, qn)

	for _, c := range n.Children {
		e.walk(c, node.ID, qn)
	}
}

// classify reports the NodeType and extracted name for n if it is a
// declaration kind this language config names, following the teacher's
// SymbolExtractor.extractSymbolFromNode dispatch order.
func (e *fileExtractor) classify(n *Node) (core.NodeType, string, bool) {
	switch {
	case contains(e.cfg.FunctionTypes, n.Type):
		return core.NodeTypeFunction, e.extractName(n), true
	case contains(e.cfg.MethodTypes, n.Type):
		return core.NodeTypeFunction, e.extractName(n), true
	case contains(e.cfg.ClassTypes, n.Type):
		return core.NodeTypeStruct, e.extractName(n), true
	case contains(e.cfg.InterfaceTypes, n.Type):
		return core.NodeTypeInterface, e.extractName(n), true
	case contains(e.cfg.EnumTypes, n.Type):
		return core.OtherNodeType("enum"), e.extractName(n), true
	case contains(e.cfg.ModuleTypes, n.Type):
		return core.OtherNodeType("package"), e.extractName(n), true
	case contains(e.cfg.ImportTypes, n.Type):
		return core.NodeTypeImport, e.extractImportName(n), true
	case contains(e.cfg.ConstantTypes, n.Type):
		return core.OtherNodeType("constant"), e.extractName(n), true
	}
	return core.NodeType{}, "", false
}

func (e *fileExtractor) extractName(n *Node) string {
	if id := n.FindChildByType(e.cfg.NameField); id != nil {
		return id.Content(e.source)
	}
	for _, c := range n.Children {
		if c.Type == "identifier" || c.Type == "field_identifier" || c.Type == "type_identifier" {
			return c.Content(e.source)
		}
	}
	return ""
}

func (e *fileExtractor) extractImportName(n *Node) string {
	if name := n.Content(e.source); name != "" {
		return strings.TrimSpace(strings.Trim(name, "\"'`"))
	}
	return n.Type
}

func (e *fileExtractor) location(n *Node) core.Location {
	endLine := n.EndPoint.Row + 1
	endCol := n.EndPoint.Column
	return core.Location{
		FilePath:  e.path,
		Line:      n.StartPoint.Row + 1,
		Column:    n.StartPoint.Column,
		EndLine:   &endLine,
		EndColumn: &endCol,
	}
}

// emitBodyEdges derives Calls/Uses/Implements/Extends edges from a
// declaration node's own subtree (its body, signature, and any
// inheritance clauses), so a function's call sites are captured even
// though call_expression isn't itself a declaration kind (§4.4). from is
// the NodeId just assigned to the declaration these edges originate from.
func (e *fileExtractor) emitBodyEdges(n *Node, from core.NodeId, fromQN string) {
	n.Walk(func(cur *Node) bool {
		if cur != n {
			if _, _, isDecl := e.classify(cur); isDecl {
				// Nested declaration (e.g. a closure promoted to its own
				// node, or a method inside a walked class): its own body
				// edges are emitted when walk() reaches it directly.
				return false
			}
		}

		switch cur.Type {
		case "call_expression", "method_invocation":
			if callee := calleeName(cur, e.source); callee != "" {
				e.edges = append(e.edges, core.Edge{
					From:     from,
					To:       core.UnresolvedTarget(callee),
					EdgeType: core.EdgeCalls,
					Metadata: provenanceFrom(fromQN),
				})
			}
		case "interface_type", "superclass", "extends_clause", "implements_clause":
			if target := cur.Content(e.source); target != "" {
				edgeType := core.EdgeImplements
				if cur.Type == "superclass" || cur.Type == "extends_clause" {
					edgeType = core.EdgeExtends
				}
				e.edges = append(e.edges, core.Edge{
					From:     from,
					To:       core.UnresolvedTarget(target),
					EdgeType: edgeType,
					Metadata: provenanceFrom(fromQN),
				})
			}
			return false
		case "identifier", "field_identifier":
			// Bare identifier references are conservatively treated as
			// Uses; call targets are also covered above, and the
			// duplication collapses at storage upsert time.
			if name := cur.Content(e.source); name != "" {
				e.edges = append(e.edges, core.Edge{
					From:     from,
					To:       core.UnresolvedTarget(name),
					EdgeType: core.EdgeUses,
					Metadata: provenanceFrom(fromQN),
				})
			}
		}
		return true
	})
}

func calleeName(n *Node, source []byte) string {
	if len(n.Children) == 0 {
		return ""
	}
	callee := n.Children[0]
	text := callee.Content(source)
	if idx := strings.LastIndexByte(text, '.'); idx >= 0 {
		return text[idx+1:]
	}
	return text
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func provenance(analyzer string, confidence float32) core.Metadata {
	m := core.NewMetadata()
	m.Analyzer = analyzer
	m.AnalyzerConfidence = confidence
	return m
}

func provenanceFrom(fromQN string) core.Metadata {
	m := provenance("ast_extractor", 1.0)
	m.QualifiedName = fromQN
	return m
}
