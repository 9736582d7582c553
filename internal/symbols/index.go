// Package symbols implements the Symbol Indexer (C6): an in-memory
// name -> NodeId map built once per index run and used to resolve the
// unresolved string edge targets left by the AST Extractor and the
// derived analyzers.
package symbols

import (
	"strings"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// Index is the map[string]core.NodeId resolution table (§4.6). It is
// append-only during an index run and read-only during search/resolution
// (§5 ownership rules), so it carries no internal locking of its own —
// callers that build and read it concurrently must synchronize externally.
type Index struct {
	byKey map[string]core.NodeId
}

// NewIndex builds a Symbol Indexer from the current node set, registering
// every key variant named in §4.6: bare name, qualified name,
// `<NodeType>::<name>`, `<file_path>::<name>`, the last path segment of the
// qualified name, `<method_of>::<name>`, and `<trait>::<name>`.
//
// When two nodes collide on the same key the first one registered wins;
// later nodes still get their own more-specific keys (qualified name,
// file-scoped name) so collisions on the loosest keys (bare name) don't
// make the index useless for the common case.
func NewIndex(nodes []core.Node) *Index {
	idx := &Index{byKey: make(map[string]core.NodeId, len(nodes)*3)}
	for _, n := range nodes {
		idx.registerNode(n)
	}
	return idx
}

func (idx *Index) registerNode(n core.Node) {
	if n.Name != "" {
		idx.set(n.Name, n.ID)
	}

	qualified := n.Metadata.QualifiedName
	if qualified != "" {
		idx.set(qualified, n.ID)
		if last := lastSegment(qualified); last != "" {
			idx.set(last, n.ID)
		}
	}

	if n.NodeType != nil {
		idx.set(n.NodeType.String()+"::"+n.Name, n.ID)
	}

	if n.Location.FilePath != "" {
		idx.set(n.Location.FilePath+"::"+n.Name, n.ID)
	}

	if n.Metadata.MethodOf != "" {
		idx.set(n.Metadata.MethodOf+"::"+n.Name, n.ID)
	}

	if n.Metadata.ImplementsTrait != "" {
		idx.set(n.Metadata.ImplementsTrait+"::"+n.Name, n.ID)
	}
}

func (idx *Index) set(key string, id core.NodeId) {
	if key == "" {
		return
	}
	if _, exists := idx.byKey[key]; exists {
		return
	}
	idx.byKey[key] = id
}

// Lookup resolves a string symbol to a NodeId, trying the same key
// variants a node would have been registered under, from most to least
// specific.
func (idx *Index) Lookup(symbol string) (core.NodeId, bool) {
	id, ok := idx.byKey[symbol]
	if ok {
		return id, true
	}
	if last := lastSegment(symbol); last != "" && last != symbol {
		if id, ok := idx.byKey[last]; ok {
			return id, true
		}
	}
	return core.Nil, false
}

// Len reports how many distinct keys the index holds.
func (idx *Index) Len() int { return len(idx.byKey) }

// ResolveEdges attempts to resolve every unresolved edge target in place,
// leaving edges it can't resolve untouched (with their string target and
// the unresolved marker intact, per invariant I3) so a later pass can retry.
func (idx *Index) ResolveEdges(edges []core.Edge) (resolved int) {
	for i := range edges {
		e := &edges[i]
		if e.To.Resolved {
			continue
		}
		if id, ok := idx.Lookup(e.To.Symbol); ok {
			e.To = core.ResolvedTarget(id)
			resolved++
		}
	}
	return resolved
}

func lastSegment(qualified string) string {
	for _, sep := range []string{"::", ".", "/"} {
		if i := strings.LastIndex(qualified, sep); i >= 0 {
			return qualified[i+len(sep):]
		}
	}
	return qualified
}
