package storage

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// CouplingMetrics reports afferent/efferent coupling and instability for a
// node (§4.9 "coupling_metrics(id) returning (Ca = incoming, Ce = outgoing,
// I = Ce/(Ca+Ce))").
type CouplingMetrics struct {
	Ca float64
	Ce float64
	I  float64
}

// nodeIndexer assigns a dense uint32 to every node currently known, so the
// traversal algorithms below can track visited/frontier sets as
// RoaringBitmaps instead of map[core.NodeId]bool — the bitmap intersections
// are what the hub/coupling analytics actually exercise.
type nodeIndexer struct {
	toIdx map[core.NodeId]uint32
	toID  []core.NodeId
}

func newNodeIndexer(nodes []core.Node) *nodeIndexer {
	idx := &nodeIndexer{
		toIdx: make(map[core.NodeId]uint32, len(nodes)),
		toID:  make([]core.NodeId, 0, len(nodes)),
	}
	for _, n := range nodes {
		idx.toIdx[n.ID] = uint32(len(idx.toID))
		idx.toID = append(idx.toID, n.ID)
	}
	return idx
}

func (ix *nodeIndexer) indexOf(id core.NodeId) (uint32, bool) {
	v, ok := ix.toIdx[id]
	return v, ok
}

func (ix *nodeIndexer) idOf(i uint32) core.NodeId {
	return ix.toID[i]
}

func matchesEdgeType(e core.Edge, edgeType core.EdgeType) bool {
	return edgeType.String() == "" || e.EdgeType.Equal(edgeType)
}

// TransitiveDependencies walks outgoing edges of the given type breadth
// first up to depth levels, returning every node reached (§4.9).
func (m *metadataStore) TransitiveDependencies(id core.NodeId, edgeType core.EdgeType, depth int) []core.NodeId {
	return m.bfs(id, edgeType, depth, m.outgoing)
}

// ReverseDependencies is TransitiveDependencies over incoming edges (§4.9).
func (m *metadataStore) ReverseDependencies(id core.NodeId, edgeType core.EdgeType, depth int) []core.NodeId {
	return m.bfs(id, edgeType, depth, m.incoming)
}

func (m *metadataStore) bfs(start core.NodeId, edgeType core.EdgeType, depth int, neighbors func(core.NodeId) []core.Edge) []core.NodeId {
	nodes := m.allNodesSnapshot()
	ix := newNodeIndexer(nodes)

	visited := roaring.New()
	if i, ok := ix.indexOf(start); ok {
		visited.Add(i)
	}

	frontier := []core.NodeId{start}
	var result []core.NodeId

	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []core.NodeId
		for _, id := range frontier {
			for _, e := range neighbors(id) {
				if !matchesEdgeType(e, edgeType) {
					continue
				}
				target := otherEnd(e, id)
				if target.IsNil() {
					continue
				}
				i, ok := ix.indexOf(target)
				if !ok || visited.Contains(i) {
					continue
				}
				visited.Add(i)
				result = append(result, target)
				next = append(next, target)
			}
		}
		frontier = next
	}

	return result
}

// otherEnd picks the neighbor-side node id of an edge relative to `from`,
// since the same adjacency helper is reused for both outgoing (To side)
// and incoming (From side) traversals.
func otherEnd(e core.Edge, from core.NodeId) core.NodeId {
	if e.From == from {
		if e.To.Resolved && e.To.NodeID != nil {
			return *e.To.NodeID
		}
		return core.Nil
	}
	return e.From
}

// DetectCycles finds simple cycles among edges of edgeType via DFS with a
// recursion-stack bitmap, returning each cycle as the ordered node chain
// that closes it (§4.9).
func (m *metadataStore) DetectCycles(edgeType core.EdgeType) [][]core.NodeId {
	nodes := m.allNodesSnapshot()
	ix := newNodeIndexer(nodes)

	visited := roaring.New()
	onStack := roaring.New()
	var cycles [][]core.NodeId
	var stack []core.NodeId

	var visit func(id core.NodeId)
	visit = func(id core.NodeId) {
		i, ok := ix.indexOf(id)
		if !ok {
			return
		}
		visited.Add(i)
		onStack.Add(i)
		stack = append(stack, id)

		for _, e := range m.outgoing(id) {
			if !matchesEdgeType(e, edgeType) {
				continue
			}
			if !e.To.Resolved || e.To.NodeID == nil {
				continue
			}
			next := *e.To.NodeID
			ni, ok := ix.indexOf(next)
			if !ok {
				continue
			}
			if onStack.Contains(ni) {
				cycles = append(cycles, closeCycle(stack, next))
				continue
			}
			if !visited.Contains(ni) {
				visit(next)
			}
		}

		stack = stack[:len(stack)-1]
		onStack.Remove(i)
	}

	for _, n := range nodes {
		i, _ := ix.indexOf(n.ID)
		if !visited.Contains(i) {
			visit(n.ID)
		}
	}

	return cycles
}

func closeCycle(stack []core.NodeId, closesAt core.NodeId) []core.NodeId {
	for i, id := range stack {
		if id == closesAt {
			cycle := make([]core.NodeId, len(stack)-i)
			copy(cycle, stack[i:])
			return append(cycle, closesAt)
		}
	}
	return append(append([]core.NodeId{}, stack...), closesAt)
}

// CouplingMetrics computes Ca (incoming edge count), Ce (outgoing edge
// count), and instability I = Ce/(Ca+Ce) for a node (§4.9).
func (m *metadataStore) CouplingMetrics(id core.NodeId) CouplingMetrics {
	ca := float64(len(m.incoming(id)))
	ce := float64(len(m.outgoing(id)))
	if ca+ce == 0 {
		return CouplingMetrics{}
	}
	return CouplingMetrics{Ca: ca, Ce: ce, I: ce / (ca + ce)}
}

// HubNodes returns every node whose combined in+out degree is at least
// minDegree, computed via a bitmap intersection of the "has enough in-edges
// or out-edges" set against the full known-node set (§4.9).
func (m *metadataStore) HubNodes(minDegree int) []core.NodeId {
	nodes := m.allNodesSnapshot()
	ix := newNodeIndexer(nodes)

	all := roaring.New()
	qualifies := roaring.New()
	for _, n := range nodes {
		i, _ := ix.indexOf(n.ID)
		all.Add(i)
		degree := len(m.outgoing(n.ID)) + len(m.incoming(n.ID))
		if degree >= minDegree {
			qualifies.Add(i)
		}
	}
	qualifies.And(all)

	out := make([]core.NodeId, 0, qualifies.GetCardinality())
	it := qualifies.Iterator()
	for it.HasNext() {
		out = append(out, ix.idOf(it.Next()))
	}
	return out
}

// TraceCallChain follows Calls edges from `from` up to maxDepth hops,
// returning the ordered reachable chain (§4.9), a thin wrapper over the
// shared BFS walk restricted to core.EdgeCalls.
func (m *metadataStore) TraceCallChain(from core.NodeId, maxDepth int) []core.NodeId {
	return m.TransitiveDependencies(from, core.EdgeCalls, maxDepth)
}
