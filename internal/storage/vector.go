package storage

import (
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// ScoredNode is one vector_knn hit: a node id with its similarity score,
// highest first (§4.9).
type ScoredNode struct {
	NodeID core.NodeId
	Score  float64
}

// dimensionIndex is one per-dimension HNSW graph, keyed by the logical
// column name `embedding_<dim>` (§4.9), adapted from the teacher's
// HNSWStore — same lazy-deletion id-mapping trick (coder/hnsw breaks if the
// last node is physically deleted), generalized from string ids to
// core.NodeId and from a single fixed dimension to one graph per dimension.
type dimensionIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	idMap   map[core.NodeId]uint64
	keyMap  map[uint64]core.NodeId
	nextKey uint64
	dim     int
}

func newDimensionIndex(dim int, efSearch int) *dimensionIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.Ml = 0.25
	if efSearch > 0 {
		graph.EfSearch = efSearch
	} else {
		graph.EfSearch = 20
	}
	return &dimensionIndex{
		graph:  graph,
		idMap:  make(map[core.NodeId]uint64),
		keyMap: make(map[uint64]core.NodeId),
		dim:    dim,
	}
}

func (d *dimensionIndex) add(id core.NodeId, vector []float32) error {
	if len(vector) != d.dim {
		return fmt.Errorf("embedding_%d: dimension mismatch: expected %d, got %d", d.dim, d.dim, len(vector))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if existingKey, exists := d.idMap[id]; exists {
		delete(d.keyMap, existingKey)
		delete(d.idMap, id)
	}

	key := d.nextKey
	d.nextKey++

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	d.graph.Add(hnsw.MakeNode(key, vec))
	d.idMap[id] = key
	d.keyMap[key] = id
	return nil
}

func (d *dimensionIndex) remove(id core.NodeId) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if key, exists := d.idMap[id]; exists {
		delete(d.keyMap, key)
		delete(d.idMap, id)
	}
}

func (d *dimensionIndex) search(query []float32, k int) ([]ScoredNode, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(query) != d.dim {
		return nil, fmt.Errorf("embedding_%d: dimension mismatch: expected %d, got %d", d.dim, d.dim, len(query))
	}
	if d.graph.Len() == 0 {
		return nil, nil
	}

	normalizedQuery := make([]float32, len(query))
	copy(normalizedQuery, query)
	normalizeInPlace(normalizedQuery)

	nodes := d.graph.Search(normalizedQuery, k)
	out := make([]ScoredNode, 0, len(nodes))
	for _, node := range nodes {
		id, ok := d.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := d.graph.Distance(normalizedQuery, node.Value)
		out = append(out, ScoredNode{NodeID: id, Score: 1.0 - float64(distance)/2.0})
	}
	return out, nil
}

// vectorIndex composes one dimensionIndex per embedding width seen so far,
// lazily created on first use (§4.9 "per-dimension indexes").
type vectorIndex struct {
	mu   sync.RWMutex
	dims map[int]*dimensionIndex
}

func newVectorIndex() *vectorIndex {
	return &vectorIndex{dims: make(map[int]*dimensionIndex)}
}

func (v *vectorIndex) dimension(dim int, efSearch int) *dimensionIndex {
	v.mu.Lock()
	defer v.mu.Unlock()
	d, ok := v.dims[dim]
	if !ok {
		d = newDimensionIndex(dim, efSearch)
		v.dims[dim] = d
	}
	return d
}

func (v *vectorIndex) upsert(id core.NodeId, vector []float32) error {
	if len(vector) == 0 {
		return nil
	}
	return v.dimension(len(vector), 0).add(id, vector)
}

func (v *vectorIndex) removeFromAll(id core.NodeId) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, d := range v.dims {
		d.remove(id)
	}
}

func (v *vectorIndex) knn(dim int, query []float32, k, efSearch int) ([]ScoredNode, error) {
	v.mu.RLock()
	d, ok := v.dims[dim]
	v.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if efSearch > 0 {
		d.mu.Lock()
		d.graph.EfSearch = efSearch
		d.mu.Unlock()
	}
	return d.search(query, k)
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
