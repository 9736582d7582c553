package chunker

// AggregateChunkEmbeddings combines per-chunk embeddings back into one
// vector per node by element-wise mean (§4.7). chunkToNode[i] names which
// node chunkEmbeddings[i] belongs to; nodes with no chunks get a
// zero-vector of the given dimension.
func AggregateChunkEmbeddings(nodeCount int, chunkToNode []int, chunkEmbeddings [][]float32, dimension int) [][]float32 {
	nodeEmbeddings := make([][]float32, nodeCount)
	for i := range nodeEmbeddings {
		nodeEmbeddings[i] = make([]float32, dimension)
	}
	counts := make([]int, nodeCount)

	for chunkIdx, embedding := range chunkEmbeddings {
		if chunkIdx >= len(chunkToNode) {
			break
		}
		nodeIdx := chunkToNode[chunkIdx]
		if nodeIdx < 0 || nodeIdx >= nodeCount {
			continue
		}

		target := nodeEmbeddings[nodeIdx]
		n := len(target)
		if len(embedding) < n {
			n = len(embedding)
		}
		for i := 0; i < n; i++ {
			target[i] += embedding[i]
		}
		counts[nodeIdx]++
	}

	for i, count := range counts {
		if count == 0 {
			continue
		}
		inv := 1.0 / float32(count)
		for i2 := range nodeEmbeddings[i] {
			nodeEmbeddings[i][i2] *= inv
		}
	}

	return nodeEmbeddings
}
