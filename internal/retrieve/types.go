package retrieve

import "github.com/codegraph-dev/codegraph/internal/core"

// Source names a signal that contributed to a Candidate's score.
type Source string

const (
	SourceVector  Source = "vector"
	SourceLexical Source = "lexical"
	SourceGraph   Source = "graph"
)

// DefaultVectorWeight and DefaultGraphWeight are the α and β fusion weights
// from §4.10: "preliminary score = max(vector_score, lexical_score·α,
// graph_score·β) where α, β are fixed fusion weights (defaults α=0.7,
// β=0.5)". Note the asymmetry in the spec's own formula: α scales the
// lexical score and β scales the graph score; the vector score is used
// unscaled.
const (
	DefaultLexicalWeight = 0.7
	DefaultGraphWeight   = 0.5
)

// Weights holds the fusion weights applied in Candidate scoring.
type Weights struct {
	Lexical float64
	Graph   float64
}

// DefaultWeights returns the specification's default α/β.
func DefaultWeights() Weights {
	return Weights{Lexical: DefaultLexicalWeight, Graph: DefaultGraphWeight}
}

// Candidate is one merged retrieval hit, keyed by NodeId, carrying the
// maximum score seen per contributing source and the preliminary fused
// score (§4.10 step 3).
type Candidate struct {
	NodeID core.NodeId

	VectorScore  float64
	LexicalScore float64
	GraphScore   float64

	MatchSources []Source

	// Score is the preliminary fusion score: max(VectorScore,
	// LexicalScore*weights.Lexical, GraphScore*weights.Graph).
	Score float64
}

func (c *Candidate) addSource(s Source) {
	for _, existing := range c.MatchSources {
		if existing == s {
			return
		}
	}
	c.MatchSources = append(c.MatchSources, s)
}

func (c *Candidate) fuse(weights Weights) {
	score := c.VectorScore
	if v := c.LexicalScore * weights.Lexical; v > score {
		score = v
	}
	if v := c.GraphScore * weights.Graph; v > score {
		score = v
	}
	c.Score = score
}
