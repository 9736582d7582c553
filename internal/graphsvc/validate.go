package graphsvc

import (
	"fmt"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// minDepth and maxDepth bound every depth/max-depth parameter accepted by
// these services (§4.12 "depth ∈ [1,10]").
const (
	minDepth = 1
	maxDepth = 10
)

// namedEdgeTypes is the closed set §4.12 validates edge_type against. An
// empty string is accepted separately as "no filter, match every edge
// type" — the same wildcard the Storage Engine's own matchesEdgeType
// already treats the zero-value EdgeType as.
var namedEdgeTypes = map[string]core.EdgeType{
	core.EdgeCalls.String():            core.EdgeCalls,
	core.EdgeUses.String():             core.EdgeUses,
	core.EdgeDefines.String():          core.EdgeDefines,
	core.EdgeImplements.String():       core.EdgeImplements,
	core.EdgeExtends.String():          core.EdgeExtends,
	core.EdgeContains.String():         core.EdgeContains,
	core.EdgeImports.String():          core.EdgeImports,
	core.EdgeDependsOn.String():        core.EdgeDependsOn,
	core.EdgeDocuments.String():        core.EdgeDocuments,
	core.EdgeSpecifies.String():        core.EdgeSpecifies,
	core.EdgeFlowsTo.String():          core.EdgeFlowsTo,
	core.EdgeMutates.String():          core.EdgeMutates,
	core.EdgeReturns.String():          core.EdgeReturns,
	core.EdgeViolatesBoundary.String(): core.EdgeViolatesBoundary,
}

// validateDepth rejects anything outside [1,10].
func validateDepth(field string, depth int) error {
	if depth < minDepth || depth > maxDepth {
		return core.New(core.KindValidation, fmt.Sprintf("%s must be between %d and %d, got %d", field, minDepth, maxDepth, depth))
	}
	return nil
}

// validateEdgeType accepts "" as the match-all wildcard and otherwise
// requires membership in the closed set of named edge types.
func validateEdgeType(tag string) (core.EdgeType, error) {
	if tag == "" {
		return core.EdgeType{}, nil
	}
	et, ok := namedEdgeTypes[tag]
	if !ok {
		return core.EdgeType{}, core.New(core.KindValidation, fmt.Sprintf("edge_type %q is not a recognized edge type", tag))
	}
	return et, nil
}

// validateMinDegree rejects a negative hub-node threshold.
func validateMinDegree(minDegree int) error {
	if minDegree < 0 {
		return core.New(core.KindValidation, fmt.Sprintf("min_degree must be non-negative, got %d", minDegree))
	}
	return nil
}
