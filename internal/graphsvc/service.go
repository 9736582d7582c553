package graphsvc

import (
	"github.com/codegraph-dev/codegraph/internal/core"
)

// TransitiveDependencies wraps Backend.TransitiveDependencies (§4.9) with
// depth and edge-type validation.
func (s *Service) TransitiveDependencies(project core.Project, id core.NodeId, edgeType string, depth int) (Envelope, error) {
	params := map[string]any{"node_id": id.String(), "edge_type": edgeType, "depth": depth}

	if err := validateDepth("depth", depth); err != nil {
		return Envelope{}, err
	}
	et, err := validateEdgeType(edgeType)
	if err != nil {
		return Envelope{}, err
	}

	result, err := s.backend.TransitiveDependencies(project, id, et, depth)
	if err != nil {
		return Envelope{}, core.Wrap(core.KindStorage, "transitive dependencies", err)
	}
	return Envelope{Tool: ToolTransitiveDependencies, Parameters: params, Result: idStrings(result)}, nil
}

// ReverseDependencies wraps Backend.ReverseDependencies (§4.9) with depth
// and edge-type validation.
func (s *Service) ReverseDependencies(project core.Project, id core.NodeId, edgeType string, depth int) (Envelope, error) {
	params := map[string]any{"node_id": id.String(), "edge_type": edgeType, "depth": depth}

	if err := validateDepth("depth", depth); err != nil {
		return Envelope{}, err
	}
	et, err := validateEdgeType(edgeType)
	if err != nil {
		return Envelope{}, err
	}

	result, err := s.backend.ReverseDependencies(project, id, et, depth)
	if err != nil {
		return Envelope{}, core.Wrap(core.KindStorage, "reverse dependencies", err)
	}
	return Envelope{Tool: ToolReverseDependencies, Parameters: params, Result: idStrings(result)}, nil
}

// DetectCycles wraps Backend.DetectCycles (§4.9) with edge-type validation.
func (s *Service) DetectCycles(project core.Project, edgeType string) (Envelope, error) {
	params := map[string]any{"edge_type": edgeType}

	et, err := validateEdgeType(edgeType)
	if err != nil {
		return Envelope{}, err
	}

	cycles, err := s.backend.DetectCycles(project, et)
	if err != nil {
		return Envelope{}, core.Wrap(core.KindStorage, "detect cycles", err)
	}

	out := make([][]string, len(cycles))
	for i, c := range cycles {
		out[i] = idStrings(c)
	}
	return Envelope{Tool: ToolDetectCycles, Parameters: params, Result: out}, nil
}

// CouplingMetrics wraps Backend.CouplingMetrics (§4.9). The node id is the
// only parameter; there is no depth or edge-type to validate.
func (s *Service) CouplingMetrics(project core.Project, id core.NodeId) (Envelope, error) {
	params := map[string]any{"node_id": id.String()}

	metrics, err := s.backend.CouplingMetrics(project, id)
	if err != nil {
		return Envelope{}, core.Wrap(core.KindStorage, "coupling metrics", err)
	}
	return Envelope{Tool: ToolCouplingMetrics, Parameters: params, Result: metrics}, nil
}

// HubNodes wraps Backend.HubNodes (§4.9) with a non-negative threshold
// check.
func (s *Service) HubNodes(project core.Project, minDegree int) (Envelope, error) {
	params := map[string]any{"min_degree": minDegree}

	if err := validateMinDegree(minDegree); err != nil {
		return Envelope{}, err
	}

	result, err := s.backend.HubNodes(project, minDegree)
	if err != nil {
		return Envelope{}, core.Wrap(core.KindStorage, "hub nodes", err)
	}
	return Envelope{Tool: ToolHubNodes, Parameters: params, Result: idStrings(result)}, nil
}

// TraceCallChain wraps Backend.TraceCallChain (§4.9) with the same depth
// bound as the other traversal tools.
func (s *Service) TraceCallChain(project core.Project, from core.NodeId, maxDepth int) (Envelope, error) {
	params := map[string]any{"from": from.String(), "max_depth": maxDepth}

	if err := validateDepth("max_depth", maxDepth); err != nil {
		return Envelope{}, err
	}

	result, err := s.backend.TraceCallChain(project, from, maxDepth)
	if err != nil {
		return Envelope{}, core.Wrap(core.KindStorage, "trace call chain", err)
	}
	return Envelope{Tool: ToolTraceCallChain, Parameters: params, Result: idStrings(result)}, nil
}

func idStrings(ids []core.NodeId) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
