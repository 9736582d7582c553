package graphsvc

import (
	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

// Tool names dispatched by Service.Call, grounded on the teacher's snake_case
// tool naming (mcp.Server's "search_code"/"search_docs"/"index_status").
const (
	ToolTransitiveDependencies = "transitive_dependencies"
	ToolReverseDependencies    = "reverse_dependencies"
	ToolDetectCycles           = "detect_cycles"
	ToolCouplingMetrics        = "coupling_metrics"
	ToolHubNodes               = "hub_nodes"
	ToolTraceCallChain         = "trace_call_chain"
)

// Envelope is the uniform result shape every Graph Analysis Service call
// returns (§4.12): the tool invoked, its validated parameters (echoed back
// for the calling agent's own logging), and the tool's result.
type Envelope struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Result     any            `json:"result"`
}

// Backend is the narrow slice of the Storage Engine (C9) these services
// wrap.
type Backend interface {
	TransitiveDependencies(project core.Project, id core.NodeId, edgeType core.EdgeType, depth int) ([]core.NodeId, error)
	ReverseDependencies(project core.Project, id core.NodeId, edgeType core.EdgeType, depth int) ([]core.NodeId, error)
	DetectCycles(project core.Project, edgeType core.EdgeType) ([][]core.NodeId, error)
	CouplingMetrics(project core.Project, id core.NodeId) (storage.CouplingMetrics, error)
	HubNodes(project core.Project, minDegree int) ([]core.NodeId, error)
	TraceCallChain(project core.Project, from core.NodeId, maxDepth int) ([]core.NodeId, error)
}

// Service is the Graph Analysis Services dispatch surface (C12).
type Service struct {
	backend Backend
}

// New builds a Service over a Storage Engine backend.
func New(backend Backend) *Service {
	return &Service{backend: backend}
}
