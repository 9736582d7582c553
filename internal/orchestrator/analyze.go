package orchestrator

import (
	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/graphsvc"
)

// Analyze runs the Graph Analysis Services (C12) for one of the §4.12 tool
// names, returning its {tool, parameters, result} envelope (§6
// "analyze(GraphToolRequest{tool, parameters}) → GraphToolResponse").
func (o *Orchestrator) Analyze(project core.Project, tool string, params map[string]any) (graphsvc.Envelope, error) {
	return o.graph.Call(project, tool, params)
}
