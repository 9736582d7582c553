package graphsvc

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// Call is the single external dispatch surface for agent tool-call
// arguments: a tool name and an untyped parameter bag, decoded the way the
// teacher's MCP server decodes JSON-RPC args (args["x"].(float64) for
// numbers, args["x"].(string) for strings) before being routed to the
// matching typed method in service.go. A successful call returns a filled
// Envelope; a call that fails validation or storage returns a zero Envelope
// and the error.
func (s *Service) Call(project core.Project, tool string, args map[string]any) (Envelope, error) {
	switch tool {
	case ToolTransitiveDependencies:
		id, err := nodeIDArg(args, "node_id")
		if err != nil {
			return Envelope{}, err
		}
		return s.TransitiveDependencies(project, id, stringArg(args, "edge_type"), intArg(args, "depth", 1))

	case ToolReverseDependencies:
		id, err := nodeIDArg(args, "node_id")
		if err != nil {
			return Envelope{}, err
		}
		return s.ReverseDependencies(project, id, stringArg(args, "edge_type"), intArg(args, "depth", 1))

	case ToolDetectCycles:
		return s.DetectCycles(project, stringArg(args, "edge_type"))

	case ToolCouplingMetrics:
		id, err := nodeIDArg(args, "node_id")
		if err != nil {
			return Envelope{}, err
		}
		return s.CouplingMetrics(project, id)

	case ToolHubNodes:
		return s.HubNodes(project, intArg(args, "min_degree", 0))

	case ToolTraceCallChain:
		id, err := nodeIDArg(args, "from")
		if err != nil {
			return Envelope{}, err
		}
		return s.TraceCallChain(project, id, intArg(args, "max_depth", 1))

	default:
		return Envelope{}, core.New(core.KindValidation, fmt.Sprintf("unknown graph analysis tool %q", tool))
	}
}

func nodeIDArg(args map[string]any, key string) (core.NodeId, error) {
	raw, ok := args[key].(string)
	if !ok || raw == "" {
		return core.Nil, core.New(core.KindValidation, fmt.Sprintf("%s parameter is required and must be a non-empty string", key))
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return core.Nil, core.New(core.KindValidation, fmt.Sprintf("%s is not a valid node id: %v", key, err))
	}
	return core.NodeId(parsed), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg decodes a JSON-decoded numeric argument (always float64 once past
// encoding/json) or passes through an already-int value, falling back to
// def when absent.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
