package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/internal/graphsvc"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		nodeID   string
		edgeType string
		depth    int
		minDeg   int
		path     string
	)

	cmd := &cobra.Command{
		Use:   "analyze <tool>",
		Short: "Run a graph analysis tool against an indexed project",
		Long: fmt.Sprintf(`Analyze runs one of the graph analysis tools directly from the CLI,
the same ones an agent reaches over MCP:

  %s
  %s
  %s
  %s
  %s
  %s

Flags select the tool's parameters; unused ones are ignored per tool.`,
			graphsvc.ToolTransitiveDependencies,
			graphsvc.ToolReverseDependencies,
			graphsvc.ToolDetectCycles,
			graphsvc.ToolCouplingMetrics,
			graphsvc.ToolHubNodes,
			graphsvc.ToolTraceCallChain),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyzeCmd(cmd, args[0], path, nodeID, edgeType, depth, minDeg)
		},
	}

	cmd.Flags().StringVar(&nodeID, "node", "", "Node id (required by most tools)")
	cmd.Flags().StringVar(&edgeType, "edge-type", "", "Edge type filter (e.g. calls, imports)")
	cmd.Flags().IntVar(&depth, "depth", 1, "Traversal depth")
	cmd.Flags().IntVar(&minDeg, "min-degree", 0, "Minimum degree for hub_nodes")
	cmd.Flags().StringVar(&path, "path", ".", "Project directory")

	return cmd
}

func runAnalyzeCmd(cmd *cobra.Command, tool, path, nodeID, edgeType string, depth, minDeg int) error {
	ctx := cmd.Context()
	root := resolveRootFrom(path)
	dataDir := dataDirFor(root)
	if !hasIndex(dataDir) {
		return fmt.Errorf("project is not indexed yet; run 'codegraph index' first")
	}

	cfg := loadProjectConfig(root)
	embedder, closeEmbedder, err := buildEmbedder(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = closeEmbedder() }()

	engine := storage.NewEngine(dataDir)
	o := buildOrchestrator(engine, embedder)

	params := map[string]any{}
	if nodeID != "" {
		params["node_id"] = nodeID
		params["from"] = nodeID
	}
	if edgeType != "" {
		params["edge_type"] = edgeType
	}
	if depth > 0 {
		params["depth"] = float64(depth)
		params["max_depth"] = float64(depth)
	}
	if minDeg > 0 {
		params["min_degree"] = float64(minDeg)
	}

	envelope, err := o.Analyze(projectID(root), tool, params)
	if err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(envelope)
}
