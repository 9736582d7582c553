package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/internal/orchestrator"
	"github.com/codegraph-dev/codegraph/internal/output"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

func newSearchCmd() *cobra.Command {
	var (
		limit    int
		tierName string
		jsonOut  bool
		path     string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search an indexed project",
		Long: `Search runs a hybrid lexical+vector query against an indexed project
and prints the ranked results. Results are tiered to a target context
window (small/medium/large/massive); pick the tier that matches the
agent calling it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearchCmd(cmd, args[0], path, limit, tierName, jsonOut)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results to return (0 = tier default)")
	cmd.Flags().StringVar(&tierName, "tier", "small", "Context tier: small, medium, large, massive")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	cmd.Flags().StringVar(&path, "path", ".", "Project directory")

	return cmd
}

func parseTier(name string) orchestrator.ContextTier {
	switch strings.ToLower(name) {
	case "medium":
		return orchestrator.TierMedium
	case "large":
		return orchestrator.TierLarge
	case "massive":
		return orchestrator.TierMassive
	default:
		return orchestrator.TierSmall
	}
}

func runSearchCmd(cmd *cobra.Command, query, path string, limit int, tierName string, jsonOut bool) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	root := resolveRootFrom(path)
	dataDir := dataDirFor(root)
	if !hasIndex(dataDir) {
		return fmt.Errorf("project is not indexed yet; run 'codegraph index' first")
	}

	cfg := loadProjectConfig(root)
	embedder, closeEmbedder, err := buildEmbedder(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = closeEmbedder() }()

	engine := storage.NewEngine(dataDir)
	o := buildOrchestrator(engine, embedder)

	results, err := o.Search(ctx, orchestrator.SearchRequest{
		Query:   query,
		Project: projectID(root),
		Limits:  orchestrator.SearchLimits{Limit: limit, Tier: parseTier(tierName)},
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOut {
		return printSearchJSON(cmd, o, root, results)
	}
	printSearchText(out, o, root, results)
	return nil
}

type searchResultJSON struct {
	NodeID       string   `json:"node_id"`
	Name         string   `json:"name"`
	Path         string   `json:"path"`
	Line         uint32   `json:"line"`
	Score        float64  `json:"score"`
	MatchSources []string `json:"match_sources"`
}

func printSearchJSON(cmd *cobra.Command, o *orchestrator.Orchestrator, root string, results orchestrator.RankedResults) error {
	entries := make([]searchResultJSON, 0, len(results.Results))
	for _, r := range results.Results {
		node, ok, err := o.Node(projectID(root), r.NodeID)
		if err != nil || !ok {
			continue
		}
		entries = append(entries, searchResultJSON{
			NodeID:       string(r.NodeID),
			Name:         node.Name,
			Path:         node.Location.FilePath,
			Line:         node.Location.Line,
			Score:        r.Score,
			MatchSources: r.MatchSources,
		})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func printSearchText(out *output.Writer, o *orchestrator.Orchestrator, root string, results orchestrator.RankedResults) {
	if len(results.Results) == 0 {
		out.Warning("No results found")
		return
	}

	for i, r := range results.Results {
		node, ok, err := o.Node(projectID(root), r.NodeID)
		if err != nil || !ok {
			continue
		}
		out.Statusf("", "%d. %s:%d  %s  (score %.3f, via %s)",
			i+1, node.Location.FilePath, node.Location.Line, node.Name, r.Score, strings.Join(r.MatchSources, "+"))
		if snippet := firstLines(node.Content, 3); snippet != "" {
			out.Code(snippet)
		}
	}
	out.Newline()
	out.Status("", fmt.Sprintf("search: %.1fms  rerank: %.1fms", results.Timings.SearchMs, results.Timings.RerankMs))
}

func firstLines(content string, n int) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
