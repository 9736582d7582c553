package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/orchestrator"
	"github.com/codegraph-dev/codegraph/pkg/version"
)

// Server is the MCP server for CodeGraph. It bridges AI clients (Claude
// Code, Cursor) with the Query Orchestrator (C14), exposing search, graph
// analysis, and index status as MCP tools plus project files as resources.
type Server struct {
	mcp          *mcp.Server
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger

	project  core.Project
	rootPath string

	defaultTier orchestrator.ContextTier

	// Last completed index run, nil until Index has run at least once.
	lastIndex *orchestrator.IndexStats

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server fronting the given Orchestrator.
// project identifies which project's index the server queries; rootPath is
// used for both resource registration and project-type detection (go.mod,
// package.json, etc.).
func NewServer(orch *orchestrator.Orchestrator, project core.Project, rootPath string) (*Server, error) {
	if orch == nil {
		return nil, errors.New("orchestrator is required")
	}

	s := &Server{
		orchestrator: orch,
		project:      project,
		rootPath:     rootPath,
		defaultTier:  orchestrator.TierMedium,
		logger:       slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "CodeGraph",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools/resources
	)

	s.registerTools()
	s.registerQueryMetricsResource()

	return s, nil
}

// RecordIndexStats stores the stats from the most recent Index run so
// index_status can report them without re-indexing.
func (s *Server) RecordIndexStats(stats orchestrator.IndexStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIndex = &stats
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "CodeGraph", version.Version
}

// Capabilities returns whether tools and resources are enabled.
func (s *Server) Capabilities() (hasTools, hasResources bool) {
	return true, true
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "search",
			Description: "Primary search tool. Runs the hybrid vector+lexical+graph retriever over the codebase index and returns reranked results. Faster and more precise than grep for finding code by meaning.",
		},
		{
			Name:        "analyze",
			Description: "Graph analysis tool. Runs a named graph query (transitive_dependencies, reverse_dependencies, detect_cycles, coupling_metrics, hub_nodes, trace_call_chain) against the code graph.",
		},
		{
			Name:        "index_status",
			Description: "Check whether the codebase index is built and inspect the stats from the last index run. Use before searching to confirm the index is ready.",
		},
	}
}

// CallTool invokes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch name {
	case "search":
		return s.handleSearchTool(ctx, args)
	case "analyze":
		return s.handleAnalyzeTool(ctx, args)
	case "index_status":
		return s.handleIndexStatusTool(ctx, args)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// handleSearchTool handles the search tool invocation, returning
// markdown-formatted results.
func (s *Server) handleSearchTool(ctx context.Context, args map[string]any) (string, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "", NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	limit := clampLimit(0, 10, 1, 100)
	if l, ok := args["limit"].(float64); ok {
		limit = clampLimit(int(l), 10, 1, 100)
	}

	project := s.project
	if p, ok := args["project"].(string); ok && p != "" {
		project = core.Project(p)
	}

	requestID := generateRequestID()
	start := time.Now()
	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("limit", limit))

	results, err := s.orchestrator.Search(ctx, orchestrator.SearchRequest{
		Query:   query,
		Project: project,
		Limits:  orchestrator.SearchLimits{Limit: limit, Tier: s.defaultTier},
	})
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", MapError(err)
	}

	resolved := s.resolveResults(project, results.Results)

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(resolved)))

	return FormatSearchResults(query, resolved), nil
}

// handleAnalyzeTool handles the analyze tool invocation.
func (s *Server) handleAnalyzeTool(_ context.Context, args map[string]any) (*AnalyzeOutput, error) {
	tool, ok := args["tool"].(string)
	if !ok || tool == "" {
		return nil, NewInvalidParamsError("tool parameter is required")
	}

	project := s.project
	if p, ok := args["project"].(string); ok && p != "" {
		project = core.Project(p)
	}

	var params map[string]any
	if p, ok := args["params"].(map[string]any); ok {
		params = p
	}

	envelope, err := s.orchestrator.Analyze(project, tool, params)
	if err != nil {
		return nil, MapError(err)
	}

	return &AnalyzeOutput{Tool: envelope.Tool, Result: envelope.Result}, nil
}

// handleIndexStatusTool handles the index_status tool invocation.
func (s *Server) handleIndexStatusTool(_ context.Context, _ map[string]any) (*IndexStatusOutput, error) {
	requestID := generateRequestID()
	s.logger.Info("index_status started", slog.String("request_id", requestID))

	detector := NewProjectDetector(s.rootPath, s.logger)
	projectInfo := detector.Detect()

	output := &IndexStatusOutput{Project: *projectInfo}
	if s.lastIndex != nil {
		output.Stats = IndexStats{
			FilesScanned: s.lastIndex.FilesScanned,
			ParsedFiles:  s.lastIndex.ParsedFiles,
			FailedFiles:  s.lastIndex.FailedFiles,
			NodesAdded:   s.lastIndex.NodesAdded,
			EdgesAdded:   s.lastIndex.EdgesAdded,
			Symbols:      s.lastIndex.Symbols,
			ParseSeconds: s.lastIndex.ParseSeconds,
			LastIndexed:  time.Now().Format(time.RFC3339),
		}
	}

	s.logger.Info("index_status completed",
		slog.String("request_id", requestID),
		slog.String("project_name", projectInfo.Name),
		slog.String("project_type", projectInfo.Type))

	return output, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Primary search tool. Runs the hybrid vector+lexical+graph retriever over the codebase index and returns reranked results. Faster and more precise than grep for finding code by meaning.",
	}, s.mcpSearchHandler)
	s.logger.Debug("registered tool", slog.String("name", "search"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analyze",
		Description: "Graph analysis tool. Runs a named graph query (transitive_dependencies, reverse_dependencies, detect_cycles, coupling_metrics, hub_nodes, trace_call_chain) against the code graph.",
	}, s.mcpAnalyzeHandler)
	s.logger.Debug("registered tool", slog.String("name", "analyze"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Check whether the codebase index is built and inspect the stats from the last index run. Use before searching to confirm the index is ready.",
	}, s.mcpIndexStatusHandler)
	s.logger.Debug("registered tool", slog.String("name", "index_status"))

	s.logger.Info("MCP tools registered", slog.Int("count", 3))
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	project := s.project
	if input.Project != "" {
		project = core.Project(input.Project)
	}

	limit := clampLimit(input.Limit, 10, 1, 100)
	results, err := s.orchestrator.Search(ctx, orchestrator.SearchRequest{
		Query:   input.Query,
		Project: project,
		Limits:  orchestrator.SearchLimits{Limit: limit, Tier: s.defaultTier},
	})
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	resolved := s.resolveResults(project, results.Results)

	output := SearchOutput{
		Results:  make([]SearchResultOutput, 0, len(resolved)),
		Insights: results.Insights,
	}
	for _, r := range resolved {
		output.Results = append(output.Results, toSearchResultOutput(r))
	}

	return nil, output, nil
}

// mcpAnalyzeHandler is the MCP SDK handler for the analyze tool.
func (s *Server) mcpAnalyzeHandler(_ context.Context, _ *mcp.CallToolRequest, input AnalyzeInput) (
	*mcp.CallToolResult,
	AnalyzeOutput,
	error,
) {
	if input.Tool == "" {
		return nil, AnalyzeOutput{}, NewInvalidParamsError("tool parameter is required")
	}

	project := s.project
	if input.Project != "" {
		project = core.Project(input.Project)
	}

	envelope, err := s.orchestrator.Analyze(project, input.Tool, input.Params)
	if err != nil {
		return nil, AnalyzeOutput{}, MapError(err)
	}

	return nil, AnalyzeOutput{Tool: envelope.Tool, Result: envelope.Result}, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	output, err := s.handleIndexStatusTool(ctx, nil)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, output, nil
}

// resolveResults fetches the full node for every RankedResult so format.go
// and the output schema can report file paths, content, and symbol names.
// A result whose node has since been deleted from storage is dropped rather
// than surfaced with empty fields.
func (s *Server) resolveResults(project core.Project, ranked []orchestrator.RankedResult) []resolvedResult {
	resolved := make([]resolvedResult, 0, len(ranked))
	for _, r := range ranked {
		node, found, err := s.orchestrator.Node(project, r.NodeID)
		if err != nil || !found {
			continue
		}
		resolved = append(resolved, resolvedResult{RankedResult: r, Node: node})
	}
	return resolved
}

// registerQueryMetricsResource registers a resource exposing a JSON snapshot
// of the Storage Engine's rolling query metrics (§9.3): retrieval-kind
// counts, zero-result rate, and a latency histogram, read straight from the
// Orchestrator's Storage Engine rather than a separate transport-level
// collector.
func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         "metrics://query",
			Description: "Storage Engine query metrics: retrieval-kind counts, zero-result rate, latency histogram.",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			snap := s.orchestrator.QueryMetrics()
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return nil, MapError(err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{
					URI:      "metrics://query",
					MIMEType: "application/json",
					Text:     string(data),
				}},
			}, nil
		},
	)
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("starting MCP server",
		slog.String("transport", transport),
		slog.String("addr", addr))

	switch transport {
	case "stdio":
		s.logger.Debug("using stdio transport for JSON-RPC")
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	case "sse":
		return fmt.Errorf("SSE transport not yet implemented")
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
