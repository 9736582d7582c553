package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query   string `json:"query" jsonschema:"the search query to execute"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Project string `json:"project,omitempty" jsonschema:"project identifier to search within, defaults to the server's configured project"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results  []SearchResultOutput `json:"results" jsonschema:"list of ranked results"`
	Insights string               `json:"insights,omitempty" jsonschema:"narrative synthesis across top results, present only at larger context tiers"`
}

// SearchResultOutput defines a single search result with context-rich metadata.
type SearchResultOutput struct {
	FilePath     string   `json:"file_path" jsonschema:"file path relative to project root"`
	Line         uint32   `json:"line" jsonschema:"starting line of the matched node"`
	Content      string   `json:"content" jsonschema:"matched node content"`
	Score        float64  `json:"score" jsonschema:"fused relevance score"`
	Language     string   `json:"language,omitempty" jsonschema:"programming language of the file"`
	Symbol       string   `json:"symbol,omitempty" jsonschema:"node name"`
	SymbolType   string   `json:"symbol_type,omitempty" jsonschema:"node type: function, struct, interface, module, variable, import, document"`
	QualifiedName string  `json:"qualified_name,omitempty" jsonschema:"fully qualified name"`
	MatchSources []string `json:"match_sources,omitempty" jsonschema:"which retrieval sources surfaced this result: vector, lexical, graph"`
}

// AnalyzeInput defines the input schema for the analyze tool.
type AnalyzeInput struct {
	Tool    string         `json:"tool" jsonschema:"graph analysis tool name, e.g. transitive_dependencies, reverse_dependencies, detect_cycles, coupling_metrics, hub_nodes, trace_call_chain"`
	Params  map[string]any `json:"params,omitempty" jsonschema:"tool-specific parameters"`
	Project string         `json:"project,omitempty" jsonschema:"project identifier, defaults to the server's configured project"`
}

// AnalyzeOutput defines the output schema for the analyze tool.
type AnalyzeOutput struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Project ProjectInfo `json:"project"`
	Stats   IndexStats  `json:"stats"`
}

// ProjectInfo contains information about the indexed project.
type ProjectInfo struct {
	Name     string `json:"name"`
	RootPath string `json:"root_path"`
	Type     string `json:"type"`
}

// IndexStats mirrors the Orchestrator's last IndexStats (§6), reported back
// over MCP so a client can tell whether it's safe to search yet.
type IndexStats struct {
	FilesScanned int     `json:"files_scanned"`
	ParsedFiles  int     `json:"parsed_files"`
	FailedFiles  int     `json:"failed_files"`
	NodesAdded   int     `json:"nodes_added"`
	EdgesAdded   int     `json:"edges_added"`
	Symbols      int     `json:"symbols"`
	ParseSeconds float64 `json:"parse_seconds"`
	LastIndexed  string  `json:"last_indexed"`
}
