package core

import "time"

// NodeType classifies a Node. The Other variant carries a free-form tag for
// kinds the closed set doesn't name (e.g. "package", "document").
type NodeType struct {
	tag   string
	other string
}

var (
	NodeTypeFunction  = NodeType{tag: "function"}
	NodeTypeStruct    = NodeType{tag: "struct"}
	NodeTypeInterface = NodeType{tag: "interface"}
	NodeTypeModule    = NodeType{tag: "module"}
	NodeTypeVariable  = NodeType{tag: "variable"}
	NodeTypeImport    = NodeType{tag: "import"}
	NodeTypeDocument  = NodeType{tag: "document"}
)

// OtherNodeType builds a NodeType for a tag outside the named set, e.g.
// OtherNodeType("package").
func OtherNodeType(tag string) NodeType {
	return NodeType{tag: "other", other: tag}
}

// String returns the wire/display representation: the tag itself, or the
// free-form value for Other.
func (t NodeType) String() string {
	if t.tag == "other" {
		return t.other
	}
	return t.tag
}

// IsOther reports whether this is an Other("...") variant.
func (t NodeType) IsOther() bool { return t.tag == "other" }

func (t NodeType) Equal(o NodeType) bool { return t.tag == o.tag && t.other == o.other }

// Language is a source language tag.
type Language string

const (
	LangRust       Language = "rust"
	LangPython     Language = "python"
	LangTypeScript Language = "typescript"
	LangJavaScript Language = "javascript"
	LangGo         Language = "go"
	LangJava       Language = "java"
	LangCPP        Language = "cpp"
	LangC          Language = "c"
	LangUnknown    Language = "unknown"
)

// Location describes where a node lives in its source file.
type Location struct {
	FilePath  string
	Line      uint32
	Column    uint32
	EndLine   *uint32
	EndColumn *uint32
}

// Metadata is the node/edge's ordered string->string attribute bag plus the
// small set of hot fields promoted to a typed sub-struct (§9 "runtime
// reflection... preserved as an ordered string->string map; introduce a
// typed sub-struct only for hot fields").
type Metadata struct {
	QualifiedName       string
	Analyzer            string
	AnalyzerConfidence  float32
	MethodOf            string
	ImplementsTrait     string
	FastMLPatterns      []string
	Attributes          *OrderedMap
}

// NewMetadata returns Metadata with an initialized, empty attribute map.
func NewMetadata() Metadata {
	return Metadata{Attributes: NewOrderedMap()}
}

// Node (CodeNode) is the unit the pipeline indexes: a function, type,
// module, variable, import, or synthetic document/package node.
type Node struct {
	ID         NodeId
	Name       string
	NodeType   *NodeType
	Language   *Language
	Location   Location
	Content    string
	Embedding  []float32
	Complexity *float32
	Metadata   Metadata
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewNode builds a Node, deriving a deterministic id when possible and
// falling back to a random one otherwise (§3 invariant on NodeId).
func NewNode(projectID, name string, nodeType *NodeType, lang *Language, loc Location) Node {
	n := Node{
		Name:     name,
		NodeType: nodeType,
		Language: lang,
		Location: loc,
		Metadata: NewMetadata(),
	}
	qn := loc.FilePath + "::" + name
	if CanDeriveDeterministicId(projectID, qn, loc.FilePath) {
		n.ID = DeterministicNodeId(projectID, qn, loc.FilePath, loc.Line)
	} else {
		n.ID = NewRandomNodeId()
	}
	return n
}

// WithDeterministicID recomputes n.ID from the node's own qualified name
// (falling back to Name) once that's known, mirroring the teacher's
// builder-style `with_*` methods.
func (n *Node) WithDeterministicID(projectID string) *Node {
	qn := n.Metadata.QualifiedName
	if qn == "" {
		qn = n.Name
	}
	if CanDeriveDeterministicId(projectID, qn, n.Location.FilePath) {
		n.ID = DeterministicNodeId(projectID, qn, n.Location.FilePath, n.Location.Line)
	}
	return n
}

// EdgeType is the closed set of structural/derived relationship kinds, with
// an Other(tag) escape hatch (e.g. "depends_on", "violates_boundary").
type EdgeType struct {
	tag   string
	other string
}

var (
	EdgeCalls            = EdgeType{tag: "calls"}
	EdgeUses             = EdgeType{tag: "uses"}
	EdgeDefines          = EdgeType{tag: "defines"}
	EdgeImplements       = EdgeType{tag: "implements"}
	EdgeExtends          = EdgeType{tag: "extends"}
	EdgeContains         = EdgeType{tag: "contains"}
	EdgeImports          = EdgeType{tag: "imports"}
	EdgeDependsOn        = EdgeType{tag: "depends_on"}
	EdgeDocuments        = EdgeType{tag: "documents"}
	EdgeSpecifies        = EdgeType{tag: "specifies"}
	EdgeFlowsTo          = EdgeType{tag: "flows_to"}
	EdgeMutates          = EdgeType{tag: "mutates"}
	EdgeReturns          = EdgeType{tag: "returns"}
	EdgeViolatesBoundary = EdgeType{tag: "violates_boundary"}
)

// OtherEdgeType builds an EdgeType for a tag outside the named set.
func OtherEdgeType(tag string) EdgeType {
	return EdgeType{tag: "other", other: tag}
}

func (t EdgeType) String() string {
	if t.tag == "other" {
		return t.other
	}
	return t.tag
}

func (t EdgeType) Equal(o EdgeType) bool { return t.tag == o.tag && t.other == o.other }

// EdgeTarget is either a resolved NodeId or a late-bound string symbol
// (§3 invariant I3: unresolved targets are retained with a marker so the
// Symbol Indexer can re-resolve them).
type EdgeTarget struct {
	NodeID   *NodeId
	Symbol   string
	Resolved bool
}

// ResolvedTarget builds an already-resolved edge target.
func ResolvedTarget(id NodeId) EdgeTarget {
	return EdgeTarget{NodeID: &id, Resolved: true}
}

// UnresolvedTarget builds a late-bound string-symbol edge target.
func UnresolvedTarget(symbol string) EdgeTarget {
	return EdgeTarget{Symbol: symbol, Resolved: false}
}

// Edge is a directed relationship between two nodes (or a node and an
// unresolved symbol).
type Edge struct {
	From     NodeId
	To       EdgeTarget
	EdgeType EdgeType
	Metadata Metadata
	Span     []byte
}

// SourceFile describes a file discovered by the walker.
type SourceFile struct {
	Path        string
	Language    Language
	Size        int64
	ContentHash string
}

// Project is an opaque scoping id; all writes and queries are scoped by it.
type Project string

// SearchSource names which subsystem produced a SearchCandidate.
type SearchSource string

const (
	SourceVector   SearchSource = "vector"
	SourceLexical  SearchSource = "lexical"
	SourceSymbol   SearchSource = "symbol"
	SourceReranked SearchSource = "reranked"
)

// SearchCandidate is a scored node produced somewhere in the retrieval
// pipeline.
type SearchCandidate struct {
	NodeID   NodeId
	Score    float64
	Sources  []SearchSource
	Metadata map[string]string
}
