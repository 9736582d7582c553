// Package extract implements the AST Extractor (C4): per-file tree-sitter
// parsing into declaration nodes, structural edges, and cyclomatic
// complexity, grounded on the teacher's internal/chunk parser/registry and
// the original dataflow/complexity analyzers.
package extract

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Point is a 0-indexed (row, column) position, mirroring tree-sitter's own.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a language-agnostic AST node: tree-sitter's node stripped down to
// what the extractor needs, so downstream passes never touch cgo-backed
// tree-sitter types directly.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	HasError   bool
	Children   []*Node
}

// Tree is a parsed file.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Content returns the source slice a node spans.
func (n *Node) Content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FindChildByType returns the first direct child with the given type.
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// Walk visits n and its descendants depth-first, pre-order. fn returning
// false stops descent into that subtree but sibling traversal continues.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// LanguageConfig names the tree-sitter node kinds a language uses for each
// declaration category the extractor emits nodes for (§4.4).
type LanguageConfig struct {
	Name            string
	FunctionTypes   []string
	MethodTypes     []string
	ClassTypes      []string // struct/class
	InterfaceTypes  []string // trait/interface
	EnumTypes       []string
	ModuleTypes     []string // module/package declarations
	ImportTypes     []string
	ConstantTypes   []string
	NameField       string
}

// registry is the process-wide language table, built once.
type registry struct {
	mu      sync.RWMutex
	configs map[string]*LanguageConfig
	ts      map[string]*sitter.Language
}

func (r *registry) register(cfg *LanguageConfig, ts *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.ts[cfg.Name] = ts
}

func (r *registry) get(name string) (*LanguageConfig, *sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	if !ok {
		return nil, nil, false
	}
	return cfg, r.ts[name], true
}

var defaultRegistry = buildRegistry()

func buildRegistry() *registry {
	r := &registry{configs: map[string]*LanguageConfig{}, ts: map[string]*sitter.Language{}}

	r.register(&LanguageConfig{
		Name:          "go",
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_declaration"},
		ClassTypes:    []string{"type_declaration"},
		ModuleTypes:   []string{"package_clause"},
		ImportTypes:   []string{"import_spec"},
		ConstantTypes: []string{"const_declaration"},
		NameField:     "name",
	}, golang.GetLanguage())

	r.register(&LanguageConfig{
		Name:           "typescript",
		FunctionTypes:  []string{"function_declaration"},
		MethodTypes:    []string{"method_definition"},
		ClassTypes:     []string{"class_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		EnumTypes:      []string{"enum_declaration"},
		ImportTypes:    []string{"import_statement"},
		ConstantTypes:  []string{"lexical_declaration"},
		NameField:      "name",
	}, typescript.GetLanguage())

	r.register(&LanguageConfig{
		Name:           "tsx",
		FunctionTypes:  []string{"function_declaration"},
		MethodTypes:    []string{"method_definition"},
		ClassTypes:     []string{"class_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		EnumTypes:      []string{"enum_declaration"},
		ImportTypes:    []string{"import_statement"},
		ConstantTypes:  []string{"lexical_declaration"},
		NameField:      "name",
	}, tsx.GetLanguage())

	r.register(&LanguageConfig{
		Name:          "javascript",
		FunctionTypes: []string{"function_declaration", "function"},
		MethodTypes:   []string{"method_definition"},
		ClassTypes:    []string{"class_declaration"},
		ImportTypes:   []string{"import_statement"},
		ConstantTypes: []string{"lexical_declaration"},
		NameField:     "name",
	}, javascript.GetLanguage())

	r.register(&LanguageConfig{
		Name:          "python",
		FunctionTypes: []string{"function_definition"},
		ClassTypes:    []string{"class_definition"},
		ImportTypes:   []string{"import_statement", "import_from_statement"},
		NameField:     "name",
	}, python.GetLanguage())

	r.register(&LanguageConfig{
		Name:          "java",
		MethodTypes:   []string{"method_declaration", "constructor_declaration"},
		ClassTypes:    []string{"class_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		EnumTypes:     []string{"enum_declaration"},
		ImportTypes:   []string{"import_declaration"},
		ConstantTypes: []string{"field_declaration"},
		NameField:     "name",
	}, java.GetLanguage())

	return r
}

// Registry returns the process-wide language registry.
func Registry() *registry { return defaultRegistry }

// SupportedLanguages lists the languages the extractor can parse.
func (r *registry) SupportedLanguages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.configs))
	for name := range r.configs {
		out = append(out, name)
	}
	return out
}

// Parser wraps a tree-sitter parser for one-file-at-a-time parsing. It is
// NOT safe for concurrent use; callers processing files concurrently (as
// ExtractAll's bounded worker pool does) must use one Parser per goroutine.
type Parser struct {
	ts *sitter.Parser
}

// NewParser constructs a fresh tree-sitter parser.
func NewParser() *Parser {
	return &Parser{ts: sitter.NewParser()}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	if p.ts != nil {
		p.ts.Close()
	}
}

// Parse parses source as language, returning a Tree. A tree-sitter parse
// never fails outright (it always produces some tree, possibly with ERROR
// nodes) so callers relying on Parse to catch malformed input should check
// Tree.Root.HasError rather than expect an error return for bad syntax.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (*Tree, error) {
	cfg, tsLang, ok := defaultRegistry.get(language)
	_ = cfg
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}
	p.ts.SetLanguage(tsLang)

	tsTree, err := p.ts.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("parse source: nil tree")
	}

	return &Tree{Root: convert(tsTree.RootNode()), Source: source, Language: language}, nil
}

func convert(n *sitter.Node) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Type:       n.Type(),
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: Point{Row: n.StartPoint().Row, Column: n.StartPoint().Column},
		EndPoint:   Point{Row: n.EndPoint().Row, Column: n.EndPoint().Column},
		HasError:   n.HasError(),
		Children:   make([]*Node, 0, int(n.ChildCount())),
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil {
			out.Children = append(out.Children, convert(child))
		}
	}
	return out
}
