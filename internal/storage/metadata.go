package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/symbols"
)

// metadataStore persists one project's nodes and edges in SQLite and keeps
// an in-memory adjacency cache so get_neighbors and the graph analytics
// operations stay O(neighbors) instead of round-tripping through SQL on
// every call, mirroring the teacher's pattern of an in-process index backed
// by an on-disk store (coder/hnsw's Graph, Bleve's index).
type metadataStore struct {
	mu sync.RWMutex
	db *sql.DB

	nodes map[core.NodeId]core.Node
	out   map[core.NodeId][]core.Edge // outgoing edges, indexed by From
	in    map[core.NodeId][]core.Edge // incoming edges, indexed by resolved To

	byFile map[string]map[core.NodeId]struct{}
}

func newMetadataStore(path string) (*metadataStore, error) {
	dsn := path
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create metadata store directory %s: %w", dir, err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	m := &metadataStore{
		db:     db,
		nodes:  make(map[core.NodeId]core.Node),
		out:    make(map[core.NodeId][]core.Edge),
		in:     make(map[core.NodeId][]core.Edge),
		byFile: make(map[string]map[core.NodeId]struct{}),
	}
	if err := m.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := m.loadAll(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (m *metadataStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		name TEXT,
		node_type TEXT,
		language TEXT,
		file_path TEXT,
		line INTEGER,
		col INTEGER,
		end_line INTEGER,
		end_column INTEGER,
		content TEXT,
		complexity REAL,
		has_complexity INTEGER,
		metadata TEXT,
		created_at TEXT,
		updated_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file_path);

	CREATE TABLE IF NOT EXISTS edges (
		from_id TEXT,
		to_id TEXT,
		to_symbol TEXT,
		resolved INTEGER,
		edge_type TEXT,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id);
	CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);
	`
	_, err := m.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("init metadata schema: %w", err)
	}
	return nil
}

// loadAll rebuilds the in-memory node/edge/adjacency caches from SQLite,
// run once at startup so a reopened store behaves identically to one that
// never restarted.
func (m *metadataStore) loadAll() error {
	rows, err := m.db.Query(`SELECT id, name, node_type, language, file_path, line, col, end_line, end_column, content, complexity, has_complexity, metadata, created_at, updated_at FROM nodes`)
	if err != nil {
		return fmt.Errorf("load nodes: %w", err)
	}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			rows.Close()
			return err
		}
		m.indexNode(n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	erows, err := m.db.Query(`SELECT from_id, to_id, to_symbol, resolved, edge_type, metadata FROM edges`)
	if err != nil {
		return fmt.Errorf("load edges: %w", err)
	}
	defer erows.Close()
	for erows.Next() {
		e, err := scanEdge(erows)
		if err != nil {
			return err
		}
		m.indexEdge(e)
	}
	return erows.Err()
}

func (m *metadataStore) indexNode(n core.Node) {
	m.nodes[n.ID] = n
	if n.Location.FilePath != "" {
		set, ok := m.byFile[n.Location.FilePath]
		if !ok {
			set = make(map[core.NodeId]struct{})
			m.byFile[n.Location.FilePath] = set
		}
		set[n.ID] = struct{}{}
	}
}

func (m *metadataStore) indexEdge(e core.Edge) {
	m.out[e.From] = append(m.out[e.From], e)
	if e.To.Resolved && e.To.NodeID != nil {
		m.in[*e.To.NodeID] = append(m.in[*e.To.NodeID], e)
	}
}

// UpsertNodes inserts or replaces nodes by NodeId, updating updated_at and
// merging metadata attributes by key with last-write-wins (§4.9).
func (m *metadataStore) UpsertNodes(ctx context.Context, nodes []core.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert_nodes: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, name, node_type, language, file_path, line, col, end_line, end_column, content, complexity, has_complexity, metadata, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, node_type=excluded.node_type, language=excluded.language,
			file_path=excluded.file_path, line=excluded.line, col=excluded.col,
			end_line=excluded.end_line, end_column=excluded.end_column,
			content=excluded.content, complexity=excluded.complexity,
			has_complexity=excluded.has_complexity, metadata=excluded.metadata,
			updated_at=excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert_nodes: %w", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		n.UpdatedAt = now
		if existing, ok := m.nodes[n.ID]; ok {
			n.CreatedAt = existing.CreatedAt
			if n.Metadata.Attributes == nil {
				n.Metadata.Attributes = core.NewOrderedMap()
			}
			merged := core.NewOrderedMap()
			if existing.Metadata.Attributes != nil {
				merged.Merge(existing.Metadata.Attributes)
			}
			merged.Merge(n.Metadata.Attributes)
			n.Metadata.Attributes = merged
		} else {
			if n.CreatedAt.IsZero() {
				n.CreatedAt = now
			}
			if n.Metadata.Attributes == nil {
				n.Metadata.Attributes = core.NewOrderedMap()
			}
		}

		metaJSON, err := encodeMetadata(n.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for node %s: %w", n.ID, err)
		}

		var nodeType, language string
		if n.NodeType != nil {
			nodeType = n.NodeType.String()
		}
		if n.Language != nil {
			language = string(*n.Language)
		}
		var endLine, endCol sql.NullInt64
		if n.Location.EndLine != nil {
			endLine = sql.NullInt64{Int64: int64(*n.Location.EndLine), Valid: true}
		}
		if n.Location.EndColumn != nil {
			endCol = sql.NullInt64{Int64: int64(*n.Location.EndColumn), Valid: true}
		}
		var complexity float64
		hasComplexity := 0
		if n.Complexity != nil {
			complexity = float64(*n.Complexity)
			hasComplexity = 1
		}

		if _, err := stmt.ExecContext(ctx, n.ID.String(), n.Name, nodeType, language,
			n.Location.FilePath, n.Location.Line, n.Location.Column, endLine, endCol,
			n.Content, complexity, hasComplexity, metaJSON,
			n.CreatedAt.Format(time.RFC3339Nano), n.UpdatedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("upsert node %s: %w", n.ID, err)
		}

		m.indexNode(n)
	}

	return tx.Commit()
}

// UpsertEdges resolves string edge targets to NodeIds using a fresh Symbol
// Indexer over the currently known node set, then persists the edges and
// updates the adjacency cache (§4.9).
func (m *metadataStore) UpsertEdges(ctx context.Context, edges []core.Edge) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	allNodes := make([]core.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		allNodes = append(allNodes, n)
	}
	idx := symbols.NewIndex(allNodes)
	resolved := idx.ResolveEdges(edges)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert_edges: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO edges (from_id, to_id, to_symbol, resolved, edge_type, metadata) VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert_edges: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		metaJSON, err := encodeMetadata(e.Metadata)
		if err != nil {
			return resolved, fmt.Errorf("encode edge metadata: %w", err)
		}
		var toID sql.NullString
		resolvedFlag := 0
		if e.To.Resolved && e.To.NodeID != nil {
			toID = sql.NullString{String: e.To.NodeID.String(), Valid: true}
			resolvedFlag = 1
		}
		if _, err := stmt.ExecContext(ctx, e.From.String(), toID, e.To.Symbol, resolvedFlag, e.EdgeType.String(), metaJSON); err != nil {
			return resolved, fmt.Errorf("upsert edge: %w", err)
		}
		m.indexEdge(e)
	}

	if err := tx.Commit(); err != nil {
		return resolved, err
	}
	return resolved, nil
}

// DeleteNodesByFile removes every node at file_path and their incident
// edges (§4.9).
func (m *metadataStore) DeleteNodesByFile(ctx context.Context, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, ok := m.byFile[filePath]
	if !ok || len(ids) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete_nodes_by_file: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for id := range ids {
		idStr := id.String()
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, idStr); err != nil {
			return fmt.Errorf("delete node %s: %w", idStr, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE from_id = ? OR to_id = ?`, idStr, idStr); err != nil {
			return fmt.Errorf("delete incident edges for %s: %w", idStr, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for id := range ids {
		delete(m.nodes, id)
		delete(m.out, id)
		delete(m.in, id)
	}
	delete(m.byFile, filePath)

	for from, edges := range m.out {
		m.out[from] = filterIncident(edges, ids)
	}
	for to, edges := range m.in {
		m.in[to] = filterIncident(edges, ids)
	}

	return nil
}

func filterIncident(edges []core.Edge, removed map[core.NodeId]struct{}) []core.Edge {
	kept := edges[:0]
	for _, e := range edges {
		if _, gone := removed[e.From]; gone {
			continue
		}
		if e.To.Resolved && e.To.NodeID != nil {
			if _, gone := removed[*e.To.NodeID]; gone {
				continue
			}
		}
		kept = append(kept, e)
	}
	return kept
}

// GetNode returns a node by id.
func (m *metadataStore) GetNode(id core.NodeId) (core.Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

// GetNeighbors returns up to limit edges incident to id, outgoing first
// then incoming, an O(neighbors) lookup against the adjacency cache (§4.9).
func (m *metadataStore) GetNeighbors(id core.NodeId, limit int) []core.Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.Edge, 0, limit)
	for _, e := range m.out[id] {
		if limit > 0 && len(out) >= limit {
			return out
		}
		out = append(out, e)
	}
	for _, e := range m.in[id] {
		if limit > 0 && len(out) >= limit {
			return out
		}
		out = append(out, e)
	}
	return out
}

// allNodesSnapshot returns a copy of every node currently known, used by
// the graph analytics package.
func (m *metadataStore) allNodesSnapshot() []core.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	return out
}

// resolveSymbol looks up text as a qualified or bare symbol name against a
// fresh Symbol Indexer over the current node set, used by the Hybrid
// Retriever's optional graph-structure seed (§4.10 "if the query resolves
// to a symbol").
func (m *metadataStore) resolveSymbol(text string) (core.NodeId, bool) {
	m.mu.RLock()
	nodes := make([]core.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}
	m.mu.RUnlock()

	idx := symbols.NewIndex(nodes)
	return idx.Lookup(text)
}

func (m *metadataStore) outgoing(id core.NodeId) []core.Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.out[id]
}

func (m *metadataStore) incoming(id core.NodeId) []core.Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.in[id]
}

func (m *metadataStore) allEdgesSnapshot() []core.Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Edge, 0)
	for _, edges := range m.out {
		out = append(out, edges...)
	}
	return out
}

func (m *metadataStore) close() error {
	return m.db.Close()
}

func scanNode(rows *sql.Rows) (core.Node, error) {
	var n core.Node
	var idStr, nodeType, language, createdAt, updatedAt, metaJSON string
	var endLine, endCol sql.NullInt64
	var complexity float64
	var hasComplexity int

	if err := rows.Scan(&idStr, &n.Name, &nodeType, &language, &n.Location.FilePath,
		&n.Location.Line, &n.Location.Column, &endLine, &endCol, &n.Content,
		&complexity, &hasComplexity, &metaJSON, &createdAt, &updatedAt); err != nil {
		return n, fmt.Errorf("scan node row: %w", err)
	}

	id, err := parseNodeId(idStr)
	if err != nil {
		return n, err
	}
	n.ID = id

	if nodeType != "" {
		nt := core.OtherNodeType(nodeType)
		for _, known := range []core.NodeType{core.NodeTypeFunction, core.NodeTypeStruct, core.NodeTypeInterface, core.NodeTypeModule, core.NodeTypeVariable, core.NodeTypeImport, core.NodeTypeDocument} {
			if known.String() == nodeType {
				nt = known
				break
			}
		}
		n.NodeType = &nt
	}
	if language != "" {
		lang := core.Language(language)
		n.Language = &lang
	}
	if endLine.Valid {
		v := uint32(endLine.Int64)
		n.Location.EndLine = &v
	}
	if endCol.Valid {
		v := uint32(endCol.Int64)
		n.Location.EndColumn = &v
	}
	if hasComplexity != 0 {
		c := float32(complexity)
		n.Complexity = &c
	}
	meta, err := decodeMetadata(metaJSON)
	if err != nil {
		return n, err
	}
	n.Metadata = meta

	n.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	n.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return n, nil
}

func scanEdge(rows *sql.Rows) (core.Edge, error) {
	var e core.Edge
	var fromStr string
	var toID, toSymbol, edgeType, metaJSON sql.NullString
	var resolved int

	if err := rows.Scan(&fromStr, &toID, &toSymbol, &resolved, &edgeType, &metaJSON); err != nil {
		return e, fmt.Errorf("scan edge row: %w", err)
	}

	from, err := parseNodeId(fromStr)
	if err != nil {
		return e, err
	}
	e.From = from

	if resolved != 0 && toID.Valid {
		id, err := parseNodeId(toID.String)
		if err != nil {
			return e, err
		}
		e.To = core.ResolvedTarget(id)
	} else {
		e.To = core.UnresolvedTarget(toSymbol.String)
	}

	e.EdgeType = core.OtherEdgeType(edgeType.String)
	for _, known := range []core.EdgeType{core.EdgeCalls, core.EdgeUses, core.EdgeDefines, core.EdgeImplements,
		core.EdgeExtends, core.EdgeContains, core.EdgeImports, core.EdgeDependsOn, core.EdgeDocuments,
		core.EdgeSpecifies, core.EdgeFlowsTo, core.EdgeMutates, core.EdgeReturns, core.EdgeViolatesBoundary} {
		if known.String() == edgeType.String {
			e.EdgeType = known
			break
		}
	}

	meta, err := decodeMetadata(metaJSON.String)
	if err != nil {
		return e, err
	}
	e.Metadata = meta

	return e, nil
}

type metadataJSON struct {
	QualifiedName      string   `json:"qualified_name,omitempty"`
	Analyzer           string   `json:"analyzer,omitempty"`
	AnalyzerConfidence float32  `json:"analyzer_confidence,omitempty"`
	MethodOf           string   `json:"method_of,omitempty"`
	ImplementsTrait    string   `json:"implements_trait,omitempty"`
	FastMLPatterns     []string `json:"fast_ml_patterns,omitempty"`
	Attributes         []kv     `json:"attributes,omitempty"`
}

type kv struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

func encodeMetadata(m core.Metadata) (string, error) {
	mj := metadataJSON{
		QualifiedName:      m.QualifiedName,
		Analyzer:           m.Analyzer,
		AnalyzerConfidence: m.AnalyzerConfidence,
		MethodOf:           m.MethodOf,
		ImplementsTrait:    m.ImplementsTrait,
		FastMLPatterns:     m.FastMLPatterns,
	}
	if m.Attributes != nil {
		for _, k := range m.Attributes.Keys() {
			v, _ := m.Attributes.Get(k)
			mj.Attributes = append(mj.Attributes, kv{Key: k, Value: v})
		}
	}
	b, err := json.Marshal(mj)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMetadata(s string) (core.Metadata, error) {
	m := core.NewMetadata()
	if s == "" {
		return m, nil
	}
	var mj metadataJSON
	if err := json.Unmarshal([]byte(s), &mj); err != nil {
		return core.Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	m.QualifiedName = mj.QualifiedName
	m.Analyzer = mj.Analyzer
	m.AnalyzerConfidence = mj.AnalyzerConfidence
	m.MethodOf = mj.MethodOf
	m.ImplementsTrait = mj.ImplementsTrait
	m.FastMLPatterns = mj.FastMLPatterns
	for _, p := range mj.Attributes {
		m.Attributes.Set(p.Key, p.Value)
	}
	return m, nil
}

func parseNodeId(s string) (core.NodeId, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return core.Nil, fmt.Errorf("parse node id %q: %w", s, err)
	}
	return core.NodeId(parsed), nil
}
