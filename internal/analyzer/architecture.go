package analyzer

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// ArchitectureStats reports what AnalyzeArchitecture found/added.
type ArchitectureStats struct {
	PackageCyclesDetected  int
	BoundaryViolationsAdded int
}

// boundaryConfig is the `codegraph.boundaries.toml` schema: a list of
// deny rules naming packages that must not depend on each other.
type boundaryConfig struct {
	Deny []boundaryDenyRule `toml:"deny"`
}

type boundaryDenyRule struct {
	From   string `toml:"from"`
	To     string `toml:"to"`
	Reason string `toml:"reason"`
}

// AnalyzeArchitecture runs package-level circular-dependency detection and,
// if the project carries a `codegraph.boundaries.toml`, emits
// ViolatesBoundary edges for any configured deny rule the DependsOn edges
// already violate (§4.5), translated from the original's
// `analyze_architecture`/`count_package_cycles` (Tarjan's SCC algorithm)
// from Rust NodeIds to core.NodeId, and from the `toml` crate to
// `github.com/BurntSushi/toml`.
func AnalyzeArchitecture(projectRoot string, nodes []core.Node, edges *[]core.Edge) ArchitectureStats {
	var stats ArchitectureStats
	stats.PackageCyclesDetected = countPackageCycles(nodes, *edges)

	cfg, ok := readBoundaryConfig(projectRoot)
	if !ok || len(cfg.Deny) == 0 {
		return stats
	}

	packagesByName := map[string]core.NodeId{}
	for _, n := range nodes {
		if n.NodeType != nil && n.NodeType.IsOther() && n.NodeType.String() == "package" {
			packagesByName[n.Name] = n.ID
		}
	}

	depends := map[string]bool{}
	for _, e := range *edges {
		if e.EdgeType.Equal(core.EdgeDependsOn) {
			depends[dependsKey(e.From, targetString(e.To))] = true
		}
	}

	for _, rule := range cfg.Deny {
		fromID, ok := packagesByName[rule.From]
		if !ok {
			continue
		}
		if !depends[dependsKey(fromID, rule.To)] {
			continue
		}

		m := core.NewMetadata()
		m.Analyzer = "architecture_boundary"
		m.AnalyzerConfidence = 1.0
		if rule.Reason != "" {
			m.Attributes.Set("boundary_reason", rule.Reason)
		}
		m.Attributes.Set("boundary_rule", "deny:"+rule.From+"->"+rule.To)

		*edges = append(*edges, core.Edge{
			From:     fromID,
			To:       core.UnresolvedTarget(rule.To),
			EdgeType: core.EdgeViolatesBoundary,
			Metadata: m,
		})
		stats.BoundaryViolationsAdded++
	}

	return stats
}

func dependsKey(from core.NodeId, to string) string {
	return from.String() + "->" + to
}

func targetString(t core.EdgeTarget) string {
	if t.Resolved && t.NodeID != nil {
		return t.NodeID.String()
	}
	return t.Symbol
}

func readBoundaryConfig(projectRoot string) (boundaryConfig, bool) {
	var cfg boundaryConfig
	path := filepath.Join(projectRoot, "codegraph.boundaries.toml")
	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, false
	}
	if _, err := toml.Decode(string(content), &cfg); err != nil {
		return cfg, false
	}
	return cfg, true
}

// countPackageCycles runs Tarjan's strongly-connected-components algorithm
// over the DependsOn graph restricted to package nodes, counting SCCs of
// size > 1 as cycles.
func countPackageCycles(nodes []core.Node, edges []core.Edge) int {
	packageNames := map[core.NodeId]string{}
	for _, n := range nodes {
		if n.NodeType != nil && n.NodeType.IsOther() && n.NodeType.String() == "package" {
			packageNames[n.ID] = n.Name
		}
	}
	if len(packageNames) == 0 {
		return 0
	}

	packageIDByName := map[string]core.NodeId{}
	for id, name := range packageNames {
		packageIDByName[name] = id
	}

	adj := map[core.NodeId][]core.NodeId{}
	for _, e := range edges {
		if !e.EdgeType.Equal(core.EdgeDependsOn) {
			continue
		}
		if _, ok := packageNames[e.From]; !ok {
			continue
		}
		toID, ok := packageIDByName[targetString(e.To)]
		if !ok {
			continue
		}
		adj[e.From] = append(adj[e.From], toID)
	}

	t := &tarjan{
		indices: map[core.NodeId]int{},
		lowlink: map[core.NodeId]int{},
		onStack: map[core.NodeId]bool{},
		adj:     adj,
	}
	for id := range packageNames {
		if _, visited := t.indices[id]; !visited {
			t.strongconnect(id)
		}
	}
	return t.cycles
}

type tarjan struct {
	index   int
	stack   []core.NodeId
	indices map[core.NodeId]int
	lowlink map[core.NodeId]int
	onStack map[core.NodeId]bool
	adj     map[core.NodeId][]core.NodeId
	cycles  int
}

func (t *tarjan) strongconnect(v core.NodeId) {
	t.indices[v] = t.index
	t.lowlink[v] = t.index
	t.index++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.adj[v] {
		if _, visited := t.indices[w]; !visited {
			t.strongconnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.indices[w] < t.lowlink[v] {
				t.lowlink[v] = t.indices[w]
			}
		}
	}

	if t.indices[v] == t.lowlink[v] {
		var scc []core.NodeId
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		if len(scc) > 1 {
			t.cycles++
		}
	}
}
