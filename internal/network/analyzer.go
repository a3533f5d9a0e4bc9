// Package network builds transient transaction graphs and derives
// centrality and layering-chain findings from them.
package network

import (
	"math"
	"sort"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

// Thresholds for graph findings.
const (
	HighCentralityThreshold = 50.0
	DefaultMinChainLength   = 3
)

type nodeStats struct {
	inDegree    int
	outDegree   int
	totalOut    float64
	successors  map[string]struct{}
	connections map[string]struct{}
}

// Graph is a directed transaction graph built from aggregated edges. It is
// rebuilt per analysis call and is not safe for concurrent mutation;
// concurrent reads after Build are fine.
type Graph struct {
	nodes map[string]*nodeStats
}

// Build constructs a graph from aggregated store edges. Self-loops are
// ignored.
func Build(edges []domain.Edge) *Graph {
	g := &Graph{nodes: make(map[string]*nodeStats)}
	for _, e := range edges {
		if e.Source == "" || e.Destination == "" || e.Source == e.Destination {
			continue
		}
		src := g.node(e.Source)
		dst := g.node(e.Destination)

		if _, dup := src.successors[e.Destination]; !dup {
			src.successors[e.Destination] = struct{}{}
			src.outDegree++
			dst.inDegree++
		}
		src.totalOut += e.TotalAmount
		src.connections[e.Destination] = struct{}{}
		dst.connections[e.Source] = struct{}{}
	}
	return g
}

func (g *Graph) node(id string) *nodeStats {
	n, ok := g.nodes[id]
	if !ok {
		n = &nodeStats{
			successors:  make(map[string]struct{}),
			connections: make(map[string]struct{}),
		}
		g.nodes[id] = n
	}
	return n
}

// Size returns the number of entities in the graph.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Centrality returns the entity's degree centrality weighted by its total
// outgoing volume: (in+out) * (1 + ln(1 + totalOutgoing)). Unknown entities
// score 0.
func (g *Graph) Centrality(entityID string) float64 {
	n, ok := g.nodes[entityID]
	if !ok {
		return 0
	}
	degree := float64(n.inDegree + n.outDegree)
	return degree * (1 + math.Log(1+n.totalOut))
}

// HighCentrality returns every entity whose centrality exceeds the
// threshold, mapped to its score.
func (g *Graph) HighCentrality() map[string]float64 {
	out := make(map[string]float64)
	for id := range g.nodes {
		if c := g.Centrality(id); c > HighCentralityThreshold {
			out[id] = c
		}
	}
	return out
}

// SuspiciousChains decomposes the graph into candidate layering paths. A
// breadth-first walk grows paths along unvisited successors; a path longer
// than minLength is emitted and its nodes are marked visited so each entity
// appears in at most one chain. Roots and successors are walked in sorted
// order, so output is deterministic for a given edge set.
func (g *Graph) SuspiciousChains(minLength int) [][]string {
	if minLength <= 0 {
		minLength = DefaultMinChainLength
	}

	roots := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		roots = append(roots, id)
	}
	sort.Strings(roots)

	var chains [][]string
	visited := make(map[string]struct{})

	for _, root := range roots {
		if _, done := visited[root]; done {
			continue
		}

		queue := [][]string{{root}}
		for len(queue) > 0 {
			path := queue[0]
			queue = queue[1:]

			if len(path) > minLength {
				chains = append(chains, path)
				for _, id := range path {
					visited[id] = struct{}{}
				}
				break
			}

			tail := g.nodes[path[len(path)-1]]
			for _, next := range sortedKeys(tail.successors) {
				if _, done := visited[next]; done {
					continue
				}
				if contains(path, next) {
					continue
				}
				extended := make([]string, len(path), len(path)+1)
				copy(extended, path)
				queue = append(queue, append(extended, next))
			}
		}
	}
	return chains
}

// Nodes returns the derived node view for every entity, sorted by entity ID.
func (g *Graph) Nodes() []domain.NetworkNode {
	out := make([]domain.NetworkNode, 0, len(g.nodes))
	for _, id := range sortedNodeIDs(g.nodes) {
		n := g.nodes[id]
		out = append(out, domain.NetworkNode{
			EntityID:    id,
			InDegree:    n.inDegree,
			OutDegree:   n.outDegree,
			Centrality:  g.Centrality(id),
			Connections: sortedKeys(n.connections),
		})
	}
	return out
}

// Analyze produces the case-level network summary: entity count, nodes over
// the centrality threshold, and up to maxChains layering chains.
func (g *Graph) Analyze(minChainLength, maxChains int) *domain.NetworkAnalysis {
	chains := g.SuspiciousChains(minChainLength)
	if maxChains > 0 && len(chains) > maxChains {
		chains = chains[:maxChains]
	}

	analysis := &domain.NetworkAnalysis{
		TotalEntities:    g.Size(),
		SuspiciousChains: chains,
	}
	if high := g.HighCentrality(); len(high) > 0 {
		analysis.HighCentrality = high
	}
	return analysis
}

func sortedNodeIDs(nodes map[string]*nodeStats) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(path []string, id string) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}
