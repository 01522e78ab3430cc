package aggregates

import (
	"sort"

	"citegraph/domain/core/entities"
)

// Subgraph accumulates the result of a bounded breadth-first expansion.
// Nodes are recorded with the round in which they were first reached.
// Citations are collected as candidates while the traversal runs and only
// those with both endpoints visited are reported, so the result is the
// induced subgraph on the visited set no matter the order of discovery.
type Subgraph struct {
	seedID     string
	depths     map[string]int
	candidates map[[2]string]*entities.Citation
}

// NewSubgraph creates a subgraph rooted at the seed paper
func NewSubgraph(seedID string) *Subgraph {
	g := &Subgraph{
		seedID:     seedID,
		depths:     make(map[string]int),
		candidates: make(map[[2]string]*entities.Citation),
	}
	g.depths[seedID] = 0
	return g
}

// SeedID returns the paper the expansion started from
func (g *Subgraph) SeedID() string {
	return g.seedID
}

// Visit records id at the given depth. It returns false if id was already visited.
func (g *Subgraph) Visit(id string, depth int) bool {
	if _, ok := g.depths[id]; ok {
		return false
	}
	g.depths[id] = depth
	return true
}

// HasNode reports whether id has been visited
func (g *Subgraph) HasNode(id string) bool {
	_, ok := g.depths[id]
	return ok
}

// DepthOf returns the BFS depth at which id was reached
func (g *Subgraph) DepthOf(id string) (int, bool) {
	d, ok := g.depths[id]
	return d, ok
}

// Consider records a citation seen during traversal. Duplicates of the same
// ordered pair collapse to the one with the smallest id.
func (g *Subgraph) Consider(c *entities.Citation) {
	key := c.Pair()
	if existing, ok := g.candidates[key]; ok && existing.ID <= c.ID {
		return
	}
	g.candidates[key] = c
}

// NodeCount returns the number of visited papers
func (g *Subgraph) NodeCount() int {
	return len(g.depths)
}

// NodeIDs returns visited ids ordered by (depth, id)
func (g *Subgraph) NodeIDs() []string {
	ids := make([]string, 0, len(g.depths))
	for id := range g.depths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		di, dj := g.depths[ids[i]], g.depths[ids[j]]
		if di != dj {
			return di < dj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Edges returns the induced citations in canonical (citing, cited, id) order
func (g *Subgraph) Edges() []*entities.Citation {
	edges := make([]*entities.Citation, 0, len(g.candidates))
	for _, c := range g.candidates {
		if g.HasNode(c.CitingID) && g.HasNode(c.CitedID) {
			edges = append(edges, c)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		return entities.LessCanonical(edges[i], edges[j])
	})
	return edges
}
