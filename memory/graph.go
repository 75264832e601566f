package memory

import (
	"sort"
	"sync"
)

// Graph is the in-memory relationship graph: a directed multigraph keyed by
// relationship id, guarded by a single RWMutex. It is the sole owner of
// relationship state; records only carry transient copies.
//
// The graph does not validate endpoints. Callers (the Store) verify both
// records exist before adding an edge. Edges do not survive process restart.
type Graph struct {
	mu    sync.RWMutex
	edges map[string]*Relationship
}

// NewGraph returns an empty relationship graph.
func NewGraph() *Graph {
	return &Graph{edges: make(map[string]*Relationship)}
}

// Add stores an edge keyed by its relationship id.
func (g *Graph) Add(rel *Relationship) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[rel.ID] = rel
}

// For returns every edge where recordID is either endpoint, ordered by
// creation time (relationship id as tie-break). Linear in the total edge
// count; relationship volume is expected to stay small relative to records.
func (g *Graph) For(recordID string) []Relationship {
	g.mu.RLock()
	var out []Relationship
	for _, rel := range g.edges {
		if rel.FromID == recordID || rel.ToID == recordID {
			out = append(out, *rel)
		}
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Remove deletes a single edge by its own id, reporting whether it existed.
func (g *Graph) Remove(relID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.edges[relID]; !ok {
		return false
	}
	delete(g.edges, relID)
	return true
}

// RemoveFor deletes every edge touching recordID and returns how many were
// removed. Called by the Store when a record is deleted.
func (g *Graph) RemoveFor(recordID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for id, rel := range g.edges {
		if rel.FromID == recordID || rel.ToID == recordID {
			delete(g.edges, id)
			n++
		}
	}
	return n
}

// Count returns the number of stored edges.
func (g *Graph) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}
