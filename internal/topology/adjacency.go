package topology

import (
	"fmt"
	"sort"
)

// Adjacency maps a device ID to the set of its neighbours' IDs.
//
// Every edge is stored in both directions. Methods that mutate the relation
// (link, Rekey) keep it symmetric; callers must not edit the inner sets.
type Adjacency map[int]map[int]struct{}

// Edge is an unordered pair of neighbouring device IDs with A < B.
type Edge struct {
	A int `json:"a"`
	B int `json:"b"`
}

// String formats the edge as "a <-> b".
func (e Edge) String() string {
	return fmt.Sprintf("%d <-> %d", e.A, e.B)
}

// link adds the undirected edge between a and b. Self-loops are ignored.
func (a Adjacency) link(x, y int) {
	if x == y {
		return
	}
	a.add(x, y)
	a.add(y, x)
}

func (a Adjacency) add(from, to int) {
	set, ok := a[from]
	if !ok {
		set = make(map[int]struct{})
		a[from] = set
	}
	set[to] = struct{}{}
}

// Neighbours returns the neighbours of id in ascending order.
// An unknown id has no neighbours.
func (a Adjacency) Neighbours(id int) []int {
	set := a[id]
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Degree returns the number of neighbours of id.
func (a Adjacency) Degree(id int) int {
	return len(a[id])
}

// HasEdge reports whether x and y are neighbours.
func (a Adjacency) HasEdge(x, y int) bool {
	_, ok := a[x][y]
	return ok
}

// Edges returns every unordered edge exactly once, sorted by (A, B).
func (a Adjacency) Edges() []Edge {
	var edges []Edge
	for from, set := range a {
		for to := range set {
			if from < to {
				edges = append(edges, Edge{A: from, B: to})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

// Rekey moves every edge touching oldID so that it touches newID instead.
// It runs in O(degree). Rekeying onto an ID that already has edges merges
// the two sets; the registry prevents that by rejecting duplicate IDs.
func (a Adjacency) Rekey(oldID, newID int) {
	if oldID == newID {
		return
	}
	set, ok := a[oldID]
	if !ok {
		return
	}
	delete(a, oldID)
	for n := range set {
		delete(a[n], oldID)
		a.link(newID, n)
	}
}

// Clone returns an independent copy of the relation.
func (a Adjacency) Clone() Adjacency {
	cpy := make(Adjacency, len(a))
	for id, set := range a {
		inner := make(map[int]struct{}, len(set))
		for n := range set {
			inner[n] = struct{}{}
		}
		cpy[id] = inner
	}
	return cpy
}

// Symmetric reports whether every edge is present in both directions.
func (a Adjacency) Symmetric() bool {
	for from, set := range a {
		for to := range set {
			if !a.HasEdge(to, from) {
				return false
			}
		}
	}
	return true
}
