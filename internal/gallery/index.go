package gallery

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/attendance/internal/match"
)

// HNSW parameters for the candidate index. The gallery is small compared to
// a photo library, so defaults lean toward recall over build speed.
const (
	hnswMaxNeighbors = 16
	hnswEfSearch     = 100
)

// Neighbor is one enrolled identity returned by a candidate search.
type Neighbor struct {
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

// Index is an in-memory HNSW graph over the gallery's reference vectors.
// It backs operator tooling (finding enrolled identities whose references
// sit suspiciously close together, inspecting what a probe vector is near).
// It is approximate and never decides attendance matches; match.Match's
// exact scan stays authoritative for that.
type Index struct {
	graph *hnsw.Graph[int]
	g     *Gallery
	mu    sync.RWMutex
}

// NewIndex builds the candidate index from a gallery. Building is O(n log n)
// and happens once, right after the gallery itself is built.
func NewIndex(g *Gallery) *Index {
	idx := &Index{g: g}

	graph := hnsw.NewGraph[int]()
	graph.M = hnswMaxNeighbors
	graph.Ml = 1.0 / float64(hnswMaxNeighbors)
	graph.EfSearch = hnswEfSearch
	graph.Distance = hnsw.EuclideanDistance

	for i, e := range g.Entries() {
		graph.Add(hnsw.MakeNode(i, e.Vector))
	}

	idx.graph = graph
	return idx
}

// Nearest returns up to k enrolled identities closest to the query vector,
// with exact Euclidean distances recomputed for the returned candidates.
func (idx *Index) Nearest(query []float32, k int) []Neighbor {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil || k <= 0 {
		return nil
	}

	nodes := idx.graph.Search(query, k)
	neighbors := make([]Neighbor, 0, len(nodes))
	entries := idx.g.Entries()
	for _, n := range nodes {
		if n.Key < 0 || n.Key >= len(entries) {
			continue
		}
		e := entries[n.Key]
		neighbors = append(neighbors, Neighbor{
			Label:    e.Label,
			Distance: match.EuclideanDistance(query, e.Vector),
		})
	}
	return neighbors
}

// NearestToLabel returns up to k enrolled identities closest to the given
// enrolled identity, excluding itself. Used to spot duplicate enrollments
// under different labels.
func (idx *Index) NearestToLabel(label string, k int) []Neighbor {
	idx.mu.RLock()
	key := NormalizeLabel(label)
	var query []float32
	for _, e := range idx.g.Entries() {
		if NormalizeLabel(e.Label) == key {
			query = e.Vector
			break
		}
	}
	idx.mu.RUnlock()

	if query == nil {
		return nil
	}

	// Ask for one extra since the identity itself is its own nearest neighbor.
	neighbors := idx.Nearest(query, k+1)
	filtered := make([]Neighbor, 0, k)
	for _, n := range neighbors {
		if NormalizeLabel(n.Label) == key {
			continue
		}
		filtered = append(filtered, n)
		if len(filtered) == k {
			break
		}
	}
	return filtered
}
