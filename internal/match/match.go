// Package match implements the identity decision for observed face vectors:
// a nearest-neighbor scan over the gallery with a hard distance threshold.
package match

import (
	"math"
)

// DefaultThreshold is the maximum Euclidean distance at which a candidate
// still counts as a match. 0.6 is the dlib face descriptor convention.
const DefaultThreshold = 0.6

// Result is the outcome of matching one observed vector against a gallery.
type Result struct {
	// Identity is the label of the best-matching gallery entry, or empty
	// when the gallery is empty.
	Identity string `json:"identity"`
	// Distance is the Euclidean distance to the best entry, +Inf for an
	// empty gallery.
	Distance float64 `json:"distance"`
	// OK reports whether Distance is within the threshold.
	OK bool `json:"is_match"`
}

// EuclideanDistance computes the L2 distance between two vectors.
// Returns +Inf if the vectors have different lengths or are empty,
// so that mismatched input can never satisfy a threshold.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Entry is one labeled reference vector as iterated by a gallery.
type Entry struct {
	Label  string
	Vector []float32
}

// Gallery is the read-only view the matcher needs. *gallery.Gallery
// satisfies it.
type Gallery interface {
	Entries() []Entry
}

// Match scans every gallery entry and returns the nearest one. Ties on the
// minimum distance resolve to the lowest-index entry (the scan only replaces
// the best candidate on a strictly smaller distance), so results are
// deterministic for a fixed gallery order. An empty gallery yields
// {Identity: "", Distance: +Inf, OK: false} and is not an error.
func Match(observed []float32, g Gallery, threshold float64) Result {
	best := Result{Distance: math.Inf(1)}
	for _, e := range g.Entries() {
		d := EuclideanDistance(observed, e.Vector)
		if d < best.Distance {
			best.Identity = e.Label
			best.Distance = d
		}
	}
	if math.IsInf(best.Distance, 1) {
		// Empty gallery or no comparable entry.
		return Result{Distance: math.Inf(1)}
	}
	// The nearest identity is kept even when over the threshold so callers
	// can report near misses; they must gate on OK before treating the
	// result as a recognition.
	best.OK = best.Distance <= threshold
	return best
}
