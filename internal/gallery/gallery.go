// Package gallery holds the enrolled identities and their reference face
// vectors. A gallery is built once at startup and is immutable afterwards;
// re-enrollment means rebuilding from scratch.
package gallery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/attendance/internal/match"
)

// ErrEmptyGallery is returned by Build when no reference inputs were given.
// Callers decide whether that is fatal (it usually is for an attendance run).
var ErrEmptyGallery = errors.New("gallery: no reference entries")

// MissingEncodingError records a reference input that yielded no extractable
// vector. Build collects these into the report instead of failing, so the
// caller can decide between skipping the entry and aborting startup.
type MissingEncodingError struct {
	Label string
}

func (e *MissingEncodingError) Error() string {
	return fmt.Sprintf("gallery: no face encoding for %q", e.Label)
}

// Reference is one labeled reference input handed to Build. Vector may be
// empty when the extraction collaborator found no face in the source image.
type Reference struct {
	Label  string
	Vector []float32
}

// BuildReport describes what Build did with each reference input.
type BuildReport struct {
	// Enrolled lists the labels that made it into the gallery, in order.
	Enrolled []string
	// Missing collects one error per input without an extractable vector.
	Missing []*MissingEncodingError
	// Duplicates lists labels whose later occurrences were dropped
	// (first encoding wins).
	Duplicates []string
}

// Failed reports whether any reference input had no encoding.
func (r *BuildReport) Failed() bool {
	return len(r.Missing) > 0
}

// Gallery is an ordered, immutable set of (label, reference vector) pairs.
type Gallery struct {
	entries []match.Entry
	byLabel map[string]int
}

// Build constructs a gallery from labeled reference vectors. Input order is
// preserved. Labels are compared case- and diacritic-insensitively for
// duplicate detection; only the first encoding per identity is retained.
func Build(refs []Reference) (*Gallery, *BuildReport, error) {
	if len(refs) == 0 {
		return nil, nil, ErrEmptyGallery
	}

	g := &Gallery{byLabel: make(map[string]int, len(refs))}
	report := &BuildReport{}

	for _, ref := range refs {
		label := strings.TrimSpace(ref.Label)
		if label == "" {
			report.Missing = append(report.Missing, &MissingEncodingError{Label: "(unnamed)"})
			continue
		}
		if len(ref.Vector) == 0 {
			report.Missing = append(report.Missing, &MissingEncodingError{Label: label})
			continue
		}
		key := NormalizeLabel(label)
		if _, ok := g.byLabel[key]; ok {
			report.Duplicates = append(report.Duplicates, label)
			continue
		}
		g.byLabel[key] = len(g.entries)
		g.entries = append(g.entries, match.Entry{Label: label, Vector: ref.Vector})
		report.Enrolled = append(report.Enrolled, label)
	}

	return g, report, nil
}

// Size returns the number of enrolled identities.
func (g *Gallery) Size() int {
	return len(g.entries)
}

// Entries returns the gallery content in insertion order. The returned slice
// must not be mutated.
func (g *Gallery) Entries() []match.Entry {
	return g.entries
}

// Labels returns the enrolled labels in insertion order.
func (g *Gallery) Labels() []string {
	labels := make([]string, len(g.entries))
	for i, e := range g.entries {
		labels[i] = e.Label
	}
	return labels
}

// Has reports whether an identity is enrolled, using normalized comparison.
func (g *Gallery) Has(label string) bool {
	_, ok := g.byLabel[NormalizeLabel(label)]
	return ok
}
