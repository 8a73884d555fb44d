package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/attendance/internal/gallery"
)

// EnrollmentRepository stores enrolled reference vectors so serve/watch can
// build the gallery without re-extracting reference images. Embeddings use
// the pgvector column type.
type EnrollmentRepository struct {
	pool *Pool
}

// NewEnrollmentRepository creates a new PostgreSQL enrollment repository.
func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Save upserts one enrollment. Re-enrolling a label replaces its vector.
func (r *EnrollmentRepository) Save(ctx context.Context, label string, vector []float32) error {
	query := `
		INSERT INTO enrollments (label, embedding, dim)
		VALUES ($1, $2, $3)
		ON CONFLICT (label) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			created_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, label, pgvector.NewVector(vector), len(vector))
	if err != nil {
		return fmt.Errorf("save enrollment %q: %w", label, err)
	}
	return nil
}

// LoadAll returns every enrollment as gallery reference input, in
// enrollment order (stable across gallery rebuilds).
func (r *EnrollmentRepository) LoadAll(ctx context.Context) ([]gallery.Reference, error) {
	rows, err := r.pool.Query(ctx, "SELECT label, embedding FROM enrollments ORDER BY created_at, label")
	if err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	defer rows.Close()

	var refs []gallery.Reference
	for rows.Next() {
		var label string
		var vec pgvector.Vector
		if err := rows.Scan(&label, &vec); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		refs = append(refs, gallery.Reference{Label: label, Vector: vec.Slice()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return refs, nil
}

// Count returns the number of enrolled identities.
func (r *EnrollmentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM enrollments").Scan(&count); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// Delete removes one enrollment by label.
func (r *EnrollmentRepository) Delete(ctx context.Context, label string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM enrollments WHERE label = $1", label); err != nil {
		return fmt.Errorf("delete enrollment %q: %w", label, err)
	}
	return nil
}
