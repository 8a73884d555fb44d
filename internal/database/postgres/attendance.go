package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/attendance/internal/ledger"
)

// AttendanceRepository persists attendance records. It implements
// ledger.Store: the ledger commits to memory first and treats failures here
// as reportable side-effect failures.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Append stores one attendance record. The (identity, session_key) unique
// constraint makes the append idempotent at the database level too, so a
// retried write after a reported failure cannot create a duplicate row.
func (r *AttendanceRepository) Append(ctx context.Context, rec ledger.Record) error {
	query := `
		INSERT INTO attendance (identity, session_key, recorded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity, session_key) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query, rec.Identity, rec.SessionKey, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("append attendance: %w", err)
	}
	return nil
}

// Load returns all records in insertion order.
func (r *AttendanceRepository) Load(ctx context.Context) ([]ledger.Record, error) {
	query := `
		SELECT identity, session_key, recorded_at
		FROM attendance
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var rec ledger.Record
		if err := rows.Scan(&rec.Identity, &rec.SessionKey, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

// Clear removes all attendance records.
func (r *AttendanceRepository) Clear(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM attendance"); err != nil {
		return fmt.Errorf("clear attendance: %w", err)
	}
	return nil
}

// CountBySession returns the number of records for one session key.
func (r *AttendanceRepository) CountBySession(ctx context.Context, sessionKey string) (int, error) {
	var count int
	err := r.pool.QueryRow(
		ctx, "SELECT COUNT(*) FROM attendance WHERE session_key = $1", sessionKey,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}
