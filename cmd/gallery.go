package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/database/postgres"
	"github.com/kozaktomas/attendance/internal/extractor"
	"github.com/kozaktomas/attendance/internal/gallery"
	"github.com/kozaktomas/attendance/internal/ledger"
)

// buildGallery loads the enrolled gallery. Persisted enrollments win when a
// database pool is available; otherwise the reference directory is extracted
// on the spot, which needs the extraction service up.
func buildGallery(ctx context.Context, cfg *config.Config, pool *postgres.Pool) (*gallery.Gallery, error) {
	if pool != nil {
		refs, err := postgres.NewEnrollmentRepository(pool).LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		if len(refs) > 0 {
			fmt.Printf("Loaded %d enrollments from PostgreSQL\n", len(refs))
			return finishBuild(refs)
		}
		fmt.Println("No persisted enrollments; falling back to GALLERY_DIR extraction")
	}

	if cfg.Gallery.Dir == "" {
		return nil, errors.New("no gallery source; run 'attendance enroll' or set GALLERY_DIR")
	}
	if cfg.Extractor.URL == "" {
		return nil, errors.New("EXTRACTOR_URL environment variable is required")
	}

	images, err := listReferenceImages(cfg.Gallery.Dir)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no reference images found in %s", cfg.Gallery.Dir)
	}

	fmt.Printf("Extracting %d reference images from %s\n", len(images), cfg.Gallery.Dir)
	client := extractor.NewClient(cfg.Extractor.URL)
	refs, errs := extractReferences(ctx, client, images, 4, nil)
	for _, e := range errs {
		fmt.Printf("Error: %v\n", e)
	}
	return finishBuild(refs)
}

// finishBuild runs gallery.Build and prints the per-entry warnings.
func finishBuild(refs []gallery.Reference) (*gallery.Gallery, error) {
	g, report, err := gallery.Build(refs)
	if err != nil {
		return nil, err
	}
	for _, missing := range report.Missing {
		fmt.Printf("Warning: %v\n", missing)
	}
	for _, dup := range report.Duplicates {
		fmt.Printf("Warning: duplicate enrollment for %q skipped\n", dup)
	}
	if g.Size() == 0 {
		return nil, errors.New("gallery is empty after build; no reference image yielded a face vector")
	}
	return g, nil
}

// buildLedger wires the attendance ledger to its store: PostgreSQL when a
// pool is available, the CSV file when configured, in-memory otherwise. The
// dedup state is warmed from the store so restarts never record twice.
func buildLedger(ctx context.Context, cfg *config.Config, pool *postgres.Pool) (*ledger.Ledger, error) {
	var store ledger.Store
	switch {
	case pool != nil:
		store = postgres.NewAttendanceRepository(pool)
		fmt.Println("Attendance storage: PostgreSQL")
	case cfg.Attendance.CSVPath != "":
		store = ledger.NewCSVStore(cfg.Attendance.CSVPath)
		fmt.Printf("Attendance storage: CSV (%s)\n", cfg.Attendance.CSVPath)
	default:
		fmt.Println("Attendance storage: in-memory only")
	}

	l := ledger.New(store)
	if err := l.Warm(ctx); err != nil {
		return nil, fmt.Errorf("failed to warm attendance ledger: %w", err)
	}
	return l, nil
}

// openPool connects to PostgreSQL when DATABASE_URL is set, nil otherwise.
func openPool(cfg *config.Config) (*postgres.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, nil
	}
	fmt.Println("Connecting to PostgreSQL database...")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return pool, nil
}
