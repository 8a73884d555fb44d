package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/database/postgres"
	"github.com/kozaktomas/attendance/internal/extractor"
	"github.com/kozaktomas/attendance/internal/gallery"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll reference images into the gallery",
	Long: `Enroll walks a directory of labeled reference images (the filename stem is
the identity label, e.g. jan-novak.jpg), extracts a face vector from each,
and reports every image the extraction service found no face in. With
DATABASE_URL set, the vectors are persisted so serve and watch can build
the gallery without re-extraction.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("dir", "", "Reference image directory (defaults to GALLERY_DIR)")
	enrollCmd.Flags().Int("concurrency", 4, "Number of concurrent extraction requests")
	enrollCmd.Flags().Bool("dry-run", false, "Extract and report without persisting anything")
}

// referenceImage is one file in the reference directory, labeled by its
// filename stem.
type referenceImage struct {
	Path  string
	Label string
}

// listReferenceImages returns the directory's image files in lexical order.
func listReferenceImages(dir string) ([]referenceImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading gallery directory %s: %w", dir, err)
	}

	var images []referenceImage
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" && ext != ".gif" {
			continue
		}
		images = append(images, referenceImage{
			Path:  filepath.Join(dir, e.Name()),
			Label: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Path < images[j].Path })
	return images, nil
}

// extractReferences runs extraction over all images with bounded concurrency.
// A file the service found no face in yields a Reference with a nil vector,
// so the gallery build report captures it. Files that failed to read or hit
// a transport error land in errs only and are excluded from the result, so
// "service down" is never misreported as "no face".
func extractReferences(ctx context.Context, client *extractor.Client, images []referenceImage, concurrency int, bar *progressbar.ProgressBar) ([]gallery.Reference, []error) {
	refs := make([]gallery.Reference, len(images))
	failed := make([]bool, len(images))
	var errs []error
	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range images {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer func() {
				if bar != nil {
					_ = bar.Add(1)
				}
			}()

			img := images[i]
			refs[i] = gallery.Reference{Label: img.Label}

			data, err := os.ReadFile(img.Path)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", img.Path, err))
				failed[i] = true
				mu.Unlock()
				return
			}

			vector, err := client.ExtractOne(ctx, data)
			if err != nil {
				if !errors.Is(err, extractor.ErrNoFaceFound) {
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s: %w", img.Path, err))
					failed[i] = true
					mu.Unlock()
				}
				// No face: leave the vector nil for the build report.
				return
			}
			refs[i].Vector = vector
		}(i)
	}

	wg.Wait()
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	kept := refs[:0]
	for i, ref := range refs {
		if !failed[i] {
			kept = append(kept, ref)
		}
	}
	return kept, errs
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	dir := mustGetString(cmd, "dir")
	if dir == "" {
		dir = cfg.Gallery.Dir
	}
	if dir == "" {
		return errors.New("no reference directory; pass --dir or set GALLERY_DIR")
	}
	if cfg.Extractor.URL == "" {
		return errors.New("EXTRACTOR_URL environment variable is required")
	}

	concurrency := mustGetInt(cmd, "concurrency")
	dryRun := mustGetBool(cmd, "dry-run")

	images, err := listReferenceImages(dir)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no reference images found in %s", dir)
	}

	fmt.Printf("Enrolling %d reference images from %s\n", len(images), dir)

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Extracting face vectors"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	ctx := cmd.Context()
	client := extractor.NewClient(cfg.Extractor.URL)
	refs, errs := extractReferences(ctx, client, images, concurrency, bar)

	g, report, err := gallery.Build(refs)
	if err != nil {
		return err
	}

	fmt.Printf("Enrolled %d identities\n", g.Size())
	for _, missing := range report.Missing {
		fmt.Printf("Warning: %v\n", missing)
	}
	for _, dup := range report.Duplicates {
		fmt.Printf("Warning: duplicate enrollment for %q skipped (first encoding wins)\n", dup)
	}
	for _, e := range errs {
		fmt.Printf("Error: %v\n", e)
	}

	if dryRun {
		fmt.Println("Dry run: nothing persisted")
		return nil
	}

	if cfg.Database.URL == "" {
		fmt.Println("DATABASE_URL not set; enrollment stays extraction-only (serve and watch will re-extract from GALLERY_DIR)")
		return nil
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	repo := postgres.NewEnrollmentRepository(pool)
	for _, entry := range g.Entries() {
		if err := repo.Save(ctx, entry.Label, entry.Vector); err != nil {
			return err
		}
	}
	fmt.Printf("Persisted %d enrollments to PostgreSQL\n", g.Size())

	if len(errs) > 0 {
		return fmt.Errorf("%d reference images failed", len(errs))
	}
	return nil
}
