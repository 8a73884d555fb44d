package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CSV column layout kept for compatibility with downstream spreadsheet and
// analytics consumers of the attendance file.
var csvHeader = []string{"Name", "Subject", "Date", "Time"}

const (
	csvDateLayout = "2006-01-02"
	csvTimeLayout = "15:04:05"
)

// CSVStore is an append-only attendance sink writing one UTF-8 CSV file.
// Rows are appended per record; the header is written when the file is
// created. It implements Store.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore creates a store writing to the given file path. The file is
// created lazily on the first append.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file path.
func (s *CSVStore) Path() string {
	return s.path
}

// Append writes one record as a CSV row, creating the file with a header
// row first if needed.
func (s *CSVStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating attendance directory: %w", err)
		}
	}

	info, err := os.Stat(s.path)
	needHeader := errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat attendance file: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening attendance file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	if err := w.Write(recordToRow(rec)); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing attendance file: %w", err)
	}
	return nil
}

// Load reads all persisted records in file order. A missing file is an
// empty log, not an error.
func (s *CSVStore) Load(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening attendance file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)

	var records []Record
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading attendance file: %w", err)
		}
		if first {
			first = false
			if isHeaderRow(row) {
				continue
			}
		}
		rec, err := rowToRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Clear truncates the attendance file. A missing file is already clear.
func (s *CSVStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing attendance file: %w", err)
	}
	return nil
}

// isHeaderRow matches the full header, so a record whose identity happens to
// be "Name" is still loaded as data.
func isHeaderRow(row []string) bool {
	if len(row) != len(csvHeader) {
		return false
	}
	for i := range csvHeader {
		if row[i] != csvHeader[i] {
			return false
		}
	}
	return true
}

func recordToRow(rec Record) []string {
	return []string{
		rec.Identity,
		rec.SessionKey,
		rec.RecordedAt.Format(csvDateLayout),
		rec.RecordedAt.Format(csvTimeLayout),
	}
}

func rowToRecord(row []string) (Record, error) {
	ts, err := time.ParseInLocation(
		csvDateLayout+" "+csvTimeLayout,
		row[2]+" "+row[3],
		time.Local,
	)
	if err != nil {
		return Record{}, fmt.Errorf("parsing attendance timestamp %q %q: %w", row[2], row[3], err)
	}
	return Record{Identity: row[0], SessionKey: row[1], RecordedAt: ts}, nil
}

// WriteCSV streams records as CSV (header + rows) to w. Used by the export
// endpoints so HTTP and file output share one format.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(recordToRow(rec)); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
