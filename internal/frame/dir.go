package frame

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// imageExtensions are the file types a DirSource will serve as frames.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// DirSource serves the image files of a directory as a finite frame stream,
// in lexical filename order. Useful for offline attendance runs over
// captured stills and for tests.
type DirSource struct {
	files []string
	pos   int
}

// NewDirSource lists the directory's image files up front. An empty
// directory is valid and yields an immediate ErrEndOfStream.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("frame: reading directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	return &DirSource{files: files}, nil
}

// Len returns the number of frames the source will produce.
func (s *DirSource) Len() int {
	return len(s.files)
}

// Next returns the next image file's contents. An unreadable file is a
// *CaptureError.
func (s *DirSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.files) {
		return nil, ErrEndOfStream
	}

	path := s.files[s.pos]
	s.pos++

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CaptureError{Err: err}
	}
	return data, nil
}

// Close is a no-op for a directory source.
func (s *DirSource) Close() error {
	return nil
}
