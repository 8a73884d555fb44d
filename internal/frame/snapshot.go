package frame

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultSnapshotInterval = 200 * time.Millisecond

// SnapshotSource polls an HTTP camera snapshot endpoint (one JPEG per GET,
// the usual IP-camera /snapshot contract) at a fixed interval. The stream is
// unbounded; the caller bounds it by context or frame count.
type SnapshotSource struct {
	url      string
	interval time.Duration
	client   *http.Client
	last     time.Time
}

// NewSnapshotSource creates a source polling the given URL. A non-positive
// interval falls back to the default.
func NewSnapshotSource(url string, interval time.Duration) *SnapshotSource {
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	return &SnapshotSource{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Next waits out the polling interval, fetches one snapshot, and returns its
// bytes. HTTP failures are *CaptureError (camera unreachable is fatal to
// the session, per the capture contract).
func (s *SnapshotSource) Next(ctx context.Context) ([]byte, error) {
	if wait := s.interval - time.Since(s.last); wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	s.last = time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &CaptureError{Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// Context cancellation surfaces as itself, not as a capture failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &CaptureError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &CaptureError{Err: fmt.Errorf("snapshot endpoint returned status %d", resp.StatusCode)}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, &CaptureError{Err: fmt.Errorf("snapshot endpoint returned %s, not an image", ct)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CaptureError{Err: err}
	}
	return data, nil
}

// Close is a no-op; each snapshot is an independent request.
func (s *SnapshotSource) Close() error {
	return nil
}
