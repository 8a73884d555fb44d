// Package frame abstracts where video frames come from. The session
// controller only sees a Source; implementations cover a directory of still
// images (offline runs, tests) and an HTTP camera snapshot endpoint.
package frame

import (
	"context"
	"errors"
	"fmt"
)

// ErrEndOfStream signals that a finite source has no more frames. This is a
// normal end condition, not a capture failure.
var ErrEndOfStream = errors.New("frame: end of stream")

// CaptureError wraps a frame-source failure (camera disconnect, unreadable
// file). It is fatal to the current session.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("frame: capture failed: %v", e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Source produces a lazy sequence of encoded image frames. Next blocks until
// a frame is available, the stream ends (ErrEndOfStream), the context is
// cancelled, or capture fails (*CaptureError). Close releases the underlying
// device or connection; Next must not be called after Close.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}
