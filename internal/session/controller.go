// Package session orchestrates one bounded attendance run: it pulls frames
// from a source, asks the extractor for face vectors, matches them against
// the gallery, and records the first confident identity in the ledger,
// exactly once per (identity, session key).
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/attendance/internal/extractor"
	"github.com/kozaktomas/attendance/internal/frame"
	"github.com/kozaktomas/attendance/internal/gallery"
	"github.com/kozaktomas/attendance/internal/ledger"
	"github.com/kozaktomas/attendance/internal/match"
)

// State is the session's position in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateMatched   State = "matched"
	StateRecorded  State = "recorded"
	StateStopped   State = "stopped"
)

// Terminal reports whether the state ends the session.
func (s State) Terminal() bool {
	return s == StateRecorded || s == StateStopped
}

// Extractor is the vector-extraction collaborator as the controller sees it.
// *extractor.Client satisfies it.
type Extractor interface {
	Extract(ctx context.Context, imageData []byte) ([]extractor.Face, error)
}

// Outcome summarizes how a session ended.
type Outcome struct {
	State    State   `json:"state"`
	Identity string  `json:"identity,omitempty"`
	Distance float64 `json:"distance"`
	New      bool    `json:"new,omitempty"`
	Frames   int     `json:"frames"`
	Err      error   `json:"-"`
}

// Controller runs attendance sessions against a fixed gallery and ledger.
// It holds no per-session state; Run takes everything session-scoped as
// arguments, so controllers are safe to share across concurrent sessions.
type Controller struct {
	Gallery   *gallery.Gallery
	Ledger    *ledger.Ledger
	Extractor Extractor
	Threshold float64
	// Scale is the linear downscale factor applied to frames before
	// extraction; <= 0 disables downscaling.
	Scale float64
	// MaxFrames bounds the capture stream; 0 means unbounded (the caller
	// bounds it by cancelling the context).
	MaxFrames int
	// Now is the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Run consumes frames until the first confident match is recorded, the
// stream ends, the frame bound is hit, or ctx is cancelled. Events are sent
// to the broadcaster as they happen; the returned Outcome mirrors the final
// event. Run never returns a partial attendance record: recording is the
// ledger's atomic TryRecord.
func (c *Controller) Run(ctx context.Context, sessionKey string, src frame.Source, events *Broadcaster) Outcome {
	events.Send(Event{Type: EventCapturing, State: StateCapturing, Message: sessionKey})

	frames := 0
	for c.MaxFrames <= 0 || frames < c.MaxFrames {
		data, err := src.Next(ctx)
		if err != nil {
			return c.stop(events, frames, err)
		}
		frames++

		observed, err := c.observe(ctx, data)
		if err != nil {
			if errors.Is(err, extractor.ErrNoFaceFound) {
				// No observation this frame; keep capturing.
				continue
			}
			// Extraction service hiccup: warn and keep capturing. The frame
			// bound or the caller's context prevents spinning forever
			// against a dead service.
			events.Send(Event{
				Type: EventWarning, State: StateCapturing, Frame: frames,
				Message: fmt.Sprintf("extraction failed: %v", err),
			})
			continue
		}

		result, ok := c.matchObservations(observed)
		if !ok {
			events.Send(Event{
				Type: EventNoMatch, State: StateCapturing, Frame: frames,
				Distance: result.Distance,
			})
			continue
		}

		// Matched: stop consuming frames and record.
		events.Send(Event{
			Type: EventMatch, State: StateMatched, Frame: frames,
			Identity: result.Identity, Distance: result.Distance,
		})
		return c.record(ctx, sessionKey, result, frames, events)
	}

	return c.stop(events, frames, nil)
}

// observe extracts face vectors from one frame, downscaling first.
func (c *Controller) observe(ctx context.Context, data []byte) ([]extractor.Face, error) {
	if c.Scale > 0 && c.Scale < 1 {
		scaled, err := extractor.Downscale(data, c.Scale)
		if err == nil {
			data = scaled
		}
		// An undecodable frame goes to the extractor as-is; the extractor
		// is the authority on whether it contains a face.
	}
	return c.Extractor.Extract(ctx, data)
}

// matchObservations matches each observed face in order and returns the
// first confident result, or the best near-miss with ok=false.
func (c *Controller) matchObservations(observed []extractor.Face) (match.Result, bool) {
	best := match.Result{Distance: -1}
	for _, face := range observed {
		result := match.Match(face.Vector, c.Gallery, c.Threshold)
		if result.OK {
			return result, true
		}
		if best.Distance < 0 || result.Distance < best.Distance {
			best = result
		}
	}
	return best, false
}

// record runs the Matched -> Recorded transition. Whether the record is new
// or already present, the session ends successfully; the event differs.
func (c *Controller) record(ctx context.Context, sessionKey string, result match.Result, frames int, events *Broadcaster) Outcome {
	identity := gallery.DisplayLabel(result.Identity)

	rec, created, err := c.Ledger.TryRecord(ctx, identity, sessionKey, c.now())
	if err != nil {
		// Store failure only; the in-memory record stands. Surface as a
		// warning, not a session failure.
		events.Send(Event{
			Type: EventWarning, State: StateMatched,
			Message: fmt.Sprintf("attendance persisted in memory only: %v", err),
		})
	}

	eventType := EventRecorded
	if !created {
		eventType = EventAlready
	}
	events.Send(Event{
		Type: eventType, State: StateRecorded,
		Identity: rec.Identity, Distance: result.Distance, New: created, Frame: frames,
	})

	return Outcome{
		State:    StateRecorded,
		Identity: rec.Identity,
		Distance: result.Distance,
		New:      created,
		Frames:   frames,
		Err:      err,
	}
}

// stop runs the transition into Stopped: end of stream, explicit stop,
// frame bound, or capture failure. It carries no identity.
func (c *Controller) stop(events *Broadcaster, frames int, cause error) Outcome {
	message := "no match"
	var capErr *frame.CaptureError

	switch {
	case cause == nil || errors.Is(cause, frame.ErrEndOfStream):
		cause = nil
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		message = "stopped"
		cause = nil
	case errors.As(cause, &capErr):
		message = capErr.Error()
	default:
		message = cause.Error()
	}

	events.Send(Event{Type: EventStopped, State: StateStopped, Frame: frames, Message: message})
	return Outcome{State: StateStopped, Frames: frames, Err: cause}
}
