package session

import (
	"context"
	"testing"
	"time"

	"github.com/kozaktomas/attendance/internal/extractor"
	"github.com/kozaktomas/attendance/internal/ledger"
)

// blockingSource blocks on Next until its context is cancelled, simulating
// a live camera with no face in view.
type blockingSource struct {
	closed chan struct{}
}

func (s *blockingSource) Next(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *blockingSource) Close() error {
	close(s.closed)
	return nil
}

func waitForTerminal(t *testing.T, sess *Session) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if sess.GetState().Terminal() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("session never reached a terminal state, state = %s", sess.GetState())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestManager_StartAndFinish(t *testing.T) {
	ext := &stubExtractor{faces: map[string][]extractor.Face{
		"f": {{Vector: []float32{0.1, 0}}},
	}}
	m := NewManager(newController(t, ext, ledger.New(nil)))

	src := &stubSource{frames: [][]byte{[]byte("f")}}
	sess, err := m.Start("Math-2024-01-01", src)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if m.Get(sess.ID) != sess {
		t.Error("expected manager to track the session by ID")
	}

	waitForTerminal(t, sess)

	outcome := sess.GetOutcome()
	if outcome == nil || outcome.State != StateRecorded {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if !src.closed {
		t.Error("expected frame source to be closed after the run")
	}
	if sess.GetEndedAt() == nil {
		t.Error("expected EndedAt to be set")
	}
}

func TestManager_StatusReadsDuringFinish(t *testing.T) {
	ext := &stubExtractor{faces: map[string][]extractor.Face{
		"f": {{Vector: []float32{0.1, 0}}},
	}}

	// Status polling must be safe against the finishing goroutine; run a few
	// rounds so the poller and finish actually overlap under the race
	// detector.
	for i := 0; i < 10; i++ {
		m := NewManager(newController(t, ext, ledger.New(nil)))
		src := &stubSource{frames: [][]byte{[]byte("f")}}

		sess, err := m.Start("Math", src)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			deadline := time.Now().Add(5 * time.Second)
			for !sess.GetState().Terminal() {
				_ = sess.GetEndedAt()
				_ = sess.GetOutcome()
				if time.Now().After(deadline) {
					return
				}
			}
			// finish publishes state, outcome, and EndedAt in one critical
			// section, so a terminal state implies the rest is visible.
			if sess.GetEndedAt() == nil || sess.GetOutcome() == nil {
				t.Error("terminal session must expose EndedAt and outcome")
			}
		}()

		waitForTerminal(t, sess)
		<-done
	}
}

func TestManager_RequiresSessionKey(t *testing.T) {
	m := NewManager(newController(t, &stubExtractor{}, ledger.New(nil)))
	if _, err := m.Start("", &stubSource{}); err == nil {
		t.Fatal("expected error for empty session key")
	}
}

func TestManager_StopTakesEffectAtFrameBoundary(t *testing.T) {
	m := NewManager(newController(t, &stubExtractor{}, ledger.New(nil)))
	src := &blockingSource{closed: make(chan struct{})}

	sess, err := m.Start("Math", src)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	sess.Stop()
	waitForTerminal(t, sess)

	if sess.GetState() != StateStopped {
		t.Errorf("expected Stopped, got %s", sess.GetState())
	}
	select {
	case <-src.closed:
	case <-time.After(time.Second):
		t.Error("expected source to be closed after stop")
	}
}

func TestManager_DeleteStopsRunningSession(t *testing.T) {
	m := NewManager(newController(t, &stubExtractor{}, ledger.New(nil)))
	src := &blockingSource{closed: make(chan struct{})}

	sess, _ := m.Start("Math", src)
	m.Delete(sess.ID)

	if m.Get(sess.ID) != nil {
		t.Error("expected session to be forgotten")
	}
	waitForTerminal(t, sess)
}

func TestBroadcaster_DropsEventsForSlowListeners(t *testing.T) {
	var b Broadcaster
	ch := b.AddListener()

	// Overflow the buffer; Send must never block.
	for i := 0; i < eventChannelBuffer*2; i++ {
		b.Send(Event{Type: EventNoMatch, Frame: i})
	}

	if len(ch) != eventChannelBuffer {
		t.Errorf("expected full buffer of %d events, got %d", eventChannelBuffer, len(ch))
	}
	b.RemoveListener(ch)
	if _, ok := <-ch; ok {
		// Drain remaining buffered events until closed.
		for range ch {
		}
	}
}
