package session

import (
	"sync"
)

// eventChannelBuffer is the per-listener buffer size. A slow SSE consumer
// drops events rather than stalling the capture loop.
const eventChannelBuffer = 64

// Event is one UI-facing notification from a running session.
type Event struct {
	Type     string  `json:"type"`
	State    State   `json:"state"`
	Identity string  `json:"identity,omitempty"`
	Distance float64 `json:"distance"`
	New      bool    `json:"new,omitempty"`
	Frame    int     `json:"frame,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// Event types emitted over a session's lifetime.
const (
	EventCapturing = "capturing"        // session started consuming frames
	EventNoMatch   = "no_match"         // faces observed, none under threshold
	EventMatch     = "match"            // confident match, capture stops
	EventRecorded  = "recorded"         // attendance newly recorded
	EventAlready   = "already_recorded" // match was recorded in an earlier run
	EventWarning   = "warning"          // non-fatal problem (store write, extractor hiccup)
	EventStopped   = "stopped"          // session ended without a match
)

// Broadcaster fans session events out to any number of listeners. Embed it
// in the Session struct; listeners with full buffers miss events instead of
// blocking the controller.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []chan Event
}

// AddListener registers a new event listener channel.
func (b *Broadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener unregisters and closes a listener channel.
func (b *Broadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Send delivers an event to all listeners.
func (b *Broadcaster) Send(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// closeAll closes every listener; called when the session reaches a
// terminal state.
func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
}
