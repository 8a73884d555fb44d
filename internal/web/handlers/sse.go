package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// Events handles GET /sessions/{id}/events. It streams session events via
// SSE until the session reaches a terminal state or the client disconnects.
// Connecting to a finished session delivers the final status and closes.
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	sess := h.lookup(w, r)
	if sess == nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventCh := sess.AddListener()
	defer sess.RemoveListener(eventCh)

	// Initial status frame so late subscribers see where the session stands.
	sendSSEEvent(w, flusher, "status", viewOf(sess))

	if sess.GetState().Terminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				// Session finished; all listener channels were closed.
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if sess.GetState().Terminal() {
				return
			}
		}
	}
}

// sendSSEEvent writes a single SSE event frame and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
