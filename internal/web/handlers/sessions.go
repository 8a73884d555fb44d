package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/frame"
	"github.com/kozaktomas/attendance/internal/session"
)

// SessionsHandler controls attendance sessions over HTTP.
type SessionsHandler struct {
	config  *config.Config
	manager *session.Manager
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(cfg *config.Config, manager *session.Manager) *SessionsHandler {
	return &SessionsHandler{
		config:  cfg,
		manager: manager,
	}
}

// startSessionRequest is the body of POST /sessions.
type startSessionRequest struct {
	// SessionKey scopes attendance records, e.g. "Math-2026-03-14".
	SessionKey string `json:"session_key"`
	// Source selects where frames come from: "snapshot" polls the camera
	// snapshot URL, "directory" reads image files. Defaults to "snapshot".
	Source string `json:"source,omitempty"`
	// SnapshotURL overrides the configured camera snapshot endpoint.
	SnapshotURL string `json:"snapshot_url,omitempty"`
	// Dir is the image directory for the "directory" source.
	Dir string `json:"dir,omitempty"`
}

// sessionView is the JSON representation of a session's current state.
type sessionView struct {
	ID        string           `json:"id"`
	Key       string           `json:"session_key"`
	State     session.State    `json:"state"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   *time.Time       `json:"ended_at,omitempty"`
	Outcome   *session.Outcome `json:"outcome,omitempty"`
}

func viewOf(s *session.Session) sessionView {
	return sessionView{
		ID:        s.ID,
		Key:       s.Key,
		State:     s.GetState(),
		StartedAt: s.StartedAt,
		EndedAt:   s.GetEndedAt(),
		Outcome:   s.GetOutcome(),
	}
}

// Start handles POST /sessions. It builds the frame source and launches a
// background attendance run.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.SessionKey == "" {
		respondError(w, http.StatusBadRequest, "session_key is required")
		return
	}

	src, err := h.buildSource(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.manager.Start(req.SessionKey, src)
	if err != nil {
		src.Close()
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("Started session %s (key=%s)", sess.ID, sanitizeForLog(req.SessionKey))
	respondJSON(w, http.StatusCreated, viewOf(sess))
}

// buildSource constructs the frame source requested by the client.
func (h *SessionsHandler) buildSource(req *startSessionRequest) (frame.Source, error) {
	switch req.Source {
	case "", "snapshot":
		url := req.SnapshotURL
		if url == "" {
			url = h.config.Capture.SnapshotURL
		}
		if url == "" {
			return nil, fmt.Errorf("no snapshot URL configured; set CAMERA_SNAPSHOT_URL or pass snapshot_url")
		}
		return frame.NewSnapshotSource(url, h.config.Capture.SnapshotInterval()), nil
	case "directory":
		if req.Dir == "" {
			return nil, fmt.Errorf("dir is required for the directory source")
		}
		return frame.NewDirSource(req.Dir)
	default:
		return nil, fmt.Errorf("unknown source %q", req.Source)
	}
}

// List handles GET /sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.List()
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, viewOf(s))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": views,
		"count":    len(views),
	})
}

// Status handles GET /sessions/{id}.
func (h *SessionsHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess := h.lookup(w, r)
	if sess == nil {
		return
	}
	respondJSON(w, http.StatusOK, viewOf(sess))
}

// Stop handles DELETE /sessions/{id}. The session stops at the next frame
// boundary; its record stays queryable until deleted.
func (h *SessionsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	sess := h.lookup(w, r)
	if sess == nil {
		return
	}

	sess.Stop()
	respondJSON(w, http.StatusOK, map[string]string{
		"id":     sess.ID,
		"status": "stopping",
	})
}

// lookup resolves the {id} URL parameter to a session, writing the error
// response itself when the session does not exist.
func (h *SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) *session.Session {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing session ID")
		return nil
	}
	sess := h.manager.Get(id)
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return nil
	}
	return sess
}
