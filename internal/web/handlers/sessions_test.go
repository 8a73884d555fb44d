package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/attendance/internal/extractor"
	"github.com/kozaktomas/attendance/internal/ledger"
	"github.com/kozaktomas/attendance/internal/session"
)

// frameDir creates a directory with n fake image files.
func frameDir(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, "frame"+string(rune('a'+i))+".jpg")
		if err := os.WriteFile(path, []byte("not-a-real-jpeg"), 0o644); err != nil {
			t.Fatalf("failed to write frame file: %v", err)
		}
	}
	return dir
}

// waitTerminal polls the session until it reaches a terminal state.
func waitTerminal(t *testing.T, m *session.Manager, id string) *session.Session {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sess := m.Get(id)
		if sess != nil && sess.GetState().Terminal() {
			return sess
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session did not reach a terminal state in time")
	return nil
}

func TestSessionsStart_MissingKey(t *testing.T) {
	g := testGallery(t)
	l := ledger.New(nil)
	h := NewSessionsHandler(testConfig(), testManager(g, l, &stubExtractor{}))

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"source":"directory","dir":"/tmp"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "session_key is required")
}

func TestSessionsStart_InvalidBody(t *testing.T) {
	g := testGallery(t)
	l := ledger.New(nil)
	h := NewSessionsHandler(testConfig(), testManager(g, l, &stubExtractor{}))

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, errInvalidRequestBody)
}

func TestSessionsStart_UnknownSource(t *testing.T) {
	g := testGallery(t)
	l := ledger.New(nil)
	h := NewSessionsHandler(testConfig(), testManager(g, l, &stubExtractor{}))

	req := httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"session_key":"math","source":"webcam"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestSessionsStart_NoSnapshotURL(t *testing.T) {
	g := testGallery(t)
	l := ledger.New(nil)
	h := NewSessionsHandler(testConfig(), testManager(g, l, &stubExtractor{}))

	req := httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"session_key":"math"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestSessionsStart_DirectorySourceRecordsMatch(t *testing.T) {
	g := testGallery(t)
	l := ledger.New(nil)
	// Every frame observes alice exactly.
	ext := &stubExtractor{faces: []extractor.Face{
		{Vector: []float32{0, 0, 0, 0}},
	}}
	manager := testManager(g, l, ext)
	h := NewSessionsHandler(testConfig(), manager)

	dir := frameDir(t, 3)
	req := httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"session_key":"math-monday","source":"directory","dir":"`+dir+`"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	assertStatusCode(t, rec, http.StatusCreated)

	var view struct {
		ID    string `json:"id"`
		Key   string `json:"session_key"`
		State string `json:"state"`
	}
	parseJSONResponse(t, rec, &view)
	if view.ID == "" {
		t.Fatal("expected a session ID")
	}
	if view.Key != "math-monday" {
		t.Errorf("expected session key 'math-monday', got '%s'", view.Key)
	}

	sess := waitTerminal(t, manager, view.ID)
	outcome := sess.GetOutcome()
	if outcome == nil {
		t.Fatal("expected an outcome")
	}
	if outcome.State != session.StateRecorded {
		t.Errorf("expected state recorded, got %s", outcome.State)
	}
	if outcome.Identity != "ALICE" {
		t.Errorf("expected identity 'ALICE', got '%s'", outcome.Identity)
	}

	records := l.Export("math-monday")
	if len(records) != 1 {
		t.Fatalf("expected 1 attendance record, got %d", len(records))
	}
}

func TestSessionsStatus_NotFound(t *testing.T) {
	g := testGallery(t)
	l := ledger.New(nil)
	h := NewSessionsHandler(testConfig(), testManager(g, l, &stubExtractor{}))

	req := httptest.NewRequest(http.MethodGet, "/sessions/nope", nil)
	req = requestWithChiParams(req, map[string]string{"id": "nope"})
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	assertStatusCode(t, rec, http.StatusNotFound)
	assertJSONError(t, rec, "session not found")
}

func TestSessionsList(t *testing.T) {
	g := testGallery(t)
	l := ledger.New(nil)
	ext := &stubExtractor{err: extractor.ErrNoFaceFound}
	manager := testManager(g, l, ext)
	h := NewSessionsHandler(testConfig(), manager)

	dir := frameDir(t, 1)
	req := httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"session_key":"math","source":"directory","dir":"`+dir+`"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, req)
	assertStatusCode(t, rec, http.StatusCreated)

	listRec := httptest.NewRecorder()
	h.List(listRec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	assertStatusCode(t, listRec, http.StatusOK)

	var listResp struct {
		Count int `json:"count"`
	}
	parseJSONResponse(t, listRec, &listResp)
	if listResp.Count != 1 {
		t.Errorf("expected 1 session, got %d", listResp.Count)
	}
}

func TestSessionsStop(t *testing.T) {
	g := testGallery(t)
	l := ledger.New(nil)
	// Faces observed but never within threshold, so the session would run
	// through all frames without stopping early.
	ext := &stubExtractor{faces: []extractor.Face{
		{Vector: []float32{10, 10, 10, 10}},
	}}
	manager := testManager(g, l, ext)
	h := NewSessionsHandler(testConfig(), manager)

	dir := frameDir(t, 5)
	req := httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"session_key":"math","source":"directory","dir":"`+dir+`"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, req)
	assertStatusCode(t, rec, http.StatusCreated)

	var view struct {
		ID string `json:"id"`
	}
	parseJSONResponse(t, rec, &view)

	stopReq := httptest.NewRequest(http.MethodDelete, "/sessions/"+view.ID, nil)
	stopReq = requestWithChiParams(stopReq, map[string]string{"id": view.ID})
	stopRec := httptest.NewRecorder()
	h.Stop(stopRec, stopReq)
	assertStatusCode(t, stopRec, http.StatusOK)

	sess := waitTerminal(t, manager, view.ID)
	if sess.GetState() != session.StateStopped {
		t.Errorf("expected state stopped, got %s", sess.GetState())
	}
	if l.Count() != 0 {
		t.Errorf("expected no attendance records, got %d", l.Count())
	}
}

func TestSessionsEvents_FinishedSession(t *testing.T) {
	g := testGallery(t)
	l := ledger.New(nil)
	ext := &stubExtractor{faces: []extractor.Face{
		{Vector: []float32{0, 0, 0, 0}},
	}}
	manager := testManager(g, l, ext)
	h := NewSessionsHandler(testConfig(), manager)

	dir := frameDir(t, 1)
	req := httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"session_key":"math","source":"directory","dir":"`+dir+`"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, req)
	assertStatusCode(t, rec, http.StatusCreated)

	var view struct {
		ID string `json:"id"`
	}
	parseJSONResponse(t, rec, &view)
	waitTerminal(t, manager, view.ID)

	// Subscribing after the fact still delivers the final status frame.
	evReq := httptest.NewRequest(http.MethodGet, "/sessions/"+view.ID+"/events", nil)
	evReq = requestWithChiParams(evReq, map[string]string{"id": view.ID})
	evRec := httptest.NewRecorder()
	h.Events(evRec, evReq)

	if ct := evRec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected Content-Type 'text/event-stream', got '%s'", ct)
	}
	body := evRec.Body.String()
	if !strings.Contains(body, "event: status") {
		t.Errorf("expected a status event, got: %s", body)
	}
	if !strings.Contains(body, `"state":"recorded"`) {
		t.Errorf("expected recorded state in status event, got: %s", body)
	}
}
