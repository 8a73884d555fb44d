package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/extractor"
	"github.com/kozaktomas/attendance/internal/gallery"
	"github.com/kozaktomas/attendance/internal/ledger"
	"github.com/kozaktomas/attendance/internal/session"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Matcher: config.MatcherConfig{
			Threshold: 0.6,
			Dimension: 4,
		},
		Capture: config.CaptureConfig{
			SnapshotIntervalMs: 1,
		},
	}
}

// stubExtractor returns canned faces regardless of the image bytes.
type stubExtractor struct {
	faces []extractor.Face
	err   error
}

func (s *stubExtractor) Extract(ctx context.Context, imageData []byte) ([]extractor.Face, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.faces, nil
}

// testGallery builds a two-identity gallery with 4-dimensional vectors.
// alice sits at the origin, bob at distance 2 from it.
func testGallery(t *testing.T) *gallery.Gallery {
	t.Helper()
	g, _, err := gallery.Build([]gallery.Reference{
		{Label: "alice", Vector: []float32{0, 0, 0, 0}},
		{Label: "bob", Vector: []float32{2, 0, 0, 0}},
	})
	if err != nil {
		t.Fatalf("failed to build test gallery: %v", err)
	}
	return g
}

// testManager wires a session manager around the given extractor stub.
func testManager(g *gallery.Gallery, l *ledger.Ledger, ext session.Extractor) *session.Manager {
	return session.NewManager(&session.Controller{
		Gallery:   g,
		Ledger:    l,
		Extractor: ext,
		Threshold: 0.6,
	})
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
