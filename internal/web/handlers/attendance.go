package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/attendance/internal/ledger"
)

// AttendanceHandler serves the recorded attendance log.
type AttendanceHandler struct {
	ledger *ledger.Ledger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(l *ledger.Ledger) *AttendanceHandler {
	return &AttendanceHandler{ledger: l}
}

// List handles GET /attendance. The optional session_key query parameter
// filters records to one session.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionKey := r.URL.Query().Get("session_key")
	records := h.ledger.Export(sessionKey)

	respondJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// Export handles GET /attendance/export. It streams the records as CSV in
// the same format the CSV store writes.
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	sessionKey := r.URL.Query().Get("session_key")
	records := h.ledger.Export(sessionKey)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="attendance.csv"`)
	w.WriteHeader(http.StatusOK)

	if err := ledger.WriteCSV(w, records); err != nil {
		// Headers are gone; all we can do is log.
		log.Printf("Failed to write attendance CSV: %v", err)
	}
}

// Clear handles DELETE /attendance. The in-memory wipe always succeeds; a
// store failure is reported but the memory state is already cleared.
func (h *AttendanceHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Clear(r.Context()); err != nil {
		respondJSON(w, http.StatusOK, map[string]string{
			"status":  "cleared",
			"warning": err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
