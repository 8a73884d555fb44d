package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/attendance/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	// Create handlers
	sessionsHandler := handlers.NewSessionsHandler(s.config, deps.Sessions)
	attendanceHandler := handlers.NewAttendanceHandler(deps.Ledger)
	galleryHandler := handlers.NewGalleryHandler(s.config, deps.Gallery, deps.Index, deps.Extractor)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Sessions (attendance runs)
		r.Post("/sessions", sessionsHandler.Start)
		r.Get("/sessions", sessionsHandler.List)
		r.Get("/sessions/{id}", sessionsHandler.Status)
		r.Delete("/sessions/{id}", sessionsHandler.Stop)
		r.Get("/sessions/{id}/events", sessionsHandler.Events)

		// Attendance records
		r.Get("/attendance", attendanceHandler.List)
		r.Get("/attendance/export", attendanceHandler.Export)
		r.Delete("/attendance", attendanceHandler.Clear)

		// Gallery inspection
		r.Get("/gallery", galleryHandler.Info)
		r.Get("/gallery/{label}/nearest", galleryHandler.Nearest)

		// One-shot identification without recording
		r.Post("/identify", galleryHandler.Identify)
	})
}
