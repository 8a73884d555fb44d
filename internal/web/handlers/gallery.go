package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/extractor"
	"github.com/kozaktomas/attendance/internal/gallery"
	"github.com/kozaktomas/attendance/internal/match"
	"github.com/kozaktomas/attendance/internal/session"
)

// maxProbeImageSize bounds the request body of POST /identify.
const maxProbeImageSize = 20 << 20 // 20 MB

// GalleryHandler exposes the enrolled gallery for inspection and one-shot
// identification that does not touch the attendance ledger.
type GalleryHandler struct {
	config    *config.Config
	gallery   *gallery.Gallery
	index     *gallery.Index
	extractor session.Extractor
}

// NewGalleryHandler creates a new gallery handler.
func NewGalleryHandler(cfg *config.Config, g *gallery.Gallery, idx *gallery.Index, ext session.Extractor) *GalleryHandler {
	return &GalleryHandler{
		config:    cfg,
		gallery:   g,
		index:     idx,
		extractor: ext,
	}
}

// Info handles GET /gallery.
func (h *GalleryHandler) Info(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"size":   h.gallery.Size(),
		"labels": h.gallery.Labels(),
	})
}

// Nearest handles GET /gallery/{label}/nearest. It returns the enrolled
// identities closest to the given one, which surfaces duplicate enrollments
// under different names. Results are candidates, not attendance matches.
func (h *GalleryHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if !h.gallery.Has(label) {
		respondError(w, http.StatusNotFound, "identity not enrolled")
		return
	}

	k := 5
	if s := r.URL.Query().Get("k"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = n
	}

	neighbors := h.index.NearestToLabel(label, k)
	respondJSON(w, http.StatusOK, map[string]any{
		"label":     label,
		"neighbors": neighbors,
	})
}

// Identify handles POST /identify. The raw request body is an image; the
// response reports the match result for each detected face. Nothing is
// recorded in the ledger.
func (h *GalleryHandler) Identify(w http.ResponseWriter, r *http.Request) {
	imageData, err := io.ReadAll(io.LimitReader(r.Body, maxProbeImageSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return
	}
	if len(imageData) == 0 {
		respondError(w, http.StatusBadRequest, "empty image")
		return
	}

	faces, err := h.extractor.Extract(r.Context(), imageData)
	if err != nil {
		if errors.Is(err, extractor.ErrNoFaceFound) {
			respondJSON(w, http.StatusOK, map[string]any{
				"faces": []match.Result{},
				"count": 0,
			})
			return
		}
		respondError(w, http.StatusBadGateway, "extraction failed: "+err.Error())
		return
	}

	threshold := h.config.Matcher.Threshold
	results := make([]match.Result, 0, len(faces))
	for _, face := range faces {
		results = append(results, match.Match(face.Vector, h.gallery, threshold))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"faces": results,
		"count": len(results),
	})
}
