package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"postforge/internal/artifact"
	"postforge/internal/domain"
)

// ServeImage streams a variant image from the artifact store. The route shape
// is /images/{job_id}/{variant}.png.
func (a *App) ServeImage(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	file := chi.URLParam(r, "file")
	variantID := strings.TrimSuffix(file, ".png")
	if jobID == "" || variantID == file || !domain.ValidVariantID(variantID) {
		a.error(w, http.StatusNotFound, "not_found", "image not found")
		return
	}

	data, err := a.Store.GetImage(jobID, variantID)
	if err != nil {
		if errors.Is(err, artifact.ErrNotExist) {
			a.error(w, http.StatusNotFound, "not_found", "image not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Str("variant", variantID).Msg("handlers: read image failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read image")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
