package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leca/vehicle-gallery/internal/api"
)

type blobOpener func(ctx context.Context, vehicleID, imageID string) ([]byte, string, error)

// GetOriginal handles GET /vehicles/{vehicle_id}/images/{image_id}/original.
func (h *Handler) GetOriginal(w http.ResponseWriter, r *http.Request) {
	h.serveBlob(w, r, h.Gallery.OpenOriginal)
}

// GetThumbnail handles GET /vehicles/{vehicle_id}/images/{image_id}/thumbnail.
func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	h.serveBlob(w, r, h.Gallery.OpenThumbnail)
}

func (h *Handler) serveBlob(w http.ResponseWriter, r *http.Request, open blobOpener) {
	vehicleID := api.GetVehicleID(r.Context())
	imageID := chi.URLParam(r, "image_id")

	data, contentType, err := open(r.Context(), vehicleID, imageID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("serveBlob: failed to write response", "image_id", imageID, "error", err)
	}
}
