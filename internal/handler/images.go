package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leca/vehicle-gallery/internal/api"
	"github.com/leca/vehicle-gallery/internal/gallery"
	"github.com/leca/vehicle-gallery/internal/model"
)

// multipartOverhead leaves room for form boundaries and the small fields
// next to the file.
const multipartOverhead = 1 << 20

// UploadImage handles POST /vehicles/{vehicle_id}/images -- multipart upload
// with a "file" field and optional "position" and "primary" fields.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	vehicleID := api.GetVehicleID(r.Context())
	maxBytes := h.Gallery.MaxUploadBytes()

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.TooLarge(w, "image too large")
			return
		}
		api.BadRequest(w, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		api.BadField(w, "file", "missing required field: file")
		return
	}
	defer file.Close()

	// Read one byte past the cap so the manager can reject oversize input.
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		api.BadRequest(w, "failed to read upload")
		return
	}

	var position *int
	if v := r.FormValue("position"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			api.BadField(w, "position", "position must be an integer")
			return
		}
		position = &p
	}

	makePrimary := false
	if v := r.FormValue("primary"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			api.BadField(w, "primary", "primary must be a boolean")
			return
		}
		makePrimary = b
	}

	img, err := h.Gallery.UploadImage(r.Context(), vehicleID, data, position, makePrimary)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, api.SuccessResponse(img))
}

// ListImages handles GET /vehicles/{vehicle_id}/images.
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	vehicleID := api.GetVehicleID(r.Context())

	images, err := h.Gallery.ListImages(r.Context(), vehicleID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	// Ensure non-nil slice for JSON serialisation.
	if images == nil {
		images = []*model.VehicleImage{}
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(map[string]any{"images": images}))
}

// GetImage handles GET /vehicles/{vehicle_id}/images/{image_id}.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	vehicleID := api.GetVehicleID(r.Context())
	imageID := chi.URLParam(r, "image_id")

	img, err := h.Gallery.GetImage(r.Context(), vehicleID, imageID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(img))
}

// PrimaryImage handles GET /vehicles/{vehicle_id}/images/primary.
func (h *Handler) PrimaryImage(w http.ResponseWriter, r *http.Request) {
	vehicleID := api.GetVehicleID(r.Context())

	img, err := h.Gallery.PrimaryImage(r.Context(), vehicleID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(img))
}

// DeleteImage handles DELETE /vehicles/{vehicle_id}/images/{image_id}.
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	vehicleID := api.GetVehicleID(r.Context())
	imageID := chi.URLParam(r, "image_id")

	if err := h.Gallery.DeleteImage(r.Context(), vehicleID, imageID); err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(struct{}{}))
}

// ReorderImages handles PUT /vehicles/{vehicle_id}/images/order with body
// {"ids": [...]} listing every image id in the new display order.
func (h *Handler) ReorderImages(w http.ResponseWriter, r *http.Request) {
	vehicleID := api.GetVehicleID(r.Context())

	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.BadRequest(w, "invalid JSON body")
		return
	}

	if err := h.Gallery.ReorderImages(r.Context(), vehicleID, body.IDs); err != nil {
		api.WriteError(w, r, err)
		return
	}
	h.writeGallery(w, r, vehicleID)
}

// PromotePrimary handles POST /vehicles/{vehicle_id}/images/{image_id}/primary.
func (h *Handler) PromotePrimary(w http.ResponseWriter, r *http.Request) {
	vehicleID := api.GetVehicleID(r.Context())
	imageID := chi.URLParam(r, "image_id")

	if err := h.Gallery.PromotePrimary(r.Context(), vehicleID, imageID); err != nil {
		api.WriteError(w, r, err)
		return
	}
	h.writeGallery(w, r, vehicleID)
}

// RegenerateThumbnail handles POST /vehicles/{vehicle_id}/images/{image_id}/thumbnail.
func (h *Handler) RegenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	vehicleID := api.GetVehicleID(r.Context())
	imageID := chi.URLParam(r, "image_id")

	img, err := h.Gallery.RegenerateThumbnail(r.Context(), vehicleID, imageID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(img))
}

// writeGallery responds with the gallery as it stands after a mutation.
func (h *Handler) writeGallery(w http.ResponseWriter, r *http.Request, vehicleID string) {
	images, err := h.Gallery.ListImages(r.Context(), vehicleID)
	if err != nil && !errors.Is(err, gallery.ErrVehicleNotFound) {
		api.WriteError(w, r, err)
		return
	}
	if images == nil {
		images = []*model.VehicleImage{}
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(map[string]any{"images": images}))
}
