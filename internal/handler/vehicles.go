package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leca/vehicle-gallery/internal/api"
	"github.com/leca/vehicle-gallery/internal/database"
	"github.com/leca/vehicle-gallery/internal/model"
)

// CreateVehicle handles POST /vehicles. The vehicle service owns the full
// record; this registers the id so galleries can be attached to it.
func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID   string            `json:"id"`
		Kind model.VehicleKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.BadRequest(w, "invalid JSON body")
		return
	}
	if !body.Kind.Valid() {
		api.BadField(w, "kind", "kind must be car or motorcycle")
		return
	}
	if body.ID == "" {
		body.ID = uuid.NewString()
	}

	v := &model.Vehicle{ID: body.ID, Kind: body.Kind, CreatedAt: time.Now().UTC()}
	if err := h.DB.CreateVehicle(r.Context(), v); err != nil {
		if errors.Is(err, database.ErrConflict) {
			api.Conflict(w, "vehicle already exists")
			return
		}
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, api.SuccessResponse(v))
}

// DeleteVehicle handles DELETE /vehicles/{vehicle_id}. It cascades to the
// vehicle's gallery rows and blobs and is idempotent.
func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "vehicle_id")

	if err := h.Gallery.OnVehicleDeleted(r.Context(), vehicleID); err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(map[string]string{"id": vehicleID}))
}
