package handler

import (
	"net/http"
	"strconv"

	"github.com/leca/vehicle-gallery/internal/api"
)

// Reconcile handles POST /admin/reconcile. Without ?repair=true it only
// reports inconsistencies.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	repair := false
	if v := r.URL.Query().Get("repair"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			api.BadField(w, "repair", "repair must be a boolean")
			return
		}
		repair = b
	}

	report, err := h.Gallery.Reconcile(r.Context(), repair)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(report))
}
