package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/leca/vehicle-gallery/internal/api"
	"github.com/leca/vehicle-gallery/internal/gallery"
	"github.com/leca/vehicle-gallery/internal/model"
)

// Statistics handles GET /images/statistics.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.Gallery.Statistics(r.Context())
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(st))
}

// SearchImages handles GET /images/search. Every query parameter is an
// optional filter; offset and limit page the result.
func (h *Handler) SearchImages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.ImageFilter{
		VehicleID:   q.Get("vehicle_id"),
		Orientation: q.Get("orientation"),
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"position_min", &f.PositionMin},
		{"position_max", &f.PositionMax},
		{"min_width", &f.MinWidth},
		{"min_height", &f.MinHeight},
		{"offset", &f.Offset},
		{"limit", &f.Limit},
	}
	for _, p := range ints {
		if !queryInt(w, q, p.name, p.dst) {
			return
		}
	}
	var pos int
	if !queryInt(w, q, "position", &pos) {
		return
	}
	if pos != 0 {
		f.PositionMin, f.PositionMax = pos, pos
	}

	var minSize, maxSize int
	if !queryInt(w, q, "min_file_size", &minSize) || !queryInt(w, q, "max_file_size", &maxSize) {
		return
	}
	f.MinFileSize, f.MaxFileSize = int64(minSize), int64(maxSize)

	var ok bool
	if f.IsPrimary, ok = queryBool(w, q, "is_primary"); !ok {
		return
	}
	if f.HasThumbnail, ok = queryBool(w, q, "has_thumbnail"); !ok {
		return
	}

	images, total, err := h.Gallery.SearchImages(r.Context(), f)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	limit := f.Limit
	if limit == 0 {
		limit = gallery.DefaultSearchLimit
	}
	api.WriteJSON(w, http.StatusOK, api.PaginatedResponse(map[string]any{"images": images}, api.ResultInfo{
		Offset:     f.Offset,
		Limit:      limit,
		Count:      len(images),
		TotalCount: total,
	}))
}

func queryInt(w http.ResponseWriter, q url.Values, name string, dst *int) bool {
	v := q.Get(name)
	if v == "" {
		return true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		api.BadField(w, name, name+" must be an integer")
		return false
	}
	*dst = n
	return true
}

func queryBool(w http.ResponseWriter, q url.Values, name string) (*bool, bool) {
	v := q.Get(name)
	if v == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		api.BadField(w, name, name+" must be a boolean")
		return nil, false
	}
	return &b, true
}
