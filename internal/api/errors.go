package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/leca/vehicle-gallery/internal/gallery"
	"github.com/leca/vehicle-gallery/internal/lock"
)

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse(9400, msg))
}

// BadField writes a 400 error response naming the offending field.
func BadField(w http.ResponseWriter, field, msg string) {
	WriteJSON(w, http.StatusBadRequest, FieldErrorResponse(9400, msg, field))
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, ErrorResponse(9401, "Authentication required"))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusNotFound, ErrorResponse(9404, msg))
}

// Conflict writes a 409 error response.
func Conflict(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusConflict, ErrorResponse(9409, msg))
}

// TooLarge writes a 413 error response.
func TooLarge(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse(9413, msg))
}

// errorMapping is the stable outward form of a gallery error.
type errorMapping struct {
	target  error
	status  int
	code    int
	message string
}

var galleryErrors = []errorMapping{
	{gallery.ErrVehicleNotFound, http.StatusNotFound, 9404, "vehicle not found"},
	{gallery.ErrImageNotFound, http.StatusNotFound, 9414, "image not found"},
	{gallery.ErrGalleryFull, http.StatusConflict, 9421, "gallery is full"},
	{gallery.ErrPositionConflict, http.StatusConflict, 9409, "position already in use"},
	{gallery.ErrInvalidPosition, http.StatusBadRequest, 9402, "position must be between 1 and 10"},
	{gallery.ErrInvalidFilter, http.StatusBadRequest, 9400, "invalid search filter"},
	{gallery.ErrInvalidReorderSet, http.StatusUnprocessableEntity, 9422, "reorder set must match the gallery exactly"},
	{gallery.ErrThumbnailGenerationFailed, http.StatusUnsupportedMediaType, 9415, "unsupported or corrupt image"},
	{gallery.ErrImageTooLarge, http.StatusRequestEntityTooLarge, 9413, "image too large"},
	{gallery.ErrStorageWriteFailed, http.StatusInternalServerError, 9500, "storage write failed"},
}

// StatusFor returns the HTTP status, error code and message for err. Only
// the fixed messages above ever reach the client.
func StatusFor(err error) (int, int, string) {
	// Timeouts first: a write cut short by the caller's deadline also
	// carries ErrStorageWriteFailed.
	if errors.Is(err, lock.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable, 9503, "gallery busy, retry later"
	}
	for _, m := range galleryErrors {
		if errors.Is(err, m.target) {
			return m.status, m.code, m.message
		}
	}
	return http.StatusInternalServerError, 9500, "internal error"
}

// WriteError maps err to its outward response. Server-side failures are
// logged with the full error, which never leaves the process.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	WriteJSON(w, status, ErrorResponse(code, msg))
}
