package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const vehicleIDKey contextKey = "vehicle_id"

// AuthMiddleware returns middleware that validates authentication.
// Token issuance lives with the user service; here we only check the bearer.
// If token is empty, any Bearer token is accepted. If token is non-empty,
// the Bearer token must match exactly.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				Unauthorized(w)
				return
			}
			bearerValue := authHeader[len(prefix):]
			if bearerValue == "" || (token != "" && bearerValue != token) {
				Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// VehicleIDMiddleware extracts the vehicle_id from the chi URL parameter
// and stores it in the request context.
func VehicleIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vehicleID := chi.URLParam(r, "vehicle_id")
		if vehicleID == "" {
			BadRequest(w, "vehicle_id is required")
			return
		}
		ctx := context.WithValue(r.Context(), vehicleIDKey, vehicleID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetVehicleID retrieves the vehicle_id stored in the context by VehicleIDMiddleware.
func GetVehicleID(ctx context.Context) string {
	v, _ := ctx.Value(vehicleIDKey).(string)
	return v
}
