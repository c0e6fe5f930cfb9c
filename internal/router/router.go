package router

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/leca/vehicle-gallery/internal/api"
	"github.com/leca/vehicle-gallery/internal/config"
	"github.com/leca/vehicle-gallery/internal/database"
	"github.com/leca/vehicle-gallery/internal/gallery"
	"github.com/leca/vehicle-gallery/internal/handler"
	"github.com/leca/vehicle-gallery/internal/metrics"
)

// Server holds the application dependencies and HTTP router.
type Server struct {
	DB      database.Database
	Gallery *gallery.Manager
	Config  *config.Config
	Router  chi.Router
}

// New creates a new Server with a fully configured chi router.
func New(db database.Database, gal *gallery.Manager, cfg *config.Config) *Server {
	s := &Server{DB: db, Gallery: gal, Config: cfg}

	h := &handler.Handler{
		DB:      db,
		Gallery: gal,
		Config:  cfg,
	}

	r := chi.NewRouter()

	// CORS must run before other middleware to answer preflight OPTIONS.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// No auth on probes.
	r.Get("/health", s.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(api.AuthMiddleware(cfg.AuthToken))

		r.Post("/vehicles", h.CreateVehicle)
		r.Post("/admin/reconcile", h.Reconcile)
		r.Get("/images/statistics", h.Statistics)
		r.Get("/images/search", h.SearchImages)

		r.Route("/vehicles/{vehicle_id}", func(r chi.Router) {
			r.Use(api.VehicleIDMiddleware)

			r.Delete("/", h.DeleteVehicle)

			r.Post("/images", h.UploadImage)
			r.Get("/images", h.ListImages)

			// Fixed segments are registered before the {image_id} wildcard
			// so that /images/primary is not read as image_id="primary".
			r.Get("/images/primary", h.PrimaryImage)
			r.Put("/images/order", h.ReorderImages)

			r.Get("/images/{image_id}", h.GetImage)
			r.Delete("/images/{image_id}", h.DeleteImage)
			r.Post("/images/{image_id}/primary", h.PromotePrimary)
			r.Get("/images/{image_id}/original", h.GetOriginal)
			r.Get("/images/{image_id}/thumbnail", h.GetThumbnail)
			r.Post("/images/{image_id}/thumbnail", h.RegenerateThumbnail)
		})
	})

	s.Router = r
	return s
}

// Health returns a simple health-check response.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		slog.Warn("Health: failed to encode response", "error", err)
	}
}
