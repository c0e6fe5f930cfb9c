package handler

import (
	"github.com/leca/vehicle-gallery/internal/config"
	"github.com/leca/vehicle-gallery/internal/database"
	"github.com/leca/vehicle-gallery/internal/gallery"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	DB      database.Database
	Gallery *gallery.Manager
	Config  *config.Config
}
