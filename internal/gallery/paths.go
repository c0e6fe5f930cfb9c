package gallery

import (
	"path"
	"strings"

	"github.com/leca/vehicle-gallery/internal/imageproc"
)

// VehiclePrefix is the blob prefix holding every blob of one vehicle.
func VehiclePrefix(vehicleID string) string {
	return "vehicles/" + vehicleID + "/"
}

// OriginalPath is where an original image blob lives.
func OriginalPath(vehicleID, filename string) string {
	return path.Join("vehicles", vehicleID, filename)
}

// ThumbnailPath is where the thumbnail of imageID lives. format is the
// thumbnail's encoded format ("jpeg" or "png").
func ThumbnailPath(vehicleID, imageID, format string) string {
	return path.Join("vehicles", vehicleID, "thumbnails", "thumb_"+imageID+imageproc.Extension(format))
}

// vehicleFromPath extracts the vehicle id from a blob path under "vehicles/".
func vehicleFromPath(p string) (string, bool) {
	rest, ok := strings.CutPrefix(p, "vehicles/")
	if !ok {
		return "", false
	}
	id, _, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
