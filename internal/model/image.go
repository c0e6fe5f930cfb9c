package model

import "time"

// MaxGallerySize is the number of images a single vehicle may hold.
// Positions run from 1 to MaxGallerySize inclusive.
const MaxGallerySize = 10

// VehicleKind distinguishes the vehicle families sold by the dealership.
type VehicleKind string

const (
	KindCar        VehicleKind = "car"
	KindMotorcycle VehicleKind = "motorcycle"
)

// Valid reports whether k is a known vehicle kind.
func (k VehicleKind) Valid() bool {
	return k == KindCar || k == KindMotorcycle
}

// Vehicle is the minimal registry row the gallery needs to check ownership.
// The full vehicle record lives with the vehicle service.
type Vehicle struct {
	ID        string      `json:"id"`
	Kind      VehicleKind `json:"kind"`
	CreatedAt time.Time   `json:"createdAt"`
}

// VehicleImage is one stored image in a vehicle's gallery.
type VehicleImage struct {
	ID            string    `json:"id"`
	VehicleID     string    `json:"vehicleId"`
	Filename      string    `json:"filename"`
	OriginalPath  string    `json:"originalPath"`
	ThumbnailPath *string   `json:"thumbnailPath"`
	Position      int       `json:"position"`
	IsPrimary     bool      `json:"isPrimary"`
	MimeType      string    `json:"mimeType"`
	FileSize      int64     `json:"fileSize"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	UploadedAt    time.Time `json:"uploadedAt"`
}

// HasThumbnail reports whether a thumbnail blob is recorded for the image.
func (img *VehicleImage) HasThumbnail() bool {
	return img.ThumbnailPath != nil && *img.ThumbnailPath != ""
}
