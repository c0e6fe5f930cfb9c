package model

// LargeImageBytes marks an original as large in gallery statistics.
const LargeImageBytes = 5 << 20

// Orientation buckets of an image by its stored dimensions.
const (
	OrientationLandscape = "landscape"
	OrientationPortrait  = "portrait"
	OrientationSquare    = "square"
)

// Size buckets reported in GalleryStats.BySize.
const (
	SizeUnder1MB = "under_1mb"
	Size1To3MB   = "1mb_3mb"
	Size3To5MB   = "3mb_5mb"
	SizeOver5MB  = "over_5mb"
)

// GalleryStats aggregates every gallery in the store.
type GalleryStats struct {
	TotalImages            int64            `json:"totalImages"`
	TotalBytes             int64            `json:"totalBytes"`
	AverageBytes           int64            `json:"averageBytes"`
	VehiclesWithImages     int64            `json:"vehiclesWithImages"`
	VehiclesWithoutImages  int64            `json:"vehiclesWithoutImages"`
	VehiclesWithoutPrimary int64            `json:"vehiclesWithoutPrimary"`
	ImagesWithoutThumbnail int64            `json:"imagesWithoutThumbnail"`
	LargeImages            int64            `json:"largeImages"`
	ByFormat               map[string]int64 `json:"byFormat"`
	ByOrientation          map[string]int64 `json:"byOrientation"`
	BySize                 map[string]int64 `json:"bySize"`
}

// ImageFilter selects images across galleries. Zero fields do not filter.
type ImageFilter struct {
	VehicleID    string
	IsPrimary    *bool
	PositionMin  int
	PositionMax  int
	HasThumbnail *bool
	MinFileSize  int64
	MaxFileSize  int64
	MinWidth     int
	MinHeight    int
	Orientation  string

	Offset int
	Limit  int
}
