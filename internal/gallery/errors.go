package gallery

import "errors"

// Gallery errors. Callers match them with errors.Is; wrapped causes carry
// detail for logs only.
var (
	ErrVehicleNotFound           = errors.New("vehicle not found")
	ErrImageNotFound             = errors.New("image not found")
	ErrGalleryFull               = errors.New("gallery is full")
	ErrPositionConflict          = errors.New("position already in use")
	ErrInvalidPosition           = errors.New("position out of range")
	ErrInvalidReorderSet         = errors.New("reorder set does not match gallery")
	ErrThumbnailGenerationFailed = errors.New("thumbnail generation failed")
	ErrImageTooLarge             = errors.New("image too large")
	ErrStorageWriteFailed        = errors.New("storage write failed")
	ErrInvalidFilter             = errors.New("invalid image filter")

	// ErrStorageDeleteFailed is logged, never returned: the metadata delete
	// has already committed when blob cleanup runs.
	ErrStorageDeleteFailed = errors.New("storage delete failed")
)
