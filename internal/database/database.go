package database

import (
	"context"
	"errors"

	"github.com/leca/vehicle-gallery/internal/model"
)

var (
	// ErrNotFound is returned when a vehicle or image row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint,
	// e.g. two rows claiming the same (vehicle, position) slot.
	ErrConflict = errors.New("constraint conflict")
)

// Database defines the persistence interface for vehicles and their galleries.
// Reads run outside a transaction; every mutation goes through InTx.
type Database interface {
	// Vehicles
	CreateVehicle(ctx context.Context, v *model.Vehicle) error
	GetVehicle(ctx context.Context, vehicleID string) (*model.Vehicle, error)
	ListVehicleIDs(ctx context.Context) ([]string, error)

	// Images
	GetImage(ctx context.Context, vehicleID, imageID string) (*model.VehicleImage, error)
	ListImages(ctx context.Context, vehicleID string) ([]*model.VehicleImage, error)
	GetPrimaryImage(ctx context.Context, vehicleID string) (*model.VehicleImage, error)

	// Reporting
	GalleryStats(ctx context.Context) (*model.GalleryStats, error)
	SearchImages(ctx context.Context, f model.ImageFilter) ([]*model.VehicleImage, int, error)

	// InTx runs fn inside a single transaction. The transaction commits when
	// fn returns nil and rolls back otherwise. fn may be invoked more than
	// once when the store retries a serialization failure.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Tx is the set of gallery mutations available inside a transaction.
type Tx interface {
	VehicleExists(vehicleID string) (bool, error)
	DeleteVehicle(vehicleID string) error

	ListImages(vehicleID string) ([]*model.VehicleImage, error)
	InsertImage(img *model.VehicleImage) error
	DeleteImage(vehicleID, imageID string) error
	DeleteImagesByVehicle(vehicleID string) error

	// ClearPrimary unsets the primary flag on every image of the vehicle.
	ClearPrimary(vehicleID string) error
	// SetPrimary clears any existing primary and marks imageID primary.
	SetPrimary(vehicleID, imageID string) error
	// SetPositions assigns position i+1 to orderedIDs[i]. orderedIDs must
	// name every image of the vehicle exactly once.
	SetPositions(vehicleID string, orderedIDs []string) error
	SetThumbnailPath(vehicleID, imageID string, path *string) error
}
