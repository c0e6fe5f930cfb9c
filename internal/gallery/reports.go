package gallery

import (
	"context"
	"fmt"
	"strings"

	"github.com/leca/vehicle-gallery/internal/model"
)

// Search page sizes.
const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 100
)

// Statistics aggregates every gallery in the store.
func (m *Manager) Statistics(ctx context.Context) (*model.GalleryStats, error) {
	return m.db.GalleryStats(ctx)
}

// SearchImages returns one page of images across galleries matching f and
// the total number of matches.
func (m *Manager) SearchImages(ctx context.Context, f model.ImageFilter) ([]*model.VehicleImage, int, error) {
	if err := normalizeFilter(&f); err != nil {
		return nil, 0, err
	}
	return m.db.SearchImages(ctx, f)
}

func normalizeFilter(f *model.ImageFilter) error {
	if f.Limit == 0 {
		f.Limit = DefaultSearchLimit
	}
	if f.Limit < 0 || f.Limit > MaxSearchLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidFilter, MaxSearchLimit)
	}
	if f.Offset < 0 {
		return fmt.Errorf("%w: negative offset", ErrInvalidFilter)
	}
	for _, p := range []int{f.PositionMin, f.PositionMax} {
		if p != 0 && !validPosition(p) {
			return fmt.Errorf("%w: position %d out of range", ErrInvalidFilter, p)
		}
	}
	if f.PositionMin > 0 && f.PositionMax > 0 && f.PositionMin > f.PositionMax {
		return fmt.Errorf("%w: position range is empty", ErrInvalidFilter)
	}
	if f.MinFileSize < 0 || f.MaxFileSize < 0 || f.MinWidth < 0 || f.MinHeight < 0 {
		return fmt.Errorf("%w: negative bound", ErrInvalidFilter)
	}
	if f.MinFileSize > 0 && f.MaxFileSize > 0 && f.MinFileSize > f.MaxFileSize {
		return fmt.Errorf("%w: file size range is empty", ErrInvalidFilter)
	}
	f.Orientation = strings.ToLower(f.Orientation)
	switch f.Orientation {
	case "", model.OrientationLandscape, model.OrientationPortrait, model.OrientationSquare:
	default:
		return fmt.Errorf("%w: unknown orientation %q", ErrInvalidFilter, f.Orientation)
	}
	return nil
}
