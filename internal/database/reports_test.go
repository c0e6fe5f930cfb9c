package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leca/vehicle-gallery/internal/model"
)

func seedReportGalleries(t *testing.T, db *SQLDB) {
	t.Helper()
	seedVehicle(t, db, "car-a")
	seedVehicle(t, db, "car-b")
	seedVehicle(t, db, "car-empty")

	a1 := newImage("car-a", "a1", 1, true)
	a2 := newImage("car-a", "a2", 2, false)
	a2.Width, a2.Height = 300, 600
	a2.FileSize = 2 * mb
	a3 := newImage("car-a", "a3", 3, false)
	a3.Width, a3.Height = 500, 500
	a3.FileSize = 6 * mb
	a3.MimeType = "image/png"
	a3.ThumbnailPath = nil

	// car-b has images but lost its primary out of band.
	b1 := newImage("car-b", "b1", 1, false)
	b1.FileSize = 4 * mb

	insert(t, db, a1, a2, a3, b1)
}

func TestGalleryStats(t *testing.T) {
	db := newTestDB(t)
	seedReportGalleries(t, db)

	st, err := db.GalleryStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), st.TotalImages)
	assert.Equal(t, int64(1024+12*mb), st.TotalBytes)
	assert.Equal(t, st.TotalBytes/4, st.AverageBytes)
	assert.Equal(t, int64(2), st.VehiclesWithImages)
	assert.Equal(t, int64(1), st.VehiclesWithoutImages)
	assert.Equal(t, int64(1), st.VehiclesWithoutPrimary)
	assert.Equal(t, int64(1), st.ImagesWithoutThumbnail)
	assert.Equal(t, int64(1), st.LargeImages)
	assert.Equal(t, map[string]int64{"image/jpeg": 3, "image/png": 1}, st.ByFormat)
	assert.Equal(t, map[string]int64{
		model.OrientationLandscape: 2,
		model.OrientationPortrait:  1,
		model.OrientationSquare:    1,
	}, st.ByOrientation)
	assert.Equal(t, map[string]int64{
		model.SizeUnder1MB: 1,
		model.Size1To3MB:   1,
		model.Size3To5MB:   1,
		model.SizeOver5MB:  1,
	}, st.BySize)
}

func TestGalleryStats_Empty(t *testing.T) {
	db := newTestDB(t)

	st, err := db.GalleryStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.TotalImages)
	assert.Zero(t, st.AverageBytes)
	assert.Empty(t, st.ByFormat)
}

func TestSearchImages(t *testing.T) {
	db := newTestDB(t)
	seedReportGalleries(t, db)
	ctx := context.Background()
	yes, no := true, false

	tests := []struct {
		name   string
		filter model.ImageFilter
		want   []string
	}{
		{"all", model.ImageFilter{}, []string{"a1", "a2", "a3", "b1"}},
		{"vehicle", model.ImageFilter{VehicleID: "car-b"}, []string{"b1"}},
		{"primary", model.ImageFilter{IsPrimary: &yes}, []string{"a1"}},
		{"position range", model.ImageFilter{PositionMin: 2, PositionMax: 3}, []string{"a2", "a3"}},
		{"without thumbnail", model.ImageFilter{HasThumbnail: &no}, []string{"a3"}},
		{"size window", model.ImageFilter{MinFileSize: mb, MaxFileSize: 5 * mb}, []string{"a2", "b1"}},
		{"min width", model.ImageFilter{MinWidth: 500}, []string{"a1", "a3", "b1"}},
		{"portrait", model.ImageFilter{Orientation: model.OrientationPortrait}, []string{"a2"}},
		{"combined", model.ImageFilter{VehicleID: "car-a", IsPrimary: &no, Orientation: model.OrientationSquare}, []string{"a3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Limit = 50
			images, total, err := db.SearchImages(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), total)
			var got []string
			for _, img := range images {
				got = append(got, img.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchImages_Pagination(t *testing.T) {
	db := newTestDB(t)
	seedReportGalleries(t, db)

	images, total, err := db.SearchImages(context.Background(), model.ImageFilter{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, images, 2)
	assert.Equal(t, "a2", images[0].ID)
	assert.Equal(t, "a3", images[1].ID)
}
