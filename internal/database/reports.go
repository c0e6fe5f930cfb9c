package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/leca/vehicle-gallery/internal/model"
)

const mb = 1 << 20

func (s *SQLDB) GalleryStats(ctx context.Context) (*model.GalleryStats, error) {
	st := &model.GalleryStats{
		ByFormat:      map[string]int64{},
		ByOrientation: map[string]int64{},
		BySize:        map[string]int64{},
	}

	var landscape, portrait, square, under1, to3, to5, over5 int64
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT
			COUNT(*),
			CAST(COALESCE(SUM(file_size), 0) AS BIGINT),
			COALESCE(SUM(CASE WHEN thumbnail_path IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN file_size > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN width > height AND height > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN height > width AND width > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN width = height AND width > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN file_size < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN file_size >= ? AND file_size < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN file_size >= ? AND file_size < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN file_size >= ? THEN 1 ELSE 0 END), 0)
		FROM vehicle_images`),
		model.LargeImageBytes, 1*mb, 1*mb, 3*mb, 3*mb, 5*mb, 5*mb,
	).Scan(&st.TotalImages, &st.TotalBytes, &st.ImagesWithoutThumbnail, &st.LargeImages,
		&landscape, &portrait, &square, &under1, &to3, &to5, &over5)
	if err != nil {
		return nil, fmt.Errorf("image totals: %w", err)
	}
	if st.TotalImages > 0 {
		st.AverageBytes = st.TotalBytes / st.TotalImages
	}
	st.ByOrientation[model.OrientationLandscape] = landscape
	st.ByOrientation[model.OrientationPortrait] = portrait
	st.ByOrientation[model.OrientationSquare] = square
	st.BySize[model.SizeUnder1MB] = under1
	st.BySize[model.Size1To3MB] = to3
	st.BySize[model.Size3To5MB] = to5
	st.BySize[model.SizeOver5MB] = over5

	var vehicles int64
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM vehicles),
			(SELECT COUNT(DISTINCT vehicle_id) FROM vehicle_images),
			(SELECT COUNT(DISTINCT i.vehicle_id) FROM vehicle_images i
				WHERE NOT EXISTS (
					SELECT 1 FROM vehicle_images p
					WHERE p.vehicle_id = i.vehicle_id AND p.is_primary = 1))`,
	).Scan(&vehicles, &st.VehiclesWithImages, &st.VehiclesWithoutPrimary)
	if err != nil {
		return nil, fmt.Errorf("vehicle totals: %w", err)
	}
	st.VehiclesWithoutImages = vehicles - st.VehiclesWithImages

	rows, err := s.db.QueryContext(ctx, `
		SELECT mime_type, COUNT(*) FROM vehicle_images GROUP BY mime_type`)
	if err != nil {
		return nil, fmt.Errorf("images by format: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mime string
		var n int64
		if err := rows.Scan(&mime, &n); err != nil {
			return nil, fmt.Errorf("scan format count: %w", err)
		}
		st.ByFormat[mime] = n
	}
	return st, rows.Err()
}

// SearchImages returns one page of images matching f, ordered by vehicle and
// position, plus the total number of matches.
func (s *SQLDB) SearchImages(ctx context.Context, f model.ImageFilter) ([]*model.VehicleImage, int, error) {
	where, args := imageFilterClause(f)

	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM vehicle_images`+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count images: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+imageColumns+`
		FROM vehicle_images`+where+`
		ORDER BY vehicle_id ASC, position ASC
		LIMIT ? OFFSET ?`),
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search images: %w", err)
	}
	defer rows.Close()

	images := []*model.VehicleImage{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, 0, err
		}
		images = append(images, img)
	}
	return images, total, rows.Err()
}

func imageFilterClause(f model.ImageFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, a ...any) {
		conds = append(conds, cond)
		args = append(args, a...)
	}

	if f.VehicleID != "" {
		add("vehicle_id = ?", f.VehicleID)
	}
	if f.IsPrimary != nil {
		add("is_primary = ?", boolToInt(*f.IsPrimary))
	}
	if f.PositionMin > 0 {
		add("position >= ?", f.PositionMin)
	}
	if f.PositionMax > 0 {
		add("position <= ?", f.PositionMax)
	}
	if f.HasThumbnail != nil {
		if *f.HasThumbnail {
			add("thumbnail_path IS NOT NULL")
		} else {
			add("thumbnail_path IS NULL")
		}
	}
	if f.MinFileSize > 0 {
		add("file_size >= ?", f.MinFileSize)
	}
	if f.MaxFileSize > 0 {
		add("file_size <= ?", f.MaxFileSize)
	}
	if f.MinWidth > 0 {
		add("width >= ?", f.MinWidth)
	}
	if f.MinHeight > 0 {
		add("height >= ?", f.MinHeight)
	}
	switch f.Orientation {
	case model.OrientationLandscape:
		add("width > height AND height > 0")
	case model.OrientationPortrait:
		add("height > width AND width > 0")
	case model.OrientationSquare:
		add("width = height AND width > 0")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
