package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/leca/vehicle-gallery/internal/database"
	"github.com/leca/vehicle-gallery/internal/imageproc"
	"github.com/leca/vehicle-gallery/internal/lock"
	"github.com/leca/vehicle-gallery/internal/metrics"
	"github.com/leca/vehicle-gallery/internal/model"
	"github.com/leca/vehicle-gallery/internal/storage"
)

// DefaultMaxUploadBytes caps the size of an original image.
const DefaultMaxUploadBytes = 10 << 20

// Processor probes originals and renders their thumbnails.
type Processor interface {
	Probe(data []byte) (imageproc.Info, error)
	Generate(data []byte) (thumb []byte, format string, err error)
}

// Options tunes a Manager. Zero values fall back to defaults.
type Options struct {
	MaxUploadBytes     int64
	WriteAttempts      int
	RetryBackoff       time.Duration
	CleanupConcurrency int
}

func (o *Options) setDefaults() {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if o.WriteAttempts <= 0 {
		o.WriteAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 50 * time.Millisecond
	}
	if o.CleanupConcurrency <= 0 {
		o.CleanupConcurrency = 4
	}
}

// Manager owns the coupling between gallery metadata rows and their blobs.
// Every mutation of a vehicle's gallery runs under that vehicle's lock.
type Manager struct {
	db     database.Database
	store  storage.Storage
	proc   Processor
	locker lock.Locker
	logger *slog.Logger
	opts   Options

	now   func() time.Time
	newID func() string
}

// New creates a Manager.
func New(db database.Database, store storage.Storage, proc Processor, locker lock.Locker, logger *slog.Logger, opts Options) *Manager {
	opts.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		db:     db,
		store:  store,
		proc:   proc,
		locker: locker,
		logger: logger,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// MaxUploadBytes returns the configured upload cap.
func (m *Manager) MaxUploadBytes() int64 {
	return m.opts.MaxUploadBytes
}

func (m *Manager) lock(ctx context.Context, vehicleID string) (func(), error) {
	unlock, err := m.locker.Lock(ctx, "vehicle:"+vehicleID)
	if err != nil {
		return nil, fmt.Errorf("lock vehicle %s: %w", vehicleID, err)
	}
	return unlock, nil
}

// observe is deferred with a pointer to the named error result.
func observe(op string, start time.Time, errp *error) {
	metrics.Observe(op, time.Since(start).Seconds(), *errp)
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

// UploadImage stores data as a new image of vehicleID. position nil picks
// the lowest free slot. The first image of a gallery always becomes primary.
//
// Blobs are written before the metadata row; if any later step fails the
// blobs written by this call are removed before the error is returned.
func (m *Manager) UploadImage(ctx context.Context, vehicleID string, data []byte, position *int, makePrimary bool) (img *model.VehicleImage, err error) {
	defer observe("upload", time.Now(), &err)

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrThumbnailGenerationFailed)
	}
	if int64(len(data)) > m.opts.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}
	if position != nil && !validPosition(*position) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPosition, *position)
	}
	info, err := m.proc.Probe(data)
	if err != nil {
		return nil, classifyImageError(err)
	}

	unlock, err := m.lock(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Fail fast on caller errors before doing any expensive work.
	current, err := m.gallery(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if _, err := assignPosition(current, position); err != nil {
		return nil, err
	}

	thumb, thumbFormat, err := m.proc.Generate(data)
	if err != nil {
		return nil, classifyImageError(err)
	}

	id := m.newID()
	filename := id + imageproc.Extension(info.Format)
	thumbPath := ThumbnailPath(vehicleID, id, thumbFormat)
	img = &model.VehicleImage{
		ID:            id,
		VehicleID:     vehicleID,
		Filename:      filename,
		OriginalPath:  OriginalPath(vehicleID, filename),
		ThumbnailPath: &thumbPath,
		MimeType:      info.MimeType,
		FileSize:      int64(len(data)),
		Width:         info.Width,
		Height:        info.Height,
		UploadedAt:    m.now(),
	}

	if err := m.putWithRetry(ctx, img.OriginalPath, data); err != nil {
		// A write interrupted by cancellation may still have landed.
		m.rollback(ctx, img.OriginalPath)
		return nil, err
	}
	if err := m.putWithRetry(ctx, thumbPath, thumb); err != nil {
		m.rollback(ctx, img.OriginalPath)
		return nil, err
	}

	// Commit point. The caller's cancellation no longer applies.
	if err := m.db.InTx(context.WithoutCancel(ctx), func(tx database.Tx) error {
		return m.insert(tx, img, position, makePrimary)
	}); err != nil {
		m.rollback(ctx, img.OriginalPath, thumbPath)
		if !alreadyClassified(err) {
			err = fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
		}
		return nil, err
	}

	m.logger.Info("image uploaded",
		"vehicle_id", vehicleID, "image_id", img.ID, "position", img.Position, "primary", img.IsPrimary)
	return img, nil
}

// insert re-validates the gallery inside the transaction and writes the row.
// It may run more than once when the store retries a serialization failure,
// so driver errors stay in the chain where InTx can classify them.
func (m *Manager) insert(tx database.Tx, img *model.VehicleImage, position *int, makePrimary bool) error {
	ok, err := tx.VehicleExists(img.VehicleID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrVehicleNotFound, img.VehicleID)
	}
	current, err := tx.ListImages(img.VehicleID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	pos, err := assignPosition(current, position)
	if err != nil {
		return err
	}
	img.Position = pos
	img.IsPrimary = makePrimary || len(current) == 0

	if img.IsPrimary {
		if err := tx.ClearPrimary(img.VehicleID); err != nil {
			return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
		}
	}
	if err := tx.InsertImage(img); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return fmt.Errorf("%w: %d", ErrPositionConflict, pos)
		}
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	return nil
}

// putWithRetry writes a blob, retrying transient failures with linear backoff.
func (m *Manager) putWithRetry(ctx context.Context, path string, data []byte) error {
	var err error
	for attempt := 1; attempt <= m.opts.WriteAttempts; attempt++ {
		if err = m.store.Put(ctx, path, data); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == m.opts.WriteAttempts {
			break
		}
		metrics.BlobWriteRetries.Inc()
		m.logger.Warn("blob write failed, retrying", "path", path, "attempt", attempt, "error", err)

		t := time.NewTimer(time.Duration(attempt) * m.opts.RetryBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %w", ErrStorageWriteFailed, ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
}

// rollback removes blobs written by a failed upload. It runs to completion
// even when ctx is already cancelled.
func (m *Manager) rollback(ctx context.Context, paths ...string) {
	metrics.Rollbacks.Inc()
	m.deleteBlobs(context.WithoutCancel(ctx), paths...)
}

// deleteBlobs removes blobs best-effort. Failures are logged and counted;
// reconciliation picks up whatever is left behind.
func (m *Manager) deleteBlobs(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := m.store.Delete(ctx, p); err != nil {
			metrics.BlobDeleteFailures.Inc()
			m.logger.Error("blob delete failed", "path", p, "error", fmt.Errorf("%w: %w", ErrStorageDeleteFailed, err))
		}
	}
}

// ---------------------------------------------------------------------------
// Delete / reorder / promote
// ---------------------------------------------------------------------------

// DeleteImage removes an image. The metadata row goes first; blob cleanup
// afterwards never fails the call.
func (m *Manager) DeleteImage(ctx context.Context, vehicleID, imageID string) (err error) {
	defer observe("delete", time.Now(), &err)

	unlock, err := m.lock(ctx, vehicleID)
	if err != nil {
		return err
	}
	defer unlock()

	removed, err := m.removeImage(ctx, vehicleID, imageID)
	if err != nil {
		return err
	}
	m.deleteBlobs(context.WithoutCancel(ctx), imageBlobs(removed)...)

	m.logger.Info("image deleted", "vehicle_id", vehicleID, "image_id", imageID)
	return nil
}

// removeImage deletes the row and re-elects a primary if needed. The caller
// holds the vehicle lock.
func (m *Manager) removeImage(ctx context.Context, vehicleID, imageID string) (*model.VehicleImage, error) {
	var removed *model.VehicleImage
	err := m.db.InTx(context.WithoutCancel(ctx), func(tx database.Tx) error {
		images, err := tx.ListImages(vehicleID)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(images, func(img *model.VehicleImage) bool { return img.ID == imageID })
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrImageNotFound, imageID)
		}
		removed = images[idx]

		if err := tx.DeleteImage(vehicleID, imageID); err != nil {
			return err
		}
		if removed.IsPrimary {
			remaining := slices.Delete(slices.Clone(images), idx, idx+1)
			if len(remaining) > 0 {
				// Rows come back ordered by position.
				if err := tx.SetPrimary(vehicleID, remaining[0].ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ReorderImages assigns position i+1 to orderedIDs[i]. orderedIDs must be
// exactly the vehicle's image ids.
func (m *Manager) ReorderImages(ctx context.Context, vehicleID string, orderedIDs []string) (err error) {
	defer observe("reorder", time.Now(), &err)

	unlock, err := m.lock(ctx, vehicleID)
	if err != nil {
		return err
	}
	defer unlock()

	return m.db.InTx(context.WithoutCancel(ctx), func(tx database.Tx) error {
		ok, err := tx.VehicleExists(vehicleID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrVehicleNotFound, vehicleID)
		}
		images, err := tx.ListImages(vehicleID)
		if err != nil {
			return err
		}
		if err := validateReorder(images, orderedIDs); err != nil {
			return err
		}
		return tx.SetPositions(vehicleID, orderedIDs)
	})
}

func validateReorder(images []*model.VehicleImage, orderedIDs []string) error {
	if len(orderedIDs) != len(images) {
		return fmt.Errorf("%w: got %d ids, gallery has %d", ErrInvalidReorderSet, len(orderedIDs), len(images))
	}
	owned := make(map[string]bool, len(images))
	for _, img := range images {
		owned[img.ID] = false
	}
	for _, id := range orderedIDs {
		seen, ok := owned[id]
		if !ok {
			return fmt.Errorf("%w: unknown id %s", ErrInvalidReorderSet, id)
		}
		if seen {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidReorderSet, id)
		}
		owned[id] = true
	}
	return nil
}

// PromotePrimary makes imageID the vehicle's primary image.
func (m *Manager) PromotePrimary(ctx context.Context, vehicleID, imageID string) (err error) {
	defer observe("promote", time.Now(), &err)

	unlock, err := m.lock(ctx, vehicleID)
	if err != nil {
		return err
	}
	defer unlock()

	return m.db.InTx(context.WithoutCancel(ctx), func(tx database.Tx) error {
		images, err := tx.ListImages(vehicleID)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(images, func(img *model.VehicleImage) bool { return img.ID == imageID })
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrImageNotFound, imageID)
		}
		if images[idx].IsPrimary {
			return nil
		}
		return tx.SetPrimary(vehicleID, imageID)
	})
}

// RegenerateThumbnail renders the image's thumbnail again from its original
// and returns the updated row.
func (m *Manager) RegenerateThumbnail(ctx context.Context, vehicleID, imageID string) (img *model.VehicleImage, err error) {
	defer observe("regenerate_thumbnail", time.Now(), &err)

	unlock, err := m.lock(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	img, err = m.GetImage(ctx, vehicleID, imageID)
	if err != nil {
		return nil, err
	}
	p, err := m.renderThumbnail(ctx, img)
	if err != nil {
		return nil, err
	}
	if err := m.commitThumbnail(ctx, img, &p); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, imageID)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	if img.HasThumbnail() && *img.ThumbnailPath != p {
		m.deleteBlobs(context.WithoutCancel(ctx), *img.ThumbnailPath)
	}
	img.ThumbnailPath = &p

	m.logger.Info("thumbnail regenerated", "vehicle_id", vehicleID, "image_id", imageID)
	return img, nil
}

// renderThumbnail writes a fresh thumbnail blob for img and returns its path.
// The row is not touched.
func (m *Manager) renderThumbnail(ctx context.Context, img *model.VehicleImage) (string, error) {
	data, err := m.store.Get(ctx, img.OriginalPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: original missing", ErrImageNotFound)
		}
		return "", err
	}
	thumb, format, err := m.proc.Generate(data)
	if err != nil {
		return "", classifyImageError(err)
	}
	p := ThumbnailPath(img.VehicleID, img.ID, format)
	if err := m.putWithRetry(ctx, p, thumb); err != nil {
		return "", err
	}
	return p, nil
}

// commitThumbnail points img's row at path. A blob written for a commit that
// fails is removed unless the row already referenced it.
func (m *Manager) commitThumbnail(ctx context.Context, img *model.VehicleImage, path *string) error {
	err := m.db.InTx(context.WithoutCancel(ctx), func(tx database.Tx) error {
		return tx.SetThumbnailPath(img.VehicleID, img.ID, path)
	})
	if err != nil && path != nil && (!img.HasThumbnail() || *img.ThumbnailPath != *path) {
		m.deleteBlobs(context.WithoutCancel(ctx), *path)
	}
	return err
}

// OnVehicleDeleted removes the vehicle's gallery rows and every blob under
// the vehicle's prefix. It is safe to call for a vehicle that is already gone.
func (m *Manager) OnVehicleDeleted(ctx context.Context, vehicleID string) (err error) {
	defer observe("vehicle_deleted", time.Now(), &err)

	unlock, err := m.lock(ctx, vehicleID)
	if err != nil {
		return err
	}
	defer unlock()

	var rows []*model.VehicleImage
	err = m.db.InTx(context.WithoutCancel(ctx), func(tx database.Tx) error {
		var err error
		if rows, err = tx.ListImages(vehicleID); err != nil {
			return err
		}
		if err := tx.DeleteImagesByVehicle(vehicleID); err != nil {
			return err
		}
		return tx.DeleteVehicle(vehicleID)
	})
	if err != nil {
		return err
	}

	cleanupCtx := context.WithoutCancel(ctx)
	paths := make(map[string]struct{})
	for _, img := range rows {
		for _, p := range imageBlobs(img) {
			paths[p] = struct{}{}
		}
	}
	// Orphans under the prefix go too.
	if listed, err := m.store.List(cleanupCtx, VehiclePrefix(vehicleID)); err != nil {
		m.logger.Warn("listing vehicle blobs failed", "vehicle_id", vehicleID, "error", err)
	} else {
		for _, p := range listed {
			paths[p] = struct{}{}
		}
	}
	m.deleteBlobsParallel(cleanupCtx, paths)

	m.logger.Info("vehicle gallery removed", "vehicle_id", vehicleID, "images", len(rows), "blobs", len(paths))
	return nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// ListImages returns the vehicle's images ordered by position.
func (m *Manager) ListImages(ctx context.Context, vehicleID string) ([]*model.VehicleImage, error) {
	return m.gallery(ctx, vehicleID)
}

// GetImage returns one image of the vehicle.
func (m *Manager) GetImage(ctx context.Context, vehicleID, imageID string) (*model.VehicleImage, error) {
	img, err := m.db.GetImage(ctx, vehicleID, imageID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, imageID)
		}
		return nil, err
	}
	return img, nil
}

// PrimaryImage returns the vehicle's primary image, or ErrImageNotFound when
// the gallery is empty.
func (m *Manager) PrimaryImage(ctx context.Context, vehicleID string) (*model.VehicleImage, error) {
	if _, err := m.vehicle(ctx, vehicleID); err != nil {
		return nil, err
	}
	img, err := m.db.GetPrimaryImage(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: no primary image", ErrImageNotFound)
		}
		return nil, err
	}
	return img, nil
}

// OpenOriginal returns the original bytes of an image and its content type.
func (m *Manager) OpenOriginal(ctx context.Context, vehicleID, imageID string) ([]byte, string, error) {
	img, err := m.GetImage(ctx, vehicleID, imageID)
	if err != nil {
		return nil, "", err
	}
	data, err := m.store.Get(ctx, img.OriginalPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("original blob missing", "vehicle_id", vehicleID, "image_id", imageID)
			return nil, "", fmt.Errorf("%w: original missing", ErrImageNotFound)
		}
		return nil, "", err
	}
	return data, img.MimeType, nil
}

// OpenThumbnail returns the thumbnail bytes of an image and its content type.
func (m *Manager) OpenThumbnail(ctx context.Context, vehicleID, imageID string) ([]byte, string, error) {
	img, err := m.GetImage(ctx, vehicleID, imageID)
	if err != nil {
		return nil, "", err
	}
	if !img.HasThumbnail() {
		return nil, "", fmt.Errorf("%w: no thumbnail", ErrImageNotFound)
	}
	data, err := m.store.Get(ctx, *img.ThumbnailPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("thumbnail blob missing", "vehicle_id", vehicleID, "image_id", imageID)
			return nil, "", fmt.Errorf("%w: thumbnail missing", ErrImageNotFound)
		}
		return nil, "", err
	}
	return data, imageproc.ContentType(imageproc.DetectFormat(data)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (m *Manager) vehicle(ctx context.Context, vehicleID string) (*model.Vehicle, error) {
	v, err := m.db.GetVehicle(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVehicleNotFound, vehicleID)
		}
		return nil, err
	}
	return v, nil
}

func (m *Manager) gallery(ctx context.Context, vehicleID string) ([]*model.VehicleImage, error) {
	if _, err := m.vehicle(ctx, vehicleID); err != nil {
		return nil, err
	}
	return m.db.ListImages(ctx, vehicleID)
}

func validPosition(p int) bool {
	return p >= 1 && p <= model.MaxGallerySize
}

// assignPosition checks capacity and resolves the slot for a new image.
func assignPosition(current []*model.VehicleImage, requested *int) (int, error) {
	if len(current) >= model.MaxGallerySize {
		return 0, ErrGalleryFull
	}
	used := make(map[int]bool, len(current))
	for _, img := range current {
		used[img.Position] = true
	}
	if requested != nil {
		if !validPosition(*requested) {
			return 0, fmt.Errorf("%w: %d", ErrInvalidPosition, *requested)
		}
		if used[*requested] {
			return 0, fmt.Errorf("%w: %d", ErrPositionConflict, *requested)
		}
		return *requested, nil
	}
	for p := 1; p <= model.MaxGallerySize; p++ {
		if !used[p] {
			return p, nil
		}
	}
	return 0, ErrGalleryFull
}

// classifyImageError maps a processor failure onto the upload sentinels.
func classifyImageError(err error) error {
	if errors.Is(err, imageproc.ErrTooManyPixels) {
		return fmt.Errorf("%w: %w", ErrImageTooLarge, err)
	}
	return fmt.Errorf("%w: %w", ErrThumbnailGenerationFailed, err)
}

// alreadyClassified reports whether err already carries one of the gallery
// sentinels and must reach the caller without another wrap.
func alreadyClassified(err error) bool {
	for _, target := range []error{
		ErrVehicleNotFound, ErrImageNotFound, ErrGalleryFull, ErrPositionConflict,
		ErrInvalidPosition, ErrInvalidReorderSet, ErrStorageWriteFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func imageBlobs(img *model.VehicleImage) []string {
	paths := []string{img.OriginalPath}
	if img.HasThumbnail() {
		paths = append(paths, *img.ThumbnailPath)
	}
	return paths
}
