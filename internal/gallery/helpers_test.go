package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leca/vehicle-gallery/internal/database"
	"github.com/leca/vehicle-gallery/internal/imageproc"
	"github.com/leca/vehicle-gallery/internal/lock"
	"github.com/leca/vehicle-gallery/internal/model"
	"github.com/leca/vehicle-gallery/internal/storage"
)

const testVehicle = "vehicle-001"

var errInjected = errors.New("injected failure")

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// faultyStore wraps a real store and lets tests fail individual calls.
type faultyStore struct {
	storage.Storage

	mu       sync.Mutex
	putCalls map[string]int
	failPut  func(path string, call int) error
	failDel  func(path string) error
}

func (s *faultyStore) Put(ctx context.Context, path string, data []byte) error {
	s.mu.Lock()
	s.putCalls[path]++
	n := s.putCalls[path]
	hook := s.failPut
	s.mu.Unlock()

	if hook != nil {
		if err := hook(path, n); err != nil {
			return err
		}
	}
	return s.Storage.Put(ctx, path, data)
}

func (s *faultyStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	hook := s.failDel
	s.mu.Unlock()

	if hook != nil {
		if err := hook(path); err != nil {
			return err
		}
	}
	return s.Storage.Delete(ctx, path)
}

func (s *faultyStore) calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putCalls[path]
}

// brokenThumbnailer probes like the real one but cannot render.
type brokenThumbnailer struct {
	*imageproc.Thumbnailer
}

func (brokenThumbnailer) Generate([]byte) ([]byte, string, error) {
	return nil, "", errInjected
}

// failingTxDB refuses every transaction.
type failingTxDB struct {
	database.Database
}

func (failingTxDB) InTx(context.Context, func(database.Tx) error) error {
	return errInjected
}

// serializationTx fails the next InsertImage calls the way PostgreSQL does
// under SERIALIZABLE isolation.
type serializationTx struct {
	database.Tx
	failures *int
}

func (t serializationTx) InsertImage(img *model.VehicleImage) error {
	if *t.failures > 0 {
		*t.failures--
		return fmt.Errorf("insert image: %w", &pgconn.PgError{Code: "40001"})
	}
	return t.Tx.InsertImage(img)
}

// serializingDB retries transactions whose error chain carries SQLSTATE
// 40001, mirroring the postgres dialect of database.SQLDB.
type serializingDB struct {
	database.Database
	failures int
	attempts int
}

func (d *serializingDB) InTx(ctx context.Context, fn func(database.Tx) error) error {
	var err error
	for range 3 {
		d.attempts++
		err = d.Database.InTx(ctx, func(tx database.Tx) error {
			return fn(serializationTx{Tx: tx, failures: &d.failures})
		})
		var pgErr *pgconn.PgError
		if err == nil || !errors.As(err, &pgErr) || pgErr.Code != "40001" {
			return err
		}
	}
	return err
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	m     *Manager
	db    *database.SQLDB
	fs    *storage.FileSystem
	store *faultyStore
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "gallery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fs := storage.NewFileSystem(t.TempDir())
	store := &faultyStore{Storage: fs, putCalls: make(map[string]int)}

	f := &fixture{db: db, fs: fs, store: store}
	f.m = f.manager(db, imageproc.NewThumbnailer(0, 0))
	f.seedVehicle(t, testVehicle)
	return f
}

func (f *fixture) manager(db database.Database, proc Processor) *Manager {
	return New(db, f.store, proc, lock.NewLocal(), discardLogger(), Options{RetryBackoff: time.Millisecond})
}

func (f *fixture) seedVehicle(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.db.CreateVehicle(context.Background(), &model.Vehicle{
		ID:        id,
		Kind:      model.KindCar,
		CreatedAt: time.Now().UTC(),
	}))
}

func (f *fixture) upload(t *testing.T, vehicleID string) *model.VehicleImage {
	t.Helper()
	img, err := f.m.UploadImage(context.Background(), vehicleID, testJPEG(t, 64, 48), nil, false)
	require.NoError(t, err)
	return img
}

func (f *fixture) blobs(t *testing.T, vehicleID string) []string {
	t.Helper()
	keys, err := f.fs.List(context.Background(), VehiclePrefix(vehicleID))
	require.NoError(t, err)
	return keys
}

func (f *fixture) list(t *testing.T, vehicleID string) []*model.VehicleImage {
	t.Helper()
	images, err := f.m.ListImages(context.Background(), vehicleID)
	require.NoError(t, err)
	return images
}

// requireInvariants checks unique in-range positions, the size cap, the
// primary rule and blob presence for every row.
func (f *fixture) requireInvariants(t *testing.T, vehicleID string) {
	t.Helper()
	images := f.list(t, vehicleID)
	require.LessOrEqual(t, len(images), model.MaxGallerySize)

	seen := make(map[int]bool)
	primaries := 0
	for _, img := range images {
		require.GreaterOrEqual(t, img.Position, 1)
		require.LessOrEqual(t, img.Position, model.MaxGallerySize)
		require.False(t, seen[img.Position], "duplicate position %d", img.Position)
		seen[img.Position] = true
		if img.IsPrimary {
			primaries++
		}

		ok, err := f.fs.Exists(context.Background(), img.OriginalPath)
		require.NoError(t, err)
		require.True(t, ok, "original blob missing for %s", img.ID)
		if img.HasThumbnail() {
			ok, err := f.fs.Exists(context.Background(), *img.ThumbnailPath)
			require.NoError(t, err)
			require.True(t, ok, "thumbnail blob missing for %s", img.ID)
		}
	}
	if len(images) == 0 {
		assert.Equal(t, 0, primaries)
	} else {
		assert.Equal(t, 1, primaries)
	}
}

func ids(images []*model.VehicleImage) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = img.ID
	}
	return out
}

func positions(images []*model.VehicleImage) map[string]int {
	out := make(map[string]int, len(images))
	for _, img := range images {
		out[img.ID] = img.Position
	}
	return out
}

func intPtr(i int) *int { return &i }

// ---------------------------------------------------------------------------
// Test images
// ---------------------------------------------------------------------------

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{B: 255, A: uint8(x)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
