package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leca/vehicle-gallery/internal/model"
	_ "modernc.org/sqlite"
)

// Compile-time check that SQLDB implements Database.
var _ Database = (*SQLDB)(nil)

const maxTxAttempts = 3

// dialect captures the differences between the SQL backends.
type dialect struct {
	name       string
	numbered   bool // $1 placeholders instead of ?
	txOptions  *sql.TxOptions
	retryable  func(error) bool
	uniqueViol func(error) bool
}

// SQLDB implements Database on top of database/sql. It backs both the
// SQLite and the PostgreSQL stores.
type SQLDB struct {
	db *sql.DB
	d  dialect
}

// NewSQLiteDB opens (or creates) an SQLite database at dsn and runs migrations.
// Transactions are opened with BEGIN IMMEDIATE so that writers serialize at
// the start of the transaction rather than at first write.
func NewSQLiteDB(dsn string) (*SQLDB, error) {
	dsn = sqliteDSN(dsn)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLDB{db: db, d: dialect{
		name:       "sqlite",
		retryable:  func(error) bool { return false },
		uniqueViol: isSQLiteUniqueViolation,
	}}, nil
}

func sqliteDSN(dsn string) string {
	params := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=foreign_keys(1)",
		"_txlock=immediate",
	}
	if !strings.Contains(dsn, ":memory:") {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func isSQLiteUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Close closes the underlying database connection.
func (s *SQLDB) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Vehicles
// ---------------------------------------------------------------------------

func (s *SQLDB) CreateVehicle(ctx context.Context, v *model.Vehicle) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO vehicles (id, kind, created_at) VALUES (?, ?, ?)`),
		v.ID, string(v.Kind), formatTime(v.CreatedAt),
	)
	if err != nil {
		return s.classify(fmt.Errorf("insert vehicle: %w", err))
	}
	return nil
}

func (s *SQLDB) GetVehicle(ctx context.Context, vehicleID string) (*model.Vehicle, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, kind, created_at FROM vehicles WHERE id = ?`), vehicleID)

	v := &model.Vehicle{}
	var kind, createdStr string
	if err := row.Scan(&v.ID, &kind, &createdStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	v.Kind = model.VehicleKind(kind)
	v.CreatedAt = parseTime(createdStr)
	return v, nil
}

func (s *SQLDB) ListVehicleIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM vehicles ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan vehicle id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---------------------------------------------------------------------------
// Images (read path)
// ---------------------------------------------------------------------------

const imageColumns = `id, vehicle_id, filename, original_path, thumbnail_path, position,
	is_primary, mime_type, file_size, width, height, uploaded_at`

func (s *SQLDB) GetImage(ctx context.Context, vehicleID, imageID string) (*model.VehicleImage, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT `+imageColumns+`
		FROM vehicle_images WHERE vehicle_id = ? AND id = ?`),
		vehicleID, imageID,
	)
	return scanImage(row)
}

func (s *SQLDB) ListImages(ctx context.Context, vehicleID string) ([]*model.VehicleImage, error) {
	return listImages(ctx, s.db, s.d, vehicleID)
}

func (s *SQLDB) GetPrimaryImage(ctx context.Context, vehicleID string) (*model.VehicleImage, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT `+imageColumns+`
		FROM vehicle_images WHERE vehicle_id = ? AND is_primary = 1`),
		vehicleID,
	)
	return scanImage(row)
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

func (s *SQLDB) InTx(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !s.d.retryable(err) {
			return err
		}
		slog.Debug("retrying serialization failure", "dialect", s.d.name, "attempt", attempt)
	}
	return err
}

func (s *SQLDB) runTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.d.txOptions)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Warn("transaction rollback failed", "dialect", s.d.name, "error", err)
		}
	}()

	if err := fn(&sqlTx{ctx: ctx, tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// sqlTx implements Tx over a database/sql transaction.
type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
	s   *SQLDB
}

func (t *sqlTx) exec(query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, t.s.q(query), args...)
}

func (t *sqlTx) VehicleExists(vehicleID string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx, t.s.q(`SELECT COUNT(*) FROM vehicles WHERE id = ?`), vehicleID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check vehicle: %w", err)
	}
	return n > 0, nil
}

func (t *sqlTx) DeleteVehicle(vehicleID string) error {
	if _, err := t.exec(`DELETE FROM vehicles WHERE id = ?`, vehicleID); err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	return nil
}

func (t *sqlTx) ListImages(vehicleID string) ([]*model.VehicleImage, error) {
	return listImages(t.ctx, t.tx, t.s.d, vehicleID)
}

func (t *sqlTx) InsertImage(img *model.VehicleImage) error {
	_, err := t.exec(`
		INSERT INTO vehicle_images (`+imageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.VehicleID, img.Filename, img.OriginalPath, nullString(img.ThumbnailPath),
		img.Position, boolToInt(img.IsPrimary), img.MimeType, img.FileSize,
		img.Width, img.Height, formatTime(img.UploadedAt),
	)
	if err != nil {
		return t.s.classify(fmt.Errorf("insert image: %w", err))
	}
	return nil
}

func (t *sqlTx) DeleteImage(vehicleID, imageID string) error {
	res, err := t.exec(`DELETE FROM vehicle_images WHERE vehicle_id = ? AND id = ?`, vehicleID, imageID)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return checkRowsAffected(res)
}

func (t *sqlTx) DeleteImagesByVehicle(vehicleID string) error {
	if _, err := t.exec(`DELETE FROM vehicle_images WHERE vehicle_id = ?`, vehicleID); err != nil {
		return fmt.Errorf("delete vehicle images: %w", err)
	}
	return nil
}

func (t *sqlTx) ClearPrimary(vehicleID string) error {
	if _, err := t.exec(`UPDATE vehicle_images SET is_primary = 0 WHERE vehicle_id = ? AND is_primary = 1`, vehicleID); err != nil {
		return fmt.Errorf("clear primary: %w", err)
	}
	return nil
}

func (t *sqlTx) SetPrimary(vehicleID, imageID string) error {
	if err := t.ClearPrimary(vehicleID); err != nil {
		return err
	}
	res, err := t.exec(`UPDATE vehicle_images SET is_primary = 1 WHERE vehicle_id = ? AND id = ?`, vehicleID, imageID)
	if err != nil {
		return t.s.classify(fmt.Errorf("set primary: %w", err))
	}
	return checkRowsAffected(res)
}

// SetPositions rewrites the vehicle's rows with their new positions. The
// unique (vehicle_id, position) constraint is checked row by row in both
// backends, so an in-place swap would collide; deleting and re-inserting
// inside the transaction keeps every intermediate state valid.
func (t *sqlTx) SetPositions(vehicleID string, orderedIDs []string) error {
	images, err := t.ListImages(vehicleID)
	if err != nil {
		return err
	}
	if len(images) != len(orderedIDs) {
		return fmt.Errorf("set positions: %w", ErrNotFound)
	}
	byID := make(map[string]*model.VehicleImage, len(images))
	for _, img := range images {
		byID[img.ID] = img
	}
	for i, id := range orderedIDs {
		img, ok := byID[id]
		if !ok {
			return fmt.Errorf("set positions: image %s: %w", id, ErrNotFound)
		}
		img.Position = i + 1
	}

	if err := t.DeleteImagesByVehicle(vehicleID); err != nil {
		return err
	}
	for _, id := range orderedIDs {
		if err := t.InsertImage(byID[id]); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) SetThumbnailPath(vehicleID, imageID string, path *string) error {
	res, err := t.exec(`UPDATE vehicle_images SET thumbnail_path = ? WHERE vehicle_id = ? AND id = ?`,
		nullString(path), vehicleID, imageID)
	if err != nil {
		return fmt.Errorf("set thumbnail path: %w", err)
	}
	return checkRowsAffected(res)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scannable interface {
	Scan(dest ...any) error
}

func listImages(ctx context.Context, q queryer, d dialect, vehicleID string) ([]*model.VehicleImage, error) {
	rows, err := q.QueryContext(ctx, d.rebind(`
		SELECT `+imageColumns+`
		FROM vehicle_images WHERE vehicle_id = ?
		ORDER BY position ASC`),
		vehicleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images := []*model.VehicleImage{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func scanImage(row scannable) (*model.VehicleImage, error) {
	img := &model.VehicleImage{}
	var thumb sql.NullString
	var primary int
	var uploadedStr string

	err := row.Scan(&img.ID, &img.VehicleID, &img.Filename, &img.OriginalPath, &thumb,
		&img.Position, &primary, &img.MimeType, &img.FileSize, &img.Width, &img.Height, &uploadedStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan image: %w", err)
	}

	if thumb.Valid {
		img.ThumbnailPath = &thumb.String
	}
	img.IsPrimary = primary != 0
	img.UploadedAt = parseTime(uploadedStr)
	return img, nil
}

func (s *SQLDB) q(query string) string {
	return s.d.rebind(query)
}

// rebind rewrites ? placeholders to $n for dialects that need it.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLDB) classify(err error) error {
	if err != nil && s.d.uniqueViol(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
