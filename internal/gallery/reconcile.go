package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/leca/vehicle-gallery/internal/metrics"
	"github.com/leca/vehicle-gallery/internal/model"
)

// IssueKind classifies a disagreement between metadata and blobs.
type IssueKind string

const (
	// IssueOrphanBlob is a blob no row references.
	IssueOrphanBlob IssueKind = "orphan_blob"
	// IssueDanglingRow is a row whose original blob is gone.
	IssueDanglingRow IssueKind = "dangling_row"
	// IssueMissingThumbnail is a row without a readable thumbnail.
	IssueMissingThumbnail IssueKind = "missing_thumbnail"
)

// Issue is one inconsistency found by Reconcile.
type Issue struct {
	Kind      IssueKind `json:"kind"`
	VehicleID string    `json:"vehicleId"`
	ImageID   string    `json:"imageId,omitempty"`
	Path      string    `json:"path,omitempty"`
	Repaired  bool      `json:"repaired"`
	Error     string    `json:"error,omitempty"`
}

// Report summarizes a reconciliation run.
type Report struct {
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
	Repair          bool      `json:"repair"`
	VehiclesScanned int       `json:"vehiclesScanned"`
	Issues          []Issue   `json:"issues"`
}

// Reconcile compares metadata rows with the blob store. With repair set it
// deletes orphan blobs, drops rows whose original is missing (re-electing a
// primary as DeleteImage does) and regenerates missing thumbnails, clearing
// the thumbnail path when the original cannot be rendered.
//
// Each vehicle is checked under its lock so in-flight uploads, whose blobs
// precede their row, are never mistaken for orphans.
func (m *Manager) Reconcile(ctx context.Context, repair bool) (report *Report, err error) {
	defer observe("reconcile", time.Now(), &err)

	report = &Report{StartedAt: m.now(), Repair: repair, Issues: []Issue{}}

	ids, err := m.db.ListVehicleIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	// Blobs of vehicles whose row is already gone are orphans too.
	keys, err := m.store.List(ctx, "vehicles/")
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	for _, k := range keys {
		if id, ok := vehicleFromPath(k); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		issues, err := m.reconcileVehicle(ctx, id, repair)
		if err != nil {
			return nil, fmt.Errorf("reconcile vehicle %s: %w", id, err)
		}
		report.Issues = append(report.Issues, issues...)
		report.VehiclesScanned++
	}
	report.FinishedAt = m.now()

	m.logger.Info("reconciliation finished",
		"vehicles", report.VehiclesScanned, "issues", len(report.Issues), "repair", repair)
	return report, nil
}

func (m *Manager) reconcileVehicle(ctx context.Context, vehicleID string, repair bool) ([]Issue, error) {
	unlock, err := m.lock(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rows, err := m.db.ListImages(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	keys, err := m.store.List(ctx, VehiclePrefix(vehicleID))
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}

	var issues []Issue
	referenced := make(map[string]bool, 2*len(rows))
	for _, img := range rows {
		referenced[img.OriginalPath] = true
		if img.HasThumbnail() {
			referenced[*img.ThumbnailPath] = true
		}

		if !present[img.OriginalPath] {
			issue := Issue{Kind: IssueDanglingRow, VehicleID: vehicleID, ImageID: img.ID, Path: img.OriginalPath}
			if repair {
				issue.Repaired, issue.Error = m.repairDanglingRow(ctx, img)
			}
			issues = append(issues, m.record(issue))
			continue
		}
		if !img.HasThumbnail() || !present[*img.ThumbnailPath] {
			issue := Issue{Kind: IssueMissingThumbnail, VehicleID: vehicleID, ImageID: img.ID}
			if img.HasThumbnail() {
				issue.Path = *img.ThumbnailPath
			}
			if repair {
				issue.Repaired, issue.Error = m.repairThumbnail(ctx, img)
			}
			issues = append(issues, m.record(issue))
		}
	}

	for _, k := range keys {
		if referenced[k] {
			continue
		}
		issue := Issue{Kind: IssueOrphanBlob, VehicleID: vehicleID, Path: k}
		if repair {
			if err := m.store.Delete(ctx, k); err != nil {
				issue.Error = err.Error()
			} else {
				issue.Repaired = true
			}
		}
		issues = append(issues, m.record(issue))
	}
	return issues, nil
}

func (m *Manager) record(issue Issue) Issue {
	metrics.ReconcileIssues.WithLabelValues(string(issue.Kind)).Inc()
	level := slog.LevelWarn
	if issue.Repaired {
		level = slog.LevelInfo
	}
	m.logger.Log(context.Background(), level, "gallery inconsistency",
		"kind", issue.Kind, "vehicle_id", issue.VehicleID, "image_id", issue.ImageID,
		"path", issue.Path, "repaired", issue.Repaired)
	return issue
}

func (m *Manager) repairDanglingRow(ctx context.Context, img *model.VehicleImage) (bool, string) {
	removed, err := m.removeImage(ctx, img.VehicleID, img.ID)
	if err != nil {
		return false, err.Error()
	}
	if removed.HasThumbnail() {
		m.deleteBlobs(context.WithoutCancel(ctx), *removed.ThumbnailPath)
	}
	return true, ""
}

// repairThumbnail regenerates a missing thumbnail. When the original cannot be
// rendered the stale path is cleared once; a row already without a path is
// left alone and reported unrepaired.
func (m *Manager) repairThumbnail(ctx context.Context, img *model.VehicleImage) (bool, string) {
	var newPath *string

	p, err := m.renderThumbnail(ctx, img)
	switch {
	case err == nil:
		newPath = &p
	case errors.Is(err, ErrThumbnailGenerationFailed), errors.Is(err, ErrImageTooLarge), errors.Is(err, ErrImageNotFound):
		if !img.HasThumbnail() {
			return false, err.Error()
		}
		m.logger.Warn("thumbnail regeneration failed", "vehicle_id", img.VehicleID, "image_id", img.ID, "error", err)
	default:
		return false, err.Error()
	}

	if err := m.commitThumbnail(ctx, img, newPath); err != nil {
		return false, err.Error()
	}
	return true, ""
}
