// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// MemorialConnection model: the append-only connection ledger and the
// bbox-prefiltered reads the viewport engine composes.
//
// The living-map visibility rule lives in exactly one place here
// (VisibleConnections); every read path composes with it. No read ever
// consults the legacy expires_at column.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/geo"
)

// VisibleConnections is the single shared visibility predicate: a connection
// is readable unless its parent prayer has been hidden or removed by
// moderation. Age and the legacy expires_at column play no part.
func VisibleConnections(db *gorm.DB) *gorm.DB {
	return db.Model(&domain.MemorialConnection{}).
		Where("prayer_id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).
				Model(&domain.Prayer{}).
				Select("id").
				Where("status NOT IN ?", []string{domain.PrayerStatusHidden, domain.PrayerStatusRemoved}),
		)
}

// inBounds restricts to connections whose denormalized segment bbox overlaps
// the given bounds. This is the coarse prefilter; the engine runs the precise
// segment-intersection pass on the surviving rows.
func inBounds(db *gorm.DB, b geo.Bounds) *gorm.DB {
	return db.Where("max_lat >= ? AND min_lat <= ? AND max_lng >= ? AND min_lng <= ?",
		b.South, b.North, b.West, b.East)
}

// CreateConnection persists one immutable memorial connection. The segment
// bbox columns are derived here so callers cannot desynchronize them from
// the endpoints. No update path for location or user fields exists anywhere
// in this package.
func CreateConnection(ctx context.Context, db *gorm.DB, prayerID string, fromLat, fromLng, toLat, toLng float64, fromUser, toUser *string, classification string) (*domain.MemorialConnection, error) {
	minLat, maxLat, minLng, maxLng := geo.SegmentBBox(fromLat, fromLng, toLat, toLng)
	c := &domain.MemorialConnection{
		ID:             uuid.NewString(),
		PrayerID:       prayerID,
		FromLat:        fromLat,
		FromLng:        fromLng,
		ToLat:          toLat,
		ToLng:          toLng,
		FromUserID:     fromUser,
		ToUserID:       toUser,
		Classification: classification,
		Eternal:        true,
		MinLat:         minLat,
		MaxLat:         maxLat,
		MinLng:         minLng,
		MaxLng:         maxLng,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetConnection fetches a connection by ID. Returns ErrNotFound if missing.
func GetConnection(ctx context.Context, db *gorm.DB, id string) (*domain.MemorialConnection, error) {
	var c domain.MemorialConnection
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteConnection attempts to delete a connection and is expected to fail:
// the memorial_connections_no_delete trigger aborts every delete at the
// storage layer. The guard violation is mapped to ErrProtected. A nil error
// would mean the guard is missing, which callers must treat as a defect.
func DeleteConnection(ctx context.Context, db *gorm.DB, id string) error {
	err := db.WithContext(ctx).Delete(&domain.MemorialConnection{}, "id = ?", id).Error
	if isProtectedViolation(err) {
		return ErrProtected
	}
	return err
}

// CountConnectionsInBounds returns the number of visible connections whose
// segment bbox overlaps b. Used by the clustering engine to estimate density
// before deciding whether to aggregate.
func CountConnectionsInBounds(ctx context.Context, db *gorm.DB, b geo.Bounds) (int64, error) {
	var total int64
	err := inBounds(VisibleConnections(db.WithContext(ctx)), b).Count(&total).Error
	return total, err
}

// ListConnectionsInBounds returns visible connections overlapping b, newest
// first (CreatedAt DESC, ID DESC tiebreak). A non-nil since restricts to
// connections created strictly after it (delta reads). limit <= 0 means no
// limit.
func ListConnectionsInBounds(ctx context.Context, db *gorm.DB, b geo.Bounds, limit int, since *time.Time) ([]domain.MemorialConnection, error) {
	q := inBounds(VisibleConnections(db.WithContext(ctx)), b).
		Order("created_at DESC, id DESC")
	if since != nil {
		q = q.Where("created_at > ?", *since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.MemorialConnection
	err := q.Find(&out).Error
	return out, err
}

// ConnectionsStats returns aggregate metadata for the visible connections
// overlapping b: total count and the greatest CreatedAt. Used for weak ETag
// generation on viewport responses. When the box is empty the count is 0 and
// maxCreatedAt is nil.
func ConnectionsStats(ctx context.Context, db *gorm.DB, b geo.Bounds) (count int64, maxCreatedAt *time.Time, err error) {
	q := inBounds(VisibleConnections(db.WithContext(ctx)), b)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
