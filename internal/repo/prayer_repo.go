// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Prayer
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a prayer is not found, functions return gorm.ErrRecordNotFound
//     (exported as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
)

// CreatePrayer inserts a new prayer row at the given origin point. userID may
// be nil for anonymous prayers. CreatedAt is set to UTC.
func CreatePrayer(ctx context.Context, db *gorm.DB, userID *string, content string, lat, lng float64) (*domain.Prayer, error) {
	p := &domain.Prayer{
		ID:               uuid.NewString(),
		UserID:           userID,
		Content:          content,
		Lat:              lat,
		Lng:              lng,
		Status:           domain.PrayerStatusActive,
		ModerationStatus: domain.ModerationApproved,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetPrayer fetches a prayer by ID. Returns ErrNotFound if missing.
func GetPrayer(ctx context.Context, db *gorm.DB, id string) (*domain.Prayer, error) {
	var p domain.Prayer
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePrayerStatus sets the visibility status of a prayer (moderation
// path). If no rows are affected, it returns ErrNotFound.
func UpdatePrayerStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Prayer{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ArchiveExpiredPrayers soft-archives active prayers older than ttl: it sets
// ArchivedAt on rows created before now-ttl that are not yet archived, and
// returns how many were touched. Rows are never deleted; archived prayers
// simply drop out of discovery queries.
func ArchiveExpiredPrayers(ctx context.Context, db *gorm.DB, ttl time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-ttl)
	res := db.WithContext(ctx).
		Model(&domain.Prayer{}).
		Where("archived_at IS NULL AND created_at < ?", cutoff).
		Update("archived_at", now)
	return res.RowsAffected, res.Error
}
