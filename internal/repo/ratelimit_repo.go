// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the rate-limit record store. The
// (user_id, type) row is the hottest key in the system, so the only write
// path is a single atomic upsert; read-then-write would lose updates under
// concurrent senders.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
)

// GetRateLimit returns the rate-limit record for (userID, typ), or nil when
// the user has never been sent a notification of that type.
func GetRateLimit(ctx context.Context, db *gorm.DB, userID, typ string) (*domain.RateLimitRecord, error) {
	var rec domain.RateLimitRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, typ).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertRateLimit records a send for (userID, typ) as one atomic
// insert-or-increment: on conflict with the unique (user_id, type) index the
// existing row's counter is bumped and last_sent_at replaced, all inside the
// engine. Safe under concurrent calls for the same key.
func UpsertRateLimit(ctx context.Context, db *gorm.DB, userID, typ string, now time.Time) error {
	rec := domain.RateLimitRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Type:       typ,
		LastSentAt: now,
		SentCount:  1,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "type"}},
			DoUpdates: clause.Assignments(map[string]any{
				"last_sent_at": now,
				"sent_count":   gorm.Expr("sent_count + 1"),
			}),
		}).
		Create(&rec).Error
}
