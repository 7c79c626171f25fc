// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for notification
// records and the fanout gate lookups (preferences, device tokens).
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
)

// CreateNotification inserts one notification record. The unique index over
// (recipient_id, prayer_id, type) makes delivery at-most-once per (user,
// event): a second insert for the same tuple returns ErrDuplicate.
func CreateNotification(ctx context.Context, db *gorm.DB, rec *domain.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// CountNotifications returns the total notifications for a recipient.
func CountNotifications(ctx context.Context, db *gorm.DB, recipientID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.NotificationRecord{}).
		Where("recipient_id = ?", recipientID).
		Count(&total).Error
	return total, err
}

// ListNotificationsPage returns a page of a recipient's notifications,
// newest first.
func ListNotificationsPage(ctx context.Context, db *gorm.DB, recipientID string, offset, limit int) ([]domain.NotificationRecord, error) {
	var out []domain.NotificationRecord
	err := db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkNotificationRead flags a notification as read, enforcing recipient
// ownership. Marking an already-read notification is a no-op success.
// Returns ErrNotFound when the record does not exist or belongs to someone
// else.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, id, recipientID string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.NotificationRecord{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Updates(map[string]any{"read": true, "read_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// PurgeReadNotifications deletes read notifications older than cutoff and
// returns how many were removed. Notifications, unlike memorial connections,
// are allowed to be purged once read.
func PurgeReadNotifications(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("read = ? AND created_at < ?", true, cutoff).
		Delete(&domain.NotificationRecord{})
	return res.RowsAffected, res.Error
}

// GetPreferences returns the preference row for userID, or the defaults
// (push on, every type on, 48 km radius) when the user never saved any.
func GetPreferences(ctx context.Context, db *gorm.DB, userID string) (*domain.UserPreference, error) {
	var p domain.UserPreference
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.UserPreference{
			UserID:                userID,
			PushEnabled:           true,
			NearbyPrayerEnabled:   true,
			PrayerResponseEnabled: true,
			PrayerSupportEnabled:  true,
			NotificationRadiusKm:  48,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// HasActiveDeviceToken reports whether the user has at least one active
// push-delivery token registered.
func HasActiveDeviceToken(ctx context.Context, db *gorm.DB, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.DeviceToken{}).
		Where("user_id = ? AND active = ?", userID, true).
		Count(&n).Error
	return n > 0, err
}
