// Package services – NotificationService
//
// Recipient-facing notification reads and the read/purge lifecycle. Fanout
// owns creation; the recipient owns the read flag; the maintenance job may
// purge old read notifications (notifications are not eternal records).
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/repo"
)

// DefaultReadRetention is how long read notifications are kept before the
// maintenance purge removes them.
const DefaultReadRetention = 30 * 24 * time.Hour

// NotificationService provides recipient-scoped notification operations.
type NotificationService struct {
	DB *gorm.DB

	// ReadRetention is the purge window for read notifications; <= 0 uses
	// DefaultReadRetention.
	ReadRetention time.Duration
}

// NewNotificationService constructs a NotificationService with the default
// retention window.
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db, ReadRetention: DefaultReadRetention}
}

// ListPage returns a page of recipientID's notifications, newest first, with
// the total count for pagination metadata.
func (s *NotificationService) ListPage(ctx context.Context, recipientID string, page, pageSize int) ([]domain.NotificationRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountNotifications(ctx, s.DB, recipientID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.NotificationRecord{}, 0, nil
	}

	items, err := repo.ListNotificationsPage(ctx, s.DB, recipientID, offset, pageSize)
	return items, total, err
}

// MarkRead flags a notification as read for its recipient.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id string) error {
	err := repo.MarkNotificationRead(ctx, s.DB, id, recipientID, time.Now().UTC())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

// PurgeRead removes read notifications older than the retention window and
// returns how many were purged.
func (s *NotificationService) PurgeRead(ctx context.Context, now time.Time) (int64, error) {
	retention := s.ReadRetention
	if retention <= 0 {
		retention = DefaultReadRetention
	}
	return repo.PurgeReadNotifications(ctx, s.DB, now.Add(-retention))
}
