// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the async queue primitives: enqueue,
// compare-and-claim, completion, retry bookkeeping, and the dead-letter
// store.
//
// Claiming uses a per-item conditional UPDATE guarded on status='pending'.
// RowsAffected tells the caller whether they won the row, so N concurrent
// claimers can never double-claim regardless of the backend's locking model
// (the equivalent of SELECT ... FOR UPDATE SKIP LOCKED on Postgres).
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
)

// EnqueueItem inserts a fresh pending queue item.
func EnqueueItem(ctx context.Context, db *gorm.DB, kind string, payload json.RawMessage, priority int) (*domain.QueueItem, error) {
	item := &domain.QueueItem{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		Status:    domain.QueueStatusPending,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// GetQueueItem fetches a queue item by ID. Returns ErrNotFound if missing.
func GetQueueItem(ctx context.Context, db *gorm.DB, id string) (*domain.QueueItem, error) {
	var item domain.QueueItem
	if err := db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// pendingCandidates returns up to n pending item IDs in claim order:
// priority descending, then oldest first.
func pendingCandidates(ctx context.Context, db *gorm.DB, n int) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.QueueItem{}).
		Where("status = ?", domain.QueueStatusPending).
		Order("priority DESC, created_at ASC").
		Limit(n).
		Pluck("id", &ids).Error
	return ids, err
}

// tryClaim attempts to move one pending item to processing, stamping
// processing_started_at. It returns true only when this caller won the row.
func tryClaim(ctx context.Context, db *gorm.DB, id string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.QueueItem{}).
		Where("id = ? AND status = ?", id, domain.QueueStatusPending).
		Updates(map[string]any{
			"status":                domain.QueueStatusProcessing,
			"processing_started_at": now,
		})
	return res.RowsAffected == 1, res.Error
}

// ClaimBatch atomically claims up to n pending items for this worker,
// ordered by (priority DESC, created_at ASC). Items another claimer wins in
// the meantime are skipped, never handed out twice.
func ClaimBatch(ctx context.Context, db *gorm.DB, n int, now time.Time) ([]domain.QueueItem, error) {
	if n <= 0 {
		n = 1
	}
	// Over-fetch candidates so races with other claimers still fill the batch.
	ids, err := pendingCandidates(ctx, db, n*2)
	if err != nil {
		return nil, err
	}

	claimed := make([]domain.QueueItem, 0, n)
	for _, id := range ids {
		if len(claimed) == n {
			break
		}
		won, err := tryClaim(ctx, db, id, now)
		if err != nil {
			return claimed, err
		}
		if !won {
			continue
		}
		item, err := GetQueueItem(ctx, db, id)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, *item)
	}
	return claimed, nil
}

// CompleteItem marks a processing item completed. Completing an item this
// worker no longer owns (e.g., it was reclaimed after a stale reset) is a
// safe no-op, so late writers cannot corrupt queue state.
func CompleteItem(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.QueueItem{}).
		Where("id = ? AND status = ?", id, domain.QueueStatusProcessing).
		Updates(map[string]any{
			"status":                domain.QueueStatusCompleted,
			"processing_started_at": nil,
		}).Error
}

// RequeueItem bumps the retry counter, replaces the error history, clears
// the processing stamp, and returns the item to pending.
func RequeueItem(ctx context.Context, db *gorm.DB, id string, retryCount int, history json.RawMessage) error {
	return db.WithContext(ctx).
		Model(&domain.QueueItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":                domain.QueueStatusPending,
			"retry_count":           retryCount,
			"error_history":         history,
			"processing_started_at": nil,
		}).Error
}

// MoveToDeadLetter copies a queue item into the dead-letter store and
// removes it from the live queue as one transaction, so the item exists in
// exactly one of the two places at every instant.
func MoveToDeadLetter(ctx context.Context, db *gorm.DB, item *domain.QueueItem, history json.RawMessage, now time.Time) (*domain.DeadLetterItem, error) {
	dlq := &domain.DeadLetterItem{
		ID:           uuid.NewString(),
		OriginalID:   item.ID,
		Kind:         item.Kind,
		Payload:      item.Payload,
		RetryCount:   item.RetryCount + 1,
		ErrorHistory: history,
		FailedAt:     now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dlq).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.QueueItem{}, "id = ?", item.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return dlq, nil
}

// ResetStaleItems forces items stuck in processing for longer than timeout
// back to pending and appends a reset entry to their error history. Returns
// how many were recovered.
func ResetStaleItems(ctx context.Context, db *gorm.DB, timeout time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-timeout)

	var stale []domain.QueueItem
	err := db.WithContext(ctx).
		Where("status = ? AND processing_started_at < ?", domain.QueueStatusProcessing, cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	var reset int64
	for _, item := range stale {
		history, err := appendError(item.ErrorHistory, domain.QueueError{
			At:    now,
			Error: "processing timed out; reset to pending",
		})
		if err != nil {
			return reset, err
		}
		res := db.WithContext(ctx).
			Model(&domain.QueueItem{}).
			Where("id = ? AND status = ?", item.ID, domain.QueueStatusProcessing).
			Updates(map[string]any{
				"status":                domain.QueueStatusPending,
				"error_history":         history,
				"processing_started_at": nil,
			})
		if res.Error != nil {
			return reset, res.Error
		}
		reset += res.RowsAffected
	}
	return reset, nil
}

// GetDeadLetter fetches a dead-letter item by ID. Returns ErrNotFound if
// missing.
func GetDeadLetter(ctx context.Context, db *gorm.DB, id string) (*domain.DeadLetterItem, error) {
	var item domain.DeadLetterItem
	if err := db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListDeadLetters returns dead-letter items, most recent failures first.
func ListDeadLetters(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.DeadLetterItem, error) {
	var out []domain.DeadLetterItem
	err := db.WithContext(ctx).
		Order("failed_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// RequeueFromDeadLetter re-inserts a dead-lettered payload as a fresh
// pending item with retry_count reset to zero, preserving the accumulated
// error history for audit, and bumps the dead-letter row's requeue counter.
// Both effects commit together.
func RequeueFromDeadLetter(ctx context.Context, db *gorm.DB, dlq *domain.DeadLetterItem, now time.Time) (*domain.QueueItem, error) {
	item := &domain.QueueItem{
		ID:           uuid.NewString(),
		Kind:         dlq.Kind,
		Payload:      dlq.Payload,
		Status:       domain.QueueStatusPending,
		RetryCount:   0,
		ErrorHistory: dlq.ErrorHistory,
		CreatedAt:    now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return tx.Model(&domain.DeadLetterItem{}).
			Where("id = ?", dlq.ID).
			Update("requeue_count", gorm.Expr("requeue_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// appendError appends one entry to a JSON error-history array.
func appendError(history json.RawMessage, e domain.QueueError) (json.RawMessage, error) {
	var entries []domain.QueueError
	if len(history) > 0 {
		if err := json.Unmarshal(history, &entries); err != nil {
			return nil, err
		}
	}
	entries = append(entries, e)
	return json.Marshal(entries)
}
