// Package services – QueueService
//
// This file implements the async retry queue used for reliable side-effect
// processing (today: fanout events). Items move pending → processing →
// completed, bounce back to pending on retryable failure, and land in the
// dead-letter store once retries are exhausted. Stale processing claims from
// crashed workers are detected by timeout and reset.
//
// Known race, by construction: a worker reset as stale may still finish and
// call Complete. Completion is conditional on still owning the item, so the
// late write is a harmless no-op (last writer wins).
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/repo"
)

// FailOutcome is the result of Fail: whether the item went back to pending
// or moved to the dead-letter store.
type FailOutcome string

const (
	OutcomeRetrying     FailOutcome = "retrying"
	OutcomeDeadLettered FailOutcome = "dead_lettered"
)

// Defaults for retry and stale-claim handling.
const (
	DefaultMaxRetries   = 3
	DefaultStaleTimeout = 30 * time.Minute
)

// QueueService provides the retry-queue operations.
type QueueService struct {
	DB *gorm.DB

	// MaxRetries is the attempt budget before dead-lettering; <= 0 uses 3.
	MaxRetries int
	// StaleTimeout is how long a processing claim may live before ResetStale
	// reclaims it; <= 0 uses 30 minutes.
	StaleTimeout time.Duration
}

// NewQueueService constructs a QueueService with default retry budget and
// stale timeout.
func NewQueueService(db *gorm.DB) *QueueService {
	return &QueueService{DB: db, MaxRetries: DefaultMaxRetries, StaleTimeout: DefaultStaleTimeout}
}

func (s *QueueService) maxRetries() int {
	if s.MaxRetries > 0 {
		return s.MaxRetries
	}
	return DefaultMaxRetries
}

func (s *QueueService) staleTimeout() time.Duration {
	if s.StaleTimeout > 0 {
		return s.StaleTimeout
	}
	return DefaultStaleTimeout
}

// Enqueue inserts a pending item. Priority must be non-negative; higher
// priorities claim first.
func (s *QueueService) Enqueue(ctx context.Context, kind string, payload json.RawMessage, priority int) (*domain.QueueItem, error) {
	if priority < 0 {
		return nil, ErrInvalidPriority
	}
	return repo.EnqueueItem(ctx, s.DB, kind, payload, priority)
}

// ClaimNext claims the single highest-priority oldest pending item, or
// returns (nil, nil) when the queue is empty.
func (s *QueueService) ClaimNext(ctx context.Context) (*domain.QueueItem, error) {
	items, err := s.ClaimBatch(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// ClaimBatch claims up to n pending items for this worker. Concurrent
// claimers never receive the same item.
func (s *QueueService) ClaimBatch(ctx context.Context, n int) ([]domain.QueueItem, error) {
	return repo.ClaimBatch(ctx, s.DB, n, time.Now().UTC())
}

// Complete marks a claimed item done. Completing an item that was reclaimed
// by ResetStale in the meantime is a safe no-op.
func (s *QueueService) Complete(ctx context.Context, id string) error {
	return repo.CompleteItem(ctx, s.DB, id)
}

// Fail records a processing failure for item. The failure is appended to the
// item's error history; if the attempt budget is exhausted the item moves
// atomically to the dead-letter store (exactly once) and OutcomeDeadLettered
// is returned, otherwise the item returns to pending with its retry counter
// bumped and OutcomeRetrying is returned.
func (s *QueueService) Fail(ctx context.Context, item *domain.QueueItem, failErr error) (FailOutcome, error) {
	msg := "unknown error"
	if failErr != nil {
		msg = failErr.Error()
	}
	entries, err := item.Errors()
	if err != nil {
		return "", err
	}
	entries = append(entries, domain.QueueError{At: time.Now().UTC(), Error: msg})
	history, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}

	if item.RetryCount+1 >= s.maxRetries() {
		if _, err := repo.MoveToDeadLetter(ctx, s.DB, item, history, time.Now().UTC()); err != nil {
			return "", err
		}
		return OutcomeDeadLettered, nil
	}
	if err := repo.RequeueItem(ctx, s.DB, item.ID, item.RetryCount+1, history); err != nil {
		return "", err
	}
	return OutcomeRetrying, nil
}

// ResetStale forces items stuck in processing for longer than the configured
// timeout back to pending, recovering work from crashed workers. Returns the
// number of reclaimed items.
func (s *QueueService) ResetStale(ctx context.Context) (int64, error) {
	return repo.ResetStaleItems(ctx, s.DB, s.staleTimeout(), time.Now().UTC())
}

// RetryFromDeadLetter replays a dead-lettered payload as a fresh pending
// item: retry count reset to zero, error history preserved for audit, and
// the dead-letter row's requeue counter incremented.
func (s *QueueService) RetryFromDeadLetter(ctx context.Context, id string) (*domain.QueueItem, error) {
	dlq, err := repo.GetDeadLetter(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return repo.RequeueFromDeadLetter(ctx, s.DB, dlq, time.Now().UTC())
}

// ListDeadLetters returns a page of dead-letter items, newest failures
// first.
func (s *QueueService) ListDeadLetters(ctx context.Context, offset, limit int) ([]domain.DeadLetterItem, error) {
	if limit <= 0 {
		limit = 50
	}
	return repo.ListDeadLetters(ctx, s.DB, offset, limit)
}
