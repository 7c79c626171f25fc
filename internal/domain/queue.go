// Package domain defines the persistence models for the living-map backend.
// This file holds the async work queue and its dead-letter store.
package domain

import (
	"encoding/json"
	"time"
)

// Queue item statuses. Items move pending → processing → completed, or back
// to pending on retry, or out of the live queue entirely when dead-lettered.
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
)

// Queue item kinds processed by the worker loop.
const (
	QueueKindFanout = "fanout"
)

// QueueError is one entry of an item's error history.
type QueueError struct {
	At    time.Time `json:"at"`
	Error string    `json:"error"`
}

// QueueItem is a unit of async work. ErrorHistory is stored as a JSON array
// and only ever appended to. ProcessingStartedAt is stamped on claim and
// used by stale-claim detection to recover from crashed workers.
type QueueItem struct {
	ID                  string          `json:"id"       gorm:"type:char(36);primaryKey"`
	Kind                string          `json:"kind"     gorm:"type:varchar(32);not null;index"`
	Payload             json.RawMessage `json:"payload"  gorm:"type:text;not null"`
	Status              string          `json:"status"   gorm:"type:varchar(16);not null;default:'pending';index:idx_queue_claim,priority:1;check:status IN ('pending','processing','completed')"`
	Priority            int             `json:"priority" gorm:"not null;default:0;index:idx_queue_claim,priority:2"`
	RetryCount          int             `json:"retry_count" gorm:"not null;default:0"`
	ErrorHistory        json.RawMessage `json:"error_history,omitempty" gorm:"type:text"`
	ProcessingStartedAt *time.Time      `json:"processing_started_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at" gorm:"index:idx_queue_claim,priority:3"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// TableName returns the database table name for QueueItem.
func (QueueItem) TableName() string { return "queue_items" }

// Errors decodes the item's error history. A missing or empty history
// decodes to nil.
func (q QueueItem) Errors() ([]QueueError, error) {
	if len(q.ErrorHistory) == 0 {
		return nil, nil
	}
	var out []QueueError
	if err := json.Unmarshal(q.ErrorHistory, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeadLetterItem is a queue item that exhausted its retries. The payload and
// full error history are preserved for audit; RequeueCount tracks how many
// times an operator has replayed it back into the live queue.
type DeadLetterItem struct {
	ID           string          `json:"id"            gorm:"type:char(36);primaryKey"`
	OriginalID   string          `json:"original_id"   gorm:"type:char(36);not null;index"`
	Kind         string          `json:"kind"          gorm:"type:varchar(32);not null"`
	Payload      json.RawMessage `json:"payload"       gorm:"type:text;not null"`
	RetryCount   int             `json:"retry_count"   gorm:"not null"`
	ErrorHistory json.RawMessage `json:"error_history" gorm:"type:text"`
	RequeueCount int             `json:"requeue_count" gorm:"not null;default:0"`
	FailedAt     time.Time       `json:"failed_at"`
}

// TableName returns the database table name for DeadLetterItem.
func (DeadLetterItem) TableName() string { return "dead_letter_items" }

// FanoutTask is the payload of a QueueKindFanout item: notify users near
// OriginLat/OriginLng about the given prayer event.
type FanoutTask struct {
	PrayerID    string  `json:"prayer_id"`
	Type        string  `json:"type"`
	OriginLat   float64 `json:"origin_lat"`
	OriginLng   float64 `json:"origin_lng"`
	ActorUserID string  `json:"actor_user_id"`
	PreviewText string  `json:"preview_text"`
}
