// Package domain defines the persistence models for the living-map backend.
package domain

import "time"

// Idempotency represents a recorded result of a previously processed request,
// keyed by (user_id, prayer_id, key). It enables safe retries for unsafe
// operations (e.g., POST /prayers/:id/respond) by letting handlers replay the
// originally produced response instead of re-executing side effects.
type Idempotency struct {
	ID           string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_prayer_key,priority:1"`
	PrayerID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_prayer_key,priority:2"`
	Key          string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_prayer_key,priority:3"`
	ConnectionID string    `gorm:"type:TEXT NOT NULL"`
	Status       int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt    time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt    time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
