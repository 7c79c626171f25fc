// Package services – RateLimiter
//
// Per-(user, notification-type) cooldown tracking. This is the notification
// throttle of the fanout engine, distinct from the HTTP edge limiter in the
// middleware package: the window here is minutes-long, durable, and keyed by
// recipient rather than caller.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lucentmaps/livingmap-backend/internal/repo"
)

// DefaultCooldown is the default per-type notification cooldown window.
const DefaultCooldown = 60 * time.Minute

// RateLimiter answers "may this user receive another notification of this
// type yet" against the durable rate-limit store.
type RateLimiter struct {
	DB *gorm.DB
	// Cooldown is the per-(user, type) window; <= 0 uses DefaultCooldown.
	Cooldown time.Duration
}

// NewRateLimiter constructs a RateLimiter with the default 60-minute window.
func NewRateLimiter(db *gorm.DB) *RateLimiter {
	return &RateLimiter{DB: db, Cooldown: DefaultCooldown}
}

func (rl *RateLimiter) window() time.Duration {
	if rl.Cooldown > 0 {
		return rl.Cooldown
	}
	return DefaultCooldown
}

// CanSend reports whether userID may receive a notification of typ at now.
// True when no prior send is recorded, or when strictly more than the
// cooldown has elapsed since the last one (the cooldown end is inclusive:
// at exactly lastSent+cooldown the user is still limited).
func (rl *RateLimiter) CanSend(ctx context.Context, userID, typ string, now time.Time) (bool, error) {
	rec, err := repo.GetRateLimit(ctx, rl.DB, userID, typ)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return true, nil
	}
	return now.Sub(rec.LastSentAt) > rl.window(), nil
}

// RecordSend registers a successful send for (userID, typ) via the store's
// atomic upsert. The db handle is a parameter so fanout can pass its
// transaction and commit the notification insert and this update together.
func (rl *RateLimiter) RecordSend(ctx context.Context, db *gorm.DB, userID, typ string, now time.Time) error {
	return repo.UpsertRateLimit(ctx, db, userID, typ, now)
}
