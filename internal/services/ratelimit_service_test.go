package services

import (
	"context"
	"testing"
	"time"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
)

func TestRateLimiter_CooldownBoundary(t *testing.T) {
	db := newServiceDB(t)
	rl := NewRateLimiter(db)
	ctx := context.Background()

	sent := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	ok, err := rl.CanSend(ctx, "u1", domain.NotificationNearbyPrayer, sent)
	if err != nil || !ok {
		t.Fatalf("first send must be allowed: ok=%v err=%v", ok, err)
	}
	if err := rl.RecordSend(ctx, db, "u1", domain.NotificationNearbyPrayer, sent); err != nil {
		t.Fatalf("RecordSend: %v", err)
	}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"immediately after", sent.Add(time.Second), false},
		{"just before window ends", sent.Add(60*time.Minute - time.Second), false},
		{"exactly at window end", sent.Add(60 * time.Minute), false},
		{"one second past window", sent.Add(60*time.Minute + time.Second), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := rl.CanSend(ctx, "u1", domain.NotificationNearbyPrayer, tc.at)
			if err != nil {
				t.Fatalf("CanSend: %v", err)
			}
			if ok != tc.want {
				t.Fatalf("CanSend at %s = %v, want %v", tc.at, ok, tc.want)
			}
		})
	}

	// A different type is limited independently.
	ok, err = rl.CanSend(ctx, "u1", domain.NotificationPrayerResponse, sent.Add(time.Second))
	if err != nil || !ok {
		t.Fatalf("other type must not share the window: ok=%v err=%v", ok, err)
	}
}

func TestRateLimiter_ConfigurableWindow(t *testing.T) {
	db := newServiceDB(t)
	rl := &RateLimiter{DB: db, Cooldown: 5 * time.Minute}
	ctx := context.Background()

	sent := time.Now().UTC()
	if err := rl.RecordSend(ctx, db, "u1", domain.NotificationNearbyPrayer, sent); err != nil {
		t.Fatalf("RecordSend: %v", err)
	}

	ok, err := rl.CanSend(ctx, "u1", domain.NotificationNearbyPrayer, sent.Add(4*time.Minute))
	if err != nil || ok {
		t.Fatalf("inside 5m window: ok=%v err=%v", ok, err)
	}
	ok, err = rl.CanSend(ctx, "u1", domain.NotificationNearbyPrayer, sent.Add(6*time.Minute))
	if err != nil || !ok {
		t.Fatalf("past 5m window: ok=%v err=%v", ok, err)
	}
}
