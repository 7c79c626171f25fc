package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
)

func TestCreateAndGetPrayer(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	user := "author-1"
	p, err := CreatePrayer(ctx, db, &user, "Please pray for my family", 40.7128, -74.0060)
	if err != nil {
		t.Fatalf("CreatePrayer: %v", err)
	}
	if p.Status != domain.PrayerStatusActive || p.ModerationStatus != domain.ModerationApproved {
		t.Fatalf("new prayer state: %+v", p)
	}

	got, err := GetPrayer(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("GetPrayer: %v", err)
	}
	if got.Content != p.Content || got.UserID == nil || *got.UserID != user {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	// Anonymous prayers carry a nil author.
	anon, err := CreatePrayer(ctx, db, nil, "anon", 1, 1)
	if err != nil {
		t.Fatalf("anonymous CreatePrayer: %v", err)
	}
	if anon.UserID != nil {
		t.Fatalf("anonymous prayer has author: %+v", anon)
	}
}

func TestUpdatePrayerStatus(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	p := seedPrayer(t, db, 40.7, -74.0)

	if err := UpdatePrayerStatus(ctx, db, p.ID, domain.PrayerStatusHidden); err != nil {
		t.Fatalf("UpdatePrayerStatus: %v", err)
	}
	got, err := GetPrayer(ctx, db, p.ID)
	if err != nil || got.Status != domain.PrayerStatusHidden {
		t.Fatalf("status after update: %+v, %v", got, err)
	}

	if err := UpdatePrayerStatus(ctx, db, "missing", domain.PrayerStatusHidden); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown prayer, got %v", err)
	}
}

func TestArchiveExpiredPrayers(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := seedPrayer(t, db, 40.0, -75.0)
	if err := db.Model(&domain.Prayer{}).Where("id = ?", old.ID).
		Update("created_at", now.Add(-40*24*time.Hour)).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
	fresh := seedPrayer(t, db, 41.0, -74.0)

	n, err := ArchiveExpiredPrayers(ctx, db, 30*24*time.Hour, now)
	if err != nil || n != 1 {
		t.Fatalf("ArchiveExpiredPrayers = %d, %v; want 1", n, err)
	}

	gotOld, err := GetPrayer(ctx, db, old.ID)
	if err != nil || gotOld.ArchivedAt == nil {
		t.Fatalf("old prayer not archived: %+v, %v", gotOld, err)
	}
	gotFresh, err := GetPrayer(ctx, db, fresh.ID)
	if err != nil || gotFresh.ArchivedAt != nil {
		t.Fatalf("fresh prayer archived: %+v, %v", gotFresh, err)
	}

	// A second sweep finds nothing new.
	n, err = ArchiveExpiredPrayers(ctx, db, 30*24*time.Hour, now)
	if err != nil || n != 0 {
		t.Fatalf("second sweep = %d, %v; want 0", n, err)
	}
}

func TestIdempotency_RoundTripAndExpiry(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	p := seedPrayer(t, db, 40.7, -74.0)
	now := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, "u1", p.ID, "key-1", "conn-1", 201, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}

	got, err := GetIdempotency(ctx, db, "u1", p.ID, "key-1", now)
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.ID != rec.ID || got.ConnectionID != "conn-1" || got.Status != 201 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	// Same (user, prayer, key) cannot be stored twice.
	if _, err := CreateIdempotency(ctx, db, "u1", p.ID, "key-1", "conn-2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Another user's identical key is a separate record.
	if _, err := CreateIdempotency(ctx, db, "u2", p.ID, "key-1", "conn-3", 201, time.Hour); err != nil {
		t.Fatalf("other user's key: %v", err)
	}

	// Expired records are invisible.
	if _, err := GetIdempotency(ctx, db, "u1", p.ID, "key-1", now.Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}
