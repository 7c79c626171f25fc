package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/repo"
	"github.com/lucentmaps/livingmap-backend/internal/retry"
	"github.com/lucentmaps/livingmap-backend/internal/services"
)

func newWorkerDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("worker_test_%d.db", time.Now().UnixNano()))
	db, err := repo.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// oneShot keeps tests fast: a single attempt, no sleeping.
func oneShot() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = 1
	p.InitialDelay = 0
	return p
}

func TestFanoutWorker_ProcessesQueuedTask(t *testing.T) {
	db := newWorkerDB(t)
	ctx := context.Background()

	queue := services.NewQueueService(db)
	fanout := services.NewFanoutService(db, services.NewRateLimiter(db))
	w := NewFanoutWorker(queue, fanout)
	w.Backoff = oneShot()

	prayer, err := repo.CreatePrayer(ctx, db, nil, "please pray", 40.7128, -74.0060)
	if err != nil {
		t.Fatalf("prayer: %v", err)
	}
	now := time.Now().UTC()
	if err := repo.UpsertUserLocation(ctx, db, "nearby", 40.7549, -73.9840, now); err != nil {
		t.Fatalf("location: %v", err)
	}
	if err := db.Create(&domain.DeviceToken{
		ID: "tok1", UserID: "nearby", Token: "t", Platform: "ios", Active: true,
	}).Error; err != nil {
		t.Fatalf("token: %v", err)
	}

	payload, _ := json.Marshal(domain.FanoutTask{
		PrayerID:    prayer.ID,
		Type:        domain.NotificationNearbyPrayer,
		OriginLat:   prayer.Lat,
		OriginLng:   prayer.Lng,
		PreviewText: "please pray",
	})
	item, err := queue.Enqueue(ctx, domain.QueueKindFanout, payload, 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	n, err := w.RunOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RunOnce = %d, %v; want 1", n, err)
	}

	count, err := repo.CountNotifications(ctx, db, "nearby")
	if err != nil || count != 1 {
		t.Fatalf("notifications = %d, %v; want 1", count, err)
	}
	got, err := repo.GetQueueItem(ctx, db, item.ID)
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	if got.Status != domain.QueueStatusCompleted {
		t.Fatalf("item status = %s, want completed", got.Status)
	}
}

func TestFanoutWorker_PermanentFailureExhaustsRetries(t *testing.T) {
	db := newWorkerDB(t)
	ctx := context.Background()

	queue := services.NewQueueService(db)
	queue.MaxRetries = 2
	fanout := services.NewFanoutService(db, services.NewRateLimiter(db))
	w := NewFanoutWorker(queue, fanout)
	w.Backoff = oneShot()

	// A task for a prayer that does not exist fails permanently every run.
	payload, _ := json.Marshal(domain.FanoutTask{
		PrayerID: "ghost",
		Type:     domain.NotificationNearbyPrayer,
	})
	if _, err := queue.Enqueue(ctx, domain.QueueKindFanout, payload, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// First run requeues, second dead-letters.
	if n, err := w.RunOnce(ctx); err != nil || n != 1 {
		t.Fatalf("first RunOnce = %d, %v", n, err)
	}
	if n, err := w.RunOnce(ctx); err != nil || n != 1 {
		t.Fatalf("second RunOnce = %d, %v", n, err)
	}
	if n, err := w.RunOnce(ctx); err != nil || n != 0 {
		t.Fatalf("queue should be drained: %d, %v", n, err)
	}

	dead, err := queue.ListDeadLetters(ctx, 0, 10)
	if err != nil || len(dead) != 1 {
		t.Fatalf("ListDeadLetters: %v (%d rows)", err, len(dead))
	}
	var history []domain.QueueError
	if err := json.Unmarshal(dead[0].ErrorHistory, &history); err != nil || len(history) != 2 {
		t.Fatalf("history: %v (%d entries)", err, len(history))
	}
}

func TestFanoutWorker_MalformedPayloadDeadLetters(t *testing.T) {
	db := newWorkerDB(t)
	ctx := context.Background()

	queue := services.NewQueueService(db)
	queue.MaxRetries = 1
	w := NewFanoutWorker(queue, services.NewFanoutService(db, services.NewRateLimiter(db)))
	w.Backoff = oneShot()

	if _, err := queue.Enqueue(ctx, domain.QueueKindFanout, json.RawMessage(`not json`), 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if n, err := w.RunOnce(ctx); err != nil || n != 1 {
		t.Fatalf("RunOnce = %d, %v", n, err)
	}

	dead, err := queue.ListDeadLetters(ctx, 0, 10)
	if err != nil || len(dead) != 1 {
		t.Fatalf("malformed payload should dead-letter: %v (%d rows)", err, len(dead))
	}
}

func TestFanoutWorker_UnknownKindFails(t *testing.T) {
	db := newWorkerDB(t)
	ctx := context.Background()

	queue := services.NewQueueService(db)
	queue.MaxRetries = 1
	w := NewFanoutWorker(queue, services.NewFanoutService(db, services.NewRateLimiter(db)))
	w.Backoff = oneShot()

	if _, err := queue.Enqueue(ctx, "teleport", json.RawMessage(`{}`), 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	dead, err := queue.ListDeadLetters(ctx, 0, 10)
	if err != nil || len(dead) != 1 {
		t.Fatalf("unknown kind should dead-letter: %v (%d rows)", err, len(dead))
	}
}

func TestMaintenanceSweep(t *testing.T) {
	db := newWorkerDB(t)
	ctx := context.Background()

	queue := services.NewQueueService(db)
	queue.StaleTimeout = time.Minute
	prayerSvc := services.NewPrayerService(db, services.NewLedgerService(db), nil)
	prayerSvc.ArchiveTTL = 24 * time.Hour

	m := &Maintenance{
		Queue:  queue,
		Notif:  services.NewNotificationService(db),
		Prayer: prayerSvc,
	}

	// A claim stuck long past the stale timeout.
	if _, err := queue.Enqueue(ctx, domain.QueueKindFanout, json.RawMessage(`{}`), 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := repo.ClaimBatch(ctx, db, 1, time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// An expired prayer.
	p, err := repo.CreatePrayer(ctx, db, nil, "old", 40.0, -75.0)
	if err != nil {
		t.Fatalf("prayer: %v", err)
	}
	if err := db.Model(&domain.Prayer{}).Where("id = ?", p.ID).
		Update("created_at", time.Now().UTC().Add(-48*time.Hour)).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	m.Sweep(ctx)

	items, err := queue.ClaimBatch(ctx, 1)
	if err != nil || len(items) != 1 {
		t.Fatalf("stale item was not reclaimed: %v (%d items)", err, len(items))
	}
	got, err := repo.GetPrayer(ctx, db, p.ID)
	if err != nil || got.ArchivedAt == nil {
		t.Fatalf("expired prayer not archived: %+v, %v", got, err)
	}
}
