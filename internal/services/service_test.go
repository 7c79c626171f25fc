package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/repo"
)

// newServiceDB opens a file-backed SQLite database in a temp dir with the
// full schema, including the connection delete-guard trigger.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
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

func seedPrayerAt(t *testing.T, db *gorm.DB, lat, lng float64) *domain.Prayer {
	t.Helper()
	p, err := repo.CreatePrayer(context.Background(), db, nil, "please pray", lat, lng)
	if err != nil {
		t.Fatalf("seed prayer: %v", err)
	}
	return p
}

// seedRecipient gives a user everything fanout needs: a location and an
// active device token. Preferences stay at defaults unless a test overrides
// them.
func seedRecipient(t *testing.T, db *gorm.DB, userID string, lat, lng float64) {
	t.Helper()
	now := time.Now().UTC()
	if err := repo.UpsertUserLocation(context.Background(), db, userID, lat, lng, now); err != nil {
		t.Fatalf("seed location for %s: %v", userID, err)
	}
	if err := db.Create(&domain.DeviceToken{
		ID:        userID + "-token",
		UserID:    userID,
		Token:     "tok-" + userID,
		Platform:  "ios",
		Active:    true,
		CreatedAt: now,
	}).Error; err != nil {
		t.Fatalf("seed token for %s: %v", userID, err)
	}
}
