package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
)

// newRepoDB opens a file-backed SQLite database in a temp dir and applies
// the full schema, including the delete-guard trigger.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedPrayer inserts an active prayer and returns it.
func seedPrayer(t *testing.T, db *gorm.DB, lat, lng float64) *domain.Prayer {
	t.Helper()
	p, err := CreatePrayer(context.Background(), db, nil, "please pray", lat, lng)
	if err != nil {
		t.Fatalf("seed prayer: %v", err)
	}
	return p
}
