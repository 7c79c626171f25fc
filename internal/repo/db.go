// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver), schema migrations, and the storage-level guard
// that makes memorial connections undeletable.
package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that an insert collided with a unique index, e.g. a
// second notification for the same (recipient, event) pair.
var ErrDuplicate = errors.New("duplicate")

// ErrProtected indicates a write was rejected by the eternal-record guard.
var ErrProtected = errors.New("memorial lines are eternal and cannot be deleted")

// protectedGuardMessage is the RAISE(ABORT) text of the delete trigger.
// Matching on it lets callers distinguish the guard from other SQL errors.
const protectedGuardMessage = "memorial lines are eternal"

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// EnableTracing attaches the GORM OpenTelemetry plugin so every query shows
// up as a span under the active trace.
func EnableTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// AutoMigrate creates/updates the schema and installs the delete guard.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Prayer{},
		&domain.MemorialConnection{},
		&domain.NotificationRecord{},
		&domain.RateLimitRecord{},
		&domain.UserPreference{},
		&domain.DeviceToken{},
		&domain.UserLocation{},
		&domain.QueueItem{},
		&domain.DeadLetterItem{},
		&domain.Idempotency{},
	); err != nil {
		return err
	}

	// Eternal-retention guard. Deletions must fail at the storage layer even
	// when issued as raw SQL by an administrative tool, not only through the
	// API surface.
	return db.Exec(`
		CREATE TRIGGER IF NOT EXISTS memorial_connections_no_delete
		BEFORE DELETE ON memorial_connections
		BEGIN
			SELECT RAISE(ABORT, 'memorial lines are eternal and cannot be deleted');
		END;`).Error
}

// isUniqueViolation reports whether err is a unique-index violation.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// isProtectedViolation reports whether err came from the delete guard trigger.
func isProtectedViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), protectedGuardMessage)
}
