// Package services – LedgerService
//
// This file implements the connection ledger: durable, append-only storage
// of memorial connections. The ledger exclusively owns writes; after
// creation a connection is immutable and cannot be deleted by anyone — the
// storage layer enforces this with a delete-guard trigger, and the service
// surface simply has no mutation path.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/geo"
	"github.com/lucentmaps/livingmap-backend/internal/repo"
)

// LedgerService provides the append-only memorial connection ledger.
type LedgerService struct {
	DB *gorm.DB
}

// NewLedgerService constructs a LedgerService on the given DB handle.
func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// CreateConnection validates and persists one memorial connection from a
// prayer's origin to a responder's location. It fails with ErrPrayerNotFound
// when the parent prayer does not exist, ErrInvalidClassification for an
// unknown classification, and ErrInvalidCoordinates for out-of-range points.
func (s *LedgerService) CreateConnection(ctx context.Context, prayerID string, fromLat, fromLng, toLat, toLng float64, fromUser, toUser *string, classification string) (*domain.MemorialConnection, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "CreateConnection",
		trace.WithAttributes(
			attribute.String("prayer.id", prayerID),
			attribute.String("connection.classification", classification),
		),
	)
	defer span.End()

	if !domain.ValidClassification(classification) {
		return nil, ErrInvalidClassification
	}
	if !geo.ValidCoord(fromLat, fromLng) || !geo.ValidCoord(toLat, toLng) {
		return nil, ErrInvalidCoordinates
	}
	if _, err := repo.GetPrayer(ctx, s.DB, prayerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPrayerNotFound
		}
		return nil, err
	}
	return repo.CreateConnection(ctx, s.DB, prayerID, fromLat, fromLng, toLat, toLng, fromUser, toUser, classification)
}

// GetConnection fetches a single connection by ID.
func (s *LedgerService) GetConnection(ctx context.Context, id string) (*domain.MemorialConnection, error) {
	c, err := repo.GetConnection(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, err
	}
	return c, nil
}

// DeleteConnection always fails with ErrProtectedRecord. The attempt is
// still pushed down to the store so the delete-guard trigger is exercised;
// if the guard were ever missing the service would refuse anyway.
func (s *LedgerService) DeleteConnection(ctx context.Context, id string) error {
	err := repo.DeleteConnection(ctx, s.DB, id)
	if err != nil && !errors.Is(err, repo.ErrProtected) {
		return err
	}
	return ErrProtectedRecord
}
