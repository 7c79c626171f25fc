// Package services – PrayerService
//
// This file implements the prayer lifecycle: creation with validation and
// text normalization, retrieval, responding (which mints the memorial
// connection and publishes the fanout event), moderation status transitions,
// and soft archival.
//
// Side effects are explicit application-level events, not storage triggers:
// a successful create or respond enqueues a fanout task on the retry queue,
// where the worker picks it up with retry and dead-letter semantics. Fanout
// is best-effort — an enqueue failure is logged, never surfaced to the
// primary write.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/unicode/norm"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/geo"
	"github.com/lucentmaps/livingmap-backend/internal/repo"
)

// DefaultPrayerTTL is how long a prayer stays discoverable before the
// maintenance job archives it. Archival is soft; the row and its memorial
// connections are retained forever.
const DefaultPrayerTTL = 30 * 24 * time.Hour

// PrayerService coordinates prayer persistence and the events it publishes.
type PrayerService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Queue  *QueueService

	// MaxContentRunes caps the prayer body length; <= 0 means 2000.
	MaxContentRunes int
	// ArchiveTTL is the discoverability window; <= 0 uses DefaultPrayerTTL.
	ArchiveTTL time.Duration
}

// NewPrayerService constructs a PrayerService with default limits.
func NewPrayerService(db *gorm.DB, ledger *LedgerService, queue *QueueService) *PrayerService {
	return &PrayerService{
		DB:              db,
		Ledger:          ledger,
		Queue:           queue,
		MaxContentRunes: 2000,
		ArchiveTTL:      DefaultPrayerTTL,
	}
}

func (s *PrayerService) maxContent() int {
	if s.MaxContentRunes > 0 {
		return s.MaxContentRunes
	}
	return 2000
}

// Create validates and persists a new prayer, then publishes a nearby_prayer
// fanout event for it. userID may be nil for anonymous prayers.
func (s *PrayerService) Create(ctx context.Context, userID *string, content string, lat, lng float64) (*domain.Prayer, error) {
	tr := otel.Tracer("services/PrayerService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	content = norm.NFC.String(strings.TrimSpace(content))
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.maxContent() {
		return nil, ErrContentTooLong
	}
	if !geo.ValidCoord(lat, lng) {
		return nil, ErrInvalidCoordinates
	}

	p, err := repo.CreatePrayer(ctx, s.DB, userID, content, lat, lng)
	if err != nil {
		return nil, err
	}

	actor := ""
	if userID != nil {
		actor = *userID
	}
	s.publishFanout(ctx, domain.FanoutTask{
		PrayerID:    p.ID,
		Type:        domain.NotificationNearbyPrayer,
		OriginLat:   lat,
		OriginLng:   lng,
		ActorUserID: actor,
		PreviewText: content,
	})
	return p, nil
}

// Get fetches a prayer by ID.
func (s *PrayerService) Get(ctx context.Context, id string) (*domain.Prayer, error) {
	p, err := repo.GetPrayer(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPrayerNotFound
		}
		return nil, err
	}
	return p, nil
}

// Respond records that responderID prayed for the prayer from (lat, lng):
// it mints the memorial connection on the ledger (prayer origin → responder
// location) and publishes a prayer_response fanout event around the origin.
func (s *PrayerService) Respond(ctx context.Context, prayerID, responderID string, lat, lng float64, classification string) (*domain.MemorialConnection, error) {
	tr := otel.Tracer("services/PrayerService")
	ctx, span := tr.Start(ctx, "Respond",
		trace.WithAttributes(attribute.String("prayer.id", prayerID)),
	)
	defer span.End()

	if classification == "" {
		classification = domain.ClassificationPrayerResponse
	}
	p, err := s.Get(ctx, prayerID)
	if err != nil {
		return nil, err
	}

	responder := responderID
	conn, err := s.Ledger.CreateConnection(ctx, p.ID, p.Lat, p.Lng, lat, lng, p.UserID, &responder, classification)
	if err != nil {
		return nil, err
	}

	s.publishFanout(ctx, domain.FanoutTask{
		PrayerID:    p.ID,
		Type:        domain.NotificationPrayerResponse,
		OriginLat:   p.Lat,
		OriginLng:   p.Lng,
		ActorUserID: responderID,
		PreviewText: p.Content,
	})
	return conn, nil
}

// SetStatus applies a moderation-driven visibility transition. Hiding or
// removing a prayer filters its connections from default rendering without
// deleting anything.
func (s *PrayerService) SetStatus(ctx context.Context, id, status string) error {
	switch status {
	case domain.PrayerStatusActive, domain.PrayerStatusHidden,
		domain.PrayerStatusRemoved, domain.PrayerStatusPendingReview:
	default:
		return ErrInvalidStatus
	}
	if err := repo.UpdatePrayerStatus(ctx, s.DB, id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPrayerNotFound
		}
		return err
	}
	return nil
}

// ArchiveExpired soft-archives active prayers older than the configured TTL
// and returns how many were archived.
func (s *PrayerService) ArchiveExpired(ctx context.Context, now time.Time) (int64, error) {
	ttl := s.ArchiveTTL
	if ttl <= 0 {
		ttl = DefaultPrayerTTL
	}
	return repo.ArchiveExpiredPrayers(ctx, s.DB, ttl, now)
}

// publishFanout enqueues a fanout task for the worker. Best-effort: the
// primary write already committed, so an enqueue failure is only logged.
func (s *PrayerService) publishFanout(ctx context.Context, task domain.FanoutTask) {
	if s.Queue == nil {
		return
	}
	payload, err := json.Marshal(task)
	if err != nil {
		log.Error().Err(err).Str("prayer_id", task.PrayerID).Msg("fanout task encode failed")
		return
	}
	if _, err := s.Queue.Enqueue(ctx, domain.QueueKindFanout, payload, 0); err != nil {
		log.Error().Err(err).Str("prayer_id", task.PrayerID).Msg("fanout task enqueue failed")
	}
}
