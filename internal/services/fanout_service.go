// Package services – FanoutService
//
// This file implements the notification fanout engine. Given a prayer event
// it discovers nearby candidate recipients, walks each independently through
// the Excluded → RateLimited → Eligible gates, and for eligible recipients
// atomically inserts one notification record and updates the rate-limit row
// in a single transaction. A push-delivery collaborator picks up the records
// later; creating the record is the whole contract.
//
// Failure isolation: a discovery failure aborts the event (no partial
// state); a per-recipient insertion failure is logged and skipped so one bad
// row cannot sink an entire event's fanout.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/unicode/norm"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/repo"
)

const (
	// DefaultBatchCap bounds how many recipients one event may notify.
	// Candidates beyond the cap are skipped, not queued; discovery returns
	// nearest-first so the cap keeps the closest users.
	DefaultBatchCap = 100

	// DefaultMaxRadiusKm is the widest per-user notification radius the
	// engine discovers for (~30 mi). Users may configure a smaller radius.
	DefaultMaxRadiusKm = 48.0

	// maxPreviewRunes caps the notification preview text.
	maxPreviewRunes = 140
)

var (
	fanoutCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fanout_notifications_created_total",
		Help: "Total notification records created by fanout.",
	})
	fanoutSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_recipients_skipped_total",
			Help: "Fanout candidates skipped, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(fanoutCreated, fanoutSkipped)
}

// Locator is the candidate-discovery contract: users whose current location
// falls within radiusKm of a point, nearest first. How the location is
// sourced (home, last-known, live GPS) is the collaborator's concern.
type Locator interface {
	UsersWithinRadius(ctx context.Context, lat, lng, radiusKm float64) ([]repo.UserDistance, error)
}

// StoreLocator is the default Locator backed by the user_locations table.
type StoreLocator struct {
	DB *gorm.DB
}

// UsersWithinRadius implements Locator over the last-known-location store.
func (l StoreLocator) UsersWithinRadius(ctx context.Context, lat, lng, radiusKm float64) ([]repo.UserDistance, error) {
	return repo.UsersWithinRadius(ctx, l.DB, lat, lng, radiusKm)
}

// FanoutService computes eligible recipients for prayer events and emits
// at-most-one notification per (recipient, event).
type FanoutService struct {
	DB      *gorm.DB
	Limiter *RateLimiter
	Locator Locator

	// BatchCap bounds recipients per event; <= 0 uses DefaultBatchCap.
	BatchCap int
	// MaxRadiusKm bounds candidate discovery; <= 0 uses DefaultMaxRadiusKm.
	MaxRadiusKm float64
}

// NewFanoutService constructs a FanoutService with default cap and radius,
// discovering candidates from the location store.
func NewFanoutService(db *gorm.DB, limiter *RateLimiter) *FanoutService {
	return &FanoutService{
		DB:          db,
		Limiter:     limiter,
		Locator:     StoreLocator{DB: db},
		BatchCap:    DefaultBatchCap,
		MaxRadiusKm: DefaultMaxRadiusKm,
	}
}

func (s *FanoutService) cap() int {
	if s.BatchCap > 0 {
		return s.BatchCap
	}
	return DefaultBatchCap
}

func (s *FanoutService) maxRadius() float64 {
	if s.MaxRadiusKm > 0 {
		return s.MaxRadiusKm
	}
	return DefaultMaxRadiusKm
}

// FanoutForEvent notifies users near (originLat, originLng) about a prayer
// event and returns how many notification records were created.
//
// Each candidate is evaluated independently, in nearest-first order:
//   - Excluded: the event's own actor, a disabled notification type or
//     global push switch, out of the candidate's own radius, or no active
//     device token. Terminal, nothing recorded.
//   - RateLimited: the per-(user, type) cooldown has not elapsed. Terminal,
//     and deliberately not recorded either — bumping the window here would
//     starve the user forever under a steady event stream.
//   - Eligible: one transaction inserts the notification record and upserts
//     the rate-limit row; they commit together or not at all.
//
// The unique (recipient, event, type) index makes concurrent fanouts of the
// same event converge: duplicates come back as no-ops, never extra records.
func (s *FanoutService) FanoutForEvent(ctx context.Context, prayerID, typ string, originLat, originLng float64, actorUserID, previewText string) (int, error) {
	tr := otel.Tracer("services/FanoutService")
	ctx, span := tr.Start(ctx, "FanoutForEvent",
		trace.WithAttributes(
			attribute.String("prayer.id", prayerID),
			attribute.String("notification.type", typ),
		),
	)
	defer span.End()

	if !domain.ValidNotificationType(typ) {
		return 0, ErrInvalidNotificationType
	}
	if _, err := repo.GetPrayer(ctx, s.DB, prayerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrPrayerNotFound
		}
		return 0, err
	}
	preview := normalizePreview(previewText)

	candidates, err := s.Locator.UsersWithinRadius(ctx, originLat, originLng, s.maxRadius())
	if err != nil {
		// Discovery failure aborts the whole event; the caller decides
		// whether to retry (the queue worker does).
		return 0, err
	}

	now := time.Now().UTC()
	created := 0
	for _, cand := range candidates {
		if created >= s.cap() {
			fanoutSkipped.WithLabelValues("batch_cap").Inc()
			continue
		}
		if cand.UserID == actorUserID {
			fanoutSkipped.WithLabelValues("actor").Inc()
			continue
		}

		prefs, err := repo.GetPreferences(ctx, s.DB, cand.UserID)
		if err != nil {
			s.skip(ctx, cand.UserID, prayerID, "preferences", err)
			continue
		}
		if !prefs.PushEnabled || !prefs.AllowsType(typ) || cand.DistanceKm > prefs.NotificationRadiusKm {
			fanoutSkipped.WithLabelValues("preferences").Inc()
			continue
		}
		hasToken, err := repo.HasActiveDeviceToken(ctx, s.DB, cand.UserID)
		if err != nil {
			s.skip(ctx, cand.UserID, prayerID, "tokens", err)
			continue
		}
		if !hasToken {
			fanoutSkipped.WithLabelValues("no_token").Inc()
			continue
		}

		ok, err := s.Limiter.CanSend(ctx, cand.UserID, typ, now)
		if err != nil {
			s.skip(ctx, cand.UserID, prayerID, "rate_limit_check", err)
			continue
		}
		if !ok {
			fanoutSkipped.WithLabelValues("rate_limited").Inc()
			continue
		}

		rec := &domain.NotificationRecord{
			RecipientID: cand.UserID,
			PrayerID:    prayerID,
			Type:        typ,
			PreviewText: preview,
			DistanceKm:  cand.DistanceKm,
			EventLat:    originLat,
			EventLng:    originLng,
			CreatedAt:   now,
		}
		if actorUserID != "" {
			actor := actorUserID
			rec.ActorID = &actor
		}

		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := repo.CreateNotification(ctx, tx, rec); err != nil {
				return err
			}
			return s.Limiter.RecordSend(ctx, tx, cand.UserID, typ, now)
		})
		switch {
		case err == nil:
			created++
			fanoutCreated.Inc()
		case errors.Is(err, repo.ErrDuplicate):
			// Another fanout of the same event got here first.
			fanoutSkipped.WithLabelValues("duplicate").Inc()
		default:
			s.skip(ctx, cand.UserID, prayerID, "insert", err)
		}
	}
	span.SetAttributes(attribute.Int("fanout.created", created))
	return created, nil
}

// skip logs a per-recipient failure without aborting the event.
func (s *FanoutService) skip(_ context.Context, userID, prayerID, stage string, err error) {
	fanoutSkipped.WithLabelValues("error").Inc()
	log.Warn().
		Err(err).
		Str("user_id", userID).
		Str("prayer_id", prayerID).
		Str("stage", stage).
		Msg("fanout recipient skipped")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizePreview NFC-normalizes, squashes whitespace, and clips the
// user-visible preview text to a push-notification-friendly length.
func normalizePreview(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = whitespaceRE.ReplaceAllString(s, " ")
	if utf8.RuneCountInString(s) > maxPreviewRunes {
		s = string([]rune(s)[:maxPreviewRunes])
	}
	return s
}
