// Package domain defines the persistence models for the living-map backend.
// This file holds notification records, per-user rate-limit state, and the
// user-facing preference / device / location tables consumed by fanout.
package domain

import "time"

// Notification types emitted by the fanout engine.
const (
	NotificationNearbyPrayer   = "nearby_prayer"
	NotificationPrayerResponse = "prayer_response"
	NotificationPrayerSupport  = "prayer_support"
)

// ValidNotificationType reports whether t is a known notification type.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationNearbyPrayer, NotificationPrayerResponse, NotificationPrayerSupport:
		return true
	}
	return false
}

// NotificationRecord is the fact that a specific user should be informed of a
// specific event. The unique index over (recipient_id, prayer_id, type)
// enforces at-most-one record per (user, event) pair regardless of how many
// times fanout runs for the same event.
//
// Unlike memorial connections, notifications are not eternal: a maintenance
// job may purge old read notifications.
type NotificationRecord struct {
	ID          string     `json:"id"           gorm:"type:char(36);primaryKey"`
	RecipientID string     `json:"recipient_id" gorm:"type:varchar(64);not null;index;uniqueIndex:ux_notif_recipient_event,priority:1"`
	PrayerID    string     `json:"prayer_id"    gorm:"type:char(36);not null;uniqueIndex:ux_notif_recipient_event,priority:2"`
	Type        string     `json:"type"         gorm:"type:varchar(24);not null;uniqueIndex:ux_notif_recipient_event,priority:3;check:type IN ('nearby_prayer','prayer_response','prayer_support')"`
	ActorID     *string    `json:"actor_id,omitempty" gorm:"type:varchar(64)"`
	PreviewText string     `json:"preview_text" gorm:"type:varchar(200);not null"`
	DistanceKm  float64    `json:"distance_km"  gorm:"not null"`
	EventLat    float64    `json:"event_lat"    gorm:"not null"`
	EventLng    float64    `json:"event_lng"    gorm:"not null"`
	Read        bool       `json:"read"         gorm:"not null;default:false;index"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName returns the database table name for NotificationRecord.
func (NotificationRecord) TableName() string { return "notification_records" }

// RateLimitRecord tracks per (user, notification-type) send state. The row is
// the one hot, contended key in the system and is only ever mutated through a
// single atomic upsert (insert-or-increment); see repo.UpsertRateLimit.
type RateLimitRecord struct {
	ID         string    `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID     string    `json:"user_id"      gorm:"type:varchar(64);not null;uniqueIndex:ux_ratelimit_user_type,priority:1"`
	Type       string    `json:"type"         gorm:"type:varchar(24);not null;uniqueIndex:ux_ratelimit_user_type,priority:2"`
	LastSentAt time.Time `json:"last_sent_at" gorm:"not null"`
	SentCount  int64     `json:"sent_count"   gorm:"not null;default:0"`
}

// TableName returns the database table name for RateLimitRecord.
func (RateLimitRecord) TableName() string { return "rate_limit_records" }

// UserPreference holds the notification gates consulted by fanout. A missing
// row means defaults apply (push enabled, all types enabled, 48 km radius).
type UserPreference struct {
	UserID                string    `json:"user_id"  gorm:"type:varchar(64);primaryKey"`
	PushEnabled           bool      `json:"push_enabled"            gorm:"not null;default:true"`
	NearbyPrayerEnabled   bool      `json:"nearby_prayer_enabled"   gorm:"not null;default:true"`
	PrayerResponseEnabled bool      `json:"prayer_response_enabled" gorm:"not null;default:true"`
	PrayerSupportEnabled  bool      `json:"prayer_support_enabled"  gorm:"not null;default:true"`
	NotificationRadiusKm  float64   `json:"notification_radius_km"  gorm:"not null;default:48"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// TableName returns the database table name for UserPreference.
func (UserPreference) TableName() string { return "user_preferences" }

// AllowsType reports whether the preference row permits the given
// notification type. Unknown types are rejected.
func (p UserPreference) AllowsType(t string) bool {
	switch t {
	case NotificationNearbyPrayer:
		return p.NearbyPrayerEnabled
	case NotificationPrayerResponse:
		return p.PrayerResponseEnabled
	case NotificationPrayerSupport:
		return p.PrayerSupportEnabled
	}
	return false
}

// DeviceToken is a registered push-delivery token. The core only consumes the
// "has at least one active token" gate; registration and actual FCM/APNs
// delivery belong to the push collaborator.
type DeviceToken struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"  gorm:"type:varchar(64);not null;index"`
	Token     string    `json:"-"        gorm:"type:varchar(512);not null"`
	Platform  string    `json:"platform" gorm:"type:varchar(16);not null"`
	Active    bool      `json:"active"   gorm:"not null;default:true;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for DeviceToken.
func (DeviceToken) TableName() string { return "device_tokens" }

// UserLocation is the last-known position for a user, maintained by the
// location-provider collaborator. Fanout candidate discovery reads it; the
// core never writes it except through the provider's own endpoint.
type UserLocation struct {
	UserID    string    `json:"user_id" gorm:"type:varchar(64);primaryKey"`
	Lat       float64   `json:"lat"     gorm:"not null"`
	Lng       float64   `json:"lng"     gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for UserLocation.
func (UserLocation) TableName() string { return "user_locations" }
