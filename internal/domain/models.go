// Package domain defines the persistence models for prayers, memorial
// connections, notifications, and the async work queue. These types are
// mapped with GORM and form the core data layer of the living-map backend.
package domain

import (
	"time"
)

// Prayer visibility statuses. A prayer that is hidden or removed is filtered
// from default rendering, but the row itself is never deleted by the core.
const (
	PrayerStatusActive        = "active"
	PrayerStatusHidden        = "hidden"
	PrayerStatusRemoved       = "removed"
	PrayerStatusPendingReview = "pending_review"
)

// Moderation statuses, driven by the moderation collaborator.
const (
	ModerationApproved = "approved"
	ModerationPending  = "pending"
	ModerationRejected = "rejected"
)

// Prayer represents a spiritual request anchored to a geographic origin.
// Prayers may be anonymous (nil UserID). Archival is soft: ArchivedAt marks
// a prayer as excluded from discovery, the row is retained forever.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: author identifier; nil for anonymous prayers.
//   - Content: free-text body, NFC-normalized before persistence.
//   - Lat / Lng: origin point of the request (WGS84 degrees).
//   - Status: visibility status (active|hidden|removed|pending_review).
//   - ModerationStatus: moderation outcome (approved|pending|rejected).
//   - ArchivedAt: soft-archival marker set by the maintenance job.
type Prayer struct {
	ID               string     `json:"id"                gorm:"type:char(36);primaryKey"`
	UserID           *string    `json:"user_id,omitempty" gorm:"type:varchar(64);index:idx_user_prayers"`
	Content          string     `json:"content"           gorm:"type:text;not null"`
	Lat              float64    `json:"lat"               gorm:"not null"`
	Lng              float64    `json:"lng"               gorm:"not null"`
	Status           string     `json:"status"            gorm:"type:varchar(16);not null;default:'active';index;check:status IN ('active','hidden','removed','pending_review')"`
	ModerationStatus string     `json:"moderation_status" gorm:"type:varchar(16);not null;default:'approved';check:moderation_status IN ('approved','pending','rejected')"`
	ArchivedAt       *time.Time `json:"archived_at,omitempty" gorm:"index"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Prayer.
func (Prayer) TableName() string { return "prayers" }

// Connection classifications. The set is closed on purpose so rendering
// logic can be exhaustive; new variants require a schema migration.
const (
	ClassificationPrayerResponse = "prayer_response"
	ClassificationOngoingPrayer  = "ongoing_prayer"
	ClassificationAnsweredPrayer = "answered_prayer"
)

// ValidClassification reports whether c is one of the known connection
// classifications.
func ValidClassification(c string) bool {
	switch c {
	case ClassificationPrayerResponse, ClassificationOngoingPrayer, ClassificationAnsweredPrayer:
		return true
	}
	return false
}

// MemorialConnection is a directed geodesic link from a prayer's origin to a
// responder's location, created at the moment someone prays for a request.
//
// Connections are append-only and eternal: no update path exists for the
// location or user fields, and deletion is blocked at the storage layer by a
// BEFORE DELETE trigger (see repo.AutoMigrate). Visibility is derived solely
// from the parent prayer's status, never from the connection's own age.
//
// MinLat/MaxLat/MinLng/MaxLng denormalize the bounding box of the from→to
// segment so viewport queries can prefilter with plain range comparisons
// before the engine runs the precise segment test.
//
// ExpiresAt is a legacy column kept for historical compatibility. It is
// never read by any query path; tests assert it stays dead.
type MemorialConnection struct {
	ID             string     `json:"id"              gorm:"type:char(36);primaryKey"`
	PrayerID       string     `json:"prayer_id"       gorm:"type:char(36);not null;index"`
	FromLat        float64    `json:"from_lat"        gorm:"not null"`
	FromLng        float64    `json:"from_lng"        gorm:"not null"`
	ToLat          float64    `json:"to_lat"          gorm:"not null"`
	ToLng          float64    `json:"to_lng"          gorm:"not null"`
	FromUserID     *string    `json:"from_user_id,omitempty" gorm:"type:varchar(64)"`
	ToUserID       *string    `json:"to_user_id,omitempty"   gorm:"type:varchar(64);index"`
	Classification string     `json:"classification"  gorm:"type:varchar(24);not null;check:classification IN ('prayer_response','ongoing_prayer','answered_prayer')"`
	Eternal        bool       `json:"eternal"         gorm:"not null;default:true"`
	MinLat         float64    `json:"-"               gorm:"not null;index:idx_conn_bbox,priority:1"`
	MaxLat         float64    `json:"-"               gorm:"not null;index:idx_conn_bbox,priority:2"`
	MinLng         float64    `json:"-"               gorm:"not null;index:idx_conn_bbox,priority:3"`
	MaxLng         float64    `json:"-"               gorm:"not null;index:idx_conn_bbox,priority:4"`
	ExpiresAt      *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"      gorm:"index:idx_conn_created"`

	// Prayer is the parent request. The association exists for joins only;
	// connections are never cascade-deleted because deletes are blocked.
	Prayer Prayer `json:"-" gorm:"foreignKey:PrayerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for MemorialConnection.
func (MemorialConnection) TableName() string { return "memorial_connections" }
