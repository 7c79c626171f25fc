// Handler wiring and shared request plumbing.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/geo"
	"github.com/lucentmaps/livingmap-backend/internal/services"
	"github.com/lucentmaps/livingmap-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// PrayerService defines prayer lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PrayerService interface {
	// Create persists a new prayer anchored at (lat, lng).
	Create(ctx context.Context, userID *string, content string, lat, lng float64) (*domain.Prayer, error)
	// Get returns a prayer by ID.
	Get(ctx context.Context, id string) (*domain.Prayer, error)
	// Respond records that responderID prayed for prayerID from (lat, lng),
	// minting a memorial connection.
	Respond(ctx context.Context, prayerID, responderID string, lat, lng float64, classification string) (*domain.MemorialConnection, error)
	// SetStatus changes a prayer's visibility status (moderation surface).
	SetStatus(ctx context.Context, id, status string) error
}

// LedgerService defines connection ledger operations consumed by HTTP
// handlers. Deletion always fails: memorial connections are eternal.
type LedgerService interface {
	// CreateConnection appends a memorial connection to the ledger.
	CreateConnection(ctx context.Context, prayerID string, fromLat, fromLng, toLat, toLng float64, fromUser, toUser *string, classification string) (*domain.MemorialConnection, error)
	// GetConnection returns a connection by ID.
	GetConnection(ctx context.Context, id string) (*domain.MemorialConnection, error)
	// DeleteConnection refuses to delete and returns ErrProtectedRecord.
	DeleteConnection(ctx context.Context, id string) error
}

// ViewportService defines the map query surface consumed by HTTP handlers.
type ViewportService interface {
	// QueryViewport returns visible connections intersecting the box.
	QueryViewport(ctx context.Context, b geo.Bounds, limit int) ([]services.ConnectionView, error)
	// QueryDeltaSince returns connections created after `since`.
	QueryDeltaSince(ctx context.Context, b geo.Bounds, since time.Time) ([]services.ConnectionView, error)
	// QueryClustered returns a mixed set of clusters and individual
	// connections, switching on density.
	QueryClustered(ctx context.Context, b geo.Bounds, cellSize float64, maxIndividual int) (*services.ClusteredResult, error)
	// QueryDensityGrid returns per-cell counts for heatmap rendering.
	QueryDensityGrid(ctx context.Context, b geo.Bounds, gridSize float64) ([]services.DensityCell, error)
	// Stats returns (count, latest created-at) for weak ETag generation.
	Stats(ctx context.Context, b geo.Bounds) (int64, *time.Time, error)
}

// FanoutService defines the notification fanout entry point.
type FanoutService interface {
	// FanoutForEvent notifies nearby users and returns how many
	// notifications were created.
	FanoutForEvent(ctx context.Context, prayerID, typ string, originLat, originLng float64, actorUserID, previewText string) (int, error)
}

// NotificationService defines notification read operations.
type NotificationService interface {
	// ListPage returns a page of the recipient's notifications.
	ListPage(ctx context.Context, recipientID string, page, pageSize int) ([]domain.NotificationRecord, int64, error)
	// MarkRead marks one notification as read.
	MarkRead(ctx context.Context, recipientID, id string) error
}

// QueueService defines the admin surface over the retry queue.
type QueueService interface {
	// ListDeadLetters returns a window of dead-lettered items.
	ListDeadLetters(ctx context.Context, offset, limit int) ([]domain.DeadLetterItem, error)
	// RetryFromDeadLetter requeues a dead-lettered item as pending.
	RetryFromDeadLetter(ctx context.Context, id string) (*domain.QueueItem, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for prayers, the connection ledger, map
// queries, notifications, and queue administration. It depends on abstract
// service interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	prayerSvc PrayerService
	ledgerSvc LedgerService
	viewSvc   ViewportService
	fanoutSvc FanoutService
	notifSvc  NotificationService
	queueSvc  QueueService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(prayerSvc PrayerService, ledgerSvc LedgerService, viewSvc ViewportService, fanoutSvc FanoutService, notifSvc NotificationService, queueSvc QueueService) *Handlers {
	return &Handlers{
		prayerSvc: prayerSvc,
		ledgerSvc: ledgerSvc,
		viewSvc:   viewSvc,
		fanoutSvc: fanoutSvc,
		notifSvc:  notifSvc,
		queueSvc:  queueSvc,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// Shared DTOs and helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}
