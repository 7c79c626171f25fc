// Prayer HTTP handlers.
//
// This file exposes REST endpoints for prayer resources:
//   - POST   /prayers               (create)
//   - GET    /prayers/{id}          (fetch)
//   - POST   /prayers/{id}/respond  (pray for it, minting a connection)
//
// Idempotency:
// If the client supplies an Idempotency-Key header on respond and a previous
// successful result exists for (user, prayer, key), the handler returns the
// recorded memorial connection and sets `Idempotency-Replayed: true`.
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/repo"
	"github.com/lucentmaps/livingmap-backend/internal/services"
)

//
// DTOs
//

// CreatePrayerRequest is the JSON payload for creating a prayer.
type CreatePrayerRequest struct {
	// Content is the free-text body of the request (1–2000 runes).
	Content string `json:"content" binding:"required" example:"Please pray for my family"`
	// Lat / Lng anchor the prayer on the map (WGS84 degrees).
	Lat float64 `json:"lat" example:"40.7128"`
	Lng float64 `json:"lng" example:"-74.006"`
	// Anonymous drops the author attribution when true.
	Anonymous bool `json:"anonymous"`
}

// RespondPrayerRequest is the JSON payload for praying for a prayer.
type RespondPrayerRequest struct {
	// Lat / Lng is the responder's location (WGS84 degrees).
	Lat float64 `json:"lat" example:"34.0522"`
	Lng float64 `json:"lng" example:"-118.2437"`
	// Classification labels the minted connection; defaults to
	// "prayer_response" when empty.
	Classification string `json:"classification" example:"prayer_response"`
}

// RespondPrayerResponse wraps the memorial connection minted by a response.
type RespondPrayerResponse struct {
	Connection *domain.MemorialConnection `json:"connection"`
}

//
// Handlers
//

// CreatePrayer godoc
// @ID          createPrayer
// @Summary     Create a prayer
// @Description Creates a prayer anchored at a geographic origin and returns the resource. Nearby users are notified asynchronously.
// @Tags        Prayers
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreatePrayerRequest  true  "Create prayer payload"
//
// @Success     201  {object}  domain.Prayer
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /prayers [post]
func (h *Handlers) CreatePrayer(c *gin.Context) {
	var req CreatePrayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	var author *string
	if !req.Anonymous {
		uid := userID(c)
		author = &uid
	}

	p, err := h.prayerSvc.Create(c.Request.Context(), author, req.Content, req.Lat, req.Lng)
	if err != nil {
		switch err {
		case services.ErrEmptyContent:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		case services.ErrContentTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content too long")
		case services.ErrInvalidCoordinates:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lat/lng out of range")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, p)
}

// GetPrayer godoc
// @ID          getPrayer
// @Summary     Fetch a prayer
// @Description Returns a single prayer by ID.
// @Tags        Prayers
// @Produce     json
//
// @Param       id  path  string  true  "Prayer ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Prayer
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Prayer not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /prayers/{id} [get]
func (h *Handlers) GetPrayer(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prayer id must be a UUID")
		return
	}

	p, err := h.prayerSvc.Get(c.Request.Context(), id)
	if err != nil {
		switch err {
		case services.ErrPrayerNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "prayer not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, p)
}

// RespondPrayer godoc
// @ID          respondPrayer
// @Summary     Pray for a prayer
// @Description Records that the current user prayed for this prayer, minting an eternal memorial connection from the prayer's origin to the responder's location.
// @Description Supports idempotency via the Idempotency-Key header (same key → same connection).
// @Tags        Prayers
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  true  "Responding user ID"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Prayer ID (UUID)"    format(uuid)
// @Param       body             body    handlers.RespondPrayerRequest  true  "Responder location payload"
//
// @Success     201  {object}  handlers.RespondPrayerResponse  "Minted connection"
// @Failure     400  {object}  handlers.ErrorResponse          "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse          "Prayer not found"
// @Failure     500  {object}  handlers.ErrorResponse          "Internal error"
// @Router      /prayers/{id}/respond [post]
func (h *Handlers) RespondPrayer(c *gin.Context) {
	ctx := c.Request.Context()
	prayerID := c.Param("id")

	if _, err := uuid.Parse(prayerID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prayer id must be a UUID")
		return
	}

	var req RespondPrayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	classification := strings.TrimSpace(req.Classification)
	if classification == "" {
		classification = domain.ClassificationPrayerResponse
	}

	currentUser := userID(c)

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := middlewareGetIdempotencyKey(c)
	if idemKey != "" {
		if svc, okSvc := h.prayerSvc.(*services.PrayerService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, currentUser, prayerID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetConnection(ctx, svc.DB, rec.ConnectionID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusCreated, RespondPrayerResponse{Connection: prev})
					return
				}
			}
		}
	}

	conn, err := h.prayerSvc.Respond(ctx, prayerID, currentUser, req.Lat, req.Lng, classification)
	if err != nil {
		switch err {
		case services.ErrPrayerNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "prayer not found")
		case services.ErrInvalidCoordinates:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lat/lng out of range")
		case services.ErrInvalidClassification:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("unknown classification %q", classification))
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		if svc, okSvc := h.prayerSvc.(*services.PrayerService); okSvc && svc.DB != nil {
			ttl := 24 * time.Hour
			_, _ = repo.CreateIdempotency(ctx, svc.DB, currentUser, prayerID, idemKey, conn.ID, http.StatusCreated, ttl)
		}
	}

	ok(c, http.StatusCreated, RespondPrayerResponse{Connection: conn})
}

// middlewareGetIdempotencyKey extracts an idempotency key if an upstream
// middleware has already validated/stashed it. The fallback behavior reads
// the "Idempotency-Key" header directly when no dedicated middleware exists.
func middlewareGetIdempotencyKey(c *gin.Context) (string, bool) {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}
