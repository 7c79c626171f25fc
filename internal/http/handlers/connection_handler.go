// Connection ledger HTTP handlers.
//
// This file exposes REST endpoints for memorial connections:
//   - POST   /connections       (append to the ledger)
//   - GET    /connections/{id}  (fetch)
//   - DELETE /connections/{id}  (always refused: connections are eternal)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lucentmaps/livingmap-backend/internal/services"
)

// CreateConnectionRequest is the JSON payload for appending a connection.
type CreateConnectionRequest struct {
	// PrayerID is the parent prayer the connection responds to.
	PrayerID string `json:"prayer_id" binding:"required" format:"uuid"`
	// Segment endpoints: prayer origin → responder location (WGS84 degrees).
	FromLat float64 `json:"from_lat" example:"40.7128"`
	FromLng float64 `json:"from_lng" example:"-74.006"`
	ToLat   float64 `json:"to_lat"   example:"34.0522"`
	ToLng   float64 `json:"to_lng"   example:"-118.2437"`
	// Optional participant attribution.
	FromUserID *string `json:"from_user_id,omitempty"`
	ToUserID   *string `json:"to_user_id,omitempty"`
	// Classification is one of prayer_response|ongoing_prayer|answered_prayer.
	Classification string `json:"classification" binding:"required" example:"prayer_response"`
}

// CreateConnection godoc
// @ID          createConnection
// @Summary     Append a memorial connection
// @Description Appends a connection to the ledger. Connections are eternal: once written they can never be removed.
// @Tags        Connections
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateConnectionRequest  true  "Connection payload"
//
// @Success     201  {object}  domain.MemorialConnection
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Parent prayer not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /connections [post]
func (h *Handlers) CreateConnection(c *gin.Context) {
	var req CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if _, err := uuid.Parse(req.PrayerID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prayer_id must be a UUID")
		return
	}

	conn, err := h.ledgerSvc.CreateConnection(c.Request.Context(), req.PrayerID,
		req.FromLat, req.FromLng, req.ToLat, req.ToLng,
		req.FromUserID, req.ToUserID, req.Classification)
	if err != nil {
		switch err {
		case services.ErrPrayerNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "prayer not found")
		case services.ErrInvalidCoordinates:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lat/lng out of range")
		case services.ErrInvalidClassification:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("unknown classification %q", req.Classification))
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, conn)
}

// GetConnection godoc
// @ID          getConnection
// @Summary     Fetch a memorial connection
// @Description Returns a single connection by ID.
// @Tags        Connections
// @Produce     json
//
// @Param       id  path  string  true  "Connection ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.MemorialConnection
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Connection not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /connections/{id} [get]
func (h *Handlers) GetConnection(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "connection id must be a UUID")
		return
	}

	conn, err := h.ledgerSvc.GetConnection(c.Request.Context(), id)
	if err != nil {
		switch err {
		case services.ErrConnectionNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "connection not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, conn)
}

// DeleteConnection godoc
// @ID          deleteConnection
// @Summary     Delete a memorial connection (always refused)
// @Description Memorial connections are eternal. Every delete attempt returns 403 with code "protected_record", regardless of caller.
// @Tags        Connections
// @Produce     json
//
// @Param       id  path  string  true  "Connection ID (UUID)"  format(uuid)
//
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Protected record"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /connections/{id} [delete]
func (h *Handlers) DeleteConnection(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "connection id must be a UUID")
		return
	}

	err := h.ledgerSvc.DeleteConnection(c.Request.Context(), id)
	switch err {
	case services.ErrProtectedRecord:
		fail(c, http.StatusForbidden, ErrCodeProtectedRecord, services.ErrProtectedRecord.Error())
	case nil:
		// The ledger never deletes; a nil error here would mean the guard
		// is broken, so surface it loudly.
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "delete guard did not engage")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
