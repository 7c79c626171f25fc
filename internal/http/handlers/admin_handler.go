// Admin HTTP handlers.
//
// This file exposes operator endpoints for moderation, manual fanout, and
// retry-queue administration:
//   - PUT  /admin/prayers/{id}/status       (moderation)
//   - POST /admin/fanout                    (trigger a fanout synchronously)
//   - GET  /admin/dead-letters              (inspect the dead-letter queue)
//   - POST /admin/dead-letters/{id}/retry   (requeue a dead-lettered item)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/services"
)

//
// DTOs
//

// UpdatePrayerStatusRequest is the JSON payload for moderation updates.
type UpdatePrayerStatusRequest struct {
	// Status is one of active|hidden|removed|pending_review.
	Status string `json:"status" binding:"required" example:"hidden"`
}

// FanoutRequest is the JSON payload for triggering a fanout by hand. The
// normal path is asynchronous via the queue; this endpoint exists for
// operators and backfills.
type FanoutRequest struct {
	PrayerID    string  `json:"prayer_id" binding:"required" format:"uuid"`
	Type        string  `json:"type" binding:"required" example:"nearby_prayer"`
	OriginLat   float64 `json:"origin_lat"`
	OriginLng   float64 `json:"origin_lng"`
	ActorUserID string  `json:"actor_user_id"`
	PreviewText string  `json:"preview_text"`
}

// FanoutResponse reports how many notifications a fanout created.
type FanoutResponse struct {
	Created int `json:"created"`
}

// ListDeadLettersResponse wraps a window of dead-lettered queue items.
type ListDeadLettersResponse struct {
	Items []domain.DeadLetterItem `json:"items"`
}

//
// Handlers
//

// UpdatePrayerStatus godoc
// @ID          updatePrayerStatus
// @Summary     Change a prayer's visibility status
// @Description Moderation surface: hides, removes, or restores a prayer. Connections under a hidden prayer stop rendering but are never deleted.
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Prayer ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdatePrayerStatusRequest  true  "New status"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Prayer not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/prayers/{id}/status [put]
func (h *Handlers) UpdatePrayerStatus(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prayer id must be a UUID")
		return
	}

	var req UpdatePrayerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if err := h.prayerSvc.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		switch err {
		case services.ErrPrayerNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "prayer not found")
		case services.ErrInvalidStatus:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("unknown status %q", req.Status))
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}

// TriggerFanout godoc
// @ID          triggerFanout
// @Summary     Trigger a notification fanout
// @Description Runs the fanout engine synchronously for a prayer event and reports how many notifications were created. Recipients already notified for this event are skipped.
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.FanoutRequest  true  "Fanout payload"
//
// @Success     200  {object} handlers.FanoutResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Prayer not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/fanout [post]
func (h *Handlers) TriggerFanout(c *gin.Context) {
	var req FanoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	created, err := h.fanoutSvc.FanoutForEvent(c.Request.Context(), req.PrayerID, req.Type,
		req.OriginLat, req.OriginLng, req.ActorUserID, req.PreviewText)
	if err != nil {
		switch err {
		case services.ErrPrayerNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "prayer not found")
		case services.ErrInvalidNotificationType:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("unknown notification type %q", req.Type))
		default:
			fail(c, http.StatusInternalServerError, ErrCodeFanoutFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, FanoutResponse{Created: created})
}

// ListDeadLetters godoc
// @ID          listDeadLetters
// @Summary     List dead-lettered queue items
// @Description Returns a window of items that exhausted their retries, newest first.
// @Tags        Admin
// @Produce     json
//
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListDeadLettersResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/dead-letters [get]
func (h *Handlers) ListDeadLetters(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, err := h.queueSvc.ListDeadLetters(c.Request.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListDeadLettersResponse{Items: items})
}

// RetryDeadLetter godoc
// @ID          retryDeadLetter
// @Summary     Requeue a dead-lettered item
// @Description Moves a dead-lettered item back onto the queue as a fresh pending item with a zeroed retry count, and returns the new item.
// @Tags        Admin
// @Produce     json
//
// @Param       id  path  string  true  "Dead-letter item ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.QueueItem
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Item not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/dead-letters/{id}/retry [post]
func (h *Handlers) RetryDeadLetter(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item id must be a UUID")
		return
	}

	item, err := h.queueSvc.RetryFromDeadLetter(c.Request.Context(), id)
	if err != nil {
		switch err {
		case services.ErrItemNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "dead-letter item not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, item)
}
