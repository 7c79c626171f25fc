// Map query HTTP handlers.
//
// This file exposes the read-side of the living map:
//   - GET /map/viewport        (visible connections, ETag support)
//   - GET /map/viewport/delta  (connections created after `since`)
//   - GET /map/clusters        (adaptive clustering)
//   - GET /map/density         (heatmap grid)
//
// Every endpoint takes the viewport as south/west/north/east query params in
// WGS84 degrees. Boxes crossing the antimeridian are rejected with 400.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lucentmaps/livingmap-backend/internal/geo"
	"github.com/lucentmaps/livingmap-backend/internal/services"
	"github.com/lucentmaps/livingmap-backend/internal/utils"
)

//
// DTOs
//

// ViewportResponse wraps the connections visible in a viewport.
type ViewportResponse struct {
	Connections []services.ConnectionView `json:"connections"`
	Count       int                       `json:"count"`
}

// DeltaResponse wraps connections created after the requested instant.
type DeltaResponse struct {
	Connections []services.ConnectionView `json:"connections"`
	Count       int                       `json:"count"`
	Since       time.Time                 `json:"since"`
}

// DensityResponse wraps the heatmap cells for a viewport.
type DensityResponse struct {
	Cells []services.DensityCell `json:"cells"`
}

//
// Helpers
//

// parseBounds reads south/west/north/east query params. On any malformed or
// missing value it writes a 400 response and returns ok=false.
func parseBounds(c *gin.Context) (geo.Bounds, bool) {
	var b geo.Bounds
	fields := []struct {
		name string
		dst  *float64
	}{
		{"south", &b.South},
		{"west", &b.West},
		{"north", &b.North},
		{"east", &b.East},
	}
	for _, f := range fields {
		raw := c.Query(f.name)
		if raw == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("missing query param %q", f.name))
			return geo.Bounds{}, false
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("query param %q must be a number", f.name))
			return geo.Bounds{}, false
		}
		*f.dst = v
	}
	if !b.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid bounding box")
		return geo.Bounds{}, false
	}
	return b, true
}

// floatQuery parses a float query param, falling back to def when the param
// is absent or malformed.
func floatQuery(c *gin.Context, name string, def float64) float64 {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

//
// Handlers
//

// MapViewport godoc
// @ID          mapViewport
// @Summary     Query visible connections
// @Description Returns the memorial connections visible in the given viewport, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Map
// @Produce     json
//
// @Param       If-None-Match  header  string   false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       south          query   number   true  "South edge (degrees)"
// @Param       west           query   number   true  "West edge (degrees)"
// @Param       north          query   number   true  "North edge (degrees)"
// @Param       east           query   number   true  "East edge (degrees)"
// @Param       limit          query   int      false "Max connections returned"  default(500) maximum(2000)
//
// @Success     200  {object} handlers.ViewportResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /map/viewport [get]
func (h *Handlers) MapViewport(c *gin.Context) {
	ctx := c.Request.Context()
	b, okB := parseBounds(c)
	if !okB {
		return
	}

	limit := utils.AtoiDefault(c.Query("limit"), 500)
	if limit < 1 {
		limit = 1
	}
	if limit > 2000 {
		limit = 2000
	}

	// ETag pre-check (best effort).
	if count, maxTS, err := h.viewSvc.Stats(ctx, b); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"viewport:%g:%g:%g:%g:%d:%d"`, b.South, b.West, b.North, b.East, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	views, err := h.viewSvc.QueryViewport(ctx, b, limit)
	if err != nil {
		switch err {
		case services.ErrInvalidBounds:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid bounding box")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, ViewportResponse{Connections: views, Count: len(views)})
}

// MapDelta godoc
// @ID          mapDelta
// @Summary     Query new connections since an instant
// @Description Returns only the connections created after `since` that touch the viewport, so clients can animate new lines without a full refetch.
// @Tags        Map
// @Produce     json
//
// @Param       south  query  number  true  "South edge (degrees)"
// @Param       west   query  number  true  "West edge (degrees)"
// @Param       north  query  number  true  "North edge (degrees)"
// @Param       east   query  number  true  "East edge (degrees)"
// @Param       since  query  string  true  "RFC3339 instant"  example(2026-08-26T12:00:00Z)
//
// @Success     200  {object} handlers.DeltaResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /map/viewport/delta [get]
func (h *Handlers) MapDelta(c *gin.Context) {
	b, okB := parseBounds(c)
	if !okB {
		return
	}

	since, err := time.Parse(time.RFC3339, c.Query("since"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "since must be an RFC3339 timestamp")
		return
	}

	views, err := h.viewSvc.QueryDeltaSince(c.Request.Context(), b, since)
	if err != nil {
		switch err {
		case services.ErrInvalidBounds:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid bounding box")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, DeltaResponse{Connections: views, Count: len(views), Since: since})
}

// MapClusters godoc
// @ID          mapClusters
// @Summary     Query clustered connections
// @Description Adaptively returns individual connections for sparse viewports or grid clusters for dense ones. The `clustered` flag in the response tells the client which shape it got.
// @Tags        Map
// @Produce     json
//
// @Param       south           query  number  true  "South edge (degrees)"
// @Param       west            query  number  true  "West edge (degrees)"
// @Param       north           query  number  true  "North edge (degrees)"
// @Param       east            query  number  true  "East edge (degrees)"
// @Param       cell_size       query  number  false "Cluster cell size (degrees)"       default(0.5)
// @Param       max_individual  query  int     false "Density threshold for clustering"  default(50)
//
// @Success     200  {object} services.ClusteredResult
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /map/clusters [get]
func (h *Handlers) MapClusters(c *gin.Context) {
	b, okB := parseBounds(c)
	if !okB {
		return
	}

	cellSize := floatQuery(c, "cell_size", 0.5)
	if cellSize <= 0 || cellSize > 45 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cell_size must be in (0, 45] degrees")
		return
	}
	maxIndividual := utils.AtoiDefault(c.Query("max_individual"), 50)

	res, err := h.viewSvc.QueryClustered(c.Request.Context(), b, cellSize, maxIndividual)
	if err != nil {
		switch err {
		case services.ErrInvalidBounds:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid bounding box")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, res)
}

// MapDensity godoc
// @ID          mapDensity
// @Summary     Query connection density grid
// @Description Returns per-cell connection counts for heatmap rendering. Cells with fewer than two connections are omitted.
// @Tags        Map
// @Produce     json
//
// @Param       south      query  number  true  "South edge (degrees)"
// @Param       west       query  number  true  "West edge (degrees)"
// @Param       north      query  number  true  "North edge (degrees)"
// @Param       east       query  number  true  "East edge (degrees)"
// @Param       grid_size  query  number  false "Grid cell size (degrees)"  default(0.25)
//
// @Success     200  {object} handlers.DensityResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /map/density [get]
func (h *Handlers) MapDensity(c *gin.Context) {
	b, okB := parseBounds(c)
	if !okB {
		return
	}

	gridSize := floatQuery(c, "grid_size", 0.25)
	if gridSize <= 0 || gridSize > 45 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "grid_size must be in (0, 45] degrees")
		return
	}

	cells, err := h.viewSvc.QueryDensityGrid(c.Request.Context(), b, gridSize)
	if err != nil {
		switch err {
		case services.ErrInvalidBounds:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid bounding box")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, DensityResponse{Cells: cells})
}
