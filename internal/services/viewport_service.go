// Package services – ViewportService
//
// This file implements the viewport query engine: density-aware retrieval of
// memorial connections for a map bounding box. Because nothing is ever
// deleted, the engine scales by aggregation, not exclusion — when a box is
// too dense to render individually it returns grid clusters that still cover
// every underlying connection.
//
// Age-derived values (connection strength, average age) are computed here at
// query time, never cached on the row, so results are always consistent with
// "now".
package services

import (
	"context"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/geo"
	"github.com/lucentmaps/livingmap-backend/internal/repo"
)

const (
	// defaultPaddingFrac expands the viewport by 20% per axis so lines near
	// the edge do not pop in while panning.
	defaultPaddingFrac = 0.2

	// defaultStrengthHalfLifeDays controls how quickly rendering emphasis
	// decays: a connection this many days old renders at half strength.
	defaultStrengthHalfLifeDays = 30.0

	// minStrength keeps even ancient connections faintly visible. Strength
	// is a display hint, never a filter.
	minStrength = 0.05
)

// ConnectionView is a single renderable memorial connection.
type ConnectionView struct {
	ID             string    `json:"id"`
	PrayerID       string    `json:"prayer_id"`
	FromLat        float64   `json:"from_lat"`
	FromLng        float64   `json:"from_lng"`
	ToLat          float64   `json:"to_lat"`
	ToLng          float64   `json:"to_lng"`
	Classification string    `json:"classification"`
	CreatedAt      time.Time `json:"created_at"`
	AgeDays        float64   `json:"age_days"`
	Strength       float64   `json:"connection_strength"`
}

// Cluster is one aggregate row of a clustered viewport response, covering
// every connection whose origin snapped to the same grid cell.
type Cluster struct {
	Cell             geo.Cell  `json:"cell"`
	CenterLat        float64   `json:"center_lat"`
	CenterLng        float64   `json:"center_lng"`
	MemberCount      int       `json:"member_count"`
	Earliest         time.Time `json:"earliest"`
	Latest           time.Time `json:"latest"`
	AvgAgeDays       float64   `json:"avg_age_days"`
	RepresentativeID string    `json:"representative_id"`
}

// ClusteredResult is the adaptive response of QueryClustered: either the
// individual connections (below the density threshold) or clusters plus the
// connections from singleton cells.
type ClusteredResult struct {
	Clustered   bool             `json:"clustered"`
	Connections []ConnectionView `json:"connections"`
	Clusters    []Cluster        `json:"clusters,omitempty"`
}

// DensityCell is one heatmap cell of QueryDensityGrid.
type DensityCell struct {
	Cell       geo.Cell `json:"cell"`
	CenterLat  float64  `json:"center_lat"`
	CenterLng  float64  `json:"center_lng"`
	Count      int      `json:"count"`
	AvgAgeDays float64  `json:"avg_age_days"`
}

// ViewportService answers "what is visible in bounding box B".
type ViewportService struct {
	DB *gorm.DB

	// PaddingFrac expands each queried viewport per axis; <= 0 uses the
	// 20% default.
	PaddingFrac float64
	// StrengthHalfLifeDays tunes the recency emphasis curve; <= 0 uses 30.
	StrengthHalfLifeDays float64
}

// NewViewportService constructs a ViewportService with default padding and
// strength decay.
func NewViewportService(db *gorm.DB) *ViewportService {
	return &ViewportService{
		DB:                   db,
		PaddingFrac:          defaultPaddingFrac,
		StrengthHalfLifeDays: defaultStrengthHalfLifeDays,
	}
}

func (s *ViewportService) padding() float64 {
	if s.PaddingFrac > 0 {
		return s.PaddingFrac
	}
	return defaultPaddingFrac
}

func (s *ViewportService) halfLife() float64 {
	if s.StrengthHalfLifeDays > 0 {
		return s.StrengthHalfLifeDays
	}
	return defaultStrengthHalfLifeDays
}

// strength maps a connection age to a rendering emphasis in (0, 1]: 1.0 when
// brand new, halving every half-life, floored so history never fades out.
func (s *ViewportService) strength(ageDays float64) float64 {
	v := math.Exp2(-ageDays / s.halfLife())
	if v < minStrength {
		return minStrength
	}
	return v
}

func (s *ViewportService) view(c domain.MemorialConnection, now time.Time) ConnectionView {
	age := now.Sub(c.CreatedAt).Hours() / 24
	if age < 0 {
		age = 0
	}
	return ConnectionView{
		ID:             c.ID,
		PrayerID:       c.PrayerID,
		FromLat:        c.FromLat,
		FromLng:        c.FromLng,
		ToLat:          c.ToLat,
		ToLng:          c.ToLng,
		Classification: c.Classification,
		CreatedAt:      c.CreatedAt,
		AgeDays:        age,
		Strength:       s.strength(age),
	}
}

// fetch returns the visible connections touching the padded box, precisely
// filtered: a connection qualifies when an endpoint lies inside or the
// segment crosses through. Rows arrive newest-first from the store and stay
// that way.
func (s *ViewportService) fetch(ctx context.Context, b geo.Bounds, limit int, since *time.Time) ([]domain.MemorialConnection, geo.Bounds, error) {
	if !b.Valid() {
		return nil, b, ErrInvalidBounds
	}
	padded := b.Expand(s.padding())

	// Over-fetch: the coarse bbox prefilter can admit rows the precise
	// segment test rejects.
	sqlLimit := 0
	if limit > 0 {
		sqlLimit = limit * 2
	}
	rows, err := repo.ListConnectionsInBounds(ctx, s.DB, padded, sqlLimit, since)
	if err != nil {
		return nil, padded, err
	}

	out := rows[:0]
	for _, c := range rows {
		if padded.SegmentIntersects(c.FromLat, c.FromLng, c.ToLat, c.ToLng) {
			out = append(out, c)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, padded, nil
}

// QueryViewport returns the connections visible in b, newest first, capped
// at limit, each carrying its age-derived rendering strength.
func (s *ViewportService) QueryViewport(ctx context.Context, b geo.Bounds, limit int) ([]ConnectionView, error) {
	tr := otel.Tracer("services/ViewportService")
	ctx, span := tr.Start(ctx, "QueryViewport",
		trace.WithAttributes(attribute.Int("viewport.limit", limit)),
	)
	defer span.End()

	rows, _, err := s.fetch(ctx, b, limit, nil)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	views := make([]ConnectionView, 0, len(rows))
	for _, c := range rows {
		views = append(views, s.view(c, now))
	}
	return views, nil
}

// QueryDeltaSince returns only connections created strictly after since that
// touch b — the incremental feed map clients use to animate new lines
// without re-fetching the whole viewport.
func (s *ViewportService) QueryDeltaSince(ctx context.Context, b geo.Bounds, since time.Time) ([]ConnectionView, error) {
	tr := otel.Tracer("services/ViewportService")
	ctx, span := tr.Start(ctx, "QueryDeltaSince")
	defer span.End()

	rows, _, err := s.fetch(ctx, b, 0, &since)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	views := make([]ConnectionView, 0, len(rows))
	for _, c := range rows {
		views = append(views, s.view(c, now))
	}
	return views, nil
}

// QueryClustered adaptively returns either individual connections or grid
// aggregates for b. When the box holds at most maxIndividual visible
// connections the result matches QueryViewport (unlimited); above the
// threshold, origin points snap to a cellSize-degree grid and each non-empty
// cell collapses to one Cluster row. Cells with a single member are returned
// as plain connections, so the union of clusters and singletons always
// covers every underlying connection.
func (s *ViewportService) QueryClustered(ctx context.Context, b geo.Bounds, cellSize float64, maxIndividual int) (*ClusteredResult, error) {
	tr := otel.Tracer("services/ViewportService")
	ctx, span := tr.Start(ctx, "QueryClustered",
		trace.WithAttributes(
			attribute.Float64("cluster.cell_size", cellSize),
			attribute.Int("cluster.max_individual", maxIndividual),
		),
	)
	defer span.End()

	if !b.Valid() {
		return nil, ErrInvalidBounds
	}
	if maxIndividual <= 0 {
		maxIndividual = 50
	}
	if cellSize <= 0 {
		cellSize = 0.5
	}

	// Cheap density estimate over the coarse prefilter decides the shape of
	// the response before any rows are pulled.
	padded := b.Expand(s.padding())
	density, err := repo.CountConnectionsInBounds(ctx, s.DB, padded)
	if err != nil {
		return nil, err
	}

	rows, _, err := s.fetch(ctx, b, 0, nil)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	if density <= int64(maxIndividual) {
		views := make([]ConnectionView, 0, len(rows))
		for _, c := range rows {
			views = append(views, s.view(c, now))
		}
		return &ClusteredResult{Clustered: false, Connections: views}, nil
	}

	type agg struct {
		members  []domain.MemorialConnection
		earliest time.Time
		latest   time.Time
		ageSum   float64
	}
	cells := make(map[geo.Cell]*agg)
	for _, c := range rows {
		cell := geo.Snap(c.FromLat, c.FromLng, cellSize)
		a, ok := cells[cell]
		if !ok {
			a = &agg{earliest: c.CreatedAt, latest: c.CreatedAt}
			cells[cell] = a
		}
		if c.CreatedAt.Before(a.earliest) {
			a.earliest = c.CreatedAt
		}
		if c.CreatedAt.After(a.latest) {
			a.latest = c.CreatedAt
		}
		a.ageSum += now.Sub(c.CreatedAt).Hours() / 24
		a.members = append(a.members, c)
	}

	res := &ClusteredResult{Clustered: true}
	for cell, a := range cells {
		if len(a.members) == 1 {
			res.Connections = append(res.Connections, s.view(a.members[0], now))
			continue
		}
		lat, lng := cell.Center(cellSize)
		// Rows arrived newest-first, so members[0] is the freshest and makes
		// the natural representative.
		res.Clusters = append(res.Clusters, Cluster{
			Cell:             cell,
			CenterLat:        lat,
			CenterLng:        lng,
			MemberCount:      len(a.members),
			Earliest:         a.earliest,
			Latest:           a.latest,
			AvgAgeDays:       a.ageSum / float64(len(a.members)),
			RepresentativeID: a.members[0].ID,
		})
	}

	// Deterministic output order for clients and tests.
	sort.Slice(res.Clusters, func(i, j int) bool {
		if res.Clusters[i].Cell.Row != res.Clusters[j].Cell.Row {
			return res.Clusters[i].Cell.Row < res.Clusters[j].Cell.Row
		}
		return res.Clusters[i].Cell.Col < res.Clusters[j].Cell.Col
	})
	return res, nil
}

// QueryDensityGrid computes heatmap cells for b: origin points snapped to a
// gridSize-degree grid, returning only cells holding at least two
// connections.
func (s *ViewportService) QueryDensityGrid(ctx context.Context, b geo.Bounds, gridSize float64) ([]DensityCell, error) {
	tr := otel.Tracer("services/ViewportService")
	ctx, span := tr.Start(ctx, "QueryDensityGrid",
		trace.WithAttributes(attribute.Float64("grid.size", gridSize)),
	)
	defer span.End()

	if !b.Valid() {
		return nil, ErrInvalidBounds
	}
	if gridSize <= 0 {
		gridSize = 0.25
	}
	rows, err := repo.ListConnectionsInBounds(ctx, s.DB, b, 0, nil)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	type agg struct {
		count  int
		ageSum float64
	}
	cells := make(map[geo.Cell]*agg)
	for _, c := range rows {
		if !b.ContainsPoint(c.FromLat, c.FromLng) {
			continue
		}
		cell := geo.Snap(c.FromLat, c.FromLng, gridSize)
		a, ok := cells[cell]
		if !ok {
			a = &agg{}
			cells[cell] = a
		}
		a.count++
		a.ageSum += now.Sub(c.CreatedAt).Hours() / 24
	}

	out := make([]DensityCell, 0, len(cells))
	for cell, a := range cells {
		if a.count < 2 {
			continue
		}
		lat, lng := cell.Center(gridSize)
		out = append(out, DensityCell{
			Cell:       cell,
			CenterLat:  lat,
			CenterLng:  lng,
			Count:      a.count,
			AvgAgeDays: a.ageSum / float64(a.count),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cell.Row != out[j].Cell.Row {
			return out[i].Cell.Row < out[j].Cell.Row
		}
		return out[i].Cell.Col < out[j].Cell.Col
	})
	return out, nil
}

// Stats returns the visible-connection count and latest creation time for
// the padded viewport. The HTTP layer uses it for weak ETags.
func (s *ViewportService) Stats(ctx context.Context, b geo.Bounds) (int64, *time.Time, error) {
	if !b.Valid() {
		return 0, nil, ErrInvalidBounds
	}
	return repo.ConnectionsStats(ctx, s.DB, b.Expand(s.padding()))
}
