// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the last-known-location store that
// backs fanout candidate discovery. How a location gets here (home address,
// last report, live GPS) is the location collaborator's business; discovery
// only needs "users within radius of a point".
package repo

import (
	"context"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/geo"
)

// UserDistance pairs a candidate user with their haversine distance from the
// query point.
type UserDistance struct {
	UserID     string
	DistanceKm float64
}

// UpsertUserLocation records the last-known position for a user.
func UpsertUserLocation(ctx context.Context, db *gorm.DB, userID string, lat, lng float64, now time.Time) error {
	loc := domain.UserLocation{UserID: userID, Lat: lat, Lng: lng, UpdatedAt: now}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"lat":        lat,
				"lng":        lng,
				"updated_at": now,
			}),
		}).
		Create(&loc).Error
}

// UsersWithinRadius returns users whose last-known location lies within
// radiusKm of (lat, lng), nearest first. A coarse degree box narrows the
// scan in SQL; the precise haversine check runs in the engine.
func UsersWithinRadius(ctx context.Context, db *gorm.DB, lat, lng, radiusKm float64) ([]UserDistance, error) {
	// ~111 km per degree of latitude; longitude degrees shrink with cos(lat).
	// The box over-covers and the precise pass trims the corners.
	dLat := radiusKm / 111.0
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.1 {
		cosLat = 0.1
	}
	dLng := dLat / cosLat

	var rows []domain.UserLocation
	err := db.WithContext(ctx).
		Where("lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?",
			lat-dLat, lat+dLat, lng-dLng, lng+dLng).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]UserDistance, 0, len(rows))
	for _, r := range rows {
		d := geo.DistanceKm(lat, lng, r.Lat, r.Lng)
		if d <= radiusKm {
			out = append(out, UserDistance{UserID: r.UserID, DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}
