package geo

import "math"

// Cell identifies one square of a degree-aligned grid. Row counts cells
// north from -90, Col counts cells east from -180, so keys are stable for a
// given cell size regardless of the query viewport.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Snap returns the grid cell containing (lat, lng) for the given cell size
// in degrees. Cell sizes <= 0 are coerced to 1 degree.
func Snap(lat, lng, cellSize float64) Cell {
	if cellSize <= 0 {
		cellSize = 1
	}
	return Cell{
		Row: int(math.Floor((lat + 90) / cellSize)),
		Col: int(math.Floor((lng + 180) / cellSize)),
	}
}

// Center returns the center coordinate of a cell for the given cell size.
func (c Cell) Center(cellSize float64) (lat, lng float64) {
	if cellSize <= 0 {
		cellSize = 1
	}
	lat = float64(c.Row)*cellSize - 90 + cellSize/2
	lng = float64(c.Col)*cellSize - 180 + cellSize/2
	return lat, lng
}
