// Package geo models the map viewport driving geospatial binning: bound
// clamping, precision, and the change-sensitivity gate that bounds request
// frequency during continuous pan and zoom gestures.
package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// Sensitivity thresholds: a viewport change below all three never triggers
// a refetch.
const (
	ZoomSensitivity = 2
	LonSensitivity  = 60
	LatSensitivity  = 30
)

// Viewport is a rendered map window: top-left and bottom-right corners in
// lon/lat order plus an integer zoom used as geohash precision.
type Viewport struct {
	TopLeft     geom.Coord `json:"topLeft"`
	BottomRight geom.Coord `json:"bottomRight"`
	Zoom        int        `json:"zoom"`
}

// Default is the whole-world viewport at minimum precision.
func Default() Viewport {
	return Viewport{
		TopLeft:     geom.Coord{-180, 90},
		BottomRight: geom.Coord{180, -90},
		Zoom:        1,
	}
}

// Normalize clamps both corners to valid coordinates and forces zoom >= 1.
func Normalize(vp Viewport) Viewport {
	out := Viewport{
		TopLeft:     clampCoord(vp.TopLeft),
		BottomRight: clampCoord(vp.BottomRight),
		Zoom:        vp.Zoom,
	}
	if out.Zoom < 1 {
		out.Zoom = 1
	}
	return out
}

// clampCoord rounds to two decimals and clamps lon to ±180, lat to ±90.
// A corner without both axes falls back to the world bound.
func clampCoord(c geom.Coord) geom.Coord {
	if len(c) < 2 {
		return geom.Coord{-180, 90}
	}
	return geom.Coord{clampAxis(c.X(), 180), clampAxis(c.Y(), 90)}
}

func clampAxis(v, limit float64) float64 {
	rounded := math.Round(v*100) / 100
	return math.Min(math.Max(rounded, -limit), limit)
}

// Exceeds reports whether the change from prev to cur crosses any
// sensitivity threshold and therefore warrants a refetch.
func Exceeds(prev, cur Viewport) bool {
	if math.Abs(float64(cur.Zoom-prev.Zoom)) > ZoomSensitivity {
		return true
	}
	return axisDelta(prev.TopLeft, cur.TopLeft) || axisDelta(prev.BottomRight, cur.BottomRight)
}

func axisDelta(prev, cur geom.Coord) bool {
	if len(prev) < 2 || len(cur) < 2 {
		return true
	}
	return math.Abs(cur.X()-prev.X()) > LonSensitivity ||
		math.Abs(cur.Y()-prev.Y()) > LatSensitivity
}

// ParsePoint parses a "lat,lon" source string into a lon/lat coordinate.
// Parser output stores latitude first; rendering wants longitude first.
func ParsePoint(s string) (geom.Coord, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, false
	}
	return geom.Coord{lon, lat}, true
}
