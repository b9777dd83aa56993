// Package hexgrid maps geographic coordinates onto the H3 hierarchical
// hexagonal grid. Inputs must already be in lng/lat degrees; callers are
// responsible for reprojecting first (see geomproj). Doing the transform
// here would hide distorted-coordinate bugs behind plausible cell IDs.
package hexgrid

import (
	h3 "github.com/uber/h3-go/v4"

	"hexingest/geomproj"
)

// MaxLevel is the finest H3 resolution.
const MaxLevel = 15

// CellForPoint returns the identifier of the hex cell containing the point
// at the given level. Pure: the same point and level always yield the same
// identifier.
func CellForPoint(lat, lng float64, level int) string {
	return h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, level).String()
}

// CellsCovering returns the set of hex cell identifiers covering the
// footprint ring at the given level. Set semantics, no ordering guarantee.
func CellsCovering(ring []geomproj.Point, level int) map[string]struct{} {
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, p := range ring {
		loop = append(loop, h3.LatLng{Lat: p.Lat, Lng: p.Lng})
	}
	cells := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: loop}, level)

	out := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		out[c.String()] = struct{}{}
	}
	return out
}
