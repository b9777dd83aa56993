// Package geomproj handles coordinate reference system transforms and
// footprint area estimation. The hex indexer only accepts geographic
// coordinates, so every pixel grid passes through here exactly once.
package geomproj

import (
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
	"github.com/golang/geo/s2"
)

const EarthRadius = 6371000

// Point is a geographic coordinate in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// ProjectionError reports an unparsable or incompatible CRS. It is fatal
// for the (tile, band group) unit that hit it, nothing wider.
type ProjectionError struct {
	CRS string
	Err error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("projection: cannot use CRS %q: %v", e.CRS, e.Err)
}

func (e *ProjectionError) Unwrap() error { return e.Err }

// ToGeographic transforms planar x/y coordinate slices in place into
// lng/lat degrees (EPSG:4326). Cardinality and pairing are preserved: xs[i]
// and ys[i] stay the same sample before and after. An empty srcWKT means
// the coordinates are already geographic and is a no-op.
func ToGeographic(xs, ys []float64, srcWKT string) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("geomproj: coordinate slices differ in length: %d vs %d", len(xs), len(ys))
	}
	if srcWKT == "" {
		return nil
	}

	src, err := godal.NewSpatialRefFromWKT(srcWKT)
	if err != nil {
		return &ProjectionError{CRS: srcWKT, Err: err}
	}
	defer src.Close()

	dst, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return &ProjectionError{CRS: "EPSG:4326", Err: err}
	}
	defer dst.Close()

	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		return &ProjectionError{CRS: srcWKT, Err: err}
	}
	defer trn.Close()

	if err := trn.TransformEx(xs, ys, nil, nil); err != nil {
		return &ProjectionError{CRS: srcWKT, Err: err}
	}
	return nil
}

// PlanarAreaM2 reprojects a geographic footprint ring into the given
// equal-area CRS and returns its area in square meters. Used once per tile
// to estimate true ground coverage independent of the pixel grid.
func PlanarAreaM2(ring []Point, equalAreaEPSG int) (float64, error) {
	geom, err := wgs84GeomFromRing(ring)
	if err != nil {
		return 0, err
	}
	defer geom.Close()

	srs, err := godal.NewSpatialRefFromEPSG(equalAreaEPSG)
	if err != nil {
		return 0, &ProjectionError{CRS: fmt.Sprintf("EPSG:%d", equalAreaEPSG), Err: err}
	}
	defer srs.Close()

	if err := geom.Reproject(srs); err != nil {
		return 0, &ProjectionError{CRS: fmt.Sprintf("EPSG:%d", equalAreaEPSG), Err: err}
	}
	return geom.Area(), nil
}

// SphericalAreaM2 returns the spherical-excess area of a geographic ring.
// It needs no CRS at all, which makes it a useful cross-check against
// PlanarAreaM2: a large disagreement means the footprint or the equal-area
// CRS choice is suspect (antimeridian wrap, bad winding).
func SphericalAreaM2(ring []Point) float64 {
	pts := make([]s2.Point, 0, len(ring))
	for _, p := range ring {
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lng)))
	}
	loop := s2.LoopFromPoints(pts)
	loop.Normalize()
	return loop.Area() * EarthRadius * EarthRadius
}

func ringWKT(ring []Point) string {
	wkt := "POLYGON(("
	for _, p := range ring {
		wkt += fmt.Sprintf("%v %v, ", p.Lng, p.Lat)
	}
	// Close the ring on its first vertex.
	wkt += fmt.Sprintf("%v %v))", ring[0].Lng, ring[0].Lat)
	return wkt
}

func wgs84GeomFromRing(ring []Point) (*godal.Geometry, error) {
	if len(ring) < 3 {
		return nil, fmt.Errorf("geomproj: footprint ring needs at least 3 vertices, got %d", len(ring))
	}
	srs, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return nil, &ProjectionError{CRS: "EPSG:4326", Err: err}
	}
	defer srs.Close()

	geom, err := godal.NewGeometryFromWKT(ringWKT(ring), srs)
	if err != nil {
		return nil, &ProjectionError{CRS: "EPSG:4326", Err: err}
	}
	return geom, nil
}

// AreaDivergence returns the relative difference between two area
// estimates, normalized by the larger of the two.
func AreaDivergence(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	return math.Abs(a-b) / math.Max(a, b)
}
