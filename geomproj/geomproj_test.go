package geomproj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingWKT(t *testing.T) {
	ring := []Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	want := "POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))"
	if got := ringWKT(ring); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestSphericalAreaM2(t *testing.T) {
	// One square degree on the equator. Analytically:
	// R^2 * dLng * (sin(lat1) - sin(lat0)).
	ring := []Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	got := SphericalAreaM2(ring)
	want := 1.2364e10
	assert.InEpsilon(t, want, got, 0.01)
}

func TestSphericalAreaWindingInsensitive(t *testing.T) {
	cw := []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	ccw := []Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	assert.InEpsilon(t, SphericalAreaM2(ccw), SphericalAreaM2(cw), 1e-9)
}

func TestToGeographicPreservesCardinality(t *testing.T) {
	xs := []float64{150.1, 150.2, 150.3}
	ys := []float64{-21.1, -21.2, -21.3}
	require.NoError(t, ToGeographic(xs, ys, ""))
	assert.Len(t, xs, 3)
	assert.Equal(t, 150.2, xs[1])
	assert.Equal(t, -21.2, ys[1])
}

func TestToGeographicLengthMismatch(t *testing.T) {
	err := ToGeographic([]float64{1, 2}, []float64{1}, "")
	require.Error(t, err)
}

func TestAreaDivergence(t *testing.T) {
	assert.Equal(t, 0.0, AreaDivergence(0, 0))
	assert.InDelta(t, 0.5, AreaDivergence(100, 50), 1e-12)
	assert.InDelta(t, 0.5, AreaDivergence(50, 100), 1e-12)
}
