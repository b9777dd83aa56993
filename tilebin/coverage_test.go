package tilebin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoverageWorkedExample(t *testing.T) {
	// 120 km^2 footprint at 10m resolution and a 1200x1000 grid:
	// theoretical pixels = 1.2e6, so valid_frac is exactly 1.0.
	m := Coverage(120_000_000, 10.0, 240_000, 1_200*1_000)
	assert.Equal(t, 1.0, m.ValidFrac)
	assert.Equal(t, 5.0, m.Ratio)
}

func TestCoveragePure(t *testing.T) {
	a := Coverage(1.5e9, 20.0, 700_000, 3_000_000)
	b := Coverage(1.5e9, 20.0, 700_000, 3_000_000)
	assert.Equal(t, a, b)
}

func TestCoverageZeroDenominators(t *testing.T) {
	m := Coverage(1e6, 10.0, 0, 0)
	assert.Equal(t, 0.0, m.Ratio)
	assert.Equal(t, 0.0, m.ValidFrac)
}
