package tilebin

// CoverageMetrics are per-unit data-quality signals. They never gate
// aggregation; they exist to make anomalies visible in logs.
type CoverageMetrics struct {
	// Ratio is the average number of source pixels per hex cell.
	Ratio float64
	// ValidFrac compares the theoretical pixel count (from true ground
	// area) against the measured raster size. Values far from 1.0 point at
	// a footprint/pixel-grid mismatch.
	ValidFrac float64
}

// Coverage is a pure function of its scalar inputs.
func Coverage(areaM2, resM float64, numCells, numTilePixels int) CoverageMetrics {
	theoretical := areaM2 / (resM * resM)
	var m CoverageMetrics
	if numCells > 0 {
		m.Ratio = theoretical / float64(numCells)
	}
	if numTilePixels > 0 {
		m.ValidFrac = theoretical / float64(numTilePixels)
	}
	return m
}
