package tilebin

import (
	"fmt"
	"math"

	"hexingest/hexgrid"
)

// PixelSample is one reprojected pixel value. Transient: samples stream
// through the aggregator and are never persisted.
type PixelSample struct {
	Lat   float64
	Lng   float64
	Band  string
	Value float64
}

// HexCellRecord is the unit of output. (CellID, Band) pairs are unique
// within one output unit.
type HexCellRecord struct {
	CellID string
	Band   string
	Value  int16
}

// NumericOverflowError means an aggregated mean fell outside the int16
// output range. The narrowing cast is a documented lossy step; out-of-range
// values fail loudly rather than wrap or saturate.
type NumericOverflowError struct {
	CellID string
	Band   string
	Mean   float64
}

func (e *NumericOverflowError) Error() string {
	return fmt.Sprintf("aggregated mean %v for cell %s band %s outside int16 range", e.Mean, e.CellID, e.Band)
}

type groupKey struct {
	cell string
	band string
}

type runningStat struct {
	sum float64
	n   int64
}

// Aggregator folds a stream of samples into per-(cell, band) running sums,
// avoiding any wide intermediate table. Not safe for concurrent use; each
// unit owns its own.
type Aggregator struct {
	level  int
	groups map[groupKey]*runningStat
}

func NewAggregator(level int) *Aggregator {
	return &Aggregator{
		level:  level,
		groups: make(map[groupKey]*runningStat),
	}
}

func (a *Aggregator) Add(s PixelSample) {
	key := groupKey{cell: hexgrid.CellForPoint(s.Lat, s.Lng, a.level), band: s.Band}
	stat, ok := a.groups[key]
	if !ok {
		stat = &runningStat{}
		a.groups[key] = stat
	}
	stat.sum += s.Value
	stat.n++
}

// Records reduces every group to its arithmetic mean, rounded half to even
// and narrowed to int16. Output order is not significant.
func (a *Aggregator) Records() ([]HexCellRecord, error) {
	records := make([]HexCellRecord, 0, len(a.groups))
	for key, stat := range a.groups {
		mean := math.RoundToEven(stat.sum / float64(stat.n))
		if mean < math.MinInt16 || mean > math.MaxInt16 {
			return nil, &NumericOverflowError{CellID: key.cell, Band: key.band, Mean: mean}
		}
		records = append(records, HexCellRecord{
			CellID: key.cell,
			Band:   key.band,
			Value:  int16(mean),
		})
	}
	return records, nil
}

// NumGroups reports how many (cell, band) groups have been seen so far.
func (a *Aggregator) NumGroups() int { return len(a.groups) }

// Aggregate bins a full sample slice at the given hex level. Convenience
// wrapper over Aggregator for callers that already hold all samples.
func Aggregate(samples []PixelSample, level int) ([]HexCellRecord, error) {
	agg := NewAggregator(level)
	for _, s := range samples {
		agg.Add(s)
	}
	return agg.Records()
}
