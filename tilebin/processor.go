// Package tilebin takes one tile through binning, aggregation and
// diagnostics for each configured band group.
package tilebin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"hexingest/bandgroup"
	"hexingest/catalog"
	"hexingest/geomproj"
	"hexingest/hexgrid"
	"hexingest/rastercube"
)

// Unit is one (tile, band group) work item, the granularity of fault
// isolation.
type Unit struct {
	Tile  catalog.TileItem
	Group bandgroup.Config
}

func (u Unit) String() string {
	return fmt.Sprintf("%s/%s", u.Tile.ID, u.Group.Name)
}

// Phase names one step of the per-unit state machine. Failed is reachable
// from any phase; a failure carries the phase it happened in.
type Phase string

const (
	PhaseLoading     Phase = "loading"
	PhaseValidating  Phase = "validating"
	PhaseBinning     Phase = "binning"
	PhaseAggregating Phase = "aggregating"
	PhaseDiagnosing  Phase = "diagnosing"
	PhaseWriting     Phase = "writing"
	PhaseDone        Phase = "done"
)

// RecordSink publishes one unit's records and returns the output location.
// Implementations must publish atomically: no partial file may be observable
// on failure.
type RecordSink interface {
	WriteRecords(ctx context.Context, tileID, bandGroup string, records []HexCellRecord) (string, error)
}

// Processor runs units to completion. Safe for concurrent use: it holds no
// per-unit state.
type Processor struct {
	Sink          RecordSink
	EqualAreaEPSG int
	LoadTimeout   time.Duration
	// AreaWarnFrac is the planar/spherical area divergence above which a
	// footprint warning is logged. Zero means 0.10.
	AreaWarnFrac float64
}

type phaseError struct {
	Phase Phase
	Err   error
}

func (e *phaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *phaseError) Unwrap() error { return e.Err }

// FailedPhase reports which state-machine phase an error came out of, if
// known.
func FailedPhase(err error) Phase {
	var pe *phaseError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return ""
}

// ProcessUnit drives one unit Loading -> Validating -> Binning ->
// Aggregating -> Diagnosing -> Writing -> Done and returns the published
// output location. Any error is terminal for this unit only.
func (p *Processor) ProcessUnit(ctx context.Context, unit Unit) (string, error) {
	log := logrus.WithFields(logrus.Fields{"tile": unit.Tile.ID, "bandGroup": unit.Group.Name})

	log.Debugf("Entered %s", PhaseLoading)
	cube, err := p.load(ctx, unit)
	if err != nil {
		return "", &phaseError{PhaseLoading, err}
	}

	log.Debugf("Entered %s", PhaseValidating)
	areaM2, err := p.validate(unit, cube, log)
	if err != nil {
		return "", &phaseError{PhaseValidating, err}
	}

	log.Debugf("Entered %s", PhaseBinning)
	cells := hexgrid.CellsCovering(unit.Tile.Footprint, unit.Group.HexLevel)
	agg := NewAggregator(unit.Group.HexLevel)
	if err := binSamples(cube, agg); err != nil {
		return "", &phaseError{PhaseBinning, err}
	}

	log.Debugf("Entered %s", PhaseAggregating)
	records, err := agg.Records()
	if err != nil {
		return "", &phaseError{PhaseAggregating, err}
	}

	log.Debugf("Entered %s", PhaseDiagnosing)
	metrics := Coverage(areaM2, unit.Group.ResolutionM, len(cells), cube.NumPixels())
	logrus.WithFields(logrus.Fields{
		"tile":       unit.Tile.ID,
		"bandGroup":  unit.Group.Name,
		"llCorner":   fmt.Sprintf("[%v, %v]", unit.Tile.BBox[0], unit.Tile.BBox[1]),
		"date":       unit.Tile.AcquisitionDate.Format("2006-01-02"),
		"resolution": unit.Group.ResolutionM,
		"ratio":      metrics.Ratio,
		"validFrac":  metrics.ValidFrac,
	}).Info("Unit diagnosed")

	log.Debugf("Entered %s", PhaseWriting)
	path, err := p.Sink.WriteRecords(ctx, unit.Tile.ID, unit.Group.Name, records)
	if err != nil {
		return "", &phaseError{PhaseWriting, err}
	}

	log.Debugf("Entered %s", PhaseDone)
	return path, nil
}

// load runs the blocking raster fetch under the configured timeout. GDAL
// reads cannot be interrupted mid-call, so a timed-out load is abandoned
// and reported transient.
func (p *Processor) load(ctx context.Context, unit Unit) (*rastercube.Cube, error) {
	if p.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.LoadTimeout)
		defer cancel()
	}

	type loadResult struct {
		cube *rastercube.Cube
		err  error
	}
	resCh := make(chan loadResult, 1)
	go func() {
		cube, err := rastercube.Load(unit.Tile.Assets, unit.Group.Bands, unit.Group.ResolutionM)
		resCh <- loadResult{cube, err}
	}()

	select {
	case res := <-resCh:
		return res.cube, res.err
	case <-ctx.Done():
		return nil, &rastercube.AssetUnavailableError{Asset: unit.Tile.ID, Err: ctx.Err()}
	}
}

// validate re-checks the pixel grid against the group config and estimates
// the footprint's true ground area.
func (p *Processor) validate(unit Unit, cube *rastercube.Cube, log *logrus.Entry) (float64, error) {
	if got := cube.Resolution(); got != unit.Group.ResolutionM {
		return 0, &rastercube.ResolutionMismatchError{Want: unit.Group.ResolutionM, Got: got}
	}

	epsg := p.EqualAreaEPSG
	if epsg == 0 {
		epsg = 6933
	}
	areaM2, err := geomproj.PlanarAreaM2(unit.Tile.Footprint, epsg)
	if err != nil {
		return 0, err
	}

	warnFrac := p.AreaWarnFrac
	if warnFrac == 0 {
		warnFrac = 0.10
	}
	sphereM2 := geomproj.SphericalAreaM2(unit.Tile.Footprint)
	if div := geomproj.AreaDivergence(areaM2, sphereM2); div > warnFrac {
		log.Warnf("Planar area %.4g and spherical area %.4g diverge by %.1f%%, footprint may be degenerate", areaM2, sphereM2, div*100)
	}
	return areaM2, nil
}

// binSamples reprojects every pixel center once, then streams the samples
// of each band into the aggregator.
func binSamples(cube *rastercube.Cube, agg *Aggregator) error {
	xs, ys := cube.PixelCenters()
	if err := geomproj.ToGeographic(xs, ys, cube.SRSWKT); err != nil {
		return err
	}
	for band, grid := range cube.Bands {
		for i, v := range grid {
			if math.IsNaN(v) {
				continue
			}
			agg.Add(PixelSample{Lat: ys[i], Lng: xs[i], Band: band, Value: v})
		}
	}
	return nil
}
