// Package fleet fans tile processing out across a bounded worker pool,
// one (tile, band group) unit at a time, with per-unit fault containment.
package fleet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"hexingest/bandgroup"
	"hexingest/catalog"
	"hexingest/rastercube"
	"hexingest/tilebin"
)

// Outcome is one line of the per-unit ledger: success with an output
// location, or failure with the originating error. Exactly one Outcome is
// emitted per started unit.
type Outcome struct {
	TileID    string
	BandGroup string
	Path      string
	Attempts  int
	Err       error
}

func (o Outcome) Failed() bool { return o.Err != nil }

// UnitProcessor runs a single unit to completion.
type UnitProcessor interface {
	ProcessUnit(ctx context.Context, unit tilebin.Unit) (string, error)
}

type Options struct {
	// MaxConcurrency bounds the worker pool. Zero means 4.
	MaxConcurrency int
	// MaxRetries bounds re-attempts of transient failures. Deterministic
	// failures are never retried.
	MaxRetries int
	// RetryInterval is the initial backoff interval. Zero means 1s.
	RetryInterval time.Duration
}

// Process runs every (tile, band group) unit and streams Outcomes as they
// complete, in no particular order. The channel closes when all units have
// either finished or been skipped by cancellation. No unit's failure
// affects any other unit.
func Process(ctx context.Context, proc UnitProcessor, tiles []catalog.TileItem, groups []bandgroup.Config, opts Options) <-chan Outcome {
	workers := opts.MaxConcurrency
	if workers <= 0 {
		workers = 4
	}

	// Not-yet-started units are abandoned on cancellation; in-flight units
	// run to completion on their worker.
	units := make(chan tilebin.Unit)
	go func() {
		defer close(units)
		for _, tile := range tiles {
			for _, group := range groups {
				select {
				case units <- tilebin.Unit{Tile: tile, Group: group}:
				case <-ctx.Done():
					logrus.Info("Cancelled, abandoning queued units")
					return
				}
			}
		}
	}()

	out := make(chan Outcome)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for unit := range units {
				out <- runUnit(ctx, proc, unit, opts)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// runUnit executes one unit with bounded retries. Only transient failures
// (unavailable assets, fetch timeouts) are retried; everything else is
// terminal on the first attempt.
func runUnit(ctx context.Context, proc UnitProcessor, unit tilebin.Unit, opts Options) Outcome {
	interval := opts.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = interval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(opts.MaxRetries)), ctx)

	var path string
	attempts := 0
	op := func() error {
		attempts++
		p, err := proc.ProcessUnit(ctx, unit)
		if err != nil {
			if !transient(err) {
				return backoff.Permanent(err)
			}
			logrus.Warnf("Unit %s attempt %d failed transiently: %v", unit, attempts, err)
			return err
		}
		path = p
		return nil
	}

	err := backoff.Retry(op, policy)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"tile":      unit.Tile.ID,
			"bandGroup": unit.Group.Name,
			"phase":     tilebin.FailedPhase(err),
			"attempts":  attempts,
		}).Errorf("Unit failed: %v", err)
	}
	return Outcome{
		TileID:    unit.Tile.ID,
		BandGroup: unit.Group.Name,
		Path:      path,
		Attempts:  attempts,
		Err:       err,
	}
}

func transient(err error) bool {
	var unavailable *rastercube.AssetUnavailableError
	return errors.As(err, &unavailable)
}
