// Package rastercube loads the pixel grids for one band group of one tile
// and validates them against the group's declared resolution.
package rastercube

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"
)

// Cube is the in-memory pixel grid for one (tile, band group) unit. Grids
// are row-major. NoData pixels are stored as NaN. A Cube is owned by
// exactly one processor invocation and never shared.
type Cube struct {
	Bands        map[string][]float64
	SizeX        int
	SizeY        int
	SRSWKT       string
	GeoTransform [6]float64
}

// Resolution is the measured pixel width from the geotransform.
func (c *Cube) Resolution() float64 { return c.GeoTransform[1] }

func (c *Cube) NumPixels() int { return c.SizeX * c.SizeY }

// PixelCenters returns the source-CRS coordinates of every pixel center,
// row-major, matching the band grid layout.
func (c *Cube) PixelCenters() (xs, ys []float64) {
	gt := c.GeoTransform
	n := c.SizeX * c.SizeY
	xs = make([]float64, n)
	ys = make([]float64, n)
	for row := 0; row < c.SizeY; row++ {
		for col := 0; col < c.SizeX; col++ {
			i := row*c.SizeX + col
			fc, fr := float64(col)+0.5, float64(row)+0.5
			xs[i] = gt[0] + fc*gt[1] + fr*gt[2]
			ys[i] = gt[3] + fc*gt[4] + fr*gt[5]
		}
	}
	return xs, ys
}

// ResolutionMismatchError means the measured raster resolution disagrees
// with the configured nominal resolution. Deterministic: never retried.
type ResolutionMismatchError struct {
	Want float64
	Got  float64
}

func (e *ResolutionMismatchError) Error() string {
	return fmt.Sprintf("resolution mismatch: configured %vm, measured %vm", e.Want, e.Got)
}

// AssetUnavailableError means an asset could not be fetched or decoded.
// Transient: the fleet may retry it.
type AssetUnavailableError struct {
	Asset string
	Err   error
}

func (e *AssetUnavailableError) Error() string {
	return fmt.Sprintf("asset %s unavailable: %v", e.Asset, e.Err)
}

func (e *AssetUnavailableError) Unwrap() error { return e.Err }

var registerOnce sync.Once

// Load opens every asset of the band group, validates the measured
// resolution against nominal, and reads full grids into memory. Assets are
// one single-band raster each, keyed by band identifier.
func Load(assets map[string]string, bands []string, nominalResM float64) (*Cube, error) {
	registerOnce.Do(godal.RegisterAll)

	cube := &Cube{Bands: make(map[string][]float64, len(bands))}
	for _, band := range bands {
		href, ok := assets[band]
		if !ok {
			return nil, &AssetUnavailableError{Asset: band, Err: fmt.Errorf("no asset reference for band")}
		}
		if err := loadBand(cube, band, href, nominalResM); err != nil {
			return nil, err
		}
	}
	return cube, nil
}

func loadBand(cube *Cube, band, href string, nominalResM float64) error {
	ds, err := godal.Open(gdalPath(href))
	if err != nil {
		return &AssetUnavailableError{Asset: href, Err: err}
	}
	defer func() {
		if cerr := ds.Close(); cerr != nil {
			logrus.Error(cerr)
		}
	}()

	gt, err := ds.GeoTransform()
	if err != nil {
		return &AssetUnavailableError{Asset: href, Err: err}
	}
	if gt[1] != nominalResM {
		return &ResolutionMismatchError{Want: nominalResM, Got: gt[1]}
	}

	struc := ds.Structure()
	if len(cube.Bands) == 0 {
		cube.SizeX = struc.SizeX
		cube.SizeY = struc.SizeY
		cube.SRSWKT = ds.Projection()
		cube.GeoTransform = gt
	} else if struc.SizeX != cube.SizeX || struc.SizeY != cube.SizeY {
		return &ResolutionMismatchError{Want: cube.Resolution(), Got: gt[1]}
	}

	gband := ds.Bands()[0]
	buf := make([]float64, struc.SizeX*struc.SizeY)
	if err := gband.Read(0, 0, buf, struc.SizeX, struc.SizeY); err != nil {
		return &AssetUnavailableError{Asset: href, Err: err}
	}

	if noData, ok := gband.NoData(); ok {
		for i, v := range buf {
			if v == noData {
				buf[i] = math.NaN()
			}
		}
	} else {
		logrus.Debugf("NoData not set for band %s", band)
	}

	cube.Bands[band] = buf
	return nil
}

// gdalPath maps remote hrefs onto GDAL's virtual filesystem.
func gdalPath(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return "/vsicurl/" + href
	}
	return href
}
