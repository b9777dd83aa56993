// Package catalog fetches tile metadata from a STAC API. It is an adapter
// over an external collaborator: the engine only sees the TileItem values
// it returns.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"hexingest/geomproj"
)

const DefaultBaseURL = "https://planetarycomputer.microsoft.com/api/stac/v1"

// TileItem is one catalog entry. Immutable once fetched; the fleet owns
// the slice and processors read it only.
type TileItem struct {
	ID              string
	Footprint       []geomproj.Point
	BBox            [4]float64
	AcquisitionDate time.Time
	Assets          map[string]string
}

// Client searches a STAC API. Zero value is not usable; construct with
// NewClient.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func NewClient(baseURL, collection string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type searchRequest struct {
	Collections []string  `json:"collections"`
	Datetime    string    `json:"datetime,omitempty"`
	BBox        []float64 `json:"bbox,omitempty"`
	Limit       int       `json:"limit"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
	Links    []link    `json:"links"`
}

type feature struct {
	ID         string           `json:"id"`
	BBox       []float64        `json:"bbox"`
	Geometry   geometry         `json:"geometry"`
	Properties properties       `json:"properties"`
	Assets     map[string]asset `json:"assets"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type properties struct {
	Datetime string `json:"datetime"`
}

type asset struct {
	Href string `json:"href"`
}

type link struct {
	Rel  string          `json:"rel"`
	Href string          `json:"href"`
	Body json.RawMessage `json:"body"`
}

// Search returns every tile in the collection for the datetime window
// (single date or "start/end" range), optionally clipped to a bbox,
// following pagination until maxTiles is reached. maxTiles <= 0 means
// unbounded.
func (c *Client) Search(ctx context.Context, datetime string, bbox []float64, maxTiles int) ([]TileItem, error) {
	body, err := json.Marshal(searchRequest{
		Collections: []string{c.collection},
		Datetime:    datetime,
		BBox:        bbox,
		Limit:       100,
	})
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/search"
	var items []TileItem
	for url != "" {
		fc, err := c.postSearch(ctx, url, body)
		if err != nil {
			return nil, err
		}
		for _, f := range fc.Features {
			item, err := tileFromFeature(f)
			if err != nil {
				logrus.Warnf("Skipping catalog item %s: %v", f.ID, err)
				continue
			}
			items = append(items, item)
			if maxTiles > 0 && len(items) >= maxTiles {
				return items, nil
			}
		}
		url, body = nextPage(fc.Links)
	}
	return items, nil
}

func (c *Client) postSearch(ctx context.Context, url string, body []byte) (*featureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: search returned %s", resp.Status)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("catalog: decoding search response: %w", err)
	}
	return &fc, nil
}

// nextPage extracts the STAC "next" link. STAC APIs paginate POST searches
// by echoing back the body to submit next.
func nextPage(links []link) (string, []byte) {
	for _, l := range links {
		if l.Rel == "next" && l.Href != "" {
			if len(l.Body) > 0 {
				return l.Href, l.Body
			}
			return l.Href, []byte("{}")
		}
	}
	return "", nil
}

func tileFromFeature(f feature) (TileItem, error) {
	ring, err := footprintRing(f.Geometry)
	if err != nil {
		return TileItem{}, err
	}

	var bbox [4]float64
	if len(f.BBox) >= 4 {
		copy(bbox[:], f.BBox[:4])
	}

	date, err := time.Parse(time.RFC3339, f.Properties.Datetime)
	if err != nil {
		return TileItem{}, fmt.Errorf("bad datetime %q: %w", f.Properties.Datetime, err)
	}

	assets := make(map[string]string, len(f.Assets))
	for name, a := range f.Assets {
		assets[name] = a.Href
	}

	return TileItem{
		ID:              f.ID,
		Footprint:       ring,
		BBox:            bbox,
		AcquisitionDate: date,
		Assets:          assets,
	}, nil
}

func footprintRing(g geometry) ([]geomproj.Point, error) {
	switch g.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("bad polygon coordinates: %w", err)
		}
		return ringPoints(coords)
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("bad multipolygon coordinates: %w", err)
		}
		if len(coords) == 0 {
			return nil, fmt.Errorf("empty multipolygon")
		}
		// Footprints split at the antimeridian arrive as multipolygons;
		// take the largest part.
		best, bestLen := 0, 0
		for i, poly := range coords {
			if len(poly) > 0 && len(poly[0]) > bestLen {
				best, bestLen = i, len(poly[0])
			}
		}
		return ringPoints(coords[best])
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func ringPoints(poly [][][]float64) ([]geomproj.Point, error) {
	if len(poly) == 0 || len(poly[0]) < 4 {
		return nil, fmt.Errorf("degenerate footprint ring")
	}
	outer := poly[0]
	ring := make([]geomproj.Point, 0, len(outer))
	for _, c := range outer {
		if len(c) < 2 {
			return nil, fmt.Errorf("bad coordinate pair in footprint")
		}
		ring = append(ring, geomproj.Point{Lat: c[1], Lng: c[0]})
	}
	return ring, nil
}
