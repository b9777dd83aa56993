// Package bandgroup holds the immutable per-sensor band family
// configuration. The set of groups is loaded once at startup and passed
// explicitly everywhere; there is no ambient global table.
package bandgroup

import (
	"fmt"

	"github.com/spf13/viper"

	"hexingest/hexgrid"
)

// Config describes one band family sharing a nominal ground resolution.
// HexLevel should be chosen so that roughly 4-6 source pixels land in each
// hex cell at ResolutionM.
type Config struct {
	Name        string   `mapstructure:"name"`
	ResolutionM float64  `mapstructure:"resolution"`
	HexLevel    int      `mapstructure:"hexLevel"`
	Bands       []string `mapstructure:"bands"`
}

// Defaults covers Sentinel-2 L2A. Other sensors come in via a config file.
func Defaults() []Config {
	return []Config{
		{
			Name:        "vis_nir",
			ResolutionM: 10.0,
			HexLevel:    12,
			Bands:       []string{"B02", "B03", "B04", "B08"},
		},
		{
			Name:        "swir_rededge",
			ResolutionM: 20.0,
			HexLevel:    11,
			Bands:       []string{"B05", "B06", "B07", "B11", "B12"},
		},
	}
}

// Load reads band group configs from a YAML file of the form:
//
//	bandGroups:
//	  - name: vis_nir
//	    resolution: 10.0
//	    hexLevel: 12
//	    bands: [B02, B03, B04, B08]
func Load(path string) ([]Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("bandgroup: reading %s: %w", path, err)
	}
	var out struct {
		BandGroups []Config `mapstructure:"bandGroups"`
	}
	if err := v.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("bandgroup: parsing %s: %w", path, err)
	}
	return out.BandGroups, nil
}

// Validate rejects an unusable band group set. A failure here is the one
// process-fatal condition: it must be caught before any unit runs.
func Validate(groups []Config) error {
	if len(groups) == 0 {
		return fmt.Errorf("bandgroup: no band groups configured")
	}
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g.Name == "" {
			return fmt.Errorf("bandgroup: group with empty name")
		}
		if _, dup := seen[g.Name]; dup {
			return fmt.Errorf("bandgroup: duplicate group name %q", g.Name)
		}
		seen[g.Name] = struct{}{}
		if g.ResolutionM <= 0 {
			return fmt.Errorf("bandgroup: %s: resolution must be positive, got %v", g.Name, g.ResolutionM)
		}
		if g.HexLevel < 0 || g.HexLevel > hexgrid.MaxLevel {
			return fmt.Errorf("bandgroup: %s: hex level %d outside [0, %d]", g.Name, g.HexLevel, hexgrid.MaxLevel)
		}
		if len(g.Bands) == 0 {
			return fmt.Errorf("bandgroup: %s: no bands listed", g.Name)
		}
		bandSeen := make(map[string]struct{}, len(g.Bands))
		for _, b := range g.Bands {
			if b == "" {
				return fmt.Errorf("bandgroup: %s: empty band identifier", g.Name)
			}
			if _, dup := bandSeen[b]; dup {
				return fmt.Errorf("bandgroup: %s: duplicate band %q", g.Name, b)
			}
			bandSeen[b] = struct{}{}
		}
	}
	return nil
}
