package bandgroup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValid(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		groups []Config
	}{
		{"empty set", nil},
		{"empty name", []Config{{Name: "", ResolutionM: 10, HexLevel: 12, Bands: []string{"B02"}}}},
		{"duplicate name", []Config{
			{Name: "a", ResolutionM: 10, HexLevel: 12, Bands: []string{"B02"}},
			{Name: "a", ResolutionM: 20, HexLevel: 11, Bands: []string{"B05"}},
		}},
		{"zero resolution", []Config{{Name: "a", ResolutionM: 0, HexLevel: 12, Bands: []string{"B02"}}}},
		{"level too deep", []Config{{Name: "a", ResolutionM: 10, HexLevel: 16, Bands: []string{"B02"}}}},
		{"no bands", []Config{{Name: "a", ResolutionM: 10, HexLevel: 12}}},
		{"duplicate band", []Config{{Name: "a", ResolutionM: 10, HexLevel: 12, Bands: []string{"B02", "B02"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, Validate(tc.groups))
		})
	}
}

func TestLoadYAML(t *testing.T) {
	yml := `bandGroups:
  - name: vis_nir
    resolution: 10.0
    hexLevel: 12
    bands: [B02, B03, B04, B08]
  - name: swir_rededge
    resolution: 20.0
    hexLevel: 11
    bands: [B05, B06, B07, B11, B12]
`
	path := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	groups, err := Load(path)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "vis_nir", groups[0].Name)
	assert.Equal(t, 10.0, groups[0].ResolutionM)
	assert.Equal(t, 12, groups[0].HexLevel)
	assert.Equal(t, []string{"B02", "B03", "B04", "B08"}, groups[0].Bands)
	require.NoError(t, Validate(groups))
}
