package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/fevalues/element"
	"github.com/notargets/fevalues/fevalues"
	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	s, err := cfg.Build()
	require.NoError(t, err)
	assert.Equal(t, fevalues.CellKind, s.Kind)
	assert.Equal(t, "FE_Q<2>(1)", s.Element.Name())
	assert.Equal(t, "MappingQ1<2>", s.Mapping.Name())
	assert.Equal(t, 4, s.Points.Size())

	v, err := s.NewValues()
	require.NoError(t, err)
	g, err := cfg.BuildGrid()
	require.NoError(t, err)
	require.Equal(t, 16, g.Len())

	area := 0.0
	for _, c := range g.Cells() {
		require.NoError(t, v.Reinit(c))
		for q := 0; q < v.NumQuadraturePoints(); q++ {
			area += v.JxW(q)
		}
	}
	assert.InDelta(t, 1.0, area, 1e-14)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("FEVALUES_WORKERS", "")
	t.Setenv("FEVALUES_UPDATE", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad(t *testing.T) {
	t.Setenv("FEVALUES_WORKERS", "")
	t.Setenv("FEVALUES_UPDATE", "")
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := `
element:
  dim: 2
  blocks:
    - family: rt0
      multiplicity: 1
    - family: q1
      multiplicity: 2
mapping:
  kind: cartesian
evaluation: face
update: values|gradients|normal_vectors
grid:
  axes:
    - [0, 0.5, 2]
    - [0, 1]
workers:
  count: 3
  strategy: round_robin
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, flags.Values|flags.Gradients|flags.NormalVectors, cfg.Update)
	assert.Equal(t, 2, cfg.Quadrature.Points) // default kept
	assert.Equal(t, "console", cfg.Logging.Format)

	s, err := cfg.Build()
	require.NoError(t, err)
	assert.Equal(t, fevalues.FaceKind, s.Kind)
	assert.Equal(t, "FESystem<2>[FE_RaviartThomas<2>(0)-FE_Q<2>(1)^2]", s.Element.Name())
	assert.Equal(t, 12, s.Element.DofsPerCell())
	require.IsType(t, &mapping.Cartesian{}, s.Mapping)
	assert.Equal(t, 1e-10, s.Mapping.(*mapping.Cartesian).Tol)
	// two points on each of four faces
	assert.Equal(t, 2, s.Points.Size())
	assert.Equal(t, 4, s.Points.NumSets())

	g, err := cfg.BuildGrid()
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	layout, err := cfg.BuildLayout(g.Len())
	require.NoError(t, err)
	assert.Equal(t, 2, layout.NumPartitions)

	v, err := s.NewValues()
	require.NoError(t, err)
	require.NoError(t, v.ReinitFace(g.Cell(1), 1))
	assert.Equal(t, []float64{1, 0}, v.NormalVector(0))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.yaml")
	cfg := DefaultConfig()
	cfg.Update = flags.Hessians | flags.QuadraturePoints
	cfg.Grid.Distortion = 0.1
	cfg.Grid.Seed = 5
	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "update: hessians|quadrature_points")

	t.Setenv("FEVALUES_WORKERS", "")
	t.Setenv("FEVALUES_UPDATE", "")
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FEVALUES_WORKERS", "6")
	t.Setenv("FEVALUES_UPDATE", "JxW_values")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Workers.Count)
	assert.Equal(t, flags.JxWValues, cfg.Update)

	// unparsable values are ignored
	t.Setenv("FEVALUES_WORKERS", "many")
	t.Setenv("FEVALUES_UPDATE", "everything")
	cfg, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorContains(t, Parse([]byte("update: bogus_flag"), cfg), "failed to parse config")
	assert.ErrorContains(t, Parse([]byte("element: [1, 2"), cfg), "failed to parse config")

	path := filepath.Join(t.TempDir(), "dir.yaml")
	require.NoError(t, os.Mkdir(path, 0755))
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to read config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"dimension", func(c *Config) { c.Element.Dim = 4 }},
		{"no blocks", func(c *Config) { c.Element.Blocks = nil }},
		{"family", func(c *Config) { c.Element.Blocks[0].Family = "nedelec" }},
		{"multiplicity", func(c *Config) { c.Element.Blocks[0].Multiplicity = 0 }},
		{"mapping", func(c *Config) { c.Mapping.Kind = "isoparametric" }},
		{"quadrature", func(c *Config) { c.Quadrature.Points = 0 }},
		{"evaluation", func(c *Config) { c.Evaluation = "edge" }},
		{"unknown bits", func(c *Config) { c.Update = 1 << 20 }},
		{"workers", func(c *Config) { c.Workers.Count = 0 }},
		{"strategy", func(c *Config) { c.Workers.Strategy = "metis" }},
		{"box", func(c *Config) { c.Grid.Subdivisions = []int{4} }},
		{"axes", func(c *Config) { c.Grid.Axes = [][]float64{{0, 1}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
			_, err := cfg.Build()
			assert.ErrorIs(t, err, fevalues.ErrInvalidConfiguration)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Element.Dim = 3
	cfg.Grid = GridConfig{Lower: []float64{0, 0, 0}, Upper: []float64{1, 1, 1}, Subdivisions: []int{1, 1, 1}}
	cfg.Element.Blocks = []BlockConfig{{Family: "rt0", Multiplicity: 1}}
	_, err := cfg.Build()
	assert.ErrorIs(t, err, fevalues.ErrInvalidConfiguration)

	// rt0 has no hessians
	cfg = DefaultConfig()
	cfg.Element.Blocks = []BlockConfig{{Family: "rt0", Multiplicity: 1}}
	cfg.Update = flags.Hessians
	s, err := cfg.Build()
	require.NoError(t, err)
	require.IsType(t, &element.RT0{}, s.Element)
	_, err = s.NewValues()
	assert.ErrorIs(t, err, fevalues.ErrInvalidConfiguration)

	cfg = DefaultConfig()
	cfg.Grid.Upper = []float64{0, 1}
	_, err = cfg.BuildGrid()
	assert.ErrorContains(t, err, "grid")
}

func TestSubfacePoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Element.Dim = 3
	cfg.Grid = GridConfig{Lower: []float64{0, 0, 0}, Upper: []float64{1, 1, 1}, Subdivisions: []int{2, 2, 2}}
	cfg.Evaluation = "Subface"
	cfg.Update = flags.JxWValues | flags.NormalVectors
	s, err := cfg.Build()
	require.NoError(t, err)
	// 6 faces with 4 children each, 2x2 points per child
	assert.Equal(t, 24, s.Points.NumSets())
	assert.Equal(t, 4, s.Points.Size())
}
