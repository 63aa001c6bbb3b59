// Package config loads the YAML description of an evaluation run and turns
// it into the collaborators, quadrature, grid and partitioning it names.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/notargets/fevalues/element"
	"github.com/notargets/fevalues/fevalues"
	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/mapping"
	"github.com/notargets/fevalues/mesh"
	"github.com/notargets/fevalues/partitions"
	"github.com/notargets/fevalues/quadrature"
	"gopkg.in/yaml.v3"
)

// Config describes one evaluation run.
type Config struct {
	Element    ElementConfig    `yaml:"element"`
	Mapping    MappingConfig    `yaml:"mapping"`
	Quadrature QuadratureConfig `yaml:"quadrature"`

	// Evaluation is cell, face or subface
	Evaluation string `yaml:"evaluation"`

	// Update is the requested flag set, e.g. "values|gradients|JxW_values"
	Update flags.Update `yaml:"update"`

	Grid    GridConfig    `yaml:"grid"`
	Workers WorkersConfig `yaml:"workers"`
	Logging LoggingConfig `yaml:"logging"`
}

// ElementConfig describes the finite element. A single block with
// multiplicity one is used as is; anything else becomes a system.
type ElementConfig struct {
	Dim    int           `yaml:"dim"`
	Blocks []BlockConfig `yaml:"blocks"`
}

// BlockConfig is one base element of a system.
type BlockConfig struct {
	Family       string `yaml:"family"` // q1, rt0
	Multiplicity int    `yaml:"multiplicity"`
}

// MappingConfig selects the geometric mapping.
type MappingConfig struct {
	Kind      string  `yaml:"kind"`      // q1, cartesian
	Tolerance float64 `yaml:"tolerance"` // box check of the cartesian mapping
}

// QuadratureConfig selects the Gauss rule.
type QuadratureConfig struct {
	Points int `yaml:"points"` // per direction
}

// GridConfig describes the structured grid. Axes, when set, gives the vertex
// coordinates along each direction and overrides the box.
type GridConfig struct {
	Lower        []float64   `yaml:"lower"`
	Upper        []float64   `yaml:"upper"`
	Subdivisions []int       `yaml:"subdivisions"`
	Axes         [][]float64 `yaml:"axes,omitempty"`
	Distortion   float64     `yaml:"distortion"`
	Seed         int64       `yaml:"seed"`
}

// WorkersConfig configures the parallel traversal.
type WorkersConfig struct {
	Count    int    `yaml:"count"`
	Strategy string `yaml:"strategy"` // block, round_robin
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns a 2D Q1 cell evaluation on a 4x4 unit square.
func DefaultConfig() *Config {
	return &Config{
		Element: ElementConfig{
			Dim:    2,
			Blocks: []BlockConfig{{Family: "q1", Multiplicity: 1}},
		},
		Mapping:    MappingConfig{Kind: "q1", Tolerance: 1e-10},
		Quadrature: QuadratureConfig{Points: 2},
		Evaluation: "cell",
		Update:     flags.Values | flags.Gradients | flags.JxWValues,
		Grid: GridConfig{
			Lower:        []float64{0, 0},
			Upper:        []float64{1, 1},
			Subdivisions: []int{4, 4},
		},
		Workers: WorkersConfig{Count: 1, Strategy: "block"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load loads configuration from a YAML file on top of the defaults. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Parse decodes YAML into cfg; keys absent from data keep their value.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets FEVALUES_WORKERS and FEVALUES_UPDATE override the
// file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FEVALUES_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers.Count = n
		}
	}
	if v := os.Getenv("FEVALUES_UPDATE"); v != "" {
		if f, err := flags.Parse(v); err == nil {
			c.Update = f
		}
	}
}

// ValidFamilies lists the supported element families.
var ValidFamilies = []string{"q1", "rt0"}

// ValidMappings lists the supported mappings.
var ValidMappings = []string{"q1", "cartesian"}

// Validate checks the configuration without building anything.
func (c *Config) Validate() error {
	dim := c.Element.Dim
	if dim < 1 || dim > 3 {
		return fmt.Errorf("element dimension %d out of range", dim)
	}
	if len(c.Element.Blocks) == 0 {
		return fmt.Errorf("element has no blocks")
	}
	for i, b := range c.Element.Blocks {
		if !contains(ValidFamilies, strings.ToLower(b.Family)) {
			return fmt.Errorf("block %d: invalid element family %q (valid: %v)", i, b.Family, ValidFamilies)
		}
		if b.Multiplicity < 1 {
			return fmt.Errorf("block %d: multiplicity %d", i, b.Multiplicity)
		}
	}
	if !contains(ValidMappings, strings.ToLower(c.Mapping.Kind)) {
		return fmt.Errorf("invalid mapping %q (valid: %v)", c.Mapping.Kind, ValidMappings)
	}
	if c.Quadrature.Points < 1 {
		return fmt.Errorf("quadrature needs at least one point, got %d", c.Quadrature.Points)
	}
	if _, err := c.Kind(); err != nil {
		return err
	}
	if u := c.Update.Unknown(); u != 0 {
		return fmt.Errorf("unknown update flag bits 0x%x", uint32(u))
	}
	if c.Workers.Count < 1 {
		return fmt.Errorf("worker count %d", c.Workers.Count)
	}
	if _, err := partitions.ParseStrategy(c.Workers.Strategy); err != nil {
		return err
	}
	if len(c.Grid.Axes) > 0 {
		if len(c.Grid.Axes) != dim {
			return fmt.Errorf("grid has %d axes for dimension %d", len(c.Grid.Axes), dim)
		}
		return nil
	}
	if len(c.Grid.Lower) != dim || len(c.Grid.Upper) != dim || len(c.Grid.Subdivisions) != dim {
		return fmt.Errorf("grid box does not match dimension %d", dim)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Kind returns the evaluation kind.
func (c *Config) Kind() (fevalues.Kind, error) {
	switch strings.ToLower(c.Evaluation) {
	case "", "cell":
		return fevalues.CellKind, nil
	case "face":
		return fevalues.FaceKind, nil
	case "subface":
		return fevalues.SubfaceKind, nil
	}
	return 0, fmt.Errorf("invalid evaluation %q (valid: cell, face, subface)", c.Evaluation)
}

// BuildElement builds the configured finite element.
func (c *Config) BuildElement() (fevalues.Element, error) {
	blocks := make([]element.Block, 0, len(c.Element.Blocks))
	for i, b := range c.Element.Blocks {
		var e fevalues.Element
		switch strings.ToLower(b.Family) {
		case "q1":
			q, err := element.NewQ1(c.Element.Dim)
			if err != nil {
				return nil, err
			}
			e = q
		case "rt0":
			if c.Element.Dim != 2 {
				return nil, fmt.Errorf("%w: rt0 needs dimension 2", fevalues.ErrInvalidConfiguration)
			}
			e = element.NewRT0()
		default:
			return nil, fmt.Errorf("%w: block %d: invalid element family %q",
				fevalues.ErrInvalidConfiguration, i, b.Family)
		}
		blocks = append(blocks, element.Block{Element: e, Multiplicity: b.Multiplicity})
	}
	if len(blocks) == 1 && blocks[0].Multiplicity == 1 {
		return blocks[0].Element, nil
	}
	return element.NewSystem(blocks...)
}

// BuildMapping builds the configured mapping.
func (c *Config) BuildMapping() (fevalues.Mapping, error) {
	switch strings.ToLower(c.Mapping.Kind) {
	case "q1":
		m, err := mapping.NewQ1(c.Element.Dim)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "cartesian":
		m, err := mapping.NewCartesian(c.Element.Dim)
		if err != nil {
			return nil, err
		}
		if c.Mapping.Tolerance > 0 {
			m.Tol = c.Mapping.Tolerance
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: invalid mapping %q", fevalues.ErrInvalidConfiguration, c.Mapping.Kind)
}

// BuildGrid builds the configured grid.
func (c *Config) BuildGrid() (*mesh.Grid, error) {
	var (
		g   *mesh.Grid
		err error
	)
	if len(c.Grid.Axes) > 0 {
		g, err = mesh.Tensor(c.Grid.Axes...)
	} else {
		g, err = mesh.HyperRectangle(c.Grid.Lower, c.Grid.Upper, c.Grid.Subdivisions)
	}
	if err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	if c.Grid.Distortion > 0 {
		g.Distort(c.Grid.Distortion, c.Grid.Seed)
	}
	return g, nil
}

// BuildLayout partitions n cells over the configured workers.
func (c *Config) BuildLayout(n int) (*partitions.PartitionLayout, error) {
	strategy, err := partitions.ParseStrategy(c.Workers.Strategy)
	if err != nil {
		return nil, err
	}
	pb := &partitions.PartitionBuilder{NumCells: n, NumPartitions: c.Workers.Count, Strategy: strategy}
	return pb.BuildPartitions()
}

// Points returns the reference points of the configured evaluation.
func (c *Config) Points() (quadrature.Points, error) {
	kind, err := c.Kind()
	if err != nil {
		return quadrature.Points{}, err
	}
	dim := c.Element.Dim
	if kind == fevalues.CellKind {
		r, err := quadrature.Gauss(c.Quadrature.Points, dim)
		if err != nil {
			return quadrature.Points{}, err
		}
		return quadrature.CellPoints(r)
	}
	r, err := quadrature.Gauss(c.Quadrature.Points, dim-1)
	if err != nil {
		return quadrature.Points{}, err
	}
	if kind == fevalues.FaceKind {
		return quadrature.FacePoints(r, dim)
	}
	return quadrature.SubfacePoints(r, dim)
}

// Setup holds the collaborators built from a configuration. They are
// read-only and may be shared by every worker.
type Setup struct {
	Kind    fevalues.Kind
	Element fevalues.Element
	Mapping fevalues.Mapping
	Points  quadrature.Points
	Update  flags.Update
}

// Build validates the configuration and builds its collaborators.
func (c *Config) Build() (*Setup, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", fevalues.ErrInvalidConfiguration, err)
	}
	kind, _ := c.Kind()
	e, err := c.BuildElement()
	if err != nil {
		return nil, err
	}
	m, err := c.BuildMapping()
	if err != nil {
		return nil, err
	}
	pts, err := c.Points()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fevalues.ErrInvalidConfiguration, err)
	}
	return &Setup{Kind: kind, Element: e, Mapping: m, Points: pts, Update: c.Update}, nil
}

// NewValues builds one evaluation context.
func (s *Setup) NewValues(opts ...fevalues.Option) (*fevalues.Values, error) {
	return fevalues.New(s.Mapping, s.Element, s.Kind, s.Points, s.Update, opts...)
}
