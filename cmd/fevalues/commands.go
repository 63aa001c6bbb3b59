package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/notargets/fevalues/config"
	"github.com/notargets/fevalues/fevalues"
	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/mesh"
	"github.com/notargets/fevalues/partitions"
	"github.com/notargets/fevalues/quadrature"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func loadSetup() (*config.Config, *config.Setup, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	s, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	_, s, err := loadSetup()
	if err != nil {
		return err
	}
	v, err := s.NewValues(fevalues.WithLogger(logger))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, v.String())
	req := v.Requirements()
	fmt.Fprintf(out, "\nResolved in %d hop(s); %d bytes resident\n", req.Hops, v.MemoryFootprint())
	return nil
}

func runLayout(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	g, err := cfg.BuildGrid()
	if err != nil {
		return err
	}
	layout, err := cfg.BuildLayout(g.Len())
	if err != nil {
		return err
	}
	if err := layout.ValidateLayout(); err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), layout.String())
	return nil
}

// Integral is the outcome of an integrate run.
type Integral struct {
	Measure   float64
	Moments   []float64 // First moments, nil without quadrature points
	Result    partitions.Result
	PerCell   []float64 // Measure followed by moments, per cell
	Collected map[string]float64
}

func runIntegrate(cmd *cobra.Command, args []string) error {
	cfg, s, err := loadSetup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := integrate(ctx, cfg, s, logger)
	if err != nil {
		return err
	}
	report(cmd.OutOrStdout(), s, res)
	return nil
}

func integrate(ctx context.Context, cfg *config.Config, s *config.Setup, log *zap.Logger) (*Integral, error) {
	grid, err := cfg.BuildGrid()
	if err != nil {
		return nil, err
	}
	layout, err := cfg.BuildLayout(grid.Len())
	if err != nil {
		return nil, err
	}
	return integrateCells(ctx, s, grid.Cells(), layout, log)
}

// integrateCells sums JxW (and the first moments when quadrature points are
// resolved) over every cell, face or subface of cells. A cell is committed
// only when all of its faces filled; one unusable face skips the cell.
func integrateCells(ctx context.Context, s *config.Setup, cells []mesh.Cell, layout *partitions.PartitionLayout, log *zap.Logger) (*Integral, error) {
	if !s.Update.Contains(flags.JxWValues) {
		return nil, fmt.Errorf("integration needs %s in the update flags", flags.JxWValues.Name())
	}
	reg := prometheus.NewRegistry()
	metrics, err := partitions.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	dim := s.Points.Dim
	moments := s.Update.Contains(flags.QuadraturePoints)
	stride := 1
	if moments {
		stride += dim
	}
	perCell := partitions.AllocatePartitionedArray(layout, stride)

	accumulate := func(v *fevalues.Values, out []float64) {
		for q := 0; q < v.NumQuadraturePoints(); q++ {
			w := v.JxW(q)
			out[0] += w
			if moments {
				for i, x := range v.QuadraturePoint(q) {
					out[1+i] += w * x
				}
			}
		}
	}

	// fills lists the reinit calls that together cover one cell
	var fills []func(v *fevalues.Values, cell mesh.Cell) error
	switch s.Kind {
	case fevalues.CellKind:
		fills = append(fills, func(v *fevalues.Values, cell mesh.Cell) error { return v.Reinit(cell) })
	case fevalues.FaceKind:
		for f := 0; f < quadrature.NumFaces(dim); f++ {
			fills = append(fills, func(v *fevalues.Values, cell mesh.Cell) error { return v.ReinitFace(cell, f) })
		}
	case fevalues.SubfaceKind:
		for f := 0; f < quadrature.NumFaces(dim); f++ {
			for c := 0; c < quadrature.NumChildren(dim); c++ {
				fills = append(fills, func(v *fevalues.Values, cell mesh.Cell) error { return v.ReinitSubface(cell, f, c) })
			}
		}
	}

	tr := &partitions.Traverser{
		Layout: layout,
		Log:    log,
		Factory: func() (*fevalues.Values, error) {
			return s.NewValues(fevalues.WithLogger(log))
		},
		Reinit: func(v *fevalues.Values, cell mesh.Cell) error {
			sum := make([]float64, stride)
			for _, fill := range fills {
				if err := fill(v, cell); err != nil {
					return err
				}
				accumulate(v, sum)
			}
			copy(perCell.Cell(cell.Index), sum)
			return nil
		},
		Metrics: metrics,
	}

	res, err := tr.Run(ctx, cells, nil)
	if err != nil {
		return nil, err
	}

	out := &Integral{Result: res, PerCell: perCell.Gather(), Collected: collect(reg)}
	if moments {
		out.Moments = make([]float64, dim)
	}
	for k := range cells {
		c := out.PerCell[k*stride : (k+1)*stride]
		out.Measure += c[0]
		for i := range out.Moments {
			out.Moments[i] += c[1+i]
		}
	}
	return out, nil
}

// collect flattens the counters of reg into "name{label}" keys.
func collect(reg *prometheus.Registry) map[string]float64 {
	out := make(map[string]float64)
	families, err := reg.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += fmt.Sprintf("{%s=%s}", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func report(w io.Writer, s *config.Setup, in *Integral) {
	fmt.Fprintf(w, "=== Integration (%s, %s, %s) ===\n", s.Kind, s.Element.Name(), s.Mapping.Name())
	fmt.Fprintf(w, "  Cells evaluated: %d\n", in.Result.Evaluated)
	fmt.Fprintf(w, "  Per worker: %v\n", in.Result.PerWorker)
	if len(in.Result.Unusable) > 0 {
		fmt.Fprintf(w, "  Unusable cells: %v\n", in.Result.Unusable)
	}
	fmt.Fprintf(w, "  Measure: %.15g\n", in.Measure)
	if in.Moments != nil {
		fmt.Fprintf(w, "  First moments: %v\n", in.Moments)
	}
	keys := make([]string, 0, len(in.Collected))
	for k := range in.Collected {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %g\n", k, in.Collected[k])
	}
}
