package fevalues

import (
	"fmt"

	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/mesh"
	"github.com/notargets/fevalues/quadrature"
)

// rules is an UpdateRules built from plain functions; nil means no
// requirements.
type rules struct {
	once, each func(flags.Update) flags.Update
}

func (r rules) UpdateOnce(in flags.Update) flags.Update {
	if r.once == nil {
		return flags.Default
	}
	return r.once(in)
}

func (r rules) UpdateEach(in flags.Update) flags.Update {
	if r.each == nil {
		return flags.Default
	}
	return r.each(in)
}

// lagrangeRules mimic a scalar Lagrange element.
var lagrangeRules = rules{
	once: func(in flags.Update) flags.Update { return in & flags.Values },
	each: func(in flags.Update) flags.Update {
		var out flags.Update
		if in.Contains(flags.Gradients) {
			out |= flags.Gradients | flags.CovariantTransformation
		}
		return out
	},
}

// affineRules mimic a mapping whose transformations need the matrices.
var affineRules = rules{
	each: func(in flags.Update) flags.Update {
		out := in & GeometricFlags
		if in.Contains(flags.CovariantTransformation) {
			out |= flags.InverseJacobians
		}
		if in.Contains(flags.NormalVectors) {
			out |= flags.BoundaryForms
		}
		return out
	},
}

// fakeElement writes i*100 + c*10 + q into every present value row, and the
// same number in every gradient entry.
type fakeElement struct {
	rules
	dim     int
	pattern [][]bool
	prepErr error
	fills   int
}

func newFakeElement(dim int, pattern [][]bool) *fakeElement {
	return &fakeElement{dim: dim, pattern: pattern}
}

func (e *fakeElement) Name() string   { return "fake" }
func (e *fakeElement) Dimension() int { return e.dim }
func (e *fakeElement) NumComponents() int {
	if len(e.pattern) == 0 {
		return 1
	}
	return len(e.pattern[0])
}
func (e *fakeElement) DofsPerCell() int               { return len(e.pattern) }
func (e *fakeElement) NonzeroComponents(i int) []bool { return e.pattern[i] }

func (e *fakeElement) Prepare(pts quadrature.Points, req Requirements) (ElementData, error) {
	if e.prepErr != nil {
		return nil, e.prepErr
	}
	return &fakeElementData{e: e, nq: pts.Size(), grad: make([]float64, e.dim)}, nil
}

type fakeElementData struct {
	e    *fakeElement
	nq   int
	grad []float64
}

func (d *fakeElementData) Fill(set int, sim CellSimilarity, geo *GeometricData, out ShapeSink) error {
	d.e.fills++
	for i, nz := range d.e.pattern {
		for c, on := range nz {
			if !on {
				continue
			}
			for q := 0; q < d.nq; q++ {
				v := float64(i*100 + c*10 + q)
				out.SetValue(i, c, q, v)
				for k := range d.grad {
					d.grad[k] = v
				}
				out.SetGradient(i, c, q, d.grad)
			}
		}
	}
	return nil
}

// fakeMapping fills quadrature points as the reference points shifted by the
// first vertex and JxW as the weights. Cells with a negative index fail.
type fakeMapping struct {
	rules
	fills int
}

func (m *fakeMapping) Name() string { return "fake" }

func (m *fakeMapping) Prepare(pts quadrature.Points, req Requirements) (MappingData, error) {
	return &fakeMappingData{m: m, pts: pts, req: req}, nil
}

type fakeMappingData struct {
	m   *fakeMapping
	pts quadrature.Points
	req Requirements
}

func (d *fakeMappingData) Fill(cell mesh.Cell, set int, sim CellSimilarity, geo *GeometricData) error {
	d.m.fills++
	if cell.Index < 0 {
		return fmt.Errorf("%w: inverted cell", ErrCellUnusable)
	}
	for q, xi := range d.pts.Sets[set] {
		if d.req.Has(flags.QuadraturePoints) {
			row := geo.Raw(flags.QuadraturePoints).RawRowView(q)
			for i := range row {
				row[i] = cell.Vertices[0][i] + xi[i]
			}
		}
		if d.req.Has(flags.JxWValues) {
			geo.Raw(flags.JxWValues).Set(q, 0, d.pts.Weights[q])
		}
	}
	return nil
}

func unitCell(index int, origin ...float64) mesh.Cell {
	dim := len(origin)
	c := mesh.Cell{Index: index, Dim: dim}
	for v := 0; v < mesh.NumVertices(dim); v++ {
		x := make([]float64, dim)
		for d := range x {
			x[d] = origin[d] + float64((v>>d)&1)
		}
		c.Vertices = append(c.Vertices, x)
	}
	return c
}

// recovered runs f and returns the error it panicked with, nil otherwise.
func recovered(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	f()
	return nil
}
