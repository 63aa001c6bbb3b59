package element

import (
	"fmt"

	"github.com/notargets/fevalues/fevalues"
	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/quadrature"
)

// RT0 is the lowest order Raviart-Thomas element on quadrilaterals. Its four
// shape functions carry the normal flux through faces x=0, x=1, y=0 and y=1:
//
//	φ̂0 = (1-ξ, 0)   φ̂1 = (ξ, 0)   φ̂2 = (0, 1-η)   φ̂3 = (0, η)
//
// They are mapped with the contravariant Piola transform φ = J φ̂ / det J,
// which mixes components, so every shape function is declared nonzero in both.
// Physical gradients are (1/det J) J ∇̂φ̂ J⁻¹, which is exact on
// parallelograms; the derivatives of J are not included.
type RT0 struct{}

// NewRT0 returns the two dimensional RT0 element.
func NewRT0() *RT0 { return &RT0{} }

func (e *RT0) Name() string       { return "FE_RaviartThomas<2>(0)" }
func (e *RT0) Dimension() int     { return 2 }
func (e *RT0) NumComponents() int { return 2 }
func (e *RT0) DofsPerCell() int   { return 4 }

func (e *RT0) NonzeroComponents(i int) []bool { return []bool{true, true} }

// UpdateOnce: nothing, every physical quantity depends on the cell.
func (e *RT0) UpdateOnce(in flags.Update) flags.Update { return flags.Default }

// UpdateEach: values need the Piola data, gradients additionally the inverse
// Jacobian.
func (e *RT0) UpdateEach(in flags.Update) flags.Update {
	var out flags.Update
	if in.Contains(flags.Values) {
		out |= flags.Values | flags.Piola
	}
	if in.Contains(flags.Gradients) {
		out |= flags.Gradients | flags.Piola | flags.CovariantTransformation
	}
	if in.Contains(flags.Hessians) {
		out |= flags.Hessians
	}
	return out
}

// rt0Value writes φ̂_i(xi).
func rt0Value(i int, xi, out []float64) {
	out[0], out[1] = 0, 0
	axis := i / 2
	if i%2 == 1 {
		out[axis] = xi[axis]
	} else {
		out[axis] = 1 - xi[axis]
	}
}

// rt0Gradient writes ∂φ̂_i,a/∂ξ_b, row-major; it is constant.
func rt0Gradient(i int, out []float64) {
	for k := range out[:4] {
		out[k] = 0
	}
	axis := i / 2
	if i%2 == 1 {
		out[axis*2+axis] = 1
	} else {
		out[axis*2+axis] = -1
	}
}

func (e *RT0) Prepare(pts quadrature.Points, req fevalues.Requirements) (fevalues.ElementData, error) {
	if pts.Dim != 2 {
		return nil, fmt.Errorf("%w: points of dimension %d", fevalues.ErrInvalidConfiguration, pts.Dim)
	}
	if req.Has(flags.Hessians) {
		return nil, fmt.Errorf("%w: %s does not provide hessians", fevalues.ErrInvalidConfiguration, e.Name())
	}
	d := &rt0Data{
		nq:        pts.Size(),
		values:    req.Has(flags.Values),
		gradients: req.Has(flags.Gradients),
		refValues: make([][]float64, pts.NumSets()),
	}
	for s, set := range pts.Sets {
		d.refValues[s] = make([]float64, 4*d.nq*2)
		for i := 0; i < 4; i++ {
			for q, xi := range set {
				k := i*d.nq + q
				rt0Value(i, xi, d.refValues[s][2*k:2*k+2])
			}
		}
	}
	for i := 0; i < 4; i++ {
		rt0Gradient(i, d.refGrads[i][:])
	}
	return d, nil
}

type rt0Data struct {
	nq                int
	values, gradients bool
	refValues         [][]float64 // [set][(i*nq+q)*2+a]
	refGrads          [4][4]float64
	val               [2]float64
	grad, tmp         [4]float64
}

func (d *rt0Data) Fill(set int, sim fevalues.CellSimilarity, geo *fevalues.GeometricData, out fevalues.ShapeSink) error {
	if sim == fevalues.Translation || !(d.values || d.gradients) {
		return nil
	}
	for q := 0; q < d.nq; q++ {
		J := geo.Jacobian(q)
		det := geo.VolumeElement(q)
		if det == 0 {
			return fmt.Errorf("%w: zero Jacobian determinant at point %d", fevalues.ErrCellUnusable, q)
		}
		for i := 0; i < 4; i++ {
			if d.values {
				k := i*d.nq + q
				ref := d.refValues[set][2*k : 2*k+2]
				for c := 0; c < 2; c++ {
					d.val[c] = (J[c*2]*ref[0] + J[c*2+1]*ref[1]) / det
					out.SetValue(i, c, q, d.val[c])
				}
			}
			if d.gradients {
				K := geo.InverseJacobian(q)
				D := d.refGrads[i]
				// tmp = ∇̂φ̂ K
				for a := 0; a < 2; a++ {
					for j := 0; j < 2; j++ {
						d.tmp[a*2+j] = D[a*2]*K[j] + D[a*2+1]*K[2+j]
					}
				}
				for c := 0; c < 2; c++ {
					for j := 0; j < 2; j++ {
						d.grad[j] = (J[c*2]*d.tmp[j] + J[c*2+1]*d.tmp[2+j]) / det
					}
					out.SetGradient(i, c, q, d.grad[:2])
				}
			}
		}
	}
	return nil
}
