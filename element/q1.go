package element

import (
	"fmt"

	"github.com/notargets/fevalues/fevalues"
	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/quadrature"
)

// Q1 is the scalar continuous Lagrange element of degree one on lines,
// quadrilaterals and hexahedra.
type Q1 struct {
	dim int
}

// NewQ1 returns the Q1 element of dimension dim.
func NewQ1(dim int) (*Q1, error) {
	if err := checkDim(dim); err != nil {
		return nil, err
	}
	return &Q1{dim: dim}, nil
}

func (e *Q1) Name() string       { return fmt.Sprintf("FE_Q<%d>(1)", e.dim) }
func (e *Q1) Dimension() int     { return e.dim }
func (e *Q1) NumComponents() int { return 1 }
func (e *Q1) DofsPerCell() int   { return 1 << e.dim }

func (e *Q1) NonzeroComponents(i int) []bool { return []bool{true} }

// UpdateOnce: physical values equal the reference values.
func (e *Q1) UpdateOnce(in flags.Update) flags.Update {
	return in & flags.Values
}

// UpdateEach: derivatives are pulled back with the inverse Jacobian, and
// hessians need the Jacobian gradients as well.
func (e *Q1) UpdateEach(in flags.Update) flags.Update {
	var out flags.Update
	if in.Contains(flags.Gradients) {
		out |= flags.Gradients | flags.CovariantTransformation
	}
	if in.Contains(flags.Hessians) {
		out |= flags.Hessians | flags.CovariantTransformation | flags.JacobianGrads
	}
	return out
}

// Prepare tabulates reference values and derivatives at every point of every
// set.
func (e *Q1) Prepare(pts quadrature.Points, req fevalues.Requirements) (fevalues.ElementData, error) {
	if pts.Dim != e.dim {
		return nil, fmt.Errorf("%w: points of dimension %d", fevalues.ErrInvalidConfiguration, pts.Dim)
	}
	d := &q1Data{
		dim:       e.dim,
		nShapes:   e.DofsPerCell(),
		nq:        pts.Size(),
		values:    req.Has(flags.Values),
		gradients: req.Has(flags.Gradients),
		hessians:  req.Has(flags.Hessians),
	}
	d.refValues = make([][]float64, pts.NumSets())
	d.refGrads = make([][]float64, pts.NumSets())
	d.refHessians = make([][]float64, pts.NumSets())
	w := e.dim * e.dim
	for s, set := range pts.Sets {
		if d.values {
			d.refValues[s] = make([]float64, d.nShapes*d.nq)
		}
		if d.gradients || d.hessians {
			d.refGrads[s] = make([]float64, d.nShapes*d.nq*e.dim)
		}
		if d.hessians {
			d.refHessians[s] = make([]float64, d.nShapes*d.nq*w)
		}
		for i := 0; i < d.nShapes; i++ {
			for q, xi := range set {
				k := i*d.nq + q
				if d.values {
					d.refValues[s][k] = Q1Value(e.dim, i, xi)
				}
				if d.refGrads[s] != nil {
					Q1Gradient(e.dim, i, xi, d.refGrads[s][k*e.dim:(k+1)*e.dim])
				}
				if d.hessians {
					Q1Hessian(e.dim, i, xi, d.refHessians[s][k*w:(k+1)*w])
				}
			}
		}
	}
	d.grad = make([]float64, e.dim)
	d.hess = make([]float64, w)
	d.scratch = make([]float64, w)
	return d, nil
}

type q1Data struct {
	dim, nShapes, nq            int
	values, gradients, hessians bool
	refValues                   [][]float64 // [set][i*nq+q]
	refGrads                    [][]float64 // [set][(i*nq+q)*dim+a]
	refHessians                 [][]float64 // [set][(i*nq+q)*dim*dim+ab]
	grad, hess, scratch         []float64
}

func (d *q1Data) Fill(set int, sim fevalues.CellSimilarity, geo *fevalues.GeometricData, out fevalues.ShapeSink) error {
	if d.values {
		vals := d.refValues[set]
		for i := 0; i < d.nShapes; i++ {
			for q := 0; q < d.nq; q++ {
				out.SetValue(i, 0, q, vals[i*d.nq+q])
			}
		}
	}
	if sim == fevalues.Translation || !(d.gradients || d.hessians) {
		return nil
	}
	w := d.dim * d.dim
	grads := d.refGrads[set]
	for q := 0; q < d.nq; q++ {
		K := geo.InverseJacobian(q)
		var G []float64
		if d.hessians {
			G = geo.JacobianGrad(q)
		}
		for i := 0; i < d.nShapes; i++ {
			k := i*d.nq + q
			covariantGradient(d.dim, K, grads[k*d.dim:(k+1)*d.dim], d.grad)
			if d.gradients {
				out.SetGradient(i, 0, q, d.grad)
			}
			if d.hessians {
				covariantHessian(d.dim, K, G, d.grad, d.refHessians[set][k*w:(k+1)*w], d.hess, d.scratch)
				out.SetHessian(i, 0, q, d.hess)
			}
		}
	}
	return nil
}
