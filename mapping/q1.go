package mapping

import (
	"fmt"

	"github.com/notargets/fevalues/element"
	"github.com/notargets/fevalues/fevalues"
	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/mesh"
	"github.com/notargets/fevalues/quadrature"
	"gonum.org/v1/gonum/mat"
)

// Q1 is the isoparametric bi/tri-linear mapping x(ξ) = Σ_v X_v N_v(ξ) with
// the Q1 shape functions N_v and the cell vertices X_v.
type Q1 struct {
	dim int
}

// NewQ1 returns the Q1 mapping of dimension dim.
func NewQ1(dim int) (*Q1, error) {
	if dim < 1 || dim > 3 {
		return nil, fmt.Errorf("%w: mapping dimension %d out of range", fevalues.ErrInvalidConfiguration, dim)
	}
	return &Q1{dim: dim}, nil
}

func (m *Q1) Name() string { return fmt.Sprintf("MappingQ1<%d>", m.dim) }

// UpdateOnce: the mapping's own shape function values and gradients at the
// reference points.
func (m *Q1) UpdateOnce(in flags.Update) flags.Update {
	var out flags.Update
	if in.Contains(flags.QuadraturePoints) {
		out |= flags.TransformationValues
	}
	if in.Intersects(jacobianDerived | flags.JacobianGrads) {
		out |= flags.TransformationGradients
	}
	return out
}

// UpdateEach: every geometric quantity depends on the cell.
func (m *Q1) UpdateEach(in flags.Update) flags.Update {
	return eachRules(in)
}

// Prepare tabulates the mapping shape functions and their derivatives at
// every point of every set, and the gradients at the vertices when support
// Jacobians are resolved.
func (m *Q1) Prepare(pts quadrature.Points, req fevalues.Requirements) (fevalues.MappingData, error) {
	if err := checkPoints(m.Name(), m.dim, pts); err != nil {
		return nil, err
	}
	dim, nv, nq := m.dim, mesh.NumVertices(m.dim), pts.Size()
	w := dim * dim
	d := &q1Data{
		dim:     dim,
		nv:      nv,
		nq:      nq,
		kind:    req.Kind,
		weights: pts.Weights,
		targets: targetsOf(req),
		values:  make([][]float64, pts.NumSets()),
		grads:   make([][]float64, pts.NumSets()),
		second:  make([][]float64, pts.NumSets()),
		J:       make([]float64, w),
		K:       make([]float64, w),
		bf:      make([]float64, dim),
	}
	d.jm = mat.NewDense(dim, dim, d.J)
	d.km = mat.NewDense(dim, dim, d.K)
	if d.targets.supportJac || d.targets.supportInv {
		d.vertexGrads = make([]float64, nv*nv*dim)
		xi := make([]float64, dim)
		for s := 0; s < nv; s++ {
			for a := range xi {
				xi[a] = float64((s >> a) & 1)
			}
			for v := 0; v < nv; v++ {
				k := s*nv + v
				element.Q1Gradient(dim, v, xi, d.vertexGrads[k*dim:(k+1)*dim])
			}
		}
	}
	for s, set := range pts.Sets {
		d.values[s] = make([]float64, nq*nv)
		d.grads[s] = make([]float64, nq*nv*dim)
		if d.targets.grads {
			d.second[s] = make([]float64, nq*nv*w)
		}
		for q, xi := range set {
			for v := 0; v < nv; v++ {
				k := q*nv + v
				d.values[s][k] = element.Q1Value(dim, v, xi)
				element.Q1Gradient(dim, v, xi, d.grads[s][k*dim:(k+1)*dim])
				if d.targets.grads {
					element.Q1Hessian(dim, v, xi, d.second[s][k*w:(k+1)*w])
				}
			}
		}
	}
	return d, nil
}

type q1Data struct {
	dim, nv, nq int
	kind        fevalues.Kind
	weights     []float64
	targets     geometryTargets
	values      [][]float64 // [set][q*nv+v]
	grads       [][]float64 // [set][(q*nv+v)*dim+a]
	second      [][]float64 // [set][(q*nv+v)*dim*dim+ab]
	vertexGrads []float64   // [(s*nv+v)*dim+a], s the vertex evaluated at
	J, K, bf    []float64
	jm, km      *mat.Dense // views of J and K
}

func (d *q1Data) Fill(cell mesh.Cell, set int, sim fevalues.CellSimilarity, geo *fevalues.GeometricData) error {
	dim, nv := d.dim, d.nv
	t := d.targets
	if t.points {
		x := geo.Raw(flags.QuadraturePoints)
		for q := 0; q < d.nq; q++ {
			row := x.RawRowView(q)
			for i := range row {
				row[i] = 0
			}
			for v := 0; v < nv; v++ {
				N := d.values[set][q*nv+v]
				for i := 0; i < dim; i++ {
					row[i] += N * cell.Vertices[v][i]
				}
			}
		}
	}
	if t.supportPoints {
		writeSupportPoints(geo, cell)
	}
	if sim == fevalues.Translation {
		return nil
	}

	if t.supportJac || t.supportInv {
		if err := d.fillSupport(cell, geo); err != nil {
			return err
		}
	}
	if t.grads {
		w := dim * dim
		G := geo.Raw(flags.JacobianGrads)
		for q := 0; q < d.nq; q++ {
			row := G.RawRowView(q)
			for k := range row {
				row[k] = 0
			}
			for v := 0; v < nv; v++ {
				h := d.second[set][(q*nv+v)*w : (q*nv+v+1)*w]
				for i := 0; i < dim; i++ {
					for ab := 0; ab < w; ab++ {
						row[i*w+ab] += cell.Vertices[v][i] * h[ab]
					}
				}
			}
		}
	}
	if !t.needsJacobian() {
		return nil
	}

	face := setFace(d.kind, dim, set)
	var refNormal []float64
	if face >= 0 {
		refNormal = quadrature.ReferenceNormal(dim, face)
	}
	for q := 0; q < d.nq; q++ {
		d.jacobianAt(cell, d.grads[set][q*nv*dim:(q+1)*nv*dim])
		det := mat.Det(d.jm)
		if det <= 0 {
			return fmt.Errorf("%w: negative Jacobian at point %d of cell %d: %g",
				fevalues.ErrCellUnusable, q, cell.Index, det)
		}
		if err := d.km.Inverse(d.jm); err != nil {
			return fmt.Errorf("%w: singular Jacobian at point %d of cell %d: %v",
				fevalues.ErrCellUnusable, q, cell.Index, err)
		}
		writeDerived(t, geo, q, dim, d.J, d.K, det, d.weights[q], refNormal, d.bf)
	}
	return nil
}

// jacobianAt sets d.J from the mapping gradients g[v*dim+a] at one point.
func (d *q1Data) jacobianAt(cell mesh.Cell, g []float64) {
	dim := d.dim
	for k := range d.J {
		d.J[k] = 0
	}
	for v := 0; v < d.nv; v++ {
		for i := 0; i < dim; i++ {
			for a := 0; a < dim; a++ {
				d.J[i*dim+a] += cell.Vertices[v][i] * g[v*dim+a]
			}
		}
	}
}

// fillSupport writes J and J⁻¹ at every vertex of cell.
func (d *q1Data) fillSupport(cell mesh.Cell, geo *fevalues.GeometricData) error {
	n := d.nv * d.dim
	for s := 0; s < d.nv; s++ {
		d.jacobianAt(cell, d.vertexGrads[s*n:(s+1)*n])
		if d.targets.supportJac {
			copy(geo.Raw(flags.SupportJacobians).RawRowView(s), d.J)
		}
		if !d.targets.supportInv {
			continue
		}
		if det := mat.Det(d.jm); det <= 0 {
			return fmt.Errorf("%w: negative Jacobian at vertex %d of cell %d: %g",
				fevalues.ErrCellUnusable, s, cell.Index, det)
		}
		if err := d.km.Inverse(d.jm); err != nil {
			return fmt.Errorf("%w: singular Jacobian at vertex %d of cell %d: %v",
				fevalues.ErrCellUnusable, s, cell.Index, err)
		}
		copy(geo.Raw(flags.SupportInverseJacobians).RawRowView(s), d.K)
	}
	return nil
}
