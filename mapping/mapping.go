// Package mapping provides the geometric mapping collaborators of fevalues:
// Cartesian for axis-aligned boxes and Q1 for general bi/tri-linear cells.
// Both map the unit hypercube [0,1]^d onto a mesh.Cell.
package mapping

import (
	"fmt"
	"math"

	"github.com/notargets/fevalues/fevalues"
	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/mesh"
	"github.com/notargets/fevalues/quadrature"
)

// jacobianDerived are the quantities computed from the Jacobian.
const jacobianDerived = flags.JxWValues | flags.VolumeElements | flags.Jacobians |
	flags.InverseJacobians | flags.NormalVectors | flags.BoundaryForms |
	flags.CovariantTransformation | flags.ContravariantTransformation

// eachRules is the per cell part shared by both mappings: every geometric
// quantity asked for is filled per cell, and the transformations pull in the
// matrices they apply.
func eachRules(in flags.Update) flags.Update {
	out := in & (fevalues.GeometricFlags | flags.CovariantTransformation | flags.ContravariantTransformation)
	if in.Contains(flags.CovariantTransformation) {
		out |= flags.InverseJacobians
	}
	if in.Contains(flags.ContravariantTransformation) {
		out |= flags.Jacobians
	}
	if in.Contains(flags.NormalVectors) {
		out |= flags.BoundaryForms
	}
	return out
}

// setFace returns the reference face of a point set, -1 for cells.
func setFace(kind fevalues.Kind, dim, set int) int {
	switch kind {
	case fevalues.FaceKind:
		return set
	case fevalues.SubfaceKind:
		return set / quadrature.NumChildren(dim)
	}
	return -1
}

// geometryTargets caches the arrays a fill writes.
type geometryTargets struct {
	jxw, det, points, jac, inv, grads, normals, forms bool
	supportPoints, supportJac, supportInv             bool
}

func targetsOf(req fevalues.Requirements) geometryTargets {
	return geometryTargets{
		jxw:     req.Has(flags.JxWValues),
		det:     req.Has(flags.VolumeElements),
		points:  req.Has(flags.QuadraturePoints),
		jac:     req.Has(flags.Jacobians),
		inv:     req.Has(flags.InverseJacobians),
		grads:   req.Has(flags.JacobianGrads),
		normals: req.Has(flags.NormalVectors),
		forms:   req.Has(flags.BoundaryForms),

		supportPoints: req.Has(flags.SupportPoints),
		supportJac:    req.Has(flags.SupportJacobians),
		supportInv:    req.Has(flags.SupportInverseJacobians),
	}
}

// writeSupportPoints copies the vertices of cell into the support points.
func writeSupportPoints(geo *fevalues.GeometricData, cell mesh.Cell) {
	x := geo.Raw(flags.SupportPoints)
	for v, X := range cell.Vertices {
		copy(x.RawRowView(v), X)
	}
}

// needsJacobian reports whether anything derived from J is written.
func (t geometryTargets) needsJacobian() bool {
	return t.jxw || t.det || t.jac || t.inv || t.normals || t.forms
}

// writeDerived stores J, K, det J, JxW, normals and boundary forms of point q.
// On faces the boundary form is bf_i = det J Σ_a K_ai n̂_a and JxW is |bf| w.
func writeDerived(t geometryTargets, geo *fevalues.GeometricData, q, dim int, J, K []float64, det, w float64, refNormal, bf []float64) {
	if t.jac {
		copy(geo.Raw(flags.Jacobians).RawRowView(q), J)
	}
	if t.inv {
		copy(geo.Raw(flags.InverseJacobians).RawRowView(q), K)
	}
	if t.det {
		geo.Raw(flags.VolumeElements).Set(q, 0, det)
	}
	if refNormal == nil {
		if t.jxw {
			geo.Raw(flags.JxWValues).Set(q, 0, det*w)
		}
		return
	}
	norm := 0.0
	for i := 0; i < dim; i++ {
		s := 0.0
		for a := 0; a < dim; a++ {
			s += K[a*dim+i] * refNormal[a]
		}
		bf[i] = det * s
		norm += bf[i] * bf[i]
	}
	norm = math.Sqrt(norm)
	if t.jxw {
		geo.Raw(flags.JxWValues).Set(q, 0, norm*w)
	}
	if t.forms {
		copy(geo.Raw(flags.BoundaryForms).RawRowView(q), bf)
	}
	if t.normals {
		n := geo.Raw(flags.NormalVectors).RawRowView(q)
		for i := range n {
			n[i] = bf[i] / norm
		}
	}
}

func checkPoints(name string, dim int, pts quadrature.Points) error {
	if pts.Dim != dim {
		return fmt.Errorf("%w: %s mapping got points of dimension %d, want %d",
			fevalues.ErrInvalidConfiguration, name, pts.Dim, dim)
	}
	return nil
}
