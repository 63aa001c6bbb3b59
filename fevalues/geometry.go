package fevalues

import (
	"fmt"

	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/mesh"
	"gonum.org/v1/gonum/mat"
)

// GeometricData holds the mapping related quantities of the current cell at
// every quadrature point. Each quantity is a [nq × width] matrix with one row
// per point, present only when its update flag is resolved:
//
//	JxWValues         width 1              weight times |det J| (surface element on faces)
//	VolumeElements    width 1              det J
//	QuadraturePoints  width dim            physical point
//	Jacobians         width dim*dim        J[i*dim+a] = ∂x_i/∂ξ_a
//	InverseJacobians  width dim*dim        K[a*dim+i] = ∂ξ_a/∂x_i
//	JacobianGrads     width dim*dim*dim    G[(i*dim+a)*dim+b] = ∂²x_i/∂ξ_a∂ξ_b
//	NormalVectors     width dim            unit outward normal (faces only)
//	BoundaryForms     width dim            outward normal scaled by the surface element (faces only)
//
// The support arrays have one row per cell vertex instead of one per point:
//
//	SupportPoints            width dim        vertex location
//	SupportJacobians         width dim*dim    J at the vertex
//	SupportInverseJacobians  width dim*dim    J⁻¹ at the vertex
//
// Mappings write through Raw; assembly code reads through the typed lookups,
// which panic with ErrNotFilled or ErrNotRequested on misuse.
type GeometricData struct {
	dim    int
	nq     int
	update flags.Update
	slots  [len(geometricSlots)]*mat.Dense
	filled bool
}

var geometricSlots = [...]flags.Update{
	flags.JxWValues,
	flags.VolumeElements,
	flags.QuadraturePoints,
	flags.Jacobians,
	flags.InverseJacobians,
	flags.JacobianGrads,
	flags.NormalVectors,
	flags.BoundaryForms,
	flags.SupportPoints,
	flags.SupportJacobians,
	flags.SupportInverseJacobians,
}

// GeometricFlags is the set of flags that govern a GeometricData array.
const GeometricFlags = flags.JxWValues | flags.VolumeElements | flags.QuadraturePoints |
	flags.Jacobians | flags.InverseJacobians | flags.JacobianGrads |
	flags.NormalVectors | flags.BoundaryForms |
	SupportFlags

// SupportFlags are the geometric flags evaluated at the cell vertices.
const SupportFlags = flags.SupportPoints | flags.SupportJacobians | flags.SupportInverseJacobians

func slotWidth(f flags.Update, dim int) int {
	switch f {
	case flags.JxWValues, flags.VolumeElements:
		return 1
	case flags.QuadraturePoints, flags.NormalVectors, flags.BoundaryForms, flags.SupportPoints:
		return dim
	case flags.Jacobians, flags.InverseJacobians, flags.SupportJacobians, flags.SupportInverseJacobians:
		return dim * dim
	case flags.JacobianGrads:
		return dim * dim * dim
	}
	return 0
}

func slotRows(f flags.Update, nq, dim int) int {
	if SupportFlags.Contains(f) {
		return mesh.NumVertices(dim)
	}
	return nq
}

func slotIndex(f flags.Update) int {
	for i, s := range geometricSlots {
		if s == f {
			return i
		}
	}
	return -1
}

// Allocate sizes every array whose flag is in update to nq rows (one row per
// vertex for the support arrays) and releases the others. Arrays whose shape is unchanged keep their storage and are
// zeroed; nothing is readable again until the next fill.
func (g *GeometricData) Allocate(nq, dim int, update flags.Update) error {
	if nq < 1 {
		return fmt.Errorf("%w: %d quadrature points", ErrInvalidConfiguration, nq)
	}
	if dim < 1 || dim > 3 {
		return fmt.Errorf("%w: dimension %d", ErrInvalidConfiguration, dim)
	}
	g.nq, g.dim, g.update = nq, dim, update
	g.filled = false
	for i, f := range geometricSlots {
		if !update.Contains(f) {
			g.slots[i] = nil
			continue
		}
		n, w := slotRows(f, nq, dim), slotWidth(f, dim)
		if m := g.slots[i]; m != nil {
			if r, c := m.Dims(); r == n && c == w {
				m.Zero()
				continue
			}
		}
		g.slots[i] = mat.NewDense(n, w, nil)
	}
	return nil
}

// Dim returns the space dimension.
func (g *GeometricData) Dim() int { return g.dim }

// Size returns the number of quadrature points the store is sized for.
func (g *GeometricData) Size() int { return g.nq }

// Flags returns the flags the store was allocated for.
func (g *GeometricData) Flags() flags.Update { return g.update }

// Filled reports whether the current cell's data is in place.
func (g *GeometricData) Filled() bool { return g.filled }

// SetFilled is called by the owning context once a mapping fill succeeded, and
// cleared when a fill fails.
func (g *GeometricData) SetFilled(filled bool) { g.filled = filled }

// Len returns the number of rows of the array governed by the primitive flag
// f, zero if the array is not present.
func (g *GeometricData) Len(f flags.Update) int {
	i := slotIndex(f)
	if i < 0 || g.slots[i] == nil {
		return 0
	}
	r, _ := g.slots[i].Dims()
	return r
}

// Raw returns the storage of the array governed by the primitive flag f, or
// nil if it is not allocated. Mappings write their results through it.
func (g *GeometricData) Raw(f flags.Update) *mat.Dense {
	i := slotIndex(f)
	if i < 0 {
		return nil
	}
	return g.slots[i]
}

func (g *GeometricData) row(f flags.Update, q int) []float64 {
	if !g.filled {
		panic(fmt.Errorf("%w: %s", ErrNotFilled, f.Name()))
	}
	m := g.slots[slotIndex(f)]
	if m == nil {
		panic(fmt.Errorf("%w: %s", ErrNotRequested, f.Name()))
	}
	return m.RawRowView(q)
}

// JxW returns the integration weight of point q.
func (g *GeometricData) JxW(q int) float64 { return g.row(flags.JxWValues, q)[0] }

// VolumeElement returns det J at point q.
func (g *GeometricData) VolumeElement(q int) float64 { return g.row(flags.VolumeElements, q)[0] }

// QuadraturePoint returns the physical location of point q.
func (g *GeometricData) QuadraturePoint(q int) []float64 { return g.row(flags.QuadraturePoints, q) }

// Jacobian returns J at point q, row-major.
func (g *GeometricData) Jacobian(q int) []float64 { return g.row(flags.Jacobians, q) }

// InverseJacobian returns J⁻¹ at point q, row-major.
func (g *GeometricData) InverseJacobian(q int) []float64 { return g.row(flags.InverseJacobians, q) }

// JacobianGrad returns the derivatives of J at point q.
func (g *GeometricData) JacobianGrad(q int) []float64 { return g.row(flags.JacobianGrads, q) }

// NormalVector returns the unit outward normal at point q.
func (g *GeometricData) NormalVector(q int) []float64 { return g.row(flags.NormalVectors, q) }

// BoundaryForm returns the scaled outward normal at point q.
func (g *GeometricData) BoundaryForm(q int) []float64 { return g.row(flags.BoundaryForms, q) }

// SupportPoint returns the location of vertex k.
func (g *GeometricData) SupportPoint(k int) []float64 { return g.row(flags.SupportPoints, k) }

// SupportJacobian returns J at vertex k, row-major.
func (g *GeometricData) SupportJacobian(k int) []float64 { return g.row(flags.SupportJacobians, k) }

// SupportInverseJacobian returns J⁻¹ at vertex k, row-major.
func (g *GeometricData) SupportInverseJacobian(k int) []float64 {
	return g.row(flags.SupportInverseJacobians, k)
}

// MemoryFootprint returns the number of bytes held by the arrays.
func (g *GeometricData) MemoryFootprint() int {
	bytes := 0
	for _, m := range g.slots {
		if m != nil {
			bytes += 8 * cap(m.RawMatrix().Data)
		}
	}
	return bytes
}
