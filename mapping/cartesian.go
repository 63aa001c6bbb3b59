package mapping

import (
	"fmt"
	"math"

	"github.com/notargets/fevalues/fevalues"
	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/mesh"
	"github.com/notargets/fevalues/quadrature"
)

// Cartesian maps the unit hypercube onto axis-aligned boxes. The Jacobian is
// diagonal and constant on each cell, and its derivatives vanish, so
// JacobianGrads is computed once (as zero). Cells that are not boxes are
// reported as unusable.
type Cartesian struct {
	dim int
	// Tol is the relative tolerance of the box check.
	Tol float64
}

// NewCartesian returns the Cartesian mapping of dimension dim.
func NewCartesian(dim int) (*Cartesian, error) {
	if dim < 1 || dim > 3 {
		return nil, fmt.Errorf("%w: mapping dimension %d out of range", fevalues.ErrInvalidConfiguration, dim)
	}
	return &Cartesian{dim: dim, Tol: 1e-10}, nil
}

func (m *Cartesian) Name() string { return fmt.Sprintf("MappingCartesian<%d>", m.dim) }

// UpdateOnce: Jacobian derivatives are identically zero.
func (m *Cartesian) UpdateOnce(in flags.Update) flags.Update {
	return in & flags.JacobianGrads
}

// UpdateEach: everything but the Jacobian derivatives depends on the cell.
func (m *Cartesian) UpdateEach(in flags.Update) flags.Update {
	return eachRules(in).Difference(flags.JacobianGrads)
}

func (m *Cartesian) Prepare(pts quadrature.Points, req fevalues.Requirements) (fevalues.MappingData, error) {
	if err := checkPoints(m.Name(), m.dim, pts); err != nil {
		return nil, err
	}
	w := m.dim * m.dim
	return &cartesianData{
		dim:     m.dim,
		tol:     m.Tol,
		kind:    req.Kind,
		pts:     pts,
		targets: targetsOf(req),
		h:       make([]float64, m.dim),
		J:       make([]float64, w),
		K:       make([]float64, w),
		bf:      make([]float64, m.dim),
	}, nil
}

type cartesianData struct {
	dim     int
	tol     float64
	kind    fevalues.Kind
	pts     quadrature.Points
	targets geometryTargets
	h, J, K []float64
	bf      []float64
}

// extents checks that cell is a box with positive edge lengths and records
// them in d.h.
func (d *cartesianData) extents(cell mesh.Cell) error {
	origin := cell.Vertices[0]
	for a := 0; a < d.dim; a++ {
		d.h[a] = cell.Vertices[1<<a][a] - origin[a]
		if d.h[a] <= 0 {
			return fmt.Errorf("%w: cell %d has extent %g along axis %d",
				fevalues.ErrCellUnusable, cell.Index, d.h[a], a)
		}
	}
	scale := 0.0
	for _, h := range d.h {
		scale = math.Max(scale, h)
	}
	for v, x := range cell.Vertices {
		for i := 0; i < d.dim; i++ {
			want := origin[i]
			if (v>>i)&1 == 1 {
				want += d.h[i]
			}
			if math.Abs(x[i]-want) > d.tol*scale {
				return fmt.Errorf("%w: cell %d is not an axis-aligned box (vertex %d)",
					fevalues.ErrCellUnusable, cell.Index, v)
			}
		}
	}
	return nil
}

func (d *cartesianData) Fill(cell mesh.Cell, set int, sim fevalues.CellSimilarity, geo *fevalues.GeometricData) error {
	if err := d.extents(cell); err != nil {
		return err
	}
	t := d.targets
	if t.points {
		x := geo.Raw(flags.QuadraturePoints)
		for q, xi := range d.pts.Sets[set] {
			row := x.RawRowView(q)
			for i := range row {
				row[i] = cell.Vertices[0][i] + d.h[i]*xi[i]
			}
		}
	}
	if t.supportPoints {
		writeSupportPoints(geo, cell)
	}
	if sim == fevalues.Translation {
		return nil
	}

	det := 1.0
	for i := range d.J {
		d.J[i], d.K[i] = 0, 0
	}
	for a, h := range d.h {
		d.J[a*d.dim+a] = h
		d.K[a*d.dim+a] = 1 / h
		det *= h
	}
	for v := range cell.Vertices {
		if t.supportJac {
			copy(geo.Raw(flags.SupportJacobians).RawRowView(v), d.J)
		}
		if t.supportInv {
			copy(geo.Raw(flags.SupportInverseJacobians).RawRowView(v), d.K)
		}
	}
	if !t.needsJacobian() {
		return nil
	}
	face := setFace(d.kind, d.dim, set)
	var refNormal []float64
	if face >= 0 {
		refNormal = quadrature.ReferenceNormal(d.dim, face)
	}
	for q, w := range d.pts.Weights {
		writeDerived(t, geo, q, d.dim, d.J, d.K, det, w, refNormal, d.bf)
	}
	return nil
}
