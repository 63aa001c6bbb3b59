package fevalues

import (
	"fmt"
	"unsafe"

	"github.com/notargets/fevalues/flags"
	"gonum.org/v1/gonum/mat"
)

// RowIndex is an entry of the shape function to row table: either a storage
// row or absent, meaning the shape function is identically zero in that
// component.
type RowIndex struct {
	row     int
	present bool
}

// Row returns the storage row and whether it exists.
func (r RowIndex) Row() (int, bool) { return r.row, r.present }

// Absent is the table entry of a structurally zero component.
var Absent = RowIndex{}

// PresentRow is the table entry pointing at storage row n.
func PresentRow(n int) RowIndex { return RowIndex{row: n, present: true} }

func (r RowIndex) String() string {
	if !r.present {
		return "absent"
	}
	return fmt.Sprintf("row %d", r.row)
}

// BuildRowTable assigns storage rows from a nonzero component pattern. Shape
// functions are processed in order, and each gets one row per nonzero
// component in increasing component order. The table is indexed by
// i*nComponents+c.
func BuildRowTable(nComponents int, pattern [][]bool) ([]RowIndex, int, error) {
	if nComponents < 1 {
		return nil, 0, fmt.Errorf("%w: %d components", ErrComponentMismatch, nComponents)
	}
	if len(pattern) == 0 {
		return nil, 0, fmt.Errorf("%w: no shape functions", ErrComponentMismatch)
	}
	table := make([]RowIndex, len(pattern)*nComponents)
	row := 0
	for i, nz := range pattern {
		if len(nz) != nComponents {
			return nil, 0, fmt.Errorf("%w: shape function %d declares %d components, element has %d",
				ErrComponentMismatch, i, len(nz), nComponents)
		}
		first := row
		for c, on := range nz {
			if on {
				table[i*nComponents+c] = PresentRow(row)
				row++
			}
		}
		if row == first {
			return nil, 0, fmt.Errorf("%w: shape function %d has no nonzero component", ErrComponentMismatch, i)
		}
	}
	return table, row, nil
}

// ShapeData holds the shape function values, gradients and hessians of the
// current cell in compacted rows. A primitive shape function owns one row, a
// non-primitive one owns one row per nonzero component. Tables are
// [rows × nq·width] with width 1, dim and dim*dim respectively, so the data of
// point q in a row is contiguous.
type ShapeData struct {
	dim         int
	nq          int
	nShapes     int
	nComponents int
	update      flags.Update
	rows        []RowIndex
	nRows       int
	primitive   bool
	values      *mat.Dense
	gradients   *mat.Dense
	hessians    *mat.Dense
	filled      bool
}

// ShapeFlags is the set of flags that govern a ShapeData table.
const ShapeFlags = flags.Values | flags.Gradients | flags.Hessians

// Allocate builds the row table from the element's nonzero component pattern
// and sizes the tables whose flag is in update. Tables with an unchanged
// shape keep their storage and are zeroed.
func (s *ShapeData) Allocate(nq int, e Element, update flags.Update) error {
	if nq < 1 {
		return fmt.Errorf("%w: %d quadrature points", ErrInvalidConfiguration, nq)
	}
	dim, nc, nd := e.Dimension(), e.NumComponents(), e.DofsPerCell()
	if dim < 1 || dim > 3 {
		return fmt.Errorf("%w: element %s has dimension %d", ErrInvalidConfiguration, e.Name(), dim)
	}
	pattern := make([][]bool, nd)
	for i := range pattern {
		pattern[i] = e.NonzeroComponents(i)
	}
	rows, nRows, err := BuildRowTable(nc, pattern)
	if err != nil {
		return fmt.Errorf("element %s: %w", e.Name(), err)
	}

	s.dim, s.nq, s.nShapes, s.nComponents = dim, nq, nd, nc
	s.update = update
	s.rows, s.nRows = rows, nRows
	s.primitive = nRows == nd
	s.filled = false
	s.values = sizeTable(s.values, update.Contains(flags.Values), nRows, nq)
	s.gradients = sizeTable(s.gradients, update.Contains(flags.Gradients), nRows, nq*dim)
	s.hessians = sizeTable(s.hessians, update.Contains(flags.Hessians), nRows, nq*dim*dim)
	return nil
}

func sizeTable(m *mat.Dense, present bool, r, c int) *mat.Dense {
	if !present {
		return nil
	}
	if m != nil {
		if mr, mc := m.Dims(); mr == r && mc == c {
			m.Zero()
			return m
		}
	}
	return mat.NewDense(r, c, nil)
}

// Dim returns the space dimension.
func (s *ShapeData) Dim() int { return s.dim }

// Size returns the number of quadrature points.
func (s *ShapeData) Size() int { return s.nq }

// NumRows returns the number of storage rows.
func (s *ShapeData) NumRows() int { return s.nRows }

// IsPrimitive reports whether every shape function owns exactly one row, in
// which case row i belongs to shape function i.
func (s *ShapeData) IsPrimitive() bool { return s.primitive }

// Flags returns the flags the store was allocated for.
func (s *ShapeData) Flags() flags.Update { return s.update }

// Filled reports whether the current cell's data is in place.
func (s *ShapeData) Filled() bool { return s.filled }

// SetFilled is called by the owning context after a fill.
func (s *ShapeData) SetFilled(filled bool) { s.filled = filled }

// RowOf returns the table entry of shape function i, component c.
func (s *ShapeData) RowOf(i, c int) RowIndex { return s.rows[i*s.nComponents+c] }

// RowTable returns a copy of the complete row table.
func (s *ShapeData) RowTable() []RowIndex { return append([]RowIndex(nil), s.rows...) }

// Table returns the storage of the table governed by f (Values, Gradients or
// Hessians), nil if it is not allocated.
func (s *ShapeData) Table(f flags.Update) *mat.Dense {
	switch f {
	case flags.Values:
		return s.values
	case flags.Gradients:
		return s.gradients
	case flags.Hessians:
		return s.hessians
	}
	return nil
}

// SetValue implements ShapeSink.
func (s *ShapeData) SetValue(i, c, q int, v float64) {
	if r, ok := s.RowOf(i, c).Row(); ok && s.values != nil {
		s.values.Set(r, q, v)
	}
}

// SetGradient implements ShapeSink.
func (s *ShapeData) SetGradient(i, c, q int, g []float64) {
	if r, ok := s.RowOf(i, c).Row(); ok && s.gradients != nil {
		copy(s.gradients.RawRowView(r)[q*s.dim:(q+1)*s.dim], g)
	}
}

// SetHessian implements ShapeSink.
func (s *ShapeData) SetHessian(i, c, q int, h []float64) {
	if r, ok := s.RowOf(i, c).Row(); ok && s.hessians != nil {
		w := s.dim * s.dim
		copy(s.hessians.RawRowView(r)[q*w:(q+1)*w], h)
	}
}

func (s *ShapeData) table(f flags.Update) *mat.Dense {
	if !s.filled {
		panic(fmt.Errorf("%w: %s", ErrNotFilled, f.Name()))
	}
	m := s.Table(f)
	if m == nil {
		panic(fmt.Errorf("%w: %s", ErrNotRequested, f.Name()))
	}
	return m
}

// primitiveRow returns the single row of shape function i.
func (s *ShapeData) primitiveRow(i int) int {
	if s.primitive {
		return i
	}
	row, n := -1, 0
	for c := 0; c < s.nComponents; c++ {
		if r, ok := s.RowOf(i, c).Row(); ok {
			row = r
			n++
		}
	}
	if n != 1 {
		panic(fmt.Sprintf("shape function %d is not primitive; use the component lookups", i))
	}
	return row
}

// Value returns the value of the only nonzero component of primitive shape
// function i at point q.
func (s *ShapeData) Value(i, q int) float64 {
	m := s.table(flags.Values)
	return m.At(s.primitiveRow(i), q)
}

// ValueComponent returns component c of shape function i at point q, zero if
// the shape function is identically zero in that component.
func (s *ShapeData) ValueComponent(i, q, c int) float64 {
	m := s.table(flags.Values)
	r, ok := s.RowOf(i, c).Row()
	if !ok {
		return 0
	}
	return m.At(r, q)
}

// Gradient returns the physical gradient of primitive shape function i at
// point q. The slice aliases the store.
func (s *ShapeData) Gradient(i, q int) []float64 {
	m := s.table(flags.Gradients)
	return m.RawRowView(s.primitiveRow(i))[q*s.dim : (q+1)*s.dim]
}

// GradientComponent returns the gradient of component c of shape function i
// at point q. An absent component yields a freshly allocated zero slice.
func (s *ShapeData) GradientComponent(i, q, c int) []float64 {
	m := s.table(flags.Gradients)
	r, ok := s.RowOf(i, c).Row()
	if !ok {
		return make([]float64, s.dim)
	}
	return m.RawRowView(r)[q*s.dim : (q+1)*s.dim]
}

// Hessian returns the physical hessian of primitive shape function i at point
// q, row-major.
func (s *ShapeData) Hessian(i, q int) []float64 {
	m := s.table(flags.Hessians)
	w := s.dim * s.dim
	return m.RawRowView(s.primitiveRow(i))[q*w : (q+1)*w]
}

// HessianComponent returns the hessian of component c of shape function i at
// point q, or a freshly allocated zero slice for an absent component.
func (s *ShapeData) HessianComponent(i, q, c int) []float64 {
	m := s.table(flags.Hessians)
	r, ok := s.RowOf(i, c).Row()
	w := s.dim * s.dim
	if !ok {
		return make([]float64, w)
	}
	return m.RawRowView(r)[q*w : (q+1)*w]
}

// MemoryFootprint returns the number of bytes held by the tables and the row
// table.
func (s *ShapeData) MemoryFootprint() int {
	bytes := cap(s.rows) * int(unsafe.Sizeof(RowIndex{}))
	for _, m := range []*mat.Dense{s.values, s.gradients, s.hessians} {
		if m != nil {
			bytes += 8 * cap(m.RawMatrix().Data)
		}
	}
	return bytes
}
