// Package fevalues decides which per quadrature point quantities a finite
// element and a mapping have to compute for a requested set of update flags,
// owns the arrays those quantities are stored in, and exposes them to
// assembly code one cell at a time.
//
// An evaluation context (Values) is built from a Mapping, an Element, a set of
// reference quadrature points and the user's update flags. Construction
// resolves the flags, lets both collaborators precompute what does not depend
// on the cell, and sizes the geometric and shape function stores once. Each
// Reinit then overwrites the stores in place for the new cell.
package fevalues

import (
	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/mesh"
	"github.com/notargets/fevalues/quadrature"
)

// Kind is the kind of object an evaluation context integrates over.
type Kind uint8

const (
	CellKind Kind = iota
	FaceKind
	SubfaceKind
)

func (k Kind) String() string {
	switch k {
	case CellKind:
		return "cell"
	case FaceKind:
		return "face"
	case SubfaceKind:
		return "subface"
	default:
		return "unknown"
	}
}

// CellSimilarity describes how the current cell relates to the previously
// filled one. Collaborators may skip work that is invariant under the
// relation.
type CellSimilarity uint8

const (
	// None means no relation is known; everything is recomputed.
	None CellSimilarity = iota
	// Translation means the cell is the previous one shifted by a constant
	// vector, evaluated on the same point set. Jacobian derived data and
	// physical derivatives are unchanged.
	Translation
	// InvalidNext marks the first fill after (re)configuration or after a
	// failed fill. Nothing from earlier fills may be reused.
	InvalidNext
)

func (s CellSimilarity) String() string {
	switch s {
	case None:
		return "none"
	case Translation:
		return "translation"
	case InvalidNext:
		return "invalid_next_cell"
	default:
		return "unknown"
	}
}

// Requirements is the outcome of flag resolution.
type Requirements struct {
	Kind Kind
	// Once holds quantities that do not change as the active cell changes.
	Once flags.Update
	// Each holds quantities that have to be recomputed for every cell.
	Each flags.Update
	// Hops counts the element/mapping passes that added flags before the set
	// stopped growing.
	Hops int
}

// All returns every flag that is ever computed.
func (r Requirements) All() flags.Update { return r.Once | r.Each }

// Has reports whether every bit of f is resolved.
func (r Requirements) Has(f flags.Update) bool { return r.All().Contains(f) }

// UpdateRules are the pure requirement functions shared by elements and
// mappings. Given the flags needed so far they return the flags they need in
// addition (or the subset of the input they take responsibility for),
// classified as computable once or required on each cell. Both must be
// monotone and safe to call concurrently.
type UpdateRules interface {
	UpdateOnce(needed flags.Update) flags.Update
	UpdateEach(needed flags.Update) flags.Update
}

// Element is a finite element collaborator. Implementations are read-only
// after construction and may be shared by many evaluation contexts.
type Element interface {
	UpdateRules
	Name() string
	Dimension() int
	NumComponents() int
	DofsPerCell() int
	// NonzeroComponents returns, for shape function i, which of the
	// NumComponents vector components are not identically zero.
	NonzeroComponents(i int) []bool
	// Prepare precomputes reference-configuration data for the given points
	// and returns the per-context object that fills shape function rows.
	Prepare(pts quadrature.Points, req Requirements) (ElementData, error)
}

// ElementData is owned by one evaluation context.
type ElementData interface {
	// Fill writes the shape function data of point set `set` for the current
	// cell. The geometric data of the cell has been filled already.
	Fill(set int, sim CellSimilarity, geo *GeometricData, out ShapeSink) error
}

// Mapping is a geometric mapping collaborator. Implementations are read-only
// after construction and may be shared by many evaluation contexts.
type Mapping interface {
	UpdateRules
	Name() string
	// Prepare precomputes reference-configuration data for the given points
	// and returns the per-context object that fills geometric data.
	Prepare(pts quadrature.Points, req Requirements) (MappingData, error)
}

// MappingData is owned by one evaluation context.
type MappingData interface {
	// Fill writes the geometric data of point set `set` of cell. A degenerate
	// or inverted cell yields an error wrapping ErrCellUnusable.
	Fill(cell mesh.Cell, set int, sim CellSimilarity, geo *GeometricData) error
}

// ShapeSink receives shape function data addressed by (shape function,
// component, quadrature point). Writes to components without a storage row
// are ignored.
type ShapeSink interface {
	SetValue(i, c, q int, v float64)
	// SetGradient copies Dimension values.
	SetGradient(i, c, q int, g []float64)
	// SetHessian copies Dimension*Dimension values in row-major order.
	SetHessian(i, c, q int, h []float64)
}
