package fevalues

import (
	"fmt"
	"strings"

	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/mesh"
	"github.com/notargets/fevalues/quadrature"
	"go.uber.org/zap"
)

// Values is an evaluation context: it owns the resolved requirements, the
// collaborators' per-context data and the geometric and shape function
// stores. One cell's data is resident at a time. A Values must not be used
// from more than one goroutine; give each worker its own.
type Values struct {
	mapping Mapping
	element Element
	kind    Kind
	points  quadrature.Points
	update  flags.Update
	req     Requirements

	mappingData MappingData
	elementData ElementData
	geo         GeometricData
	shapes      ShapeData

	log        *zap.Logger
	tol        float64
	configured bool
	prev       mesh.Cell
	prevSet    int
	valid      bool // prev holds the last successfully filled cell
	sim        CellSimilarity
}

// Option configures a Values.
type Option func(*Values)

// WithLogger sets the logger used for configuration and fill diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(v *Values) {
		if log != nil {
			v.log = log
		}
	}
}

// WithSimilarityTolerance sets the vertex tolerance used to detect translated
// cells, relative to the size of the previous cell. A negative tolerance
// disables detection.
func WithSimilarityTolerance(tol float64) Option {
	return func(v *Values) { v.tol = tol }
}

// New builds an evaluation context. The mapping and element are referenced,
// not owned, and must outlive the context. Any error is a configuration error
// of the combination; the returned context is unusable in that case.
func New(m Mapping, e Element, kind Kind, pts quadrature.Points, update flags.Update, opts ...Option) (*Values, error) {
	if m == nil || e == nil {
		return nil, fmt.Errorf("%w: mapping and element are required", ErrInvalidConfiguration)
	}
	v := &Values{
		mapping: m,
		element: e,
		kind:    kind,
		log:     zap.NewNop(),
		tol:     1e-12,
	}
	for _, opt := range opts {
		opt(v)
	}
	if err := v.Configure(pts, update); err != nil {
		return nil, err
	}
	return v, nil
}

// NewCell builds a cell evaluation context from a rule of full dimension.
func NewCell(m Mapping, e Element, r quadrature.Rule, update flags.Update, opts ...Option) (*Values, error) {
	pts, err := quadrature.CellPoints(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return New(m, e, CellKind, pts, update, opts...)
}

// NewFace builds a face evaluation context from a rule of dimension dim-1.
func NewFace(m Mapping, e Element, r quadrature.Rule, update flags.Update, opts ...Option) (*Values, error) {
	pts, err := quadrature.FacePoints(r, e.Dimension())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return New(m, e, FaceKind, pts, update, opts...)
}

// NewSubface builds a subface evaluation context from a rule of dimension
// dim-1.
func NewSubface(m Mapping, e Element, r quadrature.Rule, update flags.Update, opts ...Option) (*Values, error) {
	pts, err := quadrature.SubfacePoints(r, e.Dimension())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return New(m, e, SubfaceKind, pts, update, opts...)
}

// Configure resolves update against the collaborators, prepares them for pts
// and sizes the stores. Stores whose shape does not change keep their
// storage. Data from earlier cells is no longer readable afterwards.
func (v *Values) Configure(pts quadrature.Points, update flags.Update) error {
	v.configured = false
	v.valid = false
	v.geo.SetFilled(false)
	v.shapes.SetFilled(false)

	if err := v.checkPoints(pts); err != nil {
		return err
	}
	req, err := Resolve(update, v.kind, v.element, v.mapping)
	if err != nil {
		return err
	}
	md, err := v.mapping.Prepare(pts, req)
	if err != nil {
		return fmt.Errorf("mapping %s: %w", v.mapping.Name(), err)
	}
	ed, err := v.element.Prepare(pts, req)
	if err != nil {
		return fmt.Errorf("element %s: %w", v.element.Name(), err)
	}
	if err = v.geo.Allocate(pts.Size(), pts.Dim, req.All()); err != nil {
		return err
	}
	if err = v.shapes.Allocate(pts.Size(), v.element, req.All()); err != nil {
		return err
	}

	v.points, v.update, v.req = pts, update, req
	v.mappingData, v.elementData = md, ed
	v.configured = true
	v.log.Debug("resolved update flags",
		zap.String("kind", v.kind.String()),
		zap.String("mapping", v.mapping.Name()),
		zap.String("element", v.element.Name()),
		zap.Stringer("requested", update),
		zap.Stringer("once", req.Once),
		zap.Stringer("each", req.Each),
		zap.Int("hops", req.Hops),
		zap.Int("points", pts.Size()),
		zap.Int("bytes", v.MemoryFootprint()),
	)
	return nil
}

// Reconfigure keeps the quadrature points and switches to a new flag set.
func (v *Values) Reconfigure(update flags.Update) error {
	return v.Configure(v.points, update)
}

func (v *Values) checkPoints(pts quadrature.Points) error {
	dim := v.element.Dimension()
	if pts.Dim != dim {
		return fmt.Errorf("%w: points of dimension %d for a %d dimensional element",
			ErrInvalidConfiguration, pts.Dim, dim)
	}
	if pts.Size() == 0 {
		return fmt.Errorf("%w: no quadrature points", ErrInvalidConfiguration)
	}
	want := 1
	switch v.kind {
	case FaceKind:
		want = quadrature.NumFaces(dim)
	case SubfaceKind:
		want = quadrature.NumFaces(dim) * quadrature.NumChildren(dim)
	}
	if pts.NumSets() != want {
		return fmt.Errorf("%w: %s evaluation needs %d point sets, got %d",
			ErrInvalidConfiguration, v.kind, want, pts.NumSets())
	}
	for s, set := range pts.Sets {
		if len(set) != pts.Size() {
			return fmt.Errorf("%w: point set %d has %d points, want %d",
				ErrInvalidConfiguration, s, len(set), pts.Size())
		}
	}
	return nil
}

// Reinit fills the stores for a cell evaluation.
func (v *Values) Reinit(cell mesh.Cell) error {
	if v.kind != CellKind {
		return fmt.Errorf("%w: Reinit on a %s evaluation", ErrInvalidConfiguration, v.kind)
	}
	return v.reinit(cell, 0)
}

// ReinitFace fills the stores for face f of cell.
func (v *Values) ReinitFace(cell mesh.Cell, f int) error {
	if v.kind != FaceKind {
		return fmt.Errorf("%w: ReinitFace on a %s evaluation", ErrInvalidConfiguration, v.kind)
	}
	if f < 0 || f >= quadrature.NumFaces(v.points.Dim) {
		return fmt.Errorf("%w: face %d out of range", ErrInvalidConfiguration, f)
	}
	return v.reinit(cell, f)
}

// ReinitSubface fills the stores for child `child` of face f of cell.
func (v *Values) ReinitSubface(cell mesh.Cell, f, child int) error {
	if v.kind != SubfaceKind {
		return fmt.Errorf("%w: ReinitSubface on a %s evaluation", ErrInvalidConfiguration, v.kind)
	}
	nc := quadrature.NumChildren(v.points.Dim)
	if f < 0 || f >= quadrature.NumFaces(v.points.Dim) || child < 0 || child >= nc {
		return fmt.Errorf("%w: face %d child %d out of range", ErrInvalidConfiguration, f, child)
	}
	return v.reinit(cell, f*nc+child)
}

func (v *Values) reinit(cell mesh.Cell, set int) error {
	if !v.configured {
		return fmt.Errorf("%w: context has no valid configuration", ErrInvalidConfiguration)
	}
	if err := cell.Check(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if cell.Dim != v.points.Dim {
		return fmt.Errorf("%w: cell %d has dimension %d, evaluation has %d",
			ErrInvalidConfiguration, cell.Index, cell.Dim, v.points.Dim)
	}

	v.sim = v.similarity(cell, set)
	v.geo.SetFilled(false)
	v.shapes.SetFilled(false)
	v.valid = false

	if err := v.mappingData.Fill(cell, set, v.sim, &v.geo); err != nil {
		v.log.Debug("mapping fill failed", zap.Int("cell", cell.Index), zap.Error(err))
		return fmt.Errorf("cell %d: %w", cell.Index, err)
	}
	v.geo.SetFilled(true)
	if err := v.elementData.Fill(set, v.sim, &v.geo, &v.shapes); err != nil {
		v.geo.SetFilled(false)
		v.log.Debug("element fill failed", zap.Int("cell", cell.Index), zap.Error(err))
		return fmt.Errorf("cell %d: %w", cell.Index, err)
	}
	v.shapes.SetFilled(true)

	v.prev, v.prevSet, v.valid = cell, set, true
	return nil
}

func (v *Values) similarity(cell mesh.Cell, set int) CellSimilarity {
	if !v.valid {
		return InvalidNext
	}
	if v.tol < 0 || set != v.prevSet {
		return None
	}
	if _, ok := cell.TranslationOf(v.prev, v.tol); ok {
		return Translation
	}
	return None
}

// Similarity returns the relation of the current cell to the one filled
// before it.
func (v *Values) Similarity() CellSimilarity { return v.sim }

// Kind returns the kind of evaluation.
func (v *Values) Kind() Kind { return v.kind }

// Requirements returns the resolved flags.
func (v *Values) Requirements() Requirements { return v.req }

// Update returns the flags the context was configured with.
func (v *Values) Update() flags.Update { return v.update }

// Geometry returns the geometric data store.
func (v *Values) Geometry() *GeometricData { return &v.geo }

// Shapes returns the shape function data store.
func (v *Values) Shapes() *ShapeData { return &v.shapes }

// Element returns the element collaborator.
func (v *Values) Element() Element { return v.element }

// Mapping returns the mapping collaborator.
func (v *Values) Mapping() Mapping { return v.mapping }

// NumQuadraturePoints returns the number of points per fill.
func (v *Values) NumQuadraturePoints() int { return v.points.Size() }

// DofsPerCell returns the number of shape functions.
func (v *Values) DofsPerCell() int { return v.element.DofsPerCell() }

// Cell returns the cell of the last successful fill.
func (v *Values) Cell() (mesh.Cell, bool) { return v.prev, v.valid }

// ShapeValue returns the value of primitive shape function i at point q.
func (v *Values) ShapeValue(i, q int) float64 { return v.shapes.Value(i, q) }

// ShapeValueComponent returns component c of shape function i at point q.
func (v *Values) ShapeValueComponent(i, q, c int) float64 { return v.shapes.ValueComponent(i, q, c) }

// ShapeGrad returns the gradient of primitive shape function i at point q.
func (v *Values) ShapeGrad(i, q int) []float64 { return v.shapes.Gradient(i, q) }

// ShapeGradComponent returns the gradient of component c of shape function i.
func (v *Values) ShapeGradComponent(i, q, c int) []float64 {
	return v.shapes.GradientComponent(i, q, c)
}

// ShapeHessian returns the hessian of primitive shape function i at point q.
func (v *Values) ShapeHessian(i, q int) []float64 { return v.shapes.Hessian(i, q) }

// ShapeHessianComponent returns the hessian of component c of shape function i.
func (v *Values) ShapeHessianComponent(i, q, c int) []float64 {
	return v.shapes.HessianComponent(i, q, c)
}

// JxW returns the integration weight at point q.
func (v *Values) JxW(q int) float64 { return v.geo.JxW(q) }

// QuadraturePoint returns the physical location of point q.
func (v *Values) QuadraturePoint(q int) []float64 { return v.geo.QuadraturePoint(q) }

// NormalVector returns the unit outward normal at point q.
func (v *Values) NormalVector(q int) []float64 { return v.geo.NormalVector(q) }

// MemoryFootprint returns the bytes held by both stores.
func (v *Values) MemoryFootprint() int { return v.geo.MemoryFootprint() + v.shapes.MemoryFootprint() }

// String returns a summary of the configuration and store layout.
func (v *Values) String() string {
	var sb strings.Builder
	sb.WriteString("=== FEValues Summary ===\n")
	sb.WriteString(fmt.Sprintf("  Kind: %s\n", v.kind))
	sb.WriteString(fmt.Sprintf("  Mapping: %s\n", v.mapping.Name()))
	sb.WriteString(fmt.Sprintf("  Element: %s (%d components, %d dofs)\n",
		v.element.Name(), v.element.NumComponents(), v.element.DofsPerCell()))
	sb.WriteString(fmt.Sprintf("  Quadrature points: %d in %d set(s)\n", v.points.Size(), v.points.NumSets()))
	sb.WriteString(fmt.Sprintf("  Requested: %v\n", v.update))
	sb.WriteString(fmt.Sprintf("  Once: %v\n", v.req.Once))
	sb.WriteString(fmt.Sprintf("  Each: %v\n", v.req.Each))
	sb.WriteString("\n--- Geometric Data ---\n")
	for _, f := range geometricSlots {
		if n := v.geo.Len(f); n > 0 {
			sb.WriteString(fmt.Sprintf("  %s: %d x %d\n", f.Name(), n, slotWidth(f, v.points.Dim)))
		}
	}
	sb.WriteString("\n--- Shape Data ---\n")
	sb.WriteString(fmt.Sprintf("  Storage rows: %d (primitive: %v)\n", v.shapes.NumRows(), v.shapes.IsPrimitive()))
	for _, f := range []flags.Update{flags.Values, flags.Gradients, flags.Hessians} {
		if m := v.shapes.Table(f); m != nil {
			r, c := m.Dims()
			sb.WriteString(fmt.Sprintf("  %s: %d x %d\n", f.Name(), r, c))
		}
	}
	sb.WriteString(fmt.Sprintf("\n  Memory footprint: %d bytes\n", v.MemoryFootprint()))
	sb.WriteString("========================\n")
	return sb.String()
}
