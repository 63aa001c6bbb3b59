package fevalues

import (
	"testing"

	"github.com/notargets/fevalues/flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRowTablePrimitive(t *testing.T) {
	pattern := [][]bool{{true}, {true}, {true}, {true}}
	table, n, err := BuildRowTable(1, pattern)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	for i := range pattern {
		r, ok := table[i].Row()
		assert.True(t, ok)
		assert.Equal(t, i, r)
	}
}

func TestBuildRowTableCompacted(t *testing.T) {
	// three components, shape function 1 is zero in component 1
	pattern := [][]bool{
		{true, true, false},
		{true, false, true},
		{false, false, true},
	}
	table, n, err := BuildRowTable(3, pattern)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	want := []RowIndex{
		PresentRow(0), PresentRow(1), Absent,
		PresentRow(2), Absent, PresentRow(3),
		Absent, Absent, PresentRow(4),
	}
	assert.Equal(t, want, table)
	assert.Equal(t, "absent", table[4].String())
	assert.Equal(t, "row 3", table[5].String())
}

func TestBuildRowTableErrors(t *testing.T) {
	_, _, err := BuildRowTable(2, [][]bool{{true, false}, {true}})
	assert.ErrorIs(t, err, ErrComponentMismatch)
	_, _, err = BuildRowTable(2, [][]bool{{false, false}})
	assert.ErrorIs(t, err, ErrComponentMismatch)
	_, _, err = BuildRowTable(0, nil)
	assert.ErrorIs(t, err, ErrComponentMismatch)
	_, _, err = BuildRowTable(2, [][]bool{})
	assert.ErrorIs(t, err, ErrComponentMismatch)
}

func TestShapeDataNoShapeFunctions(t *testing.T) {
	e := newFakeElement(2, [][]bool{})
	var s ShapeData
	assert.ErrorIs(t, s.Allocate(3, e, flags.Values), ErrComponentMismatch)

	var err error
	require.NotPanics(t, func() {
		_, err = New(&fakeMapping{}, e, CellKind, pointsOf(2, 3), flags.Values)
	})
	assert.ErrorIs(t, err, ErrComponentMismatch)
}

func TestGeometricDataSizing(t *testing.T) {
	var g GeometricData
	require.NoError(t, g.Allocate(7, 2, flags.Jacobians|flags.JxWValues))
	assert.Equal(t, 7, g.Len(flags.Jacobians))
	assert.Equal(t, 7, g.Len(flags.JxWValues))
	assert.Equal(t, 0, g.Len(flags.NormalVectors))
	assert.Nil(t, g.Raw(flags.NormalVectors))
	r, c := g.Raw(flags.Jacobians).Dims()
	assert.Equal(t, 7, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, 8*(7*4+7), g.MemoryFootprint())

	assert.Error(t, g.Allocate(0, 2, flags.Jacobians))
	assert.Error(t, g.Allocate(3, 4, flags.Jacobians))

	// one row per vertex, whatever the number of points
	require.NoError(t, g.Allocate(2, 3, SupportFlags|flags.JxWValues))
	assert.Equal(t, 8, g.Len(flags.SupportPoints))
	assert.Equal(t, 8, g.Len(flags.SupportJacobians))
	assert.Equal(t, 2, g.Len(flags.JxWValues))
	r, c = g.Raw(flags.SupportInverseJacobians).Dims()
	assert.Equal(t, 8, r)
	assert.Equal(t, 9, c)
	assert.Equal(t, 8*(8*3+8*9+8*9+2), g.MemoryFootprint())
}

func TestGeometricDataReuse(t *testing.T) {
	var g GeometricData
	require.NoError(t, g.Allocate(4, 3, flags.Jacobians|flags.QuadraturePoints))
	jac := &g.Raw(flags.Jacobians).RawMatrix().Data[0]
	g.Raw(flags.Jacobians).Set(1, 2, 5)

	require.NoError(t, g.Allocate(4, 3, flags.Jacobians))
	assert.Same(t, jac, &g.Raw(flags.Jacobians).RawMatrix().Data[0])
	assert.Zero(t, g.Raw(flags.Jacobians).At(1, 2))
	assert.Equal(t, 0, g.Len(flags.QuadraturePoints))

	require.NoError(t, g.Allocate(5, 3, flags.Jacobians))
	assert.Equal(t, 5, g.Len(flags.Jacobians))
	assert.False(t, g.Filled())
}

func TestGeometricDataLookups(t *testing.T) {
	var g GeometricData
	require.NoError(t, g.Allocate(2, 2, flags.JxWValues))
	assert.ErrorIs(t, recovered(func() { g.JxW(0) }), ErrNotFilled)

	g.Raw(flags.JxWValues).Set(1, 0, 0.25)
	g.SetFilled(true)
	assert.Equal(t, 0.25, g.JxW(1))
	assert.ErrorIs(t, recovered(func() { g.Jacobian(0) }), ErrNotRequested)
	assert.ErrorIs(t, recovered(func() { g.NormalVector(0) }), ErrNotRequested)
}

func TestShapeDataNonPrimitive(t *testing.T) {
	e := newFakeElement(2, [][]bool{
		{true, true, false},
		{true, false, true},
		{false, false, true},
	})
	var s ShapeData
	require.NoError(t, s.Allocate(2, e, flags.Values|flags.Gradients))
	assert.Equal(t, 5, s.NumRows())
	assert.False(t, s.IsPrimitive())
	assert.Nil(t, s.Table(flags.Hessians))

	ed, err := e.Prepare(pointsOf(2, 2), Requirements{})
	require.NoError(t, err)
	require.NoError(t, ed.Fill(0, None, nil, &s))
	s.SetFilled(true)

	assert.Equal(t, 101.0, s.ValueComponent(1, 1, 0))
	assert.Zero(t, s.ValueComponent(1, 1, 1))
	assert.Equal(t, 221.0, s.ValueComponent(2, 1, 2))
	assert.Equal(t, []float64{0, 0}, s.GradientComponent(0, 0, 2))
	assert.Equal(t, []float64{120, 120}, s.GradientComponent(1, 0, 2))

	// writing to an absent component does not leak into later lookups
	zero := s.GradientComponent(0, 0, 2)
	zero[0] = 7
	assert.Equal(t, []float64{0, 0}, s.GradientComponent(0, 1, 2))
	assert.Equal(t, []float64{0, 0}, s.GradientComponent(2, 0, 0))

	// shape function 2 has a single nonzero component
	assert.Equal(t, 220.0, s.Value(2, 0))
	assert.Panics(t, func() { s.Value(0, 0) })
	assert.ErrorIs(t, recovered(func() { s.HessianComponent(0, 0, 0) }), ErrNotRequested)
}

func TestShapeDataScenario(t *testing.T) {
	// four scalar shape functions, three points, values only
	e := newFakeElement(2, [][]bool{{true}, {true}, {true}, {true}})
	var s ShapeData
	require.NoError(t, s.Allocate(3, e, flags.Values|flags.QuadraturePoints))
	assert.True(t, s.IsPrimitive())
	r, c := s.Table(flags.Values).Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	assert.Nil(t, s.Table(flags.Gradients))
	assert.ErrorIs(t, recovered(func() { s.Value(0, 0) }), ErrNotFilled)

	data := &s.Table(flags.Values).RawMatrix().Data[0]
	require.NoError(t, s.Allocate(3, e, flags.Values))
	assert.Same(t, data, &s.Table(flags.Values).RawMatrix().Data[0])
}

func TestShapeDataComponentMismatch(t *testing.T) {
	e := newFakeElement(2, [][]bool{{true, false}, {true}})
	var s ShapeData
	err := s.Allocate(3, e, flags.Values)
	assert.ErrorIs(t, err, ErrComponentMismatch)
}
