package fevalues

import (
	"strings"
	"testing"

	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/quadrature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// pointsOf returns one set of n points on the diagonal of the unit cell.
func pointsOf(dim, n int) quadrature.Points {
	pts := quadrature.Points{Dim: dim, Sets: [][][]float64{make([][]float64, n)}, Weights: make([]float64, n)}
	for q := 0; q < n; q++ {
		x := make([]float64, dim)
		for d := range x {
			x[d] = float64(q+1) / float64(n+1)
		}
		pts.Sets[0][q] = x
		pts.Weights[q] = 1 / float64(n)
	}
	return pts
}

func TestValuesScenario(t *testing.T) {
	e := newFakeElement(2, [][]bool{{true}, {true}, {true}, {true}})
	m := &fakeMapping{}
	v, err := New(m, e, CellKind, pointsOf(2, 3), flags.Values|flags.QuadraturePoints)
	require.NoError(t, err)

	assert.Equal(t, 3, v.NumQuadraturePoints())
	assert.Equal(t, 4, v.DofsPerCell())
	assert.Equal(t, flags.Values|flags.QuadraturePoints, v.Requirements().Each)
	assert.Zero(t, v.Geometry().Len(flags.Jacobians))
	assert.Equal(t, 3, v.Geometry().Len(flags.QuadraturePoints))
	require.NotNil(t, v.Shapes().Table(flags.Values))
	r, c := v.Shapes().Table(flags.Values).Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	assert.Nil(t, v.Shapes().Table(flags.Gradients))
	assert.ErrorIs(t, recovered(func() { v.ShapeValue(0, 0) }), ErrNotFilled)

	require.NoError(t, v.Reinit(unitCell(0, 2, 3)))
	assert.Equal(t, InvalidNext, v.Similarity())
	assert.Equal(t, 302.0, v.ShapeValue(3, 2))
	assert.InDeltaSlice(t, []float64{2.25, 3.25}, v.QuadraturePoint(0), 1e-15)
	assert.ErrorIs(t, recovered(func() { v.JxW(0) }), ErrNotRequested)
	assert.ErrorIs(t, recovered(func() { v.ShapeGrad(0, 0) }), ErrNotRequested)

	require.NoError(t, v.Reinit(unitCell(1, 3, 3)))
	assert.Equal(t, Translation, v.Similarity())
	assert.InDeltaSlice(t, []float64{3.25, 3.25}, v.QuadraturePoint(0), 1e-15)
	assert.Equal(t, 2, m.fills)

	assert.Contains(t, v.String(), "quadrature_points: 3 x 2")
	assert.Positive(t, v.MemoryFootprint())
}

func TestValuesStorageReuse(t *testing.T) {
	e := newFakeElement(1, [][]bool{{true}, {true}})
	v, err := New(&fakeMapping{}, e, CellKind, pointsOf(1, 4), flags.Values|flags.JxWValues)
	require.NoError(t, err)
	require.NoError(t, v.Reinit(unitCell(0, 0)))

	vals := &v.Shapes().Table(flags.Values).RawMatrix().Data[0]
	jxw := &v.Geometry().Raw(flags.JxWValues).RawMatrix().Data[0]
	for k := 1; k < 5; k++ {
		require.NoError(t, v.Reinit(unitCell(k, float64(k))))
	}
	require.NoError(t, v.Reconfigure(flags.Values|flags.JxWValues))
	require.NoError(t, v.Reinit(unitCell(9, 9)))
	assert.Same(t, vals, &v.Shapes().Table(flags.Values).RawMatrix().Data[0])
	assert.Same(t, jxw, &v.Geometry().Raw(flags.JxWValues).RawMatrix().Data[0])
}

func TestValuesReconfigure(t *testing.T) {
	e := newFakeElement(2, [][]bool{{true}, {true}})
	v, err := New(&fakeMapping{}, e, CellKind, pointsOf(2, 2), flags.Values)
	require.NoError(t, err)
	require.NoError(t, v.Reinit(unitCell(0, 0, 0)))

	require.NoError(t, v.Reconfigure(flags.Values|flags.Gradients))
	assert.ErrorIs(t, recovered(func() { v.ShapeGrad(0, 0) }), ErrNotFilled)
	require.NoError(t, v.Reinit(unitCell(0, 0, 0)))
	assert.Equal(t, InvalidNext, v.Similarity())
	assert.Equal(t, []float64{1, 1}, v.ShapeGrad(0, 1))

	// a failed configuration leaves the context unusable
	err = v.Reconfigure(flags.NormalVectors)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.ErrorIs(t, v.Reinit(unitCell(0, 0, 0)), ErrInvalidConfiguration)
}

func TestValuesCellUnusable(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	e := newFakeElement(1, [][]bool{{true}})
	v, err := New(&fakeMapping{}, e, CellKind, pointsOf(1, 2), flags.Values, WithLogger(zap.New(core)))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("resolved update flags").Len())

	require.NoError(t, v.Reinit(unitCell(0, 0)))
	err = v.Reinit(unitCell(-1, 1))
	assert.ErrorIs(t, err, ErrCellUnusable)
	assert.ErrorIs(t, recovered(func() { v.ShapeValue(0, 0) }), ErrNotFilled)
	_, ok := v.Cell()
	assert.False(t, ok)

	// the next cell is not compared with the failed one
	require.NoError(t, v.Reinit(unitCell(2, 2)))
	assert.Equal(t, InvalidNext, v.Similarity())
}

func TestValuesKindChecks(t *testing.T) {
	e := newFakeElement(2, [][]bool{{true}})
	m := &fakeMapping{}
	v, err := New(m, e, CellKind, pointsOf(2, 1), flags.Values)
	require.NoError(t, err)
	assert.ErrorIs(t, v.ReinitFace(unitCell(0, 0, 0), 0), ErrInvalidConfiguration)
	assert.ErrorIs(t, v.Reinit(unitCell(0, 0, 0, 0)), ErrInvalidConfiguration)

	_, err = New(m, e, FaceKind, pointsOf(2, 1), flags.Values)
	assert.ErrorIs(t, err, ErrInvalidConfiguration, "face evaluation needs one set per face")

	_, err = New(m, e, CellKind, pointsOf(1, 1), flags.Values)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = New(nil, e, CellKind, pointsOf(2, 1), flags.Values)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	e.prepErr = ErrInvalidConfiguration
	_, err = New(m, e, CellKind, pointsOf(2, 1), flags.Values)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.True(t, strings.HasPrefix(err.Error(), "element fake"))
}

func TestValuesFaces(t *testing.T) {
	r, err := quadrature.Gauss(2, 1)
	require.NoError(t, err)
	e := newFakeElement(2, [][]bool{{true}})
	v, err := NewFace(&fakeMapping{rules: affineRules}, e, r, flags.Values|flags.NormalVectors)
	require.NoError(t, err)
	assert.Equal(t, FaceKind, v.Kind())
	assert.True(t, v.Requirements().Has(flags.BoundaryForms))
	assert.Equal(t, 2, v.Geometry().Len(flags.NormalVectors))

	require.NoError(t, v.ReinitFace(unitCell(0, 0, 0), 3))
	assert.ErrorIs(t, v.ReinitFace(unitCell(0, 0, 0), 4), ErrInvalidConfiguration)

	s, err := NewSubface(&fakeMapping{}, e, r, flags.Values)
	require.NoError(t, err)
	require.NoError(t, s.ReinitSubface(unitCell(0, 0, 0), 3, 1))
	assert.ErrorIs(t, s.ReinitSubface(unitCell(0, 0, 0), 3, 2), ErrInvalidConfiguration)
}
