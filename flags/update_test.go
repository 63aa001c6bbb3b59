package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlgebra(t *testing.T) {
	a := Values | Gradients | JxWValues
	b := Gradients | Jacobians

	assert.Equal(t, Values|Gradients|JxWValues|Jacobians, a.Union(b))
	assert.Equal(t, Gradients, a.Intersect(b))
	assert.Equal(t, Values|JxWValues, a.Difference(b))
	assert.True(t, a.Contains(Values|JxWValues))
	assert.False(t, a.Contains(b))
	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(Hessians))
	assert.True(t, Default.IsEmpty())
	assert.Equal(t, 3, a.Len())
}

func TestCompositesExpandToPrimitives(t *testing.T) {
	assert.Equal(t, VolumeElements|ContravariantTransformation, Piola.Expand())
	assert.Equal(t, []Update{ContravariantTransformation, VolumeElements}, Piola.Primitives())
	assert.False(t, Piola.IsPrimitive())
	assert.True(t, VolumeElements.IsPrimitive())

	// A set holding only one constituent does not contain the composite.
	assert.False(t, VolumeElements.Contains(Piola))
	assert.True(t, (Piola | Values).Contains(Piola))

	var union Update
	for _, p := range All.Primitives() {
		require.True(t, p.IsPrimitive(), p.String())
		union |= p
	}
	assert.Equal(t, All, union)
	assert.Len(t, All.Primitives(), 18)
	assert.Equal(t, SupportInverseJacobians, All.Primitives()[17])
}

func TestUnknownBits(t *testing.T) {
	f := Values | Update(0x8000)
	assert.Equal(t, Update(0x8000), f.Unknown())
	assert.Equal(t, Values, f.Expand())
	assert.Equal(t, "UpdateFlags|values|0x8000|", f.String())
	_, err := f.MarshalText()
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "UpdateFlags|", Default.String())
	assert.Equal(t, "UpdateFlags|values|quadrature_points|JxW_values|",
		(Values | QuadraturePoints | JxWValues).String())
	assert.Equal(t, "piola", Piola.Name())
	assert.Equal(t, "", (Values | Gradients).Name())
	assert.Equal(t, "UpdateFlags|volume_elements|support_points|support_jacobians|support_inverse_jacobians|",
		(VolumeElements | SupportPoints | SupportJacobians | SupportInverseJacobians).String())
	// aliases parse but print under their current name
	assert.Equal(t, "UpdateFlags|quadrature_points|", MustParse("q_points").String())
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Update
	}{
		{"", Default},
		{"values", Values},
		{"Values|JxW_values", Values | JxWValues},
		{"gradients, piola", Gradients | Piola},
		{"UpdateFlags|values|normal_vectors|", Values | NormalVectors},
		{"face_only", NormalVectors | BoundaryForms},
		{"q_points|second_derivatives", QuadraturePoints | Hessians},
		{"face_normal_vectors", NormalVectors},
		{"CELL_NORMAL_VECTORS|support_points", NormalVectors | SupportPoints},
		{"support_jacobians|support_inverse_jacobians", SupportJacobians | SupportInverseJacobians},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("values|velocity")
	assert.ErrorContains(t, err, "velocity")
	assert.Panics(t, func() { MustParse("nope") })
}

func TestStringParsesBack(t *testing.T) {
	for f := Default; f <= All; f += 0x0123 {
		f := f & All
		got, err := Parse(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
}

func TestTextMarshaling(t *testing.T) {
	text, err := (Gradients | Piola).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "gradients|contravariant_transformation|volume_elements", string(text))

	var f Update
	require.NoError(t, f.UnmarshalText(text))
	assert.Equal(t, Gradients|Piola, f)
	assert.Error(t, f.UnmarshalText([]byte("bogus")))
}
