// Package flags defines the update flags that tell an evaluation context which
// per quadrature point quantities have to be computed on each visited cell.
//
// Selecting these flags restrictively is what keeps a cell update cheap. The
// element and mapping in use add the flags they need on their own; see the
// fevalues package for the resolution protocol.
package flags

import (
	"fmt"
	"math/bits"
	"strings"
)

// Update is a bit set over the quantities an evaluation context can provide.
// The zero value is the empty set. Values are immutable; every operation
// returns a new set.
type Update uint32

const (
	// Default requests nothing.
	Default Update = 0

	// Values of the shape functions on the physical cell. For Lagrange elements
	// these equal the reference values, for Piola mapped elements they do not.
	Values Update = 0x0001
	// Gradients of the shape functions in physical coordinates.
	Gradients Update = 0x0002
	// Hessians are the second derivatives of the shape functions in physical
	// coordinates.
	Hessians Update = 0x0004
	// BoundaryForms is the unnormalized outer normal whose length is the
	// surface element.
	BoundaryForms Update = 0x0008
	// QuadraturePoints are the quadrature points mapped to the physical cell.
	QuadraturePoints Update = 0x0010
	// JxWValues are the quadrature weights times the determinant of the
	// Jacobian (or the surface element on faces).
	JxWValues Update = 0x0020
	// NormalVectors are unit outward normals; only valid on faces.
	NormalVectors Update = 0x0040
	// Jacobians of the map from the reference to the physical cell.
	Jacobians Update = 0x0080
	// JacobianGrads are the derivatives of the Jacobians.
	JacobianGrads Update = 0x0100
	// InverseJacobians of the map from the reference to the physical cell.
	InverseJacobians Update = 0x0200
	// CovariantTransformation is everything a mapping needs to apply a
	// covariant transformation to vectors.
	CovariantTransformation Update = 0x0400
	// ContravariantTransformation is everything a mapping needs to apply a
	// contravariant transformation to vectors.
	ContravariantTransformation Update = 0x0800
	// TransformationValues are the values of the mapping's own shape functions.
	TransformationValues Update = 0x1000
	// TransformationGradients are the gradients of the mapping's own shape
	// functions.
	TransformationGradients Update = 0x2000
	// VolumeElements is the determinant of the Jacobian at each point.
	VolumeElements Update = 0x4000
	// SupportPoints are the mapping's support points on the physical cell.
	// For the Q1 and Cartesian mappings these are the cell vertices.
	SupportPoints Update = 0x10000
	// SupportJacobians are the Jacobians at the mapping's support points.
	SupportJacobians Update = 0x20000
	// SupportInverseJacobians are the inverse Jacobians at the mapping's
	// support points.
	SupportInverseJacobians Update = 0x40000

	// Piola is the data needed for the Piola transform of H(div) elements.
	Piola = VolumeElements | ContravariantTransformation

	// FaceOnly holds the quantities that only exist on faces and subfaces.
	FaceOnly = NormalVectors | BoundaryForms

	// All is every primitive flag of the enumeration. Bit 0x8000 is unused.
	All Update = 0x77fff
)

type named struct {
	flag Update
	name string
}

// primitives is ordered by bit value.
var primitives = []named{
	{Values, "values"},
	{Gradients, "gradients"},
	{Hessians, "hessians"},
	{BoundaryForms, "boundary_forms"},
	{QuadraturePoints, "quadrature_points"},
	{JxWValues, "JxW_values"},
	{NormalVectors, "normal_vectors"},
	{Jacobians, "jacobians"},
	{JacobianGrads, "jacobian_grads"},
	{InverseJacobians, "inverse_jacobians"},
	{CovariantTransformation, "covariant_transformation"},
	{ContravariantTransformation, "contravariant_transformation"},
	{TransformationValues, "transformation_values"},
	{TransformationGradients, "transformation_gradients"},
	{VolumeElements, "volume_elements"},
	{SupportPoints, "support_points"},
	{SupportJacobians, "support_jacobians"},
	{SupportInverseJacobians, "support_inverse_jacobians"},
}

var composites = []named{
	{Piola, "piola"},
	{FaceOnly, "face_only"},
	{All, "all"},
}

// aliases are older names accepted by Parse; they never appear in output.
var aliases = []named{
	{QuadraturePoints, "q_points"},
	{Hessians, "second_derivatives"},
	{NormalVectors, "face_normal_vectors"},
	{NormalVectors, "cell_normal_vectors"},
}

// Union returns the bits set in either f or g.
func (f Update) Union(g Update) Update { return f | g }

// Intersect returns the bits set in both f and g.
func (f Update) Intersect(g Update) Update { return f & g }

// Difference returns the bits of f that are not in g.
func (f Update) Difference(g Update) Update { return f &^ g }

// Contains reports whether every bit of g is set in f. For a composite g this
// means all of its constituents are present.
func (f Update) Contains(g Update) bool { return f&g == g }

// Intersects reports whether f and g share at least one bit.
func (f Update) Intersects(g Update) bool { return f&g != 0 }

// IsEmpty reports whether no bit is set.
func (f Update) IsEmpty() bool { return f == Default }

// IsPrimitive reports whether f is exactly one flag of the enumeration.
func (f Update) IsPrimitive() bool {
	return f != 0 && f&All == f && bits.OnesCount32(uint32(f)) == 1
}

// Len is the number of primitive flags set in f.
func (f Update) Len() int { return bits.OnesCount32(uint32(f & All)) }

// Unknown returns the bits of f that are outside the enumeration.
func (f Update) Unknown() Update { return f &^ All }

// Expand returns the primitive union that f stands for. Composites are defined
// as unions of primitive bits, so this only drops bits outside the enumeration.
func (f Update) Expand() Update { return f & All }

// Primitives lists the primitive flags set in f in bit order.
func (f Update) Primitives() []Update {
	out := make([]Update, 0, f.Len())
	for _, p := range primitives {
		if f&p.flag != 0 {
			out = append(out, p.flag)
		}
	}
	return out
}

// Name returns the name of a primitive or composite flag, or "" if f is
// neither.
func (f Update) Name() string {
	for _, p := range primitives {
		if p.flag == f {
			return p.name
		}
	}
	for _, c := range composites {
		if c.flag == f {
			return c.name
		}
	}
	return ""
}

// String renders the set as or'd names, e.g. "UpdateFlags|values|JxW_values|".
func (f Update) String() string {
	var sb strings.Builder
	sb.WriteString("UpdateFlags|")
	for _, p := range primitives {
		if f&p.flag != 0 {
			sb.WriteString(p.name)
			sb.WriteByte('|')
		}
	}
	if u := f.Unknown(); u != 0 {
		sb.WriteString(fmt.Sprintf("0x%x|", uint32(u)))
	}
	return sb.String()
}

// Parse reads a set of names separated by '|' or ','. Names are matched
// without regard to case; composite names are accepted and expanded. The
// "UpdateFlags" prefix produced by String is ignored, so String output parses
// back to the same set.
func Parse(s string) (Update, error) {
	var out Update
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ','
	})
	for _, field := range fields {
		name := strings.TrimSpace(field)
		if name == "" || strings.EqualFold(name, "UpdateFlags") {
			continue
		}
		f, ok := lookup(name)
		if !ok {
			return Default, fmt.Errorf("unknown update flag %q", name)
		}
		out |= f
	}
	return out, nil
}

// MustParse is Parse for literal flag lists; it panics on unknown names.
func MustParse(s string) Update {
	f, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return f
}

func lookup(name string) (Update, bool) {
	for _, p := range primitives {
		if strings.EqualFold(p.name, name) {
			return p.flag, true
		}
	}
	for _, c := range composites {
		if strings.EqualFold(c.name, name) {
			return c.flag, true
		}
	}
	for _, a := range aliases {
		if strings.EqualFold(a.name, name) {
			return a.flag, true
		}
	}
	return Default, false
}

// MarshalText implements encoding.TextMarshaler using the '|' separated names
// without the prefix, so the set round-trips through YAML and JSON.
func (f Update) MarshalText() ([]byte, error) {
	if u := f.Unknown(); u != 0 {
		return nil, fmt.Errorf("update flags carry unknown bits 0x%x", uint32(u))
	}
	names := make([]string, 0, f.Len())
	for _, p := range f.Primitives() {
		names = append(names, p.Name())
	}
	return []byte(strings.Join(names, "|")), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Update) UnmarshalText(text []byte) error {
	g, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = g
	return nil
}
