// Package quadrature provides tensor-product Gauss rules on the unit hypercube
// [0,1]^d and their projections onto faces and subfaces.
package quadrature

import (
	"fmt"
	"sort"

	"github.com/notargets/gocfd/DG1D"
	"gonum.org/v1/gonum/floats"
)

// Rule is a quadrature rule on the unit hypercube of dimension Dim.
// Points are ordered lexicographically with the first coordinate running
// fastest. A rule of dimension 0 is the single point rule used on the faces
// of one dimensional cells.
type Rule struct {
	Dim     int
	Points  [][]float64 // [nq][Dim]
	Weights []float64   // Length nq, sums to one
}

// Size returns the number of quadrature points.
func (r Rule) Size() int { return len(r.Weights) }

// Point returns a copy-free view of point q.
func (r Rule) Point(q int) []float64 { return r.Points[q] }

// Check verifies that the rule is self consistent.
func (r Rule) Check() error {
	if r.Dim < 0 || r.Dim > 3 {
		return fmt.Errorf("quadrature dimension %d out of range", r.Dim)
	}
	if len(r.Points) != len(r.Weights) {
		return fmt.Errorf("quadrature has %d points but %d weights", len(r.Points), len(r.Weights))
	}
	if len(r.Weights) == 0 {
		return fmt.Errorf("quadrature has no points")
	}
	for q, p := range r.Points {
		if len(p) != r.Dim {
			return fmt.Errorf("quadrature point %d has %d coordinates, want %d", q, len(p), r.Dim)
		}
	}
	return nil
}

// Gauss1D returns the n point Gauss-Legendre rule on [0,1]. It is exact for
// polynomials of degree 2n-1.
func Gauss1D(n int) (Rule, error) {
	if n < 1 {
		return Rule{}, fmt.Errorf("gauss rule needs at least one point, got %d", n)
	}
	X, W := DG1D.JacobiGQ(0, 0, n-1)
	x, w := X.Data(), W.Data()

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return x[order[a]] < x[order[b]] })

	// Transform from [-1,1] to [0,1]
	r := Rule{
		Dim:     1,
		Points:  make([][]float64, n),
		Weights: make([]float64, n),
	}
	for i, j := range order {
		r.Points[i] = []float64{0.5 * (x[j] + 1)}
		r.Weights[i] = 0.5 * w[j]
	}
	return r, nil
}

// Gauss returns the tensor-product Gauss rule with n points per direction on
// the unit hypercube of dimension dim.
func Gauss(n, dim int) (Rule, error) {
	if dim == 0 {
		return Point(), nil
	}
	if dim < 0 || dim > 3 {
		return Rule{}, fmt.Errorf("gauss rule dimension %d out of range", dim)
	}
	base, err := Gauss1D(n)
	if err != nil {
		return Rule{}, err
	}
	out := base
	for d := 1; d < dim; d++ {
		out = Tensor(out, base)
	}
	return out, nil
}

// Tensor builds the product rule of a and b; the coordinates of a run fastest.
func Tensor(a, b Rule) Rule {
	out := Rule{
		Dim:     a.Dim + b.Dim,
		Points:  make([][]float64, 0, a.Size()*b.Size()),
		Weights: make([]float64, 0, a.Size()*b.Size()),
	}
	for j := range b.Points {
		for i := range a.Points {
			p := make([]float64, 0, out.Dim)
			p = append(p, a.Points[i]...)
			p = append(p, b.Points[j]...)
			out.Points = append(out.Points, p)
			out.Weights = append(out.Weights, a.Weights[i]*b.Weights[j])
		}
	}
	return out
}

// Point is the zero dimensional rule with a single unit weight.
func Point() Rule {
	return Rule{Dim: 0, Points: [][]float64{{}}, Weights: []float64{1}}
}

// Integrate applies the rule to f on the unit hypercube.
func (r Rule) Integrate(f func(x []float64) float64) float64 {
	vals := make([]float64, r.Size())
	for q, p := range r.Points {
		vals[q] = f(p)
	}
	return floats.Dot(vals, r.Weights)
}
