// Package element provides finite element collaborators for fevalues: the
// bi/tri-linear Lagrange element Q1, the lowest order Raviart-Thomas element
// RT0 and vector-valued compositions of both (System).
//
// All elements live on the unit hypercube [0,1]^d. Shape functions are
// numbered lexicographically with the first coordinate running fastest, so
// for Q1 shape function v is the one that is one at vertex v of mesh.Cell.
package element

import (
	"fmt"

	"github.com/notargets/fevalues/fevalues"
)

func checkDim(dim int) error {
	if dim < 1 || dim > 3 {
		return fmt.Errorf("%w: element dimension %d out of range", fevalues.ErrInvalidConfiguration, dim)
	}
	return nil
}

// Q1Value returns the value at xi of the Q1 basis function of vertex v.
func Q1Value(dim, v int, xi []float64) float64 {
	val := 1.0
	for d := 0; d < dim; d++ {
		val *= q1Factor(v, d, xi[d])
	}
	return val
}

// Q1Gradient writes the reference gradient at xi of the Q1 basis function of
// vertex v into out[:dim].
func Q1Gradient(dim, v int, xi, out []float64) {
	for a := 0; a < dim; a++ {
		g := q1Slope(v, a)
		for d := 0; d < dim; d++ {
			if d != a {
				g *= q1Factor(v, d, xi[d])
			}
		}
		out[a] = g
	}
}

// Q1Hessian writes the reference hessian at xi of the Q1 basis function of
// vertex v into out[:dim*dim], row-major. Pure second derivatives vanish.
func Q1Hessian(dim, v int, xi, out []float64) {
	for a := 0; a < dim; a++ {
		for b := 0; b < dim; b++ {
			if a == b {
				out[a*dim+b] = 0
				continue
			}
			h := q1Slope(v, a) * q1Slope(v, b)
			for d := 0; d < dim; d++ {
				if d != a && d != b {
					h *= q1Factor(v, d, xi[d])
				}
			}
			out[a*dim+b] = h
		}
	}
}

func q1Factor(v, d int, x float64) float64 {
	if (v>>d)&1 == 1 {
		return x
	}
	return 1 - x
}

func q1Slope(v, d int) float64 {
	if (v>>d)&1 == 1 {
		return 1
	}
	return -1
}

// covariantGradient maps a reference gradient to physical coordinates,
// g_i = Σ_a ĝ_a K_ai with K the inverse Jacobian.
func covariantGradient(dim int, K, ghat, out []float64) {
	for i := 0; i < dim; i++ {
		s := 0.0
		for a := 0; a < dim; a++ {
			s += ghat[a] * K[a*dim+i]
		}
		out[i] = s
	}
}

// covariantHessian maps a reference hessian to physical coordinates,
//
//	H_ij = Σ_ab K_ai K_bj (Ĥ_ab - Σ_k g_k ∂²x_k/∂ξ_a∂ξ_b)
//
// where g is the physical gradient and G the Jacobian gradient. scratch needs
// dim*dim entries.
func covariantHessian(dim int, K, G, g, hhat, out, scratch []float64) {
	w := dim * dim
	for ab := 0; ab < w; ab++ {
		s := hhat[ab]
		for k := 0; k < dim; k++ {
			s -= g[k] * G[k*w+ab]
		}
		scratch[ab] = s
	}
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			s := 0.0
			for a := 0; a < dim; a++ {
				for b := 0; b < dim; b++ {
					s += K[a*dim+i] * K[b*dim+j] * scratch[a*dim+b]
				}
			}
			out[i*dim+j] = s
		}
	}
}
