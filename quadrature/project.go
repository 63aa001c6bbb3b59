package quadrature

import "fmt"

// Points holds the reference point sets an evaluation context visits. A cell
// evaluation has a single set, a face evaluation one set per face and a
// subface evaluation one set per (face, child) pair. All sets share the same
// weights and point count.
type Points struct {
	Dim     int           // Dimension of the cell the points live in
	Sets    [][][]float64 // [set][nq][Dim]
	Weights []float64     // Length nq
}

// Size returns the number of points per set.
func (p Points) Size() int { return len(p.Weights) }

// NumSets returns the number of point sets.
func (p Points) NumSets() int { return len(p.Sets) }

// NumFaces returns the number of faces of the unit hypercube of dimension dim.
func NumFaces(dim int) int { return 2 * dim }

// NumChildren returns the number of subfaces a face of a dim dimensional cell
// splits into under isotropic refinement.
func NumChildren(dim int) int {
	if dim < 2 {
		return 0
	}
	return 1 << (dim - 1)
}

// FaceAxis returns the coordinate direction that face f is normal to, and
// whether the face lies on the upper side of the cell.
func FaceAxis(f int) (axis int, upper bool) { return f / 2, f%2 == 1 }

// ReferenceNormal returns the outward unit normal of face f of the unit
// hypercube.
func ReferenceNormal(dim, f int) []float64 {
	n := make([]float64, dim)
	axis, upper := FaceAxis(f)
	if upper {
		n[axis] = 1
	} else {
		n[axis] = -1
	}
	return n
}

// CellPoints wraps a rule of full dimension.
func CellPoints(r Rule) (Points, error) {
	if err := r.Check(); err != nil {
		return Points{}, err
	}
	if r.Dim == 0 {
		return Points{}, fmt.Errorf("cell quadrature must have positive dimension")
	}
	return Points{Dim: r.Dim, Sets: [][][]float64{r.Points}, Weights: r.Weights}, nil
}

// FacePoints projects a rule of dimension dim-1 onto every face of the unit
// hypercube of dimension dim. Face 2*a lies on x_a = 0, face 2*a+1 on x_a = 1;
// the face coordinates fill the remaining directions in increasing order.
func FacePoints(r Rule, dim int) (Points, error) {
	if err := r.Check(); err != nil {
		return Points{}, err
	}
	if r.Dim != dim-1 {
		return Points{}, fmt.Errorf("face quadrature has dimension %d, want %d", r.Dim, dim-1)
	}
	out := Points{Dim: dim, Weights: r.Weights}
	for f := 0; f < NumFaces(dim); f++ {
		out.Sets = append(out.Sets, projectFace(r.Points, dim, f, -1))
	}
	return out, nil
}

// SubfacePoints projects a rule of dimension dim-1 onto every child of every
// face. Set face*NumChildren(dim)+child holds the points of that child; bit j
// of child selects the upper half along the j-th face coordinate. Weights are
// scaled by the child's share of the face.
func SubfacePoints(r Rule, dim int) (Points, error) {
	if dim < 2 {
		return Points{}, fmt.Errorf("cells of dimension %d have no subfaces", dim)
	}
	if err := r.Check(); err != nil {
		return Points{}, err
	}
	if r.Dim != dim-1 {
		return Points{}, fmt.Errorf("subface quadrature has dimension %d, want %d", r.Dim, dim-1)
	}
	nc := NumChildren(dim)
	out := Points{Dim: dim, Weights: make([]float64, r.Size())}
	for q, w := range r.Weights {
		out.Weights[q] = w / float64(nc)
	}
	for f := 0; f < NumFaces(dim); f++ {
		for c := 0; c < nc; c++ {
			out.Sets = append(out.Sets, projectFace(r.Points, dim, f, c))
		}
	}
	return out, nil
}

func projectFace(pts [][]float64, dim, f, child int) [][]float64 {
	axis, upper := FaceAxis(f)
	out := make([][]float64, len(pts))
	for q, p := range pts {
		x := make([]float64, dim)
		j := 0
		for d := 0; d < dim; d++ {
			if d == axis {
				if upper {
					x[d] = 1
				}
				continue
			}
			v := p[j]
			if child >= 0 {
				v = 0.5 * (v + float64((child>>j)&1))
			}
			x[d] = v
			j++
		}
		out[q] = x
	}
	return out
}
