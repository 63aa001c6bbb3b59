// Package mesh describes the cells an evaluation context is reinitialized on,
// and generates simple structured grids of such cells.
package mesh

import (
	"fmt"
	"math"
	"math/rand"
)

// Cell is a hypercube-topology cell in physical space.
type Cell struct {
	Index int // Global cell number, used for reporting only
	Dim   int
	// Vertices holds 2^Dim points in lexicographic order, the first
	// coordinate running fastest: (0,0), (1,0), (0,1), (1,1) in 2D.
	Vertices [][]float64
}

// NumVertices returns the number of vertices of a hypercube cell of dimension
// dim.
func NumVertices(dim int) int { return 1 << dim }

// Check verifies the vertex count and coordinate lengths.
func (c Cell) Check() error {
	if c.Dim < 1 || c.Dim > 3 {
		return fmt.Errorf("cell %d: dimension %d out of range", c.Index, c.Dim)
	}
	if len(c.Vertices) != NumVertices(c.Dim) {
		return fmt.Errorf("cell %d: has %d vertices, want %d", c.Index, len(c.Vertices), NumVertices(c.Dim))
	}
	for i, v := range c.Vertices {
		if len(v) != c.Dim {
			return fmt.Errorf("cell %d: vertex %d has %d coordinates, want %d", c.Index, i, len(v), c.Dim)
		}
	}
	return nil
}

// TranslationOf reports whether c equals prev shifted by a constant vector
// and returns that shift. tol is relative to the extent of prev: vertices may
// deviate from the shifted ones by tol times the largest coordinate distance
// of a vertex of prev from its first vertex.
func (c Cell) TranslationOf(prev Cell, tol float64) (shift []float64, ok bool) {
	if c.Dim != prev.Dim || len(c.Vertices) != len(prev.Vertices) || len(c.Vertices) == 0 {
		return nil, false
	}
	shift = make([]float64, c.Dim)
	for d := range shift {
		shift[d] = c.Vertices[0][d] - prev.Vertices[0][d]
	}
	extent := 0.0
	for _, v := range prev.Vertices[1:] {
		for d := 0; d < c.Dim; d++ {
			extent = math.Max(extent, math.Abs(v[d]-prev.Vertices[0][d]))
		}
	}
	limit := tol * extent
	for i := 1; i < len(c.Vertices); i++ {
		for d := 0; d < c.Dim; d++ {
			if math.Abs(c.Vertices[i][d]-prev.Vertices[i][d]-shift[d]) > limit {
				return nil, false
			}
		}
	}
	return shift, true
}

// Grid is a structured subdivision of a hyper-rectangle. Cells are
// independent copies; vertices shared between neighbors are duplicated.
type Grid struct {
	Dim      int
	Vertices [][]float64 // Lexicographic vertex list
	NumSub   []int       // Cells per direction
	cells    []Cell
}

// HyperRectangle subdivides the box [lower, upper] into sub[d] cells along
// each direction d.
func HyperRectangle(lower, upper []float64, sub []int) (*Grid, error) {
	dim := len(lower)
	if dim < 1 || dim > 3 || len(upper) != dim || len(sub) != dim {
		return nil, fmt.Errorf("inconsistent box dimensions: lower %d, upper %d, subdivisions %d",
			len(lower), len(upper), len(sub))
	}
	axes := make([][]float64, dim)
	for d := 0; d < dim; d++ {
		if sub[d] < 1 {
			return nil, fmt.Errorf("subdivisions[%d] = %d, want at least 1", d, sub[d])
		}
		if upper[d] <= lower[d] {
			return nil, fmt.Errorf("upper[%d] = %g is not above lower[%d] = %g", d, upper[d], d, lower[d])
		}
		axes[d] = make([]float64, sub[d]+1)
		for i := range axes[d] {
			axes[d][i] = lower[d] + (upper[d]-lower[d])*float64(i)/float64(sub[d])
		}
	}
	return Tensor(axes...)
}

// Tensor builds the grid whose vertex coordinates along direction d are
// axes[d]. Uneven spacing is allowed; coordinates must increase.
func Tensor(axes ...[]float64) (*Grid, error) {
	dim := len(axes)
	if dim < 1 || dim > 3 {
		return nil, fmt.Errorf("grid dimension %d out of range", dim)
	}
	g := &Grid{Dim: dim, NumSub: make([]int, dim)}
	nv := 1
	for d, ax := range axes {
		if len(ax) < 2 {
			return nil, fmt.Errorf("axis %d needs at least two coordinates", d)
		}
		for i := 1; i < len(ax); i++ {
			if ax[i] <= ax[i-1] {
				return nil, fmt.Errorf("axis %d is not increasing at %d", d, i)
			}
		}
		g.NumSub[d] = len(ax) - 1
		nv *= len(ax)
	}
	g.Vertices = make([][]float64, 0, nv)
	idx := make([]int, dim)
	for n := 0; n < nv; n++ {
		v := make([]float64, dim)
		for d := range v {
			v[d] = axes[d][idx[d]]
		}
		g.Vertices = append(g.Vertices, v)
		for d := 0; d < dim; d++ {
			idx[d]++
			if idx[d] < len(axes[d]) {
				break
			}
			idx[d] = 0
		}
	}
	g.buildCells()
	return g, nil
}

func (g *Grid) vertexIndex(ijk []int) int {
	idx, stride := 0, 1
	for d := 0; d < g.Dim; d++ {
		idx += ijk[d] * stride
		stride *= g.NumSub[d] + 1
	}
	return idx
}

func (g *Grid) buildCells() {
	nc := 1
	for _, n := range g.NumSub {
		nc *= n
	}
	g.cells = make([]Cell, 0, nc)
	cidx := make([]int, g.Dim)
	corner := make([]int, g.Dim)
	for k := 0; k < nc; k++ {
		c := Cell{Index: k, Dim: g.Dim, Vertices: make([][]float64, NumVertices(g.Dim))}
		for v := range c.Vertices {
			for d := 0; d < g.Dim; d++ {
				corner[d] = cidx[d] + (v>>d)&1
			}
			c.Vertices[v] = append([]float64(nil), g.Vertices[g.vertexIndex(corner)]...)
		}
		g.cells = append(g.cells, c)
		for d := 0; d < g.Dim; d++ {
			cidx[d]++
			if cidx[d] < g.NumSub[d] {
				break
			}
			cidx[d] = 0
		}
	}
}

// Distort moves every interior vertex by a random offset of at most factor
// times the smallest cell width along each direction, and rebuilds the cells.
// The same seed always gives the same grid.
func (g *Grid) Distort(factor float64, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	h := math.Inf(1)
	for _, c := range g.cells {
		for d := 0; d < g.Dim; d++ {
			h = math.Min(h, c.Vertices[1<<d][d]-c.Vertices[0][d])
		}
	}
	ijk := make([]int, g.Dim)
	for n, v := range g.Vertices {
		rem := n
		interior := true
		for d := 0; d < g.Dim; d++ {
			ijk[d] = rem % (g.NumSub[d] + 1)
			rem /= g.NumSub[d] + 1
			if ijk[d] == 0 || ijk[d] == g.NumSub[d] {
				interior = false
			}
		}
		if !interior {
			continue
		}
		for d := range v {
			v[d] += factor * h * (2*rng.Float64() - 1)
		}
	}
	g.buildCells()
}

// Len returns the number of cells.
func (g *Grid) Len() int { return len(g.cells) }

// Cell returns cell i.
func (g *Grid) Cell(i int) Cell { return g.cells[i] }

// Cells returns all cells in index order.
func (g *Grid) Cells() []Cell { return g.cells }
