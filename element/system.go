package element

import (
	"fmt"
	"strings"

	"github.com/notargets/fevalues/fevalues"
	"github.com/notargets/fevalues/flags"
	"github.com/notargets/fevalues/quadrature"
)

// Block is one base element of a System and the number of copies of it.
type Block struct {
	Element      fevalues.Element
	Multiplicity int
}

// System composes base elements into one vector-valued element. Copies are
// laid out block by block: the shape functions of copy k follow those of copy
// k-1, and its components follow those of copy k-1.
type System struct {
	dim    int
	blocks []Block
	copies []systemCopy
	nComp  int
	nDofs  int
}

type systemCopy struct {
	block      int
	dofOffset  int
	compOffset int
}

// NewSystem builds a System from blocks of equal dimension.
func NewSystem(blocks ...Block) (*System, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: system without base elements", fevalues.ErrInvalidConfiguration)
	}
	s := &System{dim: blocks[0].Element.Dimension(), blocks: blocks}
	for b, blk := range blocks {
		if blk.Element.Dimension() != s.dim {
			return nil, fmt.Errorf("%w: base element %s has dimension %d, system has %d",
				fevalues.ErrInvalidConfiguration, blk.Element.Name(), blk.Element.Dimension(), s.dim)
		}
		if blk.Multiplicity < 1 {
			return nil, fmt.Errorf("%w: base element %s with multiplicity %d",
				fevalues.ErrInvalidConfiguration, blk.Element.Name(), blk.Multiplicity)
		}
		for k := 0; k < blk.Multiplicity; k++ {
			s.copies = append(s.copies, systemCopy{block: b, dofOffset: s.nDofs, compOffset: s.nComp})
			s.nDofs += blk.Element.DofsPerCell()
			s.nComp += blk.Element.NumComponents()
		}
	}
	return s, nil
}

func (s *System) Name() string {
	parts := make([]string, len(s.blocks))
	for b, blk := range s.blocks {
		parts[b] = blk.Element.Name()
		if blk.Multiplicity > 1 {
			parts[b] += fmt.Sprintf("^%d", blk.Multiplicity)
		}
	}
	return fmt.Sprintf("FESystem<%d>[%s]", s.dim, strings.Join(parts, "-"))
}

func (s *System) Dimension() int     { return s.dim }
func (s *System) NumComponents() int { return s.nComp }
func (s *System) DofsPerCell() int   { return s.nDofs }

// Blocks returns the base elements.
func (s *System) Blocks() []Block { return s.blocks }

func (s *System) copyOf(i int) (systemCopy, int) {
	for k := len(s.copies) - 1; k >= 0; k-- {
		if i >= s.copies[k].dofOffset {
			return s.copies[k], i - s.copies[k].dofOffset
		}
	}
	panic(fmt.Sprintf("shape function %d out of range", i))
}

// NonzeroComponents places the base element's pattern at the copy's
// component offset; all other components are zero.
func (s *System) NonzeroComponents(i int) []bool {
	cp, local := s.copyOf(i)
	out := make([]bool, s.nComp)
	copy(out[cp.compOffset:], s.blocks[cp.block].Element.NonzeroComponents(local))
	return out
}

// UpdateOnce is the union over the base elements.
func (s *System) UpdateOnce(in flags.Update) flags.Update {
	var out flags.Update
	for _, blk := range s.blocks {
		out |= blk.Element.UpdateOnce(in)
	}
	return out
}

// UpdateEach is the union over the base elements.
func (s *System) UpdateEach(in flags.Update) flags.Update {
	var out flags.Update
	for _, blk := range s.blocks {
		out |= blk.Element.UpdateEach(in)
	}
	return out
}

// Prepare prepares every base element once; copies share the base data.
func (s *System) Prepare(pts quadrature.Points, req fevalues.Requirements) (fevalues.ElementData, error) {
	d := &systemData{s: s, base: make([]fevalues.ElementData, len(s.blocks))}
	for b, blk := range s.blocks {
		bd, err := blk.Element.Prepare(pts, req)
		if err != nil {
			return nil, fmt.Errorf("base element %s: %w", blk.Element.Name(), err)
		}
		d.base[b] = bd
	}
	return d, nil
}

type systemData struct {
	s    *System
	base []fevalues.ElementData
}

func (d *systemData) Fill(set int, sim fevalues.CellSimilarity, geo *fevalues.GeometricData, out fevalues.ShapeSink) error {
	for _, cp := range d.s.copies {
		sink := shiftedSink{out: out, dofOffset: cp.dofOffset, compOffset: cp.compOffset}
		if err := d.base[cp.block].Fill(set, sim, geo, sink); err != nil {
			return err
		}
	}
	return nil
}

// shiftedSink renumbers a base element's shape functions and components into
// the system's numbering.
type shiftedSink struct {
	out        fevalues.ShapeSink
	dofOffset  int
	compOffset int
}

func (s shiftedSink) SetValue(i, c, q int, v float64) {
	s.out.SetValue(i+s.dofOffset, c+s.compOffset, q, v)
}

func (s shiftedSink) SetGradient(i, c, q int, g []float64) {
	s.out.SetGradient(i+s.dofOffset, c+s.compOffset, q, g)
}

func (s shiftedSink) SetHessian(i, c, q int, h []float64) {
	s.out.SetHessian(i+s.dofOffset, c+s.compOffset, q, h)
}
