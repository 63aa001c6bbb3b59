package fevalues

import "errors"

var (
	// ErrInvalidConfiguration reports flags, points or collaborators that can
	// not be combined, e.g. normal vectors requested on a cell evaluation.
	ErrInvalidConfiguration = errors.New("invalid evaluation configuration")

	// ErrComponentMismatch reports an element whose nonzero component pattern
	// disagrees with its declared component count, or leaves a shape function
	// without any nonzero component.
	ErrComponentMismatch = errors.New("element component pattern mismatch")

	// ErrCellUnusable is returned by a fill when the cell geometry is
	// degenerate or inverted. Only that cell is affected; the context stays
	// usable for the next one.
	ErrCellUnusable = errors.New("cell unusable")

	// ErrNotFilled is the panic value of a lookup before any successful fill
	// since the last (re)configuration.
	ErrNotFilled = errors.New("evaluation data read before fill")

	// ErrNotRequested is the panic value of a lookup of a quantity whose
	// update flag was not resolved.
	ErrNotRequested = errors.New("evaluation data not requested")
)
