package fevalues

import (
	"fmt"

	"github.com/notargets/fevalues/flags"
)

// Resolve computes every flag the element and mapping need to provide the
// requested quantities for the given kind of evaluation, and splits the result
// into once and each parts.
//
// The element is asked first, the mapping second, each for its once and each
// contributions, and the union grows until a pass adds nothing. Flags only
// ever accumulate and the enumeration is finite, so the loop ends after at
// most flags.All.Len()+1 passes. Requested bits are never dropped; bits no
// collaborator claims are classified as each.
func Resolve(update flags.Update, kind Kind, e UpdateRules, m UpdateRules) (Requirements, error) {
	if u := update.Unknown(); u != 0 {
		return Requirements{}, fmt.Errorf("%w: unknown update flag bits 0x%x", ErrInvalidConfiguration, uint32(u))
	}
	if err := checkKind(update, kind, "requested"); err != nil {
		return Requirements{}, err
	}

	needed := update.Expand()
	hops := 0
	for pass := 0; pass <= flags.All.Len(); pass++ {
		next := needed | e.UpdateOnce(needed) | e.UpdateEach(needed)
		next |= m.UpdateOnce(next) | m.UpdateEach(next)
		next = next.Expand()
		if next == needed {
			break
		}
		needed = next
		hops++
	}

	if err := checkKind(needed, kind, "required by element or mapping"); err != nil {
		return Requirements{}, err
	}

	once := (e.UpdateOnce(needed) | m.UpdateOnce(needed)).Expand() & needed
	claimed := (e.UpdateEach(needed) | m.UpdateEach(needed)).Expand() & needed
	each := claimed | needed.Difference(once|claimed)

	return Requirements{Kind: kind, Once: once, Each: each, Hops: hops}, nil
}

func checkKind(f flags.Update, kind Kind, what string) error {
	if kind == CellKind && f.Intersects(flags.FaceOnly) {
		return fmt.Errorf("%w: %s flags %v only exist on faces", ErrInvalidConfiguration,
			what, f.Intersect(flags.FaceOnly))
	}
	if kind > SubfaceKind {
		return fmt.Errorf("%w: unknown evaluation kind %d", ErrInvalidConfiguration, kind)
	}
	return nil
}
