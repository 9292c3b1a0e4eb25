package ratchet

import (
	"fmt"

	"xdao.co/dagfs/common"
)

// Ordering is the result of Compare.
type Ordering int

const (
	// Incomparable means neither state can be reached from the other.
	Incomparable Ordering = iota
	Equal
	// ABeforeB means b is reachable by advancing a.
	ABeforeB
	// BBeforeA means a is reachable by advancing b.
	BBeforeA
)

func (o Ordering) String() string {
	switch o {
	case Equal:
		return "equal"
	case ABeforeB:
		return "a_before_b"
	case BBeforeA:
		return "b_before_a"
	default:
		return "incomparable"
	}
}

// Compare orders two states without replaying the revisions between them:
// the earlier position is jumped forward to the later one and the results
// compared. States that do not share a lineage are Incomparable.
func Compare(a, b Ratchet) Ordering {
	pa, pb := a.Position(), b.Position()
	switch {
	case pa == pb:
		if a.Equal(b) {
			return Equal
		}
		return Incomparable
	case pa < pb:
		if reaches(a, b, pb-pa) {
			return ABeforeB
		}
	default:
		if reaches(b, a, pa-pb) {
			return BBeforeA
		}
	}
	return Incomparable
}

func reaches(from, to Ratchet, n uint64) bool {
	j, err := from.Jump(n)
	return err == nil && j.Equal(to)
}

// Steps returns how many advances take a to b. It fails with
// common.ErrDivergence if b is not reachable from a.
func Steps(a, b Ratchet) (uint64, error) {
	switch Compare(a, b) {
	case Equal:
		return 0, nil
	case ABeforeB:
		return b.Position() - a.Position(), nil
	case BBeforeA:
		return 0, fmt.Errorf("%w: target %s precedes %s", common.ErrDivergence, b, a)
	default:
		return 0, fmt.Errorf("%w: %s and %s", common.ErrDivergence, a, b)
	}
}

// MustShareLineage fails with common.ErrDivergence when a and b are
// Incomparable.
func MustShareLineage(a, b Ratchet) error {
	if Compare(a, b) == Incomparable {
		return fmt.Errorf("%w: %s and %s", common.ErrDivergence, a, b)
	}
	return nil
}
