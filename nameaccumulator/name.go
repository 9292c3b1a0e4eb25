package nameaccumulator

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// Name is a set of segments: a node's own segment plus those of every
// ancestor. Adding a segment twice has no effect, so two names are equal
// exactly when their segment sets are.
type Name struct {
	segments []Segment // sorted, unique
}

func NewName(segs ...Segment) Name {
	return Name{}.WithSegments(segs...)
}

// WithSegments returns a new name extended by segs.
func (n Name) WithSegments(segs ...Segment) Name {
	all := make([]Segment, 0, len(n.segments)+len(segs))
	all = append(all, n.segments...)
	all = append(all, segs...)
	sort.Slice(all, func(i, j int) bool { return all[i].less(all[j]) })
	out := all[:0]
	for i, s := range all {
		if i > 0 && s == all[i-1] {
			continue
		}
		out = append(out, s)
	}
	return Name{segments: out}
}

func (n Name) Len() int { return len(n.segments) }

func (n Name) Segments() []Segment {
	return append([]Segment(nil), n.segments...)
}

func (n Name) Contains(seg Segment) bool {
	i := sort.Search(len(n.segments), func(i int) bool { return !n.segments[i].less(seg) })
	return i < len(n.segments) && n.segments[i] == seg
}

func (n Name) Equal(o Name) bool {
	if len(n.segments) != len(o.segments) {
		return false
	}
	for i := range n.segments {
		if n.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

// Accumulator computes the accumulated value of every segment in n.
func (n Name) Accumulator(s *Setup) Accumulator {
	return s.AddAll(s.Empty(), n.segments...)
}

// Witness returns a membership proof for seg against n.Accumulator(s).
func (n Name) Witness(s *Setup, seg Segment) (Witness, error) {
	if !n.Contains(seg) {
		return Witness{}, fmt.Errorf("%w: %s", ErrNotMember, seg)
	}
	e := big.NewInt(1)
	for _, o := range n.segments {
		if o != seg {
			e.Mul(e, s.prime(o))
		}
	}
	return Witness{v: new(big.Int).Exp(s.Generator, e, s.Modulus)}, nil
}

// MarshalCBOR encodes the sorted segment list.
func (n Name) MarshalCBOR() ([]byte, error) {
	raw := make([][]byte, len(n.segments))
	for i := range n.segments {
		raw[i] = n.segments[i][:]
	}
	return cbor.Marshal(raw)
}

func (n *Name) UnmarshalCBOR(data []byte) error {
	var raw [][]byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	segs := make([]Segment, len(raw))
	for i, b := range raw {
		if len(b) != len(Segment{}) {
			return fmt.Errorf("%w: segment %d is %d bytes", ErrEncoding, i, len(b))
		}
		copy(segs[i][:], b)
	}
	*n = NewName(segs...)
	return nil
}
