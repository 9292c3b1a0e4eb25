package nameaccumulator

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Accumulator is an accumulated value in the setup's group. The zero value
// is not valid; start from Setup.Empty.
type Accumulator struct {
	v *big.Int
}

// Witness proves that a segment is accumulated into a value.
type Witness struct {
	v *big.Int
}

// Empty is the identity accumulator: nothing has been added.
func (s *Setup) Empty() Accumulator {
	return Accumulator{v: new(big.Int).Set(s.Generator)}
}

// Add accumulates seg. Order of additions does not matter.
func (s *Setup) Add(acc Accumulator, seg Segment) Accumulator {
	return Accumulator{v: new(big.Int).Exp(acc.value(s), s.prime(seg), s.Modulus)}
}

// AddAll accumulates several segments with a single exponentiation.
func (s *Setup) AddAll(acc Accumulator, segs ...Segment) Accumulator {
	return Accumulator{v: new(big.Int).Exp(acc.value(s), s.product(segs), s.Modulus)}
}

// Verify reports whether w proves seg is in acc. It never fails: stale,
// foreign or missing inputs are simply not proofs.
func Verify(s *Setup, acc Accumulator, seg Segment, w Witness) bool {
	if s == nil || s.Modulus == nil || acc.v == nil || w.v == nil {
		return false
	}
	if w.v.Sign() <= 0 || w.v.Cmp(s.Modulus) >= 0 {
		return false
	}
	got := new(big.Int).Exp(w.v, s.prime(seg), s.Modulus)
	return got.Cmp(acc.v) == 0
}

func (a Accumulator) value(s *Setup) *big.Int {
	if a.v == nil {
		return s.Generator
	}
	return a.v
}

func (a Accumulator) IsZero() bool { return a.v == nil }

func (a Accumulator) Equal(o Accumulator) bool {
	if a.v == nil || o.v == nil {
		return a.v == nil && o.v == nil
	}
	ab, ob := a.v.Bytes(), o.v.Bytes()
	return len(ab) == len(ob) && subtle.ConstantTimeCompare(ab, ob) == 1
}

// Bytes is the big-endian value padded to the setup's byte length.
func (a Accumulator) Bytes(s *Setup) []byte {
	return a.value(s).FillBytes(make([]byte, s.ByteLen()))
}

func (a Accumulator) String() string {
	if a.v == nil {
		return "acc(nil)"
	}
	b := a.v.Bytes()
	if len(b) > 8 {
		b = b[:8]
	}
	return "acc(" + hex.EncodeToString(b) + ")"
}

// AccumulatorFromBytes parses the output of Bytes.
func AccumulatorFromBytes(s *Setup, b []byte) (Accumulator, error) {
	v, err := parseElement(s, b)
	if err != nil {
		return Accumulator{}, err
	}
	return Accumulator{v: v}, nil
}

func (w Witness) Bytes(s *Setup) []byte {
	if w.v == nil {
		return nil
	}
	return w.v.FillBytes(make([]byte, s.ByteLen()))
}

func WitnessFromBytes(s *Setup, b []byte) (Witness, error) {
	v, err := parseElement(s, b)
	if err != nil {
		return Witness{}, err
	}
	return Witness{v: v}, nil
}

func parseElement(s *Setup, b []byte) (*big.Int, error) {
	if len(b) != s.ByteLen() {
		return nil, fmt.Errorf("%w: element is %d bytes, want %d", ErrEncoding, len(b), s.ByteLen())
	}
	v := new(big.Int).SetBytes(b)
	if v.Sign() == 0 || v.Cmp(s.Modulus) >= 0 {
		return nil, fmt.Errorf("%w: element out of range", ErrEncoding)
	}
	return v, nil
}

func (s *Setup) product(segs []Segment) *big.Int {
	p := big.NewInt(1)
	for _, seg := range segs {
		p.Mul(p, s.prime(seg))
	}
	return p
}
