// Package ratchet implements a skip ratchet: a one-way chain of revision
// keys that can be advanced by any distance with a bounded amount of
// hashing.
//
// The state is a stack of Levels hash chains. Level i advances once per
// 256^i revisions. Stepping level i replaces its value v with hash(v) and
// re-seeds every lower level from the complement of v. Only hash(v) stays in
// the state, so the seeds of the lower levels cannot be recomputed from it.
// A state at revision n reaches any revision m > n in at most 2*255*Levels
// hashes, while reaching a revision before n requires inverting the hash.
package ratchet

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"

	"xdao.co/dagfs/common"
)

const (
	// Levels is the number of chains. With a radix of 256 per level the
	// position space is 2^64.
	Levels = 8

	chainSize = 32
	radix     = 256

	// EncodedSize is the length of MarshalBinary output.
	EncodedSize = Levels*chainSize + Levels
)

const (
	domainKey    = "dagfs/ratchet/key/v1"
	domainOffset = "dagfs/ratchet/offset/v1"
)

// Ratchet is a value type; all operations return a new state.
type Ratchet struct {
	chains [Levels][chainSize]byte
	counts [Levels]uint8
}

// New creates a ratchet from 32 bytes of randomness.
func New(rand io.Reader) (Ratchet, error) {
	var seed [32]byte
	if _, err := io.ReadFull(rand, seed[:]); err != nil {
		return Ratchet{}, fmt.Errorf("ratchet: reading seed: %w", err)
	}
	return FromSeed(seed), nil
}

// FromSeed derives a ratchet from seed and advances it by a seed-dependent
// hidden offset, so that the position of a fresh ratchet does not reveal how
// many revisions it has seen.
func FromSeed(seed [32]byte) Ratchet {
	r := Zero(seed)
	h := sha3.New256()
	h.Write([]byte(domainOffset))
	h.Write(seed[:])
	sum := h.Sum(nil)
	off := uint64(sum[0]) | uint64(sum[1])<<8
	r, _ = r.Jump(off)
	return r
}

// Zero derives a ratchet at position zero from seed.
func Zero(seed [32]byte) Ratchet {
	var r Ratchet
	pre := hash(seed[:])
	r.chains[Levels-1] = hash(pre[:])
	r.reseedBelow(Levels-1, pre)
	return r
}

// Position is the number of advances since the zero state, modulo 2^64.
// The zero state itself is not recoverable from the position.
func (r Ratchet) Position() uint64 {
	var p uint64
	for i := Levels - 1; i >= 0; i-- {
		p = p*radix + uint64(r.counts[i])
	}
	return p
}

// Advance returns the state one revision ahead.
func (r Ratchet) Advance() Ratchet {
	r.inc()
	return r
}

// Jump returns the state n revisions ahead. It fails with
// common.ErrInvalidArgument if that would overflow the position space.
func (r Ratchet) Jump(n uint64) (Ratchet, error) {
	start := r.Position()
	target := start + n
	if target < start {
		return Ratchet{}, fmt.Errorf("%w: jump of %d overflows ratchet position %d", common.ErrInvalidArgument, n, start)
	}
	for p := start; p != target; p = r.Position() {
		r.stepLevel(largestLevel(p, target))
	}
	return r, nil
}

// JumpInt is Jump for signed offsets; negative offsets are rejected.
func (r Ratchet) JumpInt(n int64) (Ratchet, error) {
	if n < 0 {
		return Ratchet{}, fmt.Errorf("%w: negative ratchet jump %d", common.ErrInvalidArgument, n)
	}
	return r.Jump(uint64(n))
}

// DeriveKey returns the 32-byte key for the current revision.
func (r Ratchet) DeriveKey() [32]byte {
	return r.DeriveKeyWithDomain(domainKey)
}

// DeriveKeyWithDomain derives an independent 32-byte value for the current
// revision, separated from other derivations by domain.
func (r Ratchet) DeriveKeyWithDomain(domain string) [32]byte {
	h := sha3.New256()
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], uint64(len(domain)))
	h.Write(l[:])
	h.Write([]byte(domain))
	for i := range r.chains {
		h.Write(r.chains[i][:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Equal compares two states in constant time.
func (r Ratchet) Equal(o Ratchet) bool {
	a, _ := r.MarshalBinary()
	b, _ := o.MarshalBinary()
	return subtle.ConstantTimeCompare(a, b) == 1
}

// IsZero reports whether r is the uninitialised value.
func (r Ratchet) IsZero() bool {
	return r == Ratchet{}
}

func (r Ratchet) String() string {
	return fmt.Sprintf("ratchet@%d", r.Position())
}

func (r *Ratchet) inc() {
	for i := 0; i < Levels-1; i++ {
		if r.counts[i] < radix-1 {
			r.stepLevel(i)
			return
		}
	}
	r.stepLevel(Levels - 1)
}

// stepLevel advances chain i by one and re-seeds everything below it from
// the value chain i held before the step. The counter at the top level wraps.
func (r *Ratchet) stepLevel(i int) {
	pre := r.chains[i]
	r.chains[i] = hash(pre[:])
	r.counts[i]++
	r.reseedBelow(i, pre)
}

// reseedBelow resets levels below i. Each level keeps hash(seed) and passes
// the complement of its own seed further down, so a stored chain value never
// determines the chains under it.
func (r *Ratchet) reseedBelow(i int, pre [chainSize]byte) {
	for j := i - 1; j >= 0; j-- {
		pre = hash(complement(pre))
		r.chains[j] = hash(pre[:])
		r.counts[j] = 0
	}
}

// largestLevel picks the highest level whose next boundary from p does not
// pass target. Stepping that level lands exactly on the boundary.
func largestLevel(p, target uint64) int {
	for i := Levels - 1; i > 0; i-- {
		unit := uint64(1) << (8 * uint(i))
		next := (p/unit)*unit + unit
		if next <= p {
			continue // boundary past 2^64
		}
		if next <= target {
			return i
		}
	}
	return 0
}

func hash(b []byte) [chainSize]byte {
	return sha3.Sum256(b)
}

func complement(b [chainSize]byte) []byte {
	out := make([]byte, chainSize)
	for i := range b {
		out[i] = ^b[i]
	}
	return out
}
