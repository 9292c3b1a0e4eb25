package nameaccumulator

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/sha3"
)

const primeBits = 256

// Segment is one element of a name.
type Segment [32]byte

func NewSegment(r io.Reader) (Segment, error) {
	var s Segment
	if _, err := io.ReadFull(r, s[:]); err != nil {
		return Segment{}, fmt.Errorf("nameaccumulator: reading segment: %w", err)
	}
	return s, nil
}

// SegmentFromDigest derives a segment deterministically from data.
func SegmentFromDigest(data []byte) Segment {
	h := sha3.New256()
	h.Write([]byte("dagfs/nameaccumulator/segment/v1"))
	h.Write(data)
	var s Segment
	copy(s[:], h.Sum(nil))
	return s
}

func (s Segment) String() string { return hex.EncodeToString(s[:6]) }

func (s Segment) less(o Segment) bool { return bytes.Compare(s[:], o[:]) < 0 }

// Prime maps s to a 256-bit prime. Distinct segments map to distinct primes
// except with negligible probability. Each call searches afresh; Setup keeps
// the cache.
func (s Segment) Prime() *big.Int {
	buf := make([]byte, primeBits/8)
	var ctr [8]byte
	for i := uint64(0); ; i++ {
		binary.BigEndian.PutUint64(ctr[:], i)
		h := sha3.NewShake256()
		h.Write([]byte("dagfs/nameaccumulator/prime/v1"))
		h.Write(s[:])
		h.Write(ctr[:])
		h.Read(buf)
		buf[0] |= 0x80
		buf[len(buf)-1] |= 1
		p := new(big.Int).SetBytes(buf)
		if p.ProbablyPrime(20) {
			return p
		}
	}
}
