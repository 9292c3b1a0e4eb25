package nameaccumulator

import (
	"crypto/rand"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSetup(t *testing.T) *Setup {
	t.Helper()
	s, err := TrustedSetup(rand.Reader, 512)
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	return s
}

func seg(t *testing.T) Segment {
	t.Helper()
	s, err := NewSegment(rand.Reader)
	require.NoError(t, err)
	return s
}

func TestAddIsCommutative(t *testing.T) {
	for name, s := range map[string]*Setup{"trusted": testSetup(t), "rsa2048": SetupFromRSA2048()} {
		t.Run(name, func(t *testing.T) {
			a, b := seg(t), seg(t)
			acc := s.Add(s.Empty(), seg(t))

			ab := s.Add(s.Add(acc, a), b)
			ba := s.Add(s.Add(acc, b), a)
			assert.True(t, ab.Equal(ba))
			assert.True(t, ab.Equal(s.AddAll(acc, b, a)))
			assert.False(t, ab.Equal(acc))
		})
	}
}

func TestWitnessVerifies(t *testing.T) {
	s := testSetup(t)
	a, b, c := seg(t), seg(t), seg(t)
	n := NewName(a, b, c)
	acc := n.Accumulator(s)

	for _, x := range []Segment{a, b, c} {
		w, err := n.Witness(s, x)
		require.NoError(t, err)
		assert.True(t, Verify(s, acc, x, w))
	}
}

func TestVerifyRejectsNonMembers(t *testing.T) {
	s := testSetup(t)
	a, b, outsider := seg(t), seg(t), seg(t)
	n := NewName(a, b)
	acc := n.Accumulator(s)

	wa, err := n.Witness(s, a)
	require.NoError(t, err)
	assert.False(t, Verify(s, acc, outsider, wa))

	// A stale accumulator that predates b cannot vouch for b.
	stale := NewName(a).Accumulator(s)
	wb, err := n.Witness(s, b)
	require.NoError(t, err)
	assert.False(t, Verify(s, stale, b, wb))

	assert.False(t, Verify(s, acc, a, Witness{}))
	assert.False(t, Verify(nil, acc, a, wa))
	assert.False(t, Verify(s, Accumulator{}, a, wa))

	_, err = n.Witness(s, outsider)
	require.ErrorIs(t, err, ErrNotMember)
}

func TestNameIsASet(t *testing.T) {
	s := testSetup(t)
	a, b := seg(t), seg(t)
	n1 := NewName(a, b)
	n2 := NewName(b).WithSegments(a, a)
	assert.True(t, n1.Equal(n2))
	assert.Equal(t, 2, n2.Len())
	assert.True(t, n1.Accumulator(s).Equal(n2.Accumulator(s)))
	assert.True(t, n1.Contains(a))
	assert.False(t, n1.Contains(seg(t)))

	// Extending does not touch the receiver.
	n3 := n1.WithSegments(seg(t))
	assert.Equal(t, 2, n1.Len())
	assert.Equal(t, 3, n3.Len())
	assert.False(t, n1.Accumulator(s).Equal(n3.Accumulator(s)))
}

func TestEmptyNameIsIdentity(t *testing.T) {
	s := testSetup(t)
	assert.True(t, NewName().Accumulator(s).Equal(s.Empty()))
}

func TestEncodingRoundTrip(t *testing.T) {
	s := testSetup(t)
	n := NewName(seg(t), seg(t))
	acc := n.Accumulator(s)

	b := acc.Bytes(s)
	assert.Len(t, b, s.ByteLen())
	back, err := AccumulatorFromBytes(s, b)
	require.NoError(t, err)
	assert.True(t, acc.Equal(back))

	_, err = AccumulatorFromBytes(s, b[1:])
	require.ErrorIs(t, err, ErrEncoding)

	enc, err := cbor.Marshal(n)
	require.NoError(t, err)
	var decoded Name
	require.NoError(t, cbor.Unmarshal(enc, &decoded))
	assert.True(t, n.Equal(decoded))
}

func TestSegmentFromDigestIsDeterministic(t *testing.T) {
	assert.Equal(t, SegmentFromDigest([]byte("x")), SegmentFromDigest([]byte("x")))
	assert.NotEqual(t, SegmentFromDigest([]byte("x")), SegmentFromDigest([]byte("y")))
	p := SegmentFromDigest([]byte("x")).Prime()
	assert.Equal(t, primeBits, p.BitLen())
	assert.True(t, p.ProbablyPrime(20))
}

func TestTrustedSetupRejectsBadSizes(t *testing.T) {
	_, err := TrustedSetup(rand.Reader, 100)
	require.ErrorIs(t, err, ErrInvalidSetup)
}

func TestPrimeCacheIsPerSetupAndExpires(t *testing.T) {
	a, b := testSetup(t), testSetup(t)
	x := seg(t)

	p := a.prime(x)
	assert.Same(t, p, a.prime(x))
	assert.Equal(t, 0, p.Cmp(x.Prime()))
	assert.Equal(t, 1, a.primes.ItemCount())
	assert.Nil(t, b.primes, "an unused setup holds no primes")

	a.Add(a.Empty(), seg(t))
	assert.Equal(t, 2, a.primes.ItemCount())

	for k, item := range a.primes.Items() {
		assert.NotZero(t, item.Expiration, "entry %x never expires", k)
	}
}
