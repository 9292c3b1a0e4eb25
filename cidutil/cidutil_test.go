package cidutil

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

func TestCIDv1RawSHA256Deterministic(t *testing.T) {
	a, err := CIDv1RawSHA256CID([]byte("hello"))
	require.NoError(t, err)
	b, err := CIDv1RawSHA256CID([]byte("hello"))
	require.NoError(t, err)
	require.True(t, a.Equals(b))
	require.Equal(t, uint64(cid.Raw), a.Prefix().Codec)
	require.Equal(t, a.String(), CIDv1RawSHA256([]byte("hello")))

	c, err := CIDv1RawSHA256CID([]byte("hello!"))
	require.NoError(t, err)
	require.False(t, a.Equals(c))
}

func TestVerify(t *testing.T) {
	id, err := CIDv1RawSHA256CID([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, Verify(id, []byte("payload")))
	require.ErrorIs(t, Verify(id, []byte("tampered")), ErrMismatch)
}

func TestParse(t *testing.T) {
	id, err := CIDv1RawSHA256CID([]byte("payload"))
	require.NoError(t, err)
	got, err := Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = Parse("not-a-cid")
	require.Error(t, err)

	sum, err := multihash.Sum([]byte("payload"), multihash.SHA2_256, -1)
	require.NoError(t, err)
	_, err = Parse(cid.NewCidV1(cid.DagCBOR, sum).String())
	require.ErrorIs(t, err, ErrUnsupported)
	_, err = Parse(cid.NewCidV0(sum).String())
	require.ErrorIs(t, err, ErrUnsupported)
}
