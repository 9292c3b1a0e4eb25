package keys

import (
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	for _, alg := range []Alg{AlgEd25519, AlgDilithium3} {
		t.Run(string(alg), func(t *testing.T) {
			s, err := NewSigner(alg, seq(SeedSize))
			require.NoError(t, err)
			assert.Equal(t, alg, s.Alg())

			msg := []byte("root record")
			sig, err := s.Sign(msg)
			require.NoError(t, err)
			require.NoError(t, Verify(alg, s.PublicKey(), msg, sig))

			assert.ErrorIs(t, Verify(alg, s.PublicKey(), []byte("other"), sig), ErrBadSignature)
			sig[0] ^= 1
			assert.ErrorIs(t, Verify(alg, s.PublicKey(), msg, sig), ErrBadSignature)
		})
	}
}

func TestDilithiumSignatureSize(t *testing.T) {
	s, err := NewSigner(AlgDilithium3, seq(SeedSize))
	require.NoError(t, err)
	sig, err := s.Sign([]byte("x"))
	require.NoError(t, err)
	assert.Len(t, sig, mode3.SignatureSize)
	assert.Len(t, s.PublicKey(), mode3.PublicKeySize)
}

func TestSignerIsDeterministicPerSeed(t *testing.T) {
	a, err := NewSigner(AlgDilithium3, seq(SeedSize))
	require.NoError(t, err)
	b, err := NewSigner(AlgDilithium3, seq(SeedSize))
	require.NoError(t, err)
	assert.Equal(t, a.PublicKey(), b.PublicKey())

	e, err := NewSigner(AlgEd25519, seq(SeedSize))
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey(), e.PublicKey())
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	assert.ErrorIs(t, Verify(AlgEd25519, []byte{1, 2}, []byte("m"), nil), ErrBadSignature)
	assert.ErrorIs(t, Verify(AlgDilithium3, []byte{1, 2}, []byte("m"), nil), ErrBadSignature)
	assert.ErrorIs(t, Verify("rsa", nil, nil, nil), ErrBadSignature)

	_, err := NewSigner("rsa", seq(SeedSize))
	assert.Error(t, err)
	_, err = NewSigner(AlgEd25519, seq(3))
	assert.Error(t, err)

	alg, err := ParseAlg("")
	require.NoError(t, err)
	assert.Equal(t, AlgEd25519, alg)
	_, err = ParseAlg("rsa")
	assert.Error(t, err)
}
