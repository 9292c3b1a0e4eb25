package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestDeriveRoleSeedDeterministic(t *testing.T) {
	root := seq(SeedSize)

	a, err := DeriveRoleSeed(root, "publisher")
	require.NoError(t, err)
	b, err := DeriveRoleSeed(root, "publisher")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveRoleSeed(root, "reader")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = DeriveRoleSeed(root[:5], "publisher")
	assert.Error(t, err)
	_, err = DeriveRoleSeed(root, "bad role")
	assert.Error(t, err)
}

func TestSignerIDFormat(t *testing.T) {
	s, err := NewSigner(AlgEd25519, seq(SeedSize))
	require.NoError(t, err)
	id := SignerID(s.Alg(), s.PublicKey())
	require.True(t, strings.HasPrefix(id, "ed25519:"))
	pub, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(id, "ed25519:"))
	require.NoError(t, err)
	assert.Len(t, pub, ed25519.PublicKeySize)
}
