package keys

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyStore(t *testing.T) {
	ks, err := CreateKeyStore(afero.NewMemMapFs(), "/keys")
	require.NoError(t, err)

	entries, err := ks.ListKeys()
	require.NoError(t, err)
	assert.Empty(t, entries)

	id, path, err := ks.InitializeRootKey("alice", seq(SeedSize), false)
	require.NoError(t, err)
	assert.Equal(t, "/keys/alice/root.key", path)

	_, _, err = ks.InitializeRootKey("alice", seq(SeedSize), false)
	assert.Error(t, err, "existing key must not be overwritten")
	_, _, err = ks.InitializeRootKey("alice", seq(SeedSize), true)
	require.NoError(t, err)

	roleID, _, err := ks.DeriveRoleKey("alice", "publisher", false)
	require.NoError(t, err)
	assert.NotEqual(t, id, roleID)

	s, err := ks.LoadSigner(AlgEd25519, "", "alice", "", "")
	require.NoError(t, err)
	assert.Equal(t, id, SignerID(s.Alg(), s.PublicKey()))

	rs, err := ks.LoadSigner(AlgEd25519, "", "alice", "publisher", "")
	require.NoError(t, err)
	assert.Equal(t, roleID, SignerID(rs.Alg(), rs.PublicKey()))

	entries, err = ks.ListKeys()
	require.NoError(t, err)
	assert.Equal(t, []KeyEntry{{Name: "alice", Roles: []string{"publisher"}}}, entries)

	_, err = ks.LoadSeed("", "", "", "")
	assert.ErrorIs(t, err, ErrNoSigner)
	_, err = ks.LoadSeed("", "../etc", "", "")
	assert.Error(t, err)
}

func TestParseSeedHex(t *testing.T) {
	seed, err := ParseSeedHex("0x000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f\n")
	require.NoError(t, err)
	assert.Equal(t, seq(SeedSize), seed)

	_, err = ParseSeedHex("abcd")
	assert.Error(t, err)
	_, err = ParseSeedHex("zz")
	assert.Error(t, err)
}
