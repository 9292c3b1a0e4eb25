package keys

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// SeedSize is the length of every seed handled by this package.
const SeedSize = 32

// DeriveRoleSeed deterministically derives a role-specific seed from a root seed.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", SeedSize)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("xdao-dagfs-keys-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("role:"))
	_, _ = h.Write([]byte(role))
	return h.Sum(nil)[:SeedSize], nil
}

// SignerID renders a public key as "<alg>:" + base64(pub).
func SignerID(alg Alg, pub []byte) string {
	return string(alg) + ":" + base64.StdEncoding.EncodeToString(pub)
}
