package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// ErrBadSignature is returned by Verify for any signature that does not
// check out, including malformed keys.
var ErrBadSignature = errors.New("keys: bad signature")

// Alg names a signature scheme.
type Alg string

const (
	AlgEd25519    Alg = "ed25519"
	AlgDilithium3 Alg = "dilithium3"
)

// ParseAlg accepts the scheme names above; "" selects Ed25519.
func ParseAlg(s string) (Alg, error) {
	switch Alg(s) {
	case "", AlgEd25519:
		return AlgEd25519, nil
	case AlgDilithium3:
		return AlgDilithium3, nil
	default:
		return "", fmt.Errorf("unsupported signature algorithm: %q", s)
	}
}

// Signer signs messages with one private key.
type Signer interface {
	Alg() Alg
	PublicKey() []byte
	Sign(message []byte) ([]byte, error)
}

// NewSigner builds a signer for alg from a seed.
func NewSigner(alg Alg, seed []byte) (Signer, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	switch alg {
	case AlgEd25519:
		return ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
	case AlgDilithium3:
		var s [mode3.SeedSize]byte
		copy(s[:], sha3Sum(append([]byte("dilithium3:"), seed...)))
		pk, sk := mode3.NewKeyFromSeed(&s)
		pub, err := pk.MarshalBinary()
		if err != nil {
			return nil, err
		}
		return dilithiumSigner{priv: sk, pub: pub}, nil
	default:
		return nil, fmt.Errorf("unsupported signature algorithm: %q", alg)
	}
}

// Verify checks sig over message for the public key pub.
func Verify(alg Alg, pub, message, sig []byte) error {
	switch alg {
	case AlgEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return fmt.Errorf("%w: ed25519 public key must be %d bytes", ErrBadSignature, ed25519.PublicKeySize)
		}
		digest := sha256.Sum256(message)
		if !ed25519.Verify(pub, digest[:], sig) {
			return ErrBadSignature
		}
		return nil
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return fmt.Errorf("%w: %v", ErrBadSignature, err)
		}
		if !mode3.Verify(&pk, sha3Sum(message), sig) {
			return ErrBadSignature
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported algorithm %q", ErrBadSignature, alg)
	}
}

type ed25519Signer struct{ priv ed25519.PrivateKey }

func (s ed25519Signer) Alg() Alg { return AlgEd25519 }

func (s ed25519Signer) PublicKey() []byte {
	return []byte(s.priv.Public().(ed25519.PublicKey))
}

// Sign signs sha256(message).
func (s ed25519Signer) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return ed25519.Sign(s.priv, digest[:]), nil
}

type dilithiumSigner struct {
	priv *mode3.PrivateKey
	pub  []byte
}

func (s dilithiumSigner) Alg() Alg          { return AlgDilithium3 }
func (s dilithiumSigner) PublicKey() []byte { return s.pub }

// Sign signs sha3-256(message).
func (s dilithiumSigner) Sign(message []byte) ([]byte, error) {
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, sha3Sum(message), sig)
	return sig, nil
}

func sha3Sum(b []byte) []byte {
	s := sha3.Sum256(b)
	return s[:]
}

