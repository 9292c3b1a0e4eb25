package private

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"xdao.co/dagfs/common"
)

// Cipher selects the authenticated encryption used for every private block.
// Sealed blocks carry no algorithm marker; a tree must be read with the
// cipher it was written with.
type Cipher int

const (
	AES256GCM Cipher = iota
	XChaCha20Poly1305
)

func (c Cipher) String() string {
	switch c {
	case AES256GCM:
		return "aes-256-gcm"
	case XChaCha20Poly1305:
		return "xchacha20-poly1305"
	default:
		return fmt.Sprintf("cipher(%d)", int(c))
	}
}

// ParseCipher accepts the names printed by String.
func ParseCipher(s string) (Cipher, error) {
	switch s {
	case "", "aes-256-gcm":
		return AES256GCM, nil
	case "xchacha20-poly1305":
		return XChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("%w: unknown cipher %q", common.ErrInvalidArgument, s)
	}
}

func (c Cipher) aead(key [32]byte) (cipher.AEAD, error) {
	switch c {
	case AES256GCM:
		block, err := aes.NewCipher(key[:])
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case XChaCha20Poly1305:
		return chacha20poly1305.NewX(key[:])
	default:
		return nil, fmt.Errorf("%w: unknown cipher %d", common.ErrInvalidArgument, int(c))
	}
}

// seal returns nonce || ciphertext.
func (c Cipher) seal(rand io.Reader, key [32]byte, plaintext []byte) ([]byte, error) {
	a, err := c.aead(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, a.NonceSize(), a.NonceSize()+len(plaintext)+a.Overhead())
	if _, err := io.ReadFull(rand, out); err != nil {
		return nil, fmt.Errorf("private: reading nonce: %w", err)
	}
	return a.Seal(out, out, plaintext, nil), nil
}

// open fails with common.ErrAuthenticationFailure for a wrong key or any
// tampering.
func (c Cipher) open(key [32]byte, sealed []byte) ([]byte, error) {
	a, err := c.aead(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < a.NonceSize()+a.Overhead() {
		return nil, fmt.Errorf("%w: sealed block too short", common.ErrAuthenticationFailure)
	}
	nonce, ct := sealed[:a.NonceSize()], sealed[a.NonceSize():]
	pt, err := a.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, common.ErrAuthenticationFailure
	}
	return pt, nil
}
