// Package nameaccumulator implements an RSA accumulator over 32-byte name
// segments. A node's private address is the accumulation of every segment
// on its path, so sibling order never changes the value and the value alone
// does not reveal which segments went into it.
package nameaccumulator

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/sha3"
)

// primeTTL bounds how long a segment's prime stays cached. Inumbers of busy
// directories are looked up constantly; revision segments are used once.
const primeTTL = 5 * time.Minute

var (
	ErrInvalidSetup = errors.New("nameaccumulator: invalid setup")
	ErrNotMember    = errors.New("nameaccumulator: segment is not a member")
	ErrEncoding     = errors.New("nameaccumulator: malformed encoding")
)

// rsa2048 is the RSA Factoring Challenge modulus whose factorisation was
// destroyed, making it a setup nobody holds a trapdoor for.
const rsa2048 = "25195908475657893494027183240048398571429282126204032027777137836043662020707595556264018525880784406918290641249515082189298559149176184502808489120072844992687392807287776735971418347270261896375014971824691165077613379859095700097330459748808428401797429100642458691817195118746121515172654632282216869987549182422433637259085141865462043576798423387184774447920739934236584823824281198163815010674810451660377306056201619676256133844143603833904414952634432190114657544454178424020924616515723350778707749817125772467962926386356373289912154831438167899885040445364023527381951378636564391212010397122822120720357"

// Setup is the public group description: an RSA modulus of unknown
// factorisation and a quadratic-residue generator.
type Setup struct {
	Modulus   *big.Int
	Generator *big.Int

	primesOnce sync.Once
	primes     *gocache.Cache
}

// prime is Segment.Prime through a per-setup cache whose entries expire.
func (s *Setup) prime(seg Segment) *big.Int {
	s.primesOnce.Do(func() { s.primes = gocache.New(primeTTL, 2*primeTTL) })
	k := string(seg[:])
	if p, ok := s.primes.Get(k); ok {
		return p.(*big.Int)
	}
	p := seg.Prime()
	s.primes.SetDefault(k, p)
	return p
}

var (
	rsa2048Once  sync.Once
	rsa2048Setup *Setup
)

// SetupFromRSA2048 returns the shared default setup.
func SetupFromRSA2048() *Setup {
	rsa2048Once.Do(func() {
		n, ok := new(big.Int).SetString(rsa2048, 10)
		if !ok {
			panic("nameaccumulator: bad RSA-2048 constant")
		}
		rsa2048Setup = &Setup{Modulus: n, Generator: hashToGroup(n, []byte("dagfs/nameaccumulator/generator/v1"))}
	})
	return rsa2048Setup
}

// TrustedSetup generates a fresh modulus of the given size and discards its
// factors. Whoever runs it could keep them, so it is meant for tests and
// closed deployments.
func TrustedSetup(r io.Reader, bits int) (*Setup, error) {
	if bits < 256 || bits%2 != 0 {
		return nil, fmt.Errorf("%w: modulus size %d", ErrInvalidSetup, bits)
	}
	if r == nil {
		r = rand.Reader
	}
	for {
		p, err := rand.Prime(r, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := rand.Prime(r, bits/2)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		if n.BitLen() != bits {
			continue
		}
		seed := make([]byte, 32)
		if _, err := io.ReadFull(r, seed); err != nil {
			return nil, err
		}
		return &Setup{Modulus: n, Generator: hashToGroup(n, seed)}, nil
	}
}

func (s *Setup) Validate() error {
	if s == nil || s.Modulus == nil || s.Generator == nil {
		return fmt.Errorf("%w: missing modulus or generator", ErrInvalidSetup)
	}
	if s.Modulus.Sign() <= 0 || s.Modulus.Bit(0) == 0 {
		return fmt.Errorf("%w: modulus must be odd and positive", ErrInvalidSetup)
	}
	if s.Generator.Sign() <= 0 || s.Generator.Cmp(s.Modulus) >= 0 {
		return fmt.Errorf("%w: generator out of range", ErrInvalidSetup)
	}
	return nil
}

// ByteLen is the fixed encoded size of accumulators and witnesses.
func (s *Setup) ByteLen() int {
	return (s.Modulus.BitLen() + 7) / 8
}

// hashToGroup expands domain into an element of Z_N and squares it, landing
// in the quadratic residues.
func hashToGroup(n *big.Int, domain []byte) *big.Int {
	size := (n.BitLen()+7)/8 + 16
	buf := make([]byte, size)
	h := sha3.NewShake256()
	h.Write(domain)
	h.Read(buf)
	x := new(big.Int).SetBytes(buf)
	x.Mod(x, n)
	return x.Exp(x, big.NewInt(2), n)
}
