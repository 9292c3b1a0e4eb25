// Package rootlog publishes tree roots as a signed, append-only chain of
// records stored in the block store. A Pointer names the newest record.
//
// Publishing is last-writer-wins: a record always links the head it
// replaced and nothing is merged.
package rootlog

import (
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/dagfs/dagcbor"
	"xdao.co/dagfs/keys"
)

var (
	// ErrEmpty is returned when the pointer has no head yet.
	ErrEmpty = errors.New("rootlog: no records published")
	// ErrBadRecord covers malformed, unsigned, or mis-linked records.
	ErrBadRecord = errors.New("rootlog: bad record")
	// ErrUntrusted is returned for a record signed by a key outside the
	// trusted set.
	ErrUntrusted = errors.New("rootlog: untrusted signer")
)

// Kind says what Root refers to.
type Kind string

const (
	// KindPublic records a public tree root CID.
	KindPublic Kind = "public"
	// KindPrivate records a private forest CID. The root ref itself is a
	// secret and is never published.
	KindPrivate Kind = "private"
)

// Record is one published root.
type Record struct {
	Kind Kind
	Root cid.Cid
	// Seq is 1 for the first record and grows by one per publish.
	Seq  uint64
	Time time.Time
	// Prev is the record this one replaced, undefined for the first.
	Prev   cid.Cid
	Alg    keys.Alg
	Signer []byte
	Sig    []byte
}

const recordVersion = "dagfs/rootlog/v1"

type wireRecord struct {
	Version string `cbor:"1,keyasint"`
	Kind    string `cbor:"2,keyasint"`
	Root    []byte `cbor:"3,keyasint"`
	Seq     uint64 `cbor:"4,keyasint"`
	Time    int64  `cbor:"5,keyasint"`
	Prev    []byte `cbor:"6,keyasint,omitempty"`
	Alg     string `cbor:"7,keyasint"`
	Signer  []byte `cbor:"8,keyasint"`
	Sig     []byte `cbor:"9,keyasint,omitempty"`
}

func (r Record) wire() wireRecord {
	w := wireRecord{
		Version: recordVersion,
		Kind:    string(r.Kind),
		Root:    r.Root.Bytes(),
		Seq:     r.Seq,
		Time:    r.Time.UnixMicro(),
		Alg:     string(r.Alg),
		Signer:  r.Signer,
		Sig:     r.Sig,
	}
	if r.Prev.Defined() {
		w.Prev = r.Prev.Bytes()
	}
	return w
}

// signingBytes is the canonical encoding of r without its signature.
func (r Record) signingBytes() ([]byte, error) {
	w := r.wire()
	w.Sig = nil
	return dagcbor.Encode(w)
}

// Encode returns the block bytes of r.
func (r Record) Encode() ([]byte, error) {
	return dagcbor.Encode(r.wire())
}

// Decode parses a record block. It does not check the signature.
func Decode(b []byte) (Record, error) {
	var w wireRecord
	if err := dagcbor.Decode(b, &w); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	if w.Version != recordVersion {
		return Record{}, fmt.Errorf("%w: unsupported version %q", ErrBadRecord, w.Version)
	}
	root, err := cid.Cast(w.Root)
	if err != nil {
		return Record{}, fmt.Errorf("%w: root: %v", ErrBadRecord, err)
	}
	r := Record{
		Kind:   Kind(w.Kind),
		Root:   root,
		Seq:    w.Seq,
		Time:   time.UnixMicro(w.Time).UTC(),
		Alg:    keys.Alg(w.Alg),
		Signer: w.Signer,
		Sig:    w.Sig,
	}
	if len(w.Prev) > 0 {
		if r.Prev, err = cid.Cast(w.Prev); err != nil {
			return Record{}, fmt.Errorf("%w: prev: %v", ErrBadRecord, err)
		}
	}
	return r, nil
}

// Sign fills in the signer fields of r and signs it.
func Sign(r Record, s keys.Signer) (Record, error) {
	r.Alg = s.Alg()
	r.Signer = s.PublicKey()
	r.Sig = nil
	msg, err := r.signingBytes()
	if err != nil {
		return Record{}, err
	}
	if r.Sig, err = s.Sign(msg); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Verify checks the signature of r against its embedded signer key.
func Verify(r Record) error {
	if len(r.Sig) == 0 {
		return fmt.Errorf("%w: unsigned", ErrBadRecord)
	}
	msg, err := r.signingBytes()
	if err != nil {
		return err
	}
	if err := keys.Verify(r.Alg, r.Signer, msg, r.Sig); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	return nil
}

// SignerID is the keys.SignerID of the record's signer.
func (r Record) SignerID() string {
	return keys.SignerID(r.Alg, r.Signer)
}
