// Package cidutil fixes the one CID form used throughout dagfs: CIDv1 with
// the raw codec and a sha2-256 multihash. Public nodes, encrypted private
// blocks, forest nodes and user content are all addressed this way.
package cidutil

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	// ErrMismatch is returned by Verify when bytes do not hash to the CID.
	ErrMismatch = errors.New("cidutil: bytes do not match cid")
	// ErrUnsupported is returned by Parse for CIDs of another form.
	ErrUnsupported = errors.New("cidutil: not a CIDv1 raw sha2-256 cid")
)

// Prefix is the CID prefix every block carries.
var Prefix = cid.Prefix{
	Version:  1,
	Codec:    cid.Raw,
	MhType:   multihash.SHA2_256,
	MhLength: -1,
}

// CIDv1RawSHA256 is CIDv1RawSHA256CID in string form.
func CIDv1RawSHA256(data []byte) string {
	id, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return ""
	}
	return id.String()
}

func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	return Prefix.Sum(data)
}

// Verify checks that data hashes to id.
func Verify(id cid.Cid, data []byte) error {
	got, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return ErrMismatch
	}
	return nil
}

// Parse decodes s and rejects CIDs not in the dagfs form.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("cidutil: %q: %w", s, err)
	}
	p := id.Prefix()
	if p.Version != 1 || p.Codec != cid.Raw || p.MhType != multihash.SHA2_256 {
		return cid.Undef, fmt.Errorf("%w: %s", ErrUnsupported, s)
	}
	return id, nil
}
