package private

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/dagfs/common"
	"xdao.co/dagfs/dagcbor"
)

// PrivateRef is everything needed to find and open one node revision. It is
// a secret: holding it grants read access to that revision and, by
// advancing the ratchet in its header, to every later one.
type PrivateRef struct {
	Label       Label
	TemporalKey TemporalKey
	ContentCID  cid.Cid
}

// Root is a private tree: the forest holding every stored revision plus the
// reference to the root directory.
type Root struct {
	Forest cid.Cid
	Ref    PrivateRef
}

type wireRef struct {
	Label       []byte `cbor:"1,keyasint"`
	TemporalKey []byte `cbor:"2,keyasint"`
	ContentCID  []byte `cbor:"3,keyasint"`
}

func (r PrivateRef) wire() wireRef {
	return wireRef{Label: r.Label[:], TemporalKey: r.TemporalKey[:], ContentCID: r.ContentCID.Bytes()}
}

func (w wireRef) ref() (PrivateRef, error) {
	var r PrivateRef
	if len(w.Label) != len(r.Label) || len(w.TemporalKey) != len(r.TemporalKey) {
		return PrivateRef{}, fmt.Errorf("%w: malformed private ref", common.ErrInvalidArgument)
	}
	c, err := cid.Cast(w.ContentCID)
	if err != nil {
		return PrivateRef{}, fmt.Errorf("%w: private ref content cid: %v", common.ErrInvalidArgument, err)
	}
	copy(r.Label[:], w.Label)
	copy(r.TemporalKey[:], w.TemporalKey)
	r.ContentCID = c
	return r, nil
}

type wireRoot struct {
	Version string  `cbor:"1,keyasint"`
	Forest  []byte  `cbor:"2,keyasint"`
	Ref     wireRef `cbor:"3,keyasint"`
}

const rootVersion = "dagfs/private-root/v1"

// EncodeRoot serialises r for safekeeping. The output contains key material.
func EncodeRoot(r Root) ([]byte, error) {
	return dagcbor.Encode(wireRoot{Version: rootVersion, Forest: r.Forest.Bytes(), Ref: r.Ref.wire()})
}

func DecodeRoot(b []byte) (Root, error) {
	var w wireRoot
	if err := dagcbor.Decode(b, &w); err != nil {
		return Root{}, err
	}
	if w.Version != rootVersion {
		return Root{}, fmt.Errorf("%w: unsupported private root version %q", common.ErrInvalidArgument, w.Version)
	}
	forest, err := cid.Cast(w.Forest)
	if err != nil {
		return Root{}, fmt.Errorf("%w: forest cid: %v", common.ErrInvalidArgument, err)
	}
	ref, err := w.Ref.ref()
	if err != nil {
		return Root{}, err
	}
	return Root{Forest: forest, Ref: ref}, nil
}
