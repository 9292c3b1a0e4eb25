package private

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/dagfs/common"
	"xdao.co/dagfs/dagcbor"
)

const contentVersion = "dagfs/private/v1"

// Node is a decrypted private node: *Directory or *File.
type Node interface {
	Kind() common.NodeKind
	Meta() common.Metadata
	Header() Header
	// Previous is the content CID of the revision this one replaced, if any.
	// On a loaded node it is undefined until Tree.OpenPrevious has opened
	// the link with the replaced revision's key.
	Previous() cid.Cid
	// ID is a process-local identifier. It is never stored.
	ID() uint64

	isNode()
}

// Directory maps plaintext child names to child refs. Both only exist inside
// the sealed content block.
type Directory struct {
	id       uint64
	header   Header
	previous backLink
	Metadata common.Metadata
	Entries  map[string]PrivateRef
}

// File content is either inline in the sealed content block or split into
// chunk blocks sealed with a per-write content key.
type File struct {
	id         uint64
	header     Header
	previous   backLink
	Metadata   common.Metadata
	Size       int64
	inline     []byte
	chunks     []cid.Cid
	contentKey [32]byte
}

func (d *Directory) Kind() common.NodeKind { return common.KindDir }
func (d *Directory) Meta() common.Metadata { return d.Metadata }
func (d *Directory) Header() Header        { return d.header }
func (d *Directory) Previous() cid.Cid     { return d.previous.cid }
func (d *Directory) ID() uint64            { return d.id }
func (d *Directory) isNode()               {}

func (f *File) Kind() common.NodeKind { return common.KindFile }
func (f *File) Meta() common.Metadata { return f.Metadata }
func (f *File) Header() Header        { return f.header }
func (f *File) Previous() cid.Cid     { return f.previous.cid }
func (f *File) ID() uint64            { return f.id }
func (f *File) isNode()               {}

// backLink points at the revision a node replaced. It is stored sealed with
// that revision's temporal key, so a reader holding only the current key
// cannot follow it.
type backLink struct {
	cid    cid.Cid
	key    TemporalKey // of the replaced revision, known to writers
	sealed []byte      // as loaded
}

func linkTo(ref PrivateRef) backLink {
	return backLink{cid: ref.ContentCID, key: ref.TemporalKey}
}

func previousOf(n Node) *backLink {
	switch n := n.(type) {
	case *Directory:
		return &n.previous
	case *File:
		return &n.previous
	}
	return &backLink{}
}

func newDirectory(h Header, md common.Metadata) *Directory {
	return &Directory{id: common.NextNodeID(), header: h, Metadata: md, Entries: map[string]PrivateRef{}}
}

func (d *Directory) clone() *Directory {
	entries := make(map[string]PrivateRef, len(d.Entries))
	for k, v := range d.Entries {
		entries[k] = v
	}
	return &Directory{
		id:       common.NextNodeID(),
		header:   d.header,
		previous: d.previous,
		Metadata: d.Metadata,
		Entries:  entries,
	}
}

type wireContent struct {
	Version   string             `cbor:"1,keyasint"`
	Metadata  common.Metadata    `cbor:"2,keyasint"`
	HeaderCID []byte             `cbor:"3,keyasint"`
	Previous  []byte             `cbor:"4,keyasint,omitempty"`
	Entries   map[string]wireRef `cbor:"5,keyasint,omitempty"`
	Size      int64              `cbor:"6,keyasint,omitempty"`
	Inline    []byte             `cbor:"7,keyasint,omitempty"`
	Chunks    [][]byte           `cbor:"8,keyasint,omitempty"`
	Key       []byte             `cbor:"9,keyasint,omitempty"`
}

func encodeContent(n Node, headerCID cid.Cid, sealedPrevious []byte) ([]byte, error) {
	w := wireContent{
		Version:   contentVersion,
		Metadata:  n.Meta(),
		HeaderCID: headerCID.Bytes(),
		Previous:  sealedPrevious,
	}
	switch n := n.(type) {
	case *Directory:
		w.Entries = make(map[string]wireRef, len(n.Entries))
		for name, ref := range n.Entries {
			w.Entries[name] = ref.wire()
		}
	case *File:
		w.Size = n.Size
		w.Inline = n.inline
		if len(n.chunks) > 0 {
			w.Key = n.contentKey[:]
			for _, c := range n.chunks {
				w.Chunks = append(w.Chunks, c.Bytes())
			}
		}
	}
	return dagcbor.Encode(w)
}

// decodedContent is a content block before its header has been attached.
type decodedContent struct {
	headerCID      cid.Cid
	sealedPrevious []byte
	node           Node
}

func decodeContent(b []byte) (decodedContent, error) {
	var w wireContent
	if err := dagcbor.Decode(b, &w); err != nil {
		return decodedContent{}, err
	}
	if w.Version != contentVersion {
		return decodedContent{}, fmt.Errorf("%w: unsupported private node version %q", dagcbor.ErrDecode, w.Version)
	}
	hc, err := cid.Cast(w.HeaderCID)
	if err != nil {
		return decodedContent{}, fmt.Errorf("%w: header cid: %v", dagcbor.ErrDecode, err)
	}
	out := decodedContent{headerCID: hc, sealedPrevious: w.Previous}

	switch w.Metadata.Kind {
	case common.KindDir:
		d := &Directory{id: common.NextNodeID(), Metadata: w.Metadata, Entries: make(map[string]PrivateRef, len(w.Entries))}
		for name, wr := range w.Entries {
			ref, err := wr.ref()
			if err != nil {
				return decodedContent{}, fmt.Errorf("entry %q: %w", name, err)
			}
			d.Entries[name] = ref
		}
		out.node = d
	case common.KindFile:
		f := &File{id: common.NextNodeID(), Metadata: w.Metadata, Size: w.Size, inline: w.Inline}
		if len(w.Chunks) > 0 {
			if len(w.Key) != len(f.contentKey) {
				return decodedContent{}, fmt.Errorf("%w: file content key", dagcbor.ErrDecode)
			}
			copy(f.contentKey[:], w.Key)
			for _, raw := range w.Chunks {
				c, err := cid.Cast(raw)
				if err != nil {
					return decodedContent{}, fmt.Errorf("%w: chunk cid: %v", dagcbor.ErrDecode, err)
				}
				f.chunks = append(f.chunks, c)
			}
		}
		out.node = f
	default:
		return decodedContent{}, fmt.Errorf("%w: unknown node kind %q", dagcbor.ErrDecode, w.Metadata.Kind)
	}
	return out, nil
}

func attach(n Node, h Header, sealedPrevious []byte) {
	switch n := n.(type) {
	case *Directory:
		n.header, n.previous = h, backLink{sealed: sealedPrevious}
	case *File:
		n.header, n.previous = h, backLink{sealed: sealedPrevious}
	}
}
