package public

import (
	"fmt"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/dagfs/common"
	"xdao.co/dagfs/dagcbor"
)

const nodeVersion = "dagfs/public/v1"

// Node is a decoded public node: *Directory or *File.
type Node interface {
	Kind() common.NodeKind
	Meta() common.Metadata
	// ID is a process-local identifier assigned when the node was built or
	// loaded. It is never stored.
	ID() uint64
	// PreviousCIDs links the revisions this node replaced.
	PreviousCIDs() []cid.Cid

	isNode()
}

// Directory maps child names to child node CIDs.
type Directory struct {
	id       uint64
	Metadata common.Metadata
	Entries  map[string]cid.Cid
	Previous []cid.Cid
}

// File references externally stored content.
type File struct {
	id       uint64
	Metadata common.Metadata
	Content  cid.Cid
	Previous []cid.Cid
}

func NewDirectory(now time.Time) *Directory {
	return &Directory{
		id:       common.NextNodeID(),
		Metadata: common.NewMetadata(common.KindDir, now),
		Entries:  map[string]cid.Cid{},
	}
}

func (d *Directory) Kind() common.NodeKind   { return common.KindDir }
func (d *Directory) Meta() common.Metadata   { return d.Metadata }
func (d *Directory) ID() uint64              { return d.id }
func (d *Directory) PreviousCIDs() []cid.Cid { return append([]cid.Cid(nil), d.Previous...) }
func (d *Directory) isNode()                 {}

func (f *File) Kind() common.NodeKind   { return common.KindFile }
func (f *File) Meta() common.Metadata   { return f.Metadata }
func (f *File) ID() uint64              { return f.id }
func (f *File) PreviousCIDs() []cid.Cid { return append([]cid.Cid(nil), f.Previous...) }
func (f *File) isNode()                 {}

// clone returns a copy that can be modified without touching d. It gets a
// fresh id because it will become a different node.
func (d *Directory) clone() *Directory {
	entries := make(map[string]cid.Cid, len(d.Entries))
	for k, v := range d.Entries {
		entries[k] = v
	}
	return &Directory{
		id:       common.NextNodeID(),
		Metadata: d.Metadata,
		Entries:  entries,
		Previous: append([]cid.Cid(nil), d.Previous...),
	}
}

// wireNode is the block layout shared by both node kinds.
type wireNode struct {
	Version  string            `cbor:"1,keyasint"`
	Metadata common.Metadata   `cbor:"2,keyasint"`
	Entries  map[string][]byte `cbor:"3,keyasint,omitempty"`
	Content  []byte            `cbor:"4,keyasint,omitempty"`
	Previous [][]byte          `cbor:"5,keyasint,omitempty"`
}

func encodeNode(n Node) ([]byte, error) {
	w := wireNode{Version: nodeVersion, Metadata: n.Meta()}
	for _, p := range n.PreviousCIDs() {
		w.Previous = append(w.Previous, p.Bytes())
	}
	switch n := n.(type) {
	case *Directory:
		w.Entries = make(map[string][]byte, len(n.Entries))
		for name, c := range n.Entries {
			w.Entries[name] = c.Bytes()
		}
	case *File:
		if !n.Content.Defined() {
			return nil, fmt.Errorf("%w: file without content", common.ErrInvalidArgument)
		}
		w.Content = n.Content.Bytes()
	}
	return dagcbor.Encode(w)
}

func decodeNode(b []byte) (Node, error) {
	var w wireNode
	if err := dagcbor.Decode(b, &w); err != nil {
		return nil, err
	}
	if w.Version != nodeVersion {
		return nil, fmt.Errorf("%w: unsupported node version %q", dagcbor.ErrDecode, w.Version)
	}
	prev, err := castAll(w.Previous)
	if err != nil {
		return nil, err
	}

	switch w.Metadata.Kind {
	case common.KindDir:
		d := &Directory{id: common.NextNodeID(), Metadata: w.Metadata, Entries: make(map[string]cid.Cid, len(w.Entries)), Previous: prev}
		for name, raw := range w.Entries {
			c, err := cid.Cast(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %q: %v", dagcbor.ErrDecode, name, err)
			}
			d.Entries[name] = c
		}
		return d, nil
	case common.KindFile:
		c, err := cid.Cast(w.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: file content: %v", dagcbor.ErrDecode, err)
		}
		return &File{id: common.NextNodeID(), Metadata: w.Metadata, Content: c, Previous: prev}, nil
	default:
		return nil, fmt.Errorf("%w: unknown node kind %q", dagcbor.ErrDecode, w.Metadata.Kind)
	}
}

func castAll(raw [][]byte) ([]cid.Cid, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]cid.Cid, 0, len(raw))
	for _, b := range raw {
		c, err := cid.Cast(b)
		if err != nil {
			return nil, fmt.Errorf("%w: previous link: %v", dagcbor.ErrDecode, err)
		}
		out = append(out, c)
	}
	return out, nil
}
