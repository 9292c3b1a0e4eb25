package hamt

import (
	"bytes"
	"fmt"
	"math/bits"
	"sort"

	"github.com/ipfs/go-cid"

	"xdao.co/dagfs/dagcbor"
)

const (
	bitWidth   = 4
	fanout     = 1 << bitWidth
	bucketSize = 3
	maxDepth   = 256 / bitWidth
)

// Pair is one key with its set of values, sorted by CID bytes.
type Pair struct {
	Key    []byte
	Values []cid.Cid
}

type pointer struct {
	link   cid.Cid // set for child nodes
	bucket []Pair  // set for inline buckets
}

func (p pointer) isLink() bool { return p.link.Defined() }

type node struct {
	bitmap   uint16
	pointers []pointer
}

func (n *node) index(i int) (pos int, present bool) {
	bit := uint16(1) << uint(i)
	return bits.OnesCount16(n.bitmap & (bit - 1)), n.bitmap&bit != 0
}

func (n *node) clone() *node {
	return &node{bitmap: n.bitmap, pointers: append([]pointer(nil), n.pointers...)}
}

func (n *node) insertPointer(i, pos int, p pointer) {
	n.bitmap |= 1 << uint(i)
	n.pointers = append(n.pointers, pointer{})
	copy(n.pointers[pos+1:], n.pointers[pos:])
	n.pointers[pos] = p
}

func (n *node) removePointer(i, pos int) {
	n.bitmap &^= 1 << uint(i)
	n.pointers = append(n.pointers[:pos:pos], n.pointers[pos+1:]...)
}

// nibble returns the i-th 4-bit digit of hash, most significant first.
func nibble(hash []byte, i int) int {
	b := hash[i/2]
	if i%2 == 0 {
		return int(b >> 4)
	}
	return int(b & 0x0f)
}

func findPair(bucket []Pair, key []byte) (int, bool) {
	i := sort.Search(len(bucket), func(i int) bool { return bytes.Compare(bucket[i].Key, key) >= 0 })
	return i, i < len(bucket) && bytes.Equal(bucket[i].Key, key)
}

func addValue(values []cid.Cid, v cid.Cid) ([]cid.Cid, bool) {
	vb := v.Bytes()
	i := sort.Search(len(values), func(i int) bool { return bytes.Compare(values[i].Bytes(), vb) >= 0 })
	if i < len(values) && values[i].Equals(v) {
		return values, false
	}
	out := make([]cid.Cid, 0, len(values)+1)
	out = append(out, values[:i]...)
	out = append(out, v)
	out = append(out, values[i:]...)
	return out, true
}

type wirePair struct {
	Key    []byte   `cbor:"1,keyasint"`
	Values [][]byte `cbor:"2,keyasint"`
}

type wirePointer struct {
	Link   []byte     `cbor:"1,keyasint,omitempty"`
	Bucket []wirePair `cbor:"2,keyasint,omitempty"`
}

type wireNode struct {
	Version  string        `cbor:"1,keyasint"`
	Bitmap   uint16        `cbor:"2,keyasint"`
	Pointers []wirePointer `cbor:"3,keyasint"`
}

const nodeVersion = "dagfs/hamt/v1"

func encodeNode(n *node) ([]byte, error) {
	w := wireNode{Version: nodeVersion, Bitmap: n.bitmap, Pointers: make([]wirePointer, len(n.pointers))}
	for i, p := range n.pointers {
		if p.isLink() {
			w.Pointers[i].Link = p.link.Bytes()
			continue
		}
		for _, pair := range p.bucket {
			wp := wirePair{Key: pair.Key, Values: make([][]byte, len(pair.Values))}
			for j, v := range pair.Values {
				wp.Values[j] = v.Bytes()
			}
			w.Pointers[i].Bucket = append(w.Pointers[i].Bucket, wp)
		}
	}
	return dagcbor.Encode(w)
}

func decodeNode(b []byte) (*node, error) {
	var w wireNode
	if err := dagcbor.Decode(b, &w); err != nil {
		return nil, err
	}
	if w.Version != nodeVersion {
		return nil, fmt.Errorf("%w: unsupported hamt version %q", dagcbor.ErrDecode, w.Version)
	}
	if bits.OnesCount16(w.Bitmap) != len(w.Pointers) {
		return nil, fmt.Errorf("%w: hamt bitmap does not match pointers", dagcbor.ErrDecode)
	}
	n := &node{bitmap: w.Bitmap, pointers: make([]pointer, len(w.Pointers))}
	for i, wp := range w.Pointers {
		if len(wp.Link) > 0 {
			c, err := cid.Cast(wp.Link)
			if err != nil {
				return nil, fmt.Errorf("%w: hamt link: %v", dagcbor.ErrDecode, err)
			}
			n.pointers[i].link = c
			continue
		}
		if len(wp.Bucket) == 0 {
			return nil, fmt.Errorf("%w: empty hamt pointer", dagcbor.ErrDecode)
		}
		for _, pair := range wp.Bucket {
			p := Pair{Key: pair.Key}
			for _, raw := range pair.Values {
				c, err := cid.Cast(raw)
				if err != nil {
					return nil, fmt.Errorf("%w: hamt value: %v", dagcbor.ErrDecode, err)
				}
				p.Values = append(p.Values, c)
			}
			n.pointers[i].bucket = append(n.pointers[i].bucket, p)
		}
	}
	return n, nil
}
