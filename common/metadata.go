package common

import (
	"time"

	"go.uber.org/atomic"
)

type NodeKind string

const (
	KindDir  NodeKind = "dir"
	KindFile NodeKind = "file"
)

// Metadata is carried by every node. Times are unix microseconds in UTC so
// that encoding is exact.
type Metadata struct {
	Kind     NodeKind `cbor:"1,keyasint"`
	Created  int64    `cbor:"2,keyasint"`
	Modified int64    `cbor:"3,keyasint"`
}

func NewMetadata(kind NodeKind, now time.Time) Metadata {
	ts := now.UTC().UnixMicro()
	return Metadata{Kind: kind, Created: ts, Modified: ts}
}

// Touch returns a copy with the modification time set to now.
func (m Metadata) Touch(now time.Time) Metadata {
	m.Modified = now.UTC().UnixMicro()
	return m
}

func (m Metadata) CreatedAt() time.Time  { return time.UnixMicro(m.Created).UTC() }
func (m Metadata) ModifiedAt() time.Time { return time.UnixMicro(m.Modified).UTC() }

func (m Metadata) IsDir() bool  { return m.Kind == KindDir }
func (m Metadata) IsFile() bool { return m.Kind == KindFile }

// Entry is one row of a directory listing.
type Entry struct {
	Name     string
	Metadata Metadata
}

var nodeIDs atomic.Uint64

// NextNodeID hands out process-local identifiers for in-memory nodes. They
// are used for equality checks and debugging only and are never encoded.
func NextNodeID() uint64 {
	return nodeIDs.Inc()
}
