package private

import (
	"crypto/subtle"

	"golang.org/x/crypto/sha3"

	"xdao.co/dagfs/nameaccumulator"
	"xdao.co/dagfs/ratchet"
)

const (
	domainSnapshot = "dagfs/private/snapshot/v1"
	domainRevision = "dagfs/private/revision/v1"
	domainLabel    = "dagfs/private/label/v1"
)

// TemporalKey opens one revision of a node: its header and, through the
// derived SnapshotKey, its content.
type TemporalKey [32]byte

// SnapshotKey opens only the content of one revision.
type SnapshotKey [32]byte

// Label is the forest key under which a node revision is stored.
type Label [32]byte

func temporalKeyOf(r ratchet.Ratchet) TemporalKey {
	return TemporalKey(r.DeriveKey())
}

// SnapshotKey derives the content key from k.
func (k TemporalKey) SnapshotKey() SnapshotKey {
	h := sha3.New256()
	h.Write([]byte(domainSnapshot))
	h.Write(k[:])
	var s SnapshotKey
	copy(s[:], h.Sum(nil))
	return s
}

func (k TemporalKey) Equal(o TemporalKey) bool {
	return subtle.ConstantTimeCompare(k[:], o[:]) == 1
}

// revisionSegment is the per-revision element added to a node's name to
// form its label. It changes with every ratchet advance.
func revisionSegment(r ratchet.Ratchet) nameaccumulator.Segment {
	return nameaccumulator.Segment(r.DeriveKeyWithDomain(domainRevision))
}

// labelFor hashes the accumulator of name plus the revision segment of r.
func labelFor(setup *nameaccumulator.Setup, name nameaccumulator.Name, r ratchet.Ratchet) Label {
	acc := name.WithSegments(revisionSegment(r)).Accumulator(setup)
	h := sha3.New256()
	h.Write([]byte(domainLabel))
	h.Write(acc.Bytes(setup))
	var l Label
	copy(l[:], h.Sum(nil))
	return l
}
