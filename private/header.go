package private

import (
	"fmt"
	"io"

	"xdao.co/dagfs/common"
	"xdao.co/dagfs/dagcbor"
	"xdao.co/dagfs/nameaccumulator"
	"xdao.co/dagfs/ratchet"
)

// Header identifies a private node across revisions. It is sealed with the
// temporal key of the revision it belongs to.
type Header struct {
	// INumber is the node's own name segment, chosen at random on creation.
	INumber nameaccumulator.Segment
	// Ratchet is the current revision.
	Ratchet ratchet.Ratchet
	// Name is the parent's name plus INumber.
	Name nameaccumulator.Name
}

func newHeader(rand io.Reader, parent nameaccumulator.Name) (Header, error) {
	inumber, err := nameaccumulator.NewSegment(rand)
	if err != nil {
		return Header{}, err
	}
	r, err := ratchet.New(rand)
	if err != nil {
		return Header{}, err
	}
	return Header{INumber: inumber, Ratchet: r, Name: parent.WithSegments(inumber)}, nil
}

func (h Header) TemporalKey() TemporalKey { return temporalKeyOf(h.Ratchet) }

func (h Header) label(setup *nameaccumulator.Setup) Label {
	return labelFor(setup, h.Name, h.Ratchet)
}

// advance moves to the next revision.
func (h Header) advance() Header {
	h.Ratchet = h.Ratchet.Advance()
	return h
}

// mountedUnder reports whether h's name is parent's name plus its inumber.
func (h Header) mountedUnder(parent nameaccumulator.Name) bool {
	return h.Name.Equal(parent.WithSegments(h.INumber))
}

type wireHeader struct {
	INumber []byte               `cbor:"1,keyasint"`
	Ratchet ratchet.Ratchet      `cbor:"2,keyasint"`
	Name    nameaccumulator.Name `cbor:"3,keyasint"`
}

func (h Header) encode() ([]byte, error) {
	return dagcbor.Encode(wireHeader{INumber: h.INumber[:], Ratchet: h.Ratchet, Name: h.Name})
}

func decodeHeader(b []byte) (Header, error) {
	var w wireHeader
	if err := dagcbor.Decode(b, &w); err != nil {
		return Header{}, err
	}
	var h Header
	if len(w.INumber) != len(h.INumber) {
		return Header{}, fmt.Errorf("%w: inumber is %d bytes", common.ErrInvalidArgument, len(w.INumber))
	}
	copy(h.INumber[:], w.INumber)
	h.Ratchet = w.Ratchet
	h.Name = w.Name
	if !h.Name.Contains(h.INumber) {
		return Header{}, fmt.Errorf("%w: header name does not contain its inumber", common.ErrInvalidArgument)
	}
	return h, nil
}
