package ratchet

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"xdao.co/dagfs/common"
)

// MarshalBinary lays out the chains from level 0 upward followed by the
// counters.
func (r Ratchet) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, EncodedSize)
	for i := range r.chains {
		out = append(out, r.chains[i][:]...)
	}
	out = append(out, r.counts[:]...)
	return out, nil
}

func (r *Ratchet) UnmarshalBinary(b []byte) error {
	if len(b) != EncodedSize {
		return fmt.Errorf("%w: ratchet encoding is %d bytes, want %d", common.ErrInvalidArgument, len(b), EncodedSize)
	}
	for i := range r.chains {
		copy(r.chains[i][:], b[i*chainSize:(i+1)*chainSize])
	}
	copy(r.counts[:], b[Levels*chainSize:])
	return nil
}

// MarshalCBOR encodes the state as a single byte string.
func (r Ratchet) MarshalCBOR() ([]byte, error) {
	b, _ := r.MarshalBinary()
	return cbor.Marshal(b)
}

func (r *Ratchet) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("ratchet: %w", err)
	}
	return r.UnmarshalBinary(b)
}
