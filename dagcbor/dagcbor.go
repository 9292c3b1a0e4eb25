// Package dagcbor is the canonical block encoding for every node type stored
// in the block store. Identical values always encode to identical bytes, so
// identical nodes always share one CID.
package dagcbor

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var ErrDecode = errors.New("dagcbor: malformed block")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeUnix
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em

	dm, err := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 64,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	decMode = dm
}

// Encode returns the canonical encoding of v.
func Encode(v interface{}) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("dagcbor: encode: %w", err)
	}
	return b, nil
}

// Decode parses b into v. Trailing bytes are rejected.
func Decode(b []byte, v interface{}) error {
	if err := decMode.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}
