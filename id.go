package kroute

import (
	"bytes"
	"encoding/hex"
	"math/bits"

	"golang.org/x/xerrors"
)

// DefaultIdLength is the default id length in bytes (160 bits).
const DefaultIdLength = 20

// NodeId is a fixed-length bit string naming a node or a lookup target.
// Bit 0 is the most significant bit of the first byte.
//
// A NodeId must be treated as immutable once constructed; the constructors in
// this package always return a private copy.
type NodeId []byte

// RandomId returns a random id of the given length in bytes, read from the
// system's secure random number generator. A length below one fails with
// ErrLengthMismatch.
func RandomId(length int) (NodeId, error) {
	if length < 1 {
		return nil, xerrors.Errorf("id length %d: %w", length, ErrLengthMismatch)
	}

	b, err := GenerateRandomBytes(length)
	if err != nil {
		return nil, err
	}

	return NodeId(b), nil
}

// GenerateId generates a random 160-bit id.
// It will return an error if the system's secure random number generator fails
// to function correctly, in which case the caller decides whether to retry.
func GenerateId() (NodeId, error) {
	return RandomId(DefaultIdLength)
}

// IdFromBytes copies b into a new NodeId. It fails with ErrLengthMismatch
// unless len(b) equals length.
func IdFromBytes(b []byte, length int) (NodeId, error) {
	if len(b) != length {
		return nil, xerrors.Errorf("got %d bytes, want %d: %w", len(b), length, ErrLengthMismatch)
	}

	id := make(NodeId, length)
	copy(id, b)

	return id, nil
}

// IdFromHex decodes a hex encoded id of the given length in bytes.
func IdFromHex(s string, length int) (NodeId, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, xerrors.Errorf("decode id %q: %w", s, err)
	}

	return IdFromBytes(b, length)
}

// BitLen returns the length of the id in bits.
func (id NodeId) BitLen() int {
	return len(id) * 8
}

// Bit returns the i-th bit of the id, counting from the most significant bit.
func (id NodeId) Bit(i int) (bool, error) {
	if i < 0 || i >= id.BitLen() {
		return false, xerrors.Errorf("bit %d of %d: %w", i, id.BitLen(), ErrBitIndexOutOfRange)
	}

	return id[i>>3]&(1<<(7-uint(i%8))) != 0, nil
}

// bit is Bit without bounds reporting, for indices already known to be valid.
func (id NodeId) bit(i int) int {
	return int(id[i>>3]>>(7-uint(i%8))) & 1
}

// Xor returns the XOR distance between id and other. Missing bytes of the
// shorter id count as 0xff, so ids of different lengths are never at distance
// zero.
func (id NodeId) Xor(other NodeId) NodeId {
	n := len(id)
	if len(other) > n {
		n = len(other)
	}

	d := make(NodeId, n)
	for i := range d {
		if i < len(id) && i < len(other) {
			d[i] = id[i] ^ other[i]
		} else {
			d[i] = 0xff
		}
	}

	return d
}

// LeadingZeros returns the number of leading zero bits. The zero value of a
// distance returns BitLen.
func (id NodeId) LeadingZeros() int {
	for i, b := range id {
		if b != 0 {
			return i*8 + bits.LeadingZeros8(b)
		}
	}

	return id.BitLen()
}

// IsZero reports whether every bit of the id is zero.
func (id NodeId) IsZero() bool {
	for _, b := range id {
		if b != 0 {
			return false
		}
	}

	return true
}

// Compare returns -1, 0 or +1 depending on the numeric order of id and other.
func (id NodeId) Compare(other NodeId) int {
	return bytes.Compare(id, other)
}

// Equal reports whether id and other hold the same bits.
func (id NodeId) Equal(other NodeId) bool {
	return bytes.Equal(id, other)
}

func (id NodeId) String() string {
	return hex.EncodeToString(id)
}
