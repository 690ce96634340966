package party

import (
	"encoding/binary"
	"strconv"
)

// ByteSize is the number of bytes required to store an ID or Size.
const ByteSize = 2

// MAX is the maximum integer that can represent a party.
const MAX = (1 << (ByteSize * 8)) - 1

// ID represents the identifier of a particular party.
// Parties are numbered 0, …, N-1, following the player-number convention
// of the share protocols.
type ID uint16

// Size is an alias for ID that allows us to differentiate between a party's
// ID and a party count.
type Size = ID

// Bytes returns a []byte slice of length party.ByteSize.
func (p ID) Bytes() []byte {
	bytes := make([]byte, ByteSize)
	binary.BigEndian.PutUint16(bytes, uint16(p))
	return bytes
}

// String returns a base 10 representation of ID.
func (p ID) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// FromBytes reads the first party.ByteSize bytes from b and creates an ID from it.
func FromBytes(b []byte) ID {
	return ID(binary.BigEndian.Uint16(b))
}

// IDFromString reads a base 10 string and attempts to generate an ID from it.
func IDFromString(str string) (ID, error) {
	p, err := strconv.ParseUint(str, 10, 16)
	if err != nil {
		return 0, err
	}
	return ID(p), nil
}

// Next returns the party following p in the ring of n parties.
func (p ID) Next(n Size) ID {
	return (p + 1) % n
}

// Prev returns the party preceding p in the ring of n parties.
func (p ID) Prev(n Size) ID {
	return (p + n - 1) % n
}
