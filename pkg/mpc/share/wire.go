package share

import (
	"fmt"

	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
)

// The wire format is fixed-width throughout: every record serializes to a
// byte count determined solely by the field and whether MACs are carried.
// There is no length prefix and no framing; batched sends are plain
// concatenations of fixed-size records, and decoding consumes exactly the
// static size.

// Size returns the serialized width of one share.
func Size(f *gfp.Field, withMAC bool) int {
	if withMAC {
		return 2 * f.ElementSize()
	}
	return f.ElementSize()
}

// TripleSize returns the serialized width of one triple.
func TripleSize(f *gfp.Field, withMAC bool) int {
	return 3 * Size(f, withMAC)
}

// DABitSize returns the serialized width of one doubly-shared bit.
func DABitSize(f *gfp.Field, withMAC bool) int {
	return Size(f, withMAC) + 1
}

// AppendTo appends the fixed-width encoding of s to b.
func (s Share) AppendTo(b []byte) []byte {
	b = append(b, s.v.Bytes()...)
	if s.hasMAC {
		b = append(b, s.m.Bytes()...)
	}
	return b
}

// FromBytes decodes one share of exactly Size(f, withMAC) bytes.
// It is the exact inverse of AppendTo.
func FromBytes(f *gfp.Field, withMAC bool, b []byte) (Share, error) {
	want := Size(f, withMAC)
	if len(b) != want {
		return Share{}, fmt.Errorf("share: need exactly %d bytes, got %d", want, len(b))
	}
	es := f.ElementSize()
	v, err := f.SetBytes(b[:es])
	if err != nil {
		return Share{}, fmt.Errorf("share: decoding value: %w", err)
	}
	if !withMAC {
		return New(v), nil
	}
	m, err := f.SetBytes(b[es:])
	if err != nil {
		return Share{}, fmt.Errorf("share: decoding mac: %w", err)
	}
	return NewAuth(v, m), nil
}

// AppendBatch appends count fixed-size records back to back.
func AppendBatch(b []byte, shares []Share) []byte {
	for _, s := range shares {
		b = s.AppendTo(b)
	}
	return b
}

// BatchFromBytes decodes exactly count shares from b, which must contain
// exactly count fixed-size records.
func BatchFromBytes(f *gfp.Field, withMAC bool, count int, b []byte) ([]Share, error) {
	size := Size(f, withMAC)
	if len(b) != count*size {
		return nil, fmt.Errorf("share: batch of %d shares needs %d bytes, got %d", count, count*size, len(b))
	}
	out := make([]Share, count)
	for i := 0; i < count; i++ {
		s, err := FromBytes(f, withMAC, b[i*size:(i+1)*size])
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// AppendTo appends the fixed-width encoding of t to b.
func (t Triple) AppendTo(b []byte) []byte {
	b = t.A.AppendTo(b)
	b = t.B.AppendTo(b)
	return t.C.AppendTo(b)
}

// TripleFromBytes decodes one triple of exactly TripleSize(f, withMAC) bytes.
func TripleFromBytes(f *gfp.Field, withMAC bool, b []byte) (Triple, error) {
	size := Size(f, withMAC)
	if len(b) != 3*size {
		return Triple{}, fmt.Errorf("share: triple needs exactly %d bytes, got %d", 3*size, len(b))
	}
	var t Triple
	var err error
	if t.A, err = FromBytes(f, withMAC, b[:size]); err != nil {
		return Triple{}, err
	}
	if t.B, err = FromBytes(f, withMAC, b[size:2*size]); err != nil {
		return Triple{}, err
	}
	if t.C, err = FromBytes(f, withMAC, b[2*size:]); err != nil {
		return Triple{}, err
	}
	return t, nil
}

// AppendTo appends the fixed-width encoding of d to b.
func (d DABit) AppendTo(b []byte) []byte {
	b = d.Arith.AppendTo(b)
	return append(b, d.Bit&1)
}

// DABitFromBytes decodes one doubly-shared bit of exactly
// DABitSize(f, withMAC) bytes.
func DABitFromBytes(f *gfp.Field, withMAC bool, b []byte) (DABit, error) {
	size := Size(f, withMAC)
	if len(b) != size+1 {
		return DABit{}, fmt.Errorf("share: dabit needs exactly %d bytes, got %d", size+1, len(b))
	}
	s, err := FromBytes(f, withMAC, b[:size])
	if err != nil {
		return DABit{}, err
	}
	if b[size] > 1 {
		return DABit{}, fmt.Errorf("share: binary fragment %d is not a bit", b[size])
	}
	return DABit{Arith: s, Bit: b[size]}, nil
}
