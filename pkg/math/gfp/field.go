// Package gfp implements fixed-width arithmetic over a prime field, the clear
// computation domain of the share protocols.
package gfp

import (
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"

	"github.com/viethuyvu/MP-SPDZ/internal/pool"
)

const maxIterations = 255

// Field describes the prime computation domain GF(p).
// All elements carry a reference to their field; elements of distinct fields
// must never be mixed.
type Field struct {
	p    *saferith.Modulus
	pNat *saferith.Nat
	// byteSize is the fixed serialized width of every element.
	byteSize int
	bitLen   int
}

// NewField constructs the field of integers modulo p.
// p must be an odd prime of at least 2 bits; primality is checked
// probabilistically since a composite modulus silently breaks the
// reconstruction invariants.
func NewField(p *big.Int) (*Field, error) {
	if p == nil || p.Sign() <= 0 || p.BitLen() < 2 {
		return nil, fmt.Errorf("gfp: modulus must be a positive prime")
	}
	if p.Bit(0) == 0 || !p.ProbablyPrime(20) {
		return nil, fmt.Errorf("gfp: modulus %s is not an odd prime", p)
	}
	pNat := new(saferith.Nat).SetBytes(p.Bytes())
	return &Field{
		p:        saferith.ModulusFromNat(pNat),
		pNat:     pNat,
		byteSize: (p.BitLen() + 7) / 8,
		bitLen:   p.BitLen(),
	}, nil
}

// NewFieldFromUint64 constructs GF(p) for a small modulus, mainly in tests.
func NewFieldFromUint64(p uint64) (*Field, error) {
	return NewField(new(big.Int).SetUint64(p))
}

// ElementSize returns the fixed serialized width of an element in bytes.
func (f *Field) ElementSize() int { return f.byteSize }

// BitLen returns the bit length of the modulus.
func (f *Field) BitLen() int { return f.bitLen }

// Modulus returns the field modulus as a big.Int copy.
func (f *Field) Modulus() *big.Int {
	return new(big.Int).SetBytes(f.p.Bytes())
}

// Equal reports whether g describes the same field.
func (f *Field) Equal(g *Field) bool {
	if f == g {
		return true
	}
	return g != nil && f.pNat.Eq(g.pNat) == 1
}

// Zero returns the additive identity.
func (f *Field) Zero() Element {
	return Element{f: f, n: new(saferith.Nat).SetUint64(0)}
}

// One returns the multiplicative identity.
func (f *Field) One() Element {
	return f.FromUint64(1)
}

// FromUint64 returns v mod p as a field element.
func (f *Field) FromUint64(v uint64) Element {
	n := new(saferith.Nat).SetUint64(v)
	n.Mod(n, f.p)
	return Element{f: f, n: n}
}

// SetBytes interprets b as a big-endian integer of exactly ElementSize bytes.
// It is the exact inverse of Element.Bytes.
func (f *Field) SetBytes(b []byte) (Element, error) {
	if len(b) != f.byteSize {
		return Element{}, fmt.Errorf("gfp: element requires %d bytes, got %d", f.byteSize, len(b))
	}
	n := new(saferith.Nat).SetBytes(b)
	if _, _, lt := n.CmpMod(f.p); lt != 1 {
		return Element{}, fmt.Errorf("gfp: encoded value exceeds modulus")
	}
	return Element{f: f, n: n}, nil
}

// Random samples a uniform field element by rejection from rand.
func (f *Field) Random(rand io.Reader) Element {
	buf := make([]byte, f.byteSize)
	n := new(saferith.Nat)
	// Mask off excess high bits so rejection terminates quickly.
	mask := byte(0xff)
	if excess := 8*f.byteSize - f.bitLen; excess > 0 {
		mask >>= excess
	}
	for i := 0; i < maxIterations; i++ {
		if _, err := io.ReadFull(rand, buf); err != nil {
			panic(fmt.Sprintf("gfp: randomness source failed: %v", err))
		}
		buf[0] &= mask
		n.SetBytes(buf)
		if _, _, lt := n.CmpMod(f.p); lt == 1 {
			return Element{f: f, n: n}
		}
	}
	panic("gfp: rejection sampling did not terminate")
}

// RandomMany samples count uniform field elements, spreading the rejection
// sampling across p. rand must be safe for concurrent reads when p is
// non-nil; sources shared with a pool are wrapped in a pool.LockedReader.
func (f *Field) RandomMany(p *pool.Pool, rand io.Reader, count int) []Element {
	mask := byte(0xff)
	if excess := 8*f.byteSize - f.bitLen; excess > 0 {
		mask >>= excess
	}
	candidates := pool.Search(p, count, func() *Element {
		buf := make([]byte, f.byteSize)
		if _, err := io.ReadFull(rand, buf); err != nil {
			panic(fmt.Sprintf("gfp: randomness source failed: %v", err))
		}
		buf[0] &= mask
		n := new(saferith.Nat).SetBytes(buf)
		if _, _, lt := n.CmpMod(f.p); lt != 1 {
			return nil
		}
		return &Element{f: f, n: n}
	})
	out := make([]Element, count)
	for i, c := range candidates {
		out[i] = *c
	}
	return out
}

// RandomBit samples a uniform element of {0, 1}.
func (f *Field) RandomBit(rand io.Reader) Element {
	var b [1]byte
	if _, err := io.ReadFull(rand, b[:]); err != nil {
		panic(fmt.Sprintf("gfp: randomness source failed: %v", err))
	}
	return f.FromUint64(uint64(b[0] & 1))
}
