package gfp

import (
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"
)

// Element is an element of a prime field.
// Elements are immutable: arithmetic returns fresh values.
type Element struct {
	f *Field
	n *saferith.Nat
}

// Field returns the field the element belongs to.
func (x Element) Field() *Field { return x.f }

// IsValid reports whether the element was produced by a Field.
func (x Element) IsValid() bool { return x.f != nil && x.n != nil }

func (x Element) sameField(y Element) *Field {
	if x.f == nil || y.f == nil {
		panic("gfp: arithmetic on uninitialized element")
	}
	if !x.f.Equal(y.f) {
		panic("gfp: mixing elements of different fields")
	}
	return x.f
}

// Add returns x + y.
func (x Element) Add(y Element) Element {
	f := x.sameField(y)
	return Element{f: f, n: new(saferith.Nat).ModAdd(x.n, y.n, f.p)}
}

// Sub returns x - y.
func (x Element) Sub(y Element) Element {
	f := x.sameField(y)
	return Element{f: f, n: new(saferith.Nat).ModSub(x.n, y.n, f.p)}
}

// Mul returns x · y.
func (x Element) Mul(y Element) Element {
	f := x.sameField(y)
	return Element{f: f, n: new(saferith.Nat).ModMul(x.n, y.n, f.p)}
}

// Neg returns -x.
func (x Element) Neg() Element {
	if x.f == nil {
		panic("gfp: arithmetic on uninitialized element")
	}
	return Element{f: x.f, n: new(saferith.Nat).ModNeg(x.n, x.f.p)}
}

// Inv returns x⁻¹. It panics on zero.
func (x Element) Inv() Element {
	if x.IsZero() {
		panic("gfp: inverse of zero")
	}
	return Element{f: x.f, n: new(saferith.Nat).ModInverse(x.n, x.f.p)}
}

// Equal reports whether x and y represent the same value of the same field.
func (x Element) Equal(y Element) bool {
	if x.f == nil || y.f == nil || !x.f.Equal(y.f) {
		return false
	}
	return x.n.Eq(y.n) == 1
}

// IsZero reports whether x is the additive identity.
func (x Element) IsZero() bool {
	return x.n.EqZero() == 1
}

// Bytes returns the fixed-width big-endian encoding of x.
// The result always has exactly Field.ElementSize bytes.
func (x Element) Bytes() []byte {
	buf := make([]byte, x.f.byteSize)
	x.n.FillBytes(buf)
	return buf
}

// Uint64 returns the value of x truncated to 64 bits.
// Only meaningful for small moduli or known-small values.
func (x Element) Uint64() uint64 {
	return new(big.Int).SetBytes(x.Bytes()).Uint64()
}

// Big returns x as a big.Int copy.
func (x Element) Big() *big.Int {
	return new(big.Int).SetBytes(x.Bytes())
}

// Sqrt returns a square root of x if one exists.
// The computation is variable-time and must only be applied to public
// values, such as an opened square during random-bit generation.
func (x Element) Sqrt() (Element, bool) {
	r := new(big.Int).ModSqrt(x.Big(), x.f.Modulus())
	if r == nil {
		return Element{}, false
	}
	buf := make([]byte, x.f.byteSize)
	r.FillBytes(buf)
	e, err := x.f.SetBytes(buf)
	if err != nil {
		return Element{}, false
	}
	return e, true
}

func (x Element) String() string {
	if x.f == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d", x.Big())
}
