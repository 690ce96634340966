// Package rep3 implements the semi-honest three-party replicated protocol.
//
// A clear value x is split as x = a₀ + a₁ + a₂; party i holds the pair
// (aᵢ, aᵢ₊₁), so any two parties can reconstruct. Pairs of parties share
// synchronized pseudorandom streams established once at setup, which lets
// them agree on zero-summing masks with no per-multiplication handshake.
package rep3

import (
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

// NumParties is the fixed arity of the replicated protocol.
const NumParties = 3

// Share is party i's replicated fragment pair (aᵢ, aᵢ₊₁).
type Share struct {
	// Left is the fragment indexed by the owning party.
	Left gfp.Element
	// Right is the next party's fragment, held redundantly.
	Right gfp.Element
}

// Constant shares a public constant without communication: fragment a₀
// carries the value, the others are zero.
func Constant(c gfp.Element, self party.ID) Share {
	zero := c.Field().Zero()
	switch self {
	case 0:
		return Share{Left: c, Right: zero}
	case 2:
		return Share{Left: zero, Right: c}
	default:
		return Share{Left: zero, Right: zero}
	}
}

// Add returns the share of x + y.
func (s Share) Add(o Share) Share {
	return Share{Left: s.Left.Add(o.Left), Right: s.Right.Add(o.Right)}
}

// Sub returns the share of x - y.
func (s Share) Sub(o Share) Share {
	return Share{Left: s.Left.Sub(o.Left), Right: s.Right.Sub(o.Right)}
}

// Neg returns the share of -x.
func (s Share) Neg() Share {
	return Share{Left: s.Left.Neg(), Right: s.Right.Neg()}
}

// MulClear returns the share of c·x for a public c.
func (s Share) MulClear(c gfp.Element) Share {
	return Share{Left: s.Left.Mul(c), Right: s.Right.Mul(c)}
}

// AddClear returns the share of x + c for a public c, adjusting only the a₀
// fragment wherever it is held.
func (s Share) AddClear(c gfp.Element, self party.ID) Share {
	out := s
	switch self {
	case 0:
		out.Left = s.Left.Add(c)
	case 2:
		out.Right = s.Right.Add(c)
	}
	return out
}

// AppendTo appends the fixed-width encoding of both fragments.
func (s Share) AppendTo(b []byte) []byte {
	b = append(b, s.Left.Bytes()...)
	return append(b, s.Right.Bytes()...)
}

// Size returns the serialized width of a replicated share.
func Size(f *gfp.Field) int { return 2 * f.ElementSize() }

// FromBytes decodes a replicated share of exactly Size(f) bytes.
func FromBytes(f *gfp.Field, b []byte) (Share, error) {
	es := f.ElementSize()
	left, err := f.SetBytes(b[:es])
	if err != nil {
		return Share{}, err
	}
	right, err := f.SetBytes(b[es:])
	if err != nil {
		return Share{}, err
	}
	return Share{Left: left, Right: right}, nil
}

// Reconstruct sums the distinct fragments of all three parties' shares,
// for tests and trusted dealers.
func Reconstruct(s0, s1, s2 Share) gfp.Element {
	return s0.Left.Add(s1.Left).Add(s2.Left)
}
