// Package share implements the additive share data model: authenticated and
// plain value fragments, multiplication triples, doubly-shared bits, and
// their fixed-width wire encoding.
package share

import (
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

// Share is one party's additive fragment of a clear value. Summing the
// fragments of all parties reconstructs the value. A share may carry a MAC
// fragment; correctly generated shares satisfy Σ macᵢ = α · Σ valueᵢ for the
// additively shared global key α. The invariant is verified at opening time,
// never assumed.
type Share struct {
	v      gfp.Element
	m      gfp.Element
	hasMAC bool
}

// New builds a plain share from a value fragment.
func New(v gfp.Element) Share {
	return Share{v: v}
}

// NewAuth builds an authenticated share from value and MAC fragments.
func NewAuth(v, m gfp.Element) Share {
	return Share{v: v, m: m, hasMAC: true}
}

// Constant returns the canonical sharing of a public constant without
// communication: party 0 holds the value, everyone else holds zero.
func Constant(c gfp.Element, self party.ID) Share {
	if self == 0 {
		return New(c)
	}
	return New(c.Field().Zero())
}

// ConstantAuth is Constant for authenticated sharings: the MAC fragment is
// αᵢ·c for every party, since Σ αᵢ·c = α·c.
func ConstantAuth(c, alphaShare gfp.Element, self party.ID) Share {
	v := c.Field().Zero()
	if self == 0 {
		v = c
	}
	return NewAuth(v, alphaShare.Mul(c))
}

// Value returns the value fragment.
func (s Share) Value() gfp.Element { return s.v }

// MAC returns the MAC fragment; the second value is false for plain shares.
func (s Share) MAC() (gfp.Element, bool) { return s.m, s.hasMAC }

// HasMAC reports whether the share carries a MAC fragment.
func (s Share) HasMAC() bool { return s.hasMAC }

// Add returns the share of x + y.
func (s Share) Add(o Share) Share {
	out := Share{v: s.v.Add(o.v), hasMAC: s.hasMAC && o.hasMAC}
	if out.hasMAC {
		out.m = s.m.Add(o.m)
	}
	return out
}

// Sub returns the share of x - y.
func (s Share) Sub(o Share) Share {
	out := Share{v: s.v.Sub(o.v), hasMAC: s.hasMAC && o.hasMAC}
	if out.hasMAC {
		out.m = s.m.Sub(o.m)
	}
	return out
}

// Neg returns the share of -x.
func (s Share) Neg() Share {
	out := Share{v: s.v.Neg(), hasMAC: s.hasMAC}
	if s.hasMAC {
		out.m = s.m.Neg()
	}
	return out
}

// MulClear returns the share of c·x for a public constant c.
func (s Share) MulClear(c gfp.Element) Share {
	out := Share{v: s.v.Mul(c), hasMAC: s.hasMAC}
	if s.hasMAC {
		out.m = s.m.Mul(c)
	}
	return out
}

// AddClear returns the share of x + c for a public constant c under the
// party-0 convention: only party 0 adjusts its value fragment.
func (s Share) AddClear(c gfp.Element, self party.ID) Share {
	out := s
	if self == 0 {
		out.v = s.v.Add(c)
	}
	return out
}

// AddClearAuth is AddClear for authenticated shares: every party also
// adjusts its MAC fragment by αᵢ·c.
func (s Share) AddClearAuth(c, alphaShare gfp.Element, self party.ID) Share {
	out := s.AddClear(c, self)
	if s.hasMAC {
		out.m = s.m.Add(alphaShare.Mul(c))
	}
	return out
}

// Equal reports fragment-wise equality.
func (s Share) Equal(o Share) bool {
	if s.hasMAC != o.hasMAC || !s.v.Equal(o.v) {
		return false
	}
	return !s.hasMAC || s.m.Equal(o.m)
}

// Triple is correlated randomness for one multiplication: shares of values
// a, b, c with c = a·b. A triple is single-use; reusing one breaks the
// blinding it provides.
type Triple struct {
	A, B, C Share
}

// DABit is a jointly random bit shared in both the arithmetic domain and,
// per party, as an XOR fragment in the binary domain. Single-use, like a
// triple.
type DABit struct {
	Arith Share
	// Bit is the local XOR fragment; the XOR over all parties equals the
	// value reconstructed from Arith.
	Bit uint8
}

// TruncPair is preprocessed randomness for probabilistic truncation by m
// bits: shares of a random r together with shares of r >> m.
type TruncPair struct {
	R, RShifted Share
	M           uint
}
