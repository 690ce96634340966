package prep

import (
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/input"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
)

// addClear adds a public constant to a share, with or without MAC upkeep
// depending on the opening mode.
func (b *Buffer) addClear(s share.Share, c gfp.Element) share.Share {
	if alpha, auth := b.opener.AlphaShare(); auth {
		return s.AddClearAuth(c, alpha, b.sess.SelfID())
	}
	return s.AddClear(c, b.sess.SelfID())
}

// mulPairs multiplies element-wise, spending one triple and one opening
// round per call. xs and ys must have equal length.
func (b *Buffer) mulPairs(xs, ys []share.Share) ([]share.Share, error) {
	triples, err := b.Triples(len(xs))
	if err != nil {
		return nil, err
	}
	for i := range xs {
		b.opener.Open(xs[i].Sub(triples[i].A))
		b.opener.Open(ys[i].Sub(triples[i].B))
	}
	opened, err := b.opener.Exchange()
	if err != nil {
		return nil, err
	}
	out := make([]share.Share, len(xs))
	for i := range xs {
		eps, delta := opened[2*i], opened[2*i+1]
		z := triples[i].C.
			Add(triples[i].B.MulClear(eps)).
			Add(triples[i].A.MulClear(delta))
		out[i] = b.addClear(z, eps.Mul(delta))
	}
	return out, nil
}

// bitsFromTriples derives shared random bits by the square-root trick: for
// a random shared r, open r^2 (zero if r was zero, discard those), take the
// deterministic square root s, and output (r/s + 1)/2, which is 0 or 1 with
// equal probability. Each candidate costs one triple and two opening rounds.
func (b *Buffer) bitsFromTriples(count int) ([]share.Share, error) {
	triples, err := b.Triples(count)
	if err != nil {
		return nil, err
	}
	// r^2 from the triple itself: with (a, b, c) and delta = a - b opened,
	// a^2 = c + delta*a.
	for _, t := range triples {
		b.opener.Open(t.A.Sub(t.B))
	}
	deltas, err := b.opener.Exchange()
	if err != nil {
		return nil, err
	}
	squares := make([]share.Share, count)
	for i, t := range triples {
		squares[i] = t.C.Add(t.A.MulClear(deltas[i]))
		b.opener.Open(squares[i])
	}
	opened, err := b.opener.Exchange()
	if err != nil {
		return nil, err
	}

	field := b.sess.Field
	half := field.FromUint64(2).Inv()
	out := make([]share.Share, 0, count)
	for i, sq := range opened {
		if sq.IsZero() {
			continue
		}
		root, ok := sq.Sqrt()
		if !ok {
			return nil, mpc.Errorf(mpc.KindConsistency, "opened bit candidate is a non-residue")
		}
		bit := b.addClear(triples[i].A.MulClear(root.Inv()), field.One()).MulClear(half)
		out = append(out, bit)
	}
	return out, nil
}

// bufferDABits produces doubly-shared bits. Every party samples a local
// binary fragment, shares it arithmetically through the input protocol, and
// the fragments are folded with x XOR y = x + y - 2xy, one multiplication
// round per additional party. The XOR of the local fragments equals the
// arithmetically shared value by construction.
func (b *Buffer) bufferDABits(count int) ([]share.DABit, error) {
	field := b.sess.Field
	self := b.sess.SelfID()

	local := make([]uint8, count)
	var buf [1]byte
	for i := range local {
		if _, err := b.sess.Rand().Read(buf[:]); err != nil {
			return nil, mpc.Errorf(mpc.KindSetup, "sampling bit fragment: %v", err)
		}
		local[i] = buf[0] & 1
	}

	in := input.New(b.sess)
	for i := 0; i < count; i++ {
		for _, p := range b.sess.Parties {
			if p == self {
				in.AddMine(field.FromUint64(uint64(local[i])))
			} else if err := in.AddOther(p); err != nil {
				return nil, err
			}
		}
	}
	if err := in.Exchange(); err != nil {
		return nil, err
	}

	acc := make([]share.Share, count)
	next := make([]share.Share, count)
	for _, p := range b.sess.Parties {
		for i := 0; i < count; i++ {
			var s share.Share
			var err error
			if p == self {
				s, err = in.FinalizeMine()
			} else {
				s, err = in.FinalizeOther(p)
			}
			if err != nil {
				return nil, err
			}
			if p == 0 {
				acc[i] = s
			} else {
				next[i] = s
			}
		}
		if p == 0 {
			continue
		}
		products, err := b.mulPairs(acc, next)
		if err != nil {
			return nil, err
		}
		two := field.FromUint64(2)
		for i := range acc {
			acc[i] = acc[i].Add(next[i]).Sub(products[i].MulClear(two))
		}
	}

	out := make([]share.DABit, count)
	for i := range out {
		out[i] = share.DABit{Arith: acc[i], Bit: local[i]}
	}
	return out, nil
}

// truncPairsFromBits composes truncation pairs from shared random bits:
// r = sum b_j 2^j over the low field bits, r >> m linearly from the same
// bits. The bit width leaves headroom below the modulus so that masked
// values rarely wrap.
func (b *Buffer) truncPairsFromBits(count int, m uint) ([]share.TruncPair, error) {
	field := b.sess.Field
	width := uint(field.BitLen() - 1)
	if m >= width {
		return nil, mpc.Errorf(mpc.KindSetup,
			"truncation by %d bits exceeds usable width %d", m, width)
	}
	bits, err := b.RandomBits(count * int(width))
	if err != nil {
		return nil, err
	}

	pow := make([]gfp.Element, width)
	pow[0] = field.One()
	two := field.FromUint64(2)
	for j := uint(1); j < width; j++ {
		pow[j] = pow[j-1].Mul(two)
	}

	out := make([]share.TruncPair, count)
	for i := 0; i < count; i++ {
		r := bits[i*int(width)].MulClear(pow[0])
		for j := uint(1); j < width; j++ {
			r = r.Add(bits[i*int(width)+int(j)].MulClear(pow[j]))
		}
		shifted := bits[i*int(width)+int(m)].MulClear(pow[0])
		for j := m + 1; j < width; j++ {
			shifted = shifted.Add(bits[i*int(width)+int(j)].MulClear(pow[j-m]))
		}
		out[i] = share.TruncPair{R: r, RShifted: shifted, M: m}
	}
	return out, nil
}
