package prep

import (
	"github.com/viethuyvu/MP-SPDZ/internal/prng"
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/opening"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
)

// Sacrifice runs the pairwise cut-and-choose check over buckets of raw
// triples and returns one verified triple per bucket. For each bucket the
// first triple (a, b, c) is checked against every other member (f, g, h)
// under a jointly coined t:
//
//	rho   = t*a - f
//	sigma = b - g
//	z     = t*c - h - sigma*f - rho*g - sigma*rho
//
// z opens to zero exactly when both triples satisfy the product relation.
// A nonzero z aborts the batch. The checked members are discarded.
func Sacrifice(sess *mpc.Session, opener *opening.Protocol, raw []share.Triple, bucketSize int) ([]share.Triple, error) {
	if bucketSize < 2 {
		return nil, mpc.Errorf(mpc.KindSetup, "sacrifice bucket size %d, need at least 2", bucketSize)
	}
	buckets := len(raw) / bucketSize
	if buckets == 0 {
		return nil, mpc.Errorf(mpc.KindSetup,
			"sacrifice needs at least %d raw triples, have %d", bucketSize, len(raw))
	}

	seed, err := prng.JointSeed(sess.Player, sess.Rand())
	if err != nil {
		return nil, err
	}
	coins := prng.NewStream("prep/sacrifice", seed)

	field := sess.Field
	self := sess.SelfID()
	alpha, auth := opener.AlphaShare()

	checks := buckets * (bucketSize - 1)
	ts := make([]gfp.Element, checks)
	out := make([]share.Triple, buckets)

	k := 0
	for i := 0; i < buckets; i++ {
		anchor := raw[i*bucketSize]
		out[i] = anchor
		for j := 1; j < bucketSize; j++ {
			pair := raw[i*bucketSize+j]
			t := field.Random(coins)
			ts[k] = t
			k++
			opener.Open(anchor.A.MulClear(t).Sub(pair.A))
			opener.Open(anchor.B.Sub(pair.B))
		}
	}
	opened, err := opener.Exchange()
	if err != nil {
		return nil, err
	}

	k = 0
	for i := 0; i < buckets; i++ {
		anchor := raw[i*bucketSize]
		for j := 1; j < bucketSize; j++ {
			pair := raw[i*bucketSize+j]
			t := ts[k]
			rho := opened[2*k]
			sigma := opened[2*k+1]
			k++
			z := anchor.C.MulClear(t).
				Sub(pair.C).
				Sub(pair.A.MulClear(sigma)).
				Sub(pair.B.MulClear(rho))
			srho := sigma.Mul(rho).Neg()
			if auth {
				z = z.AddClearAuth(srho, alpha, self)
			} else {
				z = z.AddClear(srho, self)
			}
			opener.Open(z)
		}
	}
	zs, err := opener.Exchange()
	if err != nil {
		return nil, err
	}
	for _, z := range zs {
		if !z.IsZero() {
			return nil, mpc.Errorf(mpc.KindConsistency, "triple sacrifice check failed")
		}
	}
	return out, nil
}
