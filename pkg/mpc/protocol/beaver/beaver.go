// Package beaver implements the dishonest-majority multiplication protocol
// on additive sharings, consuming one preprocessed triple per product.
//
// For operands x, y and a triple (a, b, c) with c = a·b, the parties open
// ε = x − a and δ = y − b, then assemble
//
//	z = c + ε·b + δ·a + ε·δ
//
// locally. The exchange is a single opening round for the whole batch; the
// triples provide the blinding, so ε and δ reveal nothing.
package beaver

import (
	"github.com/viethuyvu/MP-SPDZ/internal/queue"
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/opening"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/protocol"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
)

// TripleSource supplies single-use multiplication triples.
type TripleSource interface {
	Triples(count int) ([]share.Triple, error)
}

// TruncSource supplies preprocessed truncation pairs.
type TruncSource interface {
	TruncPairs(count int, m uint) ([]share.TruncPair, error)
}

// Protocol is one party's instance of the triple-consuming protocol.
// It works for any number of parties from two upward.
type Protocol struct {
	machine protocol.Machine
	sess    *mpc.Session
	source  TripleSource
	opener  *opening.Protocol

	alpha gfp.Element
	auth  bool

	xs, ys  []share.Share
	results queue.Queue[share.Share]

	dotXs, dotYs [][2]share.Share
	dotGroups    []int
	dotCount     int
}

var (
	_ protocol.Protocol[share.Share]     = (*Protocol)(nil)
	_ protocol.DotProducter[share.Share] = (*Protocol)(nil)
	_ protocol.Truncator                 = (*Protocol)(nil)
)

// New returns a protocol instance over plain additive shares.
func New(sess *mpc.Session, source TripleSource, opener *opening.Protocol) *Protocol {
	return &Protocol{sess: sess, source: source, opener: opener}
}

// NewAuthenticated returns a protocol instance over MAC-carrying shares;
// alphaShare is the local additive fragment of the global key.
func NewAuthenticated(sess *mpc.Session, source TripleSource, opener *opening.Protocol, alphaShare gfp.Element) *Protocol {
	return &Protocol{sess: sess, source: source, opener: opener, alpha: alphaShare, auth: true}
}

func (p *Protocol) InitMul() {
	p.machine.Reset()
	p.xs = p.xs[:0]
	p.ys = p.ys[:0]
	p.results.Clear()
}

func (p *Protocol) PrepareMul(x, y share.Share) error {
	if err := p.machine.Prepared(); err != nil {
		return err
	}
	p.xs = append(p.xs, x)
	p.ys = append(p.ys, y)
	return nil
}

func (p *Protocol) Exchange() error {
	if err := p.machine.BeginExchange(); err != nil {
		return err
	}
	triples, err := p.source.Triples(len(p.xs))
	if err != nil {
		return err
	}
	for i := range p.xs {
		p.opener.Open(p.xs[i].Sub(triples[i].A))
		p.opener.Open(p.ys[i].Sub(triples[i].B))
	}
	opened, err := p.opener.Exchange()
	if err != nil {
		return err
	}
	for i, t := range triples {
		eps, delta := opened[2*i], opened[2*i+1]
		z := t.C.Add(t.B.MulClear(eps)).Add(t.A.MulClear(delta))
		epsDelta := eps.Mul(delta)
		if p.auth {
			z = z.AddClearAuth(epsDelta, p.alpha, p.sess.SelfID())
		} else {
			z = z.AddClear(epsDelta, p.sess.SelfID())
		}
		p.results.Push(z)
	}
	p.machine.EndExchange()
	return nil
}

func (p *Protocol) FinalizeMul() (share.Share, error) {
	if err := p.machine.Finalized(); err != nil {
		return share.Share{}, err
	}
	res, _ := p.results.Pop()
	return res, nil
}

func (p *Protocol) Check() error { return nil }

// InitDotProd starts a dot-product batch. Each group still costs one triple
// per term, but only the group sums are materialized as results.
func (p *Protocol) InitDotProd() {
	p.machine.Reset()
	p.dotXs = p.dotXs[:0]
	p.dotYs = p.dotYs[:0]
	p.dotGroups = p.dotGroups[:0]
	p.dotCount = 0
	p.xs = p.xs[:0]
	p.ys = p.ys[:0]
	p.results.Clear()
}

// PrepareDotProd accumulates x·y into the current group.
func (p *Protocol) PrepareDotProd(x, y share.Share) error {
	if p.machine.State() != protocol.Accumulating {
		return mpc.Errorf(mpc.KindUnsupported, "prepare_dotprod in state %s", p.machine.State())
	}
	p.xs = append(p.xs, x)
	p.ys = append(p.ys, y)
	p.dotCount++
	return nil
}

// NextDotProd closes the current group.
func (p *Protocol) NextDotProd() error {
	if p.dotCount == 0 {
		return mpc.Errorf(mpc.KindUnsupported, "next_dotprod without prepared operands")
	}
	if err := p.machine.Prepared(); err != nil {
		return err
	}
	p.dotGroups = append(p.dotGroups, p.dotCount)
	p.dotCount = 0
	return nil
}

// FinalizeDotProd returns the next group result. The underlying exchange is
// the multiplication exchange; group sums are folded here.
func (p *Protocol) FinalizeDotProd() (share.Share, error) {
	if err := p.machine.Finalized(); err != nil {
		return share.Share{}, err
	}
	if len(p.dotGroups) == 0 {
		return share.Share{}, mpc.Errorf(mpc.KindUnsupported, "finalize_dotprod without groups")
	}
	n := p.dotGroups[0]
	p.dotGroups = p.dotGroups[1:]
	sum, _ := p.results.Pop()
	for i := 1; i < n; i++ {
		next, _ := p.results.Pop()
		sum = sum.Add(next)
	}
	return sum, nil
}

// TruncPr truncates each value by m bits probabilistically, consuming one
// preprocessed pair per value from source, which must also implement
// TruncSource. One opening round serves the whole batch.
func (p *Protocol) TruncPr(xs []share.Share, m uint) ([]share.Share, error) {
	ts, ok := p.source.(TruncSource)
	if !ok {
		return nil, mpc.Errorf(mpc.KindUnsupported, "preprocessing source provides no truncation pairs")
	}
	pairs, err := ts.TruncPairs(len(xs), m)
	if err != nil {
		return nil, err
	}
	for i := range xs {
		p.opener.Open(xs[i].Add(pairs[i].R))
	}
	opened, err := p.opener.Exchange()
	if err != nil {
		return nil, err
	}
	field := p.sess.Field
	out := make([]share.Share, len(xs))
	for i := range xs {
		shifted := opened[i].Big()
		shifted.Rsh(shifted, m)
		buf := make([]byte, field.ElementSize())
		shifted.FillBytes(buf)
		c, err := field.SetBytes(buf)
		if err != nil {
			return nil, mpc.Errorf(mpc.KindSetup, "truncated value out of range: %w", err)
		}
		z := pairs[i].RShifted.Neg()
		if p.auth {
			z = z.AddClearAuth(c, p.alpha, p.sess.SelfID())
		} else {
			z = z.AddClear(c, p.sess.SelfID())
		}
		out[i] = z
	}
	return out, nil
}
