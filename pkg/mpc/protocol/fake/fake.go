// Package fake implements an insecure single-party reference protocol:
// every "share" holds the clear value and all operations are local. It
// exists to test programs and higher layers against the exact protocol
// surface without any cryptography.
package fake

import (
	"io"

	"github.com/viethuyvu/MP-SPDZ/internal/queue"
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/protocol"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
)

// Protocol computes multiplications immediately in the clear.
type Protocol struct {
	machine protocol.Machine
	field   *gfp.Field
	rand    io.Reader

	results queue.Queue[share.Share]

	dotAcc    gfp.Element
	dotOpen   bool
	dotReady  queue.Queue[share.Share]
}

var (
	_ protocol.Protocol[share.Share]     = (*Protocol)(nil)
	_ protocol.DotProducter[share.Share] = (*Protocol)(nil)
	_ protocol.Truncator                 = (*Protocol)(nil)
	_ protocol.RandomnessSupplier        = (*Protocol)(nil)
)

// New returns a fake protocol over the given field, drawing randomness for
// triples and bits from rand.
func New(field *gfp.Field, rand io.Reader) *Protocol {
	return &Protocol{field: field, rand: rand}
}

func (p *Protocol) InitMul() {
	p.machine.Reset()
	p.results.Clear()
}

func (p *Protocol) PrepareMul(x, y share.Share) error {
	if err := p.machine.Prepared(); err != nil {
		return err
	}
	p.results.Push(share.New(x.Value().Mul(y.Value())))
	return nil
}

func (p *Protocol) Exchange() error {
	if err := p.machine.BeginExchange(); err != nil {
		return err
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

// InitDotProd starts a new dot-product batch.
func (p *Protocol) InitDotProd() {
	p.machine.Reset()
	p.dotReady.Clear()
	p.dotAcc = p.field.Zero()
	p.dotOpen = false
}

// PrepareDotProd accumulates x·y into the current group.
func (p *Protocol) PrepareDotProd(x, y share.Share) error {
	if p.machine.State() != protocol.Accumulating {
		return mpc.Errorf(mpc.KindUnsupported, "prepare_dotprod in state %s", p.machine.State())
	}
	p.dotAcc = p.dotAcc.Add(x.Value().Mul(y.Value()))
	p.dotOpen = true
	return nil
}

// NextDotProd closes the current group.
func (p *Protocol) NextDotProd() error {
	if !p.dotOpen {
		return mpc.Errorf(mpc.KindUnsupported, "next_dotprod without prepared operands")
	}
	if err := p.machine.Prepared(); err != nil {
		return err
	}
	p.dotReady.Push(share.New(p.dotAcc))
	p.dotAcc = p.field.Zero()
	p.dotOpen = false
	return nil
}

// FinalizeDotProd returns the next group result.
func (p *Protocol) FinalizeDotProd() (share.Share, error) {
	if err := p.machine.Finalized(); err != nil {
		return share.Share{}, err
	}
	res, _ := p.dotReady.Pop()
	return res, nil
}

// Triple supplies a correct random triple in the clear.
func (p *Protocol) Triple() (share.Triple, error) {
	a := p.field.Random(p.rand)
	b := p.field.Random(p.rand)
	return share.Triple{
		A: share.New(a),
		B: share.New(b),
		C: share.New(a.Mul(b)),
	}, nil
}

// RandomBit supplies a uniform bit in the clear.
func (p *Protocol) RandomBit() (share.Share, error) {
	return share.New(p.field.RandomBit(p.rand)), nil
}

// TruncPr truncates the values by m bits, exactly rather than
// probabilistically, since there is nothing to mask.
func (p *Protocol) TruncPr(xs []share.Share, m uint) ([]share.Share, error) {
	out := make([]share.Share, len(xs))
	for i, x := range xs {
		v := x.Value().Big()
		v.Rsh(v, m)
		buf := make([]byte, p.field.ElementSize())
		v.FillBytes(buf)
		e, err := p.field.SetBytes(buf)
		if err != nil {
			return nil, mpc.Errorf(mpc.KindSetup, "truncation result out of range: %w", err)
		}
		out[i] = share.New(e)
	}
	return out, nil
}
