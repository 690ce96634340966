package masked

import (
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
)

// Prep is the minimal preprocessing facility of the masked variant: random
// bits come straight off the synchronized stream, while triples are not
// supported at all. The multiplication protocol does not consume them, and a
// request must fail fast rather than silently substitute a weaker source.
type Prep struct {
	protocol *Protocol
}

// NewPrep binds a preprocessing facility to an established protocol
// instance, sharing its stream.
func NewPrep(protocol *Protocol) *Prep {
	return &Prep{protocol: protocol}
}

// RandomBits draws count shared bits from the synchronized stream. Both
// parties advance the stream identically; party 0 holds the bit, party 1
// holds zero, consistent with the constant-sharing convention.
func (p *Prep) RandomBits(count int) ([]share.Share, error) {
	field := p.protocol.sess.Field
	out := make([]share.Share, count)
	for i := range out {
		bit := field.RandomBit(p.protocol.stream)
		out[i] = share.Constant(bit, p.protocol.sess.SelfID())
	}
	return out, nil
}

// Triples is unsupported in the masked variant.
func (p *Prep) Triples(count int) ([]share.Triple, error) {
	return nil, mpc.Errorf(mpc.KindUnsupported, "masked protocol has no triple generation (%d requested)", count)
}
