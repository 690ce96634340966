// Package input lets a party inject a private value as a consistent
// additive share set across all parties.
//
// The contributor draws a fresh random mask, keeps the mask as its own
// share, and transmits value − mask. The lowest-numbered other party adopts
// the masked value as its share; remaining parties hold zero. Summing the
// fragments reconstructs the private value without revealing it: the mask
// never leaves the contributor.
package input

import (
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

// Protocol is one party's instance of the input protocol. Buffering is keyed
// by contributing party, so several parties can interleave inputs in the
// same round without cross-talk.
type Protocol struct {
	sess *mpc.Session

	// mine holds this party's own shares (the masks), in AddMine order.
	mine []share.Share
	// outgoing holds the masked values awaiting the exchange round.
	outgoing []gfp.Element
	// received holds masked values per contributor, in their send order.
	received map[party.ID][]gfp.Element
	// expected counts AddOther calls per contributor.
	expected map[party.ID]int
}

// New returns an input protocol instance bound to the session.
func New(sess *mpc.Session) *Protocol {
	p := &Protocol{sess: sess}
	p.Reset()
	return p
}

// Reset discards all buffered inputs.
func (p *Protocol) Reset() {
	p.mine = nil
	p.outgoing = nil
	p.received = make(map[party.ID][]gfp.Element)
	p.expected = make(map[party.ID]int)
}

// adopter returns the party that adopts the masked value of contributor.
func adopter(contributor party.ID) party.ID {
	if contributor == 0 {
		return 1
	}
	return 0
}

// AddMine schedules one private value of the local party.
func (p *Protocol) AddMine(value gfp.Element) {
	mask := p.sess.Field.Random(p.sess.Rand())
	p.mine = append(p.mine, share.New(mask))
	p.outgoing = append(p.outgoing, value.Sub(mask))
}

// AddOther announces that the given party will contribute one value this
// round.
func (p *Protocol) AddOther(contributor party.ID) error {
	if contributor == p.sess.SelfID() {
		return mpc.Errorf(mpc.KindUnsupported, "add_other for self, use add_mine")
	}
	p.expected[contributor]++
	return nil
}

// Exchange performs the input round: every party sends its batch of masked
// values to all peers and collects theirs. Batches may be empty.
func (p *Protocol) Exchange() error {
	field := p.sess.Field
	msg := make([]byte, 0, len(p.outgoing)*field.ElementSize())
	for _, masked := range p.outgoing {
		msg = append(msg, masked.Bytes()...)
	}
	all, err := p.sess.Player.Broadcast(msg)
	if err != nil {
		return mpc.Errorf(mpc.KindCommunication, "input exchange: %w", err)
	}

	es := field.ElementSize()
	for _, id := range p.sess.Parties {
		if id == p.sess.SelfID() {
			continue
		}
		body := all[id]
		if len(body)%es != 0 {
			return mpc.Errorf(mpc.KindCommunication, "input batch from party %s has stray %d bytes", id, len(body)%es)
		}
		count := len(body) / es
		if count != p.expected[id] {
			return mpc.Errorf(mpc.KindCommunication,
				"party %s sent %d inputs, %d were announced", id, count, p.expected[id])
		}
		values := make([]gfp.Element, count)
		for i := 0; i < count; i++ {
			v, err := field.SetBytes(body[i*es : (i+1)*es])
			if err != nil {
				return mpc.Errorf(mpc.KindCommunication, "decoding input from party %s: %w", id, err)
			}
			values[i] = v
		}
		p.received[id] = append(p.received[id], values...)
	}
	p.outgoing = nil
	p.expected = make(map[party.ID]int)
	return nil
}

// FinalizeMine returns the next share of a value this party contributed.
func (p *Protocol) FinalizeMine() (share.Share, error) {
	if len(p.mine) == 0 {
		return share.Share{}, mpc.Errorf(mpc.KindUnsupported, "no own input left to finalize")
	}
	s := p.mine[0]
	p.mine = p.mine[1:]
	return s, nil
}

// FinalizeOther returns the local share of the next value contributed by the
// given party. It fails if no buffered masked value exists for that
// contributor.
func (p *Protocol) FinalizeOther(contributor party.ID) (share.Share, error) {
	buffered := p.received[contributor]
	if len(buffered) == 0 {
		return share.Share{}, mpc.Errorf(mpc.KindCommunication,
			"no buffered input from party %s", contributor)
	}
	masked := buffered[0]
	p.received[contributor] = buffered[1:]
	if p.sess.SelfID() == adopter(contributor) {
		return share.New(masked), nil
	}
	return share.New(p.sess.Field.Zero()), nil
}
