// Package masked implements the custom two-party multiplication protocol
// built on one synchronized pseudorandom stream.
//
// Roles are fixed: party 0 is the sender, party 1 the receiver. During setup
// both parties agree on a stream seed by commit-reveal; afterwards each
// multiplication batch costs the sender one message of two masked elements
// per pair, and nothing else. Correctness hinges on both parties drawing
// exactly the same values from their mirrored streams in the same order:
// a desynchronized stream produces silently wrong products, so every batch
// message carries the sender's draw counter and the receiver verifies it
// against its own before drawing.
package masked

import (
	"encoding/binary"

	"github.com/viethuyvu/MP-SPDZ/internal/prng"
	"github.com/viethuyvu/MP-SPDZ/internal/queue"
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/protocol"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
)

// SenderID and ReceiverID are the fixed role assignments.
const (
	SenderID   = 0
	ReceiverID = 1
)

const counterBytes = 8

// Protocol is one party's instance of the masked multiplication protocol.
type Protocol struct {
	machine protocol.Machine
	sess    *mpc.Session
	stream  *prng.Stream

	xs, ys  []share.Share
	results queue.Queue[share.Share]
}

var _ protocol.Protocol[share.Share] = (*Protocol)(nil)

// New runs the seed agreement with the peer and returns a ready protocol
// instance. Both parties must call it at the same point of the run.
func New(sess *mpc.Session) (*Protocol, error) {
	if sess.N() != 2 {
		return nil, mpc.Errorf(mpc.KindSetup, "masked protocol is fixed to 2 parties, got %d", sess.N())
	}
	peer := SenderID + ReceiverID - sess.SelfID()
	seed, err := prng.AgreeSeed(sess.Player, peer, sess.Rand())
	if err != nil {
		return nil, err
	}
	sess.Log().Info().Msg("masked protocol stream established")
	return &Protocol{
		sess:   sess,
		stream: prng.NewStream("masked/mul-stream", seed),
	}, nil
}

// Stream exposes the synchronized stream for the companion preprocessing
// facility, which draws shared bits from it.
func (p *Protocol) Stream() *prng.Stream { return p.stream }

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
	var err error
	if p.sess.SelfID() == SenderID {
		err = p.exchangeSender()
	} else {
		err = p.exchangeReceiver()
	}
	if err != nil {
		return err
	}
	p.machine.EndExchange()
	return nil
}

func (p *Protocol) exchangeSender() error {
	field := p.sess.Field
	msg := make([]byte, counterBytes, counterBytes+2*len(p.xs)*field.ElementSize())
	binary.BigEndian.PutUint64(msg, p.stream.Drawn())

	for i := range p.xs {
		r1 := field.Random(p.stream)
		r2 := field.Random(p.stream)
		q := field.Random(p.stream)

		d := p.xs[i].Value().Sub(r1)
		e := p.ys[i].Value().Sub(r2)
		msg = append(msg, d.Bytes()...)
		msg = append(msg, e.Bytes()...)

		p.results.Push(share.New(q))
	}
	if err := p.sess.Player.SendTo(ReceiverID, msg); err != nil {
		return mpc.Errorf(mpc.KindCommunication, "sending masked operands: %w", err)
	}
	return nil
}

func (p *Protocol) exchangeReceiver() error {
	field := p.sess.Field
	msg, err := p.sess.Player.ReceiveFrom(SenderID)
	if err != nil {
		return mpc.Errorf(mpc.KindCommunication, "receiving masked operands: %w", err)
	}
	es := field.ElementSize()
	if len(msg) != counterBytes+2*len(p.xs)*es {
		return mpc.Errorf(mpc.KindCommunication,
			"masked batch of %d pairs needs %d bytes, got %d",
			len(p.xs), counterBytes+2*len(p.xs)*es, len(msg))
	}
	if senderDrawn := binary.BigEndian.Uint64(msg); senderDrawn != p.stream.Drawn() {
		return mpc.Errorf(mpc.KindConsistency,
			"randomness streams desynchronized: sender drew %d bytes, receiver %d",
			senderDrawn, p.stream.Drawn())
	}
	body := msg[counterBytes:]

	for i := range p.xs {
		r1 := field.Random(p.stream)
		r2 := field.Random(p.stream)
		q := field.Random(p.stream)

		d, err := field.SetBytes(body[2*i*es : (2*i+1)*es])
		if err != nil {
			return mpc.Errorf(mpc.KindCommunication, "decoding masked operand: %w", err)
		}
		e, err := field.SetBytes(body[(2*i+1)*es : (2*i+2)*es])
		if err != nil {
			return mpc.Errorf(mpc.KindCommunication, "decoding masked operand: %w", err)
		}

		// u = x_r + d = x - r1, v = y_r + e = y - r2, so
		// (u + r1)(v + r2) is the full product x·y.
		u := p.xs[i].Value().Add(d)
		v := p.ys[i].Value().Add(e)
		product := u.Add(r1).Mul(v.Add(r2))
		p.results.Push(share.New(product.Sub(q)))
	}
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

// Field returns the clear computation domain.
func (p *Protocol) Field() *gfp.Field { return p.sess.Field }
