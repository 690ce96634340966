package rep3

import (
	"crypto/subtle"
	"io"

	"github.com/viethuyvu/MP-SPDZ/internal/params"
	"github.com/viethuyvu/MP-SPDZ/internal/prng"
	"github.com/viethuyvu/MP-SPDZ/internal/queue"
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/protocol"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

// Protocol is one party's instance of the replicated multiplication
// protocol. Multiplying two replicated sharings locally yields a plain
// 3-way additive sharing of the product; one batched resharing round (one
// message to each neighbour) restores replicated form.
type Protocol struct {
	machine protocol.Machine
	sess    *mpc.Session

	// streamNext is synchronized with the next party, streamPrev with the
	// previous one; together they provide zero-summing masks for free.
	streamNext *prng.Stream
	streamPrev *prng.Stream

	// contributions holds this party's additive fragments zᵢ of the
	// pending batch, computed at prepare time.
	contributions []gfp.Element
	results       queue.Queue[Share]

	dotAcc  gfp.Element
	dotOpen bool

	// transcript accumulates batch results for the deferred consistency
	// check when malicious mode is on.
	malicious  bool
	transcript []Share
}

var _ protocol.Protocol[Share] = (*Protocol)(nil)

// New establishes the pairwise streams with both neighbours and returns a
// ready protocol instance. All three parties must call it at the same point.
func New(sess *mpc.Session) (*Protocol, error) {
	if sess.N() != NumParties {
		return nil, mpc.Errorf(mpc.KindSetup, "replicated protocol is fixed to 3 parties, got %d", sess.N())
	}
	p := &Protocol{sess: sess}
	if err := p.setupStreams(); err != nil {
		return nil, err
	}
	sess.Log().Info().Msg("replicated streams established")
	return p, nil
}

// EnableCheck turns on the post-hoc batch consistency check; Check must
// then be called before results are trusted.
func (p *Protocol) EnableCheck() { p.malicious = true }

// setupStreams runs both pairwise seed agreements in one batched round:
// all sends precede all receives, so the ring cannot deadlock.
func (p *Protocol) setupStreams() error {
	self := p.sess.SelfID()
	next := self.Next(NumParties)
	prev := self.Prev(NumParties)
	player := p.sess.Player

	contribNext := make([]byte, params.SeedBytes)
	contribPrev := make([]byte, params.SeedBytes)
	for _, c := range [][]byte{contribNext, contribPrev} {
		if _, err := io.ReadFull(p.sess.Rand(), c); err != nil {
			return mpc.Errorf(mpc.KindSetup, "sampling stream seed: %w", err)
		}
	}

	if err := player.SendTo(next, prng.Commit(self, contribNext)); err != nil {
		return mpc.Errorf(mpc.KindCommunication, "sending stream commitment: %w", err)
	}
	if err := player.SendTo(prev, prng.Commit(self, contribPrev)); err != nil {
		return mpc.Errorf(mpc.KindCommunication, "sending stream commitment: %w", err)
	}
	commitFromPrev, err := player.ReceiveFrom(prev)
	if err != nil {
		return mpc.Errorf(mpc.KindCommunication, "receiving stream commitment: %w", err)
	}
	commitFromNext, err := player.ReceiveFrom(next)
	if err != nil {
		return mpc.Errorf(mpc.KindCommunication, "receiving stream commitment: %w", err)
	}

	if err := player.SendTo(next, contribNext); err != nil {
		return mpc.Errorf(mpc.KindCommunication, "sending stream contribution: %w", err)
	}
	if err := player.SendTo(prev, contribPrev); err != nil {
		return mpc.Errorf(mpc.KindCommunication, "sending stream contribution: %w", err)
	}
	fromPrev, err := player.ReceiveFrom(prev)
	if err != nil {
		return mpc.Errorf(mpc.KindCommunication, "receiving stream contribution: %w", err)
	}
	fromNext, err := player.ReceiveFrom(next)
	if err != nil {
		return mpc.Errorf(mpc.KindCommunication, "receiving stream contribution: %w", err)
	}

	if len(fromPrev) != params.SeedBytes || len(fromNext) != params.SeedBytes {
		return mpc.Errorf(mpc.KindCommunication, "stream contribution has wrong length")
	}
	if subtle.ConstantTimeCompare(prng.Commit(prev, fromPrev), commitFromPrev) != 1 {
		return mpc.Errorf(mpc.KindConsistency, "party %s opened a stream seed not matching its commitment", prev)
	}
	if subtle.ConstantTimeCompare(prng.Commit(next, fromNext), commitFromNext) != 1 {
		return mpc.Errorf(mpc.KindConsistency, "party %s opened a stream seed not matching its commitment", next)
	}

	seedNext := make([]byte, params.SeedBytes)
	seedPrev := make([]byte, params.SeedBytes)
	for i := range seedNext {
		seedNext[i] = contribNext[i] ^ fromNext[i]
		seedPrev[i] = contribPrev[i] ^ fromPrev[i]
	}
	p.streamNext = prng.NewStream("rep3/pair-stream", seedNext)
	p.streamPrev = prng.NewStream("rep3/pair-stream", seedPrev)
	return nil
}

// zeroMask draws the party's fragment of a jointly zero-summing mask.
// The terms drawn from the stream shared with the next party cancel the
// next party's matching draws from its previous-stream.
func (p *Protocol) zeroMask() gfp.Element {
	field := p.sess.Field
	return field.Random(p.streamNext).Sub(field.Random(p.streamPrev))
}

// localProduct is this party's additive contribution to x·y:
// the three cross terms it can compute from its fragment pairs.
func (p *Protocol) localProduct(x, y Share) gfp.Element {
	t := x.Left.Mul(y.Left)
	t = t.Add(x.Left.Mul(y.Right))
	return t.Add(x.Right.Mul(y.Left))
}

func (p *Protocol) InitMul() {
	p.machine.Reset()
	p.contributions = p.contributions[:0]
	p.results.Clear()
}

func (p *Protocol) PrepareMul(x, y Share) error {
	if err := p.machine.Prepared(); err != nil {
		return err
	}
	p.contributions = append(p.contributions, p.localProduct(x, y).Add(p.zeroMask()))
	return nil
}

// Exchange reshares the whole pending batch in a single round: this party's
// contributions go to the previous neighbour, and the next neighbour's
// arrive to complete the replicated pairs.
func (p *Protocol) Exchange() error {
	if err := p.machine.BeginExchange(); err != nil {
		return err
	}
	field := p.sess.Field
	self := p.sess.SelfID()
	next := self.Next(NumParties)
	prev := self.Prev(NumParties)
	es := field.ElementSize()

	msg := make([]byte, 0, len(p.contributions)*es)
	for _, z := range p.contributions {
		msg = append(msg, z.Bytes()...)
	}
	if err := p.sess.Player.SendTo(prev, msg); err != nil {
		return mpc.Errorf(mpc.KindCommunication, "sending resharing batch: %w", err)
	}
	theirs, err := p.sess.Player.ReceiveFrom(next)
	if err != nil {
		return mpc.Errorf(mpc.KindCommunication, "receiving resharing batch: %w", err)
	}
	if len(theirs) != len(p.contributions)*es {
		return mpc.Errorf(mpc.KindCommunication,
			"resharing batch has %d bytes, want %d", len(theirs), len(p.contributions)*es)
	}

	for i, z := range p.contributions {
		right, err := field.SetBytes(theirs[i*es : (i+1)*es])
		if err != nil {
			return mpc.Errorf(mpc.KindCommunication, "decoding resharing fragment: %w", err)
		}
		res := Share{Left: z, Right: right}
		p.results.Push(res)
		if p.malicious {
			p.transcript = append(p.transcript, res)
		}
	}
	p.machine.EndExchange()
	return nil
}

func (p *Protocol) FinalizeMul() (Share, error) {
	if err := p.machine.Finalized(); err != nil {
		return Share{}, err
	}
	res, _ := p.results.Pop()
	return res, nil
}

// InitDotProd starts a dot-product batch; groups share the discipline of
// multiplication batches but cost one resharing element per group.
func (p *Protocol) InitDotProd() {
	p.InitMul()
	p.dotAcc = p.sess.Field.Zero()
	p.dotOpen = false
}

// PrepareDotProd accumulates x·y into the current group.
func (p *Protocol) PrepareDotProd(x, y Share) error {
	if p.machine.State() != protocol.Accumulating {
		return mpc.Errorf(mpc.KindUnsupported, "prepare_dotprod in state %s", p.machine.State())
	}
	p.dotAcc = p.dotAcc.Add(p.localProduct(x, y))
	p.dotOpen = true
	return nil
}

// NextDotProd closes the current group, masking its combined contribution.
func (p *Protocol) NextDotProd() error {
	if !p.dotOpen {
		return mpc.Errorf(mpc.KindUnsupported, "next_dotprod without prepared operands")
	}
	if err := p.machine.Prepared(); err != nil {
		return err
	}
	p.contributions = append(p.contributions, p.dotAcc.Add(p.zeroMask()))
	p.dotAcc = p.sess.Field.Zero()
	p.dotOpen = false
	return nil
}

// FinalizeDotProd returns the next group result.
func (p *Protocol) FinalizeDotProd() (Share, error) {
	return p.FinalizeMul()
}

// RandomShare draws a fresh random replicated sharing with no
// communication, using both pairwise streams.
func (p *Protocol) RandomShare() Share {
	field := p.sess.Field
	return Share{
		Left:  field.Random(p.streamPrev),
		Right: field.Random(p.streamNext),
	}
}

// Check verifies replication consistency of the accumulated batch results
// by opening a random linear combination: each fragment of the combination
// is held by two parties, and the copies must agree. Failure aborts.
func (p *Protocol) Check() error {
	if !p.malicious || len(p.transcript) == 0 {
		p.transcript = nil
		return nil
	}
	field := p.sess.Field

	seed, err := prng.JointSeed(p.sess.Player, p.sess.Rand())
	if err != nil {
		return err
	}
	coeffs := prng.NewStream("rep3/batch-check", seed)

	combined := Share{Left: field.Zero(), Right: field.Zero()}
	for _, s := range p.transcript {
		r := field.Random(coeffs)
		combined = combined.Add(s.MulClear(r))
	}
	p.transcript = nil

	all, err := p.sess.Player.Broadcast(combined.AppendTo(nil))
	if err != nil {
		return mpc.Errorf(mpc.KindCommunication, "broadcasting batch check: %w", err)
	}
	shares := make([]Share, NumParties)
	for id := party.ID(0); id < NumParties; id++ {
		if len(all[id]) != Size(field) {
			return mpc.Errorf(mpc.KindCommunication, "batch check from party %s has %d bytes", id, len(all[id]))
		}
		s, err := FromBytes(field, all[id])
		if err != nil {
			return mpc.Errorf(mpc.KindCommunication, "decoding batch check from party %s: %w", id, err)
		}
		shares[id] = s
	}
	for i := party.ID(0); i < NumParties; i++ {
		// Party i's Right must be party i+1's Left: both are fragment aᵢ₊₁.
		if !shares[i].Right.Equal(shares[i.Next(NumParties)].Left) {
			return mpc.Errorf(mpc.KindConsistency,
				"replicated fragments diverge between parties %s and %s", i, i.Next(NumParties))
		}
	}
	return nil
}
