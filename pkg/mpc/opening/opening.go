// Package opening implements batched reconstruction of clear values from
// queued shares, with MAC verification for authenticated sharings.
package opening

import (
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/viethuyvu/MP-SPDZ/internal/params"
	"github.com/viethuyvu/MP-SPDZ/internal/prng"
	"github.com/viethuyvu/MP-SPDZ/internal/queue"
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

// Protocol maintains a FIFO queue of shares pending disclosure. Exchange
// performs one all-to-all round, reconstructs the queued values in order,
// and, for authenticated sharings, verifies the MAC relation over the whole
// batch under a random linear combination drawn only after the values are
// fixed. Any mismatch is a hard abort.
type Protocol struct {
	sess  *mpc.Session
	alpha gfp.Element
	auth  bool

	pending queue.Queue[share.Share]
}

// New returns an opening protocol for plain (unauthenticated) shares.
func New(sess *mpc.Session) *Protocol {
	return &Protocol{sess: sess}
}

// NewAuthenticated returns an opening protocol that checks MACs against the
// local additive share of the global key α.
func NewAuthenticated(sess *mpc.Session, alphaShare gfp.Element) *Protocol {
	return &Protocol{sess: sess, alpha: alphaShare, auth: true}
}

// Authenticated reports whether MACs are verified at opening.
func (o *Protocol) Authenticated() bool { return o.auth }

// AlphaShare returns the local share of the global MAC key, if any.
func (o *Protocol) AlphaShare() (gfp.Element, bool) { return o.alpha, o.auth }

// Open queues a share for disclosure in the next exchange.
func (o *Protocol) Open(s share.Share) {
	o.pending.Push(s)
}

// Pending returns the number of queued shares.
func (o *Protocol) Pending() int { return o.pending.Len() }

// Exchange opens all queued shares in one network round and returns the
// clear values in queue order. The queue is cleared regardless of outcome.
func (o *Protocol) Exchange() ([]gfp.Element, error) {
	field := o.sess.Field
	batch := make([]share.Share, 0, o.pending.Len())
	for {
		s, ok := o.pending.Pop()
		if !ok {
			break
		}
		batch = append(batch, s)
	}
	if len(batch) == 0 {
		return nil, nil
	}

	// One round: every party transmits its value fragments to every other
	// party. MAC fragments never leave the party that holds them.
	es := field.ElementSize()
	msg := make([]byte, 0, len(batch)*es)
	for _, s := range batch {
		msg = append(msg, s.Value().Bytes()...)
	}
	all, err := o.sess.Player.Broadcast(msg)
	if err != nil {
		return nil, mpc.Errorf(mpc.KindCommunication, "opening exchange: %w", err)
	}

	values := make([]gfp.Element, len(batch))
	for i := range values {
		values[i] = field.Zero()
	}
	for id := party.ID(0); id < o.sess.N(); id++ {
		body := all[id]
		if len(body) != len(batch)*es {
			return nil, mpc.Errorf(mpc.KindCommunication,
				"opening batch from party %s has %d bytes, want %d", id, len(body), len(batch)*es)
		}
		for i := range values {
			fragment, err := field.SetBytes(body[i*es : (i+1)*es])
			if err != nil {
				return nil, mpc.Errorf(mpc.KindCommunication, "decoding fragment from party %s: %w", id, err)
			}
			values[i] = values[i].Add(fragment)
		}
	}

	if o.auth {
		if err := o.checkMACs(batch, values); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// checkMACs verifies Σᵢ σᵢ = 0 for σᵢ = Σⱼ rⱼ·macᵢⱼ − αᵢ·Σⱼ rⱼ·vⱼ, with
// coefficients rⱼ drawn from a joint coin flipped after the values were
// fixed, binding the check to this exact batch.
func (o *Protocol) checkMACs(batch []share.Share, values []gfp.Element) error {
	field := o.sess.Field

	seed, err := prng.JointSeed(o.sess.Player, o.sess.Rand())
	if err != nil {
		return err
	}
	coeffs := prng.NewStream("opening/mac-check", seed)

	sigma := field.Zero()
	combined := field.Zero()
	for j, s := range batch {
		mac, ok := s.MAC()
		if !ok {
			return mpc.Errorf(mpc.KindConsistency, "share %d in authenticated opening carries no MAC", j)
		}
		r := field.Random(coeffs)
		sigma = sigma.Add(r.Mul(mac))
		combined = combined.Add(r.Mul(values[j]))
	}
	sigma = sigma.Sub(o.alpha.Mul(combined))

	// Commit to the local check value before seeing anyone else's, so a
	// cheating party cannot pick its σ as a function of the honest ones.
	opened, err := o.openCommitted(sigma)
	if err != nil {
		return err
	}
	total := field.Zero()
	for _, s := range opened {
		total = total.Add(s)
	}
	if !total.IsZero() {
		o.sess.Log().Error().Msg("MAC check failed, aborting")
		return mpc.Errorf(mpc.KindConsistency, "MAC check failed over %d opened values", len(batch))
	}
	return nil
}

// openCommitted reveals one field element per party by commit-then-open.
func (o *Protocol) openCommitted(x gfp.Element) ([]gfp.Element, error) {
	field := o.sess.Field
	nonce := make([]byte, params.CommitBytes)
	if _, err := io.ReadFull(o.sess.Rand(), nonce); err != nil {
		return nil, mpc.Errorf(mpc.KindSetup, "sampling commitment nonce: %w", err)
	}

	commits, err := o.sess.Player.Broadcast(elementCommitment(o.sess.SelfID(), nonce, x))
	if err != nil {
		return nil, mpc.Errorf(mpc.KindCommunication, "broadcasting check commitment: %w", err)
	}
	reveals, err := o.sess.Player.Broadcast(append(nonce, x.Bytes()...))
	if err != nil {
		return nil, mpc.Errorf(mpc.KindCommunication, "revealing check value: %w", err)
	}

	out := make([]gfp.Element, o.sess.N())
	for id := party.ID(0); id < o.sess.N(); id++ {
		reveal := reveals[id]
		if len(reveal) != params.CommitBytes+field.ElementSize() {
			return nil, mpc.Errorf(mpc.KindCommunication, "check reveal from party %s has %d bytes", id, len(reveal))
		}
		v, err := field.SetBytes(reveal[params.CommitBytes:])
		if err != nil {
			return nil, mpc.Errorf(mpc.KindCommunication, "decoding check value from party %s: %w", id, err)
		}
		if id != o.sess.SelfID() {
			want := elementCommitment(id, reveal[:params.CommitBytes], v)
			if !equalBytes(want, commits[id]) {
				return nil, mpc.Errorf(mpc.KindConsistency, "party %s opened a check value not matching its commitment", id)
			}
		}
		out[id] = v
	}
	return out, nil
}

func elementCommitment(id party.ID, nonce []byte, x gfp.Element) []byte {
	h := sha3.New256()
	_, _ = h.Write([]byte("opening/check-commit"))
	_, _ = h.Write(id.Bytes())
	_, _ = h.Write(nonce)
	_, _ = h.Write(x.Bytes())
	return h.Sum(nil)
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
