package prep

import (
	"github.com/viethuyvu/MP-SPDZ/internal/prng"
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

// InsecureSource is a trusted-dealer emulation for development and tests.
// All parties construct it from the same public seed and replay an
// identical randomness stream, so each party can compute its own additive
// fragment of every dealt value locally, without communication. The dealt
// values, including the MAC key, are derivable by anyone holding the seed.
type InsecureSource struct {
	sess   *mpc.Session
	stream *prng.Stream
	alpha  gfp.Element
	mine   gfp.Element
	auth   bool
}

// NewInsecureSource deals from the given public seed. With withMAC set, a
// MAC key is dealt first and every produced share carries a MAC fragment.
func NewInsecureSource(sess *mpc.Session, seed []byte, withMAC bool) *InsecureSource {
	s := &InsecureSource{
		sess:   sess,
		stream: prng.NewStream("prep/insecure", seed),
		auth:   withMAC,
	}
	if withMAC {
		s.alpha = sess.Field.Random(s.stream)
		s.mine = s.fragment(s.alpha)
	}
	return s
}

// AlphaShare returns this party's additive fragment of the dealt MAC key.
func (s *InsecureSource) AlphaShare() gfp.Element { return s.mine }

// fragment splits v additively. Every party draws all n-1 high fragments
// to keep the streams aligned; party 0 absorbs the remainder.
func (s *InsecureSource) fragment(v gfp.Element) gfp.Element {
	field := s.sess.Field
	self := s.sess.SelfID()
	sum := field.Zero()
	mine := field.Zero()
	for j := party.ID(1); j < s.sess.N(); j++ {
		f := field.Random(s.stream)
		sum = sum.Add(f)
		if j == self {
			mine = f
		}
	}
	if self == 0 {
		mine = v.Sub(sum)
	}
	return mine
}

func (s *InsecureSource) shareOf(v gfp.Element) share.Share {
	val := s.fragment(v)
	if !s.auth {
		return share.New(val)
	}
	return share.NewAuth(val, s.fragment(s.alpha.Mul(v)))
}

// BufferTriples deals count multiplication triples.
func (s *InsecureSource) BufferTriples(count int) ([]share.Triple, error) {
	field := s.sess.Field
	out := make([]share.Triple, count)
	for i := range out {
		a := field.Random(s.stream)
		b := field.Random(s.stream)
		out[i] = share.Triple{
			A: s.shareOf(a),
			B: s.shareOf(b),
			C: s.shareOf(a.Mul(b)),
		}
	}
	return out, nil
}

// BufferBits deals count shared random bits.
func (s *InsecureSource) BufferBits(count int) ([]share.Share, error) {
	field := s.sess.Field
	out := make([]share.Share, count)
	for i := range out {
		out[i] = s.shareOf(field.RandomBit(s.stream))
	}
	return out, nil
}
