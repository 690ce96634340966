// Package prep produces and buffers the correlated randomness consumed by
// the multiplication protocols: triples, random bits, doubly-shared bits
// and truncation pairs.
//
// A Buffer keeps one FIFO queue per item kind. Requests block the calling
// thread until a refill sized by the configured batch produces enough
// items; a refill that cannot produce is a fatal InsufficientPreprocessing
// fault naming the missing kind and count.
package prep

import (
	"github.com/viethuyvu/MP-SPDZ/internal/queue"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/opening"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
)

// Kind identifies a preprocessed item kind.
type Kind string

const (
	KindTriple    Kind = "triple"
	KindBit       Kind = "bit"
	KindDABit     Kind = "dabit"
	KindTruncPair Kind = "truncpair"
)

// TripleProducer is the minimal production capability of a randomness
// source: a batch of raw (unchecked) triples.
type TripleProducer interface {
	BufferTriples(count int) ([]share.Triple, error)
}

// BitProducer is implemented by sources that supply random bits natively;
// without it, bits are derived from triples by the square-root trick.
type BitProducer interface {
	BufferBits(count int) ([]share.Share, error)
}

// Buffer is the per-thread preprocessing facility. It owns its queues; the
// lifetime spans the run of one computation thread.
type Buffer struct {
	sess   *mpc.Session
	source TripleProducer
	opener *opening.Protocol

	// sacrifice applies the cut-and-choose check to every triple batch
	// before it becomes visible to consumers.
	sacrifice bool

	triples queue.Queue[share.Triple]
	bits    queue.Queue[share.Share]
	dabits  queue.Queue[share.DABit]
	trunc   map[uint]*queue.Queue[share.TruncPair]

	produced map[Kind]int
	consumed map[Kind]int
}

// New returns a buffer drawing raw triples from source and opening through
// opener. With checked true, triple batches pass the sacrifice before use.
func New(sess *mpc.Session, source TripleProducer, opener *opening.Protocol, checked bool) *Buffer {
	return &Buffer{
		sess:      sess,
		source:    source,
		opener:    opener,
		sacrifice: checked,
		trunc:     make(map[uint]*queue.Queue[share.TruncPair]),
		produced:  make(map[Kind]int),
		consumed:  make(map[Kind]int),
	}
}

// Produced returns the number of items of the given kind generated so far.
func (b *Buffer) Produced(kind Kind) int { return b.produced[kind] }

// Consumed returns the number of items of the given kind handed out so far.
// Together with Produced it lets a harness verify single use.
func (b *Buffer) Consumed(kind Kind) int { return b.consumed[kind] }

func insufficient(kind Kind, want, have int) error {
	return mpc.Errorf(mpc.KindInsufficientPreprocessing,
		"need %d more %s items (%d requested)", want-have, kind, want)
}

// refillTriples produces at least need checked triples.
func (b *Buffer) refillTriples(need int) error {
	batch := b.sess.Config.BatchSize
	if batch < need {
		batch = need
	}
	raw := batch
	if b.sacrifice {
		raw = batch * b.sess.Config.BucketSize
	}
	triples, err := b.source.BufferTriples(raw)
	if err != nil {
		return err
	}
	if len(triples) == 0 {
		return insufficient(KindTriple, need, b.triples.Len())
	}
	if b.sacrifice {
		triples, err = Sacrifice(b.sess, b.opener, triples, b.sess.Config.BucketSize)
		if err != nil {
			return err
		}
	}
	for _, t := range triples {
		b.triples.Push(t)
	}
	b.produced[KindTriple] += len(triples)
	b.sess.Log().Debug().Int("count", len(triples)).Msg("refilled triples")
	return nil
}

// Triples hands out count single-use triples, refilling as needed.
func (b *Buffer) Triples(count int) ([]share.Triple, error) {
	for b.triples.Len() < count {
		if err := b.refillTriples(count - b.triples.Len()); err != nil {
			return nil, err
		}
	}
	out := make([]share.Triple, count)
	for i := range out {
		out[i], _ = b.triples.Pop()
	}
	b.consumed[KindTriple] += count
	return out, nil
}

// RandomBits hands out count single-use shared random bits.
func (b *Buffer) RandomBits(count int) ([]share.Share, error) {
	for b.bits.Len() < count {
		need := count - b.bits.Len()
		batch := b.sess.Config.BatchSize
		if batch < need {
			batch = need
		}
		var bits []share.Share
		var err error
		if producer, ok := b.source.(BitProducer); ok {
			bits, err = producer.BufferBits(batch)
		} else {
			bits, err = b.bitsFromTriples(batch)
		}
		if err != nil {
			return nil, err
		}
		if len(bits) == 0 {
			return nil, insufficient(KindBit, count, b.bits.Len())
		}
		for _, bit := range bits {
			b.bits.Push(bit)
		}
		b.produced[KindBit] += len(bits)
		b.sess.Log().Debug().Int("count", len(bits)).Msg("refilled bits")
	}
	out := make([]share.Share, count)
	for i := range out {
		out[i], _ = b.bits.Pop()
	}
	b.consumed[KindBit] += count
	return out, nil
}

// DABits hands out count single-use doubly-shared bits.
func (b *Buffer) DABits(count int) ([]share.DABit, error) {
	for b.dabits.Len() < count {
		need := count - b.dabits.Len()
		batch := b.sess.Config.BatchSize
		if batch < need {
			batch = need
		}
		dabits, err := b.bufferDABits(batch)
		if err != nil {
			return nil, err
		}
		if len(dabits) == 0 {
			return nil, insufficient(KindDABit, count, b.dabits.Len())
		}
		for _, d := range dabits {
			b.dabits.Push(d)
		}
		b.produced[KindDABit] += len(dabits)
		b.sess.Log().Debug().Int("count", len(dabits)).Msg("refilled dabits")
	}
	out := make([]share.DABit, count)
	for i := range out {
		out[i], _ = b.dabits.Pop()
	}
	b.consumed[KindDABit] += count
	return out, nil
}

// TruncPairs hands out count single-use truncation pairs for shift m.
func (b *Buffer) TruncPairs(count int, m uint) ([]share.TruncPair, error) {
	q := b.trunc[m]
	if q == nil {
		q = &queue.Queue[share.TruncPair]{}
		b.trunc[m] = q
	}
	for q.Len() < count {
		need := count - q.Len()
		batch := b.sess.Config.BatchSize
		if batch < need {
			batch = need
		}
		pairs, err := b.truncPairsFromBits(batch, m)
		if err != nil {
			return nil, err
		}
		if len(pairs) == 0 {
			return nil, insufficient(KindTruncPair, count, q.Len())
		}
		for _, p := range pairs {
			q.Push(p)
		}
		b.produced[KindTruncPair] += len(pairs)
	}
	out := make([]share.TruncPair, count)
	for i := range out {
		out[i], _ = q.Pop()
	}
	b.consumed[KindTruncPair] += count
	return out, nil
}
