// Package prng provides the deterministic byte streams behind the share
// protocols: pairwise synchronized streams seeded once at setup, and joint
// coin flips bound to already-fixed transcripts.
package prng

import (
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Stream is a deterministic, infinitely extendable byte stream keyed by a
// seed. Two streams built from the same seed and domain yield identical
// output.
//
// Streams are the correctness backbone of the masked two-party protocol:
// both ends must draw exactly the same number of bytes in the same order.
// The draw counter exposes the position so protocols can assert synchrony
// at checkpoints.
type Stream struct {
	digest io.Reader
	drawn  uint64
}

// NewStream derives a stream from seed under a domain separation label.
func NewStream(domain string, seed []byte) *Stream {
	h := blake3.New()
	_, _ = h.Write([]byte(domain))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(seed)
	return &Stream{digest: h.Digest()}
}

// Read implements io.Reader. It never fails.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := io.ReadFull(s.digest, p)
	if err != nil {
		panic(fmt.Sprintf("prng: stream failure: %v", err))
	}
	s.drawn += uint64(n)
	return n, nil
}

// Drawn returns the number of bytes consumed so far.
func (s *Stream) Drawn() uint64 { return s.drawn }

// Skip advances the stream by n bytes, as if they had been read.
func (s *Stream) Skip(n int) {
	buf := make([]byte, n)
	_, _ = s.Read(buf)
}
