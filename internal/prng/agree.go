package prng

import (
	"bytes"
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/viethuyvu/MP-SPDZ/internal/params"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

// Commit binds a seed contribution to its contributor. Exchanging
// commitments before contributions keeps either side from biasing the
// agreed seed.
func Commit(contributor party.ID, contribution []byte) []byte {
	h := sha3.New256()
	_, _ = h.Write([]byte("MP-SPDZ/seed-commit"))
	_, _ = h.Write(contributor.Bytes())
	_, _ = h.Write(contribution)
	return h.Sum(nil)
}

// AgreeSeed establishes a shared seed with one peer by commit-reveal: both
// sides contribute randomness, neither can bias the result after seeing the
// other's share. The returned seed is the XOR of the two contributions.
func AgreeSeed(p mpc.Player, peer party.ID, rand io.Reader) ([]byte, error) {
	contribution := make([]byte, params.SeedBytes)
	if _, err := io.ReadFull(rand, contribution); err != nil {
		return nil, mpc.Errorf(mpc.KindSetup, "sampling seed contribution: %w", err)
	}

	if err := p.SendTo(peer, Commit(p.MyID(), contribution)); err != nil {
		return nil, mpc.Errorf(mpc.KindCommunication, "sending seed commitment: %w", err)
	}
	theirCommit, err := p.ReceiveFrom(peer)
	if err != nil {
		return nil, mpc.Errorf(mpc.KindCommunication, "receiving seed commitment: %w", err)
	}
	if err := p.SendTo(peer, contribution); err != nil {
		return nil, mpc.Errorf(mpc.KindCommunication, "sending seed contribution: %w", err)
	}
	theirs, err := p.ReceiveFrom(peer)
	if err != nil {
		return nil, mpc.Errorf(mpc.KindCommunication, "receiving seed contribution: %w", err)
	}
	if len(theirs) != params.SeedBytes {
		return nil, mpc.Errorf(mpc.KindCommunication, "seed contribution has %d bytes, want %d", len(theirs), params.SeedBytes)
	}
	if subtle.ConstantTimeCompare(Commit(peer, theirs), theirCommit) != 1 {
		return nil, mpc.Errorf(mpc.KindConsistency, "party %s opened a seed not matching its commitment", peer)
	}

	seed := make([]byte, params.SeedBytes)
	for i := range seed {
		seed[i] = contribution[i] ^ theirs[i]
	}
	return seed, nil
}

// JointSeed establishes a seed all parties agree on, again by commit-reveal,
// over the broadcast channel. It is used for the random coefficients of the
// MAC check and the sacrifice, and must only be called after the values the
// coefficients bind are fixed.
func JointSeed(p mpc.Player, rand io.Reader) ([]byte, error) {
	n := int(p.NumParties())
	contribution := make([]byte, params.SeedBytes)
	if _, err := io.ReadFull(rand, contribution); err != nil {
		return nil, mpc.Errorf(mpc.KindSetup, "sampling seed contribution: %w", err)
	}

	commits, err := p.Broadcast(Commit(p.MyID(), contribution))
	if err != nil {
		return nil, mpc.Errorf(mpc.KindCommunication, "broadcasting seed commitment: %w", err)
	}
	reveals, err := p.Broadcast(contribution)
	if err != nil {
		return nil, mpc.Errorf(mpc.KindCommunication, "broadcasting seed contribution: %w", err)
	}

	seed := make([]byte, params.SeedBytes)
	for i := 0; i < n; i++ {
		id := party.ID(i)
		reveal := reveals[i]
		if len(reveal) != params.SeedBytes {
			return nil, mpc.Errorf(mpc.KindCommunication, "seed contribution from party %s has %d bytes, want %d", id, len(reveal), params.SeedBytes)
		}
		if id != p.MyID() && !bytes.Equal(Commit(id, reveal), commits[i]) {
			return nil, mpc.Errorf(mpc.KindConsistency, "party %s opened a seed not matching its commitment", id)
		}
		for j := range seed {
			seed[j] ^= reveal[j]
		}
	}
	return seed, nil
}
