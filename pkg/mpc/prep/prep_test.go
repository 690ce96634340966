package prep_test

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/opening"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/prep"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/transport"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

var dealerSeed = bytes.Repeat([]byte{3}, 32)

func newSession(t *testing.T, p mpc.Player, batch int) *mpc.Session {
	t.Helper()
	field, err := gfp.NewFieldFromUint64(97)
	require.NoError(t, err)
	sess, err := mpc.NewSession(p, field, mpc.Config{SecurityParameter: 5, BatchSize: batch})
	require.NoError(t, err)
	return sess
}

// reconstructShares sums value fragments per index across parties.
func reconstructShares(f *gfp.Field, all map[party.ID][]share.Share) []gfp.Element {
	n := len(all[0])
	out := make([]gfp.Element, n)
	for i := 0; i < n; i++ {
		out[i] = f.Zero()
	}
	for _, shares := range all {
		for i, s := range shares {
			out[i] = out[i].Add(s.Value())
		}
	}
	return out
}

func TestInsecureSourceTriples(t *testing.T) {
	var mu sync.Mutex
	as := map[party.ID][]share.Share{}
	bs := map[party.ID][]share.Share{}
	cs := map[party.ID][]share.Share{}

	err := transport.Run(3, func(p mpc.Player) error {
		sess := newSession(t, p, 16)
		src := prep.NewInsecureSource(sess, dealerSeed, false)
		triples, err := src.BufferTriples(8)
		if err != nil {
			return err
		}
		mu.Lock()
		for _, tr := range triples {
			as[p.MyID()] = append(as[p.MyID()], tr.A)
			bs[p.MyID()] = append(bs[p.MyID()], tr.B)
			cs[p.MyID()] = append(cs[p.MyID()], tr.C)
		}
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	f, _ := gfp.NewFieldFromUint64(97)
	a := reconstructShares(f, as)
	b := reconstructShares(f, bs)
	c := reconstructShares(f, cs)
	for i := range a {
		assert.True(t, c[i].Equal(a[i].Mul(b[i])), "triple %d", i)
	}
}

func TestInsecureSourceMACs(t *testing.T) {
	var mu sync.Mutex
	alphas := map[party.ID]gfp.Element{}
	vals := map[party.ID][]share.Share{}

	err := transport.Run(2, func(p mpc.Player) error {
		sess := newSession(t, p, 16)
		src := prep.NewInsecureSource(sess, dealerSeed, true)
		bits, err := src.BufferBits(4)
		if err != nil {
			return err
		}
		mu.Lock()
		alphas[p.MyID()] = src.AlphaShare()
		vals[p.MyID()] = bits
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	f, _ := gfp.NewFieldFromUint64(97)
	alpha := alphas[0].Add(alphas[1])
	values := reconstructShares(f, vals)
	for i, v := range values {
		require.LessOrEqual(t, v.Uint64(), uint64(1))
		m0, ok := vals[0][i].MAC()
		require.True(t, ok)
		m1, _ := vals[1][i].MAC()
		assert.True(t, m0.Add(m1).Equal(alpha.Mul(v)), "bit %d", i)
	}
}

// TestBufferRefillAndCounts requests fewer items than one batch and checks
// a single refill produced the whole batch, then that consumption counts
// every item exactly once.
func TestBufferRefillAndCounts(t *testing.T) {
	const batch = 16
	err := transport.Run(2, func(p mpc.Player) error {
		sess := newSession(t, p, batch)
		src := prep.NewInsecureSource(sess, dealerSeed, false)
		opener := opening.New(sess)
		buf := prep.New(sess, src, opener, false)

		for i := 0; i < batch; i++ {
			if _, err := buf.Triples(1); err != nil {
				return err
			}
		}
		require.Equal(t, batch, buf.Produced(prep.KindTriple))
		require.Equal(t, batch, buf.Consumed(prep.KindTriple))

		// The next request triggers a second refill.
		if _, err := buf.Triples(1); err != nil {
			return err
		}
		require.Equal(t, 2*batch, buf.Produced(prep.KindTriple))
		require.Equal(t, batch+1, buf.Consumed(prep.KindTriple))
		return nil
	})
	require.NoError(t, err)
}

func TestSacrificePassesOnHonestTriples(t *testing.T) {
	var mu sync.Mutex
	out := map[party.ID][]share.Triple{}

	err := transport.Run(2, func(p mpc.Player) error {
		sess := newSession(t, p, 8)
		src := prep.NewInsecureSource(sess, dealerSeed, false)
		opener := opening.New(sess)

		raw, err := src.BufferTriples(8)
		if err != nil {
			return err
		}
		checked, err := prep.Sacrifice(sess, opener, raw, 2)
		if err != nil {
			return err
		}
		mu.Lock()
		out[p.MyID()] = checked
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, out[0], 4)

	for i := range out[0] {
		a := out[0][i].A.Value().Add(out[1][i].A.Value())
		b := out[0][i].B.Value().Add(out[1][i].B.Value())
		c := out[0][i].C.Value().Add(out[1][i].C.Value())
		assert.True(t, c.Equal(a.Mul(b)))
	}
}

// TestSacrificeCatchesBadTriple corrupts the product term of a checked
// triple on one party; the z opening cannot be zero then.
func TestSacrificeCatchesBadTriple(t *testing.T) {
	var mu sync.Mutex
	fails := 0

	err := transport.Run(2, func(p mpc.Player) error {
		sess := newSession(t, p, 8)
		src := prep.NewInsecureSource(sess, dealerSeed, false)
		opener := opening.New(sess)

		raw, err := src.BufferTriples(4)
		if err != nil {
			return err
		}
		if p.MyID() == 1 {
			// Corrupt the triple that the sacrifice consumes as the
			// checked bucket member.
			raw[1].C = share.New(raw[1].C.Value().Add(sess.Field.One()))
		}
		_, err = prep.Sacrifice(sess, opener, raw, 2)
		if err != nil {
			if !mpc.IsKind(err, mpc.KindConsistency) {
				return err
			}
			mu.Lock()
			fails++
			mu.Unlock()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, fails)
}

// tripleOnlySource hides the dealer's direct bit production so the bit
// derivation from triples is what gets exercised.
type tripleOnlySource struct{ src *prep.InsecureSource }

func (s tripleOnlySource) BufferTriples(count int) ([]share.Triple, error) {
	return s.src.BufferTriples(count)
}

func TestRandomBitsFromTriples(t *testing.T) {
	const count = 12
	var mu sync.Mutex
	bits := map[party.ID][]share.Share{}

	err := transport.Run(2, func(p mpc.Player) error {
		sess := newSession(t, p, 16)
		src := prep.NewInsecureSource(sess, dealerSeed, false)
		opener := opening.New(sess)
		buf := prep.New(sess, tripleOnlySource{src}, opener, false)

		out, err := buf.RandomBits(count)
		if err != nil {
			return err
		}
		mu.Lock()
		bits[p.MyID()] = out
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	f, _ := gfp.NewFieldFromUint64(97)
	values := reconstructShares(f, bits)
	seen := map[uint64]bool{}
	for _, v := range values {
		require.LessOrEqual(t, v.Uint64(), uint64(1))
		seen[v.Uint64()] = true
	}
	// Twelve fair bits collapse to one value with probability 2^-11.
	assert.Len(t, seen, 2)
}

func TestDABitsConsistent(t *testing.T) {
	const count = 6
	var mu sync.Mutex
	dabits := map[party.ID][]share.DABit{}

	err := transport.Run(3, func(p mpc.Player) error {
		sess := newSession(t, p, 8)
		src := prep.NewInsecureSource(sess, dealerSeed, false)
		opener := opening.New(sess)
		buf := prep.New(sess, src, opener, false)

		out, err := buf.DABits(count)
		if err != nil {
			return err
		}
		mu.Lock()
		dabits[p.MyID()] = out
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	f, _ := gfp.NewFieldFromUint64(97)
	for i := 0; i < count; i++ {
		arith := f.Zero()
		xor := uint8(0)
		for id := party.ID(0); id < 3; id++ {
			arith = arith.Add(dabits[id][i].Arith.Value())
			xor ^= dabits[id][i].Bit
		}
		assert.Equal(t, uint64(xor), arith.Uint64(), "dabit %d", i)
	}
}

func TestFileRoundTrip(t *testing.T) {
	err := transport.Run(2, func(p mpc.Player) error {
		sess := newSession(t, p, 8)
		src := prep.NewInsecureSource(sess, dealerSeed, false)

		triples, err := src.BufferTriples(5)
		if err != nil {
			return err
		}

		var file bytes.Buffer
		w, err := prep.NewFileWriter(&file, sess.Field, prep.KindTriple, false, 5)
		if err != nil {
			return err
		}
		if err := w.WriteTriples(triples); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}

		rd, err := prep.NewFileSource(bytes.NewReader(file.Bytes()), sess, false)
		if err != nil {
			return err
		}
		require.Equal(t, prep.KindTriple, rd.Kind())
		back, err := rd.BufferTriples(5)
		if err != nil {
			return err
		}
		require.Len(t, back, 5)
		for i := range back {
			require.True(t, triples[i].A.Equal(back[i].A))
			require.True(t, triples[i].B.Equal(back[i].B))
			require.True(t, triples[i].C.Equal(back[i].C))
		}
		return nil
	})
	require.NoError(t, err)
}

func TestFileFieldMismatchRejected(t *testing.T) {
	small, err := gfp.NewFieldFromUint64(97)
	require.NoError(t, err)

	var file bytes.Buffer
	w, err := prep.NewFileWriter(&file, small, prep.KindTriple, false, 40)
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	other, err := gfp.NewFieldFromUint64(101)
	require.NoError(t, err)
	r := transport.NewRouter(2)
	defer r.Close()
	sess, err := mpc.NewSession(r.Player(0), other, mpc.Config{SecurityParameter: 5})
	require.NoError(t, err)

	_, err = prep.NewFileSource(bytes.NewReader(file.Bytes()), sess, false)
	require.Error(t, err)
	assert.True(t, mpc.IsKind(err, mpc.KindSetup))
}

// TestExhaustedFileIsInsufficient drains a file-backed buffer past the
// stored items and expects the dedicated fault kind naming the item kind.
func TestExhaustedFileIsInsufficient(t *testing.T) {
	err := transport.Run(2, func(p mpc.Player) error {
		sess := newSession(t, p, 8)
		src := prep.NewInsecureSource(sess, dealerSeed, false)
		triples, err := src.BufferTriples(5)
		if err != nil {
			return err
		}

		var file bytes.Buffer
		w, err := prep.NewFileWriter(&file, sess.Field, prep.KindTriple, false, 5)
		if err != nil {
			return err
		}
		if err := w.WriteTriples(triples); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}

		rd, err := prep.NewFileSource(bytes.NewReader(file.Bytes()), sess, false)
		if err != nil {
			return err
		}
		opener := opening.New(sess)
		buf := prep.New(sess, rd, opener, false)

		if _, err := buf.Triples(5); err != nil {
			return err
		}
		_, err = buf.Triples(1)
		if !mpc.IsKind(err, mpc.KindInsufficientPreprocessing) {
			return fmt.Errorf("expected insufficient preprocessing, got %v", err)
		}
		if !strings.Contains(err.Error(), "triple") {
			return fmt.Errorf("fault does not name the item kind: %v", err)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestTruncPairsRelation(t *testing.T) {
	const mersenne61 = (1 << 61) - 1
	f, err := gfp.NewFieldFromUint64(mersenne61)
	require.NoError(t, err)

	const m = 3
	var mu sync.Mutex
	rs := map[party.ID][]share.Share{}
	shifted := map[party.ID][]share.Share{}

	err = transport.Run(2, func(p mpc.Player) error {
		sess, err := mpc.NewSession(p, f, mpc.Config{SecurityParameter: 40, BatchSize: 4})
		if err != nil {
			return err
		}
		src := prep.NewInsecureSource(sess, dealerSeed, false)
		opener := opening.New(sess)
		buf := prep.New(sess, src, opener, false)

		pairs, err := buf.TruncPairs(4, m)
		if err != nil {
			return err
		}
		mu.Lock()
		for _, pair := range pairs {
			rs[p.MyID()] = append(rs[p.MyID()], pair.R)
			shifted[p.MyID()] = append(shifted[p.MyID()], pair.RShifted)
		}
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	rVals := reconstructShares(f, rs)
	sVals := reconstructShares(f, shifted)
	for i := range rVals {
		assert.Equal(t, rVals[i].Uint64()>>m, sVals[i].Uint64(), "pair %d", i)
	}
}
