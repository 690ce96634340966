package rep3_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/protocol/rep3"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/transport"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

func newSession(t *testing.T, p mpc.Player) *mpc.Session {
	t.Helper()
	field, err := gfp.NewFieldFromUint64(97)
	require.NoError(t, err)
	sess, err := mpc.NewSession(p, field, mpc.Config{SecurityParameter: 5})
	require.NoError(t, err)
	return sess
}

// deal splits v into replicated shares by fixing fragments a1, a2 and
// letting a0 absorb the remainder.
func deal(f *gfp.Field, v, a1, a2 uint64) [3]rep3.Share {
	f1 := f.FromUint64(a1)
	f2 := f.FromUint64(a2)
	f0 := f.FromUint64(v).Sub(f1).Sub(f2)
	return [3]rep3.Share{
		{Left: f0, Right: f1},
		{Left: f1, Right: f2},
		{Left: f2, Right: f0},
	}
}

func TestShareAlgebra(t *testing.T) {
	f, err := gfp.NewFieldFromUint64(97)
	require.NoError(t, err)

	xs := deal(f, 13, 3, 5)
	ys := deal(f, 5, 7, 2)

	var sum [3]rep3.Share
	for i := range sum {
		sum[i] = xs[i].Add(ys[i])
	}
	assert.Equal(t, uint64(18), rep3.Reconstruct(sum[0], sum[1], sum[2]).Uint64())

	c := f.FromUint64(4)
	var scaled [3]rep3.Share
	for i := range scaled {
		scaled[i] = xs[i].MulClear(c)
	}
	assert.Equal(t, uint64(52), rep3.Reconstruct(scaled[0], scaled[1], scaled[2]).Uint64())

	var shifted [3]rep3.Share
	for i := range shifted {
		shifted[i] = xs[i].AddClear(c, party.ID(i))
	}
	assert.Equal(t, uint64(17), rep3.Reconstruct(shifted[0], shifted[1], shifted[2]).Uint64())

	consts := [3]rep3.Share{
		rep3.Constant(c, 0), rep3.Constant(c, 1), rep3.Constant(c, 2),
	}
	assert.Equal(t, uint64(4), rep3.Reconstruct(consts[0], consts[1], consts[2]).Uint64())
}

func TestWireRoundTrip(t *testing.T) {
	f, err := gfp.NewFieldFromUint64(97)
	require.NoError(t, err)
	s := rep3.Share{Left: f.FromUint64(12), Right: f.FromUint64(34)}
	buf := s.AppendTo(nil)
	require.Len(t, buf, rep3.Size(f))
	back, err := rep3.FromBytes(f, buf)
	require.NoError(t, err)
	assert.True(t, s.Left.Equal(back.Left))
	assert.True(t, s.Right.Equal(back.Right))
}

// runMul drives one multiplication batch on all three parties and returns
// the finalized shares indexed by party.
func runMul(t *testing.T, xs, ys [3]rep3.Share, pairs int, malicious bool) [3][]rep3.Share {
	t.Helper()
	var mu sync.Mutex
	var out [3][]rep3.Share

	err := transport.Run(3, func(p mpc.Player) error {
		sess := newSession(t, p)
		prot, err := rep3.New(sess)
		if err != nil {
			return err
		}
		if malicious {
			prot.EnableCheck()
		}
		self := p.MyID()

		prot.InitMul()
		for i := 0; i < pairs; i++ {
			if err := prot.PrepareMul(xs[self], ys[self]); err != nil {
				return err
			}
		}
		if err := prot.Exchange(); err != nil {
			return err
		}
		mine := make([]rep3.Share, pairs)
		for i := range mine {
			if mine[i], err = prot.FinalizeMul(); err != nil {
				return err
			}
		}
		if err := prot.Check(); err != nil {
			return err
		}
		mu.Lock()
		out[self] = mine
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestMultiply(t *testing.T) {
	f, err := gfp.NewFieldFromUint64(97)
	require.NoError(t, err)
	xs := deal(f, 13, 3, 5)
	ys := deal(f, 5, 7, 2)

	out := runMul(t, xs, ys, 4, false)
	for i := 0; i < 4; i++ {
		got := rep3.Reconstruct(out[0][i], out[1][i], out[2][i])
		assert.Equal(t, uint64(65), got.Uint64())
	}
	// Replication invariant: each fragment is held by two parties.
	for i := 0; i < 4; i++ {
		assert.True(t, out[0][i].Right.Equal(out[1][i].Left))
		assert.True(t, out[1][i].Right.Equal(out[2][i].Left))
		assert.True(t, out[2][i].Right.Equal(out[0][i].Left))
	}
}

func TestMultiplyWithCheck(t *testing.T) {
	f, err := gfp.NewFieldFromUint64(97)
	require.NoError(t, err)
	xs := deal(f, 9, 1, 2)
	ys := deal(f, 10, 4, 4)

	out := runMul(t, xs, ys, 2, true)
	for i := 0; i < 2; i++ {
		got := rep3.Reconstruct(out[0][i], out[1][i], out[2][i])
		assert.Equal(t, uint64(90), got.Uint64())
	}
}

func TestDotProduct(t *testing.T) {
	f, err := gfp.NewFieldFromUint64(97)
	require.NoError(t, err)
	xs := deal(f, 2, 1, 1)
	ys := deal(f, 3, 2, 2)
	us := deal(f, 4, 3, 3)
	vs := deal(f, 5, 1, 4)

	var mu sync.Mutex
	var out [3]rep3.Share

	err = transport.Run(3, func(p mpc.Player) error {
		sess := newSession(t, p)
		prot, err := rep3.New(sess)
		if err != nil {
			return err
		}
		self := p.MyID()

		prot.InitDotProd()
		if err := prot.PrepareDotProd(xs[self], ys[self]); err != nil {
			return err
		}
		if err := prot.PrepareDotProd(us[self], vs[self]); err != nil {
			return err
		}
		if err := prot.NextDotProd(); err != nil {
			return err
		}
		if err := prot.Exchange(); err != nil {
			return err
		}
		res, err := prot.FinalizeDotProd()
		if err != nil {
			return err
		}
		mu.Lock()
		out[self] = res
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	// 2*3 + 4*5 = 26
	assert.Equal(t, uint64(26), rep3.Reconstruct(out[0], out[1], out[2]).Uint64())
}

func TestRandomShareConsistent(t *testing.T) {
	var mu sync.Mutex
	var out [3]rep3.Share

	err := transport.Run(3, func(p mpc.Player) error {
		sess := newSession(t, p)
		prot, err := rep3.New(sess)
		if err != nil {
			return err
		}
		mu.Lock()
		out[p.MyID()] = prot.RandomShare()
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	assert.True(t, out[0].Right.Equal(out[1].Left))
	assert.True(t, out[1].Right.Equal(out[2].Left))
	assert.True(t, out[2].Right.Equal(out[0].Left))
}

// TestCheckCatchesCorruption corrupts one party's result fragment after the
// exchange; the consistency check must fail on at least the two parties
// whose replicated copies diverge.
func TestCheckCatchesCorruption(t *testing.T) {
	// A large field keeps the chance of the random combination missing
	// the corruption negligible.
	const mersenne61 = (1 << 61) - 1
	f, err := gfp.NewFieldFromUint64(mersenne61)
	require.NoError(t, err)
	xs := deal(f, 13, 3, 5)
	ys := deal(f, 5, 7, 2)

	var mu sync.Mutex
	fails := 0

	errRun := transport.Run(3, func(p mpc.Player) error {
		sess, err := mpc.NewSession(p, f, mpc.Config{SecurityParameter: 40})
		if err != nil {
			return err
		}
		prot, err := rep3.New(sess)
		if err != nil {
			return err
		}
		prot.EnableCheck()
		self := p.MyID()

		prot.InitMul()
		if err := prot.PrepareMul(xs[self], ys[self]); err != nil {
			return err
		}
		if err := prot.Exchange(); err != nil {
			return err
		}
		if _, err := prot.FinalizeMul(); err != nil {
			return err
		}
		if self == 1 {
			prot.CorruptTranscript()
		}
		if err := prot.Check(); err != nil {
			if !mpc.IsKind(err, mpc.KindConsistency) {
				return err
			}
			mu.Lock()
			fails++
			mu.Unlock()
		}
		return nil
	})
	require.NoError(t, errRun)
	assert.GreaterOrEqual(t, fails, 2)
}
