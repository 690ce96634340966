package share_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

func testField(t *testing.T) *gfp.Field {
	t.Helper()
	f, err := gfp.NewFieldFromUint64(97)
	require.NoError(t, err)
	return f
}

// splitAuth produces an n-party authenticated sharing of v under key alpha,
// together with the per-party key fragments.
func splitAuth(f *gfp.Field, v, alpha gfp.Element, n int) []share.Share {
	out := make([]share.Share, n)
	valSum := f.Zero()
	macSum := f.Zero()
	for i := 1; i < n; i++ {
		val := f.Random(rand.Reader)
		mac := f.Random(rand.Reader)
		out[i] = share.NewAuth(val, mac)
		valSum = valSum.Add(val)
		macSum = macSum.Add(mac)
	}
	out[0] = share.NewAuth(v.Sub(valSum), alpha.Mul(v).Sub(macSum))
	return out
}

func reconstruct(shares []share.Share) gfp.Element {
	sum := shares[0].Value()
	for _, s := range shares[1:] {
		sum = sum.Add(s.Value())
	}
	return sum
}

func reconstructMAC(shares []share.Share) gfp.Element {
	m, _ := shares[0].MAC()
	for _, s := range shares[1:] {
		o, _ := s.MAC()
		m = m.Add(o)
	}
	return m
}

func TestLinearOpsPreserveMAC(t *testing.T) {
	f := testField(t)
	alpha := f.FromUint64(11)
	xs := splitAuth(f, f.FromUint64(13), alpha, 3)
	ys := splitAuth(f, f.FromUint64(5), alpha, 3)

	sum := make([]share.Share, 3)
	for i := range sum {
		sum[i] = xs[i].Add(ys[i])
	}
	assert.Equal(t, uint64(18), reconstruct(sum).Uint64())
	assert.True(t, reconstructMAC(sum).Equal(alpha.Mul(f.FromUint64(18))))

	scaled := make([]share.Share, 3)
	c := f.FromUint64(7)
	for i := range scaled {
		scaled[i] = xs[i].MulClear(c)
	}
	want := f.FromUint64(13).Mul(c)
	assert.True(t, reconstruct(scaled).Equal(want))
	assert.True(t, reconstructMAC(scaled).Equal(alpha.Mul(want)))
}

func TestConstantConvention(t *testing.T) {
	f := testField(t)
	c := f.FromUint64(42)
	shares := []share.Share{
		share.Constant(c, 0),
		share.Constant(c, 1),
		share.Constant(c, 2),
	}
	assert.True(t, reconstruct(shares).Equal(c))
}

func TestConstantAuth(t *testing.T) {
	f := testField(t)
	alpha := f.FromUint64(11)
	// Additive key fragments summing to alpha.
	frags := []gfp.Element{f.FromUint64(3), f.FromUint64(8)}
	c := f.FromUint64(42)
	shares := []share.Share{
		share.ConstantAuth(c, frags[0], 0),
		share.ConstantAuth(c, frags[1], 1),
	}
	assert.True(t, reconstruct(shares).Equal(c))
	assert.True(t, reconstructMAC(shares).Equal(alpha.Mul(c)))
}

func TestAddClearAdjustsOneParty(t *testing.T) {
	f := testField(t)
	xs := []share.Share{
		share.New(f.FromUint64(20)),
		share.New(f.FromUint64(30)),
	}
	c := f.FromUint64(5)
	for i := range xs {
		xs[i] = xs[i].AddClear(c, party.ID(i))
	}
	assert.Equal(t, uint64(55), reconstruct(xs).Uint64())
}

func TestWireRoundTrip(t *testing.T) {
	f := testField(t)
	s := share.NewAuth(f.FromUint64(13), f.FromUint64(77))

	buf := s.AppendTo(nil)
	require.Len(t, buf, share.Size(f, true))
	back, err := share.FromBytes(f, true, buf)
	require.NoError(t, err)
	assert.True(t, s.Equal(back))

	tr := share.Triple{
		A: share.New(f.FromUint64(1)),
		B: share.New(f.FromUint64(2)),
		C: share.New(f.FromUint64(3)),
	}
	tbuf := tr.AppendTo(nil)
	require.Len(t, tbuf, share.TripleSize(f, false))
	tback, err := share.TripleFromBytes(f, false, tbuf)
	require.NoError(t, err)
	assert.True(t, tr.A.Equal(tback.A))
	assert.True(t, tr.B.Equal(tback.B))
	assert.True(t, tr.C.Equal(tback.C))
}

func TestBatchCodec(t *testing.T) {
	f := testField(t)
	shares := []share.Share{
		share.New(f.FromUint64(10)),
		share.New(f.FromUint64(20)),
		share.New(f.FromUint64(30)),
	}
	buf := share.AppendBatch(nil, shares)
	back, err := share.BatchFromBytes(f, false, 3, buf)
	require.NoError(t, err)
	require.Len(t, back, 3)
	for i := range shares {
		assert.True(t, shares[i].Equal(back[i]))
	}

	_, err = share.BatchFromBytes(f, false, 4, buf)
	assert.Error(t, err)
}
