package hemi_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/prep/hemi"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/transport"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

// 65537 is NTT friendly for the configured ring degree, so parameter
// construction succeeds and full slot packing is available.
const hemiPrime = 65537

func TestGeneratedTriplesMultiply(t *testing.T) {
	if testing.Short() {
		t.Skip("lattice keygen is slow")
	}
	field, err := gfp.NewFieldFromUint64(hemiPrime)
	require.NoError(t, err)

	const count = 5
	var mu sync.Mutex
	out := map[party.ID][]share.Triple{}

	err = transport.Run(2, func(p mpc.Player) error {
		sess, err := mpc.NewSession(p, field, mpc.Config{SecurityParameter: 16})
		if err != nil {
			return err
		}
		gen, err := hemi.NewGenerator(sess)
		if err != nil {
			return err
		}
		triples, err := gen.BufferTriples(count)
		if err != nil {
			return err
		}
		mu.Lock()
		out[p.MyID()] = triples
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, out[0], count)
	require.Len(t, out[1], count)

	for i := 0; i < count; i++ {
		a := out[0][i].A.Value().Add(out[1][i].A.Value())
		b := out[0][i].B.Value().Add(out[1][i].B.Value())
		c := out[0][i].C.Value().Add(out[1][i].C.Value())
		assert.True(t, c.Equal(a.Mul(b)), "triple %d", i)
	}
}

func TestSlotCountPositive(t *testing.T) {
	field, err := gfp.NewFieldFromUint64(hemiPrime)
	require.NoError(t, err)

	err = transport.Run(2, func(p mpc.Player) error {
		sess, err := mpc.NewSession(p, field, mpc.Config{SecurityParameter: 16})
		if err != nil {
			return err
		}
		gen, err := hemi.NewGenerator(sess)
		if err != nil {
			return err
		}
		require.Greater(t, gen.SlotCount(), 0)
		return nil
	})
	require.NoError(t, err)
}

// A modulus without enough 2-adic structure for the plaintext ring must be
// rejected at setup rather than produce bad parameters.
func TestIncompatibleModulusRejected(t *testing.T) {
	field, err := gfp.NewFieldFromUint64(7)
	require.NoError(t, err)

	err = transport.Run(2, func(p mpc.Player) error {
		sess, err := mpc.NewSession(p, field, mpc.Config{SecurityParameter: 2})
		if err != nil {
			return err
		}
		_, err = hemi.NewGenerator(sess)
		if mpc.IsKind(err, mpc.KindSetup) {
			return nil
		}
		return fmt.Errorf("expected setup fault, got %v", err)
	})
	require.NoError(t, err)
}
