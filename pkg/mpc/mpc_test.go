package mpc_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/transport"
)

func TestErrorKinds(t *testing.T) {
	err := mpc.Errorf(mpc.KindConsistency, "mac mismatch on %d values", 3)
	assert.True(t, mpc.IsKind(err, mpc.KindConsistency))
	assert.False(t, mpc.IsKind(err, mpc.KindCommunication))
	assert.Contains(t, err.Error(), "mac mismatch on 3 values")

	wrapped := errors.Join(errors.New("outer"), err)
	assert.True(t, mpc.IsKind(wrapped, mpc.KindConsistency))
}

func TestConfigDefaults(t *testing.T) {
	var c mpc.Config
	require.NoError(t, c.Validate())
	assert.Greater(t, c.BatchSize, 0)
	assert.GreaterOrEqual(t, c.BucketSize, 2)
	assert.Greater(t, c.SecurityParameter, 0)
}

func TestConfigRejectsBadBucket(t *testing.T) {
	c := mpc.Config{BucketSize: 1}
	assert.Error(t, c.Validate())
}

func TestNewSessionValidation(t *testing.T) {
	field, err := gfp.NewFieldFromUint64(97)
	require.NoError(t, err)

	r := transport.NewRouter(2)
	defer r.Close()

	_, err = mpc.NewSession(nil, field, mpc.Config{})
	assert.True(t, mpc.IsKind(err, mpc.KindSetup))

	// 97 is a 7 bit prime; asking for 40 bit statistical security in it
	// is a configuration fault.
	_, err = mpc.NewSession(r.Player(0), field, mpc.Config{SecurityParameter: 40})
	assert.True(t, mpc.IsKind(err, mpc.KindSetup))

	sess, err := mpc.NewSession(r.Player(0), field, mpc.Config{SecurityParameter: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.EqualValues(t, 0, sess.SelfID())
	assert.EqualValues(t, 2, sess.N())
}

func TestSessionPartiesCohort(t *testing.T) {
	field, err := gfp.NewFieldFromUint64(97)
	require.NoError(t, err)

	r := transport.NewRouter(3)
	defer r.Close()

	sess, err := mpc.NewSession(r.Player(1), field, mpc.Config{SecurityParameter: 5})
	require.NoError(t, err)

	require.Len(t, sess.Parties, 3)
	assert.True(t, sess.Parties.Sorted())
	assert.True(t, sess.Parties.Contains(sess.SelfID()))
	for i, id := range sess.Parties {
		assert.EqualValues(t, i, id)
	}
}
