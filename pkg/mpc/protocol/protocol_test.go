package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
)

func TestMachineCycle(t *testing.T) {
	var m Machine
	assert.Equal(t, Idle, m.State())

	m.Reset()
	require.NoError(t, m.Prepared())
	require.NoError(t, m.Prepared())
	assert.Equal(t, 2, m.Pending())

	require.NoError(t, m.BeginExchange())
	m.EndExchange()
	assert.Equal(t, Ready, m.State())

	require.NoError(t, m.Finalized())
	require.NoError(t, m.Finalized())
	// Consuming the whole batch returns the machine to idle.
	assert.Equal(t, Idle, m.State())
}

func TestMachineRejectsPrepareWithoutInit(t *testing.T) {
	var m Machine
	err := m.Prepared()
	assert.True(t, mpc.IsKind(err, mpc.KindUnsupported))
}

func TestMachineRejectsOverconsumption(t *testing.T) {
	var m Machine
	m.Reset()
	require.NoError(t, m.Prepared())
	require.NoError(t, m.BeginExchange())
	m.EndExchange()
	require.NoError(t, m.Finalized())

	err := m.Finalized()
	require.Error(t, err)
	assert.True(t, mpc.IsKind(err, mpc.KindUnsupported))
	assert.Contains(t, err.Error(), "1 prepared")
}

func TestMachineRejectsExchangeTwice(t *testing.T) {
	var m Machine
	m.Reset()
	require.NoError(t, m.BeginExchange())
	err := m.BeginExchange()
	assert.True(t, mpc.IsKind(err, mpc.KindUnsupported))
}

func TestMachineFinalizeBeforeExchange(t *testing.T) {
	var m Machine
	m.Reset()
	require.NoError(t, m.Prepared())
	err := m.Finalized()
	assert.True(t, mpc.IsKind(err, mpc.KindUnsupported))
}
