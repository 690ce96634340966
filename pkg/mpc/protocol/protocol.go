// Package protocol defines the multiplication-protocol state machine shared
// by all secret-sharing variants.
//
// One instance serves one (party, computation thread) pair. The caller
// drives it through InitMul, any number of PrepareMul calls, one Exchange
// performing the batched network round, and one FinalizeMul per prepared
// pair, in strict FIFO order.
package protocol

import (
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
)

// Protocol is the capability surface of a multiplication protocol over
// share type S.
type Protocol[S any] interface {
	// InitMul starts a new accumulation phase, clearing operand and
	// result buffers.
	InitMul()
	// PrepareMul schedules the product x·y. It never communicates.
	PrepareMul(x, y S) error
	// Exchange converts the whole pending batch into result shares in
	// one logical round. It may block on the network.
	Exchange() error
	// FinalizeMul returns the next unconsumed result, one per
	// PrepareMul call, in call order.
	FinalizeMul() (S, error)
	// Check runs the protocol's deferred verification, if any.
	// A failure is a hard abort.
	Check() error
}

// DotProducter is implemented by protocols that batch grouped dot products
// with the same accumulate-and-exchange discipline.
type DotProducter[S any] interface {
	InitDotProd()
	PrepareDotProd(x, y S) error
	// NextDotProd closes the current group; the following PrepareDotProd
	// calls accumulate into a fresh result.
	NextDotProd() error
	FinalizeDotProd() (S, error)
}

// Truncator is implemented by protocols offering probabilistic truncation.
// The result of a shift by m is off by at most one from the true quotient.
type Truncator interface {
	TruncPr(xs []share.Share, m uint) ([]share.Share, error)
}

// RandomnessSupplier is implemented by protocols that hand out their own
// correlated randomness rather than consuming an external buffer.
type RandomnessSupplier interface {
	Triple() (share.Triple, error)
	RandomBit() (share.Share, error)
}

// State identifies the phase of the multiplication state machine.
type State int

const (
	Idle State = iota
	Accumulating
	Exchanging
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Accumulating:
		return "accumulating"
	case Exchanging:
		return "exchanging"
	case Ready:
		return "ready"
	}
	return "invalid"
}

// Machine enforces the Idle → Accumulating → Exchanging → Ready cycle and
// counts prepared against finalized pairs. Variants embed it and call the
// transition helpers from their protocol methods.
type Machine struct {
	state    State
	pending  int
	consumed int
}

// State returns the current phase.
func (m *Machine) State() State { return m.state }

// Pending returns the number of results not yet finalized.
func (m *Machine) Pending() int { return m.pending - m.consumed }

// Reset starts a new accumulation phase.
func (m *Machine) Reset() {
	m.state = Accumulating
	m.pending = 0
	m.consumed = 0
}

// Prepared registers one scheduled operand pair.
func (m *Machine) Prepared() error {
	if m.state != Accumulating {
		return mpc.Errorf(mpc.KindUnsupported, "prepare_mul in state %s, need init_mul first", m.state)
	}
	m.pending++
	return nil
}

// BeginExchange transitions into the network round.
func (m *Machine) BeginExchange() error {
	if m.state != Accumulating {
		return mpc.Errorf(mpc.KindUnsupported, "exchange in state %s, need init_mul first", m.state)
	}
	m.state = Exchanging
	return nil
}

// EndExchange marks the batch results as available.
func (m *Machine) EndExchange() {
	m.state = Ready
}

// Finalized registers the consumption of one result. Consuming more results
// than were prepared is an error.
func (m *Machine) Finalized() error {
	if m.consumed >= m.pending {
		return mpc.Errorf(mpc.KindUnsupported, "finalize_mul called %d times for %d prepared pairs", m.consumed+1, m.pending)
	}
	if m.state != Ready {
		return mpc.Errorf(mpc.KindUnsupported, "finalize_mul in state %s, need exchange first", m.state)
	}
	m.consumed++
	if m.consumed == m.pending {
		m.state = Idle
	}
	return nil
}
