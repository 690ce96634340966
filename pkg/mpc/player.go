package mpc

import "github.com/viethuyvu/MP-SPDZ/pkg/party"

// Player is the point-to-point and broadcast channel a protocol instance
// communicates through. All calls are blocking from the caller's viewpoint.
//
// The engine owns one Player per computation thread after setup; protocol
// calls on one instance are strictly sequential, so implementations need not
// serialize concurrent use of the same logical conversation.
type Player interface {
	// SendTo delivers msg to the given party. The receiver obtains the
	// bytes unframed, in send order.
	SendTo(to party.ID, msg []byte) error
	// ReceiveFrom blocks until the next message from the given party.
	ReceiveFrom(from party.ID) ([]byte, error)
	// Broadcast sends msg to every other party and collects one message
	// from each, indexed by party ID. The slot for the local party holds
	// msg itself.
	Broadcast(msg []byte) ([][]byte, error)
	// MyID returns the local party number.
	MyID() party.ID
	// NumParties returns the total number of parties.
	NumParties() party.Size
}
