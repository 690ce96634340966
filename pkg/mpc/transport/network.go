// Package transport provides an in-memory implementation of the Player
// contract, used to run all parties of a computation inside one process.
package transport

import (
	"sync"

	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

type edge struct {
	from, to party.ID
}

// Router connects N in-process parties with buffered point-to-point links.
// Each party obtains its Player endpoint via Player(id).
type Router struct {
	n     party.Size
	depth int

	mtx   sync.Mutex
	links map[edge]chan []byte
	done  bool
}

// NewRouter creates a network for n parties. Links buffer enough messages
// that a full batched round can be sent before anyone receives.
func NewRouter(n party.Size) *Router {
	r := &Router{
		n:     n,
		depth: 4 * int(n),
		links: make(map[edge]chan []byte, int(n)*int(n)),
	}
	for from := party.ID(0); from < n; from++ {
		for to := party.ID(0); to < n; to++ {
			if from != to {
				r.links[edge{from, to}] = make(chan []byte, r.depth)
			}
		}
	}
	return r
}

// Player returns the endpoint for one party.
func (r *Router) Player(id party.ID) mpc.Player {
	return &endpoint{router: r, id: id}
}

// Close tears the network down. Pending receives fail with a communication
// error, as they would on peer disconnect.
func (r *Router) Close() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.done {
		return
	}
	r.done = true
	for _, c := range r.links {
		close(c)
	}
}

func (r *Router) send(from, to party.ID, msg []byte) error {
	r.mtx.Lock()
	if r.done {
		r.mtx.Unlock()
		return mpc.Errorf(mpc.KindCommunication, "network closed")
	}
	c := r.links[edge{from, to}]
	r.mtx.Unlock()
	if c == nil {
		return mpc.Errorf(mpc.KindCommunication, "no link from %s to %s", from, to)
	}
	cp := make([]byte, len(msg))
	copy(cp, msg)
	c <- cp
	return nil
}

func (r *Router) receive(from, to party.ID) ([]byte, error) {
	r.mtx.Lock()
	c := r.links[edge{from, to}]
	r.mtx.Unlock()
	if c == nil {
		return nil, mpc.Errorf(mpc.KindCommunication, "no link from %s to %s", from, to)
	}
	msg, ok := <-c
	if !ok {
		return nil, mpc.Errorf(mpc.KindCommunication, "party %s disconnected", from)
	}
	return msg, nil
}

type endpoint struct {
	router *Router
	id     party.ID
}

func (e *endpoint) MyID() party.ID         { return e.id }
func (e *endpoint) NumParties() party.Size { return e.router.n }

func (e *endpoint) SendTo(to party.ID, msg []byte) error {
	if to == e.id || to >= e.router.n {
		return mpc.Errorf(mpc.KindCommunication, "invalid destination %s", to)
	}
	return e.router.send(e.id, to, msg)
}

func (e *endpoint) ReceiveFrom(from party.ID) ([]byte, error) {
	if from == e.id || from >= e.router.n {
		return nil, mpc.Errorf(mpc.KindCommunication, "invalid source %s", from)
	}
	return e.router.receive(from, e.id)
}

func (e *endpoint) Broadcast(msg []byte) ([][]byte, error) {
	out := make([][]byte, e.router.n)
	for to := party.ID(0); to < e.router.n; to++ {
		if to == e.id {
			continue
		}
		if err := e.SendTo(to, msg); err != nil {
			return nil, err
		}
	}
	for from := party.ID(0); from < e.router.n; from++ {
		if from == e.id {
			out[from] = msg
			continue
		}
		received, err := e.ReceiveFrom(from)
		if err != nil {
			return nil, err
		}
		out[from] = received
	}
	return out, nil
}
