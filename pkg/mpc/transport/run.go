package transport

import (
	"golang.org/x/sync/errgroup"

	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

// Run executes one goroutine per party over a fresh in-memory network and
// waits for all of them. The first error cancels nothing by itself, the
// remaining parties fail on their own when the network is torn down.
func Run(n party.Size, f func(p mpc.Player) error) error {
	r := NewRouter(n)
	defer r.Close()

	var g errgroup.Group
	for id := party.ID(0); id < n; id++ {
		p := r.Player(id)
		g.Go(func() error { return f(p) })
	}
	return g.Wait()
}
