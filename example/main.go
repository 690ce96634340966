// Command example multiplies secret-shared values under two protocol
// variants over an in-process network: the three-party replicated
// protocol with its transcript check, and the two-party Beaver protocol
// with authenticated shares drawn from an insecure dealer.
package main

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/opening"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/prep"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/protocol/beaver"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/protocol/rep3"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/transport"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

const mersenne61 = (1 << 61) - 1

func main() {
	if err := runReplicated(); err != nil {
		panic(err)
	}
	if err := runBeaver(); err != nil {
		panic(err)
	}
}

// dealReplicated splits v into three fragments and hands party i the pair
// (f_i, f_{i+1}), the replication the three-party protocol expects.
func dealReplicated(f *gfp.Field, v uint64) [3]rep3.Share {
	frags := [3]gfp.Element{}
	total := f.Zero()
	for i := 0; i < 2; i++ {
		frags[i] = f.Random(rand.Reader)
		total = total.Add(frags[i])
	}
	frags[2] = f.FromUint64(v).Sub(total)

	var out [3]rep3.Share
	for i := 0; i < 3; i++ {
		out[i] = rep3.Share{Left: frags[i], Right: frags[(i+1)%3]}
	}
	return out
}

func runReplicated() error {
	field, err := gfp.NewFieldFromUint64(mersenne61)
	if err != nil {
		return err
	}
	xs := dealReplicated(field, 21)
	ys := dealReplicated(field, 2)

	var mu sync.Mutex
	results := map[party.ID]rep3.Share{}

	err = transport.Run(3, func(p mpc.Player) error {
		sess, err := mpc.NewSession(p, field, mpc.Config{SecurityParameter: 40})
		if err != nil {
			return err
		}
		prot, err := rep3.New(sess)
		if err != nil {
			return err
		}
		prot.EnableCheck()

		prot.InitMul()
		if err := prot.PrepareMul(xs[p.MyID()], ys[p.MyID()]); err != nil {
			return err
		}
		if err := prot.Exchange(); err != nil {
			return err
		}
		z, err := prot.FinalizeMul()
		if err != nil {
			return err
		}
		if err := prot.Check(); err != nil {
			return err
		}
		mu.Lock()
		results[p.MyID()] = z
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	v := rep3.Reconstruct(results[0], results[1], results[2])
	fmt.Printf("replicated: 21 * 2 = %s\n", v)
	return nil
}

func runBeaver() error {
	field, err := gfp.NewFieldFromUint64(mersenne61)
	if err != nil {
		return err
	}
	seed := bytes.Repeat([]byte{7}, 32)

	var mu sync.Mutex
	opened := map[party.ID]gfp.Element{}

	err = transport.Run(2, func(p mpc.Player) error {
		sess, err := mpc.NewSession(p, field, mpc.Config{SecurityParameter: 40})
		if err != nil {
			return err
		}
		src := prep.NewInsecureSource(sess, seed, true)
		opener := opening.NewAuthenticated(sess, src.AlphaShare())
		buf := prep.New(sess, src, opener, true)
		prot := beaver.NewAuthenticated(sess, buf, opener, src.AlphaShare())

		x := share.ConstantAuth(field.FromUint64(6), src.AlphaShare(), sess.SelfID())
		y := share.ConstantAuth(field.FromUint64(7), src.AlphaShare(), sess.SelfID())

		prot.InitMul()
		if err := prot.PrepareMul(x, y); err != nil {
			return err
		}
		if err := prot.Exchange(); err != nil {
			return err
		}
		z, err := prot.FinalizeMul()
		if err != nil {
			return err
		}

		opener.Open(z)
		vs, err := opener.Exchange()
		if err != nil {
			return err
		}
		mu.Lock()
		opened[p.MyID()] = vs[0]
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("beaver: 6 * 7 = %s (party 0), %s (party 1)\n", opened[0], opened[1])
	return nil
}
