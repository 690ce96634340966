package transport

import (
	"bytes"

	"github.com/rs/xid"

	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

// tagged wraps a Player so every message carries a fixed-width conversation
// tag. When several protocol instances share one underlying channel, a
// message surfacing in the wrong conversation is detected instead of
// silently corrupting a batch.
type tagged struct {
	inner mpc.Player
	tag   []byte
}

// NewTag returns a fresh conversation tag. All parties of one conversation
// must use the same tag, so one party generates it and distributes it out of
// band (or it is derived from shared setup).
func NewTag() []byte {
	return xid.New().Bytes()
}

// Tagged wraps p so that all traffic is prefixed and verified with tag.
func Tagged(p mpc.Player, tag []byte) mpc.Player {
	t := make([]byte, len(tag))
	copy(t, tag)
	return &tagged{inner: p, tag: t}
}

func (t *tagged) MyID() party.ID         { return t.inner.MyID() }
func (t *tagged) NumParties() party.Size { return t.inner.NumParties() }

func (t *tagged) SendTo(to party.ID, msg []byte) error {
	return t.inner.SendTo(to, append(append([]byte{}, t.tag...), msg...))
}

func (t *tagged) strip(from party.ID, msg []byte) ([]byte, error) {
	if len(msg) < len(t.tag) || !bytes.Equal(msg[:len(t.tag)], t.tag) {
		return nil, mpc.Errorf(mpc.KindCommunication,
			"message from party %s does not belong to this conversation", from)
	}
	return msg[len(t.tag):], nil
}

func (t *tagged) ReceiveFrom(from party.ID) ([]byte, error) {
	msg, err := t.inner.ReceiveFrom(from)
	if err != nil {
		return nil, err
	}
	return t.strip(from, msg)
}

func (t *tagged) Broadcast(msg []byte) ([][]byte, error) {
	all, err := t.inner.Broadcast(append(append([]byte{}, t.tag...), msg...))
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(all))
	for i, m := range all {
		if party.ID(i) == t.MyID() {
			out[i] = msg
			continue
		}
		stripped, err := t.strip(party.ID(i), m)
		if err != nil {
			return nil, err
		}
		out[i] = stripped
	}
	return out, nil
}
