package mpc

import (
	"crypto/rand"
	"io"
	"os"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/viethuyvu/MP-SPDZ/internal/pool"
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

// Session is the per-thread context of one computation. It owns everything a
// protocol instance needs besides its peers: the channel, the run
// configuration, the clear computation domain, local randomness and the
// logger. Sessions are not shared between threads; independent computations
// in one process each get their own.
type Session struct {
	ID     string
	Player Player
	Field  *gfp.Field
	Config Config
	// Parties is the sorted cohort of the run, self included. Protocol
	// loops range over it rather than re-deriving the ID range.
	Parties party.IDSlice

	rand io.Reader
	cpu  *pool.Pool
	log  zerolog.Logger
}

// NewSession validates the configuration and binds it to a player and field.
func NewSession(player Player, field *gfp.Field, config Config) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if player == nil || field == nil {
		return nil, Errorf(KindSetup, "session requires a player and a field")
	}
	if config.SecurityParameter >= field.BitLen() {
		return nil, Errorf(KindSetup,
			"field of %d bits too small for %d-bit statistical security",
			field.BitLen(), config.SecurityParameter)
	}
	id := xid.New().String()
	logger := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("session", id).
		Uint16("party", uint16(player.MyID())).
		Logger().Level(zerolog.WarnLevel)
	return &Session{
		ID:      id,
		Player:  player,
		Field:   field,
		Config:  config,
		Parties: party.RangeN(player.NumParties()),
		rand:    rand.Reader,
		log:     logger,
	}, nil
}

// Rand returns the local cryptographic randomness source.
func (s *Session) Rand() io.Reader { return s.rand }

// SetRand overrides the randomness source, for deterministic tests.
func (s *Session) SetRand(r io.Reader) { s.rand = r }

// Pool returns the worker pool for local compute bursts. A nil pool runs
// work on the calling goroutine.
func (s *Session) Pool() *pool.Pool { return s.cpu }

// SetPool attaches a worker pool. The randomness source is wrapped for
// concurrent use so pooled sampling stays safe.
func (s *Session) SetPool(p *pool.Pool) {
	s.cpu = p
	if p != nil {
		s.rand = pool.NewLockedReader(s.rand)
	}
}

// Log returns the session logger.
func (s *Session) Log() *zerolog.Logger { return &s.log }

// SetLog replaces the session logger.
func (s *Session) SetLog(l zerolog.Logger) { s.log = l }

// SelfID returns the local party number.
func (s *Session) SelfID() party.ID { return s.Player.MyID() }

// N returns the number of parties.
func (s *Session) N() party.Size { return s.Player.NumParties() }
