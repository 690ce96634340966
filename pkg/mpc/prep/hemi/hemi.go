// Package hemi generates multiplication triples from pairwise
// linearly homomorphic encryption, in the style of semi-honest
// HE-based offline phases.
//
// With additive fragments a = sum a_i and b = sum b_i, the product
// decomposes as sum_i a_i*b_i plus the cross terms a_i*b_j. Each ordered
// pair of parties computes additive shares of its cross term: the sender
// transmits an encryption of its a fragment under its own key, the
// receiver multiplies in its b fragment, subtracts a fresh encryption of a
// random mask, and returns the result for decryption. The receiver keeps
// the mask, the sender keeps the decryption, and the two sum to the cross
// term. Batching packs one field element per plaintext slot.
package hemi

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/viethuyvu/MP-SPDZ/internal/pool"
	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
	"github.com/viethuyvu/MP-SPDZ/pkg/party"
)

// paramsLiteral fixes the lattice geometry. The plaintext modulus is the
// session field's prime, which must divide the cyclotomic order minus one
// for slot packing; incompatible fields are rejected at setup.
func paramsLiteral(p uint64) bgv.ParametersLiteral {
	return bgv.ParametersLiteral{
		LogN:             13,
		LogQ:             []int{54, 54, 54},
		LogP:             []int{55},
		PlaintextModulus: p,
	}
}

// Generator produces raw, unauthenticated triples. It performs a one-time
// public-key exchange at construction and is then good for any number of
// batches.
type Generator struct {
	sess   *mpc.Session
	params bgv.Parameters
	ecd    *bgv.Encoder
	eval   *bgv.Evaluator
	enc    *rlwe.Encryptor
	dec    *rlwe.Decryptor

	// peerEnc encrypts under each peer's public key; used to freshen the
	// noise of the masked responses.
	peerEnc map[party.ID]*rlwe.Encryptor
}

// keyEnvelope frames the one-time public-key broadcast. Ciphertexts are
// only meaningful between identical parameter sets, so the geometry is
// checked before any peer key is accepted.
type keyEnvelope struct {
	LogN    int    `cbor:"logn"`
	Modulus uint64 `cbor:"mod"`
	Key     []byte `cbor:"key"`
}

// NewGenerator runs parameter validation, key generation and the public
// key exchange. Fields whose modulus does not embed into the plaintext
// space are a setup fault.
func NewGenerator(sess *mpc.Session) (*Generator, error) {
	mod := sess.Field.Modulus()
	if !mod.IsUint64() {
		return nil, mpc.Errorf(mpc.KindSetup,
			"field modulus of %d bits exceeds the homomorphic plaintext space", sess.Field.BitLen())
	}
	params, err := bgv.NewParametersFromLiteral(paramsLiteral(mod.Uint64()))
	if err != nil {
		return nil, mpc.Errorf(mpc.KindSetup, "field modulus incompatible with homomorphic parameters: %v", err)
	}

	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()

	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		return nil, mpc.Errorf(mpc.KindSetup, "encoding public key: %v", err)
	}
	envelope, err := cbor.Marshal(keyEnvelope{
		LogN:    params.LogN(),
		Modulus: mod.Uint64(),
		Key:     pkBytes,
	})
	if err != nil {
		return nil, mpc.Errorf(mpc.KindSetup, "encoding key envelope: %v", err)
	}
	received, err := sess.Player.Broadcast(envelope)
	if err != nil {
		return nil, err
	}

	g := &Generator{
		sess:    sess,
		params:  params,
		ecd:     bgv.NewEncoder(params),
		eval:    bgv.NewEvaluator(params, nil),
		enc:     rlwe.NewEncryptor(params, pk),
		dec:     rlwe.NewDecryptor(params, sk),
		peerEnc: make(map[party.ID]*rlwe.Encryptor, sess.N()-1),
	}
	for id, raw := range received {
		if party.ID(id) == sess.SelfID() {
			continue
		}
		var env keyEnvelope
		if err := cbor.Unmarshal(raw, &env); err != nil {
			return nil, mpc.Errorf(mpc.KindCommunication, "decoding key envelope of party %d: %v", id, err)
		}
		if env.LogN != params.LogN() || env.Modulus != mod.Uint64() {
			return nil, mpc.Errorf(mpc.KindSetup,
				"party %d runs incompatible homomorphic parameters (logN %d, modulus %d)",
				id, env.LogN, env.Modulus)
		}
		peerPK := new(rlwe.PublicKey)
		if err := peerPK.UnmarshalBinary(env.Key); err != nil {
			return nil, mpc.Errorf(mpc.KindCommunication, "decoding public key of party %d: %v", id, err)
		}
		g.peerEnc[party.ID(id)] = rlwe.NewEncryptor(params, peerPK)
	}
	return g, nil
}

// SlotCount is the amortization width of one ciphertext.
func (g *Generator) SlotCount() int { return g.params.MaxSlots() }

func (g *Generator) encodeNew(values []uint64) (*rlwe.Plaintext, error) {
	pt := bgv.NewPlaintext(g.params, g.params.MaxLevel())
	if err := g.ecd.Encode(values, pt); err != nil {
		return nil, mpc.Errorf(mpc.KindSetup, "packing plaintext: %v", err)
	}
	return pt, nil
}

func (g *Generator) decodeCiphertext(raw []byte, degree int) (*rlwe.Ciphertext, error) {
	ct := bgv.NewCiphertext(g.params, degree, g.params.MaxLevel())
	if err := ct.UnmarshalBinary(raw); err != nil {
		return nil, mpc.Errorf(mpc.KindCommunication, "decoding ciphertext: %v", err)
	}
	return ct, nil
}

// BufferTriples produces count raw triples, ceil(count/slots) ciphertext
// round trips with every peer.
func (g *Generator) BufferTriples(count int) ([]share.Triple, error) {
	field := g.sess.Field
	slots := g.params.MaxSlots()

	a := field.RandomMany(g.sess.Pool(), g.sess.Rand(), count)
	b := field.RandomMany(g.sess.Pool(), g.sess.Rand(), count)
	c := pool.Parallelize(g.sess.Pool(), count, func(i int) gfp.Element {
		return a[i].Mul(b[i])
	})

	for off := 0; off < count; off += slots {
		end := off + slots
		if end > count {
			end = count
		}
		if err := g.crossTerms(a[off:end], b[off:end], c[off:end]); err != nil {
			return nil, err
		}
	}

	out := make([]share.Triple, count)
	for i := range out {
		out[i] = share.Triple{A: share.New(a[i]), B: share.New(b[i]), C: share.New(c[i])}
	}
	return out, nil
}

// crossTerms accumulates, into c, additive shares of the cross products of
// one chunk against every peer.
func (g *Generator) crossTerms(a, b, c []gfp.Element) error {
	field := g.sess.Field
	self := g.sess.SelfID()

	aInts := make([]uint64, len(a))
	bInts := make([]uint64, len(b))
	for i := range a {
		aInts[i] = a[i].Uint64()
		bInts[i] = b[i].Uint64()
	}
	aPt, err := g.encodeNew(aInts)
	if err != nil {
		return err
	}
	bPt, err := g.encodeNew(bInts)
	if err != nil {
		return err
	}

	aCt, err := g.enc.EncryptNew(aPt)
	if err != nil {
		return mpc.Errorf(mpc.KindSetup, "encrypting chunk: %v", err)
	}
	aBytes, err := aCt.MarshalBinary()
	if err != nil {
		return mpc.Errorf(mpc.KindCommunication, "encoding ciphertext: %v", err)
	}
	for _, p := range g.sess.Parties {
		if p == self {
			continue
		}
		if err := g.sess.Player.SendTo(p, aBytes); err != nil {
			return err
		}
	}

	// Evaluate every peer's chunk against our b fragment, keeping the
	// mask as our share of the cross term.
	for _, p := range g.sess.Parties {
		if p == self {
			continue
		}
		raw, err := g.sess.Player.ReceiveFrom(p)
		if err != nil {
			return err
		}
		peerCt, err := g.decodeCiphertext(raw, 1)
		if err != nil {
			return err
		}
		prod, err := g.eval.MulNew(peerCt, bPt)
		if err != nil {
			return mpc.Errorf(mpc.KindSetup, "homomorphic product: %v", err)
		}

		maskInts := make([]uint64, len(b))
		for i := range maskInts {
			m := field.Random(g.sess.Rand())
			maskInts[i] = m.Uint64()
			c[i] = c[i].Add(m)
		}
		maskPt, err := g.encodeNew(maskInts)
		if err != nil {
			return err
		}
		maskCt, err := g.peerEnc[p].EncryptNew(maskPt)
		if err != nil {
			return mpc.Errorf(mpc.KindSetup, "encrypting mask: %v", err)
		}
		resp, err := g.eval.SubNew(prod, maskCt)
		if err != nil {
			return mpc.Errorf(mpc.KindSetup, "masking product: %v", err)
		}
		respBytes, err := resp.MarshalBinary()
		if err != nil {
			return mpc.Errorf(mpc.KindCommunication, "encoding response: %v", err)
		}
		if err := g.sess.Player.SendTo(p, respBytes); err != nil {
			return err
		}
	}

	// Collect and decrypt the responses to our own chunk.
	values := make([]uint64, g.params.MaxSlots())
	for _, p := range g.sess.Parties {
		if p == self {
			continue
		}
		raw, err := g.sess.Player.ReceiveFrom(p)
		if err != nil {
			return err
		}
		resp, err := g.decodeCiphertext(raw, 1)
		if err != nil {
			return err
		}
		pt := g.dec.DecryptNew(resp)
		if err := g.ecd.Decode(pt, values); err != nil {
			return mpc.Errorf(mpc.KindCommunication, "unpacking response: %v", err)
		}
		for i := range c {
			c[i] = c[i].Add(field.FromUint64(values[i]))
		}
	}
	return nil
}
