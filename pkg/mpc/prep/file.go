package prep

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/viethuyvu/MP-SPDZ/pkg/math/gfp"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc"
	"github.com/viethuyvu/MP-SPDZ/pkg/mpc/share"
)

// fileMagic tags preprocessed-data files; bump the suffix on breaking
// format changes.
const fileMagic = "gfprep/1"

// fileHeader is the self-describing envelope at the start of every
// preprocessed-data file. The body after it is a flat stream of
// fixed-width records with no per-record framing.
type fileHeader struct {
	Magic    string `cbor:"magic"`
	Kind     Kind   `cbor:"kind"`
	Modulus  []byte `cbor:"modulus"`
	WithMAC  bool   `cbor:"mac"`
	Security int    `cbor:"security"`
}

func writeHeader(w io.Writer, h fileHeader) error {
	body, err := cbor.Marshal(h)
	if err != nil {
		return mpc.Errorf(mpc.KindSetup, "encoding prep file header: %v", err)
	}
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(body)))
	if _, err := w.Write(size[:]); err != nil {
		return mpc.Errorf(mpc.KindCommunication, "writing prep file header: %v", err)
	}
	if _, err := w.Write(body); err != nil {
		return mpc.Errorf(mpc.KindCommunication, "writing prep file header: %v", err)
	}
	return nil
}

func readHeader(r io.Reader) (fileHeader, error) {
	var h fileHeader
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return h, mpc.Errorf(mpc.KindSetup, "reading prep file header: %v", err)
	}
	body := make([]byte, binary.BigEndian.Uint32(size[:]))
	if _, err := io.ReadFull(r, body); err != nil {
		return h, mpc.Errorf(mpc.KindSetup, "reading prep file header: %v", err)
	}
	if err := cbor.Unmarshal(body, &h); err != nil {
		return h, mpc.Errorf(mpc.KindSetup, "decoding prep file header: %v", err)
	}
	if h.Magic != fileMagic {
		return h, mpc.Errorf(mpc.KindSetup, "prep file magic %q, want %q", h.Magic, fileMagic)
	}
	return h, nil
}

// FileWriter streams one party's preprocessed items of a single kind to a
// file, prefixed by a descriptor of the field and security level they were
// generated for.
type FileWriter struct {
	w     *bufio.Writer
	field *gfp.Field
	auth  bool
	kind  Kind
}

// NewFileWriter writes the descriptor header and returns a writer for
// records of the given kind.
func NewFileWriter(w io.Writer, field *gfp.Field, kind Kind, withMAC bool, security int) (*FileWriter, error) {
	bw := bufio.NewWriter(w)
	err := writeHeader(bw, fileHeader{
		Magic:    fileMagic,
		Kind:     kind,
		Modulus:  field.Modulus().Bytes(),
		WithMAC:  withMAC,
		Security: security,
	})
	if err != nil {
		return nil, err
	}
	return &FileWriter{w: bw, field: field, auth: withMAC, kind: kind}, nil
}

// WriteTriples appends triples to a KindTriple file.
func (f *FileWriter) WriteTriples(triples []share.Triple) error {
	if f.kind != KindTriple {
		return mpc.Errorf(mpc.KindSetup, "writing triples into a %s file", f.kind)
	}
	buf := make([]byte, 0, share.TripleSize(f.field, f.auth))
	for _, t := range triples {
		if _, err := f.w.Write(t.AppendTo(buf[:0])); err != nil {
			return mpc.Errorf(mpc.KindCommunication, "writing triple record: %v", err)
		}
	}
	return nil
}

// WriteBits appends random-bit shares to a KindBit file.
func (f *FileWriter) WriteBits(bits []share.Share) error {
	if f.kind != KindBit {
		return mpc.Errorf(mpc.KindSetup, "writing bits into a %s file", f.kind)
	}
	buf := make([]byte, 0, share.Size(f.field, f.auth))
	for _, b := range bits {
		if _, err := f.w.Write(b.AppendTo(buf[:0])); err != nil {
			return mpc.Errorf(mpc.KindCommunication, "writing bit record: %v", err)
		}
	}
	return nil
}

// Flush drains buffered records to the underlying writer.
func (f *FileWriter) Flush() error {
	if err := f.w.Flush(); err != nil {
		return mpc.Errorf(mpc.KindCommunication, "flushing prep file: %v", err)
	}
	return nil
}

// FileSource replays preprocessed items from a file written by FileWriter.
// The descriptor must match the session's field, MAC mode and required
// security level; a mismatch is rejected at open time. Exhausting the file
// surfaces as InsufficientPreprocessing at the consuming Buffer.
type FileSource struct {
	r     *bufio.Reader
	field *gfp.Field
	hdr   fileHeader
}

// NewFileSource validates the descriptor against the session and returns a
// source for the file's item kind.
func NewFileSource(r io.Reader, sess *mpc.Session, withMAC bool) (*FileSource, error) {
	br := bufio.NewReader(r)
	hdr, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(hdr.Modulus, sess.Field.Modulus().Bytes()) {
		return nil, mpc.Errorf(mpc.KindSetup, "prep file is for a different field")
	}
	if hdr.WithMAC != withMAC {
		return nil, mpc.Errorf(mpc.KindSetup,
			"prep file mac mode %v, session wants %v", hdr.WithMAC, withMAC)
	}
	if hdr.Security < sess.Config.SecurityParameter {
		return nil, mpc.Errorf(mpc.KindSetup,
			"prep file security level %d below required %d", hdr.Security, sess.Config.SecurityParameter)
	}
	return &FileSource{r: br, field: sess.Field, hdr: hdr}, nil
}

// Kind returns the item kind stored in the file.
func (f *FileSource) Kind() Kind { return f.hdr.Kind }

// readRecords reads up to count fixed-width records, stopping cleanly at
// end of file. A truncated trailing record is a hard error.
func (f *FileSource) readRecords(count, size int) ([][]byte, error) {
	out := make([][]byte, 0, count)
	for len(out) < count {
		rec := make([]byte, size)
		_, err := io.ReadFull(f.r, rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mpc.Errorf(mpc.KindSetup, "reading prep record: %v", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// BufferTriples reads up to count triples from a KindTriple file.
func (f *FileSource) BufferTriples(count int) ([]share.Triple, error) {
	if f.hdr.Kind != KindTriple {
		return nil, mpc.Errorf(mpc.KindSetup, "prep file holds %s items, not triples", f.hdr.Kind)
	}
	recs, err := f.readRecords(count, share.TripleSize(f.field, f.hdr.WithMAC))
	if err != nil {
		return nil, err
	}
	out := make([]share.Triple, len(recs))
	for i, rec := range recs {
		out[i], err = share.TripleFromBytes(f.field, f.hdr.WithMAC, rec)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// BufferBits reads up to count bit shares from a KindBit file.
func (f *FileSource) BufferBits(count int) ([]share.Share, error) {
	if f.hdr.Kind != KindBit {
		return nil, mpc.Errorf(mpc.KindSetup, "prep file holds %s items, not bits", f.hdr.Kind)
	}
	recs, err := f.readRecords(count, share.Size(f.field, f.hdr.WithMAC))
	if err != nil {
		return nil, err
	}
	out := make([]share.Share, len(recs))
	for i, rec := range recs {
		out[i], err = share.FromBytes(f.field, f.hdr.WithMAC, rec)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
