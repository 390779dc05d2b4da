// Package car implements CARv1 framing: a varint-length-prefixed DAG-CBOR
// header followed by varint(len) ‖ CID ‖ block-bytes frames per block.
//
// Writer defers emitting the header until the first block is written, and
// always names that first block's CID as the (sole) root in the header —
// CAR files must carry at least one root, and the actual subgraph roots for
// a partial transfer aren't known until the blocks to send this round have
// already been selected, so the first block doubles as the nominal root.
package car

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/fxamacker/cbor/v2"
	cid "github.com/ipfs/go-cid"

	carerrs "github.com/fission-codes/go-car-mirror/errs"
)

// Header is the CARv1 header: a CBOR map of roots and a version number. Each
// root is encoded as a CBOR byte string holding the binary CID, not as a
// tag-42 DAG-CBOR link.
type Header struct {
	Roots   []cid.Cid
	Version uint64
}

type wireHeader struct {
	Roots   [][]byte `cbor:"roots"`
	Version uint64   `cbor:"version"`
}

func encodeHeader(h *Header) ([]byte, error) {
	roots := make([][]byte, len(h.Roots))
	for i, c := range h.Roots {
		roots[i] = c.Bytes()
	}
	return cbor.Marshal(wireHeader{Roots: roots, Version: h.Version})
}

func decodeHeader(data []byte) (*Header, error) {
	var w wireHeader
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, carerrs.NewCarFileError(err)
	}
	roots := make([]cid.Cid, len(w.Roots))
	for i, b := range w.Roots {
		c, err := cid.Cast(b)
		if err != nil {
			return nil, carerrs.NewCarFileError(err)
		}
		roots[i] = c
	}
	return &Header{Roots: roots, Version: w.Version}, nil
}

// ldWrite writes a varint-length-prefixed concatenation of d, in the style
// of ipld/go-car's util.LdWrite.
func ldWrite(w io.Writer, d ...[]byte) (int, error) {
	var sum uint64
	for _, s := range d {
		sum += uint64(len(s))
	}
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, sum)
	if _, err := w.Write(buf[:n]); err != nil {
		return 0, err
	}
	written := n
	for _, s := range d {
		if _, err := w.Write(s); err != nil {
			return written, err
		}
		written += len(s)
	}
	return written, nil
}

func ldRead(r *bufio.Reader) ([]byte, error) {
	if _, err := r.Peek(1); err != nil {
		return nil, err
	}
	l, err := binary.ReadUvarint(r)
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Writer emits CARv1 frames to an underlying io.Writer. The header is
// written lazily on the first WriteBlock call, naming that block's CID as
// the sole root; a Writer that never sees a block emits nothing at all.
type Writer struct {
	w           io.Writer
	wroteHeader bool
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteBlock appends one block frame, writing the deferred header first if
// this is the first block seen. It returns the number of bytes written for
// this call (including the header, if this was the first call).
func (cw *Writer) WriteBlock(c cid.Cid, data []byte) (int, error) {
	written := 0
	if !cw.wroteHeader {
		hb, err := encodeHeader(&Header{Roots: []cid.Cid{c}, Version: 1})
		if err != nil {
			return 0, carerrs.NewCarFileError(err)
		}
		n, err := ldWrite(cw.w, hb)
		if err != nil {
			return n, carerrs.NewCarFileError(err)
		}
		written += n
		cw.wroteHeader = true
	}
	n, err := ldWrite(cw.w, c.Bytes(), data)
	written += n
	if err != nil {
		return written, carerrs.NewCarFileError(err)
	}
	return written, nil
}

// WroteHeader reports whether any block (and so the header) has been
// written yet.
func (cw *Writer) WroteHeader() bool {
	return cw.wroteHeader
}

// Reader parses CARv1 frames from an underlying io.Reader.
type Reader struct {
	br     *bufio.Reader
	Header *Header
}

// NewReader parses the CAR header from r and returns a Reader positioned at
// the first block frame.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	hb, err := ldRead(br)
	if err != nil {
		return nil, carerrs.NewCarFileError(err)
	}
	if len(hb) == 0 {
		return nil, carerrs.NewCarFileError(errZeroLengthHeader)
	}
	header, err := decodeHeader(hb)
	if err != nil {
		return nil, err
	}
	return &Reader{br: br, Header: header}, nil
}

var errZeroLengthHeader = errors.New("zero-length CAR header section")

// Next returns the next (CID, block bytes) frame, or io.EOF once the
// underlying reader is exhausted.
func (cr *Reader) Next() (cid.Cid, []byte, error) {
	data, err := ldRead(cr.br)
	if err != nil {
		if err == io.EOF {
			return cid.Undef, nil, io.EOF
		}
		return cid.Undef, nil, carerrs.NewCarFileError(err)
	}
	if len(data) == 0 {
		return cid.Undef, nil, carerrs.NewCarFileError(errors.New("zero-length block section"))
	}
	n, c, err := cid.CidFromBytes(data)
	if err != nil {
		return cid.Undef, nil, carerrs.NewCarFileError(err)
	}
	return c, data[n:], nil
}
