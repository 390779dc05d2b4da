// Package errs defines the typed error taxonomy raised by the car mirror
// protocol engine, together with HTTP status hints for transport bindings.
//
// None of these errors are retried internally; the core packages surface
// them and leave retry policy to the caller.
package errs

import (
	"errors"
	"fmt"
	"net/http"

	cid "github.com/ipfs/go-cid"
	perrors "github.com/pkg/errors"
)

// BlockState is the state of a CID during incremental verification, as
// returned by verify.State.BlockState. It lives here rather than in the
// verify package because ExpectedWantedBlock carries it and verify imports
// errs, so defining it in verify would create an import cycle.
type BlockState int

const (
	Want BlockState = iota
	Have
	Unexpected
)

func (s BlockState) String() string {
	switch s {
	case Want:
		return "Want"
	case Have:
		return "Have"
	case Unexpected:
		return "Unexpected"
	default:
		return "Unknown"
	}
}

// TooManyBytes is raised when a received CAR file exceeds
// Config.ReceiveMaximum. Only the non-streaming receive path checks this;
// the total size of a streamed CAR is not checked.
type TooManyBytes struct {
	Limit int
	Read  int
}

func (e *TooManyBytes) Error() string {
	return fmt.Sprintf("received more than %d bytes (%d), aborting request", e.Limit, e.Read)
}

// HTTPStatus implements the status-mapping hint from spec §6.
func (e *TooManyBytes) HTTPStatus() int { return http.StatusRequestEntityTooLarge }

// BlockSizeExceeded is raised when a single block exceeds Config.MaxBlockSize.
type BlockSizeExceeded struct {
	Cid        cid.Cid
	BlockBytes int
	Max        int
}

func (e *BlockSizeExceeded) Error() string {
	return fmt.Sprintf("block %s exceeds maximum size (%d > %d)", e.Cid, e.BlockBytes, e.Max)
}

func (e *BlockSizeExceeded) HTTPStatus() int { return http.StatusRequestEntityTooLarge }

// UnsupportedCodec is raised when a CID's codec is not one of raw, DAG-CBOR or DAG-PB.
type UnsupportedCodec struct {
	Cid cid.Cid
}

func (e *UnsupportedCodec) Error() string {
	return fmt.Sprintf("unsupported codec in cid: %s", e.Cid)
}

func (e *UnsupportedCodec) HTTPStatus() int { return http.StatusBadRequest }

// UnsupportedHashCode is raised when a CID's multihash code isn't registered.
type UnsupportedHashCode struct {
	Cid cid.Cid
}

func (e *UnsupportedHashCode) Error() string {
	return fmt.Sprintf("unsupported hash code in cid: %s", e.Cid)
}

func (e *UnsupportedHashCode) HTTPStatus() int { return http.StatusBadRequest }

// DigestMismatch is raised when a received block's computed digest does not
// match the digest carried in its CID.
type DigestMismatch struct {
	Expected cid.Cid
	Actual   cid.Cid
}

func (e *DigestMismatch) Error() string {
	return fmt.Sprintf("digest mismatch: expected %s, computed %s", e.Expected, e.Actual)
}

func (e *DigestMismatch) HTTPStatus() int { return http.StatusBadRequest }

// ExpectedWantedBlock is raised when verify_and_store is called for a CID
// that is not currently in the Want state.
type ExpectedWantedBlock struct {
	Cid        cid.Cid
	BlockState BlockState
}

func (e *ExpectedWantedBlock) Error() string {
	return fmt.Sprintf("expected to want block %s, but block state is %s", e.Cid, e.BlockState)
}

func (e *ExpectedWantedBlock) HTTPStatus() int { return http.StatusBadRequest }

// ParsingError wraps a failure to parse a block while looking for references.
type ParsingError struct {
	Cause error
}

func (e *ParsingError) Error() string        { return fmt.Sprintf("error during block parsing: %s", e.Cause) }
func (e *ParsingError) Unwrap() error         { return e.Cause }
func (e *ParsingError) HTTPStatus() int       { return http.StatusUnprocessableEntity }
func NewParsingError(cause error) *ParsingError {
	return &ParsingError{Cause: perrors.WithStack(cause)}
}

// CarFileError wraps a failure to read or write a CAR file.
type CarFileError struct {
	Cause error
}

func (e *CarFileError) Error() string  { return fmt.Sprintf("CAR (de)serialization error: %s", e.Cause) }
func (e *CarFileError) Unwrap() error  { return e.Cause }
func (e *CarFileError) HTTPStatus() int { return http.StatusBadRequest }
func NewCarFileError(cause error) *CarFileError {
	return &CarFileError{Cause: perrors.WithStack(cause)}
}

// CIDNotFound indicates a block store lookup found nothing for the given
// CID. Per spec §7 this is not itself an error condition during a DAG walk;
// it is converted to a Missing traversal item. It is exported here because
// store implementations (and BlockStoreError below) need to be able to
// construct and recognize it.
type CIDNotFound struct {
	Cid cid.Cid
}

func (e *CIDNotFound) Error() string  { return fmt.Sprintf("block not found: %s", e.Cid) }
func (e *CIDNotFound) HTTPStatus() int { return http.StatusNotFound }

// BlockStoreError wraps an arbitrary error returned from a BlockStore
// implementation. CIDNotFound errors are typically unwrapped and handled
// specially by the DAG walk; other causes propagate as-is.
type BlockStoreError struct {
	Cause error
}

func (e *BlockStoreError) Error() string  { return fmt.Sprintf("block store error: %s", e.Cause) }
func (e *BlockStoreError) Unwrap() error  { return e.Cause }
func (e *BlockStoreError) HTTPStatus() int { return http.StatusInternalServerError }

func NewBlockStoreError(cause error) *BlockStoreError {
	return &BlockStoreError{Cause: perrors.WithStack(cause)}
}

// IsCIDNotFound reports whether err is, or wraps, a *CIDNotFound.
func IsCIDNotFound(err error) bool {
	var nf *CIDNotFound
	return errors.As(err, &nf)
}

// httpStatuser is implemented by every typed error above.
type httpStatuser interface {
	HTTPStatus() int
}

// HTTPStatus maps a typed protocol error to the HTTP status hint from
// spec §6. A nil error maps to 200; errors that don't implement
// httpStatuser map to 500, mirroring "store errors -> 500" as the catch-all.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var hs httpStatuser
	if errors.As(err, &hs) {
		return hs.HTTPStatus()
	}
	return http.StatusInternalServerError
}
