package core

import (
	"errors"
	"fmt"
	"syscall"
)

// Sentinel errors. Structured kinds below unwrap to one of these.
var (
	// Packet decoding errors
	ErrTruncated           = errors.New("sniff: truncated input")
	ErrVersionMismatch     = errors.New("sniff: version mismatch")
	ErrUnsupportedProtocol = errors.New("sniff: unsupported protocol")
	ErrReservedBitSet      = errors.New("sniff: reserved bit set")
	ErrInvalidHeaderLength = errors.New("sniff: invalid header length")

	// ErrProtocolNotSupported is the legacy coarse marker kept for callers that
	// only care whether a frame was decodable at all.
	ErrProtocolNotSupported = errors.New("sniff: protocol not supported")

	// Buffer pool errors
	ErrPoolBufferNotLent = errors.New("sniff: buffer is not lent by this pool")

	// Transport errors
	ErrTransportClosed     = errors.New("sniff: transport closed")
	ErrUnsupportedPlatform = errors.New("sniff: raw link-layer capture not supported on this platform")

	// Configuration errors
	ErrConfigInvalid = errors.New("sniff: invalid configuration")
)

// TruncatedError reports that a layer needed more bytes than were available.
type TruncatedError struct {
	Layer     string
	Needed    int
	Available int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("sniff: %s truncated: needed %d bytes, %d available", e.Layer, e.Needed, e.Available)
}

func (e *TruncatedError) Unwrap() error { return ErrTruncated }

// VersionMismatchError reports a version nibble the invoked decoder does not handle.
type VersionMismatchError struct {
	Layer    string
	Expected uint8
	Found    uint8
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("sniff: %s version mismatch: expected %d, found %d", e.Layer, e.Expected, e.Found)
}

func (e *VersionMismatchError) Unwrap() error { return ErrVersionMismatch }

// UnsupportedProtocolError reports a protocol tag with no registered decoder.
// Layer names the layer whose field carried the tag.
type UnsupportedProtocolError struct {
	Layer string
	Code  uint16
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("sniff: %s: unsupported protocol 0x%04x", e.Layer, e.Code)
}

func (e *UnsupportedProtocolError) Unwrap() error { return ErrUnsupportedProtocol }

// Is also matches the legacy ErrProtocolNotSupported marker.
func (e *UnsupportedProtocolError) Is(target error) bool {
	return target == ErrProtocolNotSupported
}

// OSError wraps a failed socket syscall.
type OSError struct {
	Op    string
	Errno syscall.Errno
}

func (e *OSError) Error() string {
	return fmt.Sprintf("sniff: %s: %v (errno %d)", e.Op, e.Errno, int(e.Errno))
}

func (e *OSError) Unwrap() error { return e.Errno }

// NewOSError converts err into an *OSError when it carries an errno.
// Other errors are wrapped with the operation name.
func NewOSError(op string, err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &OSError{Op: op, Errno: errno}
	}
	return fmt.Errorf("sniff: %s: %w", op, err)
}
