package h2core

import "fmt"

// ErrKind classifies a core-level failure the way a caller needs to
// react to it: some close a single stream, some tear down the whole
// connection.
type ErrKind uint8

const (
	// KindProtocolError is a connection-fatal framing/state violation.
	KindProtocolError ErrKind = iota
	// KindFlowControl is a connection- or stream-fatal window violation.
	KindFlowControl
	// KindCompressionError is an HPACK decode failure; always connection-fatal.
	KindCompressionError
	// KindStreamClosed means a frame arrived for a stream that cannot
	// accept it anymore.
	KindStreamClosed
	// KindHeaderTooLarge means an outgoing header block would not fit
	// in a single HEADERS frame (CONTINUATION emission is a non-goal).
	KindHeaderTooLarge
	// KindTransport wraps an error from the egress/hooks boundary.
	KindTransport
)

func (k ErrKind) String() string {
	switch k {
	case KindProtocolError:
		return "protocol_error"
	case KindFlowControl:
		return "flow_control"
	case KindCompressionError:
		return "compression_error"
	case KindStreamClosed:
		return "stream_closed"
	case KindHeaderTooLarge:
		return "header_too_large"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a core-semantic failure, tagged with the stream it
// concerns (0 for connection-scoped failures).
type Error struct {
	Kind     ErrKind
	StreamID uint32
	Msg      string
}

func (e *Error) Error() string {
	if e.StreamID == 0 {
		return fmt.Sprintf("h2core: %s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("h2core: stream %d: %s: %s", e.StreamID, e.Kind, e.Msg)
}

func newErr(kind ErrKind, streamID uint32, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, StreamID: streamID, Msg: fmt.Sprintf(format, args...)}
}

// ErrFlowControlOverflow is returned by Window when an update would
// push the window outside the signed 31-bit range RFC 7540 §6.9
// allows for a legal increment.
var ErrFlowControlOverflow = &Error{Kind: KindFlowControl, Msg: "window update overflows 2^31-1"}

// IsConnectionFatal reports whether err, per the taxonomy above, must
// tear down the whole connection rather than just one stream.
func IsConnectionFatal(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	switch e.Kind {
	case KindProtocolError, KindCompressionError:
		return true
	case KindFlowControl:
		return e.StreamID == 0
	default:
		return false
	}
}
