package http2

import (
	"errors"
	"fmt"
)

// ErrorCode is the wire error code carried by RST_STREAM and GOAWAY.
//
// http://httpwg.org/specs/rfc7540.html#ErrorCodes
type ErrorCode uint32

const (
	NoError              ErrorCode = 0x0
	ProtocolError        ErrorCode = 0x1
	InternalError        ErrorCode = 0x2
	FlowControlError     ErrorCode = 0x3
	SettingsTimeoutError ErrorCode = 0x4
	StreamClosedError    ErrorCode = 0x5
	FrameSizeError       ErrorCode = 0x6
	RefusedStreamError   ErrorCode = 0x7
	CancelError          ErrorCode = 0x8
	CompressionError     ErrorCode = 0x9
	ConnectionError      ErrorCode = 0xa
	EnhanceYourCalm      ErrorCode = 0xb
	InadequateSecurity   ErrorCode = 0xc
	HTTP11Required       ErrorCode = 0xd
)

var errCodeNames = [...]string{
	"NO_ERROR", "PROTOCOL_ERROR", "INTERNAL_ERROR", "FLOW_CONTROL_ERROR",
	"SETTINGS_TIMEOUT", "STREAM_CLOSED", "FRAME_SIZE_ERROR", "REFUSED_STREAM",
	"CANCEL", "COMPRESSION_ERROR", "CONNECT_ERROR", "ENHANCE_YOUR_CALM",
	"INADEQUATE_SECURITY", "HTTP_1_1_REQUIRED",
}

func (c ErrorCode) String() string {
	if int(c) < len(errCodeNames) {
		return errCodeNames[c]
	}
	return fmt.Sprintf("UNKNOWN_ERROR(0x%x)", uint32(c))
}

// Error is an HTTP/2 protocol error tagged with its wire error code.
//
// RstStream.Error, serverConn's stream-frame checks and a received
// GOAWAY with a non-zero code all produce values of this type; the
// h2core dispatcher reports its failures as *h2core.Error instead.
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// NewError builds an *Error for code, optionally annotated with msg.
func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Sentinel parsing/framing errors, matching the style of the teacher's
// errors.go sentinel table.
var (
	ErrMissingBytes     = errors.New("http2: frame is missing bytes")
	ErrPayloadExceeds   = errors.New("http2: payload exceeds negotiated max frame size")
	ErrUnknownFrameType = errors.New("http2: unknown frame type")
	ErrZeroPayload      = errors.New("http2: frame has zero-length payload")
	ErrBadPreface       = errors.New("http2: bad connection preface")
	ErrNilWriter        = errors.New("http2: nil writer")
	ErrNilReader        = errors.New("http2: nil reader")
	ErrCompressionError = errors.New("http2: hpack compression error")
)
