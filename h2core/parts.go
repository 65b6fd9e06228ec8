package h2core

// HeaderBlock is an ordered list of decoded/encoded header fields,
// handed to and from the HPACK codec that lives outside this package.
type HeaderBlock struct {
	Fields []HeaderField
}

// HeaderField is a single name/value pair, deliberately untyped so
// both the role layer (application headers) and the codec (wire
// fields) can share it without an import cycle.
type HeaderField struct {
	Name  string
	Value string
}

// StreamPartKind tags which variant StreamPart.Content holds.
type StreamPartKind uint8

const (
	PartHeaders StreamPartKind = iota
	PartData
)

// StreamPart is one ingress delivery to the application: either a
// decoded header block or a chunk of body bytes, tagged with whether
// it is the last part the peer will ever send on this stream.
type StreamPart struct {
	Kind    StreamPartKind
	Headers HeaderBlock
	Data    []byte
	Last    bool
}

// CommandKind tags which variant of HttpStreamCommand PopOutgoing
// returned.
type CommandKind uint8

const (
	// CmdHeaders carries a header block to serialize as a single
	// HEADERS frame (no CONTINUATION emission).
	CmdHeaders CommandKind = iota
	// CmdData carries a body chunk to fragment into <= 8 KiB DATA
	// frames.
	CmdData
	// CmdRst carries an error code to serialize as RST_STREAM.
	CmdRst
)

// HttpStreamCommand is what PopOutgoing hands the scheduler: one
// logical unit of outgoing work for a single stream.
type HttpStreamCommand struct {
	Kind      CommandKind
	Headers   HeaderBlock
	Data      []byte
	EndStream bool
	ErrCode   ErrorCode
}

// ErrorCode mirrors the wire RST_STREAM/GOAWAY error code space; kept
// as its own integer type here (rather than importing the parent
// package) so h2core has no dependency on the frame codec.
type ErrorCode uint32

const (
	ErrCodeNoError             ErrorCode = 0x0
	ErrCodeProtocolError       ErrorCode = 0x1
	ErrCodeInternalError       ErrorCode = 0x2
	ErrCodeFlowControlError    ErrorCode = 0x3
	ErrCodeSettingsTimeout     ErrorCode = 0x4
	ErrCodeStreamClosed        ErrorCode = 0x5
	ErrCodeFrameSizeError      ErrorCode = 0x6
	ErrCodeRefusedStream       ErrorCode = 0x7
	ErrCodeCancel              ErrorCode = 0x8
	ErrCodeCompressionError    ErrorCode = 0x9
	ErrCodeConnectError        ErrorCode = 0xa
	ErrCodeEnhanceYourCalm     ErrorCode = 0xb
	ErrCodeInadequateSecurity  ErrorCode = 0xc
	ErrCodeHTTP11Required      ErrorCode = 0xd
)
