package h2core

// Hooks is the role-layer collaborator the dispatcher calls out to
// for every application-visible event. The spec models this as a
// trait with virtual dispatch on a per-stream base struct; per §9's
// preference for the generic form over dynamic dispatch, Hooks is a
// single interface held once by the Core's owner (the parent
// package's `Conn`/`serverConn`), not embedded per-stream.
type Hooks interface {
	// ProcessHeaders hands decoded request/response headers to the
	// role layer, which decides whether this opens a new logical
	// request or completes one already in flight.
	ProcessHeaders(streamID uint32, endStream bool, headers []HeaderField)
	// NewDataChunk delivers a DATA payload slice to the application.
	NewDataChunk(streamID uint32, data []byte, endStream bool)
	// Rst notifies the application that the peer cancelled streamID.
	Rst(streamID uint32, code ErrorCode)
	// ClosedRemote notifies the application that the peer will send no
	// more frames on streamID.
	ClosedRemote(streamID uint32)
}
