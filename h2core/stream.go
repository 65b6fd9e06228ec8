package h2core

// StreamState is a position in the RFC 7540 §5.1 state machine, with
// the two PUSH-only reserved states dropped (PUSH_PROMISE is a
// non-goal of this engine).
type StreamState uint8

const (
	StreamIdle StreamState = iota
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamOpen:
		return "open"
	case StreamHalfClosedLocal:
		return "half_closed_local"
	case StreamHalfClosedRemote:
		return "half_closed_remote"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// outgoingEntry is one queued unit of application output, tagged the
// same way HttpStreamPartContent is in the spec: either a header
// block or a byte buffer.
type outgoingEntry struct {
	isHeaders bool
	headers   HeaderBlock
	data      []byte
}

// Stream is the per-stream state the core maintains: lifecycle,
// both-direction windows, and the FIFO of parts awaiting emission.
type Stream struct {
	ID    uint32
	state StreamState

	outWindow Window
	inWindow  Window

	outgoing    []outgoingEntry
	outgoingEnd *ErrorCode // nil = still open; NoError = clean close; else RST with this code
}

const defaultInWindow int32 = 65535

// NewStream creates a stream in the Idle state, seeding its outgoing
// window from the peer's negotiated initial window.
func NewStream(id uint32, peerInitialWindow int32) *Stream {
	return &Stream{
		ID:        id,
		state:     StreamIdle,
		outWindow: NewWindow(peerInitialWindow),
		inWindow:  NewWindow(defaultInWindow),
	}
}

// State returns the stream's current lifecycle state.
func (s *Stream) State() StreamState { return s.state }

// OutWindow returns a pointer to the outgoing flow-control window, for
// direct adjustment by SETTINGS/WINDOW_UPDATE handling.
func (s *Stream) OutWindow() *Window { return &s.outWindow }

// InWindow returns a pointer to the incoming flow-control window.
func (s *Stream) InWindow() *Window { return &s.inWindow }

// Open transitions Idle -> Open, called when the dispatcher sees the
// first HEADERS on a new stream-id, or when the application opens a
// new request stream.
func (s *Stream) Open() {
	if s.state == StreamIdle {
		s.state = StreamOpen
	}
}

// CloseLocal collapses the local write-direction: Open becomes
// HalfClosedLocal, and a stream already half-closed on the remote
// side becomes fully Closed.
func (s *Stream) CloseLocal() {
	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedLocal
	case StreamHalfClosedRemote:
		s.state = StreamClosed
	}
}

// CloseRemote collapses the remote read-direction, mirroring
// CloseLocal.
func (s *Stream) CloseRemote() {
	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedRemote
	case StreamHalfClosedLocal:
		s.state = StreamClosed
	}
}

// EnqueueHeaders appends a header block to the outgoing queue. The
// caller (producer) is responsible for invariant 5: a Headers entry
// must be the queue head when it represents the initial
// response/request headers; the core does not reorder.
func (s *Stream) EnqueueHeaders(h HeaderBlock) {
	s.outgoing = append(s.outgoing, outgoingEntry{isHeaders: true, headers: h})
}

// EnqueueData appends a body chunk to the outgoing queue.
func (s *Stream) EnqueueData(b []byte) {
	s.outgoing = append(s.outgoing, outgoingEntry{data: b})
}

// SetOutgoingEnd marks that no further parts will be enqueued. code
// ErrCodeNoError requests a clean end-of-stream; any other code
// requests RST_STREAM once the queue drains.
func (s *Stream) SetOutgoingEnd(code ErrorCode) {
	s.outgoingEnd = &code
}

// PopOutgoing implements the spec's central scheduling contract: it
// pulls the next unit of outgoing work, subject to both this stream's
// window and the connection-scoped out window passed in by the
// caller (which it also decrements on a DATA emission).
//
// Returns (cmd, ok); ok is false when there is nothing to emit right
// now (queue drained and no close pending, or blocked on flow
// control).
func (s *Stream) PopOutgoing(connOutWindow *Window) (HttpStreamCommand, bool) {
	if len(s.outgoing) == 0 {
		if s.outgoingEnd == nil {
			return HttpStreamCommand{}, false
		}
		if s.state == StreamHalfClosedLocal || s.state == StreamClosed {
			return HttpStreamCommand{}, false
		}
		code := *s.outgoingEnd
		s.CloseLocal()
		if code == ErrCodeNoError {
			return HttpStreamCommand{Kind: CmdData, Data: nil, EndStream: true}, true
		}
		return HttpStreamCommand{Kind: CmdRst, ErrCode: code}, true
	}

	head := s.outgoing[0]

	// Headers never carry END_STREAM: a clean end with nothing queued
	// behind them goes out on the next pop as an empty DATA frame.
	if head.isHeaders {
		s.outgoing = s.outgoing[1:]
		return HttpStreamCommand{Kind: CmdHeaders, Headers: head.headers}, true
	}

	if s.outWindow.Size() <= 0 {
		return HttpStreamCommand{}, false
	}
	max := s.outWindow.Size()
	if connOutWindow.Size() < max {
		max = connOutWindow.Size()
	}
	if max <= 0 {
		return HttpStreamCommand{}, false
	}

	buf := head.data
	var emit []byte
	if int32(len(buf)) > max {
		emit = buf[:max]
		s.outgoing[0] = outgoingEntry{data: buf[max:]}
	} else {
		emit = buf
		s.outgoing = s.outgoing[1:]
	}

	if err := s.outWindow.TryDecrease(int64(len(emit))); err != nil {
		panic("h2core: stream out window underflow after precondition check: " + err.Error())
	}
	if err := connOutWindow.TryDecrease(int64(len(emit))); err != nil {
		panic("h2core: connection out window underflow after precondition check: " + err.Error())
	}

	last := s.outgoingEnd != nil && *s.outgoingEnd == ErrCodeNoError && len(s.outgoing) == 0
	if last {
		s.CloseLocal()
	}
	return HttpStreamCommand{Kind: CmdData, Data: emit, EndStream: last}, true
}
