package h2core

// ControlKind tags a connection-scoped control frame the dispatcher
// wants written out-of-band, bypassing the per-stream scheduler.
type ControlKind uint8

const (
	ControlSettingsAck ControlKind = iota
	ControlPingAck
	ControlWindowUpdateConn
	ControlWindowUpdateStream
	ControlRstStream
)

// ControlFrame is a pending out-of-band frame the dispatcher produced
// as a side effect; the role layer serializes it through the frame
// codec (h2core has no codec dependency of its own).
type ControlFrame struct {
	Kind      ControlKind
	StreamID  uint32
	Opaque    [8]byte
	Increment uint32
	ErrCode   ErrorCode
}

// Dispatcher applies the side effects of each inbound frame kind to a
// Core, per §4.5. It has no I/O of its own: it mutates Core state,
// calls Hooks for application-visible events, and accumulates
// ControlFrame / flush requests for the caller to act on after each
// Dispatch call.
type Dispatcher struct {
	core  *Core
	hooks Hooks

	Pending     []ControlFrame
	FlushNeeded []EgressCommand

	// GoAwayReceived records that the peer sent GOAWAY; the core makes
	// no shutdown decision itself (§6), but exposes the bit for the
	// role layer to act on, per the open question in §9.
	GoAwayReceived     bool
	GoAwayLastStreamID uint32
}

// NewDispatcher binds a Dispatcher to core and hooks.
func NewDispatcher(core *Core, hooks Hooks) *Dispatcher {
	return &Dispatcher{core: core, hooks: hooks}
}

func (d *Dispatcher) queueControl(cf ControlFrame) {
	d.Pending = append(d.Pending, cf)
}

func (d *Dispatcher) queueFlush(cmd EgressCommand) {
	d.FlushNeeded = append(d.FlushNeeded, cmd)
}

// SettingsEntry is one (id, value) pair out of a SETTINGS frame,
// decoupled from the parent package's wire Settings type.
type SettingsEntry struct {
	InitialWindowSizeSet bool
	InitialWindowSize    uint32
	MaxConcurrentStreams uint32
	HasMaxConcurrent     bool
}

// DispatchSettings applies a non-ACK SETTINGS frame: retroactive
// INITIAL_WINDOW_SIZE adjustment across every live stream, then an
// ACK, then a connection flush if any stream's window grew.
func (d *Dispatcher) DispatchSettings(entry SettingsEntry) {
	grew := false
	if entry.InitialWindowSizeSet {
		old := d.core.PeerSettings.InitialWindowSize
		newVal := int32(entry.InitialWindowSize)
		delta := newVal - old
		d.core.PeerSettings.InitialWindowSize = newVal
		d.core.ApplyInitialWindowSizeChange(delta)
		grew = delta > 0
	}
	if entry.HasMaxConcurrent {
		d.core.PeerSettings.MaxConcurrentStreams = entry.MaxConcurrentStreams
	}

	d.queueControl(ControlFrame{Kind: ControlSettingsAck})

	if grew && d.core.Streams.Len() > 0 {
		d.queueFlush(TryFlushAll())
	}
}

// DispatchSettingsAck is a no-op per the spec; kept as an explicit
// entry point so callers don't need a special case.
func (d *Dispatcher) DispatchSettingsAck() {}

// DispatchPing answers a non-ACK PING with the same opaque payload;
// an ACK PING is a no-op.
func (d *Dispatcher) DispatchPing(opaque [8]byte, ack bool) {
	if ack {
		return
	}
	d.queueControl(ControlFrame{Kind: ControlPingAck, Opaque: opaque})
}

// DispatchGoAway records receipt only; no teardown is mandated here.
func (d *Dispatcher) DispatchGoAway(lastStreamID uint32) {
	d.GoAwayReceived = true
	d.GoAwayLastStreamID = lastStreamID
}

// DispatchWindowUpdateConn applies a connection-scoped WINDOW_UPDATE.
// An overflow is connection-fatal.
func (d *Dispatcher) DispatchWindowUpdateConn(increment uint32) error {
	if err := d.core.OutWindow.TryIncrease(increment); err != nil {
		return newErr(KindFlowControl, 0, "connection window update overflow: %v", err)
	}
	d.queueFlush(TryFlushAll())
	return nil
}

// DispatchWindowUpdateStream applies a stream-scoped WINDOW_UPDATE. An
// unknown stream is ignored (late update on a closed stream is legal);
// overflow is a stream error reported via RST_STREAM, not a
// connection error.
func (d *Dispatcher) DispatchWindowUpdateStream(streamID uint32, increment uint32) {
	s := d.core.GetStream(streamID)
	if s == nil {
		return
	}
	if err := s.OutWindow().TryIncrease(increment); err != nil {
		d.resetStream(streamID, ErrCodeFlowControlError)
		return
	}
	d.queueFlush(TryFlushStream(streamID))
}

// DispatchData applies inbound DATA flow-control accounting in both
// directions, delivers the payload, and closes the remote direction
// on END_STREAM.
func (d *Dispatcher) DispatchData(streamID uint32, payload []byte, endStream bool) error {
	if err := d.core.InWindow.TryDecrease(int64(len(payload))); err != nil {
		return newErr(KindFlowControl, 0, "connection inbound window exhausted by %d-byte DATA", len(payload))
	}
	if d.core.InWindow.Size() < d.core.LocalSettings.InitialWindowSize/2 {
		topUp := uint32(d.core.LocalSettings.InitialWindowSize - d.core.InWindow.Size())
		if err := d.core.InWindow.TryIncrease(topUp); err == nil {
			d.queueControl(ControlFrame{Kind: ControlWindowUpdateConn, Increment: topUp})
		}
	}

	s := d.core.GetStream(streamID)
	if s == nil {
		return newErr(KindStreamClosed, streamID, "DATA for unknown stream")
	}
	if err := s.InWindow().TryDecrease(int64(len(payload))); err != nil {
		d.resetStream(streamID, ErrCodeFlowControlError)
		return nil
	}
	if s.InWindow().Size() < d.core.LocalSettings.InitialWindowSize/2 {
		topUp := uint32(d.core.LocalSettings.InitialWindowSize - s.InWindow().Size())
		if err := s.InWindow().TryIncrease(topUp); err == nil {
			d.queueControl(ControlFrame{Kind: ControlWindowUpdateStream, StreamID: streamID, Increment: topUp})
		}
	}

	d.hooks.NewDataChunk(streamID, payload, endStream)

	if endStream {
		d.closeRemote(streamID)
	}
	return nil
}

// DispatchHeaders hands already-HPACK-decoded fields to the
// application hook and closes the remote direction on END_STREAM. The
// HPACK decode itself happens in the caller (the decoder is
// connection-global and lives with the codec, not here); a decode
// failure there must be reported as KindCompressionError before this
// is ever called.
func (d *Dispatcher) DispatchHeaders(streamID uint32, endStream bool, fields []HeaderField) {
	if d.core.GetStream(streamID) == nil {
		d.core.OpenStream(streamID)
	}
	d.hooks.ProcessHeaders(streamID, endStream, fields)
	if endStream {
		d.closeRemote(streamID)
	}
}

// DispatchRstStream hands the error code to the application and
// closes both half-directions.
func (d *Dispatcher) DispatchRstStream(streamID uint32, code ErrorCode) {
	d.hooks.Rst(streamID, code)
	s := d.core.GetStream(streamID)
	if s == nil {
		return
	}
	s.CloseRemote()
	s.CloseLocal()
	d.closeIfDone(streamID)
}

// resetStream is the dispatcher-initiated counterpart to a
// peer-requested RST_STREAM: something this side detected (e.g. a
// stream flow-control overflow) forces local closure and queues an
// outgoing RST_STREAM control frame.
func (d *Dispatcher) resetStream(streamID uint32, code ErrorCode) {
	s := d.core.GetStream(streamID)
	if s != nil {
		s.CloseRemote()
		s.CloseLocal()
		d.closeIfDone(streamID)
	}
	d.queueControl(ControlFrame{Kind: ControlRstStream, StreamID: streamID, ErrCode: code})
}

// closeRemote is the state-closure post-pass for end-of-stream: calls
// Stream.CloseRemote, notifies the hook, and sweeps the stream table
// if that closed the stream.
func (d *Dispatcher) closeRemote(streamID uint32) {
	s := d.core.GetStream(streamID)
	if s == nil {
		return
	}
	s.CloseRemote()
	d.hooks.ClosedRemote(streamID)
	d.closeIfDone(streamID)
}

func (d *Dispatcher) closeIfDone(streamID uint32) {
	s := d.core.GetStream(streamID)
	if s != nil && s.State() == StreamClosed {
		d.core.RemoveStreamIfClosed(streamID)
	}
}

// DispatchContinuation documents why this entry point is unreachable
// in a correct implementation: the frame codec must fold CONTINUATION
// into the preceding HEADERS before handing anything to the
// dispatcher.
func (d *Dispatcher) DispatchContinuation() {
	panic("h2core: unassembled CONTINUATION reached the dispatcher")
}

// DispatchUnknown is a no-op, per the protocol's extensibility rule:
// unrecognized frame types are ignored.
func (d *Dispatcher) DispatchUnknown() {}
