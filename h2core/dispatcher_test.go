package h2core

import "testing"

// recordingHooks captures every hook invocation for assertions.
type recordingHooks struct {
	headers   []headersCall
	chunks    []chunkCall
	rsts      []rstCall
	closed    []uint32
}

type headersCall struct {
	streamID  uint32
	endStream bool
	fields    []HeaderField
}

type chunkCall struct {
	streamID  uint32
	data      []byte
	endStream bool
}

type rstCall struct {
	streamID uint32
	code     ErrorCode
}

func (r *recordingHooks) ProcessHeaders(streamID uint32, endStream bool, headers []HeaderField) {
	r.headers = append(r.headers, headersCall{streamID, endStream, headers})
}

func (r *recordingHooks) NewDataChunk(streamID uint32, data []byte, endStream bool) {
	r.chunks = append(r.chunks, chunkCall{streamID, append([]byte(nil), data...), endStream})
}

func (r *recordingHooks) Rst(streamID uint32, code ErrorCode) {
	r.rsts = append(r.rsts, rstCall{streamID, code})
}

func (r *recordingHooks) ClosedRemote(streamID uint32) {
	r.closed = append(r.closed, streamID)
}

func TestDispatchSettingsRetroactiveShrinkAndGrow(t *testing.T) {
	// Scenario 4.
	core := newTestCore()
	core.OpenStream(1)
	hooks := &recordingHooks{}
	d := NewDispatcher(core, hooks)

	d.DispatchSettings(SettingsEntry{InitialWindowSizeSet: true, InitialWindowSize: 30000})
	if got := core.GetStream(1).OutWindow().Size(); got != 30000 {
		t.Fatalf("out window after shrink = %d, want 30000", got)
	}
	if len(d.Pending) != 1 || d.Pending[0].Kind != ControlSettingsAck {
		t.Fatalf("pending = %+v, want one SettingsAck", d.Pending)
	}
	if len(d.FlushNeeded) != 0 {
		t.Fatalf("shrink must not trigger a flush, got %+v", d.FlushNeeded)
	}
	d.Pending = nil

	d.DispatchSettings(SettingsEntry{InitialWindowSizeSet: true, InitialWindowSize: 70000})
	if got := core.GetStream(1).OutWindow().Size(); got != 70000 {
		t.Fatalf("out window after grow = %d, want 70000", got)
	}
	if len(d.Pending) != 1 || d.Pending[0].Kind != ControlSettingsAck {
		t.Fatalf("pending = %+v, want one SettingsAck", d.Pending)
	}
	if len(d.FlushNeeded) != 1 || !d.FlushNeeded[0].FlushAll {
		t.Fatalf("grow must trigger a connection-wide flush, got %+v", d.FlushNeeded)
	}
}

func TestDispatchPingEcho(t *testing.T) {
	// Scenario 5.
	core := newTestCore()
	hooks := &recordingHooks{}
	d := NewDispatcher(core, hooks)

	opaque := [8]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	d.DispatchPing(opaque, false)

	if len(d.Pending) != 1 {
		t.Fatalf("pending = %+v, want one PingAck", d.Pending)
	}
	cf := d.Pending[0]
	if cf.Kind != ControlPingAck || cf.Opaque != opaque {
		t.Fatalf("control frame = %+v, want PingAck with matching opaque", cf)
	}
}

func TestDispatchPingAckIsNoop(t *testing.T) {
	core := newTestCore()
	hooks := &recordingHooks{}
	d := NewDispatcher(core, hooks)
	d.DispatchPing([8]byte{}, true)
	if len(d.Pending) != 0 {
		t.Fatalf("ACK ping must not queue a response, got %+v", d.Pending)
	}
}

func TestDispatchRstStreamMidStream(t *testing.T) {
	// Scenario 6.
	core := newTestCore()
	s := core.OpenStream(1)
	s.EnqueueData(make([]byte, 3000))
	hooks := &recordingHooks{}
	d := NewDispatcher(core, hooks)

	d.DispatchRstStream(1, ErrCodeCancel)

	if len(hooks.rsts) != 1 || hooks.rsts[0] != (rstCall{1, ErrCodeCancel}) {
		t.Fatalf("rsts = %+v, want one Cancel for stream 1", hooks.rsts)
	}
	if core.GetStream(1) != nil {
		t.Fatalf("stream 1 should have been removed after RST closed it")
	}
}

func TestDispatchDataTopsUpBelowHalf(t *testing.T) {
	core := newTestCore()
	core.LocalSettings.InitialWindowSize = 100
	core.InWindow = NewWindow(100)
	s := core.OpenStream(1)
	s.InWindow().Adjust(100 - 65535) // seed stream window to match local default test size
	hooks := &recordingHooks{}
	d := NewDispatcher(core, hooks)

	if err := d.DispatchData(1, make([]byte, 60), false); err != nil {
		t.Fatalf("DispatchData: %v", err)
	}

	if len(hooks.chunks) != 1 || len(hooks.chunks[0].data) != 60 {
		t.Fatalf("chunks = %+v, want one 60-byte delivery", hooks.chunks)
	}
	foundConnUpdate, foundStreamUpdate := false, false
	for _, cf := range d.Pending {
		if cf.Kind == ControlWindowUpdateConn {
			foundConnUpdate = true
		}
		if cf.Kind == ControlWindowUpdateStream {
			foundStreamUpdate = true
		}
	}
	if !foundConnUpdate || !foundStreamUpdate {
		t.Fatalf("pending = %+v, want both a conn and a stream WINDOW_UPDATE", d.Pending)
	}
	if core.InWindow.Size() != 100 {
		t.Fatalf("conn in window = %d, want topped back up to 100", core.InWindow.Size())
	}
}

func TestDispatchWindowUpdateConnOverflow(t *testing.T) {
	core := newTestCore()
	hooks := &recordingHooks{}
	d := NewDispatcher(core, hooks)
	core.OutWindow = NewWindow(2147483647)

	if err := d.DispatchWindowUpdateConn(1); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestDispatchWindowUpdateStreamOverflowResetsStream(t *testing.T) {
	core := newTestCore()
	s := core.OpenStream(1)
	s.OutWindow().Adjust(2147483647 - s.OutWindow().Size())
	hooks := &recordingHooks{}
	d := NewDispatcher(core, hooks)

	d.DispatchWindowUpdateStream(1, 1)

	if core.GetStream(1) != nil {
		t.Fatalf("stream should have been reset and removed on overflow")
	}
	found := false
	for _, cf := range d.Pending {
		if cf.Kind == ControlRstStream && cf.StreamID == 1 && cf.ErrCode == ErrCodeFlowControlError {
			found = true
		}
	}
	if !found {
		t.Fatalf("pending = %+v, want RstStream(FlowControlError) for stream 1", d.Pending)
	}
}

func TestDispatchHeadersOpensStreamAndClosesRemoteOnEndStream(t *testing.T) {
	core := newTestCore()
	hooks := &recordingHooks{}
	d := NewDispatcher(core, hooks)

	d.DispatchHeaders(1, true, []HeaderField{{Name: ":method", Value: "GET"}})

	if len(hooks.headers) != 1 || !hooks.headers[0].endStream {
		t.Fatalf("headers = %+v, want one end_stream call", hooks.headers)
	}
	if len(hooks.closed) != 1 || hooks.closed[0] != 1 {
		t.Fatalf("closed = %+v, want ClosedRemote(1)", hooks.closed)
	}
	// Stream is half-closed-remote (not yet closed-local), so it
	// remains registered for outgoing response headers.
	if core.GetStream(1) == nil {
		t.Fatalf("stream should still be registered pending a response")
	}
	if core.GetStream(1).State() != StreamHalfClosedRemote {
		t.Fatalf("state = %v, want half_closed_remote", core.GetStream(1).State())
	}
}
