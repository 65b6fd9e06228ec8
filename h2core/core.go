package h2core

// Scheme distinguishes http vs https for request-line reconstruction
// by the role layer; the core itself never inspects it.
type Scheme uint8

const (
	SchemeHTTP Scheme = iota
	SchemeHTTPS
)

// SettingsTable holds the subset of SETTINGS values the core cares
// about. The full wire SETTINGS frame (including HEADER_TABLE_SIZE,
// MAX_FRAME_SIZE, MAX_HEADER_LIST_SIZE) is owned by the parent
// package's Settings type; the core only needs the two values that
// feed its own bookkeeping.
type SettingsTable struct {
	InitialWindowSize    int32
	MaxConcurrentStreams uint32
}

// DefaultSettingsTable uses the RFC 7540 §6.5.2 default initial window
// size; MaxConcurrentStreams, unlimited by RFC default, is set to 100.
func DefaultSettingsTable() SettingsTable {
	return SettingsTable{
		InitialWindowSize:    65535,
		MaxConcurrentStreams: 100,
	}
}

// HeaderCodec is the opaque HPACK encoder/decoder pair the core
// drives but never implements; supplied by the parent package's
// *HPack held per-direction by the role layer.
type HeaderCodec interface {
	// Decode consumes an HPACK-compressed header block and returns the
	// field list in order, or an error if the block is malformed.
	Decode(block []byte) ([]HeaderField, error)
	// Encode appends the HPACK encoding of fields to dst and returns
	// the grown slice.
	Encode(dst []byte, fields []HeaderField) []byte
}

// Core is the connection-scoped state object: the stream table, both
// connection-level windows, negotiated settings, and the header
// codec handles. It is single-task owned, per §5 of the spec — no
// internal locking.
type Core struct {
	Scheme Scheme

	Streams StreamTable

	PeerSettings  SettingsTable
	LocalSettings SettingsTable

	OutWindow Window
	InWindow  Window

	Encoder HeaderCodec
	Decoder HeaderCodec

	nextLocalStreamID uint32
}

// NewCore builds a Core with RFC defaults and the given header codec
// pair, ready to accept or initiate streams.
func NewCore(scheme Scheme, encoder, decoder HeaderCodec, firstLocalStreamID uint32) *Core {
	peer := DefaultSettingsTable()
	local := DefaultSettingsTable()
	return &Core{
		Scheme:            scheme,
		PeerSettings:      peer,
		LocalSettings:     local,
		OutWindow:         NewWindow(peer.InitialWindowSize),
		InWindow:          NewWindow(int32(defaultInWindow)),
		Encoder:           encoder,
		Decoder:           decoder,
		nextLocalStreamID: firstLocalStreamID,
	}
}

// GetStream returns the stream for id, or nil if absent.
func (c *Core) GetStream(id uint32) *Stream {
	return c.Streams.Get(id)
}

// OpenStream creates and registers a new stream at id (called by the
// dispatcher on an inbound HEADERS for an unknown stream-id, or by the
// role layer when it initiates a request).
func (c *Core) OpenStream(id uint32) *Stream {
	s := NewStream(id, c.PeerSettings.InitialWindowSize)
	s.Open()
	c.Streams.Insert(s)
	return s
}

// NextLocalStreamID returns the next odd/even id this side should use
// to open a stream and advances the counter by 2.
func (c *Core) NextLocalStreamID() uint32 {
	id := c.nextLocalStreamID
	c.nextLocalStreamID += 2
	return id
}

// RemoveStreamIfClosed removes id from the table iff its state is
// Closed. Per the spec, calling this with an id absent from the table
// indicates a scheduler bug and panics.
func (c *Core) RemoveStreamIfClosed(id uint32) {
	s := c.Streams.Get(id)
	if s == nil {
		panic("h2core: remove_stream_if_closed called for unknown stream id")
	}
	if s.State() == StreamClosed {
		c.Streams.Remove(id)
	}
}

// Snapshot is the diagnostic dump of every live stream's state.
type Snapshot struct {
	Streams map[uint32]StreamState
}

// DumpSnapshot returns a point-in-time view of every live stream's
// lifecycle state, for diagnostics only.
func (c *Core) DumpSnapshot() Snapshot {
	snap := Snapshot{Streams: make(map[uint32]StreamState, c.Streams.Len())}
	c.Streams.Each(func(s *Stream) {
		snap.Streams[s.ID] = s.State()
	})
	return snap
}

// ApplyInitialWindowSizeChange retroactively adjusts every live
// stream's out window by delta = new - old, per RFC 7540 §6.9.2. It
// does not touch PeerSettings.InitialWindowSize itself; the caller
// (dispatcher) updates that separately so new streams see the right
// seed value.
func (c *Core) ApplyInitialWindowSizeChange(delta int32) {
	c.Streams.Each(func(s *Stream) {
		s.OutWindow().Adjust(delta)
	})
}
