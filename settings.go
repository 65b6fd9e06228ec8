package http2

import (
	"sync"

	"github.com/dgrr/http2/http2utils"
)

const FrameSettings FrameType = 0x4

var _ Frame = &Settings{}

// Setting identifiers.
//
// https://tools.ietf.org/html/rfc7540#section-6.5.2
const (
	HeaderTableSize      uint16 = 0x1
	EnablePush           uint16 = 0x2
	MaxConcurrentStreams uint16 = 0x3
	InitialWindowSize    uint16 = 0x4
	MaxFrameSize         uint16 = 0x5
	MaxHeaderListSize    uint16 = 0x6
)

const (
	defaultHeaderTableSize   uint32 = 4096
	defaultConcurrentStreams uint32 = 100
	defaultWindowSize        uint32 = 1<<16 - 1
	defaultMaxFrameSize      uint32 = 1 << 14
)

var settingsPool = sync.Pool{
	New: func() interface{} {
		return &Settings{
			headerTableSize:      defaultHeaderTableSize,
			maxConcurrentStreams: defaultConcurrentStreams,
			initialWindowSize:    defaultWindowSize,
			maxFrameSize:         defaultMaxFrameSize,
		}
	},
}

// Settings represents a SETTINGS frame's collection of parameters.
//
// https://tools.ietf.org/html/rfc7540#section-6.5
type Settings struct {
	ack bool

	headerTableSize      uint32
	enablePush           bool
	maxConcurrentStreams uint32
	initialWindowSize    uint32
	maxFrameSize         uint32
	maxHeaderListSize    uint32

	// hasX tracks whether the peer actually sent the parameter, so a
	// zero-value default is distinguishable from an explicit 0.
	hasInitialWindowSize bool
}

// AcquireSettings returns a Settings populated with protocol defaults.
func AcquireSettings() *Settings {
	return settingsPool.Get().(*Settings)
}

// ReleaseSettings resets and returns st to the pool.
func ReleaseSettings(st *Settings) {
	st.Reset()
	settingsPool.Put(st)
}

func (st *Settings) Type() FrameType {
	return FrameSettings
}

func (st *Settings) Reset() {
	st.ack = false
	st.headerTableSize = defaultHeaderTableSize
	st.enablePush = false
	st.maxConcurrentStreams = defaultConcurrentStreams
	st.initialWindowSize = defaultWindowSize
	st.maxFrameSize = defaultMaxFrameSize
	st.maxHeaderListSize = 0
	st.hasInitialWindowSize = false
}

func (st *Settings) CopyTo(other *Settings) {
	*other = *st
}

// IsAck reports whether this is a SETTINGS acknowledgement.
func (st *Settings) IsAck() bool {
	return st.ack
}

// SetAck marks this Settings as an acknowledgement (empty payload).
func (st *Settings) SetAck(ack bool) {
	st.ack = ack
}

func (st *Settings) HeaderTableSize() uint32      { return st.headerTableSize }
func (st *Settings) EnablePush() bool             { return st.enablePush }
func (st *Settings) MaxConcurrentStreams() uint32 { return st.maxConcurrentStreams }
func (st *Settings) MaxWindowSize() uint32        { return st.initialWindowSize }
func (st *Settings) MaxFrameSize() uint32         { return st.maxFrameSize }
func (st *Settings) MaxHeaderListSize() uint32    { return st.maxHeaderListSize }

// HasMaxWindowSize reports whether the peer explicitly sent
// SETTINGS_INITIAL_WINDOW_SIZE (as opposed to this Settings simply
// holding its zero-value default).
func (st *Settings) HasMaxWindowSize() bool { return st.hasInitialWindowSize }

func (st *Settings) SetHeaderTableSize(v uint32)      { st.headerTableSize = v }
func (st *Settings) SetEnablePush(v bool)             { st.enablePush = v }
func (st *Settings) SetMaxConcurrentStreams(v uint32) { st.maxConcurrentStreams = v }
func (st *Settings) SetMaxWindowSize(v uint32) {
	st.initialWindowSize = v
	st.hasInitialWindowSize = true
}
func (st *Settings) SetMaxFrameSize(v uint32)      { st.maxFrameSize = v }
func (st *Settings) SetMaxHeaderListSize(v uint32) { st.maxHeaderListSize = v }

// Deserialize parses the 6-byte (id, value) entries of a SETTINGS frame.
func (st *Settings) Deserialize(fr *FrameHeader) error {
	if fr.Flags().Has(FlagAck) {
		st.ack = true
		return nil
	}

	payload := fr.payload
	if len(payload)%6 != 0 {
		return ErrMissingBytes
	}

	for len(payload) > 0 {
		id := uint16(payload[0])<<8 | uint16(payload[1])
		val := http2utils.BytesToUint32(payload[2:6])
		payload = payload[6:]

		switch id {
		case HeaderTableSize:
			st.headerTableSize = val
		case EnablePush:
			st.enablePush = val == 1
		case MaxConcurrentStreams:
			st.maxConcurrentStreams = val
		case InitialWindowSize:
			st.initialWindowSize = val
			st.hasInitialWindowSize = true
		case MaxFrameSize:
			st.maxFrameSize = val
		case MaxHeaderListSize:
			st.maxHeaderListSize = val
		}
	}

	return nil
}

// Serialize encodes st onto fr. An ack Settings carries no payload.
func (st *Settings) Serialize(fr *FrameHeader) {
	if st.ack {
		fr.SetFlags(fr.Flags().Add(FlagAck))
		fr.payload = fr.payload[:0]
		return
	}

	payload := fr.payload[:0]
	payload = appendSetting(payload, HeaderTableSize, st.headerTableSize)
	if st.enablePush {
		payload = appendSetting(payload, EnablePush, 1)
	} else {
		payload = appendSetting(payload, EnablePush, 0)
	}
	payload = appendSetting(payload, MaxConcurrentStreams, st.maxConcurrentStreams)
	if st.hasInitialWindowSize {
		payload = appendSetting(payload, InitialWindowSize, st.initialWindowSize)
	}
	payload = appendSetting(payload, MaxFrameSize, st.maxFrameSize)
	if st.maxHeaderListSize > 0 {
		payload = appendSetting(payload, MaxHeaderListSize, st.maxHeaderListSize)
	}

	fr.payload = payload
}

func appendSetting(dst []byte, id uint16, val uint32) []byte {
	dst = append(dst, byte(id>>8), byte(id))
	return http2utils.AppendUint32Bytes(dst, val)
}
