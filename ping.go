package http2

import (
	"encoding/binary"
	"time"
)

const FramePing FrameType = 0x6

var _ Frame = &Ping{}

// Ping ...
//
// https://tools.ietf.org/html/rfc7540#section-6.7
type Ping struct {
	ack  bool
	data [8]byte
}

func (ping *Ping) Type() FrameType {
	return FramePing
}

// Reset ...
func (ping *Ping) Reset() {
	ping.ack = false
}

// CopyTo ...
func (ping *Ping) CopyTo(p *Ping) {
	p.ack = ping.ack
}

// Write ...
func (ping *Ping) Write(b []byte) (n int, err error) {
	copy(ping.data[:], b)
	return
}

// SetData ...
func (ping *Ping) SetData(b []byte) {
	copy(ping.data[:], b)
}

// IsAck reports whether this Ping is an acknowledgement.
func (ping *Ping) IsAck() bool {
	return ping.ack
}

// SetAck marks this Ping as an acknowledgement.
func (ping *Ping) SetAck(ack bool) {
	ping.ack = ack
}

// SetCurrentTime stamps the ping payload with the current time, so the
// matching ACK lets the sender measure round-trip time.
func (ping *Ping) SetCurrentTime() {
	binary.BigEndian.PutUint64(ping.data[:], uint64(time.Now().UnixNano()))
}

// SentAt returns the time a ping payload set by SetCurrentTime was sent.
func (ping *Ping) SentAt() time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(ping.data[:])))
}

// Deserialize ...
func (ping *Ping) Deserialize(frh *FrameHeader) error {
	ping.ack = frh.Flags().Has(FlagAck)
	ping.SetData(frh.payload)
	return nil
}

func (ping *Ping) Data() []byte {
	return ping.data[:]
}

// Serialize ...
func (ping *Ping) Serialize(fr *FrameHeader) {
	if ping.ack {
		fr.SetFlags(fr.Flags().Add(FlagAck))
	}

	fr.setPayload(ping.data[:])
}
