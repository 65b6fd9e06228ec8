package http2

import (
	"bufio"
	"bytes"
)

// maxFrameSize is the write-buffer sizing hint shared by client and
// server connections; it matches the default SETTINGS_MAX_FRAME_SIZE.
const maxFrameSize = defaultMaxFrameSize

// defaultInWindow equals RFC 7540 §6.5.2's default
// SETTINGS_INITIAL_WINDOW_SIZE; the server handshake sends it as the
// increment of its connection-level WINDOW_UPDATE, on top of the
// window every connection starts with.
const defaultInWindow int32 = 65535

// http2Preface is the 24-byte magic both endpoints exchange before any
// framing begins.
//
// https://tools.ietf.org/html/rfc7540#section-3.5
var http2Preface = []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")

// ReadPrefaceFrom consumes and validates the client connection preface
// off br, returning false if it doesn't match. br is later reused for
// frame reads, so the preface must be read through it rather than a
// throwaway reader that could strand buffered bytes.
func ReadPrefaceFrom(br *bufio.Reader) bool {
	b, err := br.Peek(len(http2Preface))
	if err != nil || !bytes.Equal(b, http2Preface) {
		return false
	}
	br.Discard(len(http2Preface))
	return true
}

// WritePreface writes the client connection preface to bw.
func WritePreface(bw *bufio.Writer) error {
	_, err := bw.Write(http2Preface)
	return err
}
