package http2

import (
	"time"

	"github.com/valyala/fasthttp"
)

// appStream is the role layer's per-stream companion to a h2core.Stream:
// it carries the fasthttp request/response state that the HTTP/2 engine
// itself (package h2core) has no business knowing about. Protocol state
// (window, open/closed lattice) lives entirely in h2core; appStream only
// tracks what the application needs to answer the request.
type appStream struct {
	id uint32

	ctx *fasthttp.RequestCtx

	// scheme accumulates the :scheme pseudo-header; URI parsing is
	// deferred until headers are fully received.
	scheme []byte

	// headerBuf accumulates raw HPACK-encoded bytes across a HEADERS
	// frame and any CONTINUATION frames that follow it, until
	// END_HEADERS is seen and the whole block can be decoded at once.
	headerBuf []byte

	startedAt time.Time
}

func newAppStream(id uint32, ctx *fasthttp.RequestCtx) *appStream {
	return &appStream{
		id:        id,
		ctx:       ctx,
		startedAt: time.Now(),
	}
}
