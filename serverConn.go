package http2

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgrr/http2/h2core"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

type connState int32

const (
	connStateOpen connState = iota
	connStateClosed
)

// serverConn is the role layer around one accepted HTTP/2 connection.
// It owns the wire (frame codec, HPACK, goroutines) and the fasthttp
// request/response plumbing; every protocol decision (flow control,
// stream lifecycle, scheduling) is delegated to h2core, which it drives
// synchronously from a single goroutine per the core's single-task
// ownership rule.
type serverConn struct {
	c net.Conn
	h fasthttp.RequestHandler

	br *bufio.Reader
	bw *bufio.Writer

	enc *HPack
	dec *HPack

	core *h2core.Core
	disp *h2core.Dispatcher
	sch  *h2core.Scheduler

	apps appStreamTable

	// lastID is the highest stream id the client has opened so far,
	// used to enforce RFC 7540 §5.1.1's monotonic stream-id rule.
	lastID uint32

	writer chan *FrameHeader
	reader chan *FrameHeader

	state connState
	// closeRef stores the last stream id that was valid before sending
	// a GOAWAY, so the connection can drain in-flight streams before
	// actually closing.
	closeRef uint32

	maxRequestTime time.Duration
	pingInterval   time.Duration
	maxIdleTime    time.Duration

	st      Settings
	clientS Settings

	pingTimer       *time.Timer
	maxRequestTimer *time.Timer
	maxIdleTimer    *time.Timer

	closer chan struct{}

	debug  bool
	logger fasthttp.Logger
}

// DefaultPingInterval is used when ConnOpts/ServerConfig leave
// PingInterval unset.
const DefaultPingInterval = 20 * time.Second

func newServerConn(c net.Conn, h fasthttp.RequestHandler, cnf ServerConfig) *serverConn {
	sc := &serverConn{
		c:              c,
		h:              h,
		br:             bufio.NewReaderSize(c, 4096),
		bw:             bufio.NewWriterSize(c, maxFrameSize),
		enc:            AcquireHPack(),
		dec:            AcquireHPack(),
		maxRequestTime: cnf.MaxRequestTime,
		pingInterval:   cnf.PingInterval,
		maxIdleTime:    cnf.MaxIdleTime,
		debug:          cnf.Debug,
		logger:         cnf.logger(),
		writer:         make(chan *FrameHeader, 128),
		reader:         make(chan *FrameHeader, 128),
	}

	sc.st = *AcquireSettings()
	sc.st.SetMaxConcurrentStreams(cnf.maxConcurrentStreams())
	sc.clientS = *AcquireSettings()

	sc.core = h2core.NewCore(SchemeHTTP(cnf.TLSEnabled), hpackCodec{sc.enc}, hpackCodec{sc.dec}, 2)
	sc.core.LocalSettings.MaxConcurrentStreams = cnf.maxConcurrentStreams()
	sc.disp = h2core.NewDispatcher(sc.core, sc)
	sc.sch = h2core.NewScheduler(sc.core)

	return sc
}

// SchemeHTTP picks the h2core.Scheme matching whether TLS terminated
// this connection.
func SchemeHTTP(tls bool) h2core.Scheme {
	if tls {
		return h2core.SchemeHTTPS
	}
	return h2core.SchemeHTTP
}

func (sc *serverConn) closeIdleConn() {
	sc.writeGoAway(0, NoError, "connection has been idle for a long time")
	if sc.debug {
		sc.logger.Printf("Connection is idle. Closing\n")
	}
	close(sc.closer)
}

func (sc *serverConn) Handshake() error {
	return Handshake(false, sc.bw, &sc.st, int32(defaultInWindow))
}

func (sc *serverConn) Serve() error {
	sc.closer = make(chan struct{}, 1)

	if sc.maxIdleTime > 0 {
		sc.maxIdleTimer = time.AfterFunc(sc.maxIdleTime, sc.closeIdleConn)
	}

	defer func() {
		if err := recover(); err != nil {
			sc.logger.Printf("Serve panicked: %s:\n%s\n", err, debug.Stack())
		}
	}()

	go func() {
		defer func() { _ = sc.c.Close() }()
		sc.writeLoop()
	}()

	var err error
	if err = sc.c.SetWriteDeadline(time.Time{}); err == nil {
		err = sc.c.SetReadDeadline(time.Time{})
	}
	if err != nil {
		return err
	}

	err = sc.readLoop()
	if errors.Is(err, io.EOF) {
		err = nil
	}

	sc.close()

	return err
}

func (sc *serverConn) close() {
	if sc.pingTimer != nil {
		sc.pingTimer.Stop()
	}
	if sc.maxIdleTimer != nil {
		sc.maxIdleTimer.Stop()
	}
	if sc.maxRequestTimer != nil {
		sc.maxRequestTimer.Stop()
	}
	close(sc.writer)
}

// scheduleRequestTimeout (re)arms the request-timeout sweep for the
// oldest in-flight stream; called whenever a stream is opened or reaped,
// since either can change which stream is oldest.
func (sc *serverConn) scheduleRequestTimeout() {
	if sc.maxRequestTime <= 0 {
		return
	}

	oldest := sc.apps.Oldest()
	if oldest == nil {
		if sc.maxRequestTimer != nil {
			sc.maxRequestTimer.Stop()
		}
		return
	}

	d := time.Until(oldest.startedAt.Add(sc.maxRequestTime))
	if d < 0 {
		d = 0
	}

	if sc.maxRequestTimer == nil {
		sc.maxRequestTimer = time.AfterFunc(d, sc.reapStaleStreams)
	} else {
		sc.maxRequestTimer.Reset(d)
	}
}

// reapStaleStreams cancels every stream that has been open longer than
// maxRequestTime, oldest first, matching the teacher's request-timeout
// behaviour (a slow or stuck handler shouldn't hold a stream open
// forever).
func (sc *serverConn) reapStaleStreams() {
	if sc.maxRequestTime <= 0 {
		return
	}

	deadline := time.Now().Add(-sc.maxRequestTime)

	for {
		app := sc.apps.Oldest()
		if app == nil || app.startedAt.After(deadline) {
			break
		}

		sc.writeReset(app.id, CancelError)
		sc.disp.DispatchRstStream(app.id, h2core.ErrorCode(CancelError))
	}

	sc.scheduleRequestTimeout()
}

func (sc *serverConn) writePing() {
	fr := AcquireFrameHeader()
	ping := AcquireFrame(FramePing).(*Ping)
	ping.SetCurrentTime()
	fr.SetBody(ping)
	sc.writer <- fr
}

func (sc *serverConn) checkFrameWithStream(fr *FrameHeader) error {
	if fr.Stream()&1 == 0 {
		return NewError(ProtocolError, "invalid stream id")
	}
	if fr.Type() == FramePing {
		return NewError(ProtocolError, "ping is carrying a stream id")
	}
	if fr.Type() == FramePushPromise {
		return NewError(ProtocolError, "clients can't send push_promise frames")
	}
	return nil
}

// readLoop reads frames off the wire and, for stream-id 0 frames,
// dispatches them inline; frames carrying a stream id are handled by
// handleStreamFrame, kept separate only for readability. Everything
// runs on this single goroutine, matching the core's single-task
// ownership rule and the teacher's "HPACK table is accessed
// synchronously" invariant.
func (sc *serverConn) readLoop() (err error) {
	defer func() {
		if p := recover(); p != nil {
			sc.logger.Printf("readLoop panicked: %s\n%s\n", p, debug.Stack())
		}
	}()

	var fr *FrameHeader

	for err == nil {
		fr, err = ReadFrameFromWithSize(sc.br, sc.clientS.MaxFrameSize())
		if err != nil {
			if errors.Is(err, ErrUnknownFrameType) {
				sc.writeGoAway(0, ProtocolError, "unknown frame type")
				err = nil
				continue
			}
			break
		}

		if sc.maxIdleTimer != nil && sc.maxIdleTimer.Stop() {
			sc.maxIdleTimer.Reset(sc.maxIdleTime)
		}

		if fr.Stream() != 0 {
			if verr := sc.checkFrameWithStream(fr); verr != nil {
				sc.writeGoAway(fr.Stream(), ProtocolError, verr.Error())
			} else {
				sc.handleStreamFrame(fr)
			}
			ReleaseFrameHeader(fr)
			continue
		}

		switch fr.Type() {
		case FrameSettings:
			st := fr.Body().(*Settings)
			if !st.IsAck() {
				sc.handleSettings(st)
			}
		case FrameWindowUpdate:
			win := uint32(fr.Body().(*WindowUpdate).Increment())
			if win == 0 {
				sc.writeGoAway(0, ProtocolError, "window increment of 0")
			} else if derr := sc.disp.DispatchWindowUpdateConn(win); derr != nil {
				sc.writeGoAway(0, FlowControlError, derr.Error())
			} else {
				sc.drain(sc.disp.FlushNeeded)
				sc.disp.FlushNeeded = nil
			}
		case FramePing:
			ping := fr.Body().(*Ping)
			sc.disp.DispatchPing(ping.data, ping.IsAck())
			sc.flushControl()
		case FrameGoAway:
			ga := fr.Body().(*GoAway)
			sc.disp.DispatchGoAway(ga.Stream())
			if ga.Code() == NoError {
				err = io.EOF
			} else {
				err = NewError(ga.Code(), string(ga.Data()))
			}
		default:
			sc.writeGoAway(0, ProtocolError, "invalid frame")
		}

		ReleaseFrameHeader(fr)
	}

	return
}

// handleStreamFrame enforces the role layer's own admission policy
// (stream-id ordering, max concurrent streams, closed-stream replay)
// before handing the frame to the dispatcher.
func (sc *serverConn) handleStreamFrame(fr *FrameHeader) {
	id := fr.Stream()
	isClosing := atomic.LoadInt32((*int32)(&sc.state)) == int32(connStateClosed)

	known := sc.core.GetStream(id) != nil
	isNew := !known && id > sc.lastID

	if !known && !isNew {
		// id <= lastID and absent from the table: this stream already
		// ran its course and was removed.
		switch fr.Type() {
		case FrameWindowUpdate, FrameResetStream, FramePriority:
			return
		default:
			sc.writeGoAway(id, StreamClosedError, "frame on closed stream")
			return
		}
	}

	if isNew {
		if fr.Type() == FrameResetStream {
			sc.writeGoAway(id, ProtocolError, "RST_STREAM on idle stream")
			return
		}
		if fr.Type() != FrameHeaders && fr.Type() != FramePriority {
			sc.writeGoAway(id, ProtocolError, "wrong frame on idle stream")
			return
		}
		if fr.Type() == FrameHeaders {
			if isClosing || sc.core.Streams.Len() >= int(sc.st.MaxConcurrentStreams()) {
				sc.writeReset(id, RefusedStreamError)
				return
			}
			sc.lastID = id
		}
	}

	switch fr.Type() {
	case FrameHeaders, FrameContinuation:
		sc.handleHeaderFrame(fr)
	case FrameData:
		data := fr.Body().(*Data)
		if derr := sc.disp.DispatchData(id, data.Data(), data.EndStream()); derr != nil {
			sc.writeGoAway(id, FlowControlError, derr.Error())
			return
		}
	case FrameResetStream:
		sc.disp.DispatchRstStream(id, fr.Body().(*RstStream).Code())
	case FrameWindowUpdate:
		win := uint32(fr.Body().(*WindowUpdate).Increment())
		if win == 0 {
			sc.writeGoAway(id, ProtocolError, "window increment of 0")
			return
		}
		sc.disp.DispatchWindowUpdateStream(id, win)
	case FramePriority:
		// priority weighting is not implemented; frames are accepted
		// and ignored, per RFC 7540's extensibility rule.
	default:
		sc.writeGoAway(id, ProtocolError, "invalid frame")
	}

	sc.flushControl()
	sc.maybeCloseConn(isClosing)
}

// handleHeaderFrame accumulates HEADERS/CONTINUATION raw bytes for a
// stream until END_HEADERS, decodes the complete block once, and hands
// the field list to the dispatcher.
func (sc *serverConn) handleHeaderFrame(fr *FrameHeader) {
	id := fr.Stream()
	app := sc.apps.Get(id)
	if app == nil {
		app = newAppStream(id, acquireCtx(sc.c, sc.logger))
		sc.apps.Insert(app)
		sc.scheduleRequestTimeout()
	}

	app.headerBuf = append(app.headerBuf, fr.Body().(FrameWithHeaders).Headers()...)

	if !fr.Flags().Has(FlagEndHeaders) {
		return
	}

	fields, err := hpackCodec{sc.dec}.Decode(app.headerBuf)
	app.headerBuf = app.headerBuf[:0]
	if err != nil {
		sc.writeGoAway(id, CompressionError, err.Error())
		return
	}

	sc.disp.DispatchHeaders(id, fr.Flags().Has(FlagEndStream), fields)
}

func (sc *serverConn) maybeCloseConn(wasClosing bool) {
	if !wasClosing {
		return
	}
	ref := atomic.LoadUint32(&sc.closeRef)
	if ref == 0 {
		return
	}
	if sc.core.Streams.Len() == 0 {
		close(sc.closer)
	}
}

// flushControl drains and serializes the dispatcher's pending control
// frames and flush requests, most recent dispatch call only.
func (sc *serverConn) flushControl() {
	pending := sc.disp.Pending
	sc.disp.Pending = nil
	for _, cf := range pending {
		sc.writeControl(cf)
	}

	flushes := sc.disp.FlushNeeded
	sc.disp.FlushNeeded = nil
	for _, f := range flushes {
		sc.drain([]h2core.EgressCommand{f})
	}
}

func (sc *serverConn) writeControl(cf h2core.ControlFrame) {
	switch cf.Kind {
	case h2core.ControlSettingsAck:
		fr := AcquireFrameHeader()
		st := AcquireFrame(FrameSettings).(*Settings)
		st.SetAck(true)
		fr.SetBody(st)
		sc.writer <- fr
	case h2core.ControlPingAck:
		fr := AcquireFrameHeader()
		ping := AcquireFrame(FramePing).(*Ping)
		ping.SetData(cf.Opaque[:])
		ping.SetAck(true)
		fr.SetBody(ping)
		sc.writer <- fr
	case h2core.ControlWindowUpdateConn:
		sc.updateWindow(0, cf.Increment)
	case h2core.ControlWindowUpdateStream:
		sc.updateWindow(cf.StreamID, cf.Increment)
	case h2core.ControlRstStream:
		sc.writeReset(cf.StreamID, rootErrorCode(cf.ErrCode))
	}
}

func (sc *serverConn) updateWindow(streamID uint32, increment uint32) {
	fr := AcquireFrameHeader()
	fr.SetStream(streamID)
	wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
	wu.SetIncrement(int(increment))
	fr.SetBody(wu)
	sc.writer <- fr
}

// drain serializes whatever wire frames a flush command produces.
func (sc *serverConn) drain(cmds []h2core.EgressCommand) {
	for _, cmd := range cmds {
		var (
			frames []h2core.WireFrame
			err    error
		)
		switch {
		case cmd.FlushAll:
			frames, err = sc.sch.DrainConnection()
		case cmd.FlushStreamID != 0:
			frames, err = sc.sch.DrainStream(cmd.FlushStreamID)
		default:
			continue
		}
		if err != nil {
			sc.handleSchedulerError(err)
			return
		}
		sc.writeWireFrames(frames)
	}
}

func (sc *serverConn) handleSchedulerError(err error) {
	he, ok := err.(*h2core.Error)
	if !ok {
		sc.writeGoAway(0, InternalError, err.Error())
		return
	}
	switch he.Kind {
	case h2core.KindHeaderTooLarge:
		sc.writeReset(he.StreamID, RefusedStreamError)
	default:
		sc.writeGoAway(he.StreamID, InternalError, he.Msg)
	}
}

func (sc *serverConn) writeWireFrames(frames []h2core.WireFrame) {
	for _, wf := range frames {
		fr := AcquireFrameHeader()
		fr.SetStream(wf.StreamID)

		switch wf.Kind {
		case h2core.CmdHeaders:
			h := AcquireFrame(FrameHeaders).(*Headers)
			h.SetEndHeaders(true)
			h.SetEndStream(wf.EndStream)
			h.SetHeaders(wf.EncodedHeaders)
			fr.SetBody(h)
		case h2core.CmdData:
			d := AcquireFrame(FrameData).(*Data)
			d.SetEndStream(wf.EndStream)
			d.SetData(wf.Data)
			fr.SetBody(d)
		case h2core.CmdRst:
			r := AcquireFrame(FrameResetStream).(*RstStream)
			r.SetCode(rootErrorCode(wf.ErrCode))
			fr.SetBody(r)
		}

		sc.writer <- fr

		if wf.Kind == h2core.CmdData && wf.EndStream || wf.Kind == h2core.CmdRst {
			if app := sc.apps.Del(wf.StreamID); app != nil {
				releaseCtx(app.ctx)
			}
		}
	}
}

func (sc *serverConn) writeReset(strm uint32, code ErrorCode) {
	r := AcquireFrame(FrameResetStream).(*RstStream)
	r.SetCode(code)
	fr := AcquireFrameHeader()
	fr.SetStream(strm)
	fr.SetBody(r)
	sc.writer <- fr

	if sc.debug {
		sc.logger.Printf("%s: Reset(stream=%d, code=%s)\n", sc.c.RemoteAddr(), strm, code)
	}
}

func (sc *serverConn) writeGoAway(strm uint32, code ErrorCode, message string) {
	ga := AcquireFrame(FrameGoAway).(*GoAway)
	ga.SetStream(strm)
	ga.SetCode(code)
	ga.SetData([]byte(message))

	fr := AcquireFrameHeader()
	fr.SetBody(ga)
	sc.writer <- fr

	if strm != 0 {
		atomic.StoreUint32(&sc.closeRef, sc.lastID)
	}
	atomic.StoreInt32((*int32)(&sc.state), int32(connStateClosed))

	if sc.debug {
		sc.logger.Printf("%s: GoAway(stream=%d, code=%s): %s\n", sc.c.RemoteAddr(), strm, code, message)
	}
}

func (sc *serverConn) writeLoop() {
	if sc.pingInterval > 0 {
		sc.pingTimer = time.AfterFunc(sc.pingInterval, sc.sendPingAndSchedule)
	}

	buffered := 0
	for fr := range sc.writer {
		_, err := fr.WriteTo(sc.bw)
		if err == nil && (len(sc.writer) == 0 || buffered > 10) {
			err = sc.bw.Flush()
			buffered = 0
		} else if err == nil {
			buffered++
		}

		ReleaseFrameHeader(fr)

		if err != nil {
			sc.logger.Printf("ERROR: writeLoop: %s\n", err)
			return
		}
	}
}

func (sc *serverConn) sendPingAndSchedule() {
	sc.writePing()
	sc.pingTimer.Reset(sc.pingInterval)
}

func (sc *serverConn) handleSettings(st *Settings) {
	st.CopyTo(&sc.clientS)

	entry := h2core.SettingsEntry{
		InitialWindowSizeSet: st.HasMaxWindowSize(),
		InitialWindowSize:    st.MaxWindowSize(),
		HasMaxConcurrent:     true,
		MaxConcurrentStreams: st.MaxConcurrentStreams(),
	}
	sc.disp.DispatchSettings(entry)

	if st.HeaderTableSize() <= defaultHeaderTableSize {
		sc.enc.SetMaxTableSize(int(st.HeaderTableSize()))
	}

	sc.flushControl()
}

// Hooks implementation (h2core.Hooks). These are called synchronously
// from inside Dispatcher methods, themselves only ever invoked from
// readLoop, so no locking is needed around apps/ctx access.

func (sc *serverConn) ProcessHeaders(streamID uint32, endStream bool, headers []h2core.HeaderField) {
	app := sc.apps.Get(streamID)
	if app == nil {
		app = newAppStream(streamID, acquireCtx(sc.c, sc.logger))
		sc.apps.Insert(app)
	}

	req := &app.ctx.Request
	for _, hf := range headers {
		k, v := hf.Name, []byte(hf.Value)
		if len(k) > 0 && k[0] == ':' {
			switch k[1:] {
			case "method":
				req.Header.SetMethodBytes(v)
			case "path":
				req.Header.SetRequestURIBytes(v)
			case "scheme":
				app.scheme = append(app.scheme[:0], v...)
			case "authority":
				req.Header.SetHostBytes(v)
			default:
				sc.writeGoAway(streamID, ProtocolError, "unknown pseudo-header")
			}
			continue
		}

		switch k {
		case "user-agent":
			req.Header.SetUserAgentBytes(v)
		case "content-type":
			req.Header.SetContentTypeBytes(v)
		case "content-length":
			n, _ := strconv.Atoi(hf.Value)
			req.Header.SetContentLength(n)
		default:
			req.Header.AddBytesKV([]byte(k), v)
		}
	}

	if endStream {
		req.URI().SetSchemeBytes(app.scheme)
	}
}

func (sc *serverConn) NewDataChunk(streamID uint32, data []byte, endStream bool) {
	app := sc.apps.Get(streamID)
	if app == nil {
		return
	}
	app.ctx.Request.AppendBody(data)
}

func (sc *serverConn) Rst(streamID uint32, code h2core.ErrorCode) {
	if app := sc.apps.Del(streamID); app != nil {
		releaseCtx(app.ctx)
	}
}

// ClosedRemote fires once the full request has been received (either a
// HEADERS with END_STREAM, or the final DATA of a body); this is where
// the request handler runs and the response gets queued for egress.
func (sc *serverConn) ClosedRemote(streamID uint32) {
	app := sc.apps.Get(streamID)
	if app == nil {
		return
	}

	app.ctx.Request.URI().SetSchemeBytes(app.scheme)
	app.ctx.Request.Header.SetProtocolBytes(StringHTTP2)

	sc.h(app.ctx)

	s := sc.core.GetStream(streamID)
	if s == nil {
		return
	}

	res := &app.ctx.Response
	res.Header.Del("Connection")
	res.Header.Del("Transfer-Encoding")
	if !res.IsBodyStream() {
		res.Header.SetContentLength(len(res.Body()))
	}

	fields := make([]h2core.HeaderField, 0, 8)
	fields = append(fields, h2core.HeaderField{
		Name:  ":status",
		Value: strconv.Itoa(res.StatusCode()),
	})

	// A single pooled scratch buffer carries every header name through
	// its lowercasing pass, instead of one throwaway []byte per header.
	nameBuf := bytebufferpool.Get()
	defer bytebufferpool.Put(nameBuf)
	res.Header.VisitAll(func(k, v []byte) {
		nameBuf.Reset()
		nameBuf.Write(k)
		fields = append(fields, h2core.HeaderField{Name: string(ToLower(nameBuf.B)), Value: string(v)})
	})

	s.EnqueueHeaders(h2core.HeaderBlock{Fields: fields})
	if len(res.Body()) > 0 {
		s.EnqueueData(res.Body())
	}
	s.SetOutgoingEnd(h2core.ErrCodeNoError)

	sc.drain([]h2core.EgressCommand{h2core.TryFlushStream(streamID)})
}

func acquireCtx(c net.Conn, logger fasthttp.Logger) *fasthttp.RequestCtx {
	ctx := ctxPool.Get().(*fasthttp.RequestCtx)
	ctx.Request.Reset()
	ctx.Response.Reset()
	ctx.Init2(c, logger, false)
	return ctx
}

func releaseCtx(ctx *fasthttp.RequestCtx) {
	ctxPool.Put(ctx)
}

var ctxPool = sync.Pool{
	New: func() interface{} {
		return &fasthttp.RequestCtx{}
	},
}

// rootErrorCode maps an h2core.ErrorCode back to the wire ErrorCode
// type; the two are numerically identical by construction (see
// DESIGN.md), kept as distinct types only to avoid h2core depending on
// the frame codec package.
func rootErrorCode(c h2core.ErrorCode) ErrorCode {
	return ErrorCode(c)
}
