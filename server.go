package http2

import (
	"errors"
	"log"
	"net"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

// Server adapts a fasthttp.Server to speak HTTP/2 on accepted
// connections, driving each one through a serverConn/h2core.Core pair.
type Server struct {
	s   *fasthttp.Server
	cnf ServerConfig
}

// ServerConfig tunes the per-connection behaviour ConfigureServer
// installs; the zero value is filled in with sane defaults by
// defaults().
type ServerConfig struct {
	// MaxConcurrentStreams caps SETTINGS_MAX_CONCURRENT_STREAMS; 0
	// means defaultConcurrentStreams.
	MaxConcurrentStreams uint32
	// MaxRequestTime bounds how long a stream may stay open waiting for
	// its handler; 0 disables the timeout.
	MaxRequestTime time.Duration
	// PingInterval is how often the connection is probed with PING; 0
	// means DefaultPingInterval.
	PingInterval time.Duration
	// MaxIdleTime closes the connection if no frame has been read for
	// this long; 0 disables the idle timeout.
	MaxIdleTime time.Duration
	// TLSEnabled tells the role layer whether this connection is
	// already TLS-terminated, for :scheme reconstruction.
	TLSEnabled bool
	// Debug logs connection-level protocol events (GOAWAY, RST_STREAM).
	Debug bool

	Logger fasthttp.Logger
}

func (cnf *ServerConfig) defaults() {
	if cnf.MaxConcurrentStreams == 0 {
		cnf.MaxConcurrentStreams = defaultConcurrentStreams
	}
	if cnf.PingInterval == 0 {
		cnf.PingInterval = DefaultPingInterval
	}
	if cnf.Logger == nil {
		cnf.Logger = log.New(os.Stdout, "[http2] ", log.LstdFlags)
	}
}

func (cnf *ServerConfig) maxConcurrentStreams() uint32 {
	return cnf.MaxConcurrentStreams
}

func (cnf *ServerConfig) logger() fasthttp.Logger {
	return cnf.Logger
}

// ConfigureServer wires s up to accept HTTP/2 over a TLS ALPN
// negotiation ("h2"); callers needing plaintext h2c should call
// ServeConn directly instead.
func ConfigureServer(s *fasthttp.Server, cnf ServerConfig) *Server {
	cnf.TLSEnabled = true
	cnf.defaults()

	h2s := &Server{s: s, cnf: cnf}
	s.NextProto(H2TLSProto, func(c net.Conn) error {
		return h2s.ServeConn(c)
	})
	return h2s
}

// ServeConn takes ownership of c, reads and validates the HTTP/2 client
// connection preface from it, and serves HTTP/2 requests on it until
// the peer disconnects or a connection error occurs.
func (s *Server) ServeConn(c net.Conn) error {
	defer func() { _ = c.Close() }()

	s.cnf.defaults()

	sc := newServerConn(c, s.s.Handler, s.cnf)

	if !ReadPrefaceFrom(sc.br) {
		return errors.New("http2: wrong connection preface")
	}

	if err := sc.Handshake(); err != nil {
		return err
	}

	return sc.Serve()
}
