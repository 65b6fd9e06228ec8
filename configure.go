package http2

import (
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/valyala/fasthttp"
)

var (
	// ErrServerSupport indicates whether the server supports HTTP/2 or not.
	ErrServerSupport = errors.New("server doesn't support HTTP/2")
)

type ClientOpts struct {
	// OnRTT is called after every request made through the configured
	// client, with the time from submitting the request until its outcome
	// arrives. PING round trips are not reported to it.
	OnRTT func(time.Duration)
}

func configureDialer(d *Dialer) {
	if d.TLSConfig == nil {
		d.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		}
	}

	tlsConfig := d.TLSConfig

	emptyServerName := len(tlsConfig.ServerName) == 0
	if emptyServerName {
		host, _, err := net.SplitHostPort(d.Addr)
		if err != nil {
			host = d.Addr
		}

		tlsConfig.ServerName = host
	}

	tlsConfig.NextProtos = append(tlsConfig.NextProtos, "h2")
}

// ConfigureClient configures the fasthttp.HostClient to run over HTTP/2,
// dialing one Conn per call and installing a transport on c.Transport
// whose RoundTrip sends every request over that Conn.
func ConfigureClient(c *fasthttp.HostClient, opts ClientOpts) error {
	emptyServerName := c.TLSConfig != nil && len(c.TLSConfig.ServerName) == 0

	d := &Dialer{
		Addr:      c.Addr,
		TLSConfig: c.TLSConfig,
	}

	nc, err := d.Dial(ConnOpts{})
	if err != nil {
		if err == ErrServerSupport && c.TLSConfig != nil { // remove added config settings
			for i := range c.TLSConfig.NextProtos {
				if c.TLSConfig.NextProtos[i] == "h2" {
					c.TLSConfig.NextProtos = append(c.TLSConfig.NextProtos[:i], c.TLSConfig.NextProtos[i+1:]...)
				}
			}

			if emptyServerName {
				c.TLSConfig.ServerName = ""
			}
		}

		return err
	}

	c.IsTLS = true
	c.TLSConfig = d.TLSConfig

	t := &clientTransport{conn: nc, onRTT: opts.OnRTT}
	c.Transport = t.RoundTrip

	return nil
}

// clientTransport adapts a single Conn to fasthttp.HostClient's transport
// hook, submitting every request on the Conn's queue and blocking for its
// matching response.
type clientTransport struct {
	conn  *Conn
	onRTT func(time.Duration)
}

func (t *clientTransport) RoundTrip(req *fasthttp.Request, res *fasthttp.Response) error {
	r := &Ctx{Request: req, Response: res, Err: make(chan error, 1)}

	start := time.Now()
	t.conn.Write(r)

	err := <-r.Err
	if t.onRTT != nil {
		t.onRTT(time.Since(start))
	}

	return err
}

var ErrNotAvailableStreams = errors.New("ran out of available streams")
