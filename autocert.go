package http2

import (
	"context"
	"crypto/tls"
	"encoding/pem"
	"fmt"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

// ListenAndServeAutocertTLS obtains a certificate for hostName from
// Let's Encrypt via ACME HTTP-01, then serves s as HTTP/2 on addr
// using that certificate. It is meant for a single long-lived process
// that owns port 80 long enough to answer the challenge; renewal is
// left to the caller, the same way the teacher's own autocert example
// fetches one certificate and hands it to ServeTLSEmbed rather than
// running the autocert GetCertificate hook inline.
func ListenAndServeAutocertTLS(s *fasthttp.Server, cnf ServerConfig, addr, hostName string, cacheDir string) error {
	cert, key, err := fetchAutocertPair(hostName, cacheDir)
	if err != nil {
		return fmt.Errorf("http2: autocert: %w", err)
	}

	ConfigureServer(s, cnf)

	return s.ListenAndServeTLSEmbed(addr, cert, key)
}

// fetchAutocertPair runs the ACME HTTP-01 challenge for hostName and
// returns the resulting certificate and key as PEM blocks.
func fetchAutocertPair(hostName, cacheDir string) (cert, key []byte, err error) {
	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(hostName),
		Cache:      autocert.DirCache(cacheDir),
	}

	challengeSrv := &http.Server{
		Addr:      ":80",
		Handler:   m.HTTPHandler(nil),
		TLSConfig: &tls.Config{NextProtos: []string{acme.ALPNProto}},
	}
	go challengeSrv.ListenAndServe()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		challengeSrv.Shutdown(ctx)
	}()

	// m.Cache is only populated once the manager has actually issued
	// the certificate, which it does lazily on first GetCertificate
	// call; force that by asking for one directly.
	if _, err = m.GetCertificate(&tls.ClientHelloInfo{ServerName: hostName}); err != nil {
		return nil, nil, err
	}

	data, err := m.Cache.Get(context.Background(), hostName)
	if err != nil {
		return nil, nil, err
	}

	keyBlock, rest := pem.Decode(data)
	certBlock, _ := pem.Decode(rest)

	return pem.EncodeToMemory(certBlock), pem.EncodeToMemory(keyBlock), nil
}
