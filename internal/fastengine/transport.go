package fastengine

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"

	utls "github.com/refraction-networking/utls"

	"github.com/titan-flow/fetchengine/internal/identity"
)

// Chrome 120 HTTP/2 SETTINGS values, captured off a real Windows Chrome 120
// client. A mismatch here is as fingerprintable as a wrong TLS ClientHello.
// newTransport applies the header-table and max-header-list sizes; the two
// window-size values are declared here but not applied to the transport.
const (
	chrome120H2HeaderTableSize   uint32 = 65536
	chrome120H2InitialWindowSize int32  = 6291456
	chrome120H2ConnWindowSize    int32  = 15663105
	chrome120H2MaxHeaderListSize uint32 = 262144
)

// newTransport builds an http.RoundTripper presenting profile's TLS
// ClientHello over an optional SOCKS5 proxy. A nil proxyURL dials directly.
func newTransport(profile identity.Profile, proxyURL *url.URL, timeout time.Duration) (*http2.Transport, error) {
	dialer, err := baseDialer(proxyURL)
	if err != nil {
		return nil, err
	}

	dialTLS := func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
		rawConn, err := dialer.Dial(network, addr)
		if err != nil {
			return nil, err
		}
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		uConn := utls.UClient(rawConn, &utls.Config{ServerName: host}, profile.TLSHelloID)
		if err := uConn.Handshake(); err != nil {
			rawConn.Close()
			return nil, fmt.Errorf("utls handshake: %w", err)
		}
		return uConn, nil
	}

	return &http2.Transport{
		DialTLSContext:            dialTLS,
		MaxDecoderHeaderTableSize: chrome120H2HeaderTableSize,
		MaxEncoderHeaderTableSize: chrome120H2HeaderTableSize,
		MaxHeaderListSize:         chrome120H2MaxHeaderListSize,
		DisableCompression:        false,
		IdleConnTimeout:           90 * time.Second,
	}, nil
}

// baseDialer returns a direct net.Dialer when proxyURL is nil, or a SOCKS5
// proxy.Dialer otherwise. Proxy pools in this engine are assumed to be
// SOCKS5 endpoints, the common shape for datacenter/residential providers.
func baseDialer(proxyURL *url.URL) (proxy.Dialer, error) {
	direct := &net.Dialer{Timeout: 10 * time.Second}
	if proxyURL == nil {
		return direct, nil
	}
	return proxy.FromURL(proxyURL, direct)
}
