package transport

import (
	"crypto/tls"
	"fmt"
	"net"
)

// NewInsecureClientTLSConfig returns a client TLS configuration that
// completes the handshake without validating the peer certificate chain
// or host name. Traffic is encrypted but the peer is not authenticated.
func NewInsecureClientTLSConfig(host string) *tls.Config {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true,
	}

	// SNI must not be an IP literal.
	if net.ParseIP(host) == nil {
		cfg.ServerName = host
	}
	return cfg
}

// NewServerTLSConfig returns a TLS configuration for accepted connections
// presenting the given certificate. Client certificates are not requested.
func NewServerTLSConfig(cert tls.Certificate) (*tls.Config, error) {
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("server certificate is required")
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}, nil
}
