package socket_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sockwrap/sockwrap-go/pkg/socket"
)

const waitTimeout = 5 * time.Second

type update struct {
	state string
	err   *socket.ClassifiedError
}

// watcher subscribes to a connection and records every update.
type watcher struct {
	mu      sync.Mutex
	updates []update
	ch      chan update
}

func watch(c *socket.Connection) *watcher {
	w := &watcher{ch: make(chan update, 64)}
	c.SubscribeToStateUpdates(func(_ *socket.Connection, state string, err *socket.ClassifiedError) {
		u := update{state, err}
		w.mu.Lock()
		w.updates = append(w.updates, u)
		w.mu.Unlock()
		w.ch <- u
	})
	return w
}

func (w *watcher) waitFor(t *testing.T, state string) update {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case u := <-w.ch:
			if u.state == state {
				return u
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %q", state)
			return update{}
		}
	}
}

func (w *watcher) states() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.updates))
	for i, u := range w.updates {
		out[i] = u.state
	}
	return out
}

// peer runs a plain loopback TCP server.
func peer(t *testing.T, handle func(net.Conn)) uint16 {
	t.Helper()

	nl, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { nl.Close() })

	go func() {
		for {
			c, err := nl.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				handle(c)
			}()
		}
	}()

	return uint16(nl.Addr().(*net.TCPAddr).Port)
}

func unusedPort(t *testing.T) uint16 {
	t.Helper()
	nl, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(nl.Addr().(*net.TCPAddr).Port)
	nl.Close()
	return port
}

func connect(t *testing.T, port uint16, cfg socket.ClientConfig) (*socket.Connection, *watcher) {
	t.Helper()

	cfg.Host = "127.0.0.1"
	cfg.Port = port
	c := socket.NewClientConnection(cfg)
	w := watch(c)
	c.Start()
	w.waitFor(t, "ready")
	t.Cleanup(c.ForceCancel)
	return c, w
}

func generateTestCert(t *testing.T) tls.Certificate {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)

	cert, err := tls.X509KeyPair(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	)
	require.NoError(t, err)
	return cert
}
