package server

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/zeusync/zengine/internal/core/observability/log"
)

// ALPN is the application protocol QUIC inspector clients must offer.
const ALPN = "zengine-inspector"

// Close codes sent to QUIC clients.
const (
	codeNormal       quic.ApplicationErrorCode = 0
	codeProtocol     quic.ApplicationErrorCode = 1
	codeUnauthorized quic.ApplicationErrorCode = 2
)

// SelfSignedTLS returns a server TLS config with a fresh certificate for
// localhost, suitable for development inspectors.
func SelfSignedTLS() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{Organization: []string{"zengine"}},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// loadTLS reads the configured key pair, falling back to a self-signed
// certificate when none is configured.
func loadTLS(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" && keyFile == "" {
		return SelfSignedTLS()
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load inspector certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

type quicClient struct {
	conn   *quic.Conn
	stream *quic.Stream
	send   chan []byte
	once   sync.Once
}

func (c *quicClient) close() {
	c.once.Do(func() { close(c.send) })
}

// quicFeed streams the same messages as the websocket hub over QUIC. A
// client opens one bidirectional stream, writes its token followed by a
// newline and then reads newline-delimited JSON.
type quicFeed struct {
	ln     *quic.Listener
	auth   TokenAuth
	hello  func() []byte
	logger log.Log

	mu      sync.Mutex
	clients map[*quicClient]struct{}
}

func listenQUIC(addr string, tlsConf *tls.Config, auth TokenAuth, hello func() []byte, logger log.Log) (*quicFeed, error) {
	ln, err := quic.ListenAddr(addr, tlsConf, &quic.Config{
		HandshakeIdleTimeout:  writeWait,
		MaxIdleTimeout:        pongWait,
		KeepAlivePeriod:       pingPeriod,
		MaxIncomingStreams:    1,
		MaxIncomingUniStreams: -1,
	})
	if err != nil {
		return nil, fmt.Errorf("inspector quic listen %s: %w", addr, err)
	}
	f := &quicFeed{
		ln:      ln,
		auth:    auth,
		hello:   hello,
		logger:  logger,
		clients: make(map[*quicClient]struct{}),
	}
	go f.serve()
	return f, nil
}

func (f *quicFeed) addr() string { return f.ln.Addr().String() }

func (f *quicFeed) serve() {
	for {
		conn, err := f.ln.Accept(context.Background())
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *quicFeed) handle(conn *quic.Conn) {
	ctx, cancel := context.WithTimeout(conn.Context(), writeWait)
	stream, err := conn.AcceptStream(ctx)
	cancel()
	if err != nil {
		_ = conn.CloseWithError(codeProtocol, "expected a stream")
		return
	}

	_ = stream.SetReadDeadline(time.Now().Add(writeWait))
	line, err := bufio.NewReaderSize(stream, 256).ReadString('\n')
	if err != nil {
		_ = conn.CloseWithError(codeProtocol, "expected a token line")
		return
	}
	if err := f.auth.Check(strings.TrimSpace(line)); err != nil {
		_ = conn.CloseWithError(codeUnauthorized, err.Error())
		return
	}
	_ = stream.SetReadDeadline(time.Time{})

	c := &quicClient{conn: conn, stream: stream, send: make(chan []byte, sendBacklog)}
	c.send <- frame(f.hello())
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()

	f.logger.Debug("inspector quic client connected", log.String("remote", conn.RemoteAddr().String()))
	f.writePump(c)
}

// frame appends the line terminator into a fresh buffer so the payload can
// be shared between clients.
func frame(payload []byte) []byte {
	line := make([]byte, len(payload)+1)
	copy(line, payload)
	line[len(payload)] = '\n'
	return line
}

func (f *quicFeed) writePump(c *quicClient) {
	defer func() {
		f.remove(c)
		_ = c.stream.Close()
		_ = c.conn.CloseWithError(codeNormal, "")
	}()
	for {
		select {
		case line, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.stream.SetWriteDeadline(time.Now().Add(writeWait))
			if _, err := c.stream.Write(line); err != nil {
				f.logger.Debug("inspector quic write failed", log.Error(err))
				return
			}
		case <-c.conn.Context().Done():
			return
		}
	}
}

func (f *quicFeed) remove(c *quicClient) {
	f.mu.Lock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		c.close()
	}
	f.mu.Unlock()
}

func (f *quicFeed) broadcast(payload []byte) {
	line := frame(payload)
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- line:
		default:
			f.logger.Warn("dropping slow inspector quic client", log.String("remote", c.conn.RemoteAddr().String()))
			delete(f.clients, c)
			c.close()
		}
	}
}

func (f *quicFeed) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *quicFeed) close() error {
	f.mu.Lock()
	for c := range f.clients {
		delete(f.clients, c)
		c.close()
	}
	f.mu.Unlock()
	return f.ln.Close()
}
