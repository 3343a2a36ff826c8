package handshake

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/stcp/common"
)

// testCertificate generates a self-signed certificate valid for localhost,
// usable for both server and client authentication
func testCertificate(t *testing.T) []tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "stcp-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:     []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	return []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}}
}

// negotiatePair runs both roles of the negotiation over an in-memory pipe and
// returns the per-role errors plus the negotiated handles
func negotiatePair(t *testing.T, serverCerts, clientCerts []tls.Certificate,
	serverSettings, clientSettings common.TLSSettings) (server, client *tls.Conn, serverErr, clientErr error) {
	t.Helper()

	serverSide, clientSide := net.Pipe()
	t.Cleanup(func() {
		serverSide.Close()
		clientSide.Close()
	})

	type outcome struct {
		conn *tls.Conn
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		conn, err := Negotiate(serverSide, RoleServer, serverCerts, serverSettings)
		ch <- outcome{conn, err}
	}()

	client, clientErr = Negotiate(clientSide, RoleClient, clientCerts, clientSettings)

	select {
	case o := <-ch:
		server, serverErr = o.conn, o.err
	case <-time.After(5 * time.Second):
		t.Fatal("server side negotiation did not resolve")
	}
	return server, client, serverErr, clientErr
}

func TestNegotiateServerAuthenticated(t *testing.T) {
	settings := common.TLSSettings{Enabled: true, AcceptInvalidCerts: true}
	server, client, serverErr, clientErr := negotiatePair(t, testCertificate(t), nil, settings, settings)
	if serverErr != nil {
		t.Fatalf("server negotiation failed: %v", serverErr)
	}
	if clientErr != nil {
		t.Fatalf("client negotiation failed: %v", clientErr)
	}

	// The negotiated channel must carry application data in both directions
	payload := []byte("handshake-probe")
	go func() {
		_, _ = server.Write(payload)
	}()
	buf := make([]byte, len(payload))
	if _, err := client.Read(buf); err != nil {
		t.Fatalf("read over negotiated channel failed: %v", err)
	}
	if !bytes.Equal(buf, payload) {
		t.Error("payload corrupted over negotiated channel")
	}
}

func TestNegotiateMutualAuthentication(t *testing.T) {
	settings := common.TLSSettings{Enabled: true, AcceptInvalidCerts: true, MutuallyAuthenticate: true}
	_, _, serverErr, clientErr := negotiatePair(t, testCertificate(t), testCertificate(t), settings, settings)
	if serverErr != nil {
		t.Fatalf("server negotiation failed: %v", serverErr)
	}
	if clientErr != nil {
		t.Fatalf("client negotiation failed: %v", clientErr)
	}
}

func TestNegotiateMutualAuthWithoutClientCertFails(t *testing.T) {
	settings := common.TLSSettings{Enabled: true, AcceptInvalidCerts: true, MutuallyAuthenticate: true}
	_, _, serverErr, clientErr := negotiatePair(t, testCertificate(t), nil, settings, settings)
	if serverErr == nil && clientErr == nil {
		t.Fatal("expected negotiation to fail without a client certificate")
	}
}

func TestNegotiateClientRejectsUntrustedCert(t *testing.T) {
	// Chain validation active: the self-signed server certificate must be
	// rejected by the initiating side
	serverSettings := common.TLSSettings{Enabled: true}
	clientSettings := common.TLSSettings{Enabled: true, ServerName: "localhost"}
	_, _, _, clientErr := negotiatePair(t, testCertificate(t), nil, serverSettings, clientSettings)
	if clientErr == nil {
		t.Fatal("expected client to reject the untrusted certificate")
	}
}

func TestNegotiateServerRequiresCertificate(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	if _, err := Negotiate(serverSide, RoleServer, nil, common.TLSSettings{Enabled: true}); err == nil {
		t.Fatal("expected error for server role without certificate material")
	}
}

func TestNegotiateUnknownRole(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	if _, err := Negotiate(serverSide, Role(42), nil, common.TLSSettings{}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestLoadCertificate(t *testing.T) {
	// No configured files is not an error, just empty material
	certs, err := LoadCertificate(common.TLSSettings{})
	if err != nil || certs != nil {
		t.Errorf("expected empty material without files, got %v, %v", certs, err)
	}

	if _, err := LoadCertificate(common.TLSSettings{CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"}); err == nil {
		t.Error("expected error for missing certificate files")
	}
}
