package handshake

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/ValentinKolb/stcp/common"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("handshake")

// --------------------------------------------------------------------------
// Roles
// --------------------------------------------------------------------------

// Role selects which side of the negotiation this peer plays
type Role int

const (
	// RoleClient initiates the negotiation as the connecting party
	RoleClient Role = iota
	// RoleServer accepts the negotiation as the listening party
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Certificate material
// --------------------------------------------------------------------------

// LoadCertificate reads the PEM encoded certificate material referenced by
// the settings. Returns an empty collection when no files are configured.
func LoadCertificate(s common.TLSSettings) ([]tls.Certificate, error) {
	if s.CertFile == "" && s.KeyFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %v", err)
	}
	return []tls.Certificate{cert}, nil
}

// --------------------------------------------------------------------------
// Negotiation
// --------------------------------------------------------------------------

// Negotiate upgrades an established stream to an encrypted one. The returned
// handle is only non-nil on full success: the handshake completed and every
// requirement of the settings (authentication, mutual authentication) is
// met. An unmet requirement is a negotiation failure, not a retryable
// condition; the caller tears the connection down.
func Negotiate(stream net.Conn, role Role, certs []tls.Certificate, s common.TLSSettings) (*tls.Conn, error) {
	var secured *tls.Conn

	switch role {
	case RoleClient:
		cfg := &tls.Config{
			Certificates: certs,
			ServerName:   s.ServerName,
			MinVersion:   tls.VersionTLS12,
		}
		if s.AcceptInvalidCerts {
			// Permissive mode: accept any certificate at the application
			// layer instead of running chain validation
			cfg.InsecureSkipVerify = true
		}
		secured = tls.Client(stream, cfg)

	case RoleServer:
		if len(certs) == 0 {
			return nil, fmt.Errorf("server role requires certificate material")
		}
		cfg := &tls.Config{
			Certificates: certs,
			MinVersion:   tls.VersionTLS12,
		}
		if s.MutuallyAuthenticate {
			if s.AcceptInvalidCerts {
				cfg.ClientAuth = tls.RequireAnyClientCert
			} else {
				cfg.ClientAuth = tls.RequireAndVerifyClientCert
			}
		}
		secured = tls.Server(stream, cfg)

	default:
		return nil, fmt.Errorf("unknown handshake role %d", role)
	}

	if err := secured.Handshake(); err != nil {
		return nil, fmt.Errorf("%s handshake failed: %v", role, err)
	}

	if err := checkState(secured, role, certs, s); err != nil {
		return nil, err
	}

	Logger.Debugf("%s handshake with %s completed (mutual auth: %t)",
		role, stream.RemoteAddr(), s.MutuallyAuthenticate)

	return secured, nil
}

// checkState enforces the encrypted/authenticated/mutually-authenticated
// requirements on the negotiated channel
func checkState(secured *tls.Conn, role Role, certs []tls.Certificate, s common.TLSSettings) error {
	state := secured.ConnectionState()

	if !state.HandshakeComplete {
		return fmt.Errorf("channel is not encrypted")
	}

	// The accepting party always presents a certificate, so the initiating
	// side must see one
	if role == RoleClient && len(state.PeerCertificates) == 0 {
		return fmt.Errorf("channel is not authenticated: peer presented no certificate")
	}

	if s.MutuallyAuthenticate {
		switch role {
		case RoleClient:
			// Mutual authentication needs our own certificate on the wire
			if len(certs) == 0 {
				return fmt.Errorf("channel is not mutually authenticated: no local certificate configured")
			}
		case RoleServer:
			if len(state.PeerCertificates) == 0 {
				return fmt.Errorf("channel is not mutually authenticated: peer presented no certificate")
			}
		}
	}

	return nil
}
