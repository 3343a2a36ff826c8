package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/stcp/common"
	"github.com/ValentinKolb/stcp/conn"
	"github.com/ValentinKolb/stcp/handshake"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("server")

// capacityPollInterval bounds how long the accept loop pauses before
// re-checking the registry count against the configured maximum
const capacityPollInterval = 100 * time.Millisecond

// --------------------------------------------------------------------------
// Server facade
// --------------------------------------------------------------------------

// Server accepts incoming connections, applies admission control, performs
// the optional transport handshake and exposes Send/Receive keyed by
// connection identity.
type Server struct {
	settings common.ServerSettings
	registry *Registry
	events   *common.Events
	stats    *common.Statistics
	certs    []tls.Certificate

	mu       sync.Mutex
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	wg       sync.WaitGroup
}

// New validates the settings and creates a stopped server
func New(settings common.ServerSettings) (*Server, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server settings: %v", err)
	}
	return &Server{
		settings: settings,
		registry: NewRegistry(),
		events:   common.NewEvents(),
		stats:    common.NewStatistics("server"),
	}, nil
}

// Events exposes the notification hub for handler registration
func (s *Server) Events() *common.Events {
	return s.events
}

// Stats returns a read-only snapshot of the transfer counters
func (s *Server) Stats() common.StatisticsSnapshot {
	return s.stats.Snapshot()
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Start binds the listener and launches the accept loop
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("server already started")
	}

	if s.settings.TLS.Enabled {
		certs, err := handshake.LoadCertificate(s.settings.TLS)
		if err != nil {
			return err
		}
		s.certs = certs
	}

	listener, err := net.Listen("tcp", s.settings.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}

	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.started = true

	Logger.Infof("server listening on %s", listener.Addr())
	Logger.Infof("%s", s.settings.String())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and tears down all registered connections.
// Idempotent, safe to call on a stopped server.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	_ = s.listener.Close()
	s.mu.Unlock()

	for _, e := range s.registry.List() {
		s.drop(e.Conn, common.ReasonNormal)
	}

	s.wg.Wait()
	Logger.Infof("server stopped")
}

// Addr returns the bound listener address, useful when the settings
// requested an ephemeral port
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// --------------------------------------------------------------------------
// Accept loop and admission
// --------------------------------------------------------------------------

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		// Capacity gate: while at the maximum, pause accepting without
		// closing existing connections, resume when the count drops
		for s.registry.Count() >= s.settings.MaxConnections {
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(capacityPollInterval):
			}
		}

		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				// Loop-lifetime cancellation is terminal
				return
			default:
			}
			Logger.Errorf("accept error: %v", err)
			s.events.FireException("accept", err)
			continue
		}

		s.wg.Add(1)
		go s.admit(nc)
	}
}

// admit registers a freshly accepted socket, evaluates admission, runs the
// handshake and makes the connection visible on success
func (s *Server) admit(nc net.Conn) {
	defer s.wg.Done()

	if err := conn.ApplySocketSettings(nc, s.settings.Socket); err != nil {
		Logger.Warningf("failed to tune connection from %s: %v", nc.RemoteAddr(), err)
		s.events.FireException("tune", err)
		_ = nc.Close()
		return
	}

	cn := conn.New(nc, s.settings.BufferSize, s.stats)
	entry := &Entry{Conn: cn}

	if err := s.registry.Add(entry); err != nil {
		Logger.Errorf("failed to register connection from %s: %v", cn.RemoteAddr(), err)
		cn.Teardown()
		return
	}

	// Stop may have swept the registry before this entry landed; a
	// registration that loses that race must not outlive the server
	if s.ctx.Err() != nil {
		s.registry.Remove(cn.ID())
		cn.Teardown()
		return
	}

	if !s.admitted(cn.RemoteAddr()) {
		s.registry.Remove(cn.ID())
		s.stats.AddRejected()
		Logger.Infof("declined connection from %s", cn.RemoteAddr())
		cn.Teardown()
		if cn.FirstNotify() {
			s.events.FireDisconnected(cn.Info(), common.ReasonDeclined)
		}
		return
	}

	if s.settings.TLS.Enabled {
		secured, err := handshake.Negotiate(nc, handshake.RoleServer, s.certs, s.settings.TLS)
		if err != nil {
			s.registry.Remove(cn.ID())
			s.stats.AddRejected()
			Logger.Warningf("handshake with %s failed: %v", cn.RemoteAddr(), err)
			s.events.FireException("handshake", err)
			cn.Teardown()
			return
		}
		cn.Upgrade(secured)
	}

	// Shutdown during the handshake: the sweep has already torn the entry
	// down, never announce it
	if s.ctx.Err() != nil {
		s.registry.Remove(cn.ID())
		cn.Teardown()
		return
	}

	// Only now does the connection become visible to Send/Receive calls
	s.registry.MarkReady(cn.ID())
	s.stats.AddAccepted()

	if s.settings.EnableMonitor {
		conn.StartMonitor(cn, s.settings.MonitorInterval, s.onMonitorLoss)
	}

	Logger.Infof("admitted connection %s from %s", cn.ID(), cn.RemoteAddr())
	s.events.FireConnected(entry.Info())
}

// admitted applies the address allow/block lists. An address must pass the
// allow list (when non-empty) AND not match the block list (when non-empty).
func (s *Server) admitted(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	contains := func(list []string, addr string) bool {
		for _, a := range list {
			if a == addr {
				return true
			}
		}
		return false
	}

	if len(s.settings.AllowList) > 0 && !contains(s.settings.AllowList, host) {
		return false
	}
	if len(s.settings.BlockList) > 0 && contains(s.settings.BlockList, host) {
		return false
	}
	return true
}

// onMonitorLoss deregisters a connection the liveness monitor lost. The
// monitor has already torn it down.
func (s *Server) onMonitorLoss(lost *conn.Connection) {
	s.registry.Remove(lost.ID())
	s.stats.AddMonitorLoss()
	if lost.FirstNotify() {
		s.stats.AddDisconnect()
		s.events.FireDisconnected(lost.Info(), common.ReasonMonitor)
	}
}

// drop removes a connection from the registry, tears it down and raises the
// disconnect notification exactly once
func (s *Server) drop(cn *conn.Connection, reason common.DisconnectReason) {
	s.registry.Remove(cn.ID())
	cn.Teardown()
	if cn.FirstNotify() {
		s.stats.AddDisconnect()
		s.events.FireDisconnected(cn.Info(), reason)
	}
}

// --------------------------------------------------------------------------
// Connection management
// --------------------------------------------------------------------------

// ListConnections returns a snapshot of all registered connections
func (s *Server) ListConnections() []common.ConnectionInfo {
	return s.registry.Infos()
}

// FindIDByAddress resolves a remote address to a connection identity.
// Legacy compatibility path; prefer operating by identity.
func (s *Server) FindIDByAddress(addr string) (uuid.UUID, bool) {
	return s.registry.FindIDByAddress(addr)
}

// IsConnected reports whether the identified connection is registered and
// currently believed reachable
func (s *Server) IsConnected(id uuid.UUID) bool {
	e, ok := s.registry.Get(id)
	return ok && e.Conn.IsAlive()
}

// RawStream returns the raw stream handle of the identified connection. This
// bypasses the lock discipline; using it concurrently with Send/Receive is
// the caller's responsibility.
func (s *Server) RawStream(id uuid.UUID) (net.Conn, error) {
	e, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("no connection with identity %s", id)
	}
	return e.Conn.Raw(), nil
}

// DisconnectConnection tears down the connection with the given identity
// and raises the disconnect notification with reason Kicked
func (s *Server) DisconnectConnection(id uuid.UUID) error {
	e, ok := s.registry.Get(id)
	if !ok {
		return fmt.Errorf("no connection with identity %s", id)
	}
	Logger.Infof("kicking connection %s from %s", id, e.Conn.RemoteAddr())
	s.drop(e.Conn, common.ReasonKicked)
	return nil
}

// SetConnectionName sets the display name shown in enumeration and
// notifications for id
func (s *Server) SetConnectionName(id uuid.UUID, name string) error {
	if !s.registry.SetName(id, name) {
		return fmt.Errorf("no connection with identity %s", id)
	}
	return nil
}

// SetConnectionMeta attaches arbitrary caller metadata to id
func (s *Server) SetConnectionMeta(id uuid.UUID, meta interface{}) error {
	if !s.registry.SetMeta(id, meta) {
		return fmt.Errorf("no connection with identity %s", id)
	}
	return nil
}

// ConnectionMeta returns the metadata attached to id
func (s *Server) ConnectionMeta(id uuid.UUID) (interface{}, bool) {
	return s.registry.GetMeta(id)
}

// --------------------------------------------------------------------------
// I/O operations
// --------------------------------------------------------------------------

// Send transfers exactly len(data) bytes to the identified connection,
// unbounded
func (s *Server) Send(id uuid.UUID, data []byte) (common.Result, error) {
	return s.SendSignal(id, data, 0, nil)
}

// SendTimeout transfers exactly len(data) bytes within the deadline. The
// deadline is mandatory here; use Send for an unbounded transfer.
func (s *Server) SendTimeout(id uuid.UUID, data []byte, timeout time.Duration) (common.Result, error) {
	if timeout <= 0 {
		return common.Result{}, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	return s.SendSignal(id, data, timeout, nil)
}

// SendSignal transfers exactly len(data) bytes, raced against the deadline
// (when positive) and the caller-supplied cancel signal (when non-nil)
func (s *Server) SendSignal(id uuid.UUID, data []byte, timeout time.Duration, cancel <-chan struct{}) (common.Result, error) {
	e, ok := s.registry.Get(id)
	if !ok {
		return common.Result{Status: common.StatusClientNotFound}, nil
	}

	result, err := e.Conn.Send(data, timeout, cancel)
	if err != nil {
		return result, err
	}
	s.observe(e.Conn, result)
	return result, nil
}

// Receive transfers exactly count bytes from the identified connection,
// unbounded
func (s *Server) Receive(id uuid.UUID, count int) (common.Result, error) {
	return s.ReceiveSignal(id, count, 0, nil)
}

// ReceiveTimeout transfers exactly count bytes within the deadline. The
// deadline is mandatory here; use Receive for an unbounded transfer.
func (s *Server) ReceiveTimeout(id uuid.UUID, count int, timeout time.Duration) (common.Result, error) {
	if timeout <= 0 {
		return common.Result{}, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	return s.ReceiveSignal(id, count, timeout, nil)
}

// ReceiveSignal transfers exactly count bytes, raced against the deadline
// (when positive) and the caller-supplied cancel signal (when non-nil)
func (s *Server) ReceiveSignal(id uuid.UUID, count int, timeout time.Duration, cancel <-chan struct{}) (common.Result, error) {
	e, ok := s.registry.Get(id)
	if !ok {
		return common.Result{Status: common.StatusClientNotFound}, nil
	}

	result, err := e.Conn.Receive(count, timeout, cancel)
	if err != nil {
		return result, err
	}
	s.observe(e.Conn, result)
	return result, nil
}

// observe reacts to a transfer outcome: a stream level fault deregisters and
// tears down the connection. Reads and writes are treated alike.
func (s *Server) observe(cn *conn.Connection, result common.Result) {
	if result.Status != common.StatusDisconnected {
		return
	}
	s.drop(cn, common.ReasonNormal)
}
