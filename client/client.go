package client

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/stcp/common"
	"github.com/ValentinKolb/stcp/conn"
	"github.com/ValentinKolb/stcp/endpoint"
	"github.com/ValentinKolb/stcp/handshake"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("client")

// --------------------------------------------------------------------------
// Client facade
// --------------------------------------------------------------------------

// Client manages a single outgoing connection. A torn down connection is
// never reused; calling Connect again establishes a fresh one with a new
// identity.
type Client struct {
	settings common.ClientSettings
	events   *common.Events
	stats    *common.Statistics

	mu   sync.Mutex
	conn *conn.Connection
}

// New validates the settings and creates a disconnected client
func New(settings common.ClientSettings) (*Client, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client settings: %v", err)
	}
	return &Client{
		settings: settings,
		events:   common.NewEvents(),
		stats:    common.NewStatistics("client"),
	}, nil
}

// Events exposes the notification hub for handler registration
func (c *Client) Events() *common.Events {
	return c.events
}

// Stats returns a read-only snapshot of the transfer counters
func (c *Client) Stats() common.StatisticsSnapshot {
	return c.stats.Snapshot()
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Connect dials the configured endpoint. A zero timeout dials unbounded.
// When TLS is enabled the connection only becomes usable after the
// handshake succeeded; the monitor starts afterwards.
func (c *Client) Connect(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.IsAlive() {
		return fmt.Errorf("already connected to %s", c.conn.RemoteAddr())
	}

	ep, err := endpoint.Resolve(c.settings.Endpoint)
	if err != nil {
		return err
	}

	dialer := net.Dialer{Timeout: timeout}
	raw, err := dialer.Dial("tcp", ep.String())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", ep, err)
	}

	if err := conn.ApplySocketSettings(raw, c.settings.Socket); err != nil {
		_ = raw.Close()
		return fmt.Errorf("failed to tune connection: %v", err)
	}

	cn := conn.New(raw, c.settings.BufferSize, c.stats)

	if c.settings.TLS.Enabled {
		certs, err := handshake.LoadCertificate(c.settings.TLS)
		if err != nil {
			cn.Teardown()
			return err
		}
		secured, err := handshake.Negotiate(raw, handshake.RoleClient, certs, c.settings.TLS)
		if err != nil {
			cn.Teardown()
			return err
		}
		cn.Upgrade(secured)
	}

	c.conn = cn

	if c.settings.EnableMonitor {
		conn.StartMonitor(cn, c.settings.MonitorInterval, c.onMonitorLoss)
	}

	Logger.Infof("connected to %s (id %s)", cn.RemoteAddr(), cn.ID())
	c.events.FireConnected(cn.Info())
	return nil
}

// Disconnect tears the connection down. Idempotent, safe to call when
// already disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cn := c.conn
	c.mu.Unlock()

	if cn == nil {
		return
	}

	cn.Teardown()
	if cn.FirstNotify() {
		c.stats.AddDisconnect()
		Logger.Infof("disconnected from %s", cn.RemoteAddr())
		c.events.FireDisconnected(cn.Info(), common.ReasonNormal)
	}
}

// IsConnected reports whether the connection is currently believed reachable
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.conn.IsAlive()
}

// RawStream returns the raw stream handle. This bypasses the lock
// discipline; using it concurrently with Send/Receive is the caller's
// responsibility.
func (c *Client) RawStream() (net.Conn, error) {
	cn, err := c.current()
	if err != nil {
		return nil, err
	}
	return cn.Raw(), nil
}

// onMonitorLoss raises the Monitor disconnect notification. The monitor has
// already torn the connection down.
func (c *Client) onMonitorLoss(lost *conn.Connection) {
	c.stats.AddMonitorLoss()
	if lost.FirstNotify() {
		c.stats.AddDisconnect()
		c.events.FireDisconnected(lost.Info(), common.ReasonMonitor)
	}
}

// current returns the connection or a programmer error when Connect was
// never called
func (c *Client) current() (*conn.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, fmt.Errorf("client is not connected")
	}
	return c.conn, nil
}

// --------------------------------------------------------------------------
// I/O operations
// --------------------------------------------------------------------------

// Send transfers exactly len(data) bytes, unbounded
func (c *Client) Send(data []byte) (common.Result, error) {
	return c.SendSignal(data, 0, nil)
}

// SendTimeout transfers exactly len(data) bytes within the deadline. The
// deadline is mandatory here; use Send for an unbounded transfer.
func (c *Client) SendTimeout(data []byte, timeout time.Duration) (common.Result, error) {
	if timeout <= 0 {
		return common.Result{}, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	return c.SendSignal(data, timeout, nil)
}

// SendSignal transfers exactly len(data) bytes, raced against the deadline
// (when positive) and the caller-supplied cancel signal (when non-nil)
func (c *Client) SendSignal(data []byte, timeout time.Duration, cancel <-chan struct{}) (common.Result, error) {
	cn, err := c.current()
	if err != nil {
		return common.Result{}, err
	}

	result, err := cn.Send(data, timeout, cancel)
	if err != nil {
		return result, err
	}
	c.observe(cn, result)
	return result, nil
}

// SendReader reads exactly count bytes from src and transfers them
func (c *Client) SendReader(src io.Reader, count int, timeout time.Duration, cancel <-chan struct{}) (common.Result, error) {
	if src == nil {
		return common.Result{}, fmt.Errorf("source must not be nil")
	}
	if count <= 0 {
		return common.Result{}, fmt.Errorf("send count must be positive, got %d", count)
	}

	data := make([]byte, count)
	if _, err := io.ReadFull(src, data); err != nil {
		return common.Result{}, fmt.Errorf("source shorter than %d bytes: %v", count, err)
	}
	return c.SendSignal(data, timeout, cancel)
}

// Receive transfers exactly count bytes from the peer, unbounded
func (c *Client) Receive(count int) (common.Result, error) {
	return c.ReceiveSignal(count, 0, nil)
}

// ReceiveTimeout transfers exactly count bytes within the deadline. The
// deadline is mandatory here; use Receive for an unbounded transfer.
func (c *Client) ReceiveTimeout(count int, timeout time.Duration) (common.Result, error) {
	if timeout <= 0 {
		return common.Result{}, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	return c.ReceiveSignal(count, timeout, nil)
}

// ReceiveSignal transfers exactly count bytes, raced against the deadline
// (when positive) and the caller-supplied cancel signal (when non-nil)
func (c *Client) ReceiveSignal(count int, timeout time.Duration, cancel <-chan struct{}) (common.Result, error) {
	cn, err := c.current()
	if err != nil {
		return common.Result{}, err
	}

	result, err := cn.Receive(count, timeout, cancel)
	if err != nil {
		return result, err
	}
	c.observe(cn, result)
	return result, nil
}

// observe reacts to a transfer outcome: a stream level fault tears the
// connection down and raises the disconnect notification exactly once
func (c *Client) observe(cn *conn.Connection, result common.Result) {
	if result.Status != common.StatusDisconnected {
		return
	}
	cn.Teardown()
	if cn.FirstNotify() {
		c.stats.AddDisconnect()
		Logger.Infof("connection to %s lost", cn.RemoteAddr())
		c.events.FireDisconnected(cn.Info(), common.ReasonNormal)
	}
}
