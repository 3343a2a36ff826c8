package conn

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/stcp/common"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("conn")

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// Connection represents one established TCP stream, client or server side.
// It carries a stable opaque identity, one exclusive lock per transfer
// direction, a lifetime context fired on teardown and a liveness flag.
// Once torn down a Connection is never reused; a reconnect creates a new one.
type Connection struct {
	id         uuid.UUID
	remoteAddr string
	raw        net.Conn
	secured    *tls.Conn

	readLock  *dirLock
	writeLock *dirLock

	lifetime context.Context
	cancel   context.CancelFunc

	alive    atomic.Bool
	downOnce sync.Once
	notified atomic.Bool

	bufferSize int
	stats      *common.Statistics
	pool       *sync.Pool
}

// New wraps an established stream. The connection starts alive and without
// an encrypted-stream handle; Upgrade attaches one after a successful
// handshake.
func New(raw net.Conn, bufferSize int, stats *common.Statistics) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:         uuid.New(),
		remoteAddr: raw.RemoteAddr().String(),
		raw:        raw,
		readLock:   newDirLock(),
		writeLock:  newDirLock(),
		lifetime:   ctx,
		cancel:     cancel,
		bufferSize: bufferSize,
		stats:      stats,
		pool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
	c.alive.Store(true)
	return c
}

// ID returns the opaque identity, stable for the connection's lifetime
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// RemoteAddr returns the peer address in host:port form
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// Info returns the identity payload used by notifications
func (c *Connection) Info() common.ConnectionInfo {
	return common.ConnectionInfo{ID: c.id, RemoteAddr: c.remoteAddr}
}

// Upgrade attaches the encrypted-stream handle after a successful handshake.
// All subsequent transfers go through it.
func (c *Connection) Upgrade(secured *tls.Conn) {
	c.secured = secured
}

// Stream returns the active stream: the encrypted one iff encryption was
// negotiated, the raw one otherwise
func (c *Connection) Stream() net.Conn {
	if c.secured != nil {
		return c.secured
	}
	return c.raw
}

// Raw returns the raw stream handle. This is the escape hatch of the public
// surface: it bypasses the lock discipline entirely.
func (c *Connection) Raw() net.Conn {
	return c.raw
}

// IsAlive reports whether the connection is currently believed reachable, as
// last determined by either an I/O result or the monitor probe
func (c *Connection) IsAlive() bool {
	return c.alive.Load()
}

// markDead flips the liveness flag to false without releasing resources
func (c *Connection) markDead() {
	c.alive.Store(false)
}

// Done exposes the lifetime signal. It fires on teardown and is honored by
// every blocking operation in addition to any per-call signal or deadline.
func (c *Connection) Done() <-chan struct{} {
	return c.lifetime.Done()
}

// FirstNotify reports whether the caller won the race to raise the
// disconnect notification for this connection. Multiple detectors (executor,
// monitor, facade) can observe the same loss; only one of them notifies.
func (c *Connection) FirstNotify() bool {
	return c.notified.CompareAndSwap(false, true)
}

// Teardown closes the streams and fires the lifetime signal. It is
// idempotent since the executor, the monitor and the owning facade can race
// to call it.
func (c *Connection) Teardown() {
	c.downOnce.Do(func() {
		c.markDead()
		c.cancel()
		if c.secured != nil {
			_ = c.secured.Close()
		}
		_ = c.raw.Close()
		Logger.Debugf("connection %s to %s torn down", c.id, c.remoteAddr)
	})
}

// --------------------------------------------------------------------------
// Socket tuning
// --------------------------------------------------------------------------

// ApplySocketSettings applies TCP level settings to an established
// connection. Non-TCP connections pass through untouched.
func ApplySocketSettings(nc net.Conn, s common.SocketSettings) error {
	tcpConn, ok := nc.(*net.TCPConn)
	if !ok {
		return nil
	}

	if err := tcpConn.SetNoDelay(s.NoDelay); err != nil {
		return err
	}

	if s.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(s.WriteBufferSize); err != nil {
			return err
		}
	}

	if s.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(s.ReadBufferSize); err != nil {
			return err
		}
	}

	if s.KeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(s.KeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	if s.LingerSec >= 0 {
		if err := tcpConn.SetLinger(s.LingerSec); err != nil {
			return err
		}
	}

	return nil
}
