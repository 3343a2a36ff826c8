package conn

import (
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/ValentinKolb/stcp/common"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sys/unix"
)

var monitorLogger = logger.GetLogger("monitor")

// --------------------------------------------------------------------------
// Liveness monitor
// --------------------------------------------------------------------------

// Monitor is the per-connection liveness loop. It runs on a fixed interval
// from the moment a connection becomes usable until the lifetime signal
// fires, and independently detects disconnection that no read or write would
// otherwise surface. Any probe failure is treated as connection loss.
type Monitor struct {
	conn     *Connection
	interval time.Duration
	onLoss   func(*Connection)
}

// StartMonitor launches the loop. onLoss is invoked at most once, after the
// connection has been torn down, and is expected to raise the disconnect
// notification with reason Monitor.
func StartMonitor(c *Connection, interval time.Duration, onLoss func(*Connection)) *Monitor {
	m := &Monitor{conn: c, interval: interval, onLoss: onLoss}
	go m.run()
	return m
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.conn.Done():
			return
		case <-ticker.C:
		}

		if err := m.probe(); err != nil {
			monitorLogger.Infof("connection %s to %s lost: %v", m.conn.ID(), m.conn.RemoteAddr(), err)
			m.conn.Teardown()
			if m.onLoss != nil {
				m.onLoss(m.conn)
			}
			return
		}
	}
}

// probe briefly holds the write lock so it cannot race an application write
// mid-probe, then checks socket level state. A nil return means the
// connection is still believed reachable.
func (m *Monitor) probe() error {
	if status := m.conn.writeLock.acquire(m.conn.Done(), nil); status != common.StatusSuccess {
		// Lifetime fired while waiting, the loop exits on its next select
		return nil
	}
	defer m.conn.writeLock.release()

	// Zero-length send detects a locally closed handle
	if _, err := m.conn.Stream().Write(nil); err != nil {
		return fmt.Errorf("zero-length write failed: %v", err)
	}

	// Non-blocking peek detects a graceful remote close and resets
	return m.conn.peekRaw()
}

// peekRaw performs a non-blocking MSG_PEEK on the raw socket. Pending data
// means the peer is alive; a zero-length read means it closed gracefully.
// Streams without syscall access (e.g. in-memory pipes) are skipped.
func (c *Connection) peekRaw() error {
	sc, ok := c.raw.(syscall.Conn)
	if !ok {
		return nil
	}

	rawConn, err := sc.SyscallConn()
	if err != nil {
		return fmt.Errorf("no syscall access: %v", err)
	}

	var probeErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		buf := make([]byte, 1)
		n, _, err := unix.Recvfrom(int(fd), buf, unix.MSG_PEEK|unix.MSG_DONTWAIT)
		switch {
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			// No pending data, connection open
		case err != nil:
			probeErr = fmt.Errorf("peek failed: %v", err)
		case n == 0:
			probeErr = io.EOF
		}
	})
	if ctrlErr != nil {
		return fmt.Errorf("socket control failed: %v", ctrlErr)
	}
	return probeErr
}
