package common

import (
	"fmt"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// Statistics accumulates transfer and admission counters for one facade.
// All methods are safe for concurrent use. The counters are additionally
// mirrored into process-wide VictoriaMetrics counters labeled by scope so
// they show up on a standard /metrics endpoint.
type Statistics struct {
	bytesSent      uint64
	bytesReceived  uint64
	accepted       uint64
	rejected       uint64
	monitorLosses  uint64
	disconnects    uint64
	mBytesSent     *metrics.Counter
	mBytesReceived *metrics.Counter
	mAccepted      *metrics.Counter
	mRejected      *metrics.Counter
	mMonitorLosses *metrics.Counter
	mDisconnects   *metrics.Counter
}

// StatisticsSnapshot is a read-only copy of the counters at one instant
type StatisticsSnapshot struct {
	BytesSent     uint64
	BytesReceived uint64
	Accepted      uint64
	Rejected      uint64
	MonitorLosses uint64
	Disconnects   uint64
}

// NewStatistics creates a counter set. The scope (e.g. "client", "server")
// labels the exported metrics; multiple facades may share a scope, in which
// case the exported metrics aggregate while the snapshots stay per-facade.
func NewStatistics(scope string) *Statistics {
	counter := func(name string) *metrics.Counter {
		return metrics.GetOrCreateCounter(fmt.Sprintf(`stcp_%s_total{scope=%q}`, name, scope))
	}
	return &Statistics{
		mBytesSent:     counter("bytes_sent"),
		mBytesReceived: counter("bytes_received"),
		mAccepted:      counter("connections_accepted"),
		mRejected:      counter("connections_rejected"),
		mMonitorLosses: counter("monitor_losses"),
		mDisconnects:   counter("disconnects"),
	}
}

// AddBytesSent records n transferred bytes in the send direction
func (s *Statistics) AddBytesSent(n int) {
	atomic.AddUint64(&s.bytesSent, uint64(n))
	s.mBytesSent.Add(n)
}

// AddBytesReceived records n transferred bytes in the receive direction
func (s *Statistics) AddBytesReceived(n int) {
	atomic.AddUint64(&s.bytesReceived, uint64(n))
	s.mBytesReceived.Add(n)
}

// AddAccepted records one admitted connection
func (s *Statistics) AddAccepted() {
	atomic.AddUint64(&s.accepted, 1)
	s.mAccepted.Inc()
}

// AddRejected records one connection declined by admission control
func (s *Statistics) AddRejected() {
	atomic.AddUint64(&s.rejected, 1)
	s.mRejected.Inc()
}

// AddMonitorLoss records one liveness-monitor detected loss
func (s *Statistics) AddMonitorLoss() {
	atomic.AddUint64(&s.monitorLosses, 1)
	s.mMonitorLosses.Inc()
}

// AddDisconnect records one torn down connection
func (s *Statistics) AddDisconnect() {
	atomic.AddUint64(&s.disconnects, 1)
	s.mDisconnects.Inc()
}

// Snapshot returns a read-only copy of the counters
func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		BytesSent:     atomic.LoadUint64(&s.bytesSent),
		BytesReceived: atomic.LoadUint64(&s.bytesReceived),
		Accepted:      atomic.LoadUint64(&s.accepted),
		Rejected:      atomic.LoadUint64(&s.rejected),
		MonitorLosses: atomic.LoadUint64(&s.monitorLosses),
		Disconnects:   atomic.LoadUint64(&s.disconnects),
	}
}
