package common

import (
	"bytes"
	"io"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Operation status
// --------------------------------------------------------------------------

// Status is the outcome of a single send/receive call. Exactly one status is
// set per call; statuses are mutually exclusive and terminal for that call.
type Status int

const (
	// StatusSuccess means the full byte count was transferred
	StatusSuccess Status = iota
	// StatusTimeout means the deadline elapsed before the transfer finished.
	// The connection stays usable for the next call.
	StatusTimeout
	// StatusCanceled means the caller-supplied cancel signal fired first
	StatusCanceled
	// StatusDisconnected means a stream level fault terminated the connection
	StatusDisconnected
	// StatusClientNotFound means the connection identity is unknown to the
	// registry (server side lookups only)
	StatusClientNotFound
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusTimeout:
		return "Timeout"
	case StatusCanceled:
		return "Canceled"
	case StatusDisconnected:
		return "Disconnected"
	case StatusClientNotFound:
		return "ClientNotFound"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Operation result
// --------------------------------------------------------------------------

// Result is returned by every read/write call. For reads, Data holds the
// received bytes on success; no data is returned on any other status beyond
// the byte counts already recorded before the failure.
type Result struct {
	// Status is the terminal outcome of the call
	Status Status

	// BytesTransferred counts the bytes moved before the call resolved
	BytesTransferred int

	// Data holds the received bytes (reads only, StatusSuccess only)
	Data []byte
}

// Reader returns the received bytes as a sequential, non-restartable stream
func (r *Result) Reader() io.Reader {
	return bytes.NewReader(r.Data)
}

// SuccessResult builds a StatusSuccess result for n transferred bytes
func SuccessResult(n int, data []byte) Result {
	return Result{Status: StatusSuccess, BytesTransferred: n, Data: data}
}

// --------------------------------------------------------------------------
// Disconnect reasons
// --------------------------------------------------------------------------

// DisconnectReason describes why a connection was torn down
type DisconnectReason int

const (
	// ReasonNormal is a caller-initiated close or an I/O level fault
	ReasonNormal DisconnectReason = iota
	// ReasonKicked is an explicit server-side disconnect
	ReasonKicked
	// ReasonDeclined means admission control rejected the connection
	ReasonDeclined
	// ReasonMonitor means the liveness monitor detected the loss
	ReasonMonitor
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonNormal:
		return "Normal"
	case ReasonKicked:
		return "Kicked"
	case ReasonDeclined:
		return "ConnectionDeclined"
	case ReasonMonitor:
		return "Monitor"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Connection info
// --------------------------------------------------------------------------

// ConnectionInfo is the identity payload passed to notification handlers
// and returned by server side enumeration
type ConnectionInfo struct {
	// ID is the opaque identity, stable for the connection's lifetime
	ID uuid.UUID

	// RemoteAddr is the peer address in host:port form
	RemoteAddr string

	// Name is the caller-settable display name (server side, opaque to the core)
	Name string
}
