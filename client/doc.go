// Package client exposes the connecting-side facade of the stcp substrate:
// Connect/Disconnect plus exact-count Send and Receive operations over one
// connection, composed from the conn executor, the handshake and the
// liveness monitor.
//
// Network conditions (timeout, cancellation, disconnection) resolve as
// Result statuses; errors are reserved for programmer mistakes such as
// sending on a client that was never connected. Disconnect is idempotent.
package client
