// Package conn implements the per-connection core of the stcp substrate: the
// Connection type, the exclusive-access direction locks, the exact-count I/O
// executor and the liveness monitor. It is shared by the client and server
// facades and contains no accept/dial logic of its own.
//
// The package focuses on:
//   - Exact-count blocking sends and receives, chunked to a configured buffer
//     size, with unbounded, deadline-bounded and caller-cancelable modes
//   - One exclusive lock per transfer direction, acquired with a short polling
//     interval so a concurrent teardown is observed promptly
//   - Deadline-by-race: the transfer runs as an independent goroutine raced
//     against a timer; the loser is signaled to stop via an expired stream
//     deadline and its partial effect on buffers is undefined
//   - A periodic liveness loop that detects disconnection between
//     application-level operations
//
// Key Components:
//
//   - Connection: one established TCP stream (plain or TLS upgraded) with a
//     stable opaque identity, a lifetime context and a liveness flag. Once
//     torn down a Connection is never reused.
//
//   - Monitor: the background loop started after a connection becomes usable.
//     Each tick it briefly takes the write lock, performs a zero-length write
//     and a non-blocking peek, and treats any probe failure as loss.
//
// Thread Safety:
//
//	At most one read and one write are in flight per connection at any
//	instant; a read and a write on the same connection may proceed
//	concurrently. Teardown is idempotent since the executor, the monitor and
//	the owning facade can race to call it.
package conn
