// Package server implements the listening side of the stcp substrate: the
// connection registry, the accept loop with admission control and the public
// facade keyed by connection identity.
//
// The package focuses on:
//   - A registry mapping connection identity to connection state, guarded by
//     a single coarse lock for all mutation and enumeration
//   - Admission control: capacity cap plus address allow/block lists; the
//     allow list takes precedence when both are configured
//   - Gating: an admitted connection only becomes visible to Send/Receive
//     calls after the transport handshake succeeded, and the liveness
//     monitor starts at the same moment
//
// Key Components:
//
//   - Registry: identity-keyed map with add/remove/enumerate plus a linear
//     address lookup kept as a legacy compatibility path. List returns a
//     copy, never a live view.
//
//   - Server: the facade. Start launches the accept loop; while the registry
//     is at capacity the loop pauses accepting without closing existing
//     connections and resumes when the count drops.
package server
