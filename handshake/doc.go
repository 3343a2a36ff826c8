// Package handshake negotiates the optional encrypted-transport upgrade over
// an established byte stream, in either the initiating (client) or accepting
// (server) role. On failure the connection must be torn down by the caller
// and never becomes visible to send/receive calls.
//
// The package focuses on:
//   - A symmetric Negotiate contract for both roles
//   - Enforcing that the resulting channel is encrypted and authenticated,
//     and additionally mutually authenticated when the policy requires it
//   - An optional permissive mode that accepts any peer certificate at the
//     application layer instead of running chain validation
package handshake
