// Package common provides the shared building blocks for the stcp connection
// substrate: configuration structs, operation results, disconnect reasons,
// the notification hub and transfer statistics. It contains no networking
// code itself and is imported by every other package in the module.
//
// The package focuses on:
//   - Validated, immutable-after-construction settings for clients and servers
//   - Operation results as status values instead of errors (network conditions
//     are outcomes, not faults)
//   - Callback registration with per-handler failure isolation
//   - Thread-safe transfer and admission counters
//
// Key Components:
//
//   - ClientSettings/ServerSettings: configuration consumed by the facades.
//     Validation happens eagerly via Validate(); invalid values are rejected,
//     never clamped.
//
//   - Result/Status: the outcome of every send/receive call. Exactly one
//     status is set per call and statuses are terminal for that call.
//
//   - Events: the notification hub. A panicking handler is logged and swallowed
//     so it can neither interrupt the remaining handlers nor the caller.
//
//   - Statistics: atomic accumulators for transferred bytes and connection
//     admission outcomes, mirrored into VictoriaMetrics counters.
package common
