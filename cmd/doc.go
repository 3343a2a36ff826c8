// Package cmd implements the command-line interface for the stcp connection
// substrate. It provides a hierarchical command structure with a demo server
// and a demo client built on the public facades.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the demo echo server
//   - echo: Commands for connecting to a server and exchanging a payload
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See stcp -help for a list of all commands.
package cmd
