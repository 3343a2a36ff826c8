package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultBufferSize is the chunk size for send/receive transfers (64 KB)
	DefaultBufferSize = 64 * 1024

	// DefaultMonitorInterval is the pause between two liveness probes
	DefaultMonitorInterval = time.Second

	// DefaultMaxConnections caps the number of simultaneously admitted
	// connections on the server side
	DefaultMaxConnections = 4096
)

// --------------------------------------------------------------------------
// TLS settings (shared between client and server)
// --------------------------------------------------------------------------

// TLSSettings describes the optional encrypted-transport upgrade. The
// handshake runs iff Enabled is set; a connection never becomes visible to
// send/receive calls when the handshake fails.
type TLSSettings struct {
	// Enabled turns the post-connect TLS upgrade on
	Enabled bool

	// CertFile/KeyFile hold the PEM encoded certificate material. Required
	// for servers, optional for clients (unless MutuallyAuthenticate is set)
	CertFile string
	KeyFile  string

	// AcceptInvalidCerts disables chain validation of the peer certificate
	AcceptInvalidCerts bool

	// MutuallyAuthenticate additionally requires both peers to present a
	// certificate during the handshake
	MutuallyAuthenticate bool

	// ServerName is the expected peer name for chain validation (client only,
	// ignored when AcceptInvalidCerts is set)
	ServerName string
}

// --------------------------------------------------------------------------
// Socket tuning (shared between client and server)
// --------------------------------------------------------------------------

// SocketSettings holds TCP level knobs applied to every established
// connection. Zero values leave the OS defaults untouched.
type SocketSettings struct {
	NoDelay         bool
	KeepAliveSec    int
	LingerSec       int // -1 leaves the OS default
	ReadBufferSize  int
	WriteBufferSize int
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientSettings holds all configuration parameters for a client facade.
// Settings are read once at Connect; later mutation has no effect.
type ClientSettings struct {
	// Endpoint is the remote address in host:port form
	Endpoint string

	// BufferSize is the maximum chunk size for a single read/write syscall
	BufferSize int

	// EnableMonitor starts the per-connection liveness loop after the
	// connection becomes usable
	EnableMonitor bool

	// MonitorInterval is the pause between two liveness probes
	MonitorInterval time.Duration

	// TLS configures the optional encrypted-transport upgrade
	TLS TLSSettings

	// Socket holds TCP level tuning knobs
	Socket SocketSettings

	// LogLevel is the level at which logs will be output (debug, info, warn, error)
	LogLevel string
}

// NewClientSettings returns client settings with the package defaults applied
func NewClientSettings(endpoint string) ClientSettings {
	return ClientSettings{
		Endpoint:        endpoint,
		BufferSize:      DefaultBufferSize,
		EnableMonitor:   true,
		MonitorInterval: DefaultMonitorInterval,
		Socket:          SocketSettings{NoDelay: true, LingerSec: -1},
		LogLevel:        "info",
	}
}

// Validate checks the settings for invalid values. Invalid values fail here
// instead of being silently clamped.
func (c *ClientSettings) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", c.BufferSize)
	}
	if c.EnableMonitor && c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %v", c.MonitorInterval)
	}
	if c.TLS.MutuallyAuthenticate && !c.TLS.Enabled {
		return fmt.Errorf("mutual authentication requires TLS to be enabled")
	}
	if c.TLS.MutuallyAuthenticate && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("mutual authentication requires a client certificate and key")
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ClientSettings) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client")
	addField("Endpoint", c.Endpoint)
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.BufferSize))
	addField("Monitor", strconv.FormatBool(c.EnableMonitor))
	if c.EnableMonitor {
		addField("Monitor Interval", c.MonitorInterval.String())
	}

	addSection("TLS")
	addField("Enabled", strconv.FormatBool(c.TLS.Enabled))
	if c.TLS.Enabled {
		addField("Accept Invalid Certs", strconv.FormatBool(c.TLS.AcceptInvalidCerts))
		addField("Mutual Auth", strconv.FormatBool(c.TLS.MutuallyAuthenticate))
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerSettings holds all configuration parameters for a server facade
type ServerSettings struct {
	// Endpoint is the listen address in host:port form
	Endpoint string

	// BufferSize is the maximum chunk size for a single read/write syscall
	BufferSize int

	// EnableMonitor starts a liveness loop per admitted connection
	EnableMonitor bool

	// MonitorInterval is the pause between two liveness probes
	MonitorInterval time.Duration

	// MaxConnections stops the accept loop (without closing existing
	// connections) while the registry is at capacity
	MaxConnections int

	// AllowList admits only the listed remote addresses when non-empty
	AllowList []string

	// BlockList rejects the listed remote addresses when non-empty.
	// An address must pass the allow list AND not match the block list.
	BlockList []string

	// TLS configures the optional encrypted-transport upgrade
	TLS TLSSettings

	// Socket holds TCP level tuning knobs
	Socket SocketSettings

	// LogLevel is the level at which logs will be output (debug, info, warn, error)
	LogLevel string
}

// NewServerSettings returns server settings with the package defaults applied
func NewServerSettings(endpoint string) ServerSettings {
	return ServerSettings{
		Endpoint:        endpoint,
		BufferSize:      DefaultBufferSize,
		EnableMonitor:   true,
		MonitorInterval: DefaultMonitorInterval,
		MaxConnections:  DefaultMaxConnections,
		Socket:          SocketSettings{NoDelay: true, LingerSec: -1},
		LogLevel:        "info",
	}
}

// Validate checks the settings for invalid values
func (c *ServerSettings) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", c.BufferSize)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be positive, got %d", c.MaxConnections)
	}
	if c.EnableMonitor && c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %v", c.MonitorInterval)
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("TLS requires a server certificate and key")
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerSettings) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Endpoint", c.Endpoint)
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.BufferSize))
	addField("Max Connections", strconv.Itoa(c.MaxConnections))
	addField("Monitor", strconv.FormatBool(c.EnableMonitor))
	if c.EnableMonitor {
		addField("Monitor Interval", c.MonitorInterval.String())
	}

	addSection("Admission")
	if len(c.AllowList) == 0 {
		addField("Allow List", "(empty - all addresses pass)")
	} else {
		addField("Allow List", strings.Join(c.AllowList, ", "))
	}
	if len(c.BlockList) == 0 {
		addField("Block List", "(empty)")
	} else {
		addField("Block List", strings.Join(c.BlockList, ", "))
	}

	addSection("TLS")
	addField("Enabled", strconv.FormatBool(c.TLS.Enabled))
	if c.TLS.Enabled {
		addField("Certificate", c.TLS.CertFile)
		addField("Accept Invalid Certs", strconv.FormatBool(c.TLS.AcceptInvalidCerts))
		addField("Mutual Auth", strconv.FormatBool(c.TLS.MutuallyAuthenticate))
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
