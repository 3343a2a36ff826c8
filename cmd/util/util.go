package util

import (
	"strings"
	"time"

	"github.com/ValentinKolb/stcp/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupTransportFlags adds the flags shared by the serve and echo commands
func SetupTransportFlags(cmd *cobra.Command) {
	key := "buffer-size"
	cmd.PersistentFlags().Int(key, common.DefaultBufferSize, WrapString("Maximum chunk size in bytes for a single read/write"))

	key = "monitor"
	cmd.PersistentFlags().Bool(key, true, WrapString("Enable the per-connection liveness monitor"))

	key = "monitor-interval"
	cmd.PersistentFlags().Duration(key, common.DefaultMonitorInterval, WrapString("Pause between two liveness probes"))

	key = "tls"
	cmd.PersistentFlags().Bool(key, false, WrapString("Upgrade connections to TLS after establishment"))

	key = "tls-cert"
	cmd.PersistentFlags().String(key, "", WrapString("Path to the PEM encoded certificate"))

	key = "tls-key"
	cmd.PersistentFlags().String(key, "", WrapString("Path to the PEM encoded private key"))

	key = "tls-accept-invalid"
	cmd.PersistentFlags().Bool(key, false, WrapString("Accept peer certificates that fail chain validation"))

	key = "tls-mutual"
	cmd.PersistentFlags().Bool(key, false, WrapString("Require both peers to present a certificate"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// TLSSettingsFromViper reads the shared TLS flags into settings
func TLSSettingsFromViper() common.TLSSettings {
	return common.TLSSettings{
		Enabled:              viper.GetBool("tls"),
		CertFile:             viper.GetString("tls-cert"),
		KeyFile:              viper.GetString("tls-key"),
		AcceptInvalidCerts:   viper.GetBool("tls-accept-invalid"),
		MutuallyAuthenticate: viper.GetBool("tls-mutual"),
	}
}

// MonitorIntervalFromViper reads the monitor interval flag
func MonitorIntervalFromViper() time.Duration {
	return viper.GetDuration("monitor-interval")
}
