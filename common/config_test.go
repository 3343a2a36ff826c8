package common

import (
	"strings"
	"testing"
	"time"
)

func TestClientSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ClientSettings)
		wantErr bool
	}{
		{"defaults", func(c *ClientSettings) {}, false},
		{"empty endpoint", func(c *ClientSettings) { c.Endpoint = "" }, true},
		{"zero buffer", func(c *ClientSettings) { c.BufferSize = 0 }, true},
		{"negative buffer", func(c *ClientSettings) { c.BufferSize = -1 }, true},
		{"monitor without interval", func(c *ClientSettings) { c.MonitorInterval = 0 }, true},
		{"monitor disabled ignores interval", func(c *ClientSettings) {
			c.EnableMonitor = false
			c.MonitorInterval = 0
		}, false},
		{"mutual auth without tls", func(c *ClientSettings) {
			c.TLS.MutuallyAuthenticate = true
		}, true},
		{"mutual auth without cert", func(c *ClientSettings) {
			c.TLS.Enabled = true
			c.TLS.MutuallyAuthenticate = true
		}, true},
		{"mutual auth with cert", func(c *ClientSettings) {
			c.TLS.Enabled = true
			c.TLS.MutuallyAuthenticate = true
			c.TLS.CertFile = "client.crt"
			c.TLS.KeyFile = "client.key"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := NewClientSettings("localhost:9000")
			tt.mutate(&settings)
			err := settings.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerSettings)
		wantErr bool
	}{
		{"defaults", func(c *ServerSettings) {}, false},
		{"empty endpoint", func(c *ServerSettings) { c.Endpoint = "" }, true},
		{"zero buffer", func(c *ServerSettings) { c.BufferSize = 0 }, true},
		{"zero max connections", func(c *ServerSettings) { c.MaxConnections = 0 }, true},
		{"monitor without interval", func(c *ServerSettings) { c.MonitorInterval = 0 }, true},
		{"tls without cert", func(c *ServerSettings) { c.TLS.Enabled = true }, true},
		{"tls with cert", func(c *ServerSettings) {
			c.TLS.Enabled = true
			c.TLS.CertFile = "server.crt"
			c.TLS.KeyFile = "server.key"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := NewServerSettings("0.0.0.0:9000")
			tt.mutate(&settings)
			err := settings.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientSettingsDefaults(t *testing.T) {
	settings := NewClientSettings("localhost:9000")

	if settings.BufferSize != DefaultBufferSize {
		t.Errorf("expected default buffer size %d, got %d", DefaultBufferSize, settings.BufferSize)
	}
	if !settings.EnableMonitor {
		t.Error("expected monitor enabled by default")
	}
	if settings.MonitorInterval != DefaultMonitorInterval {
		t.Errorf("expected default monitor interval %v, got %v", DefaultMonitorInterval, settings.MonitorInterval)
	}
}

func TestSettingsString(t *testing.T) {
	client := NewClientSettings("localhost:9000")
	client.MonitorInterval = 2 * time.Second
	s := client.String()
	for _, want := range []string{"localhost:9000", "2s", "CLIENT", "TLS"} {
		if !strings.Contains(s, want) {
			t.Errorf("client settings string missing %q:\n%s", want, s)
		}
	}

	server := NewServerSettings("0.0.0.0:9000")
	server.AllowList = []string{"10.0.0.1", "10.0.0.2"}
	s = server.String()
	for _, want := range []string{"0.0.0.0:9000", "10.0.0.1, 10.0.0.2", "SERVER", "ADMISSION"} {
		if !strings.Contains(s, want) {
			t.Errorf("server settings string missing %q:\n%s", want, s)
		}
	}
}
