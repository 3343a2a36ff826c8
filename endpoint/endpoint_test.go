package endpoint

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		want    Endpoint
		wantErr bool
	}{
		{"ipv4", "127.0.0.1:9000", Endpoint{Host: "127.0.0.1", Port: 9000}, false},
		{"hostname", "localhost:80", Endpoint{Host: "localhost", Port: 80}, false},
		{"ipv6", "[::1]:9000", Endpoint{Host: "::1", Port: 9000}, false},
		{"max port", "example.com:65535", Endpoint{Host: "example.com", Port: 65535}, false},
		{"missing port", "127.0.0.1", Endpoint{}, true},
		{"missing host", ":9000", Endpoint{}, true},
		{"port zero", "127.0.0.1:0", Endpoint{}, true},
		{"port too large", "127.0.0.1:65536", Endpoint{}, true},
		{"negative port", "127.0.0.1:-1", Endpoint{}, true},
		{"non-numeric port", "127.0.0.1:http", Endpoint{}, true},
		{"empty", "", Endpoint{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		ep   Endpoint
		want string
	}{
		{Endpoint{Host: "127.0.0.1", Port: 9000}, "127.0.0.1:9000"},
		{Endpoint{Host: "::1", Port: 9000}, "[::1]:9000"},
		{Endpoint{Host: "localhost", Port: 80}, "localhost:80"},
	}

	for _, tt := range tests {
		if got := tt.ep.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestResolveIPLiteralPassesThrough(t *testing.T) {
	ep, err := Resolve("127.0.0.1:9000")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ep.Host != "127.0.0.1" || ep.Port != 9000 {
		t.Errorf("Resolve returned %+v", ep)
	}
}

func TestResolveLocalhost(t *testing.T) {
	ep, err := Resolve("localhost:9000")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ep.Port != 9000 {
		t.Errorf("expected port 9000, got %d", ep.Port)
	}
	if ep.Host == "localhost" {
		t.Error("expected localhost to resolve to an IP literal")
	}
}
