package driver

import (
	"errors"
	"testing"
)

func TestParseServer(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Server
		wantErr bool
	}{
		{name: "host and port", input: "10.0.0.1:11211", want: Server{Host: "10.0.0.1", Port: 11211}},
		{name: "hostname", input: "cache1.internal:11212", want: Server{Host: "cache1.internal", Port: 11212}},
		{name: "missing port", input: "cache1", want: Server{Host: "cache1", Port: DefaultPort}},
		{name: "ipv6 with port", input: "[::1]:11211", want: Server{Host: "::1", Port: 11211}},
		{name: "ipv6 without port", input: "[::1]", want: Server{Host: "::1", Port: DefaultPort}},
		{name: "surrounding space", input: " 10.0.0.1:11211 ", want: Server{Host: "10.0.0.1", Port: 11211}},
		{name: "empty", input: "", wantErr: true},
		{name: "empty host", input: ":11211", wantErr: true},
		{name: "non numeric port", input: "cache1:abc", wantErr: true},
		{name: "port out of range", input: "cache1:70000", wantErr: true},
		{name: "too many colons", input: "a:b:c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServer(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseServer(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseServer(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseServers_SortedAndStatusIgnored(t *testing.T) {
	servers, err := ParseServers(map[string]int{
		"10.0.0.2:11211": 0,
		"10.0.0.1:11211": 1,
	})
	if err != nil {
		t.Fatalf("ParseServers() error = %v", err)
	}

	want := []Server{
		{Host: "10.0.0.1", Port: 11211},
		{Host: "10.0.0.2", Port: 11211},
	}
	if len(servers) != len(want) {
		t.Fatalf("ParseServers() returned %d servers, want %d", len(servers), len(want))
	}
	for i := range want {
		if servers[i] != want[i] {
			t.Errorf("servers[%d] = %v, want %v", i, servers[i], want[i])
		}
	}
}

func TestParseServers_InvalidEntry(t *testing.T) {
	if _, err := ParseServers(map[string]int{"10.0.0.1:11211": 1, "bad:port": 1}); err == nil {
		t.Error("ParseServers() should fail on an invalid entry")
	}
}

func TestServer_Addr(t *testing.T) {
	if got := (Server{Host: "::1", Port: 11211}).Addr(); got != "[::1]:11211" {
		t.Errorf("Addr() = %q, want %q", got, "[::1]:11211")
	}
	if got := (Server{Host: "cache1", Port: 11211}).String(); got != "cache1:11211" {
		t.Errorf("String() = %q, want %q", got, "cache1:11211")
	}
}

func TestOpError(t *testing.T) {
	base := errors.New("connection refused")
	err := &OpError{Op: "set", Key: "k", Server: "10.0.0.1:11211", Err: base}

	if !errors.Is(err, base) {
		t.Error("OpError should unwrap to its cause")
	}
	if got := err.Error(); got != `memcache set "k" on 10.0.0.1:11211: connection refused` {
		t.Errorf("Error() = %q", got)
	}
	if got := ResultMessage(err); got != "connection refused" {
		t.Errorf("ResultMessage() = %q, want %q", got, "connection refused")
	}
	if got := ResultMessage(nil); got != "SUCCESS" {
		t.Errorf("ResultMessage(nil) = %q, want SUCCESS", got)
	}
}

func TestIsNotFound(t *testing.T) {
	wrapped := &OpError{Op: "get", Key: "k", Err: ErrNotFound}
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound() should see through OpError")
	}
	if IsNotFound(errors.New("timeout")) {
		t.Error("IsNotFound() should be false for other errors")
	}
}

func TestDistribution_String(t *testing.T) {
	if DistributionConsistent.String() != "consistent" {
		t.Errorf("DistributionConsistent.String() = %q", DistributionConsistent.String())
	}
	if DistributionModula.String() != "modula" {
		t.Errorf("DistributionModula.String() = %q", DistributionModula.String())
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.ConnectTimeout.Milliseconds() != 100 {
		t.Errorf("ConnectTimeout = %v, want 100ms", opts.ConnectTimeout)
	}
	if opts.Distribution != DistributionConsistent {
		t.Errorf("Distribution = %v, want consistent", opts.Distribution)
	}
	if !opts.RemoveFailedServers {
		t.Error("RemoveFailedServers should default to true")
	}
}
