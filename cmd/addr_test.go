package cmd

import "testing"

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"port only", ":8000", false},
		{"localhost", "localhost:8000", false},
		{"ipv4", "127.0.0.1:3400", false},
		{"ipv6", "[::1]:8000", false},
		{"auto-assign port", ":0", false},
		{"missing port", "localhost", true},
		{"empty port", "localhost:", true},
		{"non-numeric port", "localhost:http", true},
		{"port too large", "localhost:70000", true},
		{"whitespace host", "bad host:8000", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddr(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAddr(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}

func TestParseRateBurst(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"unset", "", 0},
		{"valid", "120", 120},
		{"invalid", "lots", 0},
		{"negative", "-5", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SWASTH_RATE_BURST", tt.value)
			if got := parseRateBurst(); got != tt.want {
				t.Errorf("parseRateBurst() = %d, want %d", got, tt.want)
			}
		})
	}
}
