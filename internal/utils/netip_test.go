package utils

import (
	"net/http/httptest"
	"testing"
)

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher([]string{"10.0.0.0/8", " 192.168.1.5 ", "::1", "garbage", ""})
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"192.168.1.5", true},
		{"192.168.1.6", false},
		{"::1", true},
		{"::ffff:10.0.0.1", true},
		{"not-an-ip", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := m.Allow(tt.ip); got != tt.want {
			t.Errorf("Allow(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}

	if !NewIPMatcher(nil).IsEmpty() {
		t.Error("NewIPMatcher(nil).IsEmpty() = false")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", "10.0.0.1:5555", nil, false, "10.0.0.1"},
		{"ignores xff untrusted", "10.0.0.1:5555", map[string]string{"X-Forwarded-For": "1.2.3.4"}, false, "10.0.0.1"},
		{"first xff hop", "10.0.0.1:5555", map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, true, "1.2.3.4"},
		{"cloudflare wins", "10.0.0.1:5555", map[string]string{"CF-Connecting-IP": "9.9.9.9", "X-Forwarded-For": "1.2.3.4"}, true, "9.9.9.9"},
		{"x-real-ip", "10.0.0.1:5555", map[string]string{"X-Real-IP": "4.4.4.4"}, true, "4.4.4.4"},
		{"ipv6 remote", "[::1]:80", nil, false, "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
