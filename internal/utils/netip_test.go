package utils

import (
	"net/http/httptest"
	"testing"
)

func TestParseHostNoPort(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"[2001:db8::1]", "2001:db8::1"},
		{"198.51.100.7", "198.51.100.7"},
		{"  ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParseHostNoPort(tt.in); got != tt.want {
			t.Errorf("ParseHostNoPort(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{name: "peer only", want: "192.0.2.1"},
		{name: "headers ignored without trust", headers: map[string]string{"X-Forwarded-For": "203.0.113.9"}, want: "192.0.2.1"},
		{name: "cloudflare first", headers: map[string]string{"CF-Connecting-IP": "203.0.113.1", "X-Forwarded-For": "203.0.113.2"}, trustProxy: true, want: "203.0.113.1"},
		{name: "left-most forwarded", headers: map[string]string{"X-Forwarded-For": "203.0.113.2, 10.0.0.1"}, trustProxy: true, want: "203.0.113.2"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "203.0.113.3"}, trustProxy: true, want: "203.0.113.3"},
		{name: "trusted but no headers", trustProxy: true, want: "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher([]string{"10.0.0.0/8", " 192.0.2.5 ", "2001:db8::/32", "not-an-ip", ""})
	if m.IsEmpty() {
		t.Fatal("matcher should not be empty")
	}

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"192.0.2.5", true},
		{"192.0.2.6", false},
		{"::ffff:10.9.9.9", true},
		{"2001:db8:1::7", true},
		{"2001:db9::1", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := m.Allow(tt.ip); got != tt.want {
			t.Errorf("Allow(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}

	if !NewIPMatcher(nil).IsEmpty() {
		t.Error("nil list should give an empty matcher")
	}
}
