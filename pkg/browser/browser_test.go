package browser

import (
	"testing"
	"time"
)

func TestHostOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/path", "example.com"},
		{"http://sub.example.com:8080/x", "sub.example.com"},
		{"not a url at all\x7f", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := hostOf(tt.url); got != tt.want {
			t.Errorf("hostOf(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestNewDefaultTimeout(t *testing.T) {
	b := New(0, "")
	if b.timeout != 15*time.Second {
		t.Errorf("default timeout = %v", b.timeout)
	}
	b = New(5*time.Second, "agent")
	if b.timeout != 5*time.Second || b.userAgent != "agent" {
		t.Errorf("options not applied: %+v", b)
	}
}
