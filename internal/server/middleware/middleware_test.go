package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "10.0.0.1, 172.16.0.1"}, "1.2.3.4:555", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.2"}, "1.2.3.4:555", "10.0.0.2"},
		{"remote addr", nil, "1.2.3.4:555", "1.2.3.4"},
		{"no port", nil, "1.2.3.4", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := clientIP(r); got != tt.want {
				t.Fatalf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLimitersArePerIPAndSwept(t *testing.T) {
	l := &ipLimiters{rps: rate.Limit(1), burst: 1, m: make(map[string]*ipLimiter)}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if !l.allow("a", now) || l.allow("a", now) {
		t.Fatal("a: want one token then refusal")
	}
	if !l.allow("b", now) {
		t.Fatal("b should have its own bucket")
	}
	if !l.allow("a", now.Add(time.Second)) {
		t.Fatal("a should refill after 1s")
	}

	later := now.Add(limiterIdleTTL + 2*time.Second)
	l.allow("c", later)
	if _, ok := l.m["a"]; ok {
		t.Fatal("idle limiter for a was not swept")
	}
	if len(l.m) != 1 {
		t.Fatalf("limiters = %d, want 1", len(l.m))
	}
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "bearer  abc ")
	if got := extractToken(r); got != "abc" {
		t.Fatalf("token = %q", got)
	}
	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Basic xyz")
	r.Header.Set("X-API-Key", "k")
	if got := extractToken(r); got != "k" {
		t.Fatalf("token = %q", got)
	}
}
