// Package httputil provides shared HTTP utilities with connection pooling
// and safe response handling for the PhishGuard pipeline.
package httputil

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// MaxResponseSize is the default maximum size for reading HTTP response bodies.
// Phishing pages are untrusted by definition; a hostile server must not be
// able to OOM the analyzer.
const MaxResponseSize = 10 * 1024 * 1024 // 10MB

// Shared transport with optimized connection pooling.
// Safe for concurrent use; reusing TCP connections matters when the content
// and metadata stages hit the same host back to back.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// TimeoutTier defines standard timeout categories for different operation types.
type TimeoutTier int

const (
	// TierFast for quick lookups like geolocation (5s)
	TierFast TimeoutTier = iota
	// TierNetwork for page fetches and header inspection (10s)
	TierNetwork
	// TierLLM for LLM inference calls that may take longer (30s)
	TierLLM
)

var timeoutDurations = map[TimeoutTier]time.Duration{
	TierFast:    5 * time.Second,
	TierNetwork: 10 * time.Second,
	TierLLM:     30 * time.Second,
}

// Singleton clients for each timeout tier - initialized once, reused everywhere.
var (
	clientFast    *http.Client
	clientNetwork *http.Client
	clientLLM     *http.Client
	clientOnce    sync.Once
)

func initClients() {
	clientFast = &http.Client{
		Timeout:   timeoutDurations[TierFast],
		Transport: sharedTransport,
	}
	clientNetwork = &http.Client{
		Timeout:   timeoutDurations[TierNetwork],
		Transport: sharedTransport,
	}
	clientLLM = &http.Client{
		Timeout:   timeoutDurations[TierLLM],
		Transport: sharedTransport,
	}
}

// Client returns a shared HTTP client for the given timeout tier.
// These clients share a connection pool and should be used instead of
// creating new http.Client instances per request.
//
// Usage:
//
//	client := httputil.Client(httputil.TierNetwork)
//	resp, err := client.Do(req)
func Client(tier TimeoutTier) *http.Client {
	clientOnce.Do(initClients)
	switch tier {
	case TierFast:
		return clientFast
	case TierNetwork:
		return clientNetwork
	case TierLLM:
		return clientLLM
	default:
		return clientNetwork
	}
}

// FastClient returns a client with 5s timeout (geolocation, quick lookups).
func FastClient() *http.Client {
	return Client(TierFast)
}

// NetworkClient returns a client with 10s timeout (page fetch, headers).
func NetworkClient() *http.Client {
	return Client(TierNetwork)
}

// LLMClient returns a client with 30s timeout (LLM inference).
func LLMClient() *http.Client {
	return Client(TierLLM)
}

// WithTimeout returns a client on the shared transport with a custom timeout,
// for callers whose limits come from configuration rather than a tier.
func WithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
	}
}

// ReadResponseBody safely reads an HTTP response body with size limits.
//
// Usage:
//
//	body, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
func ReadResponseBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// DrainAndClose properly drains and closes an HTTP response body.
// This ensures connection reuse in the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
