// Package httpclient builds the pooled *http.Client instances the four
// remote model-service adapters share. One client per service, each
// tuned for that service's call pattern, the same way the teacher tunes
// a client per external API instead of using http.DefaultClient everywhere.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Config controls connection pooling and timeouts for one client.
type Config struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	ResponseTimeout     time.Duration
}

// DefaultConfig is a moderate-concurrency, moderate-timeout baseline.
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     30 * time.Second,
	}
}

// ClassifierConfig allows long-running LLM completions with modest
// concurrency — one request often holds the connection for seconds.
func ClassifierConfig(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.MaxIdleConnsPerHost = 10
	cfg.MaxConnsPerHost = 10
	cfg.ResponseTimeout = timeout
	return cfg
}

// EmbedderConfig allows higher concurrency for batched embedding calls,
// which are individually cheap but fired in bursts per pipeline batch.
func EmbedderConfig(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.MaxIdleConnsPerHost = 32
	cfg.MaxConnsPerHost = 32
	cfg.ResponseTimeout = timeout
	return cfg
}

// New builds a pooled *http.Client from cfg.
func New(cfg Config) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseTimeout,
	}
	return &http.Client{Transport: transport, Timeout: cfg.ResponseTimeout}
}
