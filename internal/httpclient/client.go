// Package httpclient provides the HTTP client factory shared by components
// that talk to the wiki.
package httpclient

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

// ClientConfig holds configuration options for creating HTTP clients.
type ClientConfig struct {
	// MaxIdleConnsPerHost controls keep-alive connections to the wiki host.
	// All scraper traffic goes to a single fandom host, so per-host matters
	// more than the global pool.
	MaxIdleConnsPerHost int

	// MaxIdleConns controls the idle connection pool across all hosts.
	MaxIdleConns int

	// IdleConnTimeout is how long an idle connection stays open.
	IdleConnTimeout time.Duration

	// Timeout limits a whole request, including reading the body.
	Timeout time.Duration

	// DialTimeout limits establishing a new connection.
	DialTimeout time.Duration

	// TLSHandshakeTimeout limits the TLS handshake.
	TLSHandshakeTimeout time.Duration
}

// getEnvDuration reads a duration from an environment variable, returning
// the default if not set or invalid. Accepts plain integers (seconds) or Go
// duration strings ("90s", "2m").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return defaultVal
}

// DefaultConfig returns a ClientConfig tuned for MediaWiki API calls: many
// small requests against one host. The overall timeout can be overridden
// via WIKI_HTTP_TIMEOUT (seconds or Go duration format, default 30s).
func DefaultConfig() ClientConfig {
	return ClientConfig{
		MaxIdleConnsPerHost: 10,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		Timeout:             getEnvDuration("WIKI_HTTP_TIMEOUT", 30*time.Second),
		DialTimeout:         5 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// New creates an HTTP client with the provided configuration. If config is
// nil, DefaultConfig() is used.
func New(config *ClientConfig) *http.Client {
	if config == nil {
		cfg := DefaultConfig()
		config = &cfg
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: config.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}
