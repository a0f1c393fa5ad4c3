// Package httpclient builds HTTP clients that share one connection pool.
package httpclient

import (
	"net/http"
	"time"
)

// sharedTransport is reused by every pooled client. Benchmark runs issue many
// short requests to the same few hosts, so idle connections are kept per host.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        64,
	MaxIdleConnsPerHost: 16,
	IdleConnTimeout:     120 * time.Second,
	DisableKeepAlives:   false,
}

// NewPooledClient creates an http.Client on the shared transport.
// A non-positive timeout leaves the client without a deadline.
func NewPooledClient(timeout time.Duration) *http.Client {
	c := &http.Client{Transport: sharedTransport}
	if timeout > 0 {
		c.Timeout = timeout
	}
	return c
}
