package exchange

import (
	"net"
	"net/http"
	"time"
)

// newHTTPClient builds a connection-pooled HTTP client tuned for a
// high-frequency REST polling workload: reused keep-alive connections
// per host, a bounded dial/response timeout, and no implicit retries —
// retries are the caller's responsibility (pkg/retry).
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
