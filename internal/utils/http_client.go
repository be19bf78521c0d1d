package utils

import (
	"crypto/tls"
	"net/http"
	"time"
)

// DefaultHTTPTimeout applies when a caller passes a zero timeout.
const DefaultHTTPTimeout = 30 * time.Second

// NewHTTPClient returns a pooled client for outbound provider calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
