package infrastructure

import (
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"ukwikibot/pkg/log"
)

// NewHTTPClient returns a pooled client that negotiates HTTP/2 over TLS.
// Per-request deadlines come from the caller's context.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "[infrastructure.NewHTTPClient] http2 unavailable, using HTTP/1.1")
	}
	return &http.Client{Transport: transport}
}
