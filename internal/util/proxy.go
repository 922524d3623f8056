package util

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// NewProxyFunc creates a proxy function based on configuration.
// If no proxy URLs are provided, falls back to environment variables.
func NewProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// NewTransport builds an HTTP transport for the configured proxies. A socks5
// proxy URL in either setting routes every connection through that proxy;
// http(s) proxy URLs are handled per request scheme.
func NewTransport(httpProxy, httpsProxy string, timeout time.Duration) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	for _, raw := range []string{httpsProxy, httpProxy} {
		if !isSOCKS(raw) {
			continue
		}
		proxyURL, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse proxy URL: %w", err)
		}
		dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("create socks dialer: %w", err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks dialer for %s does not support contexts", proxyURL.Host)
		}
		transport.Proxy = nil
		transport.DialContext = contextDialer.DialContext
		return transport, nil
	}

	transport.Proxy = NewProxyFunc(httpProxy, httpsProxy)
	return transport, nil
}

func isSOCKS(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "socks5://") || strings.HasPrefix(lower, "socks5h://")
}
