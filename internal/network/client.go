package network

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Noooste/azuretls-client"
	"golang.org/x/net/proxy"
)

// ClientFactory creates HTTP clients for feed fetching with proxy configuration.
type ClientFactory struct {
	proxyURL       string
	testHTTPClient *http.Client // For testing only
}

// NewClientFactory creates a new client factory. An empty proxyURL means a
// direct connection.
func NewClientFactory(proxyURL string) *ClientFactory {
	return &ClientFactory{proxyURL: strings.TrimSpace(proxyURL)}
}

// NewClientFactoryForTest creates a client factory that uses the given http.Client for testing.
// This is only for use in tests.
func NewClientFactoryForTest(client *http.Client) *ClientFactory {
	return &ClientFactory{testHTTPClient: client}
}

// NewHTTPClient creates a standard http.Client with proxy configuration.
func (f *ClientFactory) NewHTTPClient(timeout time.Duration) *http.Client {
	if f.testHTTPClient != nil {
		return f.testHTTPClient
	}

	client := &http.Client{Timeout: timeout}
	if f.proxyURL != "" {
		client.Transport = newTransportWithProxy(f.proxyURL)
	}
	return client
}

// NewAzureSession creates a Chrome-fingerprinted azuretls.Session with proxy configuration.
func (f *ClientFactory) NewAzureSession(ctx context.Context, timeout time.Duration) *azuretls.Session {
	session := azuretls.NewSessionWithContext(ctx)
	session.Browser = azuretls.Chrome
	session.SetTimeout(timeout)

	if f.proxyURL != "" {
		_ = session.SetProxy(f.proxyURL)
	}

	return session
}

// ProxyURL returns the configured proxy URL with any password masked.
func (f *ClientFactory) ProxyURL() string {
	parsed, err := url.Parse(f.proxyURL)
	if err != nil {
		return f.proxyURL
	}
	return parsed.Redacted()
}

// newTransportWithProxy creates an http.Transport with proper proxy support.
// For SOCKS5 proxies, it uses golang.org/x/net/proxy for correct handling.
// For HTTP/HTTPS proxies, it uses the standard http.ProxyURL.
func newTransportWithProxy(proxyURL string) *http.Transport {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return &http.Transport{}
	}

	if strings.HasPrefix(parsed.Scheme, "socks") {
		var auth *proxy.Auth
		if parsed.User != nil {
			auth = &proxy.Auth{
				User: parsed.User.Username(),
			}
			if password, ok := parsed.User.Password(); ok {
				auth.Password = password
			}
		}

		dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
		if err != nil {
			return &http.Transport{}
		}

		return &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(proxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			},
		}
	}

	return &http.Transport{
		Proxy: http.ProxyURL(parsed),
	}
}
