package clientpool

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"time"

	"golang.org/x/net/http2"

	"github.com/abdul-hamid-achik/httpbridge/packages/httperr"
)

// Client is a configured, connection-pooling HTTP client. It is safe for
// concurrent use and immutable after New returns.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport
	config     Config
}

// New builds a client from cfg. Zero fields take their defaults. A build
// failure is returned as is and never retried.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	if cfg.DialContext != nil {
		transport.DialContext = cfg.DialContext
	}

	if cfg.Proxy != "" {
		proxyURL, err := neturl.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if cfg.PreferHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("configuring HTTP/2: %w", err)
		}
	}

	maxRedirects := cfg.MaxRedirects
	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if maxRedirects < 0 {
			return http.ErrUseLastResponse
		}
		if len(via) > maxRedirects {
			return httperr.ErrTooManyRedirects
		}
		return nil
	}

	return &Client{
		httpClient: &http.Client{
			Transport:     transport,
			CheckRedirect: redirectPolicy,
		},
		transport: transport,
		config:    cfg,
	}, nil
}

// Config returns a copy of the configuration the client was built from.
func (c *Client) Config() Config {
	return c.config
}

// Timeout returns the default whole-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.config.Timeout
}

// HTTP exposes the underlying *http.Client.
func (c *Client) HTTP() *http.Client {
	return c.httpClient
}

// Do sends req with the exchange, body included, bounded by timeout. A
// non-positive timeout uses the client default. The deadline is released
// when the response body is closed, so callers must always close it.
func (c *Client) Do(req *http.Request, timeout time.Duration) (*http.Response, error) {
	if timeout <= 0 {
		timeout = c.config.Timeout
	}

	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	req = req.WithContext(ctx)

	if req.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// CloseIdleConnections drops idle pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
