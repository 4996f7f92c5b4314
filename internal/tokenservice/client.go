// Package tokenservice implements the HTTP client for the OAuth token
// issuing service: a GET with basic authentication that returns a JSON token
// response.
package tokenservice

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hllvc/ztoken/internal/token"
)

// probeTimeout bounds the unauthenticated reachability check used while the
// user is entering a service URL interactively.
const probeTimeout = 5 * time.Second

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithInsecure disables TLS certificate verification. Verification is on by
// default; this is an explicit opt-in for test or bootstrap environments.
func WithInsecure() ClientOption {
	return func(c *Client) {
		c.insecure = true
	}
}

// WithTransport sets a custom base transport, e.g. for request capture in
// tests. WithInsecure applies to it when it is an *http.Transport.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = transport
	}
}

// Client requests access tokens from a token service URL.
type Client struct {
	url       string
	insecure  bool
	transport http.RoundTripper
}

// New creates a Client for the given token service URL.
func New(serviceURL string, opts ...ClientOption) (*Client, error) {
	if serviceURL == "" {
		return nil, fmt.Errorf("token service URL cannot be empty")
	}

	c := &Client{url: serviceURL}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// httpClient builds the HTTP client honoring the insecure flag.
func (c *Client) httpClient() *http.Client {
	transport := c.transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if c.insecure {
		if base, ok := transport.(*http.Transport); ok {
			base = base.Clone()
			if base.TLSClientConfig == nil {
				base.TLSClientConfig = &tls.Config{}
			}
			base.TLSClientConfig.InsecureSkipVerify = true
			transport = base
		}
	}
	return &http.Client{Transport: transport}
}

// RequestToken asks the token service for a fresh access token using basic
// authentication. Only user scopes survive onto the wire; any other requested
// scope is dropped, matching what the service accepts for human users.
//
// A 401 response maps to *AuthenticationError, every other failure to
// *ServerError.
func (c *Client) RequestToken(ctx context.Context, realm string, scopes []string, user, password string) (*token.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}

	params := url.Values{}
	params.Set("json", "true")
	if realm != "" {
		params.Set("realm", realm)
	}
	// The scope parameter is sent whenever scopes were requested, even when
	// filtering left none, so the service sees an explicit empty scope.
	if len(scopes) > 0 {
		params.Set("scope", token.JoinScopes(token.FilterUserScopes(scopes)))
	}
	req.URL.RawQuery = params.Encode()
	req.SetBasicAuth(user, password)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthenticationError{Body: string(body)}
	case resp.StatusCode != http.StatusOK:
		return nil, &ServerError{Status: resp.StatusCode, Body: string(body)}
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &ServerError{Body: "token service returned invalid JSON data"}
	}

	record := token.FromWire(decoded)
	if record.AccessToken == "" {
		return nil, &ServerError{Body: "token service returned invalid JSON (access_token missing)"}
	}
	return record, nil
}

// Probe checks that a candidate token service URL is reachable at all. Any
// HTTP response counts as reachable; only transport failures are errors. The
// request is unauthenticated and bounded by a short timeout so an interactive
// URL prompt loop stays responsive.
func Probe(ctx context.Context, serviceURL string, insecure bool) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL, nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}

	transport := http.DefaultTransport
	if insecure {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	resp, err := (&http.Client{Transport: transport}).Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", serviceURL, err)
	}
	_ = resp.Body.Close()
	return nil
}
