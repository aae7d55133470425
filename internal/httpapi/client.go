// Package httpapi is the small JSON-over-HTTP client shared by the remote artifact
// store and the CRM and Motion delivery adapters.
package httpapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Auth decorates outgoing requests with credentials.
type Auth func(*http.Request)

// BearerAuth sets "Authorization: Bearer <token>".
func BearerAuth(token string) Auth {
	token = strings.TrimSpace(token)
	return func(r *http.Request) {
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// HeaderAuth sets a single header, e.g. X-API-Key.
func HeaderAuth(name, value string) Auth {
	value = strings.TrimSpace(value)
	return func(r *http.Request) {
		if value != "" {
			r.Header.Set(name, value)
		}
	}
}

// Config configures a Client.
type Config struct {
	// Service names the remote in errors and logs ("crm", "motion", ...).
	Service string
	BaseURL string
	Auth    Auth
	// CAPath optionally points at a PEM bundle to trust for TLS.
	CAPath  string
	Timeout time.Duration
	// HTTPClient overrides the transport entirely (tests).
	HTTPClient *http.Client
}

// Client issues requests relative to a base URL.
type Client struct {
	service string
	base    *url.URL
	auth    Auth
	http    *http.Client
}

// Response is a completed, fully-read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	name := strings.TrimSpace(cfg.Service)
	if name == "" {
		name = "http"
	}
	base, err := ParseBaseURL(cfg.BaseURL, name)
	if err != nil {
		return nil, err
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc, err = NewHTTPClient(cfg.CAPath, cfg.Timeout)
		if err != nil {
			return nil, err
		}
	}
	auth := cfg.Auth
	if auth == nil {
		auth = func(*http.Request) {}
	}
	return &Client{service: name, base: base, auth: auth, http: hc}, nil
}

// ParseBaseURL normalizes a base URL so relative paths resolve beneath it.
func ParseBaseURL(raw string, name string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%s base URL is required", name)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s base URL: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s base URL must include a host (got %q)", name, raw)
	}
	// A trailing slash makes ResolveReference treat the path as a directory.
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// NewHTTPClient returns a client that optionally trusts the PEM bundle at caPath.
func NewHTTPClient(caPath string, timeout time.Duration) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if strings.TrimSpace(caPath) != "" {
		b, err := os.ReadFile(strings.TrimSpace(caPath))
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(b); !ok {
			return nil, fmt.Errorf("parse CA bundle PEM: no certs found")
		}
		tr.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

// Resolve returns the absolute URL for a path relative to the base.
func (c *Client) Resolve(p string) *url.URL {
	return c.base.ResolveReference(&url.URL{Path: strings.TrimLeft(p, "/")})
}

// Do sends one request. Non-2xx responses come back as *HTTPError alongside the
// read response so callers can special-case statuses like 404.
func (c *Client) Do(ctx context.Context, op, method, p string, body []byte, header http.Header) (Response, error) {
	u := c.Resolve(p)
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return Response{}, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}
	out := Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}
	if resp.StatusCode/100 != 2 {
		return out, NewHTTPError(c.service, op, resp, b)
	}
	return out, nil
}

// PostJSON marshals in, POSTs it, and decodes a JSON reply into out (when non-nil).
func (c *Client) PostJSON(ctx context.Context, op, p string, in any, out any, header http.Header) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")
	resp, err := c.Do(ctx, op, http.MethodPost, p, b, header)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", op, err)
	}
	return nil
}
