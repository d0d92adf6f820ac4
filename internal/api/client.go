// Package api talks to the Affectra backend. Every request is stamped with
// the session CSRF token, carries the origin's cookies and bypasses caches;
// failures come back as TransportError, ProtocolError or ValidationError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CSRFHeader carries the token on every request.
const CSRFHeader = "X-CSRFToken"

// CSRFField is the form field mutating form posts carry the token in.
const CSRFField = "csrf_token"

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer receives one call per finished request.
type Observer interface {
	ObserveRequest(path, outcome string, elapsed time.Duration)
}

// Request outcomes reported to the Observer.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeProtocol  = "protocol_error"
)

// Options configures a Client.
type Options struct {
	// Token is the CSRF token. It may be left empty and loaded later with
	// LoadToken.
	Token string
	// HTTPClient overrides the default cookie-jar client.
	HTTPClient Doer
	// Timeout applies to the default client. Zero leaves the transport
	// default in place.
	Timeout  time.Duration
	Observer Observer
	// Header is merged under every request's own headers.
	Header http.Header
}

// Client issues CSRF-stamped requests against one backend origin.
type Client struct {
	base     *url.URL
	http     Doer
	observer Observer
	defaults http.Header

	mu    sync.RWMutex
	token string
}

// Request describes one call. At most one of JSON and Form is used.
type Request struct {
	Method string
	Path   string
	JSON   any
	Form   url.Values
	Header http.Header
}

// New returns a client for the backend at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", baseURL)
	}

	doer := opts.HTTPClient
	if doer == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		doer = &http.Client{
			Jar:           jar,
			Timeout:       opts.Timeout,
			CheckRedirect: sameOrigin(base),
		}
	}

	defaults := http.Header{
		"Accept":           {"application/json"},
		"Cache-Control":    {"no-cache"},
		"Pragma":           {"no-cache"},
		"X-Requested-With": {"XMLHttpRequest"},
	}
	for k, vs := range opts.Header {
		defaults[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	return &Client{
		base:     base,
		http:     doer,
		observer: opts.Observer,
		defaults: defaults,
		token:    opts.Token,
	}, nil
}

// sameOrigin refuses redirects that would carry credentials elsewhere.
func sameOrigin(base *url.URL) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		if req.URL.Scheme != base.Scheme || req.URL.Host != base.Host {
			return fmt.Errorf("refusing cross-origin redirect to %s", req.URL.Host)
		}
		return nil
	}
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string { return c.base.String() }

// Token returns the CSRF token in use.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// URL resolves path against the backend origin.
func (c *Client) URL(path string) string {
	u := *c.base
	rel, err := url.Parse(path)
	if err != nil {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
		return u.String()
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(rel.Path, "/")
	u.RawQuery = rel.RawQuery
	return u.String()
}

// Do sends r and returns the JSON body of a successful reply.
func (c *Client) Do(ctx context.Context, r Request) (json.RawMessage, error) {
	start := time.Now()
	body, err := c.do(ctx, r)
	if c.observer != nil {
		outcome := OutcomeOK
		var pe *ProtocolError
		switch {
		case errors.As(err, &pe):
			outcome = OutcomeProtocol
		case err != nil:
			outcome = OutcomeTransport
		}
		c.observer.ObserveRequest(r.Path, outcome, time.Since(start))
	}
	return body, err
}

func (c *Client) do(ctx context.Context, r Request) (json.RawMessage, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	transportErr := func(status int, msg string, err error) *TransportError {
		return &TransportError{Method: method, Path: r.Path, StatusCode: status, Message: msg, Err: err}
	}

	token := c.Token()
	var payload io.Reader
	contentType := ""
	switch {
	case r.Form != nil:
		form := url.Values{}
		for k, vs := range r.Form {
			form[k] = append([]string(nil), vs...)
		}
		if form.Get(CSRFField) == "" && token != "" {
			form.Set(CSRFField, token)
		}
		payload = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", r.Path, err)
		}
		payload = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(r.Path), payload)
	if err != nil {
		return nil, transportErr(0, "", err)
	}
	for k, vs := range c.defaults {
		req.Header[k] = append([]string(nil), vs...)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set(CSRFHeader, token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	for k, vs := range r.Header {
		req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportErr(0, "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, transportErr(resp.StatusCode, "", fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := envelopeMessage(data)
		return nil, transportErr(resp.StatusCode, msg, nil)
	}

	if err := checkEnvelope(r.Path, data); err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// checkEnvelope flags 2xx replies whose body reports a failure through a
// status field outside {ok, success} or a false success flag.
func checkEnvelope(path string, data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &ProtocolError{Path: path, Message: "empty response"}
	}
	if !json.Valid(trimmed) {
		return &ProtocolError{Path: path, Message: "invalid JSON response"}
	}
	if trimmed[0] != '{' {
		return nil
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return &ProtocolError{Path: path, Message: "invalid JSON response"}
	}
	msg, _ := envelopeMessage(trimmed)

	if raw, ok := env["status"]; ok {
		var status string
		if err := json.Unmarshal(raw, &status); err != nil || (status != "ok" && status != "success") {
			return &ProtocolError{Path: path, Status: status, Message: msg}
		}
	}
	if raw, ok := env["success"]; ok {
		var success bool
		if err := json.Unmarshal(raw, &success); err != nil || !success {
			return &ProtocolError{Path: path, Message: msg}
		}
	}
	return nil
}

// envelopeMessage pulls the best human readable message out of a JSON body:
// "error" first for failures that carry both, then "message".
func envelopeMessage(data []byte) (string, bool) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return "", false
	}
	for _, key := range []string{"error", "message"} {
		raw, ok := env[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s, true
		}
	}
	return "", false
}

// GetJSON issues a GET and decodes the reply into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.decode(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

// PostJSON posts body as JSON and decodes the reply into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	if body == nil {
		body = struct{}{}
	}
	return c.decode(ctx, Request{Method: http.MethodPost, Path: path, JSON: body}, out)
}

// PostForm posts form url-encoded (the CSRF field is added) and decodes the
// reply into out.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	if form == nil {
		form = url.Values{}
	}
	return c.decode(ctx, Request{Method: http.MethodPost, Path: path, Form: form}, out)
}

func (c *Client) decode(ctx context.Context, r Request, out any) error {
	body, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ProtocolError{Path: r.Path, Message: fmt.Sprintf("unexpected response shape: %v", err)}
	}
	return nil
}
