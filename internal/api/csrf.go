package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoToken is returned when a page carries no CSRF meta tag.
var ErrNoToken = errors.New("no csrf-token meta tag found")

var tokenMetaNames = map[string]bool{
	"csrf-token": true,
	"csrf_token": true,
	"_csrf":      true,
}

// ParseToken scans an HTML document for <meta name="csrf-token" content=...>.
// Scanning stops at the end of <head>.
func ParseToken(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && err != io.EOF {
				return "", fmt.Errorf("parse page: %w", err)
			}
			return "", ErrNoToken
		case html.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Head {
				return "", ErrNoToken
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.Meta {
				continue
			}
			var name, content string
			var hasContent bool
			for _, a := range tok.Attr {
				switch strings.ToLower(a.Key) {
				case "name":
					name = strings.ToLower(a.Val)
				case "content":
					content, hasContent = a.Val, true
				}
			}
			if tokenMetaNames[name] && hasContent && strings.TrimSpace(content) != "" {
				return strings.TrimSpace(content), nil
			}
		}
	}
}

// LoadToken fetches the backend page at path and adopts the CSRF token from
// its metadata. A token that is already set is kept.
func (c *Client) LoadToken(ctx context.Context, path string) (string, error) {
	if tok := c.Token(); tok != "" {
		return tok, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransportError{Method: http.MethodGet, Path: path, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransportError{Method: http.MethodGet, Path: path, StatusCode: resp.StatusCode}
	}

	tok, err := ParseToken(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		c.token = tok
	}
	return c.token, nil
}
