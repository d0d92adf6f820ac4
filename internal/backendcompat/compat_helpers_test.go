package backendcompat

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dj-oyu/affectra-dashboard/internal/api"
	"github.com/dj-oyu/affectra-dashboard/internal/fakebackend"
	"github.com/dj-oyu/affectra-dashboard/internal/logger"
)

const defaultRequestTimeout = 3 * time.Second

type specClient struct {
	baseURL string
	client  *http.Client
	live    bool
}

// newSpecClient targets AFFECTRA_BASE_URL when set and skips if it is not
// reachable. Without it the contract runs against the bundled fake backend.
func newSpecClient(t *testing.T) *specClient {
	t.Helper()
	client := &http.Client{Timeout: defaultRequestTimeout}

	baseURL := strings.TrimRight(os.Getenv("AFFECTRA_BASE_URL"), "/")
	if baseURL == "" {
		store := fakebackend.NewStore(fakebackend.Camera{Name: "Webcam_0"})
		srv := httptest.NewServer(fakebackend.NewServer(store, "", logger.New(logger.SILENT, io.Discard, false)).Handler())
		t.Cleanup(srv.Close)
		return &specClient{baseURL: srv.URL, client: client}
	}

	if !isReachable(client, baseURL+api.PathEmotionStats) {
		t.Skipf("backend not reachable at %s (set AFFECTRA_BASE_URL to run)", baseURL)
	}
	return &specClient{baseURL: baseURL, client: client, live: true}
}

// destructive skips tests that change backend data unless the run is local
// or the named variable is set.
func (c *specClient) destructive(t *testing.T, env string) {
	t.Helper()
	if c.live && os.Getenv(env) == "" {
		t.Skipf("set %s=1 to run against a live backend", env)
	}
}

func isReachable(client *http.Client, url string) bool {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 500
}

func (c *specClient) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return c.do(t, req)
}

func (c *specClient) postForm(t *testing.T, path string, form url.Values, header http.Header) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, vs := range header {
		req.Header[k] = vs
	}
	return c.do(t, req)
}

func (c *specClient) postJSON(t *testing.T, path string, body string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		req.Header[k] = vs
	}
	return c.do(t, req)
}

func (c *specClient) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	_ = resp.Body.Close()
	return resp, body
}

// token reads the CSRF token from the backend index page.
func (c *specClient) token(t *testing.T) string {
	t.Helper()
	resp, body := c.get(t, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d", resp.StatusCode)
	}
	tok, err := api.ParseToken(strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("GET / csrf token: %v", err)
	}
	return tok
}

func decodeJSONMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode json: %v\nbody=%s", err, string(body))
	}
	return payload
}

func requireString(t *testing.T, value any, field string) string {
	t.Helper()
	str, ok := value.(string)
	if !ok {
		t.Fatalf("expected %s to be string, got %T", field, value)
	}
	return str
}

func requireNumber(t *testing.T, value any, field string) float64 {
	t.Helper()
	num, ok := value.(float64)
	if !ok {
		t.Fatalf("expected %s to be number, got %T", field, value)
	}
	return num
}

func requireBool(t *testing.T, value any, field string) bool {
	t.Helper()
	b, ok := value.(bool)
	if !ok {
		t.Fatalf("expected %s to be bool, got %T", field, value)
	}
	return b
}

func requireMap(t *testing.T, value any, field string) map[string]any {
	t.Helper()
	m, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected %s to be object, got %T", field, value)
	}
	return m
}

func requireList(t *testing.T, value any, field string) []any {
	t.Helper()
	l, ok := value.([]any)
	if !ok {
		t.Fatalf("expected %s to be array, got %T", field, value)
	}
	return l
}
