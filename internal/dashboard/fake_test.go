package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dj-oyu/affectra-dashboard/internal/api"
	"github.com/dj-oyu/affectra-dashboard/internal/clock"
	"github.com/dj-oyu/affectra-dashboard/internal/logger"
	"github.com/dj-oyu/affectra-dashboard/internal/metrics"
)

type call struct {
	method string
	path   string
	body   any
	form   url.Values
}

type replyFunc func(ctx context.Context, c call, out any) error

// fakeBackend records calls and answers them from per-path handlers.
type fakeBackend struct {
	mu      sync.Mutex
	calls   []call
	handler map[string]replyFunc
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{handler: make(map[string]replyFunc)}
}

func (f *fakeBackend) on(path string, h replyFunc) {
	f.mu.Lock()
	f.handler[path] = h
	f.mu.Unlock()
}

func (f *fakeBackend) GetJSON(ctx context.Context, path string, out any) error {
	return f.do(ctx, call{method: http.MethodGet, path: path}, out)
}

func (f *fakeBackend) PostJSON(ctx context.Context, path string, body, out any) error {
	return f.do(ctx, call{method: http.MethodPost, path: path, body: body}, out)
}

func (f *fakeBackend) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	return f.do(ctx, call{method: http.MethodPost, path: path, form: form}, out)
}

func (f *fakeBackend) do(ctx context.Context, c call, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	h := f.handler[c.path]
	f.mu.Unlock()
	if h == nil {
		return &api.TransportError{Method: c.method, Path: c.path, StatusCode: http.StatusNotFound}
	}
	return h(ctx, c, out)
}

func (f *fakeBackend) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeBackend) count(path string) int {
	n := 0
	for _, c := range f.recorded() {
		if c.path == path {
			n++
		}
	}
	return n
}

func reply(body string) replyFunc {
	return func(_ context.Context, _ call, out any) error {
		if out == nil {
			return nil
		}
		return json.Unmarshal([]byte(body), out)
	}
}

func fail(err error) replyFunc {
	return func(context.Context, call, any) error { return err }
}

var epoch = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestDashboard(t *testing.T, b Backend) (*Dashboard, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(epoch)
	db := New(b, Options{
		Clock:   clk,
		Logger:  logger.New(logger.SILENT, io.Discard, false),
		Metrics: metrics.New(),
	})
	return db, clk
}
