package fakebackend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dj-oyu/affectra-dashboard/internal/api"
	"github.com/dj-oyu/affectra-dashboard/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, store *Store) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(store, "secret-token", logger.New(logger.SILENT, io.Discard, false))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func newClient(t *testing.T, srv *httptest.Server, token string) *api.Client {
	t.Helper()
	c, err := api.New(srv.URL, api.Options{Token: token})
	require.NoError(t, err)
	return c
}

func TestIndexCarriesToken(t *testing.T) {
	_, srv := newTestServer(t, NewStore())
	c := newClient(t, srv, "")

	tok, err := c.LoadToken(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", tok)
}

func TestGeneratedToken(t *testing.T) {
	s := NewServer(NewStore(), "", nil)
	assert.Len(t, s.Token(), 36)
}

func TestLogThenStats(t *testing.T) {
	_, srv := newTestServer(t, NewStore())

	body := `{"timestamp":"2026-03-14T10:00:00","duration_seconds":12.5,"dominant_emotion":"happy",
		"emotion_percentages":{"happy":75.5,"neutral":24.5}}`
	resp, err := http.Post(srv.URL+"/log", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var st api.StatsSnapshot
	require.NoError(t, newClient(t, srv, "").GetJSON(context.Background(), api.PathEmotionStats, &st))
	assert.Equal(t, 1, st.VisitorCount)
	assert.Equal(t, "happy", st.OverallDominantEmotion)
	assert.Equal(t, "12.5", st.DurationText())
}

func TestLogRejectsEmptyBody(t *testing.T) {
	_, srv := newTestServer(t, NewStore())
	for _, body := range []string{"", "not json", `{"timestamp":"yesterday"}`} {
		resp, err := http.Post(srv.URL+"/log", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestClearRequiresToken(t *testing.T) {
	store := NewStore()
	store.Log(Session{DurationSeconds: 1})
	_, srv := newTestServer(t, store)

	err := newClient(t, srv, "wrong").PostJSON(context.Background(), api.PathClearData, nil, nil)
	var te *api.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusForbidden, te.StatusCode)
	assert.Equal(t, 1, store.Sessions())

	var res api.StatusResult
	require.NoError(t, newClient(t, srv, "secret-token").PostJSON(context.Background(), api.PathClearData, nil, &res))
	assert.Equal(t, "All data cleared successfully", res.Message)
	assert.Zero(t, store.Sessions())
}

func TestSelectAndAddCamera(t *testing.T) {
	store := NewStore(Camera{Name: "Webcam_0"})
	_, srv := newTestServer(t, store)
	c := newClient(t, srv, "secret-token")
	ctx := context.Background()

	var added api.MutationResult
	require.NoError(t, c.PostForm(ctx, api.PathAddCamera, url.Values{"url": {"http://10.1.2.3:81/stream"}}, &added))
	assert.Equal(t, "ESP32CAM_10.1.2.3", added.CameraName)

	var sel api.MutationResult
	require.NoError(t, c.PostForm(ctx, api.PathSelectCamera, url.Values{"camera_name": {added.CameraName}}, &sel))
	assert.True(t, sel.Success)

	var listing api.CameraListing
	require.NoError(t, c.GetJSON(ctx, api.PathCameras, &listing))
	assert.Equal(t, []string{"Webcam_0", "ESP32CAM_10.1.2.3"}, listing.AvailableCameras)
	assert.Equal(t, "ESP32CAM_10.1.2.3", listing.ActiveCamera)
}

func TestSelectUnknownCamera(t *testing.T) {
	_, srv := newTestServer(t, NewStore())
	err := newClient(t, srv, "secret-token").PostForm(context.Background(), api.PathSelectCamera,
		url.Values{"camera_name": {"Ghost"}}, nil)
	assert.Equal(t, "Camera source 'Ghost' not found", api.MessageOf(err, ""))
}

func TestAddCameraRequiresURL(t *testing.T) {
	_, srv := newTestServer(t, NewStore())
	err := newClient(t, srv, "secret-token").PostForm(context.Background(), api.PathAddCamera, url.Values{}, nil)
	var te *api.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	_, srv := newTestServer(t, NewStore())
	resp, err := http.Post(srv.URL+api.PathCameras, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestParseTimestamp(t *testing.T) {
	for _, raw := range []string{"2026-03-14T10:00:00Z", "2026-03-14T10:00:00.123456", "2026-03-14 10:00:00"} {
		ts, err := parseTimestamp(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, 2026, ts.Year())
	}
	ts, err := parseTimestamp("")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}
