// Package web serves the operator UI: rendered pages and fragments, the
// live state stream, the stats chart and the action endpoints.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dj-oyu/affectra-dashboard/internal/api"
	"github.com/dj-oyu/affectra-dashboard/internal/dashboard"
	"github.com/dj-oyu/affectra-dashboard/internal/logger"
	"github.com/dj-oyu/affectra-dashboard/internal/metrics"
	"github.com/dj-oyu/affectra-dashboard/internal/view"
	"github.com/google/uuid"
)

// CSRFHeader carries the operator UI token for script callers; forms send
// it in the view.CSRFField field.
const CSRFHeader = "X-CSRF-Token"

// Config holds operator UI settings.
type Config struct {
	Title string
	// Live enables the SSE driven refresh script on the page.
	Live bool
	// BackendURL is reported by /healthz.
	BackendURL string
	// CSRFToken guards the action endpoints. Empty generates one per process.
	CSRFToken string
}

// Server serves the dashboard over HTTP.
type Server struct {
	cfg         Config
	dash        *dashboard.Dashboard
	metrics     *metrics.Metrics
	broadcaster *StateBroadcaster
}

// NewServer returns a server for dash and starts its state broadcaster.
// m may be nil, in which case /metrics is not served.
func NewServer(cfg Config, dash *dashboard.Dashboard, m *metrics.Metrics) *Server {
	if cfg.CSRFToken == "" {
		cfg.CSRFToken = uuid.NewString()
	}
	b := NewStateBroadcaster(dash.State, m)
	b.Start()
	return &Server{cfg: cfg, dash: dash, metrics: m, broadcaster: b}
}

// Token returns the token the action endpoints expect.
func (s *Server) Token() string { return s.cfg.CSRFToken }

// Close stops the broadcaster, which ends open streams.
func (s *Server) Close() {
	s.broadcaster.Stop()
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/fragments/stats", s.fragment(view.Stats))
	mux.HandleFunc("/fragments/cameras", s.fragment(s.withToken(view.Cameras)))
	mux.HandleFunc("/fragments/prompt", s.fragment(s.withToken(view.Prompt)))
	mux.HandleFunc("/fragments/notice", s.fragment(view.Notice))
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/state/stream", s.handleStateStream)
	mux.HandleFunc("/stats.png", s.handleChart)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	mux.HandleFunc("/actions/refresh", s.action(s.doRefresh))
	mux.HandleFunc("/actions/clear", s.action(s.doRequestClear))
	mux.HandleFunc("/actions/clear/confirm", s.action(s.doConfirmClear))
	mux.HandleFunc("/actions/clear/cancel", s.action(s.doCancelClear))
	mux.HandleFunc("/actions/cameras/select", s.action(s.doSelectCamera))
	mux.HandleFunc("/actions/cameras/add", s.action(s.doAddCamera))
	mux.HandleFunc("/actions/cameras/form", s.action(s.doToggleForm))
	mux.HandleFunc("/actions/cameras/switch", s.action(s.doAnswerSwitch))

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page := view.Page(s.dash.State.Snapshot(), view.PageOptions{
		Title:     s.cfg.Title,
		Live:      s.cfg.Live,
		CSRFToken: s.cfg.CSRFToken,
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(page))
}

func (s *Server) fragment(render func(dashboard.Snapshot) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write([]byte(render(s.dash.State.Snapshot())))
	}
}

func (s *Server) withToken(render func(dashboard.Snapshot, string) string) func(dashboard.Snapshot) string {
	return func(snap dashboard.Snapshot) string { return render(snap, s.cfg.CSRFToken) }
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.dash.State.Snapshot())
}

func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	first, err := EncodeSnapshot(s.dash.State.Snapshot())
	if err != nil {
		logger.Error("SSE", "Encode error: %v", err)
		http.Error(w, "encode state", http.StatusInternalServerError)
		return
	}
	streamEvents(r.Context(), w, first, eventCh, wantsProtobuf(r))
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := view.WriteChart(w, s.dash.State.Snapshot().Stats.Rows); err != nil {
		logger.Error("Chart", "%v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.dash.State.Snapshot()
	payload := map[string]any{
		"status":        "ok",
		"backend":       s.cfg.BackendURL,
		"stats_phase":   snap.Stats.Phase,
		"cameras_ready": snap.Cameras.Loaded,
		"stream_client": s.broadcaster.Clients(),
		"timestamp":     float64(time.Now().Unix()),
	}
	writeJSON(w, payload)
}

// actionFunc performs one operator action. The returned error has already
// been applied to the state; it is only reported back to JSON callers.
type actionFunc func(ctx context.Context, r *http.Request) error

func (s *Server) action(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			writeJSONWithStatus(w, map[string]any{"error": "Invalid form data"}, http.StatusBadRequest)
			return
		}
		if reason := s.rejectForgery(r); reason != "" {
			logger.Warn("Actions", "Rejected %s %s: %s", r.Method, r.URL.Path, reason)
			writeJSONWithStatus(w, map[string]any{"ok": false, "error": "The CSRF token is missing or invalid."}, http.StatusForbidden)
			return
		}

		// Client disconnects do not cancel an action.
		err := fn(context.WithoutCancel(r.Context()), r)
		if err != nil {
			logger.Debug("Actions", "%s: %v", r.URL.Path, err)
		}

		if !wantsJSON(r) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		payload := map[string]any{
			"ok":    err == nil,
			"state": s.dash.State.Snapshot(),
		}
		if err != nil {
			payload["error"] = api.MessageOf(err, err.Error())
		}
		writeJSON(w, payload)
	}
}

// rejectForgery reports why r must not run an action, or "" when it may.
// Cross-site requests are refused outright; the rest must present the token.
func (s *Server) rejectForgery(r *http.Request) string {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "", "same-origin", "none":
	default:
		return "cross-site request"
	}
	if origin := r.Header.Get("Origin"); origin != "" {
		u, err := url.Parse(origin)
		if err != nil || !strings.EqualFold(u.Host, r.Host) {
			return "origin " + origin + " does not match host " + r.Host
		}
	}
	got := r.Header.Get(CSRFHeader)
	if got == "" {
		got = r.PostForm.Get(view.CSRFField)
	}
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.CSRFToken)) != 1 {
		return "missing or invalid token"
	}
	return ""
}

func (s *Server) doRefresh(ctx context.Context, r *http.Request) error {
	return s.dash.Stats.FetchStats(ctx)
}

func (s *Server) doRequestClear(ctx context.Context, r *http.Request) error {
	s.dash.Clearer.RequestClear()
	return nil
}

func (s *Server) doConfirmClear(ctx context.Context, r *http.Request) error {
	return s.dash.Clearer.ConfirmClear(ctx)
}

func (s *Server) doCancelClear(ctx context.Context, r *http.Request) error {
	s.dash.Clearer.CancelClear()
	return nil
}

func (s *Server) doSelectCamera(ctx context.Context, r *http.Request) error {
	return s.dash.Mutator.SelectCamera(ctx, r.PostForm.Get("camera_name"))
}

func (s *Server) doAddCamera(ctx context.Context, r *http.Request) error {
	return s.dash.Mutator.AddCamera(ctx, r.PostForm.Get("url"), r.PostForm.Get("name"))
}

func (s *Server) doToggleForm(ctx context.Context, r *http.Request) error {
	raw := r.PostForm.Get("open")
	if raw == "" {
		s.dash.Mutator.ToggleAddForm()
		return nil
	}
	open, err := parseYes(raw)
	if err != nil {
		return &api.ValidationError{Field: "open", Message: err.Error()}
	}
	s.dash.Mutator.SetAddFormOpen(open)
	return nil
}

func (s *Server) doAnswerSwitch(ctx context.Context, r *http.Request) error {
	accept, err := parseYes(r.PostForm.Get("accept"))
	if err != nil {
		return &api.ValidationError{Field: "accept", Message: err.Error()}
	}
	return s.dash.Mutator.AnswerSwitch(ctx, accept)
}

func parseYes(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "1", "on":
		return true, nil
	case "no", "false", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected yes or no, got %q", raw)
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
