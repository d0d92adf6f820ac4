package fakebackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dj-oyu/affectra-dashboard/internal/api"
	"github.com/dj-oyu/affectra-dashboard/internal/logger"
	"github.com/google/uuid"
)

const sessionCookie = "affectra_session"

// Server exposes a Store over the backend's HTTP surface.
type Server struct {
	store *Store
	token string
	log   *logger.Logger
}

// NewServer serves store. A non-empty token is embedded in the index page
// and required on every state changing request except /log. An empty token
// generates a random one.
func NewServer(store *Store, token string, log *logger.Logger) *Server {
	if token == "" {
		token = uuid.NewString()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Server{store: store, token: token, log: log}
}

// Token returns the CSRF token the server expects.
func (s *Server) Token() string { return s.token }

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/log", s.handleLog)
	mux.HandleFunc(api.PathEmotionStats, s.handleStats)
	mux.HandleFunc(api.PathClearData, s.handleClear)
	mux.HandleFunc(api.PathCameras, s.handleCameras)
	mux.HandleFunc(api.PathSelectCamera, s.handleSelect)
	mux.HandleFunc(api.PathAddCamera, s.handleAdd)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if _, err := r.Cookie(sessionCookie); err != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    uuid.NewString(),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, indexPage, s.token)
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
    <title>Affectra</title>
    <meta charset="utf-8">
    <meta name="csrf-token" content="%s">
</head>
<body><p>Affectra backend</p></body>
</html>
`

// logRequest is the session document posted by capture clients. The
// timestamp arrives as an ISO string with or without a zone.
type logRequest struct {
	Timestamp          string             `json:"timestamp"`
	DurationSeconds    float64            `json:"duration_seconds"`
	DominantEmotion    string             `json:"dominant_emotion"`
	EmotionPercentages map[string]float64 `json:"emotion_percentages"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	var req logRequest
	if err != nil || len(strings.TrimSpace(string(body))) == 0 || json.Unmarshal(body, &req) != nil {
		writeJSONWithStatus(w, map[string]any{"status": "error", "message": "No data received"}, http.StatusBadRequest)
		return
	}
	ts, err := parseTimestamp(req.Timestamp)
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"status": "error", "message": err.Error()}, http.StatusBadRequest)
		return
	}

	s.store.Log(Session{
		Timestamp:          ts,
		DurationSeconds:    req.DurationSeconds,
		DominantEmotion:    req.DominantEmotion,
		EmotionPercentages: req.EmotionPercentages,
	})
	s.log.Debug("FakeBackend", "Session logged (%s, %.1fs)", req.DominantEmotion, req.DurationSeconds)
	writeJSON(w, map[string]any{"status": "ok", "message": "Session logged"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, s.store.Stats())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.checkToken(w, r, "status") {
		return
	}
	n := s.store.Clear()
	s.log.Info("FakeBackend", "Cleared %d sessions", n)
	writeJSON(w, map[string]any{"status": "ok", "message": "All data cleared successfully"})
}

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, s.store.Cameras())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.checkToken(w, r, "success") {
		return
	}
	name := strings.TrimSpace(r.PostForm.Get("camera_name"))
	if name == "" {
		writeJSONWithStatus(w, map[string]any{"success": false, "error": "No camera name provided"}, http.StatusBadRequest)
		return
	}
	if err := s.store.Select(name); err != nil {
		var unknown *ErrUnknownCamera
		status := http.StatusInternalServerError
		if errors.As(err, &unknown) {
			status = http.StatusNotFound
		}
		writeJSONWithStatus(w, map[string]any{"success": false, "error": err.Error()}, status)
		return
	}
	s.log.Info("FakeBackend", "Switched to camera source: %s", name)
	writeJSON(w, map[string]any{"success": true, "message": "Switched to " + name})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.checkToken(w, r, "success") {
		return
	}
	name, err := s.store.Add(r.PostForm.Get("url"), r.PostForm.Get("name"))
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"success": false, "error": err.Error()}, http.StatusBadRequest)
		return
	}
	s.log.Info("FakeBackend", "Added camera source: %s", name)
	writeJSON(w, map[string]any{"success": true, "camera_name": name})
}

// checkToken parses the form and verifies the CSRF token from the header or
// the csrf_token field. flag names the envelope field of the error reply.
func (s *Server) checkToken(w http.ResponseWriter, r *http.Request, flag string) bool {
	if err := r.ParseForm(); err != nil {
		writeJSONWithStatus(w, map[string]any{flag: failureValue(flag), "error": "Invalid form data"}, http.StatusBadRequest)
		return false
	}
	got := r.Header.Get(api.CSRFHeader)
	if got == "" {
		got = r.PostForm.Get(api.CSRFField)
	}
	if got != s.token {
		s.log.Warn("FakeBackend", "Rejected %s %s: bad CSRF token", r.Method, r.URL.Path)
		writeJSONWithStatus(w, map[string]any{
			flag:      failureValue(flag),
			"message": "The CSRF token is missing or invalid.",
		}, http.StatusForbidden)
		return false
	}
	return true
}

func failureValue(flag string) any {
	if flag == "success" {
		return false
	}
	return "error"
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSONWithStatus(w, map[string]any{"status": "error", "message": "Method not allowed"}, http.StatusMethodNotAllowed)
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
