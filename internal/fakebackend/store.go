// Package fakebackend is an in-memory stand-in for the Affectra backend. It
// ingests visitor sessions, aggregates them into the statistics document and
// keeps a named camera registry with one active camera.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dj-oyu/affectra-dashboard/internal/api"
)

// Session is one logged visitor session.
type Session struct {
	Timestamp          time.Time          `json:"timestamp"`
	DurationSeconds    float64            `json:"duration_seconds"`
	DominantEmotion    string             `json:"dominant_emotion"`
	EmotionPercentages map[string]float64 `json:"emotion_percentages"`
}

// Camera is a registered stream source.
type Camera struct {
	Name string
	URL  string
}

// ErrUnknownCamera is returned by Select for names not in the registry.
type ErrUnknownCamera struct{ Name string }

func (e *ErrUnknownCamera) Error() string {
	return fmt.Sprintf("Camera source '%s' not found", e.Name)
}

// Store holds sessions and cameras. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions []Session
	cameras  []Camera
	active   string
}

// NewStore returns a store with the given cameras registered. The first one
// becomes active.
func NewStore(cameras ...Camera) *Store {
	s := &Store{}
	for _, c := range cameras {
		s.putLocked(c)
	}
	if len(s.cameras) > 0 {
		s.active = s.cameras[0].Name
	}
	return s
}

// Log appends a session. A zero timestamp is set to now and an empty
// dominant emotion is recorded as "unknown".
func (s *Store) Log(sess Session) {
	if sess.Timestamp.IsZero() {
		sess.Timestamp = time.Now()
	}
	if sess.DominantEmotion == "" {
		sess.DominantEmotion = "unknown"
	}
	pct := make(map[string]float64, len(sess.EmotionPercentages))
	for k, v := range sess.EmotionPercentages {
		pct[k] = v
	}
	sess.EmotionPercentages = pct

	s.mu.Lock()
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()
}

// Sessions returns the number of logged sessions.
func (s *Store) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Clear drops all sessions and reports how many there were.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sessions)
	s.sessions = nil
	return n
}

// Stats aggregates the logged sessions. Percentages are averaged over all
// sessions, counting a missing emotion as zero. Means are rounded to two
// decimals.
func (s *Store) Stats() api.StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.sessions)
	if n == 0 {
		return api.StatsSnapshot{
			Status:                "ok",
			IsEmpty:               true,
			AvgDuration:           json.RawMessage("0"),
			AvgEmotionPercentages: map[string]float64{},
		}
	}

	var total float64
	sums := make(map[string]float64)
	for _, sess := range s.sessions {
		total += sess.DurationSeconds
		for k, v := range sess.EmotionPercentages {
			sums[k] += v
		}
	}

	means := make(map[string]float64, len(sums))
	names := make([]string, 0, len(sums))
	for k, v := range sums {
		means[k] = round2(v / float64(n))
		names = append(names, k)
	}
	sort.Strings(names)
	dominant := ""
	for _, k := range names {
		if dominant == "" || means[k] > means[dominant] {
			dominant = k
		}
	}

	return api.StatsSnapshot{
		Status:                 "ok",
		VisitorCount:           n,
		OverallDominantEmotion: dominant,
		AvgDuration:            json.RawMessage(strconv.FormatFloat(round2(total/float64(n)), 'f', -1, 64)),
		AvgEmotionPercentages:  means,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cameras returns the registry in insertion order.
func (s *Store) Cameras() api.CameraListing {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.cameras))
	for i, c := range s.cameras {
		names[i] = c.Name
	}
	return api.CameraListing{AvailableCameras: names, ActiveCamera: s.active}
}

// Select makes name the active camera.
func (s *Store) Select(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(name) < 0 {
		return &ErrUnknownCamera{Name: name}
	}
	s.active = name
	return nil
}

// Add registers a stream URL and returns the name it was stored under. An
// empty name defaults to ESP32CAM_<host>. Re-adding a name replaces its URL.
func (s *Store) Add(streamURL, name string) (string, error) {
	streamURL = strings.TrimSpace(streamURL)
	if streamURL == "" {
		return "", fmt.Errorf("camera URL is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultCameraName(streamURL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(Camera{Name: name, URL: streamURL})
	return name, nil
}

// DefaultCameraName derives ESP32CAM_<host> from a stream URL, or plain
// ESP32CAM when the URL has no host.
func DefaultCameraName(streamURL string) string {
	u, err := url.Parse(streamURL)
	if err != nil || u.Hostname() == "" {
		return "ESP32CAM"
	}
	return "ESP32CAM_" + u.Hostname()
}

func (s *Store) putLocked(c Camera) {
	if i := s.indexLocked(c.Name); i >= 0 {
		s.cameras[i] = c
		return
	}
	s.cameras = append(s.cameras, c)
}

func (s *Store) indexLocked(name string) int {
	for i, c := range s.cameras {
		if c.Name == name {
			return i
		}
	}
	return -1
}
