package api

import (
	"encoding/json"
	"strconv"
)

// Backend paths.
const (
	PathEmotionStats = "/api/emotion_stats"
	PathClearData    = "/api/clear_data"
	PathCameras      = "/cameras"
	PathSelectCamera = "/select_camera"
	PathAddCamera    = "/add_esp32_camera"
)

// StatsSnapshot is the aggregate statistics document.
type StatsSnapshot struct {
	Status                 string             `json:"status"`
	IsEmpty                bool               `json:"is_empty"`
	VisitorCount           int                `json:"visitor_count"`
	OverallDominantEmotion string             `json:"overall_dominant_emotion"`
	AvgDuration            json.RawMessage    `json:"avg_duration"`
	AvgEmotionPercentages  map[string]float64 `json:"avg_emotion_percentages"`
	Message                string             `json:"message,omitempty"`
}

// DurationText renders avg_duration the way it arrived: strings as-is and
// numbers in their shortest form.
func (s StatsSnapshot) DurationText() string {
	if len(s.AvgDuration) == 0 || string(s.AvgDuration) == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(s.AvgDuration, &str); err == nil {
		return str
	}
	var f float64
	if err := json.Unmarshal(s.AvgDuration, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(s.AvgDuration)
}

// CameraListing is the camera registry document.
type CameraListing struct {
	AvailableCameras []string `json:"available_cameras"`
	ActiveCamera     string   `json:"active_camera"`
}

// StatusResult is the {status, message} reply of the clear endpoint.
type StatusResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// MutationResult is the reply of the camera select and add endpoints.
type MutationResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	CameraName string `json:"camera_name,omitempty"`
}
