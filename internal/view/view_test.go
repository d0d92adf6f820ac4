package view

import (
	"bytes"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/dj-oyu/affectra-dashboard/internal/dashboard"
	"github.com/dj-oyu/affectra-dashboard/internal/emotion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func displaySnapshot() dashboard.Snapshot {
	return dashboard.Snapshot{
		Stats: dashboard.StatsPanel{
			Phase:          dashboard.PhaseDisplay,
			ContentVisible: true,
			Dominant:       "happy",
			DominantColor:  emotion.Color("happy"),
			AvgDuration:    "12.5",
			VisitorCount:   3,
			Rows:           emotion.Rows(map[string]float64{"happy": 60.04, "sad": 39.96}),
			LastUpdate:     time.Date(2026, 1, 2, 14, 5, 9, 0, time.UTC),
		},
	}
}

func TestStatsDisplay(t *testing.T) {
	html := Stats(displaySnapshot())

	assert.Contains(t, html, `<span id="dominant-emotion" style="color: #4CAF50;">happy</span>`)
	assert.Contains(t, html, `<span id="avg-duration">12.5</span>`)
	assert.Contains(t, html, `<span id="visitor-count">3</span>`)
	assert.Contains(t, html, `style="width: 60%; background-color: #4CAF50;"`)
	assert.Contains(t, html, `>40%</div>`)
	assert.Contains(t, html, "Last updated: 14:05:09")
	assert.Less(t, strings.Index(html, ">happy</div>"), strings.Index(html, ">sad</div>"), "rows keep descending order")
	assert.NotContains(t, html, LoadingStatsText)
}

func TestStatsEmpty(t *testing.T) {
	snap := dashboard.Snapshot{Stats: dashboard.StatsPanel{
		Phase:          dashboard.PhaseEmpty,
		ContentVisible: true,
		Dominant:       dashboard.NoDataLabel,
		DominantColor:  emotion.DefaultColor,
		AvgDuration:    dashboard.NoDataDuration,
		EmptyNotice:    true,
	}}
	html := Stats(snap)

	assert.Contains(t, html, `>No data</span>`)
	assert.Contains(t, html, `<span id="avg-duration">0</span>`)
	assert.Contains(t, html, EmptyNoticeText)
	assert.NotContains(t, html, "emotion-row")
}

func TestStatsEscapesServerText(t *testing.T) {
	snap := displaySnapshot()
	snap.Stats.Dominant = "<script>alert(1)</script>"
	snap.Stats.AvgDuration = `"><img src=x onerror=alert(1)>`
	snap.Stats.Rows = []emotion.Row{{Emotion: "<b>joy</b>", Percent: 10, Color: emotion.DefaultColor}}

	html := Stats(snap)
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<img")
	assert.NotContains(t, html, "<b>")
	assert.Contains(t, html, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.Contains(t, html, "&lt;b&gt;joy&lt;/b&gt;")
}

func TestStatsFailureShownOnce(t *testing.T) {
	snap := dashboard.Snapshot{Stats: dashboard.StatsPanel{
		Phase: dashboard.PhaseError,
		Error: dashboard.Banner{Visible: true, Kind: dashboard.BannerError, Text: dashboard.MsgStatsFailed},
	}}
	html := Stats(snap)

	assert.Equal(t, 1, strings.Count(html, dashboard.MsgStatsFailed))
	assert.NotContains(t, html, LoadingStatsText)
	assert.NotContains(t, html, "stats-content")
}

func TestCamerasList(t *testing.T) {
	snap := dashboard.Snapshot{Cameras: dashboard.CameraPanel{
		Loaded: true,
		Active: "Porch",
		Entries: []dashboard.CameraEntry{
			{Name: "Webcam_0"},
			{Name: "Porch", Active: true},
		},
	}}
	html := Cameras(snap, "")

	assert.Equal(t, 2, strings.Count(html, `action="/actions/cameras/select"`))
	assert.Equal(t, 1, strings.Count(html, `class="badge"`))
	assert.Contains(t, html, `<button type="submit" class="camera-item active">Porch <span class="badge">Active</span>`)
	assert.Less(t, strings.Index(html, "Webcam_0"), strings.Index(html, "Porch"))
	assert.NotContains(t, html, dashboard.MsgNoCameras)
}

func TestCamerasPlaceholder(t *testing.T) {
	html := Cameras(dashboard.Snapshot{Cameras: dashboard.CameraPanel{Loaded: true}}, "")
	assert.Contains(t, html, dashboard.MsgNoCameras)

	html = Cameras(dashboard.Snapshot{Cameras: dashboard.CameraPanel{Loading: true}}, "")
	assert.Contains(t, html, LoadingCamerasText)
	assert.NotContains(t, html, dashboard.MsgNoCameras)
}

func TestCamerasEscapeNames(t *testing.T) {
	snap := dashboard.Snapshot{Cameras: dashboard.CameraPanel{
		Loaded:  true,
		Entries: []dashboard.CameraEntry{{Name: `"><script>x</script>`}},
		Status:  dashboard.Banner{Visible: true, Kind: dashboard.BannerError, Text: "<i>bad</i>"},
	}}
	html := Cameras(snap, "")
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<i>")
	assert.Contains(t, html, `value="&#34;&gt;&lt;script&gt;x&lt;/script&gt;"`)
}

func TestAddFormRetainsInput(t *testing.T) {
	snap := dashboard.Snapshot{Cameras: dashboard.CameraPanel{
		FormOpen: true,
		FormURL:  "http://cam/stream",
		FormName: "Porch",
	}}
	html := Cameras(snap, "")
	assert.Contains(t, html, `name="url" value="http://cam/stream"`)
	assert.Contains(t, html, `name="name" value="Porch"`)

	snap.Cameras.FormOpen = false
	assert.NotContains(t, Cameras(snap, ""), "add-camera-form")
}

func TestPrompt(t *testing.T) {
	assert.Empty(t, Prompt(dashboard.Snapshot{}, ""))

	clear := Prompt(dashboard.Snapshot{Prompt: &dashboard.Prompt{Kind: dashboard.PromptClear, Question: dashboard.ClearQuestion}}, "")
	assert.Contains(t, clear, `action="/actions/clear/confirm"`)
	assert.Contains(t, clear, `action="/actions/clear/cancel"`)

	sw := Prompt(dashboard.Snapshot{Prompt: &dashboard.Prompt{
		Kind:     dashboard.PromptSwitch,
		Question: "Camera <Porch> added. Switch to it now?",
	}}, "")
	assert.Contains(t, sw, "Camera &lt;Porch&gt; added. Switch to it now?")
	assert.Contains(t, sw, `name="accept" value="yes"`)
	assert.Contains(t, sw, `name="accept" value="no"`)
}

func TestFormsCarryToken(t *testing.T) {
	snap := dashboard.Snapshot{
		Cameras: dashboard.CameraPanel{
			Loaded:   true,
			FormOpen: true,
			Entries:  []dashboard.CameraEntry{{Name: "Webcam_0"}, {Name: "Porch"}},
		},
		Prompt: &dashboard.Prompt{Kind: dashboard.PromptClear, Question: dashboard.ClearQuestion},
	}
	field := `<input type="hidden" name="_csrf" value="t&lt;1">`

	cams := Cameras(snap, "t<1")
	assert.Equal(t, strings.Count(cams, "<form "), strings.Count(cams, field))
	assert.Equal(t, 4, strings.Count(cams, field))
	assert.Equal(t, 2, strings.Count(Prompt(snap, "t<1"), field))

	html := Page(snap, PageOptions{CSRFToken: "t<1"})
	assert.Equal(t, strings.Count(html, "<form "), strings.Count(html, field))
	assert.Contains(t, html, `<meta name="csrf-token" content="t&lt;1">`)

	assert.NotContains(t, Cameras(snap, ""), `name="_csrf"`)
}

func TestNoticeHiddenBanner(t *testing.T) {
	assert.Empty(t, Notice(dashboard.Snapshot{}))
	html := Notice(dashboard.Snapshot{Notice: dashboard.Banner{Visible: true, Kind: dashboard.BannerSuccess, Text: dashboard.MsgCleared}})
	assert.Contains(t, html, `class="banner banner-success"`)
	assert.Contains(t, html, dashboard.MsgCleared)
}

func TestPage(t *testing.T) {
	html := Page(displaySnapshot(), PageOptions{Title: "Lobby <1>", Live: true})
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<title>Lobby &lt;1&gt;</title>")
	assert.Contains(t, html, `id="stats-panel"`)
	assert.Contains(t, html, `id="cameras-panel"`)
	assert.Contains(t, html, "/api/state/stream")
	assert.NotContains(t, html, "%!")

	static := Page(displaySnapshot(), PageOptions{})
	assert.NotContains(t, static, "EventSource")
	assert.Contains(t, static, "<title>Affectra Dashboard</title>")
}

func TestChartImage(t *testing.T) {
	rows := emotion.Rows(map[string]float64{"happy": 100, "sad": 0})
	img := ChartImage(rows)
	assert.Equal(t, ChartWidth, img.Bounds().Dx())
	assert.Equal(t, chartPad*2+2*chartRowH, img.Bounds().Dy())

	// Just right of the track start on the first row is the happy bar.
	x, y := chartPad+chartLabelW+2, chartPad+chartRowH/2
	assert.Equal(t, ParseHex(emotion.Color("happy")), img.RGBAAt(x, y))
	// The sad row has zero width, so the track shows through.
	assert.Equal(t, chartTrack, img.RGBAAt(x, y+chartRowH))
}

func TestWriteChartEncodesPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, nil))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, chartPad*2+chartRowH, img.Bounds().Dy())
}

func TestParseHex(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0x4C, G: 0xAF, B: 0x50, A: 255}, ParseHex("#4CAF50"))
	assert.Equal(t, color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 255}, ParseHex("#333"))
	assert.Equal(t, chartText, ParseHex("not-a-color"))
}
