// Package view renders dashboard snapshots as HTML fragments and pages.
// Every piece of server supplied text goes through markup.Escape.
package view

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dj-oyu/affectra-dashboard/internal/dashboard"
	"github.com/dj-oyu/affectra-dashboard/internal/emotion"
	"github.com/dj-oyu/affectra-dashboard/internal/markup"
)

// Fixed labels.
const (
	LoadingStatsText   = "Loading statistics..."
	LoadingCamerasText = "Loading cameras..."
	EmptyNoticeText    = "No emotion data has been recorded yet."
	ActiveBadgeText    = "Active"
	TimeLayout         = "15:04:05"
)

// CSRFField is the form field carrying the operator UI token.
const CSRFField = "_csrf"

func csrfInput(token string) string {
	if token == "" {
		return ""
	}
	return fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`, CSRFField, markup.Attr(token))
}

// Stats renders the statistics panel body.
func Stats(snap dashboard.Snapshot) string {
	st := snap.Stats
	var b strings.Builder

	if st.LoadingVisible {
		fmt.Fprintf(&b, `<div id="loading-stats" class="loading">%s</div>`, LoadingStatsText)
	}
	b.WriteString(banner("error-message", st.Error))

	if !st.ContentVisible {
		return b.String()
	}

	b.WriteString(`<div id="stats-content">`)
	fmt.Fprintf(&b, `<div class="stat"><span class="stat-label">Dominant emotion</span>`+
		`<span id="dominant-emotion" style="color: %s;">%s</span></div>`,
		markup.Attr(st.DominantColor), markup.Escape(st.Dominant))
	fmt.Fprintf(&b, `<div class="stat"><span class="stat-label">Average duration</span>`+
		`<span id="avg-duration">%s</span></div>`, markup.Escape(st.AvgDuration))
	fmt.Fprintf(&b, `<div class="stat"><span class="stat-label">Visitors</span>`+
		`<span id="visitor-count">%d</span></div>`, st.VisitorCount)

	if st.EmptyNotice {
		fmt.Fprintf(&b, `<div id="empty-notice" class="notice">%s</div>`, EmptyNoticeText)
	}

	b.WriteString(`<div id="emotion-percentages">`)
	for _, row := range st.Rows {
		b.WriteString(emotionRow(row))
	}
	b.WriteString(`</div>`)

	if !st.LastUpdate.IsZero() {
		fmt.Fprintf(&b, `<div id="last-update">Last updated: %s</div>`, st.LastUpdate.Format(TimeLayout))
	}
	b.WriteString(`</div>`)
	return b.String()
}

func emotionRow(row emotion.Row) string {
	pct := strconv.FormatFloat(row.Percent, 'f', -1, 64)
	width := strconv.FormatFloat(emotion.Width(row.Percent), 'f', -1, 64)
	return fmt.Sprintf(`<div class="emotion-row"><div class="emotion-label">%s</div>`+
		`<div class="progress"><div class="progress-bar" role="progressbar" `+
		`style="width: %s%%; background-color: %s;" aria-valuenow="%s" aria-valuemin="0" aria-valuemax="100">%s%%</div>`+
		`</div></div>`,
		markup.Escape(row.Emotion), width, markup.Attr(row.Color), pct, pct)
}

// Cameras renders the camera list, its status lines and the add form. Every
// form carries token.
func Cameras(snap dashboard.Snapshot, token string) string {
	cams := snap.Cameras
	var b strings.Builder

	b.WriteString(banner("camera-error", cams.Error))
	b.WriteString(banner("camera-status", cams.Status))

	if cams.Loading {
		fmt.Fprintf(&b, `<div id="loading-cameras" class="loading">%s</div>`, LoadingCamerasText)
	}

	b.WriteString(`<div id="camera-list">`)
	switch {
	case cams.Loaded && len(cams.Entries) == 0:
		fmt.Fprintf(&b, `<div class="placeholder">%s</div>`, dashboard.MsgNoCameras)
	default:
		for _, e := range cams.Entries {
			b.WriteString(cameraEntry(e, token))
		}
	}
	b.WriteString(`</div>`)

	b.WriteString(addForm(cams, token))
	return b.String()
}

func cameraEntry(e dashboard.CameraEntry, token string) string {
	class := "camera-item"
	badge := ""
	if e.Active {
		class += " active"
		badge = fmt.Sprintf(` <span class="badge">%s</span>`, ActiveBadgeText)
	}
	return fmt.Sprintf(`<form method="post" action="/actions/cameras/select" class="camera-entry">%s`+
		`<input type="hidden" name="camera_name" value="%s">`+
		`<button type="submit" class="%s">%s%s</button></form>`,
		csrfInput(token), markup.Attr(e.Name), class, markup.Escape(e.Name), badge)
}

func addForm(cams dashboard.CameraPanel, token string) string {
	var b strings.Builder
	label := "Add camera"
	if cams.FormOpen {
		label = "Hide form"
	}
	fmt.Fprintf(&b, `<form method="post" action="/actions/cameras/form">%s`+
		`<button type="submit" id="toggle-add-form">%s</button></form>`, csrfInput(token), label)
	if !cams.FormOpen {
		return b.String()
	}
	fmt.Fprintf(&b, `<form method="post" action="/actions/cameras/add" id="add-camera-form">%s`+
		`<label>Stream URL <input type="text" name="url" value="%s" placeholder="http://192.168.1.50:81/stream"></label>`+
		`<label>Name <input type="text" name="name" value="%s" placeholder="optional"></label>`+
		`<button type="submit">Add</button></form>`,
		csrfInput(token), markup.Attr(cams.FormURL), markup.Attr(cams.FormName))
	return b.String()
}

// Notice renders the clear outcome banner.
func Notice(snap dashboard.Snapshot) string {
	return banner("clear-notice", snap.Notice)
}

// Prompt renders the open confirmation question, if any.
func Prompt(snap dashboard.Snapshot, token string) string {
	p := snap.Prompt
	if p == nil {
		return ""
	}
	yes, no := "/actions/clear/confirm", "/actions/clear/cancel"
	yesField, noField := csrfInput(token), csrfInput(token)
	if p.Kind == dashboard.PromptSwitch {
		yes, no = "/actions/cameras/switch", "/actions/cameras/switch"
		yesField += `<input type="hidden" name="accept" value="yes">`
		noField += `<input type="hidden" name="accept" value="no">`
	}
	return fmt.Sprintf(`<div id="prompt" class="prompt prompt-%s"><p>%s</p>`+
		`<form method="post" action="%s">%s<button type="submit">Yes</button></form>`+
		`<form method="post" action="%s">%s<button type="submit">No</button></form></div>`,
		p.Kind, markup.Escape(p.Question), yes, yesField, no, noField)
}

func banner(id string, bn dashboard.Banner) string {
	if !bn.Visible {
		return ""
	}
	kind := bn.Kind
	if kind == "" {
		kind = dashboard.BannerInfo
	}
	return fmt.Sprintf(`<div id="%s" class="banner banner-%s">%s</div>`, id, kind, markup.Escape(bn.Text))
}
