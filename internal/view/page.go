package view

import (
	"fmt"
	"strings"

	"github.com/dj-oyu/affectra-dashboard/internal/dashboard"
	"github.com/dj-oyu/affectra-dashboard/internal/markup"
)

// PageOptions controls the full page.
type PageOptions struct {
	Title string
	// Live subscribes the page to the state stream and swaps fragments in
	// place instead of relying on reloads.
	Live bool
	// CSRFToken is embedded in every action form and in a csrf-token meta
	// tag for script callers.
	CSRFToken string
}

// Page renders the complete operator page.
func Page(snap dashboard.Snapshot, opts PageOptions) string {
	title := opts.Title
	if title == "" {
		title = "Affectra Dashboard"
	}

	var b strings.Builder
	fmt.Fprintf(&b, pageHead, markup.Escape(title), markup.Attr(opts.CSRFToken))
	fmt.Fprintf(&b, `<div class="app"><div class="header"><div class="title">%s</div>`, markup.Escape(title))
	fmt.Fprintf(&b, `<form method="post" action="/actions/refresh">%s<button type="submit" id="refresh-btn">Refresh</button></form>`, csrfInput(opts.CSRFToken))
	fmt.Fprintf(&b, `<form method="post" action="/actions/clear">%s<button type="submit" id="clear-btn" class="danger">Clear data</button></form></div>`, csrfInput(opts.CSRFToken))

	fmt.Fprintf(&b, `<div id="prompt-slot">%s</div>`, Prompt(snap, opts.CSRFToken))
	fmt.Fprintf(&b, `<div id="notice-slot">%s</div>`, Notice(snap))

	b.WriteString(`<div class="grid">`)
	fmt.Fprintf(&b, `<div class="panel"><h2>Emotion statistics</h2><div id="stats-panel">%s</div>`+
		`<img id="stats-chart" src="/stats.png" alt="Emotion percentages chart"></div>`, Stats(snap))
	fmt.Fprintf(&b, `<div class="panel"><h2>Cameras</h2><div id="cameras-panel">%s</div></div>`, Cameras(snap, opts.CSRFToken))
	b.WriteString(`</div></div>`)

	if opts.Live {
		b.WriteString(liveScript)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

const pageHead = `<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <meta charset="utf-8">
    <meta name="csrf-token" content="%s">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: system-ui, sans-serif; background: #f4f6f8; color: #333; margin: 0; }
        .app { max-width: 1100px; margin: 0 auto; padding: 20px; }
        .header { display: flex; gap: 12px; align-items: center; margin-bottom: 16px; }
        .title { font-size: 22px; font-weight: 600; flex: 1; }
        .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 16px; }
        .panel { background: #fff; border-radius: 8px; padding: 16px; box-shadow: 0 1px 3px rgba(0,0,0,.1); }
        .banner { padding: 8px 12px; border-radius: 4px; margin-bottom: 8px; }
        .banner-success { background: #e8f5e9; color: #2e7d32; }
        .banner-error { background: #ffebee; color: #c62828; }
        .banner-info { background: #e3f2fd; color: #1565c0; }
        .emotion-row { display: flex; align-items: center; gap: 8px; margin: 4px 0; }
        .emotion-label { width: 90px; text-transform: capitalize; }
        .progress { flex: 1; background: #eee; border-radius: 4px; }
        .progress-bar { color: #fff; font-size: 12px; padding: 2px 4px; border-radius: 4px; white-space: nowrap; }
        .camera-item { width: 100%%; text-align: left; padding: 6px 10px; margin: 2px 0; }
        .camera-item.active { font-weight: 600; }
        .badge { background: #4CAF50; color: #fff; border-radius: 8px; padding: 0 6px; font-size: 11px; }
        .prompt { background: #fff8e1; padding: 12px; border-radius: 6px; margin-bottom: 12px; }
        .prompt form { display: inline-block; margin-right: 8px; }
        .danger { color: #c62828; }
        #stats-chart { max-width: 100%%; margin-top: 12px; }
    </style>
</head>
<body>
`

const liveScript = `<script>
(function () {
    const slots = {
        "stats-panel": "/fragments/stats",
        "cameras-panel": "/fragments/cameras",
        "prompt-slot": "/fragments/prompt",
        "notice-slot": "/fragments/notice",
    };
    function refresh() {
        for (const [id, url] of Object.entries(slots)) {
            fetch(url, { cache: "no-store" })
                .then((r) => r.text())
                .then((html) => { document.getElementById(id).innerHTML = html; })
                .catch(() => {});
        }
        const chart = document.getElementById("stats-chart");
        if (chart) chart.src = "/stats.png?t=" + Date.now();
    }
    const source = new EventSource("/api/state/stream");
    source.onmessage = refresh;
})();
</script>
`
