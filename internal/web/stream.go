package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dj-oyu/affectra-dashboard/internal/logger"
)

// KeepaliveInterval is how long an idle stream waits before a comment line.
var KeepaliveInterval = 30 * time.Second

func wantsProtobuf(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")
}

// streamEvents writes first and then every event from eventCh as SSE data
// lines until the channel closes, the client goes away or ctx is done.
func streamEvents(ctx context.Context, w http.ResponseWriter, first *SerializedEvent, eventCh <-chan *SerializedEvent, useProtobuf bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if useProtobuf {
		w.Header().Set("X-Content-Format", "application/protobuf")
	} else {
		w.Header().Set("X-Content-Format", "application/json")
	}

	var lastVersion uint64
	send := func(event *SerializedEvent) bool {
		if event.Version != 0 && event.Version == lastVersion {
			return true
		}
		lastVersion = event.Version
		data := event.JSONData
		if useProtobuf {
			data = event.ProtobufData
		}
		if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.Version, data); err != nil {
			logger.Debug("SSE", "Client disconnected during event write: %v", err)
			return false
		}
		flusher.Flush()
		return true
	}

	if first != nil && !send(first) {
		return
	}

	keepalive := time.NewTicker(KeepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if !send(event) {
				return
			}
		case <-keepalive.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				logger.Debug("SSE", "Client disconnected during keepalive: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
