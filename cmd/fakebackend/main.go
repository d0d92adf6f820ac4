// Command fakebackend serves an in-memory Affectra backend for local
// development of the dashboard.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/dj-oyu/affectra-dashboard/internal/fakebackend"
	"github.com/dj-oyu/affectra-dashboard/internal/logger"
)

var (
	httpAddr = flag.String("http", ":5000", "HTTP server address")
	token    = flag.String("token", "", "CSRF token (random when empty)")
	cameras  = flag.String("cameras", "Webcam_0", "Camera sources, comma-separated name or name=url")
	logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor = flag.Bool("log-color", true, "Enable colored log output")
)

func parseCameras(raw string) []fakebackend.Camera {
	var out []fakebackend.Camera
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, url, _ := strings.Cut(item, "=")
		out = append(out, fakebackend.Camera{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}
	return out
}

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	store := fakebackend.NewStore(parseCameras(*cameras)...)
	server := fakebackend.NewServer(store, *token, logger.Default())

	logger.Info("Main", "Fake backend listening on %s", *httpAddr)
	logger.Info("Main", "CSRF token: %s", server.Token())

	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: server.Handler(),
	}
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
