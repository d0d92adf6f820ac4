package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dj-oyu/affectra-dashboard/internal/api"
	"github.com/dj-oyu/affectra-dashboard/internal/config"
	"github.com/dj-oyu/affectra-dashboard/internal/dashboard"
	"github.com/dj-oyu/affectra-dashboard/internal/logger"
	"github.com/dj-oyu/affectra-dashboard/internal/metrics"
	"github.com/dj-oyu/affectra-dashboard/internal/web"
)

const shutdownTimeout = 5 * time.Second

func main() {
	def := config.DefaultConfig()
	flagCfg := def

	configPath := flag.String("config", "", "YAML config file")
	title := flag.String("title", "", "Page title")
	live := flag.Bool("live", true, "Refresh the page from the state stream")
	flag.StringVar(&flagCfg.Addr, "http", def.Addr, "HTTP server address")
	flag.StringVar(&flagCfg.BackendURL, "backend", def.BackendURL, "Affectra backend URL")
	flag.StringVar(&flagCfg.TokenPage, "token-page", def.TokenPage, "Backend page carrying the csrf-token meta tag")
	flag.StringVar(&flagCfg.CSRFToken, "csrf-token", "", "CSRF token (skips discovery)")
	flag.DurationVar(&flagCfg.StatsInterval, "stats-interval", def.StatsInterval, "Statistics refresh interval")
	flag.DurationVar(&flagCfg.CamerasInterval, "cameras-interval", def.CamerasInterval, "Camera list refresh interval")
	flag.DurationVar(&flagCfg.RequestTimeout, "timeout", def.RequestTimeout, "Backend request timeout (0 = none)")
	flag.StringVar(&flagCfg.LogLevel, "log-level", def.LogLevel, "Log level (debug, info, warn, error, silent)")
	flag.StringVar(&flagCfg.LogFormat, "log-format", def.LogFormat, "Log format (text, json)")
	flag.BoolVar(&flagCfg.LogColor, "log-color", def.LogColor, "Enable colored log output")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	// Explicit flags win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http":
			cfg.Addr = flagCfg.Addr
		case "backend":
			cfg.BackendURL = flagCfg.BackendURL
		case "token-page":
			cfg.TokenPage = flagCfg.TokenPage
		case "csrf-token":
			cfg.CSRFToken = flagCfg.CSRFToken
		case "stats-interval":
			cfg.StatsInterval = flagCfg.StatsInterval
		case "cameras-interval":
			cfg.CamerasInterval = flagCfg.CamerasInterval
		case "timeout":
			cfg.RequestTimeout = flagCfg.RequestTimeout
		case "log-level":
			cfg.LogLevel = flagCfg.LogLevel
		case "log-format":
			cfg.LogFormat = flagCfg.LogFormat
		case "log-color":
			cfg.LogColor = flagCfg.LogColor
		}
	})
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize logger
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	format, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		log.Fatalf("Invalid log format: %v", err)
	}
	logger.Init(level, os.Stderr, cfg.LogColor)
	logger.Default().SetFormat(format)

	logger.Info("Main", "Affectra dashboard starting...")
	logger.Info("Main", "Backend: %s", cfg.BackendURL)
	logger.Info("Main", "Log level: %s", level)
	if p := cfg.Path(); p != "" {
		logger.Info("Main", "Config: %s", p)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	client, err := api.New(cfg.BackendURL, api.Options{
		Token:    cfg.CSRFToken,
		Timeout:  cfg.RequestTimeout,
		Observer: m,
	})
	if err != nil {
		log.Fatalf("Failed to create backend client: %v", err)
	}
	if cfg.CSRFToken == "" {
		if _, err := client.LoadToken(ctx, cfg.TokenPage); err != nil {
			logger.Warn("Main", "CSRF token not loaded from %s: %v (mutations will be rejected)", cfg.TokenPage, err)
		} else {
			logger.Info("Main", "CSRF token loaded from %s", cfg.TokenPage)
		}
	}

	dash := dashboard.New(client, dashboard.Options{
		Logger:          logger.Default(),
		Metrics:         m,
		StatsInterval:   cfg.StatsInterval,
		CamerasInterval: cfg.CamerasInterval,
		BannerTimeout:   cfg.BannerTimeout,
		StatusTimeout:   cfg.StatusTimeout,
	})

	server := web.NewServer(web.Config{
		Title:      *title,
		Live:       *live,
		BackendURL: cfg.BackendURL,
	}, dash, m)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Handler(),
	}

	go func() {
		if err := dash.Run(ctx); err != nil {
			logger.Error("Main", "Polling stopped: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("Main", "Shutting down...")
		server.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Main", "Error during shutdown: %v", err)
		}
	}()

	logger.Info("Main", "Dashboard listening on %s", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("Main", "Server stopped")
}
